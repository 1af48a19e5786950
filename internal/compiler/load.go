package compiler

import (
	"context"
	"fmt"
	"os"
	"runtime"
	"time"

	"golang.org/x/sync/errgroup"

	"sus/internal/cst"
	"sus/internal/diag"
	"sus/internal/linker"
	"sus/internal/source"
)

// LoadStd adds the standard library in dir, or the embedded prelude when dir
// is empty, to l ahead of any user file.
func LoadStd(l *linker.Linker, dir string) error {
	files, err := stdSources(dir)
	if err != nil {
		return err
	}
	for _, f := range files {
		l.AddFile(f.path, f.content, true)
	}
	return nil
}

type parsed struct {
	tree *cst.Tree
	errs *diag.Bag
}

// loadFiles reads and parses paths in parallel, then registers them with l
// in the given order. The linker is only touched from the calling goroutine.
func loadFiles(ctx context.Context, l *linker.Linker, paths []string, jobs int, sink ProgressSink) ([]source.FileID, error) {
	if jobs <= 0 {
		jobs = runtime.GOMAXPROCS(0)
	}
	contents := make([][]byte, len(paths))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(jobs)
	for i, path := range paths {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			// #nosec G304 -- paths come from the command line or sus.toml
			content, err := os.ReadFile(path)
			if err != nil {
				emit(sink, []string{path}, 0, StatusError, err, 0)
				return fmt.Errorf("read %s: %w", path, err)
			}
			contents[i] = content
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	ids := make([]source.FileID, len(paths))
	for i, path := range paths {
		if _, dup := l.Files.Lookup(path); dup {
			return nil, fmt.Errorf("%s is given twice", path)
		}
		ids[i] = l.Files.AddLoaded(path, contents[i])
	}

	results := make([]parsed, len(paths))
	g, gctx = errgroup.WithContext(ctx)
	g.SetLimit(jobs)
	for i, id := range ids {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			start := time.Now()
			emit(sink, []string{paths[i]}, 0, StatusWorking, nil, 0)
			tree, errs := linker.Parse(l.Files.Get(id))
			results[i] = parsed{tree: tree, errs: errs}
			status := StatusDone
			if errs.HasErrors() {
				status = StatusError
			}
			emit(sink, []string{paths[i]}, 0, status, nil, time.Since(start))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	for i, id := range ids {
		l.Register(id, results[i].tree, results[i].errs, false)
	}
	return ids, nil
}
