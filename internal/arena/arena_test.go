package arena

import (
	"slices"
	"sync"
	"testing"
)

type nodeID uint32

func TestFlatIDsStartAtOne(t *testing.T) {
	a := NewFlat[nodeID, string](0)
	if a.Get(0) != nil {
		t.Fatal("id 0 must be invalid")
	}
	x := a.Alloc("x")
	y := a.Alloc("y")
	if x != 1 || y != 2 || a.NextID() != 3 {
		t.Fatalf("ids = %d %d next %d", x, y, a.NextID())
	}
	if *a.MustGet(y) != "y" || a.Get(3) != nil {
		t.Fatal("lookup by id")
	}
	r := a.IDs()
	if r.Len() != 2 || !r.Contains(1) || r.Contains(3) {
		t.Fatalf("range %+v", r)
	}

	a.Truncate(2)
	if a.Len() != 1 || a.Get(2) != nil {
		t.Fatalf("truncate left %d elements", a.Len())
	}

	lengths := Map(a, func(_ nodeID, s *string) int { return len(*s) })
	if lengths.Len() != 1 || *lengths.MustGet(1) != 1 {
		t.Fatal("map keeps ids")
	}
}

func TestRangeSplitAndWalk(t *testing.T) {
	r := Range[nodeID]{Start: 2, End: 6}
	lo, hi := r.Split(4)
	if lo != (Range[nodeID]{Start: 2, End: 4}) || hi != (Range[nodeID]{Start: 4, End: 6}) {
		t.Fatalf("split = %+v %+v", lo, hi)
	}
	if _, hi := r.Split(10); !hi.Empty() {
		t.Fatalf("split past the end leaves %+v", hi)
	}
	if got := slices.Collect(r.All()); !slices.Equal(got, []nodeID{2, 3, 4, 5}) {
		t.Fatalf("all = %v", got)
	}

	w := r.Walk()
	var seen []nodeID
	for id, ok := w.Next(); ok; id, ok = w.Next() {
		seen = append(seen, id)
		if id == 2 {
			w.SkipTo(5)
		}
	}
	if !slices.Equal(seen, []nodeID{2, 5}) {
		t.Fatalf("walk with skip = %v", seen)
	}
}

func TestSparseReuseAndReserve(t *testing.T) {
	a := NewSparse[nodeID, int]()
	first := a.Alloc(10)
	second := a.Reserve()
	if a.Get(second) != nil || a.Len() != 1 {
		t.Fatal("reserved slot must not be visible")
	}
	a.Fill(second, 20)
	if *a.Get(second) != 20 {
		t.Fatal("fill stores the value")
	}
	if v := a.Free(first); v != 10 {
		t.Fatalf("free returned %d", v)
	}
	if again := a.Alloc(30); again != first {
		t.Fatalf("freed id %d not reused, got %d", first, again)
	}
	var ids []nodeID
	for id := range a.All() {
		ids = append(ids, id)
	}
	if !slices.Equal(ids, []nodeID{1, 2}) {
		t.Fatalf("all = %v", ids)
	}

	defer func() {
		if recover() == nil {
			t.Fatal("fill of an occupied slot must panic")
		}
	}()
	a.Fill(first, 0)
}

func TestAppendOnlyConcurrent(t *testing.T) {
	var a AppendOnly[int]
	var wg sync.WaitGroup
	for i := range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			a.Alloc(i)
		}()
	}
	wg.Wait()
	got := a.Snapshot()
	slices.Sort(got)
	if !slices.Equal(got, []int{0, 1, 2, 3, 4, 5, 6, 7}) {
		t.Fatalf("snapshot = %v", got)
	}
	if _, ok := a.Get(9); ok {
		t.Fatal("index past the end")
	}
}
