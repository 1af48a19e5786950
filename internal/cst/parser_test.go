package cst

import (
	"strings"
	"testing"

	"sus/internal/diag"
	"sus/internal/source"
)

func parseString(t *testing.T, src string) (*Tree, *diag.Bag) {
	t.Helper()
	fs := source.NewFileSet()
	id := fs.AddVirtual("test.sus", []byte(src))
	bag := diag.NewBag(0)
	return Parse(fs.Get(id), diag.BagReporter{Bag: bag}), bag
}

func mustParse(t *testing.T, src string) *Tree {
	t.Helper()
	tree, bag := parseString(t, src)
	if bag.HasErrors() {
		t.Fatalf("unexpected syntax errors: %+v\n%s", bag.Items(), tree.Dump())
	}
	return tree
}

const pipelineSrc = `
/// A small pipeline
module pipe #(type T, int DEPTH) {
	input int a'0
	output int b'2

	state int acc
	initial acc = 0
	reg reg b = a + acc * 2

	gen int[4] table
	for i in 0..4 {
		table[i] = i
	}
	if DEPTH > 3 {
		acc = acc + 1
	} else when a == 2 {
		acc = a[3:5]
	}
	domain fast
	interface push : int data'0, bool valid -> bool ready
	FIFO #(DEPTH: 4, T: type int[3]) f
	int x, int y = f.push(a[1 +: 2], -a)
}
`

func TestParseGlobalShape(t *testing.T) {
	tree := mustParse(t, pipelineSrc)
	globals := tree.Items(tree.Root)
	if len(globals) != 1 {
		t.Fatalf("want 1 global, got %d", len(globals))
	}
	g := globals[0]
	if tree.Kind(g) != KindGlobal || tree.Text(tree.Field(g, FieldObjectType)) != "module" {
		t.Fatalf("unexpected global:\n%s", tree.Dump())
	}
	if tree.Text(tree.Field(g, FieldName)) != "pipe" || tree.Node(g).Doc != "A small pipeline" {
		t.Fatalf("name/doc wrong: %q %q", tree.Text(tree.Field(g, FieldName)), tree.Node(g).Doc)
	}
	args := tree.Items(tree.Field(g, FieldTemplateDeclarationArguments))
	if len(args) != 2 || tree.Kind(args[0]) != KindTemplateDeclarationType || tree.Kind(args[1]) != KindDeclaration {
		t.Fatalf("template declaration arguments wrong:\n%s", tree.Dump())
	}
	stmts := tree.Items(tree.Field(g, FieldBlock))
	wantKinds := []Kind{
		KindDeclAssignStatement, KindDeclAssignStatement, KindDeclAssignStatement, KindDeclAssignStatement,
		KindDeclAssignStatement, KindDeclAssignStatement, KindForStatement, KindIfStatement,
		KindDomainStatement, KindInterfaceStatement, KindDeclAssignStatement, KindDeclAssignStatement,
	}
	if len(stmts) != len(wantKinds) {
		t.Fatalf("want %d statements, got %d:\n%s", len(wantKinds), len(stmts), tree.Dump())
	}
	for i, k := range wantKinds {
		if tree.Kind(stmts[i]) != k {
			t.Fatalf("statement %d: want %v, got %v", i, k, tree.Kind(stmts[i]))
		}
	}
}

func TestParseDeclarationVersusExpression(t *testing.T) {
	tree := mustParse(t, "module m {\n\tint[3][4] x = y[2]\n}")
	stmt := tree.Items(tree.Field(tree.Items(tree.Root)[0], FieldBlock))[0]
	to := tree.Items(tree.Field(stmt, FieldAssignLeft))[0]
	decl := tree.Field(to, FieldExprOrDecl)
	if tree.Kind(decl) != KindDeclaration {
		t.Fatalf("want declaration, got %v", tree.Kind(decl))
	}
	typ := tree.Field(decl, FieldType)
	if tree.Kind(typ) != KindArrayType || tree.Kind(tree.Field(typ, FieldArr)) != KindArrayType {
		t.Fatalf("nested array type not converted:\n%s", tree.Dump())
	}
	val := tree.Field(stmt, FieldAssignValue)
	if tree.Kind(val) != KindArrayOp {
		t.Fatalf("value should stay an array_op, got %v", tree.Kind(val))
	}
}

func TestParsePrecedence(t *testing.T) {
	tree := mustParse(t, "module m {\n\tx = a + b * c == d\n}")
	stmt := tree.Items(tree.Field(tree.Items(tree.Root)[0], FieldBlock))[0]
	val := tree.Field(stmt, FieldAssignValue)
	if tree.Text(tree.Field(val, FieldOperator)) != "==" {
		t.Fatalf("top operator should be ==:\n%s", tree.Dump())
	}
	sum := tree.Field(val, FieldLeft)
	if tree.Text(tree.Field(sum, FieldOperator)) != "+" {
		t.Fatalf("left of == should be +")
	}
	if tree.Text(tree.Field(tree.Field(sum, FieldRight), FieldOperator)) != "*" {
		t.Fatalf("right of + should be *")
	}
}

func TestParseNewlinesInsideParens(t *testing.T) {
	mustParse(t, "module m {\n\tx = f(a,\n\t\tb)\n\tFIFO #(\n\t\tD: 3\n\t) q\n}")
}

func TestParseErrorsRecover(t *testing.T) {
	tree, bag := parseString(t, "module m {\n\tx = = 3\n\ty = 2\n}\nmodule n {}\n")
	if !bag.HasErrors() {
		t.Fatalf("expected syntax error")
	}
	if got := len(tree.Items(tree.Root)); got != 2 {
		t.Fatalf("recovery lost globals: got %d\n%s", got, tree.Dump())
	}
	if code := bag.Items()[0].Code; code != diag.SynExpectExpression {
		t.Fatalf("unexpected code %v", code)
	}
}

func TestParseBadGlobal(t *testing.T) {
	tree, bag := parseString(t, "garbage here\nmodule ok {}\n")
	if !bag.HasErrors() {
		t.Fatalf("expected error")
	}
	items := tree.Items(tree.Root)
	if len(items) != 2 || tree.Kind(items[1]) != KindGlobal {
		t.Fatalf("expected recovery to module ok:\n%s", tree.Dump())
	}
}

func TestCommentsAreExtras(t *testing.T) {
	tree := mustParse(t, "// header\nmodule m {\n\t/* inner */ x = 1 // trailing\n}")
	var kinds []Kind
	for _, c := range tree.Comments {
		kinds = append(kinds, tree.Kind(c))
	}
	want := []Kind{KindSingleLineComment, KindMultiLineComment, KindSingleLineComment}
	if len(kinds) != len(want) {
		t.Fatalf("want %v, got %v", want, kinds)
	}
	for i := range want {
		if kinds[i] != want[i] {
			t.Fatalf("want %v, got %v", want, kinds)
		}
	}
}

func TestPrintIsStable(t *testing.T) {
	tree := mustParse(t, pipelineSrc)
	once := Print(tree, []byte(pipelineSrc))
	tree2 := mustParse(t, once)
	twice := Print(tree2, []byte(once))
	if once != twice {
		t.Fatalf("print not stable:\n--- once\n%s\n--- twice\n%s", once, twice)
	}
	for _, want := range []string{"/// A small pipeline", "reg reg b = a + acc * 2", "acc = a[3:5]", "a[1 +: 2]", "} else when a == 2 {"} {
		if !strings.Contains(once, want) {
			t.Fatalf("printed source misses %q:\n%s", want, once)
		}
	}
}

func TestNodeAt(t *testing.T) {
	src := "module m {\n\tx = abc\n}"
	tree := mustParse(t, src)
	off := uint32(strings.Index(src, "abc") + 1)
	id := tree.NodeAt(off)
	if tree.Kind(id) != KindIdentifier || tree.Text(id) != "abc" {
		t.Fatalf("NodeAt: got %v %q", tree.Kind(id), tree.Text(id))
	}
}
