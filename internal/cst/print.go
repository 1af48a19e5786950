package cst

import (
	"strings"
)

// Print renders t back to source in canonical layout. Doc comments are
// kept; other comments are dropped. ERROR nodes are copied verbatim from src.
func Print(t *Tree, src []byte) string {
	pr := &printer{t: t, src: src}
	pr.node(t.Root)
	return pr.sb.String()
}

type printer struct {
	t      *Tree
	src    []byte
	sb     strings.Builder
	indent int
}

func (pr *printer) w(s string) { pr.sb.WriteString(s) }

func (pr *printer) newline() {
	pr.w("\n")
	pr.w(strings.Repeat("\t", pr.indent))
}

func (pr *printer) doc(id NodeID) {
	d := pr.t.Node(id).Doc
	if d == "" {
		return
	}
	for _, line := range strings.Split(d, "\n") {
		pr.w("/// ")
		pr.w(line)
		pr.newline()
	}
}

func (pr *printer) field(id NodeID, f Field) { pr.node(pr.t.Field(id, f)) }

func (pr *printer) list(ids []NodeID, sep string) {
	for i, c := range ids {
		if i > 0 {
			pr.w(sep)
		}
		pr.node(c)
	}
}

func (pr *printer) node(id NodeID) {
	n := pr.t.Node(id)
	if n == nil {
		return
	}
	t := pr.t
	switch n.Kind {
	case KindSourceFile:
		for i, g := range t.Items(id) {
			if i > 0 {
				pr.w("\n\n")
			}
			pr.node(g)
		}
		pr.w("\n")
	case KindGlobal:
		pr.doc(id)
		if m := t.Field(id, FieldExternMarker); m != 0 {
			pr.w(t.Text(m) + " ")
		}
		pr.w(t.Text(t.Field(id, FieldObjectType)) + " ")
		if ct := t.Field(id, FieldConstType); ct != 0 {
			pr.node(ct)
			pr.w(" ")
		}
		pr.field(id, FieldName)
		pr.field(id, FieldTemplateDeclarationArguments)
		pr.w(" ")
		pr.field(id, FieldBlock)
	case KindTemplateDeclarationArguments, KindTemplateParams:
		pr.w("#(")
		pr.list(t.Items(id), ", ")
		pr.w(")")
	case KindTemplateDeclarationType:
		pr.w("type ")
		pr.field(id, FieldName)
	case KindBlock:
		items := t.Items(id)
		if len(items) == 0 {
			pr.w("{}")
			return
		}
		pr.w("{")
		pr.indent++
		for _, s := range items {
			pr.newline()
			if t.Kind(s) != KindDeclAssignStatement {
				pr.doc(s)
			}
			pr.node(s)
		}
		pr.indent--
		pr.newline()
		pr.w("}")
	case KindDeclAssignStatement:
		pr.doc(id)
		pr.field(id, FieldAssignLeft)
		if v := t.Field(id, FieldAssignValue); v != 0 {
			pr.w(" = ")
			pr.node(v)
		}
	case KindAssignLeftSide:
		pr.list(t.Items(id), ", ")
	case KindAssignTo:
		if m := t.Field(id, FieldWriteModifiers); m != 0 {
			pr.node(m)
			pr.w(" ")
		}
		pr.field(id, FieldExprOrDecl)
	case KindWriteModifiers:
		pr.list(t.Items(id), " ")
	case KindDeclaration:
		for _, f := range []Field{FieldIOPortModifiers, FieldDeclarationModifiers} {
			if m := t.Field(id, f); m != 0 {
				pr.w(t.Text(m) + " ")
			}
		}
		if typ := t.Field(id, FieldType); typ != 0 {
			pr.node(typ)
			pr.w(" ")
		}
		pr.field(id, FieldName)
		if l := t.Field(id, FieldLatencySpecifier); l != 0 {
			pr.w("'")
			pr.field(l, FieldContent)
		}
	case KindIfStatement:
		pr.w(t.Text(t.Field(id, FieldIfKeyword)) + " ")
		pr.field(id, FieldCondition)
		pr.w(" ")
		pr.field(id, FieldThenBlock)
		if e := t.Field(id, FieldElseBlock); e != 0 {
			pr.w(" else ")
			pr.node(e)
		}
	case KindForStatement:
		pr.w("for ")
		pr.field(id, FieldForDecl)
		pr.w(" in ")
		pr.field(id, FieldFrom)
		pr.w("..")
		pr.field(id, FieldTo)
		pr.w(" ")
		pr.field(id, FieldBlock)
	case KindDomainStatement:
		pr.w("domain ")
		pr.field(id, FieldName)
	case KindInterfaceStatement:
		pr.w("interface ")
		pr.field(id, FieldName)
		if ports := t.Field(id, FieldInterfacePorts); ports != 0 {
			pr.w(" :")
			if ins := t.Field(ports, FieldInputs); ins != 0 {
				pr.w(" ")
				pr.node(ins)
			}
			if outs := t.Field(ports, FieldOutputs); outs != 0 {
				pr.w(" -> ")
				pr.node(outs)
			}
		}
	case KindDeclarationList, KindParenthesisExpressionList:
		if n.Kind == KindParenthesisExpressionList {
			pr.w("(")
		}
		pr.list(t.Items(id), ", ")
		if n.Kind == KindParenthesisExpressionList {
			pr.w(")")
		}
	case KindTemplateGlobal:
		pr.field(id, FieldName)
		pr.field(id, FieldTemplateParams)
	case KindTemplateTypeParam, KindTemplateValueParam:
		if nm := t.Field(id, FieldName); nm != 0 {
			pr.node(nm)
			pr.w(": ")
		}
		if n.Kind == KindTemplateTypeParam {
			pr.w("type ")
			pr.field(id, FieldType)
		} else {
			pr.field(id, FieldValue)
		}
	case KindArrayType, KindArrayOp:
		pr.field(id, FieldArr)
		pr.field(id, FieldArrIdx)
	case KindArrayBracketExpression:
		pr.w("[")
		if c := t.Field(id, FieldContent); c != 0 {
			pr.node(c)
		} else {
			pr.field(id, FieldFrom)
			op := t.Text(t.Field(id, FieldOperator))
			if op == ":" {
				pr.w(":")
				pr.field(id, FieldTo)
			} else {
				pr.w(" " + op + " ")
				pr.field(id, FieldWidth)
			}
		}
		pr.w("]")
	case KindArrayListExpression:
		pr.w("[")
		pr.list(t.Items(id), ", ")
		pr.w("]")
	case KindUnaryOp:
		pr.field(id, FieldOperator)
		pr.field(id, FieldRight)
	case KindBinaryOp:
		pr.field(id, FieldLeft)
		pr.w(" ")
		pr.field(id, FieldOperator)
		pr.w(" ")
		pr.field(id, FieldRight)
	case KindParenthesisExpression:
		pr.w("(")
		pr.field(id, FieldContent)
		pr.w(")")
	case KindFuncCall:
		pr.field(id, FieldName)
		pr.field(id, FieldArguments)
	case KindFieldAccess:
		pr.field(id, FieldLeft)
		pr.w(".")
		pr.field(id, FieldName)
	case KindNumber, KindIdentifier, KindKeyword, KindOperator:
		pr.w(n.Text)
	case KindError:
		if int(n.Span.End) <= len(pr.src) {
			pr.w(string(pr.src[n.Span.Start:n.Span.End]))
		}
	}
}
