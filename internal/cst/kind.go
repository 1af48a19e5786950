package cst

// Kind is the node kind of a concrete syntax tree node.
type Kind uint8

const (
	KindInvalid Kind = iota
	KindError
	KindSourceFile
	KindGlobal // "module": every global object, see FieldObjectType
	KindBlock
	KindDeclaration
	KindDeclarationList
	KindTemplateDeclarationArguments
	KindTemplateDeclarationType
	KindDeclAssignStatement
	KindAssignLeftSide
	KindAssignTo
	KindWriteModifiers
	KindIfStatement
	KindForStatement
	KindDomainStatement
	KindInterfaceStatement
	KindInterfacePorts
	KindLatencySpecifier
	KindTemplateGlobal
	KindTemplateParams
	KindTemplateTypeParam
	KindTemplateValueParam
	KindArrayType
	KindArrayOp
	KindArrayBracketExpression
	KindArrayListExpression
	KindUnaryOp
	KindBinaryOp
	KindParenthesisExpression
	KindParenthesisExpressionList
	KindFieldAccess
	KindFuncCall
	KindNumber
	KindIdentifier
	KindKeyword  // leaf: a modifier or object-type keyword
	KindOperator // leaf: an operator token
	KindDocComment
	KindSingleLineComment
	KindMultiLineComment
)

var kindNames = [...]string{
	KindInvalid:                      "invalid",
	KindError:                        "ERROR",
	KindSourceFile:                   "source_file",
	KindGlobal:                       "module",
	KindBlock:                        "block",
	KindDeclaration:                  "declaration",
	KindDeclarationList:              "declaration_list",
	KindTemplateDeclarationArguments: "template_declaration_arguments",
	KindTemplateDeclarationType:      "template_declaration_type",
	KindDeclAssignStatement:          "decl_assign_statement",
	KindAssignLeftSide:               "assign_left_side",
	KindAssignTo:                     "assign_to",
	KindWriteModifiers:               "write_modifiers",
	KindIfStatement:                  "if_statement",
	KindForStatement:                 "for_statement",
	KindDomainStatement:              "domain_statement",
	KindInterfaceStatement:           "interface_statement",
	KindInterfacePorts:               "interface_ports",
	KindLatencySpecifier:             "latency_specifier",
	KindTemplateGlobal:               "template_global",
	KindTemplateParams:               "template_params",
	KindTemplateTypeParam:            "template_type_param",
	KindTemplateValueParam:           "template_value_param",
	KindArrayType:                    "array_type",
	KindArrayOp:                      "array_op",
	KindArrayBracketExpression:       "array_bracket_expression",
	KindArrayListExpression:          "array_list_expression",
	KindUnaryOp:                      "unary_op",
	KindBinaryOp:                     "binary_op",
	KindParenthesisExpression:        "parenthesis_expression",
	KindParenthesisExpressionList:    "parenthesis_expression_list",
	KindFieldAccess:                  "field_access",
	KindFuncCall:                     "func_call",
	KindNumber:                       "number",
	KindIdentifier:                   "identifier",
	KindKeyword:                      "keyword",
	KindOperator:                     "operator",
	KindDocComment:                   "doc_comment",
	KindSingleLineComment:            "single_line_comment",
	KindMultiLineComment:             "multi_line_comment",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "unknown"
}

// IsExpression reports whether nodes of this kind can stand as an expression.
func (k Kind) IsExpression() bool {
	switch k {
	case KindTemplateGlobal, KindArrayOp, KindNumber, KindParenthesisExpression, KindUnaryOp,
		KindBinaryOp, KindFuncCall, KindFieldAccess, KindArrayListExpression:
		return true
	}
	return false
}

// Field names the role a node plays under its parent.
type Field uint8

const (
	FieldNone Field = iota
	FieldItem
	FieldName
	FieldType
	FieldArr
	FieldArrIdx
	FieldLeft
	FieldRight
	FieldOperator
	FieldCondition
	FieldThenBlock
	FieldElseBlock
	FieldArguments
	FieldTemplateParams
	FieldTemplateDeclarationArguments
	FieldInterfacePorts
	FieldInputs
	FieldOutputs
	FieldContent
	FieldDeclarationModifiers
	FieldIOPortModifiers
	FieldWriteModifiers
	FieldLatencySpecifier
	FieldObjectType
	FieldExternMarker
	FieldConstType
	FieldBlock
	FieldAssignLeft
	FieldAssignValue
	FieldExprOrDecl
	FieldIfKeyword
	FieldForDecl
	FieldFrom
	FieldTo
	FieldWidth
	FieldValue
)

var fieldNames = [...]string{
	FieldNone:                         "",
	FieldItem:                         "item",
	FieldName:                         "name",
	FieldType:                         "type",
	FieldArr:                          "arr",
	FieldArrIdx:                       "arr_idx",
	FieldLeft:                         "left",
	FieldRight:                        "right",
	FieldOperator:                     "operator",
	FieldCondition:                    "condition",
	FieldThenBlock:                    "then_block",
	FieldElseBlock:                    "else_block",
	FieldArguments:                    "arguments",
	FieldTemplateParams:               "template_params",
	FieldTemplateDeclarationArguments: "template_declaration_arguments",
	FieldInterfacePorts:               "interface_ports",
	FieldInputs:                       "inputs",
	FieldOutputs:                      "outputs",
	FieldContent:                      "content",
	FieldDeclarationModifiers:         "declaration_modifiers",
	FieldIOPortModifiers:              "io_port_modifiers",
	FieldWriteModifiers:               "write_modifiers",
	FieldLatencySpecifier:             "latency_specifier",
	FieldObjectType:                   "object_type",
	FieldExternMarker:                 "extern_marker",
	FieldConstType:                    "const_type",
	FieldBlock:                        "block",
	FieldAssignLeft:                   "assign_left",
	FieldAssignValue:                  "assign_value",
	FieldExprOrDecl:                   "expr_or_decl",
	FieldIfKeyword:                    "if_keyword",
	FieldForDecl:                      "for_decl",
	FieldFrom:                         "from",
	FieldTo:                           "to",
	FieldWidth:                        "width",
	FieldValue:                        "value",
}

func (f Field) String() string {
	if int(f) < len(fieldNames) {
		return fieldNames[f]
	}
	return "unknown"
}
