// Package syntax defines the typed syntax tree handed to the code generator
package syntax

// NodeType defines the kind of a node in the tree
type NodeType int

const (
	// Expressions
	Number NodeType = iota
	Float
	Bool
	Ident
	BinaryOp
	Call
	Constructor
	Swizzle
	Member
	Subscript
	Ternary
	TypeCast

	// Statements
	FuncDecl
	Param
	VarDecl
	Assign
	If
	While
	Return
	Block
	Switch
)

// Node is a tree node. Typ is the semantic type of expressions and parameters.
type Node struct {
	Type   NodeType
	Parent *Node
	Data   interface{}
	Typ    *Type
}

// Operator is a binary operator
type Operator int

const (
	OpAdd Operator = iota
	OpSub
	OpMul
	OpDiv
	OpMod
	OpLess
	OpLessEq
	OpEqual
	OpNotEqual
	OpGreaterEq
	OpGreater
)

func (op Operator) IsCompare() bool { return op >= OpLess }

// --- Node Data Structs ---
type NumberNode struct{ Value int64 }
type FloatNode struct{ Value float64 }
type BoolNode struct{ Value bool }
type IdentNode struct{ Name string }
type BinaryOpNode struct{ Op Operator; Left, Right *Node }

// CallNode calls a user function (Decl set) or a builtin by name.
type CallNode struct {
	Name string
	Decl *Node
	Args []*Node
}
type ConstructorNode struct{ Args []*Node }
type SwizzleNode struct{ Expr *Node; Mask string }
type MemberNode struct{ Expr *Node; Field string }
type SubscriptNode struct{ Expr, Index *Node }
type TernaryNode struct{ Cond, Then, Else *Node }
type TypeCastNode struct{ Expr *Node; Target *Type }
type FuncDeclNode struct {
	Name        string
	Params      []*Node
	Ret         *Type
	Body        *Node
	CCompatible bool
}
type ParamNode struct{ Name string }
type VarDeclNode struct{ Name string; Init *Node }
type AssignNode struct{ Lhs, Rhs *Node }
type IfNode struct{ Cond, Then, Else *Node }
type WhileNode struct{ Cond, Body *Node }
type ReturnNode struct{ Expr *Node }
type BlockNode struct{ Stmts []*Node }
type CaseNode struct{ Values []int64; Body *Node }

// SwitchNode has no fallthrough: every case body exits the switch.
type SwitchNode struct {
	Expr    *Node
	Cases   []CaseNode
	Default *Node
}

// --- Node Constructors ---

func newNode(nodeType NodeType, typ *Type, data interface{}, children ...*Node) *Node {
	node := &Node{Type: nodeType, Data: data, Typ: typ}
	for _, child := range children {
		if child != nil {
			child.Parent = node
		}
	}
	return node
}

func NewNumber(typ *Type, value int64) *Node { return newNode(Number, typ, NumberNode{Value: value}) }
func NewFloat(typ *Type, value float64) *Node {
	return newNode(Float, typ, FloatNode{Value: value})
}
func NewBool(value bool) *Node { return newNode(Bool, TypeBool, BoolNode{Value: value}) }
func NewIdent(typ *Type, name string) *Node {
	return newNode(Ident, typ, IdentNode{Name: name})
}
func NewBinaryOp(typ *Type, op Operator, left, right *Node) *Node {
	return newNode(BinaryOp, typ, BinaryOpNode{Op: op, Left: left, Right: right}, left, right)
}
func NewCall(typ *Type, name string, decl *Node, args ...*Node) *Node {
	return newNode(Call, typ, CallNode{Name: name, Decl: decl, Args: args}, args...)
}
func NewConstructor(typ *Type, args ...*Node) *Node {
	return newNode(Constructor, typ, ConstructorNode{Args: args}, args...)
}
func NewSwizzle(typ *Type, expr *Node, mask string) *Node {
	return newNode(Swizzle, typ, SwizzleNode{Expr: expr, Mask: mask}, expr)
}
func NewMember(typ *Type, expr *Node, field string) *Node {
	return newNode(Member, typ, MemberNode{Expr: expr, Field: field}, expr)
}
func NewSubscript(typ *Type, expr, index *Node) *Node {
	return newNode(Subscript, typ, SubscriptNode{Expr: expr, Index: index}, expr, index)
}
func NewTernary(typ *Type, cond, then, els *Node) *Node {
	return newNode(Ternary, typ, TernaryNode{Cond: cond, Then: then, Else: els}, cond, then, els)
}
func NewTypeCast(expr *Node, target *Type) *Node {
	return newNode(TypeCast, target, TypeCastNode{Expr: expr, Target: target}, expr)
}
func NewParam(typ *Type, name string) *Node { return newNode(Param, typ, ParamNode{Name: name}) }
func NewFuncDecl(name string, ret *Type, params []*Node, body *Node, cCompatible bool) *Node {
	node := newNode(FuncDecl, ret, FuncDeclNode{Name: name, Params: params, Ret: ret, Body: body, CCompatible: cCompatible}, body)
	for _, p := range params {
		p.Parent = node
	}
	return node
}
func NewVarDecl(typ *Type, name string, init *Node) *Node {
	return newNode(VarDecl, typ, VarDeclNode{Name: name, Init: init}, init)
}
func NewAssign(lhs, rhs *Node) *Node {
	return newNode(Assign, lhs.Typ, AssignNode{Lhs: lhs, Rhs: rhs}, lhs, rhs)
}
func NewIf(cond, then, els *Node) *Node {
	return newNode(If, nil, IfNode{Cond: cond, Then: then, Else: els}, cond, then, els)
}
func NewWhile(cond, body *Node) *Node {
	return newNode(While, nil, WhileNode{Cond: cond, Body: body}, cond, body)
}
func NewReturn(expr *Node) *Node { return newNode(Return, nil, ReturnNode{Expr: expr}, expr) }
func NewBlock(stmts ...*Node) *Node {
	return newNode(Block, nil, BlockNode{Stmts: stmts}, stmts...)
}
func NewSwitch(expr *Node, cases []CaseNode, def *Node) *Node {
	node := newNode(Switch, nil, SwitchNode{Expr: expr, Cases: cases, Default: def}, expr, def)
	for _, c := range cases {
		if c.Body != nil {
			c.Body.Parent = node
		}
	}
	return node
}
