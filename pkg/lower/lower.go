// Package lower walks typed function declarations and drives the code
// generation service to produce IR for them.
package lower

import (
	"github.com/sasl-lang/sasl/pkg/codegen"
	"github.com/sasl-lang/sasl/pkg/config"
	"github.com/sasl-lang/sasl/pkg/ir"
	"github.com/sasl-lang/sasl/pkg/syntax"
	"github.com/sasl-lang/sasl/pkg/util"
)

type scope map[string]codegen.Value

// Lowerer translates syntax trees through one SISD service. Like the
// service, it is not safe for concurrent use.
type Lowerer struct {
	cg     *codegen.SISD
	cfg    *config.Config
	scopes []scope
}

func New(cg *codegen.SISD) *Lowerer {
	return &Lowerer{cg: cg, cfg: cg.Config()}
}

// Lower generates a module holding every declaration in decls.
func Lower(cfg *config.Config, name string, decls ...*syntax.Node) (mod *ir.Module, err error) {
	defer util.Recover(&err)
	mod = ir.NewModule(name)
	l := New(codegen.New(cfg, mod))
	for _, d := range decls {
		l.Func(d)
	}
	return mod, nil
}

func (l *Lowerer) push() { l.scopes = append(l.scopes, scope{}) }
func (l *Lowerer) pop()  { l.scopes = l.scopes[:len(l.scopes)-1] }

func (l *Lowerer) bind(name string, v codegen.Value) { l.scopes[len(l.scopes)-1][name] = v }

func (l *Lowerer) lookup(name string) codegen.Value {
	for i := len(l.scopes) - 1; i >= 0; i-- {
		if v, ok := l.scopes[i][name]; ok { return v }
	}
	util.ContractViolation("undefined identifier '%s'", name)
	return codegen.Value{}
}

// record caches the value and type of an expression node.
func (l *Lowerer) record(node *syntax.Node, v codegen.Value) codegen.Value {
	ctxt := l.cg.NodeCtxt(node, true)
	ctxt.Val = v
	ctxt.Ty = v.TyInfo()
	return v
}

// Func defines decl. A declaration without a body stays an external
// declaration that calls can still bind to.
func (l *Lowerer) Func(decl *syntax.Node) codegen.Function {
	d, ok := decl.Data.(syntax.FuncDeclNode)
	if !ok { util.ContractViolation("function declaration expected") }
	fn := l.cg.FetchFunction(decl)
	if d.Body == nil { return fn }
	if !fn.Fn.IsDecl() { util.ContractViolation("function '%s' defined twice", d.Name) }

	l.cg.PushFn(fn)
	entry := l.cg.NewBlock("entry", true)
	if !fn.CCompatible { fn.InlineHint() }

	l.push()
	for i, p := range d.Params {
		name := p.Data.(syntax.ParamNode).Name
		tyi := l.cg.CreateTyInfo(p.Typ)
		slot := l.cg.CreateVariable(tyi, codegen.ABILLVM, name+".addr")
		l.cg.Store(slot, fn.Arg(i))
		ctxt := l.cg.NodeCtxt(p, true)
		ctxt.Val, ctxt.Ty = slot, tyi
		l.bind(name, slot)
	}
	l.stmt(d.Body)
	l.pop()

	clean := l.cfg.IsFeatureEnabled(config.FeatCleanBlocks)
	cur := l.cg.InsertPoint().Block
	if !cur.Terminated() {
		dead := cur != entry.Block && cur.Empty() && len(cur.Predecessors()) == 0
		switch {
		case dead && clean:
		case fn.RetVoid: l.cg.EmitReturn()
		default: l.cg.EmitReturnValue(l.cg.NullValue(fn.ReturnTy(), codegen.ABILLVM), codegen.ABIUnknown)
		}
	}
	if clean { l.cg.CleanEmptyBlocks() }
	l.cg.NodeCtxt(decl, true).Block = entry
	return l.cg.EndFnDecl()
}

// reachable opens a fresh block when the previous statement left the
// current one terminated.
func (l *Lowerer) reachable() {
	if l.cg.InsertPoint().Block.Terminated() { l.cg.NewBlock("unreachable", true) }
}

func (l *Lowerer) stmt(node *syntax.Node) {
	if node == nil { return }
	l.reachable()
	switch node.Type {
	case syntax.Block:
		l.push()
		for _, s := range node.Data.(syntax.BlockNode).Stmts {
			l.stmt(s)
		}
		l.pop()

	case syntax.VarDecl:
		d := node.Data.(syntax.VarDeclNode)
		tyi := l.cg.CreateTyInfo(node.Typ)
		slot := l.cg.CreateVariable(tyi, codegen.ABILLVM, d.Name)
		init := l.cg.NullValue(tyi, codegen.ABILLVM)
		if d.Init != nil { init = l.expr(d.Init) }
		l.cg.Store(slot, init)
		l.record(node, slot)
		l.bind(d.Name, slot)

	case syntax.Assign:
		d := node.Data.(syntax.AssignNode)
		lhs := l.lvalue(d.Lhs)
		l.cg.Store(lhs, l.expr(d.Rhs))

	case syntax.If:
		l.ifStmt(node.Data.(syntax.IfNode))

	case syntax.While:
		d := node.Data.(syntax.WhileNode)
		cond := l.cg.NewBlock("while.cond", false)
		l.cg.JumpTo(cond)
		l.cg.SetInsertPoint(cond)
		c := l.expr(d.Cond)
		body := l.cg.NewBlock("while.body", false)
		end := l.cg.NewBlock("while.end", false)
		l.cg.JumpCond(c, body, end)
		l.cg.SetInsertPoint(body)
		l.stmt(d.Body)
		l.cg.JumpTo(cond)
		l.cg.SetInsertPoint(end)

	case syntax.Switch:
		l.switchStmt(node.Data.(syntax.SwitchNode))

	case syntax.Return:
		d := node.Data.(syntax.ReturnNode)
		fn := l.cg.Fn()
		switch {
		case d.Expr == nil && fn.RetVoid: l.cg.EmitReturn()
		case d.Expr == nil || fn.RetVoid: util.ContractViolation("return in '%s' does not match its result type", fn.Fn.Name)
		default: l.cg.EmitReturnValue(l.expr(d.Expr), codegen.ABIUnknown)
		}

	default:
		l.expr(node)
	}
}

func (l *Lowerer) ifStmt(d syntax.IfNode) {
	c := l.expr(d.Cond)
	then := l.cg.NewBlock("if.then", false)
	els := codegen.InsertPoint{}
	if d.Else != nil { els = l.cg.NewBlock("if.else", false) }
	end := l.cg.NewBlock("if.end", false)
	if !els.Valid() { els = end }
	l.cg.JumpCond(c, then, els)

	l.cg.SetInsertPoint(then)
	l.stmt(d.Then)
	l.cg.JumpTo(end)
	if d.Else != nil {
		l.cg.SetInsertPoint(els)
		l.stmt(d.Else)
		l.cg.JumpTo(end)
	}
	l.cg.SetInsertPoint(end)
}

func (l *Lowerer) switchStmt(d syntax.SwitchNode) {
	c := l.expr(d.Expr)
	if !c.Type().IsScalar() || !c.Type().Scalar.IsInt() { util.ContractViolation("switch on %s", c.Type()) }

	var cases []codegen.SwitchCase
	bodies := make([]codegen.InsertPoint, len(d.Cases))
	for i, cs := range d.Cases {
		bodies[i] = l.cg.NewBlock("switch.case", false)
		for _, v := range cs.Values {
			k := l.cg.CreateConstantScalar(codegen.LiteralOf(v), c.TyInfo())
			cases = append(cases, codegen.SwitchCase{Value: k, Block: bodies[i]})
		}
	}
	def := codegen.InsertPoint{}
	if d.Default != nil { def = l.cg.NewBlock("switch.default", false) }
	end := l.cg.NewBlock("switch.end", false)
	if !def.Valid() { def = end }
	l.cg.SwitchTo(c, cases, def)

	for i, cs := range d.Cases {
		l.cg.SetInsertPoint(bodies[i])
		l.stmt(cs.Body)
		l.cg.JumpTo(end)
	}
	if d.Default != nil {
		l.cg.SetInsertPoint(def)
		l.stmt(d.Default)
		l.cg.JumpTo(end)
	}
	l.cg.SetInsertPoint(end)
}
