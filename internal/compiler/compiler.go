// Package compiler translates parsed statement syntax into owned
// compiled trees and registry mutations (§4.2). It is a pure
// translation layer: it knows nothing of lexing or grammar, consuming
// only the parser.Statement/Expr/Action nodes and producing
// expr.Node/action.Action/routine.Routine/rule.Rule/module.Module
// instances plus registry.Registry effects.
package compiler

import (
	"fmt"

	"ctrlscript/internal/action"
	"ctrlscript/internal/errors"
	"ctrlscript/internal/expr"
	"ctrlscript/internal/module"
	"ctrlscript/internal/parser"
	"ctrlscript/internal/proxy"
	"ctrlscript/internal/registry"
	"ctrlscript/internal/routine"
	"ctrlscript/internal/rule"
	"ctrlscript/internal/value"
)

// Compiler holds no state of its own beyond the registry it mutates;
// every Compile call is a one-shot translation of a single parsed
// statement, matching the line-oriented protocol (§6).
type Compiler struct {
	reg *registry.Registry
}

func New(reg *registry.Registry) *Compiler {
	return &Compiler{reg: reg}
}

// Compile applies one parsed statement's registry effects and returns
// any diagnostic line it produces directly (expression statements).
func (c *Compiler) Compile(stmt parser.Statement) (string, error) {
	switch s := stmt.(type) {
	case *parser.ExprStmt:
		return c.compileExprStmt(s)
	case *parser.Constructor:
		return "", c.compileConstructor(s)
	case *parser.MethodCallStmt:
		return "", c.compileMethodCall(s)
	case *parser.RoutineCallStmt:
		return "", c.compileRoutineCall(s)
	case *parser.PropertyAssignStmt:
		return "", c.compilePropertyAssign(s)
	case *parser.VarAssignStmt:
		return "", c.compileVarAssign(s)
	case *parser.Decl:
		return "", c.compileDecl(s)
	case *parser.RoutineDef:
		return "", c.compileRoutineDef(s)
	case *parser.RuleDef:
		return "", c.compileRuleDef(s)
	default:
		return "", errors.NewDeviceError("unhandled statement type %T", stmt)
	}
}

// --- item 1: expression statement -------------------------------------

func (c *Compiler) compileExprStmt(s *parser.ExprStmt) (string, error) {
	n, err := c.compileExpr(s.Value)
	if err != nil {
		return "", err
	}
	v, err := n.Evaluate()
	if err != nil {
		return "", err
	}
	return v.Format(), nil
}

// --- item 2: constructor ------------------------------------------------

func (c *Compiler) compileConstructor(s *parser.Constructor) error {
	args, err := c.compileArgValues(s.Args)
	if err != nil {
		return err
	}
	if s.ExpanderName != "" {
		expMod, ok := c.reg.Module(s.ExpanderName)
		if !ok {
			return errors.NewUnknownName("unknown module %q", s.ExpanderName)
		}
		p, err := proxy.NewProxy(s.Name, expMod, s.TypeName, args)
		if err != nil {
			return err
		}
		return c.reg.RegisterModule(s.Name, p)
	}
	kind, err := kindFromTypeName(s.TypeName)
	if err != nil {
		return err
	}
	m, err := module.Create(kind, s.Name, args, c.reg.PeerLookup(), c.reg.Drivers())
	if err != nil {
		return err
	}
	return c.reg.RegisterModule(s.Name, m)
}

// kindFromTypeName maps the DSL's capitalized constructor names
// (Input, Output, MotorAxis, ...) onto the module.Kind constants. This
// mapping, like the rest of the grammar, is an implementation choice
// left open by §1/§9.
var typeNameToKind = map[string]module.Kind{
	"Core":      module.KindCore,
	"Input":     module.KindInput,
	"Output":    module.KindOutput,
	"PWMOutput": module.KindPWMOutput,
	"Can":       module.KindCan,
	"Serial":    module.KindSerial,
	"Expander":  module.KindExpander,
	"MotorAxis": module.KindMotorAxis,
}

func kindFromTypeName(typeName string) (module.Kind, error) {
	kind, ok := typeNameToKind[typeName]
	if !ok {
		return "", errors.NewUnknownName("unknown module type %q", typeName)
	}
	return kind, nil
}

func (c *Compiler) compileArgValues(exprs []parser.Expr) ([]value.Value, error) {
	args := make([]value.Value, len(exprs))
	for i, e := range exprs {
		n, err := c.compileExpr(e)
		if err != nil {
			return nil, err
		}
		v, err := n.Evaluate()
		if err != nil {
			return nil, err
		}
		args[i] = v
	}
	return args, nil
}

// --- item 3: method call ------------------------------------------------

func (c *Compiler) compileMethodCall(s *parser.MethodCallStmt) error {
	if s.Method == "shadow" {
		return c.compileShadow(s.Target, s.Args)
	}
	target, args, err := c.resolveCallTarget(s.Target, s.Args)
	if err != nil {
		return err
	}
	return target.CallWithShadows(s.Method, args)
}

// compileShadow resolves "target.shadow(other)" (§4.2 item 3, §4.3) to
// a direct Module.Shadow call: "shadow" takes a module reference, not
// a value, so it is handled here rather than through CallWithShadows,
// which rejects the method name outright (it only ever forwards calls
// *to* shadows, never configures them).
func (c *Compiler) compileShadow(targetName string, argExprs []parser.Expr) error {
	target, ok := c.reg.Module(targetName)
	if !ok {
		return errors.NewUnknownName("unknown module %q", targetName)
	}
	if len(argExprs) != 1 {
		return errors.NewArityMismatch("shadow takes exactly one module argument")
	}
	other, err := c.resolveModuleArg(argExprs[0])
	if err != nil {
		return err
	}
	return target.Shadow(other)
}

// resolveModuleArg resolves a bare-identifier expression naming an
// already-registered module (the only form "shadow"'s argument takes).
func (c *Compiler) resolveModuleArg(e parser.Expr) (module.Module, error) {
	ident, ok := e.(*parser.Ident)
	if !ok {
		return nil, errors.NewTypeMismatch("shadow argument must be a module name")
	}
	m, ok := c.reg.Module(ident.Name)
	if !ok {
		return nil, errors.NewUnknownName("unknown module %q", ident.Name)
	}
	return m, nil
}

func (c *Compiler) resolveCallTarget(name string, exprArgs []parser.Expr) (module.Module, []value.Value, error) {
	m, ok := c.reg.Module(name)
	if !ok {
		return nil, nil, errors.NewUnknownName("unknown module %q", name)
	}
	args, err := c.compileArgValues(exprArgs)
	if err != nil {
		return nil, nil, err
	}
	return m, args, nil
}

// --- item 4: routine call ------------------------------------------------

func (c *Compiler) compileRoutineCall(s *parser.RoutineCallStmt) error {
	rt, ok := c.reg.Routine(s.Name)
	if !ok {
		return errors.NewUnknownName("unknown routine %q", s.Name)
	}
	if rt.IsRunning() {
		return errors.NewAlreadyRunning("routine %q is already running", s.Name)
	}
	rt.Start()
	return nil
}

// --- item 5: property assignment ----------------------------------------

func (c *Compiler) compilePropertyAssign(s *parser.PropertyAssignStmt) error {
	m, ok := c.reg.Module(s.Module)
	if !ok {
		return errors.NewUnknownName("unknown module %q", s.Module)
	}
	n, err := c.compileExpr(s.Value)
	if err != nil {
		return err
	}
	return m.WriteProperty(s.Property, n)
}

// --- item 6: variable assignment -----------------------------------------

func (c *Compiler) compileVarAssign(s *parser.VarAssignStmt) error {
	v, ok := c.reg.LookupVariable(s.Name)
	if !ok {
		return errors.NewUnknownName("unknown variable %q", s.Name)
	}
	n, err := c.compileExpr(s.Value)
	if err != nil {
		return err
	}
	return v.Assign(n)
}

// --- item 7: variable declaration ----------------------------------------

var declKinds = map[string]value.Kind{
	"boolean": value.Boolean,
	"integer": value.Integer,
	"number":  value.Number,
	"string":  value.String,
}

func (c *Compiler) compileDecl(s *parser.Decl) error {
	kind, ok := declKinds[s.Kind]
	if !ok {
		return errors.NewDeviceError("unknown declared kind %q", s.Kind)
	}
	v, err := c.reg.DefineVariable(s.Name, kind)
	if err != nil {
		return err
	}
	if s.Init == nil {
		return nil
	}
	n, err := c.compileExpr(s.Init)
	if err != nil {
		return err
	}
	return v.Assign(n)
}

// --- item 8: routine definition -------------------------------------------

func (c *Compiler) compileRoutineDef(s *parser.RoutineDef) error {
	if _, exists := c.reg.Routine(s.Name); exists {
		return errors.NewDuplicate("routine %q already exists", s.Name)
	}
	actions, err := c.compileActions(s.Actions)
	if err != nil {
		return err
	}
	return c.reg.RegisterRoutine(s.Name, routine.New(s.Name, actions))
}

// --- item 9: rule definition ---------------------------------------------

func (c *Compiler) compileRuleDef(s *parser.RuleDef) error {
	cond, err := c.compileExpr(s.Condition)
	if err != nil {
		return err
	}
	if cond.ResultKind() != value.Boolean {
		return errors.NewTypeMismatch("rule condition must be boolean, got %s", cond.ResultKind())
	}
	actions, err := c.compileActions(s.Actions)
	if err != nil {
		return err
	}
	anon := routine.New(fmt.Sprintf("<rule-%d>", len(c.reg.Rules())), actions)
	c.reg.AddRule(rule.New(cond, anon))
	return nil
}

// --- actions --------------------------------------------------------------

func (c *Compiler) compileActions(parsed []parser.Action) ([]action.Action, error) {
	out := make([]action.Action, len(parsed))
	for i, a := range parsed {
		compiled, err := c.compileAction(a)
		if err != nil {
			return nil, err
		}
		out[i] = compiled
	}
	return out, nil
}

func (c *Compiler) compileAction(a parser.Action) (action.Action, error) {
	switch n := a.(type) {
	case *parser.MethodCallAction:
		m, ok := c.reg.Module(n.Target)
		if !ok {
			return nil, errors.NewUnknownName("unknown module %q", n.Target)
		}
		if n.Method == "shadow" {
			if len(n.Args) != 1 {
				return nil, errors.NewArityMismatch("shadow takes exactly one module argument")
			}
			other, err := c.resolveModuleArg(n.Args[0])
			if err != nil {
				return nil, err
			}
			return &action.Func{Fn: func() error { return m.Shadow(other) }}, nil
		}
		args, err := c.compileExprList(n.Args)
		if err != nil {
			return nil, err
		}
		return &action.MethodCall{Target: m, Method: n.Method, Args: args}, nil
	case *parser.PropertyAssignAction:
		m, ok := c.reg.Module(n.Module)
		if !ok {
			return nil, errors.NewUnknownName("unknown module %q", n.Module)
		}
		e, err := c.compileExpr(n.Value)
		if err != nil {
			return nil, err
		}
		return &action.PropertyAssignment{Target: m, Name: n.Property, Expr: e}, nil
	case *parser.VarAssignAction:
		v, ok := c.reg.LookupVariable(n.Name)
		if !ok {
			return nil, errors.NewUnknownName("unknown variable %q", n.Name)
		}
		e, err := c.compileExpr(n.Value)
		if err != nil {
			return nil, err
		}
		return &action.VariableAssignment{Var: v, Expr: e}, nil
	case *parser.AwaitConditionAction:
		e, err := c.compileExpr(n.Cond)
		if err != nil {
			return nil, err
		}
		if e.ResultKind() != value.Boolean {
			return nil, errors.NewTypeMismatch("await condition must be boolean, got %s", e.ResultKind())
		}
		return &action.AwaitCondition{Cond: e}, nil
	case *parser.AwaitRoutineAction:
		rt, ok := c.reg.Routine(n.Target)
		if !ok {
			return nil, errors.NewUnknownName("unknown routine %q", n.Target)
		}
		return &action.AwaitRoutine{Inner: rt}, nil
	case *parser.RoutineCallAction:
		rt, ok := c.reg.Routine(n.Target)
		if !ok {
			return nil, errors.NewUnknownName("unknown routine %q", n.Target)
		}
		return &action.RoutineCall{Target: rt}, nil
	default:
		return nil, errors.NewDeviceError("unhandled action type %T", a)
	}
}

func (c *Compiler) compileExprList(exprs []parser.Expr) ([]expr.Node, error) {
	out := make([]expr.Node, len(exprs))
	for i, e := range exprs {
		n, err := c.compileExpr(e)
		if err != nil {
			return nil, err
		}
		out[i] = n
	}
	return out, nil
}

// --- expressions ------------------------------------------------------

func (c *Compiler) compileExpr(e parser.Expr) (expr.Node, error) {
	switch n := e.(type) {
	case *parser.Literal:
		return expr.NewLiteral(n.Value), nil
	case *parser.Ident:
		if v, ok := c.reg.LookupVariable(n.Name); ok {
			return expr.NewVariableRef(v), nil
		}
		return nil, errors.NewUnknownName("unknown name %q", n.Name)
	case *parser.PropertyAccess:
		m, ok := c.reg.Module(n.Module)
		if !ok {
			return nil, errors.NewUnknownName("unknown module %q", n.Module)
		}
		v, err := m.GetProperty(n.Property)
		if err != nil {
			return nil, err
		}
		return expr.NewPropertyRef(n.Module, n.Property, v), nil
	case *parser.Unary:
		return c.compileUnary(n)
	case *parser.Binary:
		return c.compileBinary(n)
	default:
		return nil, errors.NewDeviceError("unhandled expression type %T", e)
	}
}

func (c *Compiler) compileUnary(n *parser.Unary) (expr.Node, error) {
	operand, err := c.compileExpr(n.Operand)
	if err != nil {
		return nil, err
	}
	switch n.Op {
	case "-":
		return expr.NewNegate(operand)
	case "not":
		return expr.NewNot(operand)
	default:
		return nil, errors.NewDeviceError("unknown unary operator %q", n.Op)
	}
}

func (c *Compiler) compileBinary(n *parser.Binary) (expr.Node, error) {
	left, err := c.compileExpr(n.Left)
	if err != nil {
		return nil, err
	}
	right, err := c.compileExpr(n.Right)
	if err != nil {
		return nil, err
	}
	switch n.Op {
	case "+":
		return expr.NewAdd(left, right)
	case "-":
		return expr.NewSubtract(left, right)
	case "*":
		return expr.NewMultiply(left, right)
	case "/":
		return expr.NewDivide(left, right)
	case "mod":
		return expr.NewModulo(left, right)
	case "//":
		return expr.NewFloorDivide(left, right)
	case "**":
		return expr.NewPower(left, right)
	case "&":
		return expr.NewBitAnd(left, right)
	case "|":
		return expr.NewBitOr(left, right)
	case "^":
		return expr.NewBitXor(left, right)
	case "<<":
		return expr.NewShiftLeft(left, right)
	case ">>":
		return expr.NewShiftRight(left, right)
	case "<":
		return expr.NewLess(left, right)
	case "<=":
		return expr.NewLessEqual(left, right)
	case ">":
		return expr.NewGreater(left, right)
	case ">=":
		return expr.NewGreaterEqual(left, right)
	case "==":
		return expr.NewEqual(left, right)
	case "!=":
		return expr.NewUnequal(left, right)
	case "and":
		return expr.NewAnd(left, right)
	case "or":
		return expr.NewOr(left, right)
	default:
		return nil, errors.NewDeviceError("unknown binary operator %q", n.Op)
	}
}
