package policyengine

import (
	"fmt"
	"strings"
)

// ============================================================================
// EXPRESSION SANDBOX (evaluation)
// ============================================================================
//
// Conditions are parsed into an AST whose node set only contains the
// whitelisted grammar: literals, user/resource/ctx attribute references,
// comparisons, "in" membership, and/or/not, integer arithmetic and
// len(). A disallowed construct cannot evaluate because it cannot parse.

// Env is the closed attribute environment an expression runs against.
// Only the user, resource and ctx namespaces exist; nothing outside the
// supplied records is reachable.
type Env struct {
	User     *User
	Resource *Resource
	Ctx      Context
}

// Lookup resolves namespace.field. Integer widths are normalized to
// int64 so the evaluator deals with a single numeric kind.
func (e *Env) Lookup(ns, field string) (any, error) {
	var (
		v  any
		ok bool
	)
	switch ns {
	case "user":
		v, ok = e.User.Attr(field)
	case "resource":
		v, ok = e.Resource.Attr(field)
	case "ctx":
		if e.Ctx != nil {
			v, ok = e.Ctx[field]
		}
	}
	if !ok {
		return nil, &LookupError{Namespace: ns, Field: field}
	}
	switch n := v.(type) {
	case string, bool, int64:
		return n, nil
	case int:
		return int64(n), nil
	case int32:
		return int64(n), nil
	}
	return nil, &EvalError{Msg: fmt.Sprintf("attribute %s.%s has unsupported type %T", ns, field, v)}
}

// Expression is a parsed, immutable sandbox program. Evaluation is pure
// and side-effect-free, so a single Expression is safe for concurrent
// use against any number of environments.
type Expression struct {
	src  string
	root exprNode
}

func (x *Expression) String() string { return x.src }

// Evaluate runs the expression against env. The result must be a
// boolean; a non-boolean result, a missing attribute or a type fault is
// returned as an error for the caller to treat as non-match.
func (x *Expression) Evaluate(env *Env) (bool, error) {
	v, err := x.root.eval(env)
	if err != nil {
		return false, err
	}
	b, ok := v.(bool)
	if !ok {
		return false, &EvalError{Msg: fmt.Sprintf("expression %q does not yield a boolean", x.src)}
	}
	return b, nil
}

// Evaluate parses and evaluates expression in one call. Collaborators
// validating policies at load time use this directly; hot paths compile
// once with CompileExpression instead.
func Evaluate(expression string, env *Env) (bool, error) {
	x, err := CompileExpression(expression)
	if err != nil {
		return false, err
	}
	return x.Evaluate(env)
}

// ============================================================================
// AST NODES
// ============================================================================

type exprNode interface {
	eval(env *Env) (any, error)
}

type litNode struct{ val any }

func (n *litNode) eval(*Env) (any, error) { return n.val, nil }

type attrNode struct{ ns, field string }

func (n *attrNode) eval(env *Env) (any, error) { return env.Lookup(n.ns, n.field) }

type lenNode struct{ arg exprNode }

func (n *lenNode) eval(env *Env) (any, error) {
	v, err := n.arg.eval(env)
	if err != nil {
		return nil, err
	}
	s, ok := v.(string)
	if !ok {
		return nil, &EvalError{Msg: fmt.Sprintf("len expects a string, got %T", v)}
	}
	return int64(len(s)), nil
}

type notNode struct{ arg exprNode }

func (n *notNode) eval(env *Env) (any, error) {
	v, err := n.arg.eval(env)
	if err != nil {
		return nil, err
	}
	b, ok := v.(bool)
	if !ok {
		return nil, &EvalError{Msg: fmt.Sprintf("not expects a boolean, got %T", v)}
	}
	return !b, nil
}

// boolNode is a short-circuiting and/or.
type boolNode struct {
	or          bool
	left, right exprNode
}

func (n *boolNode) eval(env *Env) (any, error) {
	l, err := n.left.eval(env)
	if err != nil {
		return nil, err
	}
	lb, ok := l.(bool)
	if !ok {
		return nil, &EvalError{Msg: fmt.Sprintf("boolean operator expects booleans, got %T", l)}
	}
	if n.or && lb {
		return true, nil
	}
	if !n.or && !lb {
		return false, nil
	}
	r, err := n.right.eval(env)
	if err != nil {
		return nil, err
	}
	rb, ok := r.(bool)
	if !ok {
		return nil, &EvalError{Msg: fmt.Sprintf("boolean operator expects booleans, got %T", r)}
	}
	return rb, nil
}

// cmpNode holds a chain like 8 <= ctx.hour < 18: pairs are compared
// left to right and the chain is true iff every pair holds.
type cmpNode struct {
	operands []exprNode
	ops      []string
}

func (n *cmpNode) eval(env *Env) (any, error) {
	left, err := n.operands[0].eval(env)
	if err != nil {
		return nil, err
	}
	for i, op := range n.ops {
		right, err := n.operands[i+1].eval(env)
		if err != nil {
			return nil, err
		}
		ok, err := compareValues(op, left, right)
		if err != nil {
			return nil, err
		}
		if !ok {
			return false, nil
		}
		left = right
	}
	return true, nil
}

type arithNode struct {
	op          byte // + - * /
	left, right exprNode
}

func (n *arithNode) eval(env *Env) (any, error) {
	l, err := n.left.eval(env)
	if err != nil {
		return nil, err
	}
	r, err := n.right.eval(env)
	if err != nil {
		return nil, err
	}
	li, ok1 := l.(int64)
	ri, ok2 := r.(int64)
	if !ok1 || !ok2 {
		return nil, &EvalError{Msg: fmt.Sprintf("arithmetic expects integers, got %T and %T", l, r)}
	}
	switch n.op {
	case '+':
		return li + ri, nil
	case '-':
		return li - ri, nil
	case '*':
		return li * ri, nil
	default:
		if ri == 0 {
			return nil, &EvalError{Msg: "division by zero"}
		}
		return li / ri, nil
	}
}

type negNode struct{ arg exprNode }

func (n *negNode) eval(env *Env) (any, error) {
	v, err := n.arg.eval(env)
	if err != nil {
		return nil, err
	}
	i, ok := v.(int64)
	if !ok {
		return nil, &EvalError{Msg: fmt.Sprintf("unary minus expects an integer, got %T", v)}
	}
	return -i, nil
}

// compareValues applies one comparison operator to two scalar values.
// Operands must be of the same kind; "in" is a substring test.
func compareValues(op string, a, b any) (bool, error) {
	if op == "in" {
		needle, ok1 := a.(string)
		hay, ok2 := b.(string)
		if !ok1 || !ok2 {
			return false, &EvalError{Msg: fmt.Sprintf("in expects string operands, got %T and %T", a, b)}
		}
		return strings.Contains(hay, needle), nil
	}
	switch av := a.(type) {
	case bool:
		bv, ok := b.(bool)
		if !ok {
			return false, cmpMismatch(op, a, b)
		}
		switch op {
		case "==":
			return av == bv, nil
		case "!=":
			return av != bv, nil
		}
		return false, &EvalError{Msg: "booleans have no ordering"}
	case int64:
		bv, ok := b.(int64)
		if !ok {
			return false, cmpMismatch(op, a, b)
		}
		switch op {
		case "==":
			return av == bv, nil
		case "!=":
			return av != bv, nil
		case "<":
			return av < bv, nil
		case "<=":
			return av <= bv, nil
		case ">":
			return av > bv, nil
		default:
			return av >= bv, nil
		}
	case string:
		bv, ok := b.(string)
		if !ok {
			return false, cmpMismatch(op, a, b)
		}
		switch op {
		case "==":
			return av == bv, nil
		case "!=":
			return av != bv, nil
		case "<":
			return av < bv, nil
		case "<=":
			return av <= bv, nil
		case ">":
			return av > bv, nil
		default:
			return av >= bv, nil
		}
	}
	return false, cmpMismatch(op, a, b)
}

func cmpMismatch(op string, a, b any) error {
	return &EvalError{Msg: fmt.Sprintf("cannot apply %s to %T and %T", op, a, b)}
}
