// Package expr provides the expression evaluator used for templated
// fields. Expressions are Starlark; the environment exposes a fixed set of
// builtin globals (query, filter, limit, offset, ulid) and every other
// name referenced by an expression is a free variable supplied by the
// evaluation context.
package expr

import (
	"fmt"
	"sort"
	"sync"

	"go.starlark.net/starlark"
	"go.starlark.net/syntax"

	"github.com/rubeniskov/ripel/pkg/query"
	"github.com/rubeniskov/ripel/pkg/value"
)

// Context is the named-field-access capability an expression evaluates
// against: "get field by name", yielding a dynamic value.
type Context interface {
	Field(name string) (value.Value, bool)
}

// ObjectContext adapts an object container to the Context capability.
func ObjectContext(obj value.Object) Context {
	return objectContext{obj: obj}
}

type objectContext struct {
	obj value.Object
}

func (c objectContext) Field(name string) (value.Value, bool) {
	return c.obj.Get(name)
}

// SyntaxError reports an expression that failed to compile.
type SyntaxError struct {
	Expr    string
	Message string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("cannot compile expression %q: %s", e.Expr, e.Message)
}

// EvalError reports an expression that failed to evaluate.
type EvalError struct {
	Expr    string
	Message string
}

func (e *EvalError) Error() string {
	return fmt.Sprintf("error evaluating %q: %s", e.Expr, e.Message)
}

// Environment holds the builtin globals expressions may reference.
// It is safe for concurrent use after construction.
type Environment struct {
	globals starlark.StringDict
}

// NewEnvironment creates an environment with the default builtins.
func NewEnvironment() *Environment {
	return &Environment{globals: defaultGlobals()}
}

// Globals returns the builtin globals dictionary.
func (e *Environment) Globals() starlark.StringDict {
	return e.globals
}

// GlobalNames returns the set of builtin global names. Free-variable
// extraction subtracts these.
func (e *Environment) GlobalNames() map[string]struct{} {
	names := make(map[string]struct{}, len(e.globals))
	for name := range e.globals {
		names[name] = struct{}{}
	}
	return names
}

// Compile parses expression text. The returned expression is immutable and
// safe to evaluate concurrently.
func (e *Environment) Compile(text string) (*Expression, error) {
	node, err := syntax.ParseExpr("<expr>", text, 0)
	if err != nil {
		return nil, &SyntaxError{Expr: text, Message: err.Error()}
	}
	return &Expression{env: e, text: text, node: node}, nil
}

// Expression is one compiled expression bound to its environment.
type Expression struct {
	env  *Environment
	text string
	node syntax.Expr

	freeOnce sync.Once
	free     []string
}

// Text returns the original expression source.
func (x *Expression) Text() string { return x.text }

// FreeVariables returns, sorted, the names the expression references that
// are neither environment globals nor language universals. These are the
// values a Context must be able to supply.
func (x *Expression) FreeVariables() []string {
	x.freeOnce.Do(func() {
		seen := freeIdents(x.node)
		globals := x.env.GlobalNames()
		for name := range seen {
			if _, ok := globals[name]; ok {
				delete(seen, name)
				continue
			}
			if _, ok := starlark.Universe[name]; ok {
				delete(seen, name)
			}
		}
		x.free = make([]string, 0, len(seen))
		for name := range seen {
			x.free = append(x.free, name)
		}
		sort.Strings(x.free)
	})
	return x.free
}

// Eval evaluates the expression against ctx. Free variables missing from
// the context bind to none.
func (x *Expression) Eval(ctx Context) (value.Value, error) {
	out, err := x.evalRaw(ctx)
	if err != nil {
		return value.Value{}, err
	}
	got, err := fromStarlark(out)
	if err != nil {
		return value.Value{}, &EvalError{Expr: x.text, Message: err.Error()}
	}
	return got, nil
}

// EvalQuery evaluates an expression that is expected to build a query.
func (x *Expression) EvalQuery(ctx Context) (query.Query, error) {
	out, err := x.evalRaw(ctx)
	if err != nil {
		return query.Query{}, err
	}
	qv, ok := out.(*queryValue)
	if !ok {
		return query.Query{}, &EvalError{Expr: x.text, Message: fmt.Sprintf("expected a query result, got %s", out.Type())}
	}
	return qv.q, nil
}

func (x *Expression) evalRaw(ctx Context) (starlark.Value, error) {
	env := make(starlark.StringDict, len(x.env.globals)+len(x.FreeVariables()))
	for k, v := range x.env.globals {
		env[k] = v
	}
	for _, name := range x.FreeVariables() {
		sv := starlark.Value(starlark.None)
		if ctx != nil {
			if v, ok := ctx.Field(name); ok {
				sv = toStarlark(v)
			}
		}
		env[name] = sv
	}

	thread := &starlark.Thread{
		Name:  "expr",
		Print: func(_ *starlark.Thread, _ string) {},
	}
	out, err := starlark.Eval(thread, "<expr>", x.text, env)
	if err != nil {
		return nil, &EvalError{Expr: x.text, Message: err.Error()}
	}
	return out, nil
}
