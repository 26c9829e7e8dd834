package expr

import "go.starlark.net/syntax"

// freeIdents collects every identifier an expression reads as a variable.
// Attribute names after a dot, keyword-argument names and names bound by
// comprehension clauses or lambda parameters are not variable reads.
func freeIdents(e syntax.Expr) map[string]struct{} {
	w := &freeWalker{free: map[string]struct{}{}, bound: map[string]int{}}
	w.expr(e)
	return w.free
}

type freeWalker struct {
	free  map[string]struct{}
	bound map[string]int // name -> binding depth count
}

func (w *freeWalker) bind(names []string) {
	for _, n := range names {
		w.bound[n]++
	}
}

func (w *freeWalker) unbind(names []string) {
	for _, n := range names {
		if w.bound[n]--; w.bound[n] == 0 {
			delete(w.bound, n)
		}
	}
}

func (w *freeWalker) expr(e syntax.Expr) {
	switch x := e.(type) {
	case nil:
	case *syntax.Ident:
		if w.bound[x.Name] == 0 {
			w.free[x.Name] = struct{}{}
		}
	case *syntax.Literal:
	case *syntax.ParenExpr:
		w.expr(x.X)
	case *syntax.UnaryExpr:
		w.expr(x.X)
	case *syntax.BinaryExpr:
		w.expr(x.X)
		w.expr(x.Y)
	case *syntax.DotExpr:
		w.expr(x.X) // x.Name is an attribute, not a variable
	case *syntax.IndexExpr:
		w.expr(x.X)
		w.expr(x.Y)
	case *syntax.SliceExpr:
		w.expr(x.X)
		w.expr(x.Lo)
		w.expr(x.Hi)
		w.expr(x.Step)
	case *syntax.CondExpr:
		w.expr(x.Cond)
		w.expr(x.True)
		w.expr(x.False)
	case *syntax.CallExpr:
		w.expr(x.Fn)
		for _, arg := range x.Args {
			// name=value keyword arguments: the name is not a read.
			if kw, ok := arg.(*syntax.BinaryExpr); ok && kw.Op == syntax.EQ {
				if _, isIdent := kw.X.(*syntax.Ident); isIdent {
					w.expr(kw.Y)
					continue
				}
			}
			w.expr(arg)
		}
	case *syntax.ListExpr:
		for _, el := range x.List {
			w.expr(el)
		}
	case *syntax.TupleExpr:
		for _, el := range x.List {
			w.expr(el)
		}
	case *syntax.DictExpr:
		for _, entry := range x.List {
			w.expr(entry)
		}
	case *syntax.DictEntry:
		w.expr(x.Key)
		w.expr(x.Value)
	case *syntax.Comprehension:
		// Loop variables bind for the body and later clauses; the first
		// iterable is evaluated in the enclosing scope.
		var names []string
		for _, clause := range x.Clauses {
			switch c := clause.(type) {
			case *syntax.ForClause:
				w.expr(c.X)
				vars := targetNames(c.Vars)
				w.bind(vars)
				names = append(names, vars...)
			case *syntax.IfClause:
				w.expr(c.Cond)
			}
		}
		w.expr(x.Body)
		w.unbind(names)
	case *syntax.LambdaExpr:
		var names []string
		for _, p := range x.Params {
			switch param := p.(type) {
			case *syntax.Ident:
				names = append(names, param.Name)
			case *syntax.BinaryExpr: // param with default
				if id, ok := param.X.(*syntax.Ident); ok {
					names = append(names, id.Name)
				}
				w.expr(param.Y)
			case *syntax.UnaryExpr: // *args / **kwargs
				if id, ok := param.X.(*syntax.Ident); ok {
					names = append(names, id.Name)
				}
			}
		}
		w.bind(names)
		w.expr(x.Body)
		w.unbind(names)
	}
}

func targetNames(e syntax.Expr) []string {
	switch x := e.(type) {
	case *syntax.Ident:
		return []string{x.Name}
	case *syntax.TupleExpr:
		var out []string
		for _, el := range x.List {
			out = append(out, targetNames(el)...)
		}
		return out
	case *syntax.ListExpr:
		var out []string
		for _, el := range x.List {
			out = append(out, targetNames(el)...)
		}
		return out
	case *syntax.ParenExpr:
		return targetNames(x.X)
	}
	return nil
}
