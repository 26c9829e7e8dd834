package query

import "strings"

// Selector addresses one projected column: `*`, `source.*`, `column`,
// `source.column` or `source.column:alias`. Wildcards cannot carry an
// alias, and an alias is accepted only when a source is given.
type Selector struct {
	source string
	column string
	alias  string
}

// Sel builds a selector for a bare column.
func Sel(column string) Selector {
	return Selector{column: column}
}

// WithSource returns a copy addressing the column on source.
func (s Selector) WithSource(source string) Selector {
	s.source = source
	return s
}

// WithAlias returns a copy labeled with alias.
func (s Selector) WithAlias(alias string) Selector {
	s.alias = alias
	return s
}

func (s Selector) Source() string { return s.source }
func (s Selector) Column() string { return s.column }
func (s Selector) Alias() string  { return s.alias }

// SQL renders the selector with quoting.
func (s Selector) SQL() (string, error) {
	if s.column == "*" {
		if s.alias != "" {
			return "", compileErrf("cannot alias a wildcard selector (`*` or `src.*`)")
		}
		if s.source == "" {
			return "*", nil
		}
		src, err := quoteIdentPath(s.source)
		if err != nil {
			return "", err
		}
		return src + ".*", nil
	}

	expr, err := quoteIdentPath(s.column)
	if err != nil {
		return "", err
	}
	if s.source != "" {
		src, err := quoteIdentPath(s.source)
		if err != nil {
			return "", err
		}
		expr = src + "." + expr
	}
	if s.alias != "" {
		a, err := quoteIdentPath(s.alias)
		if err != nil {
			return "", err
		}
		expr += " AS " + a
	}
	return expr, nil
}

func (s Selector) String() string {
	sql, err := s.SQL()
	if err != nil {
		return "<invalid selector>"
	}
	return sql
}

// ParseSelector parses selector text. Whitespace around parts is tolerated.
func ParseSelector(input string) (Selector, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return Selector{}, compileErrf("empty selector")
	}

	lhs := input
	alias := ""
	if l, a, ok := cutLast(input, ':'); ok {
		a = strings.TrimSpace(a)
		if a == "" {
			return Selector{}, compileErrf("empty alias after ':' in %q", input)
		}
		if err := ValidateIdent(a); err != nil {
			return Selector{}, err
		}
		lhs, alias = strings.TrimSpace(l), a
	}

	if lhs == "*" {
		if alias != "" {
			return Selector{}, compileErrf("cannot alias a wildcard selector (`*` or `src.*`)")
		}
		return Selector{column: "*"}, nil
	}

	parts := strings.Split(lhs, ".")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	switch len(parts) {
	case 1:
		if alias != "" {
			return Selector{}, compileErrf("alias requires a source: use source.column:alias")
		}
		if err := ValidateIdent(parts[0]); err != nil {
			return Selector{}, err
		}
		return Selector{column: parts[0]}, nil
	case 2:
		src, col := parts[0], parts[1]
		if src == "" || col == "" {
			return Selector{}, compileErrf("empty source/column in %q", input)
		}
		if err := ValidateIdent(src); err != nil {
			return Selector{}, err
		}
		if col == "*" {
			if alias != "" {
				return Selector{}, compileErrf("cannot alias a wildcard selector (`*` or `src.*`)")
			}
			return Selector{source: src, column: "*"}, nil
		}
		if err := ValidateIdent(col); err != nil {
			return Selector{}, err
		}
		return Selector{source: src, column: col, alias: alias}, nil
	default:
		return Selector{}, compileErrf("selector supports at most one dot: source.column or source.*")
	}
}

// cutLast splits around the last occurrence of sep.
func cutLast(s string, sep byte) (before, after string, found bool) {
	if i := strings.LastIndexByte(s, sep); i >= 0 {
		return s[:i], s[i+1:], true
	}
	return s, "", false
}
