package entity

import (
	"fmt"
	"strings"
)

// Hop is one join step in a multi-hop association chain, written as
// "table(lhs=rhs)". LHS is a column on the joined table; RHS is a dotted
// path on the previous step, optionally carrying an explicit alias as
// "path,alias".
type Hop struct {
	Table string
	LHS   string
	RHS   string
}

func (h Hop) String() string {
	return fmt.Sprintf("%s(%s=%s)", h.Table, h.LHS, h.RHS)
}

// RHSPath returns the dotted path portion of RHS, without any alias.
func (h Hop) RHSPath() string {
	path, _ := SplitRHS(h.RHS)
	return path
}

// RHSAlias returns the explicit alias attached to RHS, if any.
func (h Hop) RHSAlias() (string, bool) {
	_, alias := SplitRHS(h.RHS)
	return alias, alias != ""
}

// SplitRHS splits a hop right-hand side "path[,alias]".
func SplitRHS(rhs string) (path, alias string) {
	if p, a, ok := strings.Cut(rhs, ","); ok {
		return strings.TrimSpace(p), strings.TrimSpace(a)
	}
	return strings.TrimSpace(rhs), ""
}

// LastIdent returns the final segment of a dotted path.
func LastIdent(path string) string {
	if i := strings.LastIndexByte(path, '.'); i >= 0 {
		return path[i+1:]
	}
	return path
}

// ParseHop parses one hop literal "table(lhs=rhs)".
func ParseHop(s string) (Hop, error) {
	part := strings.TrimSpace(s)
	table, rest, ok := strings.Cut(part, "(")
	if !ok {
		return Hop{}, fmt.Errorf("invalid hop segment %q: missing '('", part)
	}
	rest, ok = strings.CutSuffix(rest, ")")
	if !ok {
		return Hop{}, fmt.Errorf("invalid hop segment %q: missing ')'", part)
	}
	lhs, rhs, ok := strings.Cut(rest, "=")
	if !ok {
		return Hop{}, fmt.Errorf("invalid predicate %q: expected lhs=rhs", rest)
	}
	table = strings.TrimSpace(table)
	lhs = strings.TrimSpace(lhs)
	rhs = strings.TrimSpace(rhs)
	if table == "" {
		return Hop{}, fmt.Errorf("empty table name in hop segment %q", part)
	}
	if lhs == "" || rhs == "" {
		return Hop{}, fmt.Errorf("empty lhs/rhs in hop segment %q", part)
	}
	return Hop{Table: table, LHS: lhs, RHS: rhs}, nil
}

// ParseHops parses a chain of hop literals joined with "->", ordered from
// the association owner toward the target.
func ParseHops(s string) ([]Hop, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	parts := strings.Split(s, "->")
	hops := make([]Hop, 0, len(parts))
	for _, part := range parts {
		h, err := ParseHop(part)
		if err != nil {
			return nil, err
		}
		hops = append(hops, h)
	}
	return hops, nil
}
