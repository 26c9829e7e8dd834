package query

import (
	"regexp"
	"strings"

	"github.com/rubeniskov/ripel/pkg/value"
)

type rightKind int

const (
	rightIdent rightKind = iota // dotted identifier path
	rightNull
	rightNumber // original text, e.g. 1, 3.14, -2e10
	rightString // unquoted inner string, quoted on render
	rightParam  // bound statement parameter, renders "?"
)

// OnClause is one join predicate: <left> <op> <right>. The right operand is
// an identifier path, NULL, a literal, or a bound parameter. IS and IS NOT
// pair only with NULL.
type OnClause struct {
	left  string
	op    string // normalized: uppercase, single spaces
	rkind rightKind
	rtext string
	bind  value.Value
}

// On builds a clause from raw parts, parsing the right operand.
func On(left, op, right string) (OnClause, error) {
	nop, err := normalizeOp(op)
	if err != nil {
		return OnClause{}, err
	}
	rk, rt, err := parseRight(right)
	if err != nil {
		return OnClause{}, err
	}
	c := OnClause{left: left, op: nop, rkind: rk, rtext: rt}
	if err := c.validate(); err != nil {
		return OnClause{}, err
	}
	return c, nil
}

// OnParam builds a clause whose right operand is bound as a statement
// parameter rather than rendered into the SQL text.
func OnParam(left, op string, bind value.Value) (OnClause, error) {
	nop, err := normalizeOp(op)
	if err != nil {
		return OnClause{}, err
	}
	if nop == "IS" || nop == "IS NOT" {
		return OnClause{}, compileErrf("operator %q cannot take a bound parameter", nop)
	}
	c := OnClause{left: left, op: nop, rkind: rightParam, bind: bind}
	if err := ValidateIdent(left); err != nil {
		return OnClause{}, err
	}
	return c, nil
}

// Param returns the bound parameter, if the clause carries one.
func (c OnClause) Param() (value.Value, bool) {
	return c.bind, c.rkind == rightParam
}

// SQL renders the clause with quoting; bound parameters render as "?".
func (c OnClause) SQL() (string, error) {
	lq, err := quoteIdentPath(c.left)
	if err != nil {
		return "", err
	}
	switch c.rkind {
	case rightNull:
		switch c.op {
		case "IS":
			return lq + " IS NULL", nil
		case "IS NOT":
			return lq + " IS NOT NULL", nil
		default:
			return "", compileErrf("operator %q not valid with NULL", c.op)
		}
	case rightIdent:
		rq, err := quoteIdentPath(c.rtext)
		if err != nil {
			return "", err
		}
		return lq + " " + c.op + " " + rq, nil
	case rightNumber:
		return lq + " " + c.op + " " + c.rtext, nil
	case rightString:
		escaped := strings.ReplaceAll(c.rtext, "'", "''")
		return lq + " " + c.op + " '" + escaped + "'", nil
	default:
		return lq + " " + c.op + " ?", nil
	}
}

func (c OnClause) String() string {
	sql, err := c.SQL()
	if err != nil {
		return "<invalid on clause>"
	}
	return sql
}

// The symbolic operators match anywhere; IS / IS NOT require surrounding
// whitespace so identifiers containing "is" do not split.
var opRe = regexp.MustCompile(`(?i)\s+is\s+not\s+|\s+is\s+|<=|>=|<>|!=|=|<|>`)

// ParseOn parses ON-clause text "<left> <op> <right>".
func ParseOn(input string) (OnClause, error) {
	s := strings.TrimSpace(input)
	loc := opRe.FindStringIndex(s)
	if loc == nil {
		return OnClause{}, compileErrf("invalid ON clause: %q", input)
	}
	left := strings.TrimSpace(s[:loc[0]])
	op := strings.TrimSpace(s[loc[0]:loc[1]])
	right := strings.TrimSpace(s[loc[1]:])
	if left == "" || right == "" {
		return OnClause{}, compileErrf("invalid ON clause: %q", input)
	}
	return On(left, op, right)
}

func normalizeOp(op string) (string, error) {
	norm := strings.Join(strings.Fields(strings.ToUpper(strings.TrimSpace(op))), " ")
	switch norm {
	case "=", "!=", "<>", "<", "<=", ">", ">=", "IS", "IS NOT":
		return norm, nil
	}
	return "", compileErrf("unsupported operator %q", op)
}

func parseRight(raw string) (rightKind, string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, "", compileErrf("empty right operand")
	}
	if strings.EqualFold(raw, "NULL") {
		return rightNull, "", nil
	}
	if len(raw) >= 2 {
		first, last := raw[0], raw[len(raw)-1]
		if (first == '\'' && last == '\'') || (first == '"' && last == '"') {
			return rightString, raw[1 : len(raw)-1], nil
		}
	}
	if raw[0] == '+' || raw[0] == '-' || (raw[0] >= '0' && raw[0] <= '9') {
		if strings.IndexFunc(raw, func(r rune) bool {
			return !(r >= '0' && r <= '9') && !strings.ContainsRune("+-.eE", r)
		}) < 0 {
			return rightNumber, raw, nil
		}
	}
	if err := ValidateIdent(raw); err != nil {
		return 0, "", err
	}
	return rightIdent, raw, nil
}

func (c OnClause) validate() error {
	if err := ValidateIdent(c.left); err != nil {
		return err
	}
	if c.rkind == rightNull && c.op != "IS" && c.op != "IS NOT" {
		return compileErrf("only IS / IS NOT allowed with NULL in ON clause")
	}
	if c.rkind != rightNull && (c.op == "IS" || c.op == "IS NOT") {
		return compileErrf("IS / IS NOT pair only with NULL")
	}
	return nil
}
