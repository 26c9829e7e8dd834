// Package query provides the compiled-query value: selectors, join ON
// clauses and an immutable, cheaply-forkable SELECT builder that compiles
// to one parameterized statement and executes it against a database/sql
// source, returning rows as value objects.
package query

import (
	"fmt"
	"regexp"
	"strings"
)

// CompileError reports an invalid identifier or a statement assembly
// failure, detected before any SQL text is produced or executed.
type CompileError struct {
	Msg string
}

func (e *CompileError) Error() string {
	return "compile: " + e.Msg
}

func compileErrf(format string, args ...any) *CompileError {
	return &CompileError{Msg: fmt.Sprintf(format, args...)}
}

var identSeg = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// ValidateIdent checks a dot-separated identifier path: every segment must
// start with an ASCII letter or underscore and continue alphanumeric or
// underscore.
func ValidateIdent(path string) error {
	if path == "" {
		return compileErrf("invalid identifier: empty")
	}
	for _, part := range strings.Split(path, ".") {
		if part == "" {
			return compileErrf("invalid identifier: empty segment in %q", path)
		}
		if !identSeg.MatchString(part) {
			return compileErrf("invalid identifier segment %q in %q", part, path)
		}
	}
	return nil
}

// quoteIdentPath renders a validated path as backticked parts: `a`.`b`.
func quoteIdentPath(path string) (string, error) {
	if err := ValidateIdent(path); err != nil {
		return "", err
	}
	parts := strings.Split(path, ".")
	for i, p := range parts {
		parts[i] = "`" + p + "`"
	}
	return strings.Join(parts, "."), nil
}
