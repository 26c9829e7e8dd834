package query

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func selSQL(t *testing.T, s string) string {
	t.Helper()
	sel, err := ParseSelector(s)
	require.NoError(t, err)
	sql, err := sel.SQL()
	require.NoError(t, err)
	return sql
}

func TestParseSelectorWildcards(t *testing.T) {
	assert.Equal(t, "*", selSQL(t, "*"))
	assert.Equal(t, "`self`.*", selSQL(t, "self.*"))

	sel, err := ParseSelector("self.*")
	require.NoError(t, err)
	assert.Equal(t, "self", sel.Source())
	assert.Equal(t, "*", sel.Column())
	assert.Empty(t, sel.Alias())
}

func TestParseSelectorColumns(t *testing.T) {
	assert.Equal(t, "`id`", selSQL(t, "id"))
	assert.Equal(t, "`self`.`id`", selSQL(t, "self.id"))
	assert.Equal(t, "`self`.`id` AS `the_id`", selSQL(t, "self.id:the_id"))
}

func TestParseSelectorTrimsWhitespace(t *testing.T) {
	assert.Equal(t, "*", selSQL(t, "  *  "))
	assert.Equal(t, "`self`.*", selSQL(t, "  self  .  *  "))
	assert.Equal(t, "`self`.`id` AS `the_id`", selSQL(t, " self . id : the_id "))
}

func TestParseSelectorRejections(t *testing.T) {
	bad := []string{
		"",
		"*:x",          // wildcard alias
		"self.*:x",     // wildcard alias with source
		"id:alias",     // alias without source
		"a.b.c",        // too many dots
		"a.b.c:alias",  // too many dots with alias
		"bad name",     // space
		"self.bad name",
		"self.id:bad alias",
		"sel;ect.id",
		"self.id:`oops`",
	}
	for _, in := range bad {
		t.Run(in, func(t *testing.T) {
			_, err := ParseSelector(in)
			assert.Error(t, err)
			if err != nil {
				var cerr *CompileError
				assert.ErrorAs(t, err, &cerr)
			}
		})
	}
}

func TestSelectorBuilderChain(t *testing.T) {
	sel := Sel("id").WithSource("self").WithAlias("x")
	sql, err := sel.SQL()
	require.NoError(t, err)
	assert.Equal(t, "`self`.`id` AS `x`", sql)

	_, err = Sel("*").WithAlias("x").SQL()
	assert.Error(t, err, "wildcard alias must fail at render too")
}
