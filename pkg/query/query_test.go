package query

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rubeniskov/ripel/pkg/value"
)

func TestToSQLDefaultsToSelfWildcard(t *testing.T) {
	sql, binds, err := New("users").ToSQL()
	require.NoError(t, err)
	assert.Equal(t, "SELECT `self`.* FROM `users` AS self", sql)
	assert.Empty(t, binds)
}

func TestToSQLFullStatement(t *testing.T) {
	q := New("users").
		Filter(map[string]value.Value{"age": value.I64(30)}).
		OrderBy("name", true).
		Limit(10).
		Offset(5)
	q, err := q.Select("self.id", "self.name:alias_name")
	require.NoError(t, err)

	on, err := ParseOn("self.org_id = orgs.id")
	require.NoError(t, err)
	q = q.Join("orgs", "orgs", on)

	sql, binds, err := q.ToSQL()
	require.NoError(t, err)
	assert.Equal(t,
		"SELECT `self`.`id`, `self`.`name` AS `alias_name` FROM `users` AS self"+
			" INNER JOIN `orgs` AS `orgs` ON `self`.`org_id` = `orgs`.`id`"+
			" WHERE `age` = ? ORDER BY `name` ASC LIMIT ? OFFSET ?",
		sql)
	require.Len(t, binds, 3)
	assert.True(t, binds[0].Equal(value.I64(30)))
	assert.True(t, binds[1].Equal(value.I64(10)))
	assert.True(t, binds[2].Equal(value.I64(5)))
}

func TestFilterOrderIndependence(t *testing.T) {
	a := New("t").Filter(map[string]value.Value{"a": value.I64(1), "b": value.I64(2)})
	b := New("t").
		Filter(map[string]value.Value{"b": value.I64(2)}).
		Filter(map[string]value.Value{"a": value.I64(1)})

	sqlA, _, err := a.ToSQL()
	require.NoError(t, err)
	sqlB, _, err := b.ToSQL()
	require.NoError(t, err)
	assert.Equal(t, sqlA, sqlB)
}

func TestForksNeverMutateOriginal(t *testing.T) {
	base := New("t")
	baseSQL, _, err := base.ToSQL()
	require.NoError(t, err)

	withJoin, err := base.JoinText("other", "o", "self.x = o.y")
	require.NoError(t, err)
	withFilter := base.Filter(map[string]value.Value{"k": value.I64(1)})
	withLimit := base.Limit(3)

	// Forking off the same base twice must not alias join slices.
	fork2, err := base.JoinText("two", "t2", "self.x = t2.y")
	require.NoError(t, err)

	again, _, err := base.ToSQL()
	require.NoError(t, err)
	assert.Equal(t, baseSQL, again)

	j1, _, err := withJoin.ToSQL()
	require.NoError(t, err)
	assert.Contains(t, j1, "INNER JOIN `other`")
	assert.NotContains(t, j1, "`two`")

	j2, _, err := fork2.ToSQL()
	require.NoError(t, err)
	assert.Contains(t, j2, "INNER JOIN `two`")
	assert.NotContains(t, j2, "`other`")

	f, _, err := withFilter.ToSQL()
	require.NoError(t, err)
	assert.Contains(t, f, "WHERE `k` = ?")

	l, _, err := withLimit.ToSQL()
	require.NoError(t, err)
	assert.Contains(t, l, "LIMIT ?")
}

func TestToSQLRejectsInvalidIdentifiers(t *testing.T) {
	_, _, err := New("bad table").ToSQL()
	var cerr *CompileError
	require.ErrorAs(t, err, &cerr)

	_, _, err = New("t").OrderBy("drop;table", true).ToSQL()
	assert.Error(t, err)

	_, _, err = New("t").Filter(map[string]value.Value{"bad key": value.I64(1)}).ToSQL()
	assert.Error(t, err)
}

func TestFetchAllScansRowsToObjects(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	mock.ExpectQuery("SELECT `self`.* FROM `users` AS self WHERE `age` = ?").
		WithArgs(int64(30)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "score", "bio"}).
			AddRow(int64(1), "ana", 4.5, nil).
			AddRow(int64(2), "bob", 3.0, "hi"))

	q := New("users").Filter(map[string]value.Value{"age": value.I64(30)})
	rows, err := q.FetchAll(context.Background(), db)
	require.NoError(t, err)
	require.Len(t, rows, 2)

	id, _ := rows[0].Get("id")
	assert.True(t, id.Equal(value.I64(1)))
	name, _ := rows[0].Get("name")
	assert.True(t, name.Equal(value.String("ana")))
	bio, _ := rows[0].Get("bio")
	assert.True(t, bio.IsNone())

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFetchOne(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	mock.ExpectQuery("SELECT `self`.* FROM `users` AS self LIMIT ?").
		WithArgs(int64(1)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, ok, err := New("users").FetchOne(context.Background(), db)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFetchAllSurfacesTransportErrors(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	mock.ExpectQuery("SELECT `self`.* FROM `users` AS self").
		WillReturnError(assert.AnError)

	_, err = New("users").FetchAll(context.Background(), db)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "query failed")
}
