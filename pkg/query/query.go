package query

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/rubeniskov/ripel/pkg/value"
)

// DB is the minimal data-source capability the compiled query executes
// against: parameterized statement execution returning named-column rows.
// *sql.DB satisfies it.
type DB interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// Join is one INNER JOIN step of a compiled query.
type Join struct {
	Table string
	On    []OnClause
	Alias string
}

// Query is an immutable snapshot of one assembled SELECT. Forking methods
// (Filter, Limit, Offset, OrderBy, Select, Join) return a new value and
// never mutate the original, so snapshots can be shared across goroutines.
type Query struct {
	table     string
	filters   map[string]value.Value
	limit     int
	hasLimit  bool
	offset    int
	hasOffset bool
	selectors []Selector
	orderCol  string
	orderAsc  bool
	hasOrder  bool
	joins     []Join
}

// New creates an empty query for a table.
func New(table string) Query {
	return Query{table: table}
}

// TableName returns the base table.
func (q Query) TableName() string { return q.table }

// Filter narrows the query by the given column→value equality predicates.
func (q Query) Filter(kv map[string]value.Value) Query {
	merged := make(map[string]value.Value, len(q.filters)+len(kv))
	for k, v := range q.filters {
		merged[k] = v
	}
	for k, v := range kv {
		merged[k] = v
	}
	q.filters = merged
	return q
}

// Limit caps the result to n rows.
func (q Query) Limit(n int) Query {
	q.limit, q.hasLimit = n, true
	return q
}

// Offset skips the first n rows.
func (q Query) Offset(n int) Query {
	q.offset, q.hasOffset = n, true
	return q
}

// OrderBy sorts the result by col.
func (q Query) OrderBy(col string, asc bool) Query {
	q.orderCol, q.orderAsc, q.hasOrder = col, asc, true
	return q
}

// Select replaces the projected columns, parsing each selector text.
func (q Query) Select(cols ...string) (Query, error) {
	sels := make([]Selector, 0, len(cols))
	for _, c := range cols {
		s, err := ParseSelector(c)
		if err != nil {
			return Query{}, err
		}
		sels = append(sels, s)
	}
	q.selectors = sels
	return q, nil
}

// SelectExact replaces the projected columns with already-built selectors.
func (q Query) SelectExact(sels ...Selector) Query {
	q.selectors = append([]Selector(nil), sels...)
	return q
}

// Join appends one INNER JOIN of table under alias with the given
// predicates.
func (q Query) Join(table, alias string, on ...OnClause) Query {
	joins := make([]Join, len(q.joins), len(q.joins)+1)
	copy(joins, q.joins)
	q.joins = append(joins, Join{
		Table: table,
		On:    append([]OnClause(nil), on...),
		Alias: alias,
	})
	return q
}

// JoinText is Join with ON-clause texts parsed per the on-clause grammar.
func (q Query) JoinText(table, alias string, on ...string) (Query, error) {
	clauses := make([]OnClause, 0, len(on))
	for _, s := range on {
		c, err := ParseOn(s)
		if err != nil {
			return Query{}, err
		}
		clauses = append(clauses, c)
	}
	return q.Join(table, alias, clauses...), nil
}

// ToSQL compiles the snapshot into one parameterized statement. Filter keys
// are applied in sorted order so an identical filter set always compiles to
// identical SQL text. Join parameters bind first, then filters, then
// limit/offset.
func (q Query) ToSQL() (string, []value.Value, error) {
	if err := ValidateIdent(q.table); err != nil {
		return "", nil, err
	}

	sel := "`self`.*"
	if len(q.selectors) > 0 {
		parts := make([]string, 0, len(q.selectors))
		for _, s := range q.selectors {
			p, err := s.SQL()
			if err != nil {
				return "", nil, err
			}
			parts = append(parts, p)
		}
		sel = strings.Join(parts, ", ")
	}

	var sb strings.Builder
	var binds []value.Value
	fmt.Fprintf(&sb, "SELECT %s FROM `%s` AS self", sel, q.table)

	for _, j := range q.joins {
		if err := ValidateIdent(j.Table); err != nil {
			return "", nil, err
		}
		preds := make([]string, 0, len(j.On))
		for _, c := range j.On {
			p, err := c.SQL()
			if err != nil {
				return "", nil, err
			}
			preds = append(preds, p)
			if bindVal, ok := c.Param(); ok {
				binds = append(binds, bindVal)
			}
		}
		if j.Alias == "" {
			fmt.Fprintf(&sb, " INNER JOIN `%s` ON %s", j.Table, strings.Join(preds, " AND "))
		} else {
			if err := ValidateIdent(j.Alias); err != nil {
				return "", nil, err
			}
			fmt.Fprintf(&sb, " INNER JOIN `%s` AS `%s` ON %s", j.Table, j.Alias, strings.Join(preds, " AND "))
		}
	}

	if len(q.filters) > 0 {
		keys := make([]string, 0, len(q.filters))
		for k := range q.filters {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		sb.WriteString(" WHERE ")
		for i, k := range keys {
			if i > 0 {
				sb.WriteString(" AND ")
			}
			kq, err := quoteIdentPath(k)
			if err != nil {
				return "", nil, err
			}
			sb.WriteString(kq)
			sb.WriteString(" = ?")
			binds = append(binds, q.filters[k])
		}
	}

	if q.hasOrder {
		oq, err := quoteIdentPath(q.orderCol)
		if err != nil {
			return "", nil, err
		}
		dir := "DESC"
		if q.orderAsc {
			dir = "ASC"
		}
		fmt.Fprintf(&sb, " ORDER BY %s %s", oq, dir)
	}
	if q.hasLimit {
		sb.WriteString(" LIMIT ?")
		binds = append(binds, value.I64(int64(q.limit)))
	}
	if q.hasOffset {
		sb.WriteString(" OFFSET ?")
		binds = append(binds, value.I64(int64(q.offset)))
	}

	return sb.String(), binds, nil
}

func (q Query) String() string {
	sql, _, err := q.ToSQL()
	if err != nil {
		return fmt.Sprintf("Query: <error: %v>", err)
	}
	return "Query: " + sql
}

// FetchAll executes the statement and returns every row as an object keyed
// by column name.
func (q Query) FetchAll(ctx context.Context, db DB) ([]value.Object, error) {
	sqlText, binds, err := q.ToSQL()
	if err != nil {
		return nil, err
	}
	args := make([]any, 0, len(binds))
	for _, b := range binds {
		a, err := b.Bind()
		if err != nil {
			return nil, err
		}
		args = append(args, a)
	}

	rows, err := db.QueryContext(ctx, sqlText, args...)
	if err != nil {
		return nil, fmt.Errorf("query failed: %s: %w", sqlText, err)
	}
	defer func() { _ = rows.Close() }()

	out, err := ScanObjects(rows)
	if err != nil {
		return nil, fmt.Errorf("query failed: %s: %w", sqlText, err)
	}
	return out, nil
}

// FetchOne executes the statement and returns the first row, reporting
// whether one existed.
func (q Query) FetchOne(ctx context.Context, db DB) (value.Object, bool, error) {
	rows, err := q.Limit(1).FetchAll(ctx, db)
	if err != nil {
		return value.Object{}, false, err
	}
	if len(rows) == 0 {
		return value.Object{}, false, nil
	}
	return rows[0], true, nil
}

// ScanObjects drains rows into objects keyed by column name, converting
// driver values into dynamic values.
func ScanObjects(rows *sql.Rows) ([]value.Object, error) {
	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	var out []value.Object
	for rows.Next() {
		raw := make([]any, len(cols))
		dest := make([]any, len(cols))
		for i := range raw {
			dest[i] = &raw[i]
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, err
		}
		obj := value.NewObject()
		for i, col := range cols {
			obj.Set(col, driverValue(raw[i]))
		}
		out = append(out, obj)
	}
	return out, rows.Err()
}

func driverValue(v any) value.Value {
	switch x := v.(type) {
	case time.Time:
		return value.String(x.UTC().Format(time.RFC3339))
	default:
		return value.FromAny(v)
	}
}
