package structured

import (
	"context"
	"fmt"
	"time"
)

// QuerySchema describes the tables and columns the structured query path may
// reference. The generator's validator checks identifiers against this map;
// the prompt builder renders it as schema context.
var QuerySchema = map[string][]string{
	"documents":          {"id", "entity", "doc_type", "period", "source_url", "content_type", "pages", "retrieved_at"},
	"chunks":             {"doc_id", "ordinal", "section", "content", "start_char", "end_char", "page"},
	"structured_records": {"doc_id", "page", "caption", "columns", "rows", "confidence"},
}

// ResultSet is the materialized output of a generated read-only query.
type ResultSet struct {
	Columns []string   `json:"columns"`
	Rows    [][]string `json:"rows"`
}

// Empty reports whether the query matched nothing.
func (r ResultSet) Empty() bool { return len(r.Rows) == 0 }

const queryTimeout = 300 * time.Millisecond

// Query executes a validated, parameterized read-only statement and
// materializes every value as text for answer synthesis. Callers must run
// the statement through validation first; this method only enforces the
// execution-time budget.
func (s *Store) Query(ctx context.Context, query string, args ...any) (ResultSet, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return ResultSet{}, fmt.Errorf("structured: query: %w", err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return ResultSet{}, fmt.Errorf("structured: columns: %w", err)
	}

	out := ResultSet{Columns: cols}
	for rows.Next() {
		vals := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return ResultSet{}, fmt.Errorf("structured: scan: %w", err)
		}
		row := make([]string, len(cols))
		for i, v := range vals {
			row[i] = renderValue(v)
		}
		out.Rows = append(out.Rows, row)
	}
	return out, rows.Err()
}

func renderValue(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case []byte:
		return string(t)
	case time.Time:
		return t.UTC().Format(time.RFC3339)
	default:
		return fmt.Sprint(t)
	}
}
