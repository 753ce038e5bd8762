package structured

import (
	"testing"
	"time"
)

func TestRenderValue(t *testing.T) {
	ts := time.Date(2023, 9, 30, 12, 0, 0, 0, time.UTC)
	cases := []struct {
		in   any
		want string
	}{
		{nil, ""},
		{[]byte("bytes"), "bytes"},
		{int64(42), "42"},
		{3.14, "3.14"},
		{"text", "text"},
		{ts, "2023-09-30T12:00:00Z"},
	}
	for _, tc := range cases {
		if got := renderValue(tc.in); got != tc.want {
			t.Errorf("renderValue(%v) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestQuerySchemaCoversAllTables(t *testing.T) {
	for _, table := range []string{"documents", "chunks", "structured_records"} {
		cols, ok := QuerySchema[table]
		if !ok || len(cols) == 0 {
			t.Errorf("schema missing table %s", table)
		}
	}
	// The sync-invariant key columns must be queryable.
	found := map[string]bool{}
	for _, c := range QuerySchema["chunks"] {
		found[c] = true
	}
	if !found["doc_id"] || !found["ordinal"] {
		t.Error("chunks must expose doc_id and ordinal")
	}
}

func TestResultSetEmpty(t *testing.T) {
	if !(ResultSet{Columns: []string{"a"}}).Empty() {
		t.Error("no rows means empty")
	}
	if (ResultSet{Rows: [][]string{{"1"}}}).Empty() {
		t.Error("rows mean not empty")
	}
}
