package rag

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/FilingLensAI/filinglens-mvp/engine/domain"
	"github.com/FilingLensAI/filinglens-mvp/pkg/llm"
)

// GeneratedQuery is a validated, parameterized statement ready to execute.
type GeneratedQuery struct {
	SQL  string
	Args []any
}

// maxNestingDepth is the parenthesis depth beyond which a generated query is
// logged as a performance warning. Deep nesting is suspicious but not wrong.
const maxNestingDepth = 3

// sqlKeywords are the non-identifier words the validator accepts.
var sqlKeywords = map[string]bool{
	"select": true, "from": true, "where": true, "and": true, "or": true,
	"not": true, "in": true, "is": true, "null": true, "as": true,
	"order": true, "by": true, "asc": true, "desc": true, "limit": true,
	"offset": true, "group": true, "having": true, "distinct": true,
	"count": true, "sum": true, "avg": true, "min": true, "max": true,
	"like": true, "ilike": true, "between": true, "join": true,
	"inner": true, "left": true, "on": true, "coalesce": true,
	"lower": true, "upper": true,
}

var (
	identPattern       = regexp.MustCompile(`[A-Za-z_][A-Za-z0-9_]*`)
	placeholderPattern = regexp.MustCompile(`\$(\d+)`)
	stringLitPattern   = regexp.MustCompile(`'[^']*'`)
	numberLitPattern   = regexp.MustCompile(`\b\d+(?:\.\d+)?\b`)
)

// SQLGenerator turns a routed question into a parameterized SELECT against
// the analytical schema, with mandatory validation before execution.
type SQLGenerator struct {
	gen    llm.Generator
	schema map[string][]string
	log    *slog.Logger
}

// NewSQLGenerator builds a generator over the given table→columns schema.
func NewSQLGenerator(gen llm.Generator, schema map[string][]string, log *slog.Logger) *SQLGenerator {
	if log == nil {
		log = slog.Default()
	}
	return &SQLGenerator{gen: gen, schema: schema, log: log}
}

// Generate asks the model for a query and validates it. Any validation
// failure is reported as ErrGenerationInvalid so the orchestrator can fall
// back to the semantic path.
func (g *SQLGenerator) Generate(ctx context.Context, question string, route Route) (GeneratedQuery, error) {
	raw, err := g.gen.Generate(ctx, g.prompt(question, route))
	if err != nil {
		return GeneratedQuery{}, fmt.Errorf("%w: model call: %w", domain.ErrGenerationInvalid, err)
	}

	var out struct {
		SQL  string   `json:"sql"`
		Args []string `json:"args"`
	}
	if err := json.Unmarshal([]byte(llm.StripFences(raw)), &out); err != nil {
		return GeneratedQuery{}, fmt.Errorf("%w: unparseable model output: %w", domain.ErrGenerationInvalid, err)
	}

	if err := g.Validate(out.SQL, len(out.Args)); err != nil {
		return GeneratedQuery{}, err
	}

	args := make([]any, len(out.Args))
	for i, a := range out.Args {
		args[i] = a
	}
	return GeneratedQuery{SQL: out.SQL, Args: args}, nil
}

// Validate enforces the read-only contract: a single SELECT statement, every
// identifier drawn from the schema, and every value bound through a $n
// placeholder. Deep nesting is flagged as a warning, never an error.
func (g *SQLGenerator) Validate(query string, argCount int) error {
	trimmed := strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(query), ";"))
	if trimmed == "" {
		return fmt.Errorf("%w: empty query", domain.ErrGenerationInvalid)
	}
	if strings.Contains(trimmed, ";") {
		return fmt.Errorf("%w: multiple statements", domain.ErrGenerationInvalid)
	}
	if !strings.HasPrefix(strings.ToLower(trimmed), "select") {
		return fmt.Errorf("%w: only SELECT is allowed", domain.ErrGenerationInvalid)
	}

	if loc := stringLitPattern.FindString(trimmed); loc != "" {
		return fmt.Errorf("%w: inline string literal %s, values must be bound as $n", domain.ErrGenerationInvalid, loc)
	}

	// Placeholders must be $1..$argCount with none beyond the args provided.
	for _, m := range placeholderPattern.FindAllStringSubmatch(trimmed, -1) {
		n, _ := strconv.Atoi(m[1])
		if n < 1 || n > argCount {
			return fmt.Errorf("%w: placeholder $%d has no bound argument", domain.ErrGenerationInvalid, n)
		}
	}

	// Numeric literals are interpolated values too, except in LIMIT/OFFSET.
	withoutTail := limitTailPattern.ReplaceAllString(strings.ToLower(trimmed), "")
	if lit := numberLitPattern.FindString(placeholderPattern.ReplaceAllString(withoutTail, "")); lit != "" {
		return fmt.Errorf("%w: inline numeric literal %s, values must be bound as $n", domain.ErrGenerationInvalid, lit)
	}

	if err := g.checkIdentifiers(trimmed); err != nil {
		return err
	}

	if depth := parenDepth(trimmed); depth > maxNestingDepth {
		g.log.Warn("generated query deeply nested", "depth", depth, "query", trimmed)
	}
	return nil
}

var limitTailPattern = regexp.MustCompile(`\b(limit|offset)\s+\d+`)

func (g *SQLGenerator) checkIdentifiers(query string) error {
	for _, word := range identPattern.FindAllString(query, -1) {
		lower := strings.ToLower(word)
		if sqlKeywords[lower] || g.knownIdentifier(lower) {
			continue
		}
		return fmt.Errorf("%w: unknown identifier %q", domain.ErrGenerationInvalid, word)
	}
	return nil
}

func (g *SQLGenerator) knownIdentifier(name string) bool {
	if _, ok := g.schema[name]; ok {
		return true
	}
	for _, cols := range g.schema {
		for _, col := range cols {
			if col == name {
				return true
			}
		}
	}
	return false
}

func parenDepth(s string) int {
	depth, deepest := 0, 0
	for _, r := range s {
		switch r {
		case '(':
			depth++
			if depth > deepest {
				deepest = depth
			}
		case ')':
			depth--
		}
	}
	return deepest
}

func (g *SQLGenerator) prompt(question string, route Route) string {
	var b strings.Builder
	b.WriteString("You translate questions about regulatory filings into a single PostgreSQL SELECT statement.\n\nSchema:\n")

	tables := make([]string, 0, len(g.schema))
	for t := range g.schema {
		tables = append(tables, t)
	}
	sort.Strings(tables)
	for _, t := range tables {
		fmt.Fprintf(&b, "  %s(%s)\n", t, strings.Join(g.schema[t], ", "))
	}

	b.WriteString("\nRules:\n")
	b.WriteString("- One SELECT statement, nothing else. No INSERT, UPDATE, DELETE, DDL.\n")
	b.WriteString("- Never inline values: use $1, $2, ... placeholders and list the values in args, in order.\n")
	b.WriteString(`- Respond with JSON only: {"sql": "...", "args": ["...", ...]}` + "\n")

	if route.Entity != "" {
		fmt.Fprintf(&b, "\nThe question concerns entity %q.", route.Entity)
	}
	if route.Period != "" {
		fmt.Fprintf(&b, " Fiscal period: %q.", route.Period)
	}
	if route.Metric != "" {
		fmt.Fprintf(&b, " Metric of interest: %q.", route.Metric)
	}

	fmt.Fprintf(&b, "\n\nQuestion: %s\n", question)
	return b.String()
}
