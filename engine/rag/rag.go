package rag

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/FilingLensAI/filinglens-mvp/engine/domain"
	"github.com/FilingLensAI/filinglens-mvp/engine/structured"
)

// retrievalBudget bounds the non-model work of one question: routing, query
// execution and hybrid retrieval. Model calls carry their own provider
// timeouts on top.
const retrievalBudget = 2 * time.Second

// QueryRunner executes a validated parameterized statement.
type QueryRunner interface {
	Query(ctx context.Context, query string, args ...any) (structured.ResultSet, error)
}

// ChunkRetriever is the hybrid retrieval surface the orchestrator needs.
type ChunkRetriever interface {
	Retrieve(ctx context.Context, question string) ([]RankedChunk, error)
}

// Engine sequences routing, the chosen answer path, and at most one
// fallback to the other path.
type Engine struct {
	router Router
	sqlgen *SQLGenerator
	runner QueryRunner
	ret    ChunkRetriever
	synth  *Synthesizer
	log    *slog.Logger
}

func NewEngine(router Router, sqlgen *SQLGenerator, runner QueryRunner, ret ChunkRetriever, synth *Synthesizer, log *slog.Logger) *Engine {
	if log == nil {
		log = slog.Default()
	}
	if router == nil {
		router = HeuristicRouter{}
	}
	return &Engine{router: router, sqlgen: sqlgen, runner: runner, ret: ret, synth: synth, log: log}
}

// Answer routes the question, runs the selected path, and falls back to the
// other path exactly once on failure. Both paths failing yields
// ErrUnanswerable; everything else yields an answer, possibly low-confidence.
func (e *Engine) Answer(ctx context.Context, question string) (Answer, error) {
	if err := domain.ValidateQuestion(question); err != nil {
		return Answer{}, err
	}

	route := e.router.Classify(question)
	e.log.Info("question routed",
		"class", route.Class,
		"entity", route.Entity,
		"period", route.Period,
		"metric", route.Metric,
	)

	var primary, fallback func(context.Context, string, Route) (Answer, error)
	if route.Class == domain.ClassStructured {
		primary, fallback = e.structuredPath, e.semanticPath
	} else {
		primary, fallback = e.semanticPath, e.structuredPath
	}

	answer, primaryErr := primary(ctx, question, route)
	if primaryErr == nil {
		return answer, nil
	}
	e.log.Warn("primary path failed, falling back", "class", route.Class, "error", primaryErr)

	answer, fallbackErr := fallback(ctx, question, route)
	if fallbackErr != nil {
		return Answer{}, fmt.Errorf("%w: %s path: %w; fallback: %w",
			domain.ErrUnanswerable, route.Class, primaryErr, fallbackErr)
	}
	answer.FellBack = true
	return answer, nil
}

// structuredPath generates, validates and executes a SQL query, then
// synthesizes from the rows. An empty result set is a path failure: the
// semantic corpus may still hold the answer the schema does not.
func (e *Engine) structuredPath(ctx context.Context, question string, route Route) (Answer, error) {
	generated, err := e.sqlgen.Generate(ctx, question, route)
	if err != nil {
		return Answer{}, err
	}

	queryCtx, cancel := context.WithTimeout(ctx, retrievalBudget)
	rows, err := e.runner.Query(queryCtx, generated.SQL, generated.Args...)
	cancel()
	if err != nil {
		return Answer{}, fmt.Errorf("structured query: %w", err)
	}
	if rows.Empty() {
		return Answer{}, fmt.Errorf("structured query matched nothing: %w", domain.ErrRetrievalEmpty)
	}

	return e.synth.FromRows(ctx, question, rows)
}

// semanticPath retrieves and fuses chunks, then synthesizes with citations.
// An empty retrieval on this path is not a failure: it becomes an explicit
// low-confidence answer.
func (e *Engine) semanticPath(ctx context.Context, question string, _ Route) (Answer, error) {
	retrieveCtx, cancel := context.WithTimeout(ctx, retrievalBudget)
	chunks, err := e.ret.Retrieve(retrieveCtx, question)
	cancel()
	if err != nil && !errors.Is(err, domain.ErrRetrievalEmpty) {
		return Answer{}, fmt.Errorf("retrieval: %w", err)
	}

	return e.synth.FromChunks(ctx, question, chunks)
}
