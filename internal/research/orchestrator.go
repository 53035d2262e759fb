// Package research runs research jobs: it breaks a query into sub-queries,
// searches and reads the web in bounded rounds, and writes a Markdown report.
package research

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/maauso/deepresearch-api/internal/governor"
	"github.com/maauso/deepresearch-api/internal/job"
	"github.com/maauso/deepresearch-api/internal/llm"
	"github.com/maauso/deepresearch-api/internal/source"
	"github.com/maauso/deepresearch-api/internal/storage"
)

// Defaults for the research loop.
const (
	DefaultMaxDepth       = 3
	DefaultMaxFetch       = 5
	DefaultContentLimit   = 3000
	DefaultRecentFindings = 20
)

// ErrMissingDependency is returned by New when a collaborator is nil.
var ErrMissingDependency = errors.New("research: missing dependency")

// Orchestrator drives research jobs through the job registry.
type Orchestrator struct {
	registry *job.Registry
	llm      llm.Client
	source   source.Source
	store    storage.Storage
	gov      *governor.Governor
	logger   *slog.Logger

	maxDepth       int
	maxFetch       int
	contentLimit   int
	recentFindings int
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *Orchestrator) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithMaxDepth bounds the number of search/analysis rounds per job.
func WithMaxDepth(n int) Option {
	return func(o *Orchestrator) {
		if n > 0 {
			o.maxDepth = n
		}
	}
}

// WithMaxFetch bounds the number of pages fetched per round.
func WithMaxFetch(n int) Option {
	return func(o *Orchestrator) {
		if n >= 0 {
			o.maxFetch = n
		}
	}
}

// WithContentLimit sets how many characters of a fetched page are kept.
func WithContentLimit(n int) Option {
	return func(o *Orchestrator) {
		if n > 0 {
			o.contentLimit = n
		}
	}
}

// New creates an Orchestrator.
func New(registry *job.Registry, llmClient llm.Client, src source.Source, store storage.Storage, gov *governor.Governor, opts ...Option) (*Orchestrator, error) {
	if registry == nil || llmClient == nil || src == nil || store == nil || gov == nil {
		return nil, ErrMissingDependency
	}

	o := &Orchestrator{
		registry:       registry,
		llm:            llmClient,
		source:         src,
		store:          store,
		gov:            gov,
		logger:         slog.Default(),
		maxDepth:       DefaultMaxDepth,
		maxFetch:       DefaultMaxFetch,
		contentLimit:   DefaultContentLimit,
		recentFindings: DefaultRecentFindings,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o, nil
}

// Submit creates a job for query and starts researching it in the background.
// It returns a snapshot of the running job.
func (o *Orchestrator) Submit(ctx context.Context, query string) (*job.Job, error) {
	j := o.registry.Create(ctx, query)
	if err := o.Launch(j); err != nil {
		return nil, err
	}
	return o.registry.Get(ctx, j.ID)
}

// Launch starts researching a job previously created in the registry.
// Callers that must not miss any event subscribe between Create and Launch.
func (o *Orchestrator) Launch(j *job.Job) error {
	id, query := j.ID, j.Query
	if err := o.registry.Start(id, func(ctx context.Context) {
		o.run(ctx, id, query)
	}); err != nil {
		return fmt.Errorf("start job %s: %w", id, err)
	}
	return nil
}

// run is the body of a job. Every exit path ends the job with exactly one
// terminal event.
func (o *Orchestrator) run(ctx context.Context, id, query string) {
	logger := o.logger.With(slog.String("job_id", id))
	progress := &tracker{}
	start := time.Now()

	defer func() {
		if r := recover(); r != nil {
			logger.Error("research panicked",
				slog.Any("panic", r),
				slog.String("stack", string(debug.Stack())),
			)
			o.fail(id, fmt.Errorf("panic: %v", r), progress.current())
		}
	}()

	logger.Info("research started", slog.String("query", query))

	err := o.research(ctx, id, query, progress, logger)
	switch {
	case err == nil:
		logger.Info("research completed", slog.Duration("duration", time.Since(start)))
	case ctx.Err() != nil:
		cause := context.Cause(ctx)
		logger.Info("research cancelled",
			slog.String("cause", cause.Error()),
			slog.Duration("duration", time.Since(start)),
		)
		_ = o.registry.Fail(id, cause.Error(), job.Event{
			Kind:     job.EventFailed,
			Message:  "Research cancelled.",
			Progress: progress.current(),
		})
	default:
		logger.Error("research failed",
			slog.String("error", err.Error()),
			slog.Duration("duration", time.Since(start)),
		)
		o.fail(id, err, progress.current())
	}
}

func (o *Orchestrator) fail(id string, err error, progress int) {
	_ = o.registry.Fail(id, err.Error(), job.Event{
		Kind:     job.EventFailed,
		Message:  "Research failed: " + err.Error(),
		Progress: progress,
	})
}

func (o *Orchestrator) research(ctx context.Context, id, query string, progress *tracker, logger *slog.Logger) error {
	emit := func(p int, format string, args ...any) {
		o.registry.Emit(id, job.Progress(fmt.Sprintf(format, args...), progress.at(p)))
	}

	emit(progressStart, "Analyzing query...")

	queries, err := o.decompose(ctx, query, logger)
	if err != nil {
		return err
	}
	logger.Debug("query decomposed", slog.Int("sub_queries", len(queries)))

	findings := NewFindingSet()
	b := newBands(o.maxDepth)

	for depth := 0; depth < o.maxDepth; {
		emit(b.search(depth), "Searching for information (round %d)...", depth+1)

		results, err := o.search(ctx, queries, logger)
		if err != nil {
			return err
		}

		var fresh []string
		for i, rs := range results {
			emit(b.found(depth, i, len(results)), "Found %d results for sub-query %d", len(rs), i+1)
			fresh = append(fresh, findings.AddResults(rs)...)
		}

		if len(fresh) > o.maxFetch {
			fresh = fresh[:o.maxFetch]
		}
		contents, err := o.fetch(ctx, fresh, logger)
		if err != nil {
			return err
		}
		for i, url := range fresh {
			findings.AddContent(url, contents[i], o.contentLimit)
		}

		emit(b.analyze(depth), "Analyzing findings...")

		a, err := o.analyze(ctx, query, findings.Recent(o.recentFindings), logger)
		if err != nil {
			return err
		}
		depth++

		logger.Debug("round analyzed",
			slog.Int("round", depth),
			slog.Int("findings", findings.Len()),
			slog.Bool("needs_more_research", a.NeedsMoreResearch),
			slog.Int("follow_up_queries", len(a.FollowUpQueries)),
			slog.String("key_findings", string(a.KeyFindings)),
		)

		if !a.NeedsMoreResearch || depth >= o.maxDepth || len(a.FollowUpQueries) == 0 {
			break
		}
		queries = a.FollowUpQueries

		emit(b.search(depth), "Conducting deeper research (round %d)...", depth+1)
	}

	emit(progressReport, "Generating report...")

	report, err := o.complete(ctx, reportSystemPrompt, reportUserPrompt(query, findings.All()), false)
	if err != nil {
		return fmt.Errorf("generate report: %w", err)
	}

	emit(progressSave, "Saving report...")

	if err := ctx.Err(); err != nil {
		return err
	}
	location, err := o.store.Store(ctx, id, report)
	if err != nil {
		return fmt.Errorf("save report: %w", err)
	}

	err = o.registry.Complete(id, location, job.Event{
		Kind:     job.EventCompleted,
		Message:  "Research complete!",
		Progress: progress.at(progressDone),
		Data: map[string]any{
			"result_url": location,
			"report":     report,
		},
	})
	if err != nil {
		return fmt.Errorf("complete job: %w", err)
	}
	return nil
}

// complete runs one model call under the LLM gate.
func (o *Orchestrator) complete(ctx context.Context, system, user string, jsonMode bool) (string, error) {
	return governor.Call(ctx, o.gov.LLM(), func(ctx context.Context) (string, error) {
		return o.llm.Complete(ctx, system, user, jsonMode)
	})
}

// decompose asks the model for sub-queries. Anything but a usable list
// falls back to the original query; only cancellation is an error.
func (o *Orchestrator) decompose(ctx context.Context, query string, logger *slog.Logger) ([]string, error) {
	text, err := o.complete(ctx, decomposeSystemPrompt, query, true)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		logger.Warn("query decomposition failed, using original query", slog.String("error", err.Error()))
		return []string{query}, nil
	}

	queries, err := parseQueries(text)
	if err != nil {
		logger.Warn("failed to parse sub-queries, using original query", slog.String("error", err.Error()))
		return []string{query}, nil
	}
	if len(queries) == 0 {
		return []string{query}, nil
	}
	return queries, nil
}

// parseQueries accepts either a bare JSON array or {"queries": [...]}.
func parseQueries(text string) ([]string, error) {
	var list []string
	if err := llm.ParseJSON(text, &list); err == nil {
		return cleanQueries(list), nil
	}

	var obj struct {
		Queries []string `json:"queries"`
	}
	if err := llm.ParseJSON(text, &obj); err != nil {
		return nil, err
	}
	return cleanQueries(obj.Queries), nil
}

func cleanQueries(in []string) []string {
	out := make([]string, 0, len(in))
	for _, q := range in {
		if q = strings.TrimSpace(q); q != "" {
			out = append(out, q)
		}
	}
	return out
}

// search runs every query concurrently under the search gate and returns
// the hits in query order. A failed search counts as no hits.
func (o *Orchestrator) search(ctx context.Context, queries []string, logger *slog.Logger) ([][]source.Result, error) {
	results := make([][]source.Result, len(queries))

	g, gctx := errgroup.WithContext(ctx)
	for i, q := range queries {
		g.Go(func() (err error) {
			defer recoverStep(logger, &err)
			rs, err := governor.Call(gctx, o.gov.Search(), func(ctx context.Context) ([]source.Result, error) {
				return o.source.Search(ctx, q)
			})
			if err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				logger.Warn("search failed",
					slog.String("sub_query", q),
					slog.String("error", err.Error()),
				)
				return nil
			}
			results[i] = rs
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// fetch retrieves the content of urls concurrently under the search gate.
// A failed fetch yields empty content.
func (o *Orchestrator) fetch(ctx context.Context, urls []string, logger *slog.Logger) ([]string, error) {
	contents := make([]string, len(urls))

	g, gctx := errgroup.WithContext(ctx)
	for i, url := range urls {
		g.Go(func() (err error) {
			defer recoverStep(logger, &err)
			content, err := governor.Call(gctx, o.gov.Search(), func(ctx context.Context) (string, error) {
				return o.source.FetchContent(ctx, url)
			})
			if err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				logger.Warn("fetch failed",
					slog.String("url", url),
					slog.String("error", err.Error()),
				)
				return nil
			}
			contents[i] = content
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return contents, nil
}

// recoverStep turns a panic in a fan-out goroutine into an error of the group.
func recoverStep(logger *slog.Logger, err *error) {
	if r := recover(); r != nil {
		logger.Error("research step panicked",
			slog.Any("panic", r),
			slog.String("stack", string(debug.Stack())),
		)
		*err = fmt.Errorf("panic: %v", r)
	}
}

// analysis is the verdict of one round. key_findings is only logged, so
// its shape is not enforced.
type analysis struct {
	NeedsMoreResearch bool            `json:"needs_more_research"`
	FollowUpQueries   []string        `json:"follow_up_queries"`
	KeyFindings       json.RawMessage `json:"key_findings"`
}

// analyze asks the model whether another round is worthwhile. A failed or
// unparsable answer stops the loop; only cancellation is an error.
func (o *Orchestrator) analyze(ctx context.Context, query string, recent []Finding, logger *slog.Logger) (analysis, error) {
	text, err := o.complete(ctx, analyzeSystemPrompt, analyzeUserPrompt(query, recent), true)
	if err != nil {
		if ctx.Err() != nil {
			return analysis{}, ctx.Err()
		}
		logger.Warn("analysis failed, stopping research loop", slog.String("error", err.Error()))
		return analysis{}, nil
	}

	var a analysis
	if err := llm.ParseJSON(text, &a); err != nil {
		logger.Warn("failed to parse analysis response, stopping research loop", slog.String("error", err.Error()))
		return analysis{}, nil
	}
	a.FollowUpQueries = cleanQueries(a.FollowUpQueries)
	return a, nil
}
