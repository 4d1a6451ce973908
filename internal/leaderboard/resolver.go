package leaderboard

import (
	"context"
	"fmt"
	"osu-leaderboard/internal/components/assert"
	"osu-leaderboard/internal/components/chrono"
	"osu-leaderboard/internal/components/telemetry"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var tracer = telemetry.Tracer("osu-leaderboard/internal/leaderboard")

const (
	report_resolver_attempt = "attempt"
	report_resolver_enrich  = "enrich"
	report_resolver_entries = "entries"
)

type state int

const (
	stateInit state = iota
	stateTokenAcquired
	stateAdapterAttempt
	stateSuccess
	stateNextAdapter
	stateAllExhausted
	stateFinalize
)

func (s state) String() string {
	switch s {
	case stateInit:
		return "init"
	case stateTokenAcquired:
		return "token-acquired"
	case stateAdapterAttempt:
		return "adapter-attempt"
	case stateSuccess:
		return "success"
	case stateNextAdapter:
		return "next-adapter"
	case stateAllExhausted:
		return "all-exhausted"
	case stateFinalize:
		return "finalize"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

type ResolverOptions struct {
	Country string
	Limit   int
	// Enricher is optional, when set it runs over results of api sources.
	Enricher *Enricher
}

// Resolver tries every source in priority order and assembles the snapshot
// from the first one that yields entries.
type Resolver struct {
	tokens     TokenProvider
	sources    []Source
	normalizer Normalizer
	time       chrono.TimeAPI
	tel        telemetry.API
	opts       ResolverOptions
}

func NewResolver(
	tokens TokenProvider,
	sources []Source,
	normalizer Normalizer,
	time chrono.TimeAPI,
	tel telemetry.API,
	opts ResolverOptions,
) Resolver {
	assert.NotNil(tokens)
	assert.NotNil(time)
	assert.NotNil(tel)
	assert.NotEmptyStr(opts.Country)
	assert.Positive(opts.Limit, "limit")
	for _, s := range sources {
		assert.NotNil(s)
	}
	return Resolver{
		tokens:     tokens,
		sources:    sources,
		normalizer: normalizer,
		time:       time,
		tel:        telemetry.NewScopedAPI("resolver", tel),
		opts:       opts,
	}
}

func (r Resolver) transition(from, to state, params ...any) state {
	r.tel.ReportDebug(fmt.Sprintf("%s -> %s", from, to), params...)
	return to
}

// Run produces a snapshot, it fails with *AuthError when no token could be
// acquired and with ErrNoData when every source came back empty.
func (r Resolver) Run(ctx context.Context) (Snapshot, error) {
	ctx, span := tracer.Start(ctx, "resolver.run")
	defer span.End()
	span.SetAttributes(attribute.String("country", r.opts.Country))

	current := stateInit
	token, err := r.tokens.Token(ctx)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return Snapshot{}, &AuthError{Err: err}
	}
	current = r.transition(current, stateTokenAcquired)

	var tried []string
	for i, src := range r.sources {
		current = r.transition(current, stateAdapterAttempt, src.Name())
		tried = append(tried, src.Name())

		entries, err := r.attempt(ctx, i, src, token)
		if err != nil {
			r.tel.ReportWarning(report_resolver_attempt, err)
			current = r.transition(current, stateNextAdapter)
			continue
		}

		current = r.transition(current, stateSuccess, src.Name(), len(entries))
		items := Finalize(entries)
		r.transition(current, stateFinalize)
		r.tel.ReportCount(report_resolver_entries, int64(len(items)))
		span.SetAttributes(
			attribute.String("source", src.Name()),
			attribute.Int("entries", len(items)),
		)

		return Snapshot{
			UpdatedAt: chrono.UnixMilli(r.time),
			Country:   r.opts.Country,
			Source:    src.Tag(),
			Items:     items,
		}, nil
	}

	r.transition(current, stateAllExhausted)
	err = fmt.Errorf("%w (tried %s)", ErrNoData, strings.Join(tried, ", "))
	span.SetStatus(codes.Error, err.Error())
	return Snapshot{}, err
}

// attempt runs one source through normalization and (for api sources)
// enrichment, an empty result is returned as an *AdapterFailure.
func (r Resolver) attempt(ctx context.Context, index int, src Source, token string) ([]Entry, error) {
	ctx, span := tracer.Start(ctx, "resolver.attempt")
	defer span.End()
	span.SetAttributes(
		attribute.String("source", src.Name()),
		attribute.Int("priority", index),
	)

	fail := func(err error) ([]Entry, error) {
		span.SetStatus(codes.Error, err.Error())
		return nil, &AdapterFailure{Source: src.Name(), Err: err}
	}

	records, err := src.Attempt(ctx, token, r.opts.Country, r.opts.Limit)
	if err != nil {
		return fail(err)
	}

	entries := r.normalizer.NormalizeAll(records, src.Shape())
	if src.Tag() == SourceScrape {
		entries = DropUnknown(entries)
	}
	if len(entries) == 0 {
		return fail(errEmpty)
	}

	if r.opts.Enricher != nil && src.Tag() == SourceAPI {
		total := len(entries)
		entries = r.opts.Enricher.Enrich(ctx, token, entries)
		if len(entries) == 0 {
			r.tel.ReportBroken(report_resolver_enrich, src.Name(), fmt.Sprintf("0 / %d entries survived", total))
			return fail(errEmpty)
		}
	}

	return entries, nil
}
