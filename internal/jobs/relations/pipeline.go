package relations

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	domainjobs "github.com/kotobalab/kotoba-backend/internal/domain/jobs"
	"github.com/kotobalab/kotoba-backend/internal/domain/lexicon"
	"github.com/kotobalab/kotoba-backend/internal/jobs/runtime"
	apperrors "github.com/kotobalab/kotoba-backend/internal/pkg/errors"
	"github.com/kotobalab/kotoba-backend/internal/platform/logger"
	"github.com/kotobalab/kotoba-backend/internal/platform/openai"
)

/*
Pipeline is the relation-build job handler. One run enumerates a word set,
asks the generator for candidate relations per word, resolves every proposed
target against the vocabulary graph, and persists only edges whose target
resolved unambiguously and whose candidate confidence clears the configured
threshold.

Generation is the slow, network-bound step, so each batch of words is fanned
out through an errgroup with a concurrency limit. Everything after generation
(resolution, persistence, counters) runs sequentially on the worker goroutine,
so the result snapshot never needs a lock and progress stays monotone.

A generator failure on one word counts that word as an error and the run
continues. A graph-store failure is retried a bounded number of times before
the word is marked errored; the run only fails outright when the store is
unreachable at enumeration time, before any work has been attempted.
*/
type Pipeline struct {
	log      *logger.Logger
	store    GraphStore
	resolver TargetResolver
	gen      Generator

	costInPer1K  float64
	costOutPer1K float64

	sleep func(time.Duration)
}

// GraphStore is the slice of the vocabulary graph the pipeline touches.
type GraphStore interface {
	ListWords(ctx context.Context, posFilter string, limit int) ([]lexicon.WordRecord, error)
	GetWords(ctx context.Context, kanji []string) ([]lexicon.WordRecord, error)
	UpsertRelations(ctx context.Context, edges []lexicon.RelationEdge) (created, updated int, err error)
}

// TargetResolver maps a proposed target string to a canonical vocabulary node.
type TargetResolver interface {
	ResolveTarget(ctx context.Context, proposedOrth, proposedReading, expectedPOS string) (lexicon.Outcome, error)
}

// Generator produces candidate relations for one source word.
type Generator interface {
	GenerateRelations(ctx context.Context, word lexicon.WordRecord, relTypes []lexicon.RelationType, model string) ([]lexicon.RelationCandidate, openai.Usage, error)
}

const (
	storeAttempts   = 3
	storeRetryDelay = 500 * time.Millisecond
)

func NewPipeline(store GraphStore, resolver TargetResolver, gen Generator, costInPer1K, costOutPer1K float64, baseLog *logger.Logger) *Pipeline {
	return &Pipeline{
		log:          baseLog.With("component", "relation_pipeline"),
		store:        store,
		resolver:     resolver,
		gen:          gen,
		costInPer1K:  costInPer1K,
		costOutPer1K: costOutPer1K,
		sleep:        time.Sleep,
	}
}

func (p *Pipeline) Type() string { return domainjobs.JobTypeRelationBuild }

func (p *Pipeline) Run(jc *runtime.Context) error {
	var cfg BuildConfig
	if err := jc.UnmarshalPayload(&cfg); err != nil {
		jc.Fail("config", err)
		return nil
	}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		jc.Fail("config", err)
		return nil
	}

	jc.Progress("enumerate", 0, "enumerating word set")
	words, err := p.enumerateWords(jc.Ctx, cfg)
	if err != nil {
		jc.Fail("enumerate", err)
		return nil
	}

	result := newBuildResult(len(words))
	if len(words) == 0 {
		p.log.Info("relation build finished with empty word set", "job_id", jc.Job.ID)
		jc.Succeed("completed", result.finalize())
		return nil
	}

	for start := 0; start < len(words); start += cfg.BatchSize {
		if jc.Cancelled() {
			p.log.Info("relation build cancelled", "job_id", jc.Job.ID, "processed", result.Processed)
			jc.SetResult(result.finalize())
			return nil
		}
		end := start + cfg.BatchSize
		if end > len(words) {
			end = len(words)
		}
		chunk := words[start:end]
		gens := p.generateBatch(jc.Ctx, cfg, chunk)

		for i, w := range chunk {
			if jc.Cancelled() {
				p.log.Info("relation build cancelled", "job_id", jc.Job.ID, "processed", result.Processed)
				jc.SetResult(result.finalize())
				return nil
			}
			p.processWord(jc.Ctx, cfg, result, w, gens[i])
			result.Processed++
			result.CurrentWord = w.Kanji
			pct := result.Processed * 100 / result.TotalWords
			jc.SetResult(result)
			jc.Progress("processing", pct, fmt.Sprintf("processed %d/%d words", result.Processed, result.TotalWords))
		}
	}

	jc.Succeed("completed", result.finalize())
	return nil
}

func (p *Pipeline) enumerateWords(ctx context.Context, cfg BuildConfig) ([]lexicon.WordRecord, error) {
	if len(cfg.WordList) > 0 {
		words, err := p.store.GetWords(ctx, cfg.WordList)
		if err != nil {
			return nil, err
		}
		if cfg.MaxWords > 0 && len(words) > cfg.MaxWords {
			words = words[:cfg.MaxWords]
		}
		return words, nil
	}
	return p.store.ListWords(ctx, cfg.POSFilter, cfg.MaxWords)
}

type genOutput struct {
	candidates []lexicon.RelationCandidate
	usage      openai.Usage
	err        error
}

// generateBatch fans the AI calls out with bounded concurrency. Per-word
// errors are captured in the output slot, never propagated, so one timed-out
// word cannot sink its batch.
func (p *Pipeline) generateBatch(ctx context.Context, cfg BuildConfig, chunk []lexicon.WordRecord) []genOutput {
	outs := make([]genOutput, len(chunk))
	g := new(errgroup.Group)
	g.SetLimit(cfg.Concurrency)
	for i, w := range chunk {
		i, w := i, w
		g.Go(func() error {
			cands, usage, err := p.gen.GenerateRelations(ctx, w, cfg.RelationTypes, cfg.Model)
			outs[i] = genOutput{candidates: cands, usage: usage, err: err}
			return nil
		})
	}
	g.Wait()
	return outs
}

func (p *Pipeline) processWord(ctx context.Context, cfg BuildConfig, result *BuildResult, word lexicon.WordRecord, gen genOutput) {
	if gen.usage.Model != "" || gen.usage.TokensIn > 0 || gen.usage.TokensOut > 0 {
		cost := float64(gen.usage.TokensIn)/1000.0*p.costInPer1K +
			float64(gen.usage.TokensOut)/1000.0*p.costOutPer1K
		result.addUsage(gen.usage.Model, gen.usage.TokensIn, gen.usage.TokensOut, gen.usage.Latency.Milliseconds(), cost)
	}
	if gen.err != nil {
		result.Errors++
		result.addRecent(WordOutcome{Kanji: word.Kanji, Error: gen.err.Error()})
		p.log.Warn("relation generation failed", "word", word.Kanji, "error", gen.err)
		return
	}

	allowed := make(map[lexicon.RelationType]bool, len(cfg.RelationTypes))
	for _, rt := range cfg.RelationTypes {
		allowed[rt] = true
	}

	var edges []lexicon.RelationEdge
	var dropped int
	for _, cand := range gen.candidates {
		if !allowed[cand.Type] {
			continue
		}
		result.Resolution.Attempted++

		outcome, err := p.resolveWithRetry(ctx, cand)
		if err != nil {
			result.Errors++
			result.addRecent(WordOutcome{Kanji: word.Kanji, Error: err.Error()})
			p.log.Warn("resolution store error", "word", word.Kanji, "target", cand.TargetKanji, "error", err)
			return
		}

		switch outcome.Kind {
		case lexicon.OutcomeNotFound:
			result.Resolution.DroppedNotFound++
			result.addNotFoundSample(word.Kanji, cand.TargetKanji, outcome.Reason)
			dropped++
		case lexicon.OutcomeAmbiguous:
			result.Resolution.DroppedAmbiguous++
			result.addAmbiguousSample(word.Kanji, cand.TargetKanji, outcome.CandidateCount)
			dropped++
		case lexicon.OutcomeResolved:
			if outcome.TargetKanji == word.Kanji {
				result.Resolution.DroppedSelfReference++
				dropped++
				continue
			}
			if cand.Confidence < cfg.MinConfidence {
				result.Resolution.DroppedLowConfidence++
				dropped++
				continue
			}
			result.Resolution.Resolved++
			edges = append(edges, lexicon.RelationEdge{
				SourceKanji:          word.Kanji,
				TargetKanji:          outcome.TargetKanji,
				Type:                 cand.Type,
				Symmetric:            cand.Type.Symmetric(),
				Weight:               cand.Weight,
				Confidence:           cand.Confidence,
				Explanation:          cand.Explanation,
				Nuance:               cand.Nuance,
				Provider:             "openai",
				Model:                gen.usage.Model,
				RequestID:            gen.usage.RequestID,
				ResolutionMethod:     outcome.Method,
				ResolutionConfidence: outcome.Confidence,
			})
		}
	}

	created, updated, err := p.upsertWithRetry(ctx, edges)
	if err != nil {
		result.Errors++
		result.addRecent(WordOutcome{Kanji: word.Kanji, Dropped: dropped, Error: err.Error()})
		p.log.Warn("relation upsert failed", "word", word.Kanji, "error", err)
		return
	}
	result.RelationsCreated += created
	result.RelationsUpdated += updated
	result.addRecent(WordOutcome{Kanji: word.Kanji, Created: created, Updated: updated, Dropped: dropped})
}

// resolveWithRetry retries only transient store failures with linear backoff.
func (p *Pipeline) resolveWithRetry(ctx context.Context, cand lexicon.RelationCandidate) (lexicon.Outcome, error) {
	var lastErr error
	for attempt := 1; attempt <= storeAttempts; attempt++ {
		outcome, err := p.resolver.ResolveTarget(ctx, cand.TargetKanji, cand.TargetKana, cand.TargetPOS)
		if err == nil {
			return outcome, nil
		}
		lastErr = err
		if !errors.Is(err, apperrors.ErrStoreUnavailable) || attempt == storeAttempts {
			break
		}
		p.sleep(time.Duration(attempt) * storeRetryDelay)
	}
	return lexicon.Outcome{}, lastErr
}

func (p *Pipeline) upsertWithRetry(ctx context.Context, edges []lexicon.RelationEdge) (int, int, error) {
	if len(edges) == 0 {
		return 0, 0, nil
	}
	var lastErr error
	for attempt := 1; attempt <= storeAttempts; attempt++ {
		created, updated, err := p.store.UpsertRelations(ctx, edges)
		if err == nil {
			return created, updated, nil
		}
		lastErr = err
		if !errors.Is(err, apperrors.ErrStoreUnavailable) || attempt == storeAttempts {
			break
		}
		p.sleep(time.Duration(attempt) * storeRetryDelay)
	}
	return 0, 0, lastErr
}
