package resolve

import (
	"context"
	"strings"

	"github.com/kotobalab/kotoba-backend/internal/domain/lexicon"
	"github.com/kotobalab/kotoba-backend/internal/lexicon/normalize"
	"github.com/kotobalab/kotoba-backend/internal/platform/logger"
)

// Store is the read-only candidate lookup the facade depends on. Implemented
// by the Neo4j adapter in data/graph; faked in tests.
type Store interface {
	// FetchCandidates returns every vocabulary record matching any
	// orthography variant on a canonical-form field or any reading variant on
	// a reading field, optionally restricted to the allowed POS set.
	FetchCandidates(ctx context.Context, orthVariants, readingVariants, allowedPOS []string) ([]lexicon.WordRecord, error)
}

// Resolver is the single entry point for mapping a proposed target string to
// an existing vocabulary entry. It never fabricates entries.
type Resolver struct {
	store Store
	log   *logger.Logger
}

func NewResolver(store Store, baseLog *logger.Logger) *Resolver {
	return &Resolver{
		store: store,
		log:   baseLog.With("component", "Resolver"),
	}
}

// ResolveTarget normalizes the proposed strings, queries the store and ranks
// the result. The outcome is returned exactly as the ranker produced it; the
// only error path is a store failure.
//
// When no reading was supplied, kana orthography variants are re-normalized
// as readings: generator output sometimes puts a kana string in the
// orthography field, and that string may only match a record's reading.
func (r *Resolver) ResolveTarget(ctx context.Context, proposedOrth, proposedReading, expectedPOS string) (lexicon.Outcome, error) {
	orth := normalize.OrthographyVariants(proposedOrth, expectedPOS)

	var readings []string
	if strings.TrimSpace(proposedReading) != "" {
		readings = normalize.ReadingVariants(proposedReading)
	} else {
		seen := map[string]struct{}{}
		for _, v := range orth {
			if !normalize.IsKana(v) {
				continue
			}
			for _, rv := range normalize.ReadingVariants(v) {
				if _, dup := seen[rv]; dup {
					continue
				}
				seen[rv] = struct{}{}
				readings = append(readings, rv)
			}
		}
	}

	if len(orth) == 0 && len(readings) == 0 {
		return lexicon.NotFound(lexicon.NotFoundEmptyInput), nil
	}

	allowed := AllowedPOS(expectedPOS)
	records, err := r.store.FetchCandidates(ctx, orth, readings, allowed)
	if err != nil {
		return lexicon.Outcome{}, err
	}

	outcome := Rank(records, orth, readings, allowed)
	r.log.Debug("resolved target",
		"proposed", proposedOrth,
		"kind", string(outcome.Kind),
		"target", outcome.TargetKanji,
		"candidates", len(records),
	)
	return outcome, nil
}
