// Package resolve maps AI-proposed target strings onto existing vocabulary
// entries. The ranker is pure input->output; all graph I/O sits behind the
// Store interface consumed by the Resolver facade.
package resolve

import (
	"github.com/kotobalab/kotoba-backend/internal/domain/lexicon"
)

// Match tiers, descending. The ordering is the contract: a single match in a
// higher tier always beats any match in a lower one, and the POS bonus is
// strictly smaller than every inter-tier gap so it can only split same-tier
// ties.
const (
	tierCanonical = 1000 // exact canonical orthography
	tierLemma     = 900  // exact alternate/dictionary form
	tierSecondary = 800  // exact UD canonical form
	tierReading   = 500  // exact reading, either script
	posBonus      = 50
)

type scored struct {
	record  lexicon.WordRecord
	score   int
	matched []string
}

// Rank scores deduplicated candidate records against the variant sets and
// classifies the outcome. Deterministic: the decision depends only on the
// score multiset, never on input ordering (ordering picks which ambiguous
// samples are shown, nothing more).
func Rank(records []lexicon.WordRecord, orthVariants, readingVariants, allowedPOS []string) lexicon.Outcome {
	if len(records) == 0 {
		return lexicon.NotFound(lexicon.NotFoundNoCandidates)
	}

	orth := toSet(orthVariants)
	readings := toSet(readingVariants)
	allowed := toSet(allowedPOS)

	// Near-duplicate store rows must not manufacture false ambiguity: rows
	// sharing (canonical, normalized POS) are one candidate.
	seen := map[string]struct{}{}
	deduped := make([]lexicon.WordRecord, 0, len(records))
	for _, rec := range records {
		key := rec.Kanji + "\x00" + rec.NormalizedPOS()
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		deduped = append(deduped, rec)
	}

	candidates := make([]scored, 0, len(deduped))
	for _, rec := range deduped {
		s := scoreRecord(rec, orth, readings, allowed)
		if s.score > 0 {
			candidates = append(candidates, s)
		}
	}
	if len(candidates) == 0 {
		return lexicon.NotFound(lexicon.NotFoundZeroScore)
	}

	max := 0
	for _, c := range candidates {
		if c.score > max {
			max = c.score
		}
	}

	var winners []scored
	for _, c := range candidates {
		if c.score == max {
			winners = append(winners, c)
		}
	}

	if len(winners) == 1 {
		w := winners[0]
		return lexicon.Resolved(w.record.Kanji, w.score, w.matched)
	}

	samples := make([]lexicon.AmbiguousSample, 0, 3)
	for _, w := range winners {
		if len(samples) == 3 {
			break
		}
		samples = append(samples, lexicon.AmbiguousSample{
			Kanji: w.record.Kanji,
			POS:   w.record.NormalizedPOS(),
		})
	}
	return lexicon.Ambiguous(len(winners), max, samples)
}

func scoreRecord(rec lexicon.WordRecord, orth, readings, allowed map[string]struct{}) scored {
	s := scored{record: rec}

	switch {
	case member(orth, rec.Kanji):
		s.score = tierCanonical
		s.matched = append(s.matched, "kanji")
	case member(orth, rec.Lemma):
		s.score = tierLemma
		s.matched = append(s.matched, "lemma")
	case member(orth, rec.UDLemma):
		s.score = tierSecondary
		s.matched = append(s.matched, "ud_lemma")
	case member(readings, rec.Kana):
		s.score = tierReading
		s.matched = append(s.matched, "kana")
	case member(readings, rec.Katakana):
		s.score = tierReading
		s.matched = append(s.matched, "katakana")
	}

	if s.score == 0 {
		return s
	}

	if len(allowed) > 0 {
		if _, ok := allowed[rec.NormalizedPOS()]; ok {
			s.score += posBonus
			s.matched = append(s.matched, "pos")
		}
	}
	return s
}

func member(set map[string]struct{}, v string) bool {
	if v == "" {
		return false
	}
	_, ok := set[v]
	return ok
}

func toSet(vs []string) map[string]struct{} {
	set := make(map[string]struct{}, len(vs))
	for _, v := range vs {
		if v == "" {
			continue
		}
		set[v] = struct{}{}
	}
	return set
}
