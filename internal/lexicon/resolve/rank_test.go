package resolve

import (
	"testing"

	"github.com/kotobalab/kotoba-backend/internal/domain/lexicon"
)

func TestRankEmptyRecordsNotFound(t *testing.T) {
	out := Rank(nil, []string{"綺麗"}, nil, nil)
	if out.Kind != lexicon.OutcomeNotFound {
		t.Fatalf("expected not_found, got %s", out.Kind)
	}
	if out.Reason != lexicon.NotFoundNoCandidates {
		t.Fatalf("unexpected reason %q", out.Reason)
	}
}

func TestRankAllZeroScoresNotFound(t *testing.T) {
	records := []lexicon.WordRecord{
		{Kanji: "本", Kana: "ほん", UPOS: "noun"},
		{Kanji: "水", Kana: "みず", UPOS: "noun"},
	}
	out := Rank(records, []string{"綺麗"}, []string{"きれい"}, nil)
	if out.Kind != lexicon.OutcomeNotFound {
		t.Fatalf("expected not_found, got %s", out.Kind)
	}
	if out.Reason != lexicon.NotFoundZeroScore {
		t.Fatalf("unexpected reason %q", out.Reason)
	}
}

func TestRankCanonicalOutranksReading(t *testing.T) {
	// Scenario: an orthography-matching candidate wins over a
	// reading-matching one on the same POS, regardless of POS bonus.
	records := []lexicon.WordRecord{
		{Kanji: "奇麗", Kana: "きれい", UPOS: "adj"},  // reading match only
		{Kanji: "綺麗", Kana: "きれい2", UPOS: "other"}, // canonical match, no POS bonus
	}
	out := Rank(records, []string{"綺麗"}, []string{"きれい"}, []string{"adj"})
	if out.Kind != lexicon.OutcomeResolved {
		t.Fatalf("expected resolved, got %s (%+v)", out.Kind, out)
	}
	if out.TargetKanji != "綺麗" {
		t.Fatalf("canonical match must win, got %q", out.TargetKanji)
	}
}

func TestRankTierOrdering(t *testing.T) {
	// Each tier must dominate the one below even when the lower tier takes
	// the POS bonus.
	cases := []struct {
		name   string
		upper  lexicon.WordRecord
		lower  lexicon.WordRecord
		orth   []string
		kana   []string
		winner string
	}{
		{
			name:   "canonical over lemma",
			upper:  lexicon.WordRecord{Kanji: "綺麗", UPOS: "x"},
			lower:  lexicon.WordRecord{Kanji: "他", Lemma: "綺麗", UPOS: "adj"},
			orth:   []string{"綺麗"},
			winner: "綺麗",
		},
		{
			name:   "lemma over ud_lemma",
			upper:  lexicon.WordRecord{Kanji: "甲", Lemma: "綺麗", UPOS: "x"},
			lower:  lexicon.WordRecord{Kanji: "乙", UDLemma: "綺麗", UPOS: "adj"},
			orth:   []string{"綺麗"},
			winner: "甲",
		},
		{
			name:   "ud_lemma over reading",
			upper:  lexicon.WordRecord{Kanji: "甲", UDLemma: "綺麗", UPOS: "x"},
			lower:  lexicon.WordRecord{Kanji: "乙", Kana: "きれい", UPOS: "adj"},
			orth:   []string{"綺麗"},
			kana:   []string{"きれい"},
			winner: "甲",
		},
	}
	for _, tc := range cases {
		out := Rank([]lexicon.WordRecord{tc.lower, tc.upper}, tc.orth, tc.kana, []string{"adj"})
		if out.Kind != lexicon.OutcomeResolved || out.TargetKanji != tc.winner {
			t.Fatalf("%s: expected %q resolved, got %+v", tc.name, tc.winner, out)
		}
	}
}

func TestRankPOSBonusBreaksSameTierTie(t *testing.T) {
	records := []lexicon.WordRecord{
		{Kanji: "奇麗", Kana: "きれい", UPOS: "noun"},
		{Kanji: "綺麗", Kana: "きれい", UPOS: "adj"},
	}
	out := Rank(records, nil, []string{"きれい"}, []string{"adj"})
	if out.Kind != lexicon.OutcomeResolved {
		t.Fatalf("expected POS bonus to break the tie, got %+v", out)
	}
	if out.TargetKanji != "綺麗" {
		t.Fatalf("expected POS-matching candidate, got %q", out.TargetKanji)
	}
}

func TestRankTiedMaxIsAmbiguous(t *testing.T) {
	// Scenario: two distinct entries share the canonical form and POS class
	// membership; the engine must refuse to guess.
	records := []lexicon.WordRecord{
		{Kanji: "綺麗", Kana: "きれい", UPOS: "adj"},
		{Kanji: "綺麗", Kana: "きれい", UPOS: "noun"},
	}
	out := Rank(records, []string{"綺麗"}, []string{"きれい"}, nil)
	if out.Kind != lexicon.OutcomeAmbiguous {
		t.Fatalf("expected ambiguous, got %+v", out)
	}
	if out.CandidateCount != 2 {
		t.Fatalf("expected count=2, got %d", out.CandidateCount)
	}
	if len(out.Samples) != 2 {
		t.Fatalf("expected 2 samples, got %v", out.Samples)
	}
}

func TestRankDedupPreventsFalseAmbiguity(t *testing.T) {
	// Same (canonical, normalized POS) twice is one candidate, not a tie.
	records := []lexicon.WordRecord{
		{Kanji: "綺麗", Kana: "きれい", UPOS: "adj", Source: "jmdict"},
		{Kanji: "綺麗", Kana: "きれい", UPOS: "adj", Source: "wikt"},
	}
	out := Rank(records, []string{"綺麗"}, []string{"きれい"}, nil)
	if out.Kind != lexicon.OutcomeResolved {
		t.Fatalf("duplicate rows manufactured ambiguity: %+v", out)
	}
}

func TestRankDeterministicUnderReordering(t *testing.T) {
	a := lexicon.WordRecord{Kanji: "綺麗", Kana: "きれい", UPOS: "adj"}
	b := lexicon.WordRecord{Kanji: "奇麗", Kana: "きれい", UPOS: "adj"}
	c := lexicon.WordRecord{Kanji: "他", Kana: "ほか", UPOS: "noun"}

	first := Rank([]lexicon.WordRecord{a, b, c}, []string{"綺麗"}, []string{"きれい"}, []string{"adj"})
	second := Rank([]lexicon.WordRecord{c, b, a}, []string{"綺麗"}, []string{"きれい"}, []string{"adj"})

	if first.Kind != second.Kind || first.TargetKanji != second.TargetKanji || first.Score != second.Score {
		t.Fatalf("decision depends on input order: %+v vs %+v", first, second)
	}
}

func TestRankResolvedConfidenceCapped(t *testing.T) {
	records := []lexicon.WordRecord{{Kanji: "綺麗", UPOS: "adj"}}
	out := Rank(records, []string{"綺麗"}, nil, []string{"adj"})
	if out.Kind != lexicon.OutcomeResolved {
		t.Fatalf("expected resolved, got %+v", out)
	}
	if out.Method != lexicon.MethodRankedMatch {
		t.Fatalf("unexpected method %q", out.Method)
	}
	if out.Confidence <= 0 || out.Confidence > 1.0 {
		t.Fatalf("confidence out of range: %f", out.Confidence)
	}
}

func TestAmbiguousSamplesBounded(t *testing.T) {
	records := []lexicon.WordRecord{
		{Kanji: "一", Kana: "いち", UPOS: "a"},
		{Kanji: "二", Kana: "いち", UPOS: "b"},
		{Kanji: "三", Kana: "いち", UPOS: "c"},
		{Kanji: "四", Kana: "いち", UPOS: "d"},
		{Kanji: "五", Kana: "いち", UPOS: "e"},
	}
	out := Rank(records, nil, []string{"いち"}, nil)
	if out.Kind != lexicon.OutcomeAmbiguous {
		t.Fatalf("expected ambiguous, got %+v", out)
	}
	if out.CandidateCount != 5 {
		t.Fatalf("expected count=5, got %d", out.CandidateCount)
	}
	if len(out.Samples) != 3 {
		t.Fatalf("samples must be capped at 3, got %d", len(out.Samples))
	}
}
