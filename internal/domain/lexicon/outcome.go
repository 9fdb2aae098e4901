package lexicon

// OutcomeKind tags the ternary resolution result.
type OutcomeKind string

const (
	OutcomeResolved  OutcomeKind = "resolved"
	OutcomeAmbiguous OutcomeKind = "ambiguous"
	OutcomeNotFound  OutcomeKind = "not_found"
)

const (
	NotFoundEmptyInput   = "empty_input"
	NotFoundNoCandidates = "no_candidates"
	NotFoundZeroScore    = "no_scoring_match"
)

// MethodRankedMatch labels resolutions produced by the tiered ranker.
const MethodRankedMatch = "ranked_match"

// AmbiguousSample is a diagnostic slice of one tied candidate.
type AmbiguousSample struct {
	Kanji string `json:"kanji"`
	POS   string `json:"pos,omitempty"`
}

// Outcome is the result of one resolution attempt. Exactly one variant is
// populated; use the constructors below rather than struct literals.
type Outcome struct {
	Kind OutcomeKind `json:"kind"`

	// Resolved
	TargetKanji   string   `json:"target_kanji,omitempty"`
	Score         int      `json:"score,omitempty"`
	MatchedFields []string `json:"matched_fields,omitempty"`
	Method        string   `json:"method,omitempty"`
	Confidence    float64  `json:"confidence,omitempty"`

	// Ambiguous
	CandidateCount int               `json:"candidate_count,omitempty"`
	TopScore       int               `json:"top_score,omitempty"`
	Samples        []AmbiguousSample `json:"samples,omitempty"`

	// NotFound
	Reason string `json:"reason,omitempty"`
}

func Resolved(targetKanji string, score int, matchedFields []string) Outcome {
	conf := float64(score) / 1000.0
	if conf > 1.0 {
		conf = 1.0
	}
	return Outcome{
		Kind:          OutcomeResolved,
		TargetKanji:   targetKanji,
		Score:         score,
		MatchedFields: matchedFields,
		Method:        MethodRankedMatch,
		Confidence:    conf,
	}
}

func Ambiguous(count, topScore int, samples []AmbiguousSample) Outcome {
	return Outcome{
		Kind:           OutcomeAmbiguous,
		CandidateCount: count,
		TopScore:       topScore,
		Samples:        samples,
	}
}

func NotFound(reason string) Outcome {
	return Outcome{Kind: OutcomeNotFound, Reason: reason}
}
