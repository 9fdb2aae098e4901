package lexicon

// RelationType is the closed set of semantic relations the generator may
// propose between vocabulary entries.
type RelationType string

const (
	RelationSynonym     RelationType = "synonym"
	RelationAntonym     RelationType = "antonym"
	RelationHypernym    RelationType = "hypernym"
	RelationHyponym     RelationType = "hyponym"
	RelationCollocation RelationType = "collocation"
	RelationSimilarKanji RelationType = "similar_kanji"
)

func ValidRelationType(t RelationType) bool {
	switch t {
	case RelationSynonym, RelationAntonym, RelationHypernym, RelationHyponym,
		RelationCollocation, RelationSimilarKanji:
		return true
	default:
		return false
	}
}

// Symmetric reports whether an edge of this type holds in both directions.
func (t RelationType) Symmetric() bool {
	switch t {
	case RelationSynonym, RelationAntonym, RelationCollocation, RelationSimilarKanji:
		return true
	default:
		return false
	}
}

// RelationCandidate is an AI-proposed, not-yet-verified edge from a known
// source word to an unresolved target string. The AI-authored semantic fields
// are never rewritten; resolution only attaches the Resolved* fields.
type RelationCandidate struct {
	SourceKanji string       `json:"source_kanji"`
	TargetKanji string       `json:"target_kanji"`
	TargetKana  string       `json:"target_kana,omitempty"`
	TargetPOS   string       `json:"target_pos,omitempty"`
	Type        RelationType `json:"type"`
	Symmetric   bool         `json:"symmetric"`
	Weight      float64      `json:"weight"`
	Confidence  float64      `json:"confidence"`
	Explanation string       `json:"explanation,omitempty"`
	Nuance      string       `json:"nuance,omitempty"`

	// Attached by resolution.
	ResolvedTarget       string  `json:"resolved_target,omitempty"`
	ResolutionMethod     string  `json:"resolution_method,omitempty"`
	ResolutionConfidence float64 `json:"resolution_confidence,omitempty"`
}

// RelationEdge is an accepted, fully-resolved relation ready to persist.
// Provenance fields record why the edge exists.
type RelationEdge struct {
	SourceKanji string       `json:"source_kanji"`
	TargetKanji string       `json:"target_kanji"`
	Type        RelationType `json:"type"`
	Symmetric   bool         `json:"symmetric"`
	Weight      float64      `json:"weight"`
	Confidence  float64      `json:"confidence"`
	Explanation string       `json:"explanation,omitempty"`
	Nuance      string       `json:"nuance,omitempty"`

	Provider  string `json:"provider,omitempty"`
	Model     string `json:"model,omitempty"`
	RequestID string `json:"request_id,omitempty"`

	ResolutionMethod     string  `json:"resolution_method"`
	ResolutionConfidence float64 `json:"resolution_confidence"`
}
