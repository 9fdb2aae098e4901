package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/kotobalab/kotoba-backend/internal/domain/lexicon"
	"github.com/kotobalab/kotoba-backend/internal/platform/logger"
	"github.com/kotobalab/kotoba-backend/internal/platform/openai"
)

const relationSystemPrompt = `You are a Japanese lexicographer building a semantic relation graph for language learners.
Given one vocabulary word, propose related words of the requested relation types.
Rules:
- Only propose real, common Japanese words a learner could look up in a dictionary.
- Never invent words. If you know no good relation of a type, return none of that type.
- target_kanji is the word's standard written form; target_kana is its hiragana reading.
- weight expresses relation strength, confidence your certainty, both in [0,1].
- Keep explanations to one short sentence; nuance notes usage differences, or is empty.`

// RelationGenerator asks the AI provider for candidate relations of one
// source word. It owns the prompt and output schema; resolution of proposed
// targets against the vocabulary graph is someone else's job.
type RelationGenerator struct {
	log *logger.Logger
	ai  openai.Client
}

func NewRelationGenerator(ai openai.Client, baseLog *logger.Logger) *RelationGenerator {
	return &RelationGenerator{
		log: baseLog.With("service", "relation_generator"),
		ai:  ai,
	}
}

type relationItem struct {
	TargetKanji string  `json:"target_kanji"`
	TargetKana  string  `json:"target_kana"`
	TargetPOS   string  `json:"target_pos"`
	Type        string  `json:"type"`
	Weight      float64 `json:"weight"`
	Confidence  float64 `json:"confidence"`
	Explanation string  `json:"explanation"`
	Nuance      string  `json:"nuance"`
}

type relationOutput struct {
	Relations []relationItem `json:"relations"`
}

func relationSchema(relTypes []lexicon.RelationType) map[string]any {
	typeEnum := make([]string, 0, len(relTypes))
	for _, rt := range relTypes {
		typeEnum = append(typeEnum, string(rt))
	}
	return map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"required":             []string{"relations"},
		"properties": map[string]any{
			"relations": map[string]any{
				"type":     "array",
				"maxItems": 12,
				"items": map[string]any{
					"type":                 "object",
					"additionalProperties": false,
					"required": []string{
						"target_kanji", "target_kana", "target_pos", "type",
						"weight", "confidence", "explanation", "nuance",
					},
					"properties": map[string]any{
						"target_kanji": map[string]any{"type": "string"},
						"target_kana":  map[string]any{"type": "string"},
						"target_pos":   map[string]any{"type": "string"},
						"type":         map[string]any{"type": "string", "enum": typeEnum},
						"weight":       map[string]any{"type": "number"},
						"confidence":   map[string]any{"type": "number"},
						"explanation":  map[string]any{"type": "string"},
						"nuance":       map[string]any{"type": "string"},
					},
				},
			},
		},
	}
}

func (s *RelationGenerator) GenerateRelations(ctx context.Context, word lexicon.WordRecord, relTypes []lexicon.RelationType, model string) ([]lexicon.RelationCandidate, openai.Usage, error) {
	client := openai.WithModel(s.ai, model)

	typeNames := make([]string, 0, len(relTypes))
	for _, rt := range relTypes {
		typeNames = append(typeNames, string(rt))
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Word: %s\n", word.Kanji)
	if word.Kana != "" {
		fmt.Fprintf(&b, "Reading: %s\n", word.Kana)
	}
	if pos := word.NormalizedPOS(); pos != "" {
		fmt.Fprintf(&b, "Part of speech: %s\n", pos)
	}
	fmt.Fprintf(&b, "Relation types to propose: %s\n", strings.Join(typeNames, ", "))

	raw, usage, err := client.GenerateJSON(ctx, relationSystemPrompt, b.String(), "word_relations", relationSchema(relTypes))
	if err != nil {
		return nil, usage, err
	}

	// Round-trip through JSON to get the typed shape out of the generic map.
	buf, err := json.Marshal(raw)
	if err != nil {
		return nil, usage, err
	}
	var out relationOutput
	if err := json.Unmarshal(buf, &out); err != nil {
		return nil, usage, fmt.Errorf("relation output decode: %w", err)
	}

	cands := make([]lexicon.RelationCandidate, 0, len(out.Relations))
	for _, item := range out.Relations {
		target := strings.TrimSpace(item.TargetKanji)
		rt := lexicon.RelationType(strings.ToLower(strings.TrimSpace(item.Type)))
		if target == "" || !lexicon.ValidRelationType(rt) {
			s.log.Debug("dropping malformed relation item", "word", word.Kanji, "target", item.TargetKanji, "type", item.Type)
			continue
		}
		cands = append(cands, lexicon.RelationCandidate{
			SourceKanji: word.Kanji,
			TargetKanji: target,
			TargetKana:  strings.TrimSpace(item.TargetKana),
			TargetPOS:   strings.TrimSpace(item.TargetPOS),
			Type:        rt,
			Symmetric:   rt.Symmetric(),
			Weight:      clamp01(item.Weight),
			Confidence:  clamp01(item.Confidence),
			Explanation: strings.TrimSpace(item.Explanation),
			Nuance:      strings.TrimSpace(item.Nuance),
		})
	}
	return cands, usage, nil
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
