package services

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/kotobalab/kotoba-backend/internal/data/repos/testutil"
	"github.com/kotobalab/kotoba-backend/internal/domain/lexicon"
	"github.com/kotobalab/kotoba-backend/internal/platform/openai"
)

type fakeAI struct {
	out   map[string]any
	usage openai.Usage
	err   error

	gotSystem     string
	gotUser       string
	gotSchemaName string
	gotSchema     map[string]any
}

func (f *fakeAI) GenerateJSON(_ context.Context, system, user, schemaName string, schema map[string]any) (map[string]any, openai.Usage, error) {
	f.gotSystem = system
	f.gotUser = user
	f.gotSchemaName = schemaName
	f.gotSchema = schema
	return f.out, f.usage, f.err
}

func (f *fakeAI) GenerateText(context.Context, string, string) (string, openai.Usage, error) {
	return "", f.usage, nil
}

func (f *fakeAI) Model() string { return "fake-model" }

func TestRelationGeneratorParsesCandidates(t *testing.T) {
	ai := &fakeAI{
		out: map[string]any{
			"relations": []any{
				map[string]any{
					"target_kanji": " 穏やか ",
					"target_kana":  "おだやか",
					"target_pos":   "na-adjective",
					"type":         "synonym",
					"weight":       0.8,
					"confidence":   1.4,
					"explanation":  "both describe calm states",
					"nuance":       "",
				},
				map[string]any{
					"target_kanji": "",
					"target_kana":  "x",
					"target_pos":   "",
					"type":         "synonym",
					"weight":       0.5,
					"confidence":   0.5,
					"explanation":  "",
					"nuance":       "",
				},
				map[string]any{
					"target_kanji": "謎",
					"target_kana":  "なぞ",
					"target_pos":   "noun",
					"type":         "rhymes_with",
					"weight":       0.5,
					"confidence":   0.5,
					"explanation":  "",
					"nuance":       "",
				},
			},
		},
		usage: openai.Usage{Model: "gpt-4o-mini", TokensIn: 100, TokensOut: 50, Latency: 30 * time.Millisecond},
	}
	gen := NewRelationGenerator(ai, testutil.Logger(t))

	word := lexicon.WordRecord{Kanji: "静か", Kana: "しずか", POS: "na-adjective"}
	cands, usage, err := gen.GenerateRelations(context.Background(), word,
		[]lexicon.RelationType{lexicon.RelationSynonym, lexicon.RelationAntonym}, "")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	if len(cands) != 1 {
		t.Fatalf("expected only the well-formed candidate, got %d", len(cands))
	}
	c := cands[0]
	if c.SourceKanji != "静か" || c.TargetKanji != "穏やか" {
		t.Fatalf("unexpected candidate: %+v", c)
	}
	if c.Confidence != 1.0 {
		t.Fatalf("confidence must be clamped to 1.0, got %f", c.Confidence)
	}
	if !c.Symmetric {
		t.Fatalf("synonym must be symmetric")
	}
	if usage.TokensIn != 100 {
		t.Fatalf("usage must pass through, got %+v", usage)
	}

	if !strings.Contains(ai.gotUser, "静か") || !strings.Contains(ai.gotUser, "しずか") {
		t.Fatalf("prompt must carry the word, got %q", ai.gotUser)
	}
	if !strings.Contains(ai.gotUser, "synonym, antonym") {
		t.Fatalf("prompt must name the requested relation types, got %q", ai.gotUser)
	}
	if ai.gotSchemaName != "word_relations" {
		t.Fatalf("unexpected schema name %q", ai.gotSchemaName)
	}
}

func TestRelationGeneratorPropagatesErrors(t *testing.T) {
	wantErr := errors.New("rate limited")
	ai := &fakeAI{err: wantErr, usage: openai.Usage{Model: "gpt-4o-mini", Latency: 5 * time.Millisecond}}
	gen := NewRelationGenerator(ai, testutil.Logger(t))

	_, usage, err := gen.GenerateRelations(context.Background(),
		lexicon.WordRecord{Kanji: "静か"}, []lexicon.RelationType{lexicon.RelationSynonym}, "")
	if !errors.Is(err, wantErr) {
		t.Fatalf("expected provider error, got %v", err)
	}
	if usage.Model != "gpt-4o-mini" {
		t.Fatalf("usage must be reported even on failure, got %+v", usage)
	}
}

func TestRelationGeneratorEmptyOutput(t *testing.T) {
	ai := &fakeAI{out: map[string]any{"relations": []any{}}}
	gen := NewRelationGenerator(ai, testutil.Logger(t))

	cands, _, err := gen.GenerateRelations(context.Background(),
		lexicon.WordRecord{Kanji: "静か"}, []lexicon.RelationType{lexicon.RelationSynonym}, "")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if len(cands) != 0 {
		t.Fatalf("expected no candidates, got %d", len(cands))
	}
}
