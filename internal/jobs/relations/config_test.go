package relations

import (
	"errors"
	"testing"

	domainjobs "github.com/kotobalab/kotoba-backend/internal/domain/jobs"
	"github.com/kotobalab/kotoba-backend/internal/domain/lexicon"
	apperrors "github.com/kotobalab/kotoba-backend/internal/pkg/errors"
)

func TestBuildConfigDefaults(t *testing.T) {
	cfg := BuildConfig{}
	cfg.ApplyDefaults()

	if cfg.JobType != domainjobs.JobTypeRelationBuild {
		t.Fatalf("expected default job type, got %q", cfg.JobType)
	}
	if len(cfg.RelationTypes) != 2 {
		t.Fatalf("expected default relation types, got %v", cfg.RelationTypes)
	}
	if cfg.BatchSize != 5 || cfg.Concurrency != 3 {
		t.Fatalf("unexpected batch defaults: batch=%d concurrency=%d", cfg.BatchSize, cfg.Concurrency)
	}
	if cfg.MinConfidence != 0.5 {
		t.Fatalf("expected default min confidence 0.5, got %f", cfg.MinConfidence)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("defaults must validate: %v", err)
	}
}

func TestBuildConfigValidate(t *testing.T) {
	cases := []struct {
		name string
		cfg  BuildConfig
		ok   bool
	}{
		{"query mode", BuildConfig{POSFilter: "noun", MaxWords: 10}, true},
		{"query mode zero words", BuildConfig{MaxWords: 0}, true},
		{"explicit mode", BuildConfig{WordList: []string{"静か"}}, true},
		{"both source modes", BuildConfig{WordList: []string{"静か"}, POSFilter: "noun"}, false},
		{"negative max words", BuildConfig{MaxWords: -1}, false},
		{"unknown job type", BuildConfig{JobType: "mystery", MaxWords: 1}, false},
		{"unknown relation type", BuildConfig{MaxWords: 1, RelationTypes: []lexicon.RelationType{"rhymes_with"}}, false},
		{"confidence above one", BuildConfig{MaxWords: 1, MinConfidence: 1.5}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := tc.cfg
			cfg.ApplyDefaults()
			err := cfg.Validate()
			if tc.ok && err != nil {
				t.Fatalf("expected valid, got %v", err)
			}
			if !tc.ok {
				if err == nil {
					t.Fatalf("expected validation error")
				}
				if !errors.Is(err, apperrors.ErrInvalidArgument) {
					t.Fatalf("expected ErrInvalidArgument, got %v", err)
				}
			}
		})
	}
}

func TestBuildConfigValidateRejectsOutOfRangeDefaults(t *testing.T) {
	// MinConfidence survives ApplyDefaults when explicitly set, so a bad
	// explicit value must still be caught.
	cfg := BuildConfig{MaxWords: 1, MinConfidence: -0.2}
	cfg.ApplyDefaults()
	if cfg.MinConfidence != -0.2 {
		t.Fatalf("defaults must not overwrite explicit values, got %f", cfg.MinConfidence)
	}
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected validation error for negative confidence")
	}
}
