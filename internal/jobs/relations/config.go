package relations

import (
	"fmt"
	"strings"

	domainjobs "github.com/kotobalab/kotoba-backend/internal/domain/jobs"
	"github.com/kotobalab/kotoba-backend/internal/domain/lexicon"
	apperrors "github.com/kotobalab/kotoba-backend/internal/pkg/errors"
)

// BuildConfig is the payload of a relation-build job run. Source modes are
// mutually exclusive: an explicit WordList, or a query over the vocabulary
// (POSFilter + MaxWords).
type BuildConfig struct {
	JobType       string                 `json:"job_type"`
	POSFilter     string                 `json:"pos_filter,omitempty"`
	WordList      []string               `json:"word_list,omitempty"`
	RelationTypes []lexicon.RelationType `json:"relation_types,omitempty"`
	Model         string                 `json:"model,omitempty"`
	MaxWords      int                    `json:"max_words"`
	BatchSize     int                    `json:"batch_size,omitempty"`
	Concurrency   int                    `json:"concurrency,omitempty"`
	MinConfidence float64                `json:"min_confidence,omitempty"`
}

// ApplyDefaults fills unset tuning knobs. Called before Validate so defaults
// are themselves validated.
func (c *BuildConfig) ApplyDefaults() {
	if c.JobType == "" {
		c.JobType = domainjobs.JobTypeRelationBuild
	}
	if len(c.RelationTypes) == 0 {
		c.RelationTypes = []lexicon.RelationType{lexicon.RelationSynonym, lexicon.RelationAntonym}
	}
	if c.BatchSize <= 0 {
		c.BatchSize = 5
	}
	if c.Concurrency <= 0 {
		c.Concurrency = 3
	}
	if c.MinConfidence == 0 {
		c.MinConfidence = 0.5
	}
	c.POSFilter = strings.ToLower(strings.TrimSpace(c.POSFilter))
}

// Validate rejects configurations that could never enumerate a word set or
// that name unknown enum members. MaxWords == 0 is valid and yields an empty
// batch that completes immediately.
func (c *BuildConfig) Validate() error {
	switch c.JobType {
	case domainjobs.JobTypeRelationBuild, domainjobs.JobTypeDictionaryImport, domainjobs.JobTypeClusterAnalysis:
	default:
		return fmt.Errorf("%w: unknown job_type %q", apperrors.ErrInvalidArgument, c.JobType)
	}

	if len(c.WordList) > 0 && c.POSFilter != "" {
		return fmt.Errorf("%w: word_list and pos_filter are mutually exclusive source modes", apperrors.ErrInvalidArgument)
	}
	if c.MaxWords < 0 {
		return fmt.Errorf("%w: max_words must be >= 0", apperrors.ErrInvalidArgument)
	}
	if c.MinConfidence < 0 || c.MinConfidence > 1 {
		return fmt.Errorf("%w: min_confidence must be in [0,1]", apperrors.ErrInvalidArgument)
	}
	for _, rt := range c.RelationTypes {
		if !lexicon.ValidRelationType(rt) {
			return fmt.Errorf("%w: unknown relation type %q", apperrors.ErrInvalidArgument, rt)
		}
	}
	return nil
}
