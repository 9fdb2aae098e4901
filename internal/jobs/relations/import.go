package relations

import (
	"context"
	"fmt"

	domainjobs "github.com/kotobalab/kotoba-backend/internal/domain/jobs"
	"github.com/kotobalab/kotoba-backend/internal/domain/lexicon"
	"github.com/kotobalab/kotoba-backend/internal/jobs/runtime"
	apperrors "github.com/kotobalab/kotoba-backend/internal/pkg/errors"
	"github.com/kotobalab/kotoba-backend/internal/platform/logger"
)

// Seeder writes vocabulary nodes into the graph.
type Seeder interface {
	SeedWords(ctx context.Context, words []lexicon.WordRecord) (int, error)
}

// ImportConfig is the payload of a dictionary-import job run.
type ImportConfig struct {
	Entries   []lexicon.WordRecord `json:"entries"`
	BatchSize int                  `json:"batch_size,omitempty"`
}

type ImportResult struct {
	TotalEntries int `json:"total_entries"`
	Seeded       int `json:"seeded"`
	Skipped      int `json:"skipped"`
}

// Importer is the dictionary-import job handler. It seeds vocabulary entries
// into the graph in batches so progress survives a mid-run crash.
type Importer struct {
	log   *logger.Logger
	store Seeder
}

func NewImporter(store Seeder, baseLog *logger.Logger) *Importer {
	return &Importer{
		log:   baseLog.With("component", "dictionary_importer"),
		store: store,
	}
}

func (im *Importer) Type() string { return domainjobs.JobTypeDictionaryImport }

func (im *Importer) Run(jc *runtime.Context) error {
	var cfg ImportConfig
	if err := jc.UnmarshalPayload(&cfg); err != nil {
		jc.Fail("config", err)
		return nil
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 200
	}

	valid := make([]lexicon.WordRecord, 0, len(cfg.Entries))
	skipped := 0
	for _, e := range cfg.Entries {
		if e.Kanji == "" {
			skipped++
			continue
		}
		valid = append(valid, e)
	}
	if len(cfg.Entries) > 0 && len(valid) == 0 {
		jc.Fail("config", fmt.Errorf("%w: no entries with a kanji form", apperrors.ErrInvalidArgument))
		return nil
	}

	result := &ImportResult{TotalEntries: len(cfg.Entries), Skipped: skipped}
	for start := 0; start < len(valid); start += cfg.BatchSize {
		if jc.Cancelled() {
			im.log.Info("dictionary import cancelled", "job_id", jc.Job.ID, "seeded", result.Seeded)
			jc.SetResult(result)
			return nil
		}
		end := start + cfg.BatchSize
		if end > len(valid) {
			end = len(valid)
		}
		n, err := im.store.SeedWords(jc.Ctx, valid[start:end])
		if err != nil {
			jc.SetResult(result)
			jc.Fail("seed", err)
			return nil
		}
		result.Seeded += n
		pct := end * 100 / len(valid)
		jc.SetResult(result)
		jc.Progress("seeding", pct, fmt.Sprintf("seeded %d/%d entries", end, len(valid)))
	}

	jc.Succeed("completed", result)
	return nil
}
