package relations

import (
	"context"

	"github.com/kotobalab/kotoba-backend/internal/data/graph"
	domainjobs "github.com/kotobalab/kotoba-backend/internal/domain/jobs"
	"github.com/kotobalab/kotoba-backend/internal/jobs/runtime"
	"github.com/kotobalab/kotoba-backend/internal/platform/logger"
)

// StatsSource reads connectivity statistics from the graph.
type StatsSource interface {
	RelationDegreeStats(ctx context.Context, limit int) ([]graph.DegreeStat, error)
}

// ClusterConfig is the payload of a cluster-analysis job run.
type ClusterConfig struct {
	Limit int `json:"limit,omitempty"`
}

type ClusterResult struct {
	Words     int                `json:"words"`
	MaxDegree int                `json:"max_degree"`
	AvgDegree float64            `json:"avg_degree"`
	Top       []graph.DegreeStat `json:"top,omitempty"`
}

// Analyzer is the cluster-analysis job handler. It summarizes how densely
// connected the relation graph is, most-connected words first.
type Analyzer struct {
	log   *logger.Logger
	store StatsSource
}

func NewAnalyzer(store StatsSource, baseLog *logger.Logger) *Analyzer {
	return &Analyzer{
		log:   baseLog.With("component", "cluster_analyzer"),
		store: store,
	}
}

func (a *Analyzer) Type() string { return domainjobs.JobTypeClusterAnalysis }

func (a *Analyzer) Run(jc *runtime.Context) error {
	var cfg ClusterConfig
	if err := jc.UnmarshalPayload(&cfg); err != nil {
		jc.Fail("config", err)
		return nil
	}
	if cfg.Limit <= 0 {
		cfg.Limit = 50
	}

	jc.Progress("analyzing", 10, "collecting relation degree statistics")
	stats, err := a.store.RelationDegreeStats(jc.Ctx, cfg.Limit)
	if err != nil {
		jc.Fail("analyzing", err)
		return nil
	}

	result := &ClusterResult{Words: len(stats), Top: stats}
	total := 0
	for _, s := range stats {
		if s.Degree > result.MaxDegree {
			result.MaxDegree = s.Degree
		}
		total += s.Degree
	}
	if len(stats) > 0 {
		result.AvgDegree = float64(total) / float64(len(stats))
	}

	jc.Succeed("completed", result)
	return nil
}
