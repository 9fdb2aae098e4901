package relations

import "fmt"

const (
	recentWindow = 20
	sampleLimit  = 25
)

// ModelUsage aggregates AI spend per model name across a whole run.
type ModelUsage struct {
	Requests       int     `json:"requests"`
	TokensIn       int     `json:"tokens_in"`
	TokensOut      int     `json:"tokens_out"`
	CostUSD        float64 `json:"cost_usd"`
	TotalLatencyMS int64   `json:"total_latency_ms"`
	AvgLatencyMS   int64   `json:"avg_latency_ms"`
}

// ResolutionStats counts candidate-level outcomes. Sample lists are bounded
// so the persisted result stays small on large runs.
type ResolutionStats struct {
	Attempted            int      `json:"attempted"`
	Resolved             int      `json:"resolved"`
	DroppedNotFound      int      `json:"dropped_not_found"`
	DroppedAmbiguous     int      `json:"dropped_ambiguous"`
	DroppedLowConfidence int      `json:"dropped_low_confidence"`
	DroppedSelfReference int      `json:"dropped_self_reference"`
	ResolutionRate       float64  `json:"resolution_rate"`
	NotFoundSamples      []string `json:"not_found_samples,omitempty"`
	AmbiguousSamples     []string `json:"ambiguous_samples,omitempty"`
}

// WordOutcome is one entry of the rolling per-word window.
type WordOutcome struct {
	Kanji   string `json:"kanji"`
	Created int    `json:"created"`
	Updated int    `json:"updated"`
	Dropped int    `json:"dropped"`
	Error   string `json:"error,omitempty"`
}

// BuildResult is persisted on every progress update and finalized on success,
// so a partially failed or cancelled run still leaves an inspectable record.
type BuildResult struct {
	TotalWords       int                    `json:"total_words"`
	Processed        int                    `json:"processed"`
	CurrentWord      string                 `json:"current_word,omitempty"`
	RelationsCreated int                    `json:"relations_created"`
	RelationsUpdated int                    `json:"relations_updated"`
	Errors           int                    `json:"errors"`
	Resolution       ResolutionStats        `json:"resolution"`
	Usage            map[string]*ModelUsage `json:"usage,omitempty"`
	Recent           []WordOutcome          `json:"recent,omitempty"`
}

func newBuildResult(total int) *BuildResult {
	return &BuildResult{TotalWords: total, Usage: map[string]*ModelUsage{}}
}

func (r *BuildResult) addUsage(model string, tokensIn, tokensOut int, latencyMS int64, cost float64) {
	if model == "" {
		model = "unknown"
	}
	u, ok := r.Usage[model]
	if !ok {
		u = &ModelUsage{}
		r.Usage[model] = u
	}
	u.Requests++
	u.TokensIn += tokensIn
	u.TokensOut += tokensOut
	u.TotalLatencyMS += latencyMS
	u.CostUSD += cost
}

func (r *BuildResult) addRecent(o WordOutcome) {
	r.Recent = append(r.Recent, o)
	if len(r.Recent) > recentWindow {
		r.Recent = r.Recent[len(r.Recent)-recentWindow:]
	}
}

func (r *BuildResult) addNotFoundSample(source, target, reason string) {
	if len(r.Resolution.NotFoundSamples) >= sampleLimit {
		return
	}
	r.Resolution.NotFoundSamples = append(r.Resolution.NotFoundSamples,
		fmt.Sprintf("%s -> %s (%s)", source, target, reason))
}

func (r *BuildResult) addAmbiguousSample(source, target string, count int) {
	if len(r.Resolution.AmbiguousSamples) >= sampleLimit {
		return
	}
	r.Resolution.AmbiguousSamples = append(r.Resolution.AmbiguousSamples,
		fmt.Sprintf("%s -> %s (%d tied matches)", source, target, count))
}

// finalize computes derived fields and returns the result for persistence.
func (r *BuildResult) finalize() *BuildResult {
	if r.Resolution.Attempted > 0 {
		r.Resolution.ResolutionRate = float64(r.Resolution.Resolved) / float64(r.Resolution.Attempted)
	}
	for _, u := range r.Usage {
		if u.Requests > 0 {
			u.AvgLatencyMS = u.TotalLatencyMS / int64(u.Requests)
		}
	}
	return r
}
