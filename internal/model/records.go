package model

// ExperimentConfig captures every knob that shapes one reconstruction run.
type ExperimentConfig struct {
	Inputs          []float64 `json:"inputs"`
	MinVal          float64   `json:"min_val"`
	MaxVal          float64   `json:"max_val"`
	EncoderWidth    int       `json:"encoder_width"`
	EncoderActive   int       `json:"encoder_active"`
	Noise           float64   `json:"noise,omitempty"`
	Coder           string    `json:"coder"`
	Columns         int       `json:"columns"`
	ActiveColumns   int       `json:"active_columns"`
	PotentialPct    float64   `json:"potential_pct"`
	CoderStable     int       `json:"coder_stable_cycles"`
	MaxCycles       int       `json:"max_cycles"`
	StableThreshold int       `json:"stable_threshold"`
	Matchers        []string  `json:"matchers"`
	KNNNeighbours   int       `json:"knn_neighbours,omitempty"`
	ShuffleQueries  bool      `json:"shuffle_queries"`
	Seed            int64     `json:"seed"`
}

type TrainingOutcome struct {
	Cycles       int    `json:"cycles"`
	StableCycles int    `json:"stable_cycles"`
	Converged    bool   `json:"converged"`
	Reason       string `json:"reason"`
	Transitions  int    `json:"transitions"`
	Regressions  int    `json:"regressions"`
}

// CycleDiagnostics aggregates the per-input drift observed in one training
// cycle.
type CycleDiagnostics struct {
	Cycle          int     `json:"cycle"`
	Stable         bool    `json:"stable"`
	StableCycles   int     `json:"stable_cycles"`
	MeanSimilarity float64 `json:"mean_similarity"`
	MinSimilarity  float64 `json:"min_similarity"`
	MeanActive     float64 `json:"mean_active"`
}

type MatchRecord struct {
	Matcher    string  `json:"matcher"`
	Found      bool    `json:"found"`
	Label      string  `json:"label,omitempty"`
	Predicted  float64 `json:"predicted"`
	Similarity float64 `json:"similarity"`
	Error      float64 `json:"error"`
}

type QueryRecord struct {
	Order   int           `json:"order"`
	Input   float64       `json:"input"`
	Label   string        `json:"label"`
	Active  int           `json:"active"`
	Results []MatchRecord `json:"results"`
}

type MatcherSummary struct {
	Matcher        string  `json:"matcher"`
	Queries        int     `json:"queries"`
	Found          int     `json:"found"`
	Misses         int     `json:"misses"`
	ExactMatches   int     `json:"exact_matches"`
	MeanAbsError   float64 `json:"mean_abs_error"`
	StdAbsError    float64 `json:"std_abs_error"`
	MaxAbsError    float64 `json:"max_abs_error"`
	MeanSimilarity float64 `json:"mean_similarity"`
	Cosine         float64 `json:"cosine"`
}

type RunRecord struct {
	VersionedRecord
	ID           string           `json:"id"`
	CreatedAtUTC string           `json:"created_at_utc"`
	Config       ExperimentConfig `json:"config"`
	Training     TrainingOutcome  `json:"training"`
	Summaries    []MatcherSummary `json:"summaries"`
}

type PatternEntry struct {
	Label string `json:"label"`
	Code  []int  `json:"code"`
}

type VoteEntry struct {
	Index int     `json:"index"`
	Label string  `json:"label"`
	Count float64 `json:"count"`
}

// PatternMemorySnapshot is a matcher's learned state. Distance matchers fill
// Entries, vote matchers fill Votes.
type PatternMemorySnapshot struct {
	VersionedRecord
	Matcher string         `json:"matcher"`
	Labels  []string       `json:"labels"`
	Entries []PatternEntry `json:"entries,omitempty"`
	Votes   []VoteEntry    `json:"votes,omitempty"`
}
