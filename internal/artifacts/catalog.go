package artifacts

// Artifact is an expected stage output. Path is relative to the project
// root; Remote is the path under the remote base URL and is empty for
// artifacts that are never published.
type Artifact struct {
	Key    string `json:"key"`
	Name   string `json:"name"`
	Path   string `json:"path"`
	Remote string `json:"remote,omitempty"`
}

// Published reports whether the artifact can be read in remote mode
func (a Artifact) Published() bool {
	return a.Remote != ""
}

// Artifact keys
const (
	KeyProcessedData   = "processed_data"
	KeyIndustryIndex   = "industry_index"
	KeyFactorData      = "factor_data"
	KeyFactorAnalysis  = "factor_analysis"
	KeyLayeredFactors  = "layered_factors"
	KeyFactorPerf      = "factor_performance"
	KeyRotationScores  = "rotation_scores"
	KeySelectedFactors = "selected_factors"
	KeyBacktestMetrics = "backtest_metrics"
	KeyPeriodReturns   = "period_returns"
	KeyTradeSignals    = "trade_signals"
	KeyEnhancedMetrics = "enhanced_metrics"
	KeyPrices          = "prices"
)

const (
	factorDir   = "relative_strength/factor_engineering/"
	rotationDir = "relative_strength/factor_rotation/rotation_results/"
	backtestDir = "relative_strength/factor_rotation/backtest_results/"
)

// StandardArtifacts returns the outputs of the default stage catalog in
// pipeline order.
func StandardArtifacts() []Artifact {
	return []Artifact{
		{Key: KeyProcessedData, Name: "processed dataset", Path: "relative_strength/processed_industry_data.pkl"},
		{Key: KeyIndustryIndex, Name: "industry index data", Path: "data/industry_index_data.pkl"},
		{Key: KeyFactorData, Name: "factor data", Path: factorDir + "factor_data.pkl"},
		{Key: KeyFactorAnalysis, Name: "factor analysis results", Path: factorDir + "factor_analysis_results.pkl"},
		{Key: KeyLayeredFactors, Name: "layered factors", Path: "layered_factors_v2.pkl"},
		{Key: KeyFactorPerf, Name: "factor performance", Path: factorDir + "factor_analysis_results/factor_performance.csv"},
		{Key: KeyRotationScores, Name: "rotation scores", Path: rotationDir + "rotation_scores.csv", Remote: "rotation_scores.csv"},
		{Key: KeySelectedFactors, Name: "selected factors", Path: rotationDir + "selected_factors.csv", Remote: "selected_factors.csv"},
		{Key: KeyBacktestMetrics, Name: "backtest metrics", Path: rotationDir + "backtest_metrics.csv"},
		{Key: KeyPeriodReturns, Name: "period returns", Path: backtestDir + "period_returns_top3_5d.csv", Remote: "backtest_results/period_returns_top3_5d.csv"},
		{Key: KeyTradeSignals, Name: "trade signals", Path: backtestDir + "trade_signals_top3_5d.csv", Remote: "backtest_results/trade_signals_top3_5d.csv"},
		{Key: KeyEnhancedMetrics, Name: "enhanced backtest metrics", Path: backtestDir + "backtest_metrics_top3_5d.csv", Remote: "backtest_results/backtest_metrics_top3_5d.csv"},
	}
}

// PriceArtifact describes the price table at the configured path
func PriceArtifact(path string) Artifact {
	return Artifact{Key: KeyPrices, Name: "price series", Path: path, Remote: "prices.csv"}
}

// Lookup finds a standard artifact by key
func Lookup(key string) (Artifact, bool) {
	for _, a := range StandardArtifacts() {
		if a.Key == key {
			return a, true
		}
	}
	return Artifact{}, false
}
