package model

// Impact is the direction a factor pushes the score
type Impact string

const (
	ImpactPositive Impact = "positive"
	ImpactNegative Impact = "negative"
	ImpactNeutral  Impact = "neutral"
)

// Severity ranks how strongly a factor matters
type Severity string

const (
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

// Rank orders severities for driver selection, high first
func (s Severity) Rank() int {
	switch s {
	case SeverityHigh:
		return 2
	case SeverityMedium:
		return 1
	default:
		return 0
	}
}

// Confidence is the qualitative reliability of a score
type Confidence string

const (
	ConfidenceHigh   Confidence = "high"
	ConfidenceMedium Confidence = "medium"
	ConfidenceLow    Confidence = "low"
)

// RiskFactor explains one sub-factor of a component score
type RiskFactor struct {
	Name        string   `json:"name"`
	Component   string   `json:"component"`
	Value       float64  `json:"value"`
	Impact      Impact   `json:"impact"`
	Description string   `json:"description"`
	Severity    Severity `json:"severity"`

	// Contribution is this factor's share of the total score in points
	Contribution float64 `json:"contribution"`
}

// RiskComponents are the five weighted sub-scores, each in [0,100], higher is riskier
type RiskComponents struct {
	Liquidity     float64 `json:"liquidity"`
	Stability     float64 `json:"stability"`
	Yield         float64 `json:"yield"`
	Concentration float64 `json:"concentration"`
	Momentum      float64 `json:"momentum"`
}

// RiskScore is the bounded, explainable output of the risk engine
type RiskScore struct {
	Total      int            `json:"total"`
	Label      RiskTier       `json:"label"`
	Components RiskComponents `json:"components"`
	Drivers    []RiskFactor   `json:"drivers"`
	Confidence Confidence     `json:"confidence"`

	// ConfidenceScore is the averaged per-component confidence in [0,1]
	ConfidenceScore float64 `json:"confidenceScore"`
}
