package view

// CriterionScore is a node of the detailed score tree stored with an analysis result.
// The tree mirrors the scoring rule tree of the project.
type CriterionScore struct {
	CriteriaName    string           `json:"criteria_name"`
	Category        string           `json:"category,omitempty"`
	MaxScore        float64          `json:"max_score"`
	Score           float64          `json:"score"`
	Reason          string           `json:"reason,omitempty"`
	IsPriceCriteria bool             `json:"is_price_criteria,omitempty"`
	IsVeto          bool             `json:"is_veto,omitempty"`
	ExtractedPrice  *float64         `json:"extracted_price,omitempty"`
	Children        []CriterionScore `json:"children,omitempty"`
}

type PartialResult struct {
	CriteriaName string  `json:"criteria_name"`
	Score        float64 `json:"score"`
	MaxScore     float64 `json:"max_score"`
	Reason       string  `json:"reason,omitempty"`
}

// LLMScore is the structured answer expected from the model for a single criterion.
type LLMScore struct {
	Score  float64 `json:"score" jsonschema_description:"Score given to the bid for the criterion"`
	Reason string  `json:"reason" jsonschema_description:"Short justification of the score"`
}

type LLMBidderName struct {
	Name string `json:"name" jsonschema_description:"Full company name of the bidder or empty string if not found"`
}

// CriterionRequest carries everything needed to ask a model to score one criterion.
type CriterionRequest struct {
	BidderName   string
	CriteriaName string
	Category     string
	Description  string
	MaxScore     float64
	IsVeto       bool
	Context      string
}

// FindCriterionScore looks up a criterion by name anywhere in the score tree.
func FindCriterionScore(scores []CriterionScore, name string) *float64 {
	for _, s := range scores {
		if s.CriteriaName == name {
			v := s.Score
			return &v
		}
		if v := FindCriterionScore(s.Children, name); v != nil {
			return v
		}
	}
	return nil
}
