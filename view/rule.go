package view

type ScoringRule struct {
	Id              int64         `json:"id"`
	Category        string        `json:"category"`
	CriteriaName    string        `json:"criteria_name"`
	MaxScore        float64       `json:"max_score"`
	Weight          float64       `json:"weight"`
	Description     string        `json:"description"`
	IsVeto          bool          `json:"is_veto"`
	IsPriceCriteria bool          `json:"is_price_criteria"`
	PriceFormula    string        `json:"price_formula,omitempty"`
	Children        []ScoringRule `json:"children,omitempty"`
}

// RuleDraft is a rule tree node produced by extraction, before it is persisted.
type RuleDraft struct {
	CriteriaName    string      `json:"criteria_name"`
	MaxScore        float64     `json:"max_score"`
	Description     string      `json:"description"`
	IsVeto          bool        `json:"is_veto"`
	IsPriceCriteria bool        `json:"is_price_criteria"`
	PriceFormula    string      `json:"price_formula"`
	Children        []RuleDraft `json:"children"`
}

// LLMRule is a flat rule returned by the model. Parent holds the parent criterion name.
type LLMRule struct {
	CriteriaName    string  `json:"criteria_name" jsonschema_description:"Name of the scoring criterion"`
	MaxScore        float64 `json:"max_score" jsonschema_description:"Maximum score of the criterion"`
	Description     string  `json:"description" jsonschema_description:"Scoring standard text"`
	IsVeto          bool    `json:"is_veto" jsonschema_description:"True if failing the criterion disqualifies the bid"`
	IsPriceCriteria bool    `json:"is_price_criteria" jsonschema_description:"True for the price criterion"`
	PriceFormula    string  `json:"price_formula" jsonschema_description:"Price score formula if any"`
	Parent          string  `json:"parent" jsonschema_description:"Name of the parent criterion or empty string for top level"`
}

type LLMRules struct {
	Rules []LLMRule `json:"rules"`
}

type ExtractRulesResponse struct {
	Message string        `json:"message"`
	Count   int           `json:"count"`
	Rules   []ScoringRule `json:"rules"`
}

// Leaves returns leaf rules in tree order.
func Leaves(rules []ScoringRule) []ScoringRule {
	var result []ScoringRule
	for _, r := range rules {
		if len(r.Children) == 0 {
			result = append(result, r)
			continue
		}
		result = append(result, Leaves(r.Children)...)
	}
	return result
}
