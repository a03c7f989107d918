package view

type AnalysisResult struct {
	Id             int64            `json:"id"`
	BidderName     string           `json:"bidder_name"`
	TotalScore     float64          `json:"total_score"`
	PriceScore     float64          `json:"price_score"`
	ExtractedPrice *float64         `json:"extracted_price"`
	DetailedScores []CriterionScore `json:"detailed_scores"`
	AiModel        string           `json:"ai_model"`
	IsVetoed       bool             `json:"is_vetoed"`
	IsModified     bool             `json:"is_modified,omitempty"`
}

type ScoreUpdate struct {
	Id         int64   `json:"id"`
	TotalScore float64 `json:"total_score"`
}

type UpdateCountResponse struct {
	Message      string `json:"message"`
	UpdatedCount int    `json:"updated_count"`
}

type RecalculateResponse struct {
	Message      string             `json:"message"`
	PriceScores  map[string]float64 `json:"price_scores"`
	UpdatedCount int                `json:"updated_count"`
}
