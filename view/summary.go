package view

type HeaderCell struct {
	Name     string `json:"name"`
	FullName string `json:"full_name,omitempty"`
	Rowspan  int    `json:"rowspan,omitempty"`
	Colspan  int    `json:"colspan,omitempty"`
}

type SummaryRow struct {
	Rank       int        `json:"rank"`
	BidderName string     `json:"bidder_name"`
	Scores     []*float64 `json:"scores"`
	PriceScore float64    `json:"price_score"`
	TotalScore float64    `json:"total_score"`
	IsVetoed   bool       `json:"is_vetoed,omitempty"`
}

type DynamicSummary struct {
	HeaderRows [][]HeaderCell `json:"header_rows"`
	Rows       []SummaryRow   `json:"rows"`
}
