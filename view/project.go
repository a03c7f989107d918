package view

import "time"

type Project struct {
	Id          int64         `json:"id"`
	ProjectCode string        `json:"project_code"`
	Name        string        `json:"name"`
	Description string        `json:"description"`
	CreatedAt   time.Time     `json:"created_at"`
	Status      ProjectStatus `json:"status"`
	BidCount    int           `json:"bid_count"`
	ResultCount int           `json:"result_count"`
}

type AnalyzeResponse struct {
	ProjectId int64 `json:"project_id"`
}

type BidProgress struct {
	Id                     int64           `json:"id"`
	BidderName             string          `json:"bidder_name"`
	Status                 BidStatus       `json:"status"`
	ErrorMessage           string          `json:"error_message,omitempty"`
	ProgressCompleted      int             `json:"progress_completed"`
	ProgressTotal          int             `json:"progress_total"`
	CurrentRule            string          `json:"current_rule,omitempty"`
	DetailedProgressInfo   string          `json:"detailed_progress_info,omitempty"`
	PartialAnalysisResults []PartialResult `json:"partial_analysis_results,omitempty"`
}

type AnalysisStatus struct {
	ProjectStatus ProjectStatus `json:"project_status"`
	Bids          []BidProgress `json:"bids"`
}

type FailedPage struct {
	Page  int    `json:"page"`
	Error string `json:"error"`
}

type FailedPages struct {
	BidId       int64        `json:"bid_id"`
	FileName    string       `json:"file_name"`
	FailedPages []FailedPage `json:"failed_pages"`
}
