package entity

import (
	"time"

	"github.com/Netcracker/qubership-bid-evaluation-service/view"
)

type BidDocument struct {
	tableName struct{} `pg:"bid_document"`

	Id         int64     `pg:"id,pk"`
	ProjectId  int64     `pg:"project_id,notnull"`
	BidderName string    `pg:"bidder_name,type:varchar,notnull"`
	FileName   string    `pg:"file_name,type:varchar,notnull"`
	FileKey    string    `pg:"file_key,type:varchar,notnull"`
	FileSize   int64     `pg:"file_size,notnull,use_zero"`
	UploadedAt time.Time `pg:"uploaded_at,type:timestamp without time zone,notnull"`

	Status               view.BidStatus       `pg:"status,type:varchar,notnull"`
	ErrorMessage         string               `pg:"error_message,type:varchar"`
	ProgressTotal        int                  `pg:"progress_total,notnull,use_zero"`
	ProgressCompleted    int                  `pg:"progress_completed,notnull,use_zero"`
	CurrentRule          string               `pg:"current_rule,type:varchar"`
	DetailedProgressInfo string               `pg:"detailed_progress_info,type:varchar"`
	PartialResults       []view.PartialResult `pg:"partial_results,type:jsonb"`
	FailedPages          []view.FailedPage    `pg:"failed_pages,type:jsonb"`

	ExecutorId     string     `pg:"executor_id,type:varchar"`
	LastActive     *time.Time `pg:"last_active,type:timestamp without time zone"`
	RestartCount   int        `pg:"restart_count,type:integer,notnull,use_zero"`
	AnalysisTimeMs int64      `pg:"analysis_time_ms,notnull,use_zero"`
}

// BidProgress is a snapshot written by the analyzer while a bid is being scored.
type BidProgress struct {
	Completed      int
	Total          int
	CurrentRule    string
	Details        string
	PartialResults []view.PartialResult
}

func MakeBidProgressView(ent BidDocument) view.BidProgress {
	return view.BidProgress{
		Id:                     ent.Id,
		BidderName:             ent.BidderName,
		Status:                 ent.Status,
		ErrorMessage:           ent.ErrorMessage,
		ProgressCompleted:      ent.ProgressCompleted,
		ProgressTotal:          ent.ProgressTotal,
		CurrentRule:            ent.CurrentRule,
		DetailedProgressInfo:   ent.DetailedProgressInfo,
		PartialAnalysisResults: ent.PartialResults,
	}
}
