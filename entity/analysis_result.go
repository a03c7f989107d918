package entity

import (
	"time"

	"github.com/Netcracker/qubership-bid-evaluation-service/view"
)

type AnalysisResult struct {
	tableName struct{} `pg:"analysis_result"`

	Id              int64                 `pg:"id,pk"`
	ProjectId       int64                 `pg:"project_id,notnull"`
	BidDocumentId   int64                 `pg:"bid_document_id,notnull,unique"`
	BidderName      string                `pg:"bidder_name,type:varchar,notnull"`
	TotalScore      float64               `pg:"total_score,notnull,use_zero"`
	PriceScore      float64               `pg:"price_score,notnull,use_zero"`
	ExtractedPrice  *float64              `pg:"extracted_price"`
	DetailedScores  []view.CriterionScore `pg:"detailed_scores,type:jsonb"`
	IsVetoed        bool                  `pg:"is_vetoed,notnull,use_zero"`
	AnalysisSummary string                `pg:"analysis_summary,type:text"`
	AiModel         string                `pg:"ai_model,type:varchar"`
	ScoringMethod   string                `pg:"scoring_method,type:varchar"`
	AnalyzedAt      time.Time             `pg:"analyzed_at,type:timestamp without time zone,notnull"`

	IsModified        bool       `pg:"is_modified,notnull,use_zero"`
	ModificationCount int        `pg:"modification_count,notnull,use_zero"`
	LastModifiedAt    *time.Time `pg:"last_modified_at,type:timestamp without time zone"`
	LastModifiedBy    string     `pg:"last_modified_by,type:varchar"`
}

type ScoreModificationHistory struct {
	tableName struct{} `pg:"score_modification_history"`

	Id               int64     `pg:"id,pk"`
	AnalysisResultId int64     `pg:"analysis_result_id,notnull"`
	CriteriaName     string    `pg:"criteria_name,type:varchar,notnull"`
	OriginalScore    float64   `pg:"original_score,notnull,use_zero"`
	NewScore         float64   `pg:"new_score,notnull,use_zero"`
	ModificationType string    `pg:"modification_type,type:varchar,notnull"`
	ModifiedBy       string    `pg:"modified_by,type:varchar"`
	ModifiedAt       time.Time `pg:"modified_at,type:timestamp without time zone,notnull"`
}

func MakeAnalysisResultView(ent AnalysisResult) view.AnalysisResult {
	return view.AnalysisResult{
		Id:             ent.Id,
		BidderName:     ent.BidderName,
		TotalScore:     ent.TotalScore,
		PriceScore:     ent.PriceScore,
		ExtractedPrice: ent.ExtractedPrice,
		DetailedScores: ent.DetailedScores,
		AiModel:        ent.AiModel,
		IsVetoed:       ent.IsVetoed,
		IsModified:     ent.IsModified,
	}
}

// AllModels lists the tables owned by the service in creation order.
func AllModels() []interface{} {
	return []interface{}{
		(*TenderProject)(nil),
		(*BidDocument)(nil),
		(*ScoringRule)(nil),
		(*AnalysisResult)(nil),
		(*ScoreModificationHistory)(nil),
	}
}
