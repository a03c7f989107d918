package entity

import (
	"time"

	"github.com/Netcracker/qubership-bid-evaluation-service/view"
)

// TenderProject also serves as the rule extraction task of the project.
type TenderProject struct {
	tableName struct{} `pg:"tender_project"`

	Id             int64              `pg:"id,pk"`
	ProjectCode    string             `pg:"project_code,type:varchar,notnull"`
	Name           string             `pg:"name,type:varchar,notnull"`
	Description    string             `pg:"description,type:varchar"`
	TenderFileName string             `pg:"tender_file_name,type:varchar,notnull"`
	TenderFileKey  string             `pg:"tender_file_key,type:varchar,notnull"`
	Status         view.ProjectStatus `pg:"status,type:varchar,notnull"`
	CreatedAt      time.Time          `pg:"created_at,type:timestamp without time zone,notnull"`

	RulesStatus  view.TaskStatus `pg:"rules_status,type:varchar,notnull"`
	RulesDetails string          `pg:"rules_details,type:varchar"`
	ExecutorId   string          `pg:"executor_id,type:varchar"`
	LastActive   *time.Time      `pg:"last_active,type:timestamp without time zone"`
	RestartCount int             `pg:"restart_count,type:integer,notnull,use_zero"`
}

type ProjectWithCounts struct {
	TenderProject
	BidCount    int `pg:"bid_count"`
	ResultCount int `pg:"result_count"`
}

func MakeProjectView(ent ProjectWithCounts) view.Project {
	return view.Project{
		Id:          ent.Id,
		ProjectCode: ent.ProjectCode,
		Name:        ent.Name,
		Description: ent.Description,
		CreatedAt:   ent.CreatedAt,
		Status:      ent.Status,
		BidCount:    ent.BidCount,
		ResultCount: ent.ResultCount,
	}
}
