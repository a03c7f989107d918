package view

type TaskStatus string

const (
	TaskStatusNotStarted TaskStatus = "not_started"
	TaskStatusProcessing TaskStatus = "processing"
	TaskStatusSuccess    TaskStatus = "success"
	TaskStatusError      TaskStatus = "error"
)

type BidStatus string

const (
	BidStatusPending    BidStatus = "pending"
	BidStatusProcessing BidStatus = "processing"
	BidStatusCompleted  BidStatus = "completed"
	BidStatusError      BidStatus = "error"
)

func (s BidStatus) IsTerminal() bool {
	return s == BidStatusCompleted || s == BidStatusError
}

type ProjectStatus string

const (
	ProjectStatusProcessing          ProjectStatus = "processing"
	ProjectStatusCompleted           ProjectStatus = "completed"
	ProjectStatusCompletedWithErrors ProjectStatus = "completed_with_errors"
)

func (s ProjectStatus) IsTerminal() bool {
	return s == ProjectStatusCompleted || s == ProjectStatusCompletedWithErrors
}
