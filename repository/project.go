package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/Netcracker/qubership-bid-evaluation-service/db"
	"github.com/Netcracker/qubership-bid-evaluation-service/entity"
	"github.com/Netcracker/qubership-bid-evaluation-service/view"
	"github.com/go-pg/pg/v10"
)

// ProjectFinalizer computes the final state of a project whose bids are all terminal.
// It returns the results to update and the resulting project status.
type ProjectFinalizer func(bids []entity.BidDocument, results []entity.AnalysisResult) ([]entity.AnalysisResult, view.ProjectStatus, error)

type ProjectRepository interface {
	CreateProject(ctx context.Context, project *entity.TenderProject, bids []entity.BidDocument) error
	GetProject(ctx context.Context, id int64) (*entity.TenderProject, error)
	ListProjects(ctx context.Context) ([]entity.ProjectWithCounts, error)
	FindFreeRulesTask(ctx context.Context, executorId string, restartLimit int) (*entity.TenderProject, []entity.TenderProject, error)
	// SetRulesStatus changes the rules task status while this executor holds the task in processing.
	SetRulesStatus(ctx context.Context, id int64, status view.TaskStatus, details string, executorId string) error
	// TouchRulesTask refreshes last_active of a rules task this executor is still processing.
	TouchRulesTask(ctx context.Context, id int64, executorId string) error
	FailRulesTask(ctx context.Context, id int64, details string) error
	FinalizeProject(ctx context.Context, id int64, finalizer ProjectFinalizer) (bool, error)
	// DeleteFinishedProjects removes finished projects whose name matches the LIKE filter together with
	// their bids, rules and results. Returns the storage keys of the removed files.
	DeleteFinishedProjects(ctx context.Context, nameFilter string) ([]string, error)
}

func NewProjectRepository(cp db.ConnectionProvider) ProjectRepository {
	return &projectRepositoryImpl{cp: cp}
}

type projectRepositoryImpl struct {
	cp db.ConnectionProvider
}

func (p projectRepositoryImpl) CreateProject(ctx context.Context, project *entity.TenderProject, bids []entity.BidDocument) error {
	return p.cp.GetConnection().RunInTransaction(ctx, func(tx *pg.Tx) error {
		_, err := tx.Model(project).Returning("id").Insert()
		if err != nil {
			return fmt.Errorf("failed to insert project: %w", err)
		}
		for i := range bids {
			bids[i].ProjectId = project.Id
		}
		if len(bids) > 0 {
			_, err = tx.Model(&bids).Returning("id").Insert()
			if err != nil {
				return fmt.Errorf("failed to insert bid documents: %w", err)
			}
		}
		return nil
	})
}

func (p projectRepositoryImpl) GetProject(ctx context.Context, id int64) (*entity.TenderProject, error) {
	var ent entity.TenderProject
	err := p.cp.GetConnection().ModelContext(ctx, &ent).Where("id = ?", id).Select()
	if err != nil {
		if errors.Is(err, pg.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &ent, nil
}

const listProjectsQuery = `select p.*,
	(select count(*) from bid_document b where b.project_id = p.id) as bid_count,
	(select count(*) from analysis_result r where r.project_id = p.id) as result_count
from tender_project p
order by p.created_at desc, p.id desc`

func (p projectRepositoryImpl) ListProjects(ctx context.Context) ([]entity.ProjectWithCounts, error) {
	var ents []entity.ProjectWithCounts
	_, err := p.cp.GetConnection().QueryContext(ctx, &ents, listProjectsQuery)
	if err != nil {
		if errors.Is(err, pg.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return ents, nil
}

const taskKeepaliveTimeoutSec = 30

var queryRulesTask = fmt.Sprintf("select * from tender_project p where "+
	"(p.rules_status='%s' or (p.rules_status='%s' and p.last_active < (now() - interval '%d seconds'))) "+
	"order by p.created_at ASC limit 1 for no key update skip locked", view.TaskStatusNotStarted, view.TaskStatusProcessing, taskKeepaliveTimeoutSec)

// FindFreeRulesTask takes the oldest project waiting for rule extraction.
// Projects that exceeded the restart limit are failed and returned separately.
func (p projectRepositoryImpl) FindFreeRulesTask(ctx context.Context, executorId string, restartLimit int) (*entity.TenderProject, []entity.TenderProject, error) {
	var result *entity.TenderProject
	var exhausted []entity.TenderProject
	var err error

	for {
		taskFailed := false
		result = nil
		err = p.cp.GetConnection().RunInTransaction(ctx, func(tx *pg.Tx) error {
			var ents []entity.TenderProject

			_, err := tx.Query(&ents, queryRulesTask)
			if err != nil {
				if err == pg.ErrNoRows {
					return nil
				}
				return fmt.Errorf("failed to find free rules task: %w", err)
			}
			if len(ents) == 0 {
				return nil
			}
			candidate := &ents[0]

			if candidate.RestartCount >= restartLimit {
				_, err := tx.Model(candidate).
					Where("id = ?", candidate.Id).
					Set("rules_status = ?", view.TaskStatusError).
					Set("rules_details = ?", fmt.Sprintf("Restart count exceeded limit. Details: %v", candidate.RulesDetails)).
					Set("last_active = now()").
					Update()
				if err != nil {
					return err
				}
				exhausted = append(exhausted, *candidate)
				taskFailed = true
				return nil
			}

			if candidate.RulesStatus != view.TaskStatusNotStarted {
				candidate.RestartCount += 1
			}
			candidate.RulesStatus = view.TaskStatusProcessing
			candidate.ExecutorId = executorId

			_, err = tx.Model(candidate).
				Set("rules_status = ?rules_status").
				Set("executor_id = ?executor_id").
				Set("restart_count = ?restart_count").
				Set("last_active = now()").
				Where("id = ?", candidate.Id).
				Update()
			if err != nil {
				return fmt.Errorf("unable to update rules task status during takeTask: %w", err)
			}
			result = candidate
			return nil
		})
		if taskFailed {
			continue
		}
		break
	}
	if err != nil {
		return nil, exhausted, err
	}
	return result, exhausted, nil
}

func (p projectRepositoryImpl) SetRulesStatus(ctx context.Context, id int64, status view.TaskStatus, details string, executorId string) error {
	_, err := p.cp.GetConnection().ModelContext(ctx, (*entity.TenderProject)(nil)).
		Set("rules_status = ?", status).
		Set("rules_details = ?", details).
		Set("last_active = now()").
		Where("id = ?", id).
		Where("executor_id = ?", executorId).
		Where("rules_status = ?", view.TaskStatusProcessing).
		Update()
	return err
}

func (p projectRepositoryImpl) TouchRulesTask(ctx context.Context, id int64, executorId string) error {
	_, err := p.cp.GetConnection().ModelContext(ctx, (*entity.TenderProject)(nil)).
		Set("last_active = now()").
		Where("id = ?", id).
		Where("executor_id = ?", executorId).
		Where("rules_status = ?", view.TaskStatusProcessing).
		Update()
	return err
}

// FailRulesTask marks rule extraction as failed and fails every bid that still waits for analysis.
func (p projectRepositoryImpl) FailRulesTask(ctx context.Context, id int64, details string) error {
	return p.cp.GetConnection().RunInTransaction(ctx, func(tx *pg.Tx) error {
		_, err := tx.Model((*entity.TenderProject)(nil)).
			Set("rules_status = ?", view.TaskStatusError).
			Set("rules_details = ?", details).
			Set("last_active = now()").
			Where("id = ?", id).
			Update()
		if err != nil {
			return err
		}
		_, err = tx.Model((*entity.BidDocument)(nil)).
			Set("status = ?", view.BidStatusError).
			Set("error_message = ?", details).
			Set("last_active = now()").
			Where("project_id = ?", id).
			Where("status in (?, ?)", view.BidStatusPending, view.BidStatusProcessing).
			Update()
		return err
	})
}

// FinalizeProject locks the project row and applies finalizer once every bid is terminal.
// Returns false if the project was already final or still has bids in progress.
func (p projectRepositoryImpl) FinalizeProject(ctx context.Context, id int64, finalizer ProjectFinalizer) (bool, error) {
	finalized := false
	err := p.cp.GetConnection().RunInTransaction(ctx, func(tx *pg.Tx) error {
		var project entity.TenderProject
		err := tx.Model(&project).Where("id = ?", id).For("UPDATE").Select()
		if err != nil {
			return err
		}
		if project.Status.IsTerminal() {
			return nil
		}

		var bids []entity.BidDocument
		err = tx.Model(&bids).Where("project_id = ?", id).Order("id ASC").Select()
		if err != nil && !errors.Is(err, pg.ErrNoRows) {
			return err
		}
		for _, b := range bids {
			if !b.Status.IsTerminal() {
				return nil
			}
		}

		var results []entity.AnalysisResult
		err = tx.Model(&results).Where("project_id = ?", id).Order("id ASC").Select()
		if err != nil && !errors.Is(err, pg.ErrNoRows) {
			return err
		}

		updated, status, err := finalizer(bids, results)
		if err != nil {
			return err
		}
		for i := range updated {
			_, err = tx.Model(&updated[i]).
				Column("total_score", "price_score", "extracted_price", "detailed_scores").
				WherePK().
				Update()
			if err != nil {
				return fmt.Errorf("failed to update analysis result %d: %w", updated[i].Id, err)
			}
		}

		_, err = tx.Model(&project).Set("status = ?", status).WherePK().Update()
		if err != nil {
			return err
		}
		finalized = true
		return nil
	})
	return finalized, err
}

func (p projectRepositoryImpl) DeleteFinishedProjects(ctx context.Context, nameFilter string) ([]string, error) {
	var fileKeys []string
	err := p.cp.GetConnection().RunInTransaction(ctx, func(tx *pg.Tx) error {
		var projects []entity.TenderProject
		err := tx.Model(&projects).
			Where("name LIKE ?", nameFilter).
			Where("status in (?)", pg.In([]view.ProjectStatus{view.ProjectStatusCompleted, view.ProjectStatusCompletedWithErrors})).
			Select()
		if err != nil {
			return fmt.Errorf("failed to find projects: %w", err)
		}
		if len(projects) == 0 {
			return nil
		}
		projectIds := make([]int64, 0, len(projects))
		for _, project := range projects {
			projectIds = append(projectIds, project.Id)
			fileKeys = append(fileKeys, project.TenderFileKey)
		}

		var bidKeys []string
		err = tx.Model((*entity.BidDocument)(nil)).
			Column("file_key").
			Where("project_id in (?)", pg.In(projectIds)).
			Select(&bidKeys)
		if err != nil {
			return fmt.Errorf("failed to find bid documents: %w", err)
		}
		fileKeys = append(fileKeys, bidKeys...)

		_, err = tx.Exec(`
			DELETE FROM score_modification_history
			WHERE analysis_result_id IN (
				SELECT id FROM analysis_result WHERE project_id IN (?)
			)`, pg.In(projectIds))
		if err != nil {
			return fmt.Errorf("failed to delete score_modification_history records: %w", err)
		}
		for _, model := range []interface{}{(*entity.AnalysisResult)(nil), (*entity.ScoringRule)(nil), (*entity.BidDocument)(nil)} {
			if _, err = tx.Model(model).Where("project_id in (?)", pg.In(projectIds)).Delete(); err != nil {
				return fmt.Errorf("failed to delete project data: %w", err)
			}
		}
		_, err = tx.Model((*entity.TenderProject)(nil)).Where("id in (?)", pg.In(projectIds)).Delete()
		if err != nil {
			return fmt.Errorf("failed to delete tender_project records: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return fileKeys, nil
}
