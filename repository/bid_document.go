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

type BidDocumentRepository interface {
	GetBid(ctx context.Context, id int64) (*entity.BidDocument, error)
	GetProjectBids(ctx context.Context, projectId int64) ([]entity.BidDocument, error)
	FindFreeBidTask(ctx context.Context, executorId string, restartLimit int) (*entity.BidDocument, []entity.BidDocument, error)
	// SetBidStatus changes the status of a bid this executor is processing. Finished bids are left as is.
	SetBidStatus(ctx context.Context, id int64, status view.BidStatus, errorMessage string, executorId string) error
	// TouchBidTask refreshes last_active of a bid this executor is still processing.
	TouchBidTask(ctx context.Context, id int64, executorId string) error
	UpdateProgress(ctx context.Context, id int64, progress entity.BidProgress) error
	SaveFailedPages(ctx context.Context, id int64, pages []view.FailedPage) error
	SaveBidResult(ctx context.Context, id int64, result *entity.AnalysisResult, analysisTimeMs int64, executorId string) error
}

func NewBidDocumentRepository(cp db.ConnectionProvider) BidDocumentRepository {
	return &bidDocumentRepositoryImpl{cp: cp}
}

type bidDocumentRepositoryImpl struct {
	cp db.ConnectionProvider
}

func (b bidDocumentRepositoryImpl) GetBid(ctx context.Context, id int64) (*entity.BidDocument, error) {
	var ent entity.BidDocument
	err := b.cp.GetConnection().ModelContext(ctx, &ent).Where("id = ?", id).Select()
	if err != nil {
		if errors.Is(err, pg.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &ent, nil
}

func (b bidDocumentRepositoryImpl) GetProjectBids(ctx context.Context, projectId int64) ([]entity.BidDocument, error) {
	var ents []entity.BidDocument
	err := b.cp.GetConnection().ModelContext(ctx, &ents).Where("project_id = ?", projectId).Order("id ASC").Select()
	if err != nil {
		if errors.Is(err, pg.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return ents, nil
}

// bids are taken only after the rules of their project are extracted
var queryBidTask = fmt.Sprintf("select b.* from bid_document b join tender_project p on p.id = b.project_id where "+
	"p.rules_status='%s' and "+
	"(b.status='%s' or (b.status='%s' and b.last_active < (now() - interval '%d seconds'))) "+
	"order by b.uploaded_at ASC, b.id ASC limit 1 for no key update of b skip locked",
	view.TaskStatusSuccess, view.BidStatusPending, view.BidStatusProcessing, taskKeepaliveTimeoutSec)

// FindFreeBidTask takes the oldest pending bid. Bids that exceeded the restart limit are failed and returned separately.
func (b bidDocumentRepositoryImpl) FindFreeBidTask(ctx context.Context, executorId string, restartLimit int) (*entity.BidDocument, []entity.BidDocument, error) {
	var result *entity.BidDocument
	var exhausted []entity.BidDocument
	var err error

	for {
		taskFailed := false
		result = nil
		err = b.cp.GetConnection().RunInTransaction(ctx, func(tx *pg.Tx) error {
			var ents []entity.BidDocument

			_, err := tx.Query(&ents, queryBidTask)
			if err != nil {
				if err == pg.ErrNoRows {
					return nil
				}
				return fmt.Errorf("failed to find free bid task: %w", err)
			}
			if len(ents) == 0 {
				return nil
			}
			candidate := &ents[0]

			if candidate.RestartCount >= restartLimit {
				_, err := tx.Model(candidate).
					Where("id = ?", candidate.Id).
					Set("status = ?", view.BidStatusError).
					Set("error_message = ?", fmt.Sprintf("Restart count exceeded limit. Details: %v", candidate.ErrorMessage)).
					Set("last_active = now()").
					Update()
				if err != nil {
					return err
				}
				exhausted = append(exhausted, *candidate)
				taskFailed = true
				return nil
			}

			if candidate.Status != view.BidStatusPending {
				candidate.RestartCount += 1
			}
			candidate.Status = view.BidStatusProcessing
			candidate.ExecutorId = executorId

			_, err = tx.Model(candidate).
				Set("status = ?status").
				Set("executor_id = ?executor_id").
				Set("restart_count = ?restart_count").
				Set("error_message = ''").
				Set("last_active = now()").
				Where("id = ?", candidate.Id).
				Update()
			if err != nil {
				return fmt.Errorf("unable to update bid task status during takeTask: %w", err)
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

func (b bidDocumentRepositoryImpl) SetBidStatus(ctx context.Context, id int64, status view.BidStatus, errorMessage string, executorId string) error {
	_, err := b.cp.GetConnection().ModelContext(ctx, (*entity.BidDocument)(nil)).
		Set("status = ?", status).
		Set("error_message = ?", errorMessage).
		Set("last_active = now()").
		Where("id = ?", id).
		Where("executor_id = ?", executorId).
		Where("status = ?", view.BidStatusProcessing).
		Update()
	return err
}

func (b bidDocumentRepositoryImpl) TouchBidTask(ctx context.Context, id int64, executorId string) error {
	_, err := b.cp.GetConnection().ModelContext(ctx, (*entity.BidDocument)(nil)).
		Set("last_active = now()").
		Where("id = ?", id).
		Where("executor_id = ?", executorId).
		Where("status = ?", view.BidStatusProcessing).
		Update()
	return err
}

func (b bidDocumentRepositoryImpl) UpdateProgress(ctx context.Context, id int64, progress entity.BidProgress) error {
	ent := entity.BidDocument{Id: id, PartialResults: progress.PartialResults}
	_, err := b.cp.GetConnection().ModelContext(ctx, &ent).
		Set("progress_completed = ?", progress.Completed).
		Set("progress_total = ?", progress.Total).
		Set("current_rule = ?", progress.CurrentRule).
		Set("detailed_progress_info = ?", progress.Details).
		Set("partial_results = ?partial_results").
		Set("last_active = now()").
		WherePK().
		Update()
	return err
}

func (b bidDocumentRepositoryImpl) SaveFailedPages(ctx context.Context, id int64, pages []view.FailedPage) error {
	ent := entity.BidDocument{Id: id, FailedPages: pages}
	_, err := b.cp.GetConnection().ModelContext(ctx, &ent).Column("failed_pages").WherePK().Update()
	return err
}

func (b bidDocumentRepositoryImpl) SaveBidResult(ctx context.Context, id int64, result *entity.AnalysisResult, analysisTimeMs int64, executorId string) error {
	return b.cp.GetConnection().RunInTransaction(ctx, func(tx *pg.Tx) error {
		_, err := tx.Model((*entity.AnalysisResult)(nil)).Where("bid_document_id = ?", id).Delete()
		if err != nil {
			return err
		}
		result.BidDocumentId = id
		_, err = tx.Model(result).Returning("id").Insert()
		if err != nil {
			return fmt.Errorf("failed to insert analysis result: %w", err)
		}
		res, err := tx.Model((*entity.BidDocument)(nil)).
			Set("status = ?", view.BidStatusCompleted).
			Set("error_message = ''").
			Set("progress_completed = progress_total").
			Set("current_rule = ?", "分析完成").
			Set("analysis_time_ms = ?", analysisTimeMs).
			Set("last_active = now()").
			Where("id = ?", id).
			Where("executor_id = ?", executorId).
			Update()
		if err != nil {
			return err
		}
		if res.RowsAffected() == 0 {
			return fmt.Errorf("bid document %d was taken by another executor", id)
		}
		return nil
	})
}
