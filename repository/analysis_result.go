package repository

import (
	"context"
	"errors"
	"time"

	"github.com/Netcracker/qubership-bid-evaluation-service/db"
	"github.com/Netcracker/qubership-bid-evaluation-service/entity"
	"github.com/Netcracker/qubership-bid-evaluation-service/utils"
	"github.com/Netcracker/qubership-bid-evaluation-service/view"
	"github.com/go-pg/pg/v10"
)

type AnalysisResultRepository interface {
	GetProjectResults(ctx context.Context, projectId int64) ([]entity.AnalysisResult, error)
	UpdateScores(ctx context.Context, results []entity.AnalysisResult) error
	BulkUpdateTotals(ctx context.Context, updates []view.ScoreUpdate, modifiedBy string) (int, error)
}

func NewAnalysisResultRepository(cp db.ConnectionProvider) AnalysisResultRepository {
	return &analysisResultRepositoryImpl{cp: cp}
}

type analysisResultRepositoryImpl struct {
	cp db.ConnectionProvider
}

func (a analysisResultRepositoryImpl) GetProjectResults(ctx context.Context, projectId int64) ([]entity.AnalysisResult, error) {
	var ents []entity.AnalysisResult
	err := a.cp.GetConnection().ModelContext(ctx, &ents).
		Where("project_id = ?", projectId).
		Order("total_score DESC", "id ASC").
		Select()
	if err != nil {
		if errors.Is(err, pg.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return ents, nil
}

func (a analysisResultRepositoryImpl) UpdateScores(ctx context.Context, results []entity.AnalysisResult) error {
	return a.cp.GetConnection().RunInTransaction(ctx, func(tx *pg.Tx) error {
		for i := range results {
			_, err := tx.Model(&results[i]).
				Column("total_score", "price_score", "extracted_price", "detailed_scores").
				WherePK().
				Update()
			if err != nil {
				return err
			}
		}
		return nil
	})
}

// BulkUpdateTotals overrides total scores and records every change in the modification history.
// Unknown ids are skipped.
func (a analysisResultRepositoryImpl) BulkUpdateTotals(ctx context.Context, updates []view.ScoreUpdate, modifiedBy string) (int, error) {
	updated := 0
	err := a.cp.GetConnection().RunInTransaction(ctx, func(tx *pg.Tx) error {
		now := time.Now()
		for _, u := range updates {
			var ent entity.AnalysisResult
			err := tx.Model(&ent).Where("id = ?", u.Id).For("UPDATE").Select()
			if err != nil {
				if errors.Is(err, pg.ErrNoRows) {
					continue
				}
				return err
			}
			newScore := utils.Round2(u.TotalScore)
			history := entity.ScoreModificationHistory{
				AnalysisResultId: ent.Id,
				CriteriaName:     "total_score",
				OriginalScore:    ent.TotalScore,
				NewScore:         newScore,
				ModificationType: "bulk_update",
				ModifiedBy:       modifiedBy,
				ModifiedAt:       now,
			}
			if _, err := tx.Model(&history).Insert(); err != nil {
				return err
			}
			_, err = tx.Model(&ent).
				Set("total_score = ?", newScore).
				Set("is_modified = true").
				Set("modification_count = modification_count + 1").
				Set("last_modified_at = ?", now).
				Set("last_modified_by = ?", modifiedBy).
				WherePK().
				Update()
			if err != nil {
				return err
			}
			updated++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return updated, nil
}
