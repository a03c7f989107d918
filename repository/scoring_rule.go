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

type ScoringRuleRepository interface {
	GetProjectRules(ctx context.Context, projectId int64) ([]entity.ScoringRule, error)
	CountProjectRules(ctx context.Context, projectId int64) (int, error)
	ReplaceProjectRules(ctx context.Context, projectId int64, rules []view.RuleDraft) error
}

func NewScoringRuleRepository(cp db.ConnectionProvider) ScoringRuleRepository {
	return &scoringRuleRepositoryImpl{cp: cp}
}

type scoringRuleRepositoryImpl struct {
	cp db.ConnectionProvider
}

func (s scoringRuleRepositoryImpl) GetProjectRules(ctx context.Context, projectId int64) ([]entity.ScoringRule, error) {
	var ents []entity.ScoringRule
	err := s.cp.GetConnection().ModelContext(ctx, &ents).
		Where("project_id = ?", projectId).
		Order("position ASC", "id ASC").
		Select()
	if err != nil {
		if errors.Is(err, pg.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return ents, nil
}

func (s scoringRuleRepositoryImpl) CountProjectRules(ctx context.Context, projectId int64) (int, error) {
	return s.cp.GetConnection().ModelContext(ctx, (*entity.ScoringRule)(nil)).Where("project_id = ?", projectId).Count()
}

// ReplaceProjectRules drops existing rules of the project and stores the tree, keeping its order in position.
func (s scoringRuleRepositoryImpl) ReplaceProjectRules(ctx context.Context, projectId int64, rules []view.RuleDraft) error {
	return s.cp.GetConnection().RunInTransaction(ctx, func(tx *pg.Tx) error {
		_, err := tx.Model((*entity.ScoringRule)(nil)).Where("project_id = ?", projectId).Delete()
		if err != nil {
			return err
		}
		position := 0
		var insert func(list []view.RuleDraft, parentId int64, category string) error
		insert = func(list []view.RuleDraft, parentId int64, category string) error {
			for _, r := range list {
				position++
				ent := entity.ScoringRule{
					ProjectId:       projectId,
					ParentId:        parentId,
					Position:        position,
					Category:        category,
					CriteriaName:    r.CriteriaName,
					MaxScore:        r.MaxScore,
					Weight:          1.0,
					Description:     r.Description,
					IsVeto:          r.IsVeto,
					IsPriceCriteria: r.IsPriceCriteria,
					PriceFormula:    r.PriceFormula,
				}
				if _, err := tx.Model(&ent).Returning("id").Insert(); err != nil {
					return fmt.Errorf("failed to insert scoring rule %s: %w", r.CriteriaName, err)
				}
				if err := insert(r.Children, ent.Id, r.CriteriaName); err != nil {
					return err
				}
			}
			return nil
		}
		return insert(rules, 0, "")
	})
}
