package service

import (
	"context"
	"errors"

	"github.com/Netcracker/qubership-bid-evaluation-service/entity"
	"github.com/Netcracker/qubership-bid-evaluation-service/repository"
	"github.com/Netcracker/qubership-bid-evaluation-service/view"
	log "github.com/sirupsen/logrus"
)

type FinalizationService interface {
	// TryFinalize computes price scores and sets the final project status once every bid is terminal.
	// It is safe to call concurrently and repeatedly.
	TryFinalize(ctx context.Context, projectId int64) (bool, error)
}

func NewFinalizationService(projectRepo repository.ProjectRepository, ruleRepo repository.ScoringRuleRepository, settings RuntimeSettings) FinalizationService {
	return &finalizationServiceImpl{projectRepo: projectRepo, ruleRepo: ruleRepo, settings: settings}
}

type finalizationServiceImpl struct {
	projectRepo repository.ProjectRepository
	ruleRepo    repository.ScoringRuleRepository
	settings    RuntimeSettings
}

func (f finalizationServiceImpl) TryFinalize(ctx context.Context, projectId int64) (bool, error) {
	ruleEnts, err := f.ruleRepo.GetProjectRules(ctx, projectId)
	if err != nil {
		return false, err
	}
	rules := entity.MakeRuleTree(ruleEnts)

	finalized, err := f.projectRepo.FinalizeProject(ctx, projectId, func(bids []entity.BidDocument, results []entity.AnalysisResult) ([]entity.AnalysisResult, view.ProjectStatus, error) {
		return FinalizeResults(bids, results, rules, f.settings.DefaultPriceMaxScore)
	})
	if err != nil {
		return false, err
	}
	if finalized {
		log.Infof("Project %d finalized", projectId)
	}
	return finalized, nil
}

// FinalizeResults applies price scores to the results and picks the final project status.
// A project without any price keeps its results as is.
func FinalizeResults(bids []entity.BidDocument, results []entity.AnalysisResult, rules []view.ScoringRule, defaultMaxScore float64) ([]entity.AnalysisResult, view.ProjectStatus, error) {
	status := view.ProjectStatusCompleted
	for _, b := range bids {
		if b.Status == view.BidStatusError {
			status = view.ProjectStatusCompletedWithErrors
			break
		}
	}
	if len(results) == 0 {
		return nil, status, nil
	}
	updated, _, err := ComputePriceScores(results, rules, defaultMaxScore)
	if err != nil {
		if errors.Is(err, ErrNoPriceData) {
			log.Warnf("No price found in any bid of project %d, price scores are not calculated", results[0].ProjectId)
			return nil, status, nil
		}
		return nil, status, err
	}
	return updated, status, nil
}
