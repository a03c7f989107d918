package service

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/Netcracker/qubership-bid-evaluation-service/entity"
	"github.com/Netcracker/qubership-bid-evaluation-service/exception"
	"github.com/Netcracker/qubership-bid-evaluation-service/repository"
	"github.com/Netcracker/qubership-bid-evaluation-service/secctx"
	"github.com/Netcracker/qubership-bid-evaluation-service/view"
	log "github.com/sirupsen/logrus"
)

type ProjectService interface {
	ListProjects(ctx context.Context) ([]view.Project, error)
	GetAnalysisStatus(ctx context.Context, projectId int64) (*view.AnalysisStatus, error)
	GetResults(ctx context.Context, projectId int64) ([]view.AnalysisResult, error)
	GetScoringRules(ctx context.Context, projectId int64) ([]view.ScoringRule, error)
	GetFailedPages(ctx context.Context, projectId int64, bidId int64) (*view.FailedPages, error)
	GetDynamicSummary(ctx context.Context, projectId int64) (*view.DynamicSummary, error)
	RecalculatePriceScores(ctx context.Context, projectId int64) (*view.RecalculateResponse, error)
	ExtractScoringRules(ctx context.Context, projectId int64) (*view.ExtractRulesResponse, error)
	BulkUpdateScores(ctx context.Context, updates []view.ScoreUpdate) (*view.UpdateCountResponse, error)
}

func NewProjectService(projectRepo repository.ProjectRepository, bidRepo repository.BidDocumentRepository,
	ruleRepo repository.ScoringRuleRepository, resultRepo repository.AnalysisResultRepository,
	documentTextService DocumentTextService, ruleExtractionService RuleExtractionService,
	finalizationService FinalizationService, settings RuntimeSettings) ProjectService {
	return &projectServiceImpl{
		projectRepo:           projectRepo,
		bidRepo:               bidRepo,
		ruleRepo:              ruleRepo,
		resultRepo:            resultRepo,
		documentTextService:   documentTextService,
		ruleExtractionService: ruleExtractionService,
		finalizationService:   finalizationService,
		settings:              settings,
	}
}

type projectServiceImpl struct {
	projectRepo           repository.ProjectRepository
	bidRepo               repository.BidDocumentRepository
	ruleRepo              repository.ScoringRuleRepository
	resultRepo            repository.AnalysisResultRepository
	documentTextService   DocumentTextService
	ruleExtractionService RuleExtractionService
	finalizationService   FinalizationService
	settings              RuntimeSettings
}

func projectNotFound(id int64) error {
	return &exception.CustomError{
		Status:  http.StatusNotFound,
		Code:    exception.EntityNotFound,
		Message: exception.EntityNotFoundMsg,
		Params:  map[string]interface{}{"entity": "project", "id": id},
	}
}

func (p projectServiceImpl) getProject(ctx context.Context, id int64) (*entity.TenderProject, error) {
	project, err := p.projectRepo.GetProject(ctx, id)
	if err != nil {
		return nil, err
	}
	if project == nil {
		return nil, projectNotFound(id)
	}
	return project, nil
}

func (p projectServiceImpl) ListProjects(ctx context.Context) ([]view.Project, error) {
	ents, err := p.projectRepo.ListProjects(ctx)
	if err != nil {
		return nil, err
	}
	result := make([]view.Project, 0, len(ents))
	for _, ent := range ents {
		result = append(result, entity.MakeProjectView(ent))
	}
	return result, nil
}

func (p projectServiceImpl) GetAnalysisStatus(ctx context.Context, projectId int64) (*view.AnalysisStatus, error) {
	project, err := p.getProject(ctx, projectId)
	if err != nil {
		return nil, err
	}
	bids, err := p.bidRepo.GetProjectBids(ctx, projectId)
	if err != nil {
		return nil, err
	}

	status := project.Status
	if !status.IsTerminal() && allBidsTerminal(bids) {
		// another instance may finalize concurrently, so the status is re-read in any case
		if _, err := p.finalizationService.TryFinalize(ctx, projectId); err != nil {
			log.Errorf("Failed to finalize project %d: %s", projectId, err)
		} else if reloaded, err := p.projectRepo.GetProject(ctx, projectId); err == nil && reloaded != nil {
			status = reloaded.Status
		}
	}

	result := view.AnalysisStatus{ProjectStatus: status, Bids: make([]view.BidProgress, 0, len(bids))}
	for _, b := range bids {
		result.Bids = append(result.Bids, entity.MakeBidProgressView(b))
	}
	return &result, nil
}

func allBidsTerminal(bids []entity.BidDocument) bool {
	for _, b := range bids {
		if !b.Status.IsTerminal() {
			return false
		}
	}
	return true
}

func (p projectServiceImpl) GetResults(ctx context.Context, projectId int64) ([]view.AnalysisResult, error) {
	ents, err := p.resultRepo.GetProjectResults(ctx, projectId)
	if err != nil {
		return nil, err
	}
	if len(ents) == 0 {
		return nil, &exception.CustomError{
			Status:  http.StatusNotFound,
			Code:    exception.NoResults,
			Message: exception.NoResultsMsg,
			Params:  map[string]interface{}{"id": projectId},
		}
	}
	result := make([]view.AnalysisResult, 0, len(ents))
	for _, ent := range ents {
		result = append(result, entity.MakeAnalysisResultView(ent))
	}
	return result, nil
}

func (p projectServiceImpl) GetScoringRules(ctx context.Context, projectId int64) ([]view.ScoringRule, error) {
	if _, err := p.getProject(ctx, projectId); err != nil {
		return nil, err
	}
	ents, err := p.ruleRepo.GetProjectRules(ctx, projectId)
	if err != nil {
		return nil, err
	}
	if len(ents) == 0 {
		return nil, &exception.CustomError{
			Status:  http.StatusNotFound,
			Code:    exception.NoScoringRules,
			Message: exception.NoScoringRulesMsg,
			Params:  map[string]interface{}{"id": projectId},
		}
	}
	return entity.MakeRuleTree(ents), nil
}

func (p projectServiceImpl) GetFailedPages(ctx context.Context, projectId int64, bidId int64) (*view.FailedPages, error) {
	bid, err := p.bidRepo.GetBid(ctx, bidId)
	if err != nil {
		return nil, err
	}
	if bid == nil || bid.ProjectId != projectId {
		return nil, &exception.CustomError{
			Status:  http.StatusNotFound,
			Code:    exception.EntityNotFound,
			Message: exception.EntityNotFoundMsg,
			Params:  map[string]interface{}{"entity": "bid document", "id": bidId},
		}
	}
	if len(bid.FailedPages) == 0 {
		return nil, &exception.CustomError{
			Status:  http.StatusNotFound,
			Code:    exception.NoFailedPages,
			Message: exception.NoFailedPagesMsg,
			Params:  map[string]interface{}{"id": bidId},
		}
	}
	return &view.FailedPages{BidId: bid.Id, FileName: bid.FileName, FailedPages: bid.FailedPages}, nil
}

func (p projectServiceImpl) GetDynamicSummary(ctx context.Context, projectId int64) (*view.DynamicSummary, error) {
	rules, err := p.GetScoringRules(ctx, projectId)
	if err != nil {
		return nil, err
	}
	results, err := p.resultRepo.GetProjectResults(ctx, projectId)
	if err != nil {
		return nil, err
	}
	summary, err := BuildDynamicSummary(rules, results)
	if err != nil {
		if errors.Is(err, ErrSummaryNoResults) {
			return nil, &exception.CustomError{
				Status:  http.StatusNotFound,
				Code:    exception.NoResults,
				Message: exception.NoResultsMsg,
				Params:  map[string]interface{}{"id": projectId},
			}
		}
		return nil, err
	}
	return summary, nil
}

func (p projectServiceImpl) RecalculatePriceScores(ctx context.Context, projectId int64) (*view.RecalculateResponse, error) {
	if _, err := p.getProject(ctx, projectId); err != nil {
		return nil, err
	}
	bids, err := p.bidRepo.GetProjectBids(ctx, projectId)
	if err != nil {
		return nil, err
	}
	inProgress := 0
	for _, b := range bids {
		if !b.Status.IsTerminal() {
			inProgress++
		}
	}
	if inProgress > 0 {
		return nil, &exception.CustomError{
			Status:  http.StatusBadRequest,
			Code:    exception.AnalysisIncomplete,
			Message: exception.AnalysisIncompleteMsg,
			Params:  map[string]interface{}{"id": projectId, "count": inProgress},
		}
	}

	ruleEnts, err := p.ruleRepo.GetProjectRules(ctx, projectId)
	if err != nil {
		return nil, err
	}
	results, err := p.resultRepo.GetProjectResults(ctx, projectId)
	if err != nil {
		return nil, err
	}
	noPrice := &exception.CustomError{
		Status:  http.StatusBadRequest,
		Code:    exception.NoPriceData,
		Message: exception.NoPriceDataMsg,
		Params:  map[string]interface{}{"id": projectId},
	}
	if len(results) == 0 {
		return nil, noPrice
	}
	updated, scores, err := ComputePriceScores(results, entity.MakeRuleTree(ruleEnts), p.settings.DefaultPriceMaxScore)
	if err != nil {
		if errors.Is(err, ErrNoPriceData) {
			return nil, noPrice
		}
		return nil, err
	}
	if err = p.resultRepo.UpdateScores(ctx, updated); err != nil {
		return nil, err
	}
	return &view.RecalculateResponse{
		Message:      fmt.Sprintf("Price scores recalculated for %d bid(s)", len(updated)),
		PriceScores:  scores,
		UpdatedCount: len(updated),
	}, nil
}

func (p projectServiceImpl) ExtractScoringRules(ctx context.Context, projectId int64) (*view.ExtractRulesResponse, error) {
	project, err := p.getProject(ctx, projectId)
	if err != nil {
		return nil, err
	}
	pages, _, err := p.documentTextService.ExtractPages(ctx, project.TenderFileKey, project.TenderFileName)
	if err != nil {
		return nil, &exception.CustomError{
			Status:  http.StatusInternalServerError,
			Code:    exception.TenderFileUnreadable,
			Message: exception.TenderFileUnreadableMsg,
			Params:  map[string]interface{}{"id": projectId},
			Debug:   err.Error(),
		}
	}
	drafts, method := p.ruleExtractionService.ExtractRules(ctx, pages)
	if err = p.ruleRepo.ReplaceProjectRules(ctx, projectId, drafts); err != nil {
		return nil, err
	}
	ents, err := p.ruleRepo.GetProjectRules(ctx, projectId)
	if err != nil {
		return nil, err
	}
	log.Infof("Scoring rules of project %d re-extracted using %s method", projectId, method)
	return &view.ExtractRulesResponse{
		Message: fmt.Sprintf("Extracted %d scoring rules using %s method", len(ents), method),
		Count:   len(ents),
		Rules:   entity.MakeRuleTree(ents),
	}, nil
}

func (p projectServiceImpl) BulkUpdateScores(ctx context.Context, updates []view.ScoreUpdate) (*view.UpdateCountResponse, error) {
	count, err := p.resultRepo.BulkUpdateTotals(ctx, updates, secctx.GetUserId(ctx))
	if err != nil {
		return nil, err
	}
	if count == 0 {
		return nil, &exception.CustomError{
			Status:  http.StatusNotFound,
			Code:    exception.NoScoresUpdated,
			Message: exception.NoScoresUpdatedMsg,
		}
	}
	return &view.UpdateCountResponse{
		Message:      fmt.Sprintf("Updated %d score(s)", count),
		UpdatedCount: count,
	}, nil
}
