package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Netcracker/qubership-bid-evaluation-service/entity"
	"github.com/Netcracker/qubership-bid-evaluation-service/repository"
	"github.com/Netcracker/qubership-bid-evaluation-service/secctx"
	"github.com/Netcracker/qubership-bid-evaluation-service/utils"
	"github.com/Netcracker/qubership-bid-evaluation-service/view"
	log "github.com/sirupsen/logrus"
)

type BidTaskProcessor interface {
	Start()
}

func NewBidTaskProcessor(bidRepo repository.BidDocumentRepository, ruleRepo repository.ScoringRuleRepository,
	documentTextService DocumentTextService, bidAnalyzer BidAnalyzer, finalizationService FinalizationService,
	taskEvents TaskEventListener, settings RuntimeSettings, executorId string) BidTaskProcessor {
	b := &bidTaskProcessorImpl{
		bidRepo:             bidRepo,
		ruleRepo:            ruleRepo,
		documentTextService: documentTextService,
		bidAnalyzer:         bidAnalyzer,
		finalizationService: finalizationService,
		taskEvents:          taskEvents,
		settings:            settings,
		executorId:          executorId,
	}
	b.loop = newTaskLoop("bidTaskProcessor", b.processTask)
	return b
}

type bidTaskProcessorImpl struct {
	bidRepo             repository.BidDocumentRepository
	ruleRepo            repository.ScoringRuleRepository
	documentTextService DocumentTextService
	bidAnalyzer         BidAnalyzer
	finalizationService FinalizationService
	taskEvents          TaskEventListener
	settings            RuntimeSettings
	loop                *taskLoop

	executorId string
}

func (b *bidTaskProcessorImpl) Start() {
	b.taskEvents.Subscribe(func(event TaskEvent) {
		if event.Kind == TaskEventRulesReady {
			b.loop.wake()
		}
	})
	b.loop.start()
}

func (b *bidTaskProcessorImpl) processTask() bool {
	ctx := secctx.MakeSysadminContext(context.Background())
	bid, exhausted, err := b.bidRepo.FindFreeBidTask(ctx, b.executorId, b.settings.TaskRestartLimit)
	for _, e := range exhausted {
		log.Warnf("Bid task %d exceeded restart limit", e.Id)
		b.finalize(ctx, e.ProjectId)
	}
	if err != nil {
		log.Errorf("Error finding free bid task: %s", err)
		return false
	}
	if bid == nil {
		return false
	}
	b.processBidTask(ctx, *bid)
	b.finalize(ctx, bid.ProjectId)
	return true
}

func (b *bidTaskProcessorImpl) handleError(ctx context.Context, bid entity.BidDocument, err error) {
	log.Infof("Bid task %d (%s) failed with error: %s", bid.Id, bid.BidderName, err)
	setErr := b.bidRepo.SetBidStatus(ctx, bid.Id, view.BidStatusError, err.Error(), b.executorId)
	if setErr != nil {
		log.Errorf("Error updating status of bid task %d: %s", bid.Id, setErr)
	}
}

func (b *bidTaskProcessorImpl) processBidTask(ctx context.Context, bid entity.BidDocument) {
	start := time.Now()
	stop := keepAlive(taskPollInterval, func() {
		if err := b.bidRepo.TouchBidTask(ctx, bid.Id, b.executorId); err != nil {
			log.Errorf("Error refreshing bid task %d: %s", bid.Id, err)
		}
	})
	defer stop()

	analysisCtx, cancel := context.WithTimeout(ctx, b.settings.AnalysisTimeout())
	defer cancel()

	ruleEnts, err := b.ruleRepo.GetProjectRules(ctx, bid.ProjectId)
	if err != nil {
		b.handleError(ctx, bid, fmt.Errorf("failed to load scoring rules: %w", err))
		return
	}
	rules := entity.MakeRuleTree(ruleEnts)

	pages, failedPages, err := b.documentTextService.ExtractPages(analysisCtx, bid.FileKey, bid.FileName)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			err = ErrAnalysisTimedOut
		}
		b.handleError(ctx, bid, err)
		return
	}
	if len(failedPages) > 0 {
		log.Warnf("%d pages of bid %d could not be read", len(failedPages), bid.Id)
		if err = b.bidRepo.SaveFailedPages(ctx, bid.Id, failedPages); err != nil {
			log.Errorf("Failed to save failed pages of bid %d: %s", bid.Id, err)
		}
	}

	report := func(_ context.Context, progress entity.BidProgress) {
		progress.CurrentRule = utils.Truncate(progress.CurrentRule, maxCurrentRuleChars)
		if err := b.bidRepo.UpdateProgress(ctx, bid.Id, progress); err != nil {
			log.Errorf("Failed to update progress of bid %d: %s", bid.Id, err)
		}
	}

	result, err := b.bidAnalyzer.AnalyzeBid(analysisCtx, bid, rules, pages, report)
	if err != nil {
		b.handleError(ctx, bid, err)
		return
	}

	elapsed := time.Since(start).Milliseconds()
	if err = b.bidRepo.SaveBidResult(ctx, bid.Id, result, elapsed, b.executorId); err != nil {
		b.handleError(ctx, bid, fmt.Errorf("failed to save analysis result: %w", err))
		return
	}
	log.Infof("Bid %d (%s) analyzed in %dms, total score %.2f", bid.Id, bid.BidderName, elapsed, result.TotalScore)
}

func (b *bidTaskProcessorImpl) finalize(ctx context.Context, projectId int64) {
	if _, err := b.finalizationService.TryFinalize(ctx, projectId); err != nil {
		log.Errorf("Error finalizing project %d: %s", projectId, err)
	}
}
