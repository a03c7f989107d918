package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/Netcracker/qubership-bid-evaluation-service/entity"
	"github.com/Netcracker/qubership-bid-evaluation-service/repository"
	"github.com/Netcracker/qubership-bid-evaluation-service/secctx"
	"github.com/Netcracker/qubership-bid-evaluation-service/storage"
	"github.com/Netcracker/qubership-bid-evaluation-service/view"
	log "github.com/sirupsen/logrus"
)

type RuleTaskProcessor interface {
	Start()
}

func NewRuleTaskProcessor(projectRepo repository.ProjectRepository, ruleRepo repository.ScoringRuleRepository,
	documentTextService DocumentTextService, ruleExtractionService RuleExtractionService,
	finalizationService FinalizationService, taskEvents TaskEventListener, settings RuntimeSettings, executorId string) RuleTaskProcessor {
	r := &ruleTaskProcessorImpl{
		projectRepo:           projectRepo,
		ruleRepo:              ruleRepo,
		documentTextService:   documentTextService,
		ruleExtractionService: ruleExtractionService,
		finalizationService:   finalizationService,
		taskEvents:            taskEvents,
		settings:              settings,
		executorId:            executorId,
	}
	r.loop = newTaskLoop("ruleTaskProcessor", r.processTask)
	return r
}

type ruleTaskProcessorImpl struct {
	projectRepo           repository.ProjectRepository
	ruleRepo              repository.ScoringRuleRepository
	documentTextService   DocumentTextService
	ruleExtractionService RuleExtractionService
	finalizationService   FinalizationService
	taskEvents            TaskEventListener
	settings              RuntimeSettings
	loop                  *taskLoop

	executorId string
}

func (r *ruleTaskProcessorImpl) Start() {
	r.taskEvents.Subscribe(func(event TaskEvent) {
		if event.Kind == TaskEventProjectCreated {
			r.loop.wake()
		}
	})
	r.loop.start()
}

func (r *ruleTaskProcessorImpl) processTask() bool {
	ctx := secctx.MakeSysadminContext(context.Background())
	project, exhausted, err := r.projectRepo.FindFreeRulesTask(ctx, r.executorId, r.settings.TaskRestartLimit)
	for _, p := range exhausted {
		log.Warnf("Rules task of project %d exceeded restart limit", p.Id)
		r.failProject(ctx, p.Id, "scoring rules extraction exceeded restart limit")
	}
	if err != nil {
		log.Errorf("Error finding free rules task: %s", err)
		return false
	}
	if project == nil {
		return false
	}
	r.processRulesTask(ctx, *project)
	return true
}

func (r *ruleTaskProcessorImpl) processRulesTask(ctx context.Context, project entity.TenderProject) {
	stop := keepAlive(taskPollInterval, func() {
		if err := r.projectRepo.TouchRulesTask(ctx, project.Id, r.executorId); err != nil {
			log.Errorf("Error refreshing rules task %d: %s", project.Id, err)
		}
	})
	defer stop()

	count, err := r.ruleRepo.CountProjectRules(ctx, project.Id)
	if err != nil {
		log.Errorf("Failed to count rules of project %d: %s", project.Id, err)
		return
	}
	if count == 0 {
		pages, _, err := r.documentTextService.ExtractPages(ctx, project.TenderFileKey, project.TenderFileName)
		if err != nil {
			details := fmt.Sprintf("tender file unreadable: %s", err)
			if errors.Is(err, storage.ErrFileNotFound) {
				details = "tender file not found"
			}
			log.Errorf("Rules extraction of project %d failed: %s", project.Id, details)
			r.failProject(ctx, project.Id, details)
			return
		}
		rules, method := r.ruleExtractionService.ExtractRules(ctx, pages)
		if err = r.ruleRepo.ReplaceProjectRules(ctx, project.Id, rules); err != nil {
			log.Errorf("Failed to save rules of project %d: %s", project.Id, err)
			return
		}
		count = countDrafts(rules)
		log.Infof("Extracted %d scoring rules for project %d using %s method", count, project.Id, method)
	}

	err = r.projectRepo.SetRulesStatus(ctx, project.Id, view.TaskStatusSuccess, fmt.Sprintf("%d rules", count), r.executorId)
	if err != nil {
		log.Errorf("Error updating status of rules task %d: %s", project.Id, err)
		return
	}
	r.taskEvents.Notify(TaskEvent{ProjectId: project.Id, Kind: TaskEventRulesReady})
}

func (r *ruleTaskProcessorImpl) failProject(ctx context.Context, projectId int64, details string) {
	if err := r.projectRepo.FailRulesTask(ctx, projectId, details); err != nil {
		log.Errorf("Error failing rules task of project %d: %s", projectId, err)
		return
	}
	if _, err := r.finalizationService.TryFinalize(ctx, projectId); err != nil {
		log.Errorf("Error finalizing project %d: %s", projectId, err)
	}
}

func countDrafts(rules []view.RuleDraft) int {
	count := len(rules)
	for _, r := range rules {
		count += countDrafts(r.Children)
	}
	return count
}
