package service

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Netcracker/qubership-bid-evaluation-service/entity"
	"github.com/Netcracker/qubership-bid-evaluation-service/storage"
	"github.com/Netcracker/qubership-bid-evaluation-service/view"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type pipeline struct {
	db         *fakeDb
	store      storage.FileStore
	llm        *fakeLLM
	events     *fakeTaskEvents
	analysis   AnalysisService
	projects   ProjectService
	rules      *ruleTaskProcessorImpl
	bids       *bidTaskProcessorImpl
	finalizer  FinalizationService
	settings   RuntimeSettings
	executorId string
}

func newPipeline(t *testing.T, llm *fakeLLM) *pipeline {
	p := &pipeline{db: newFakeDb(), llm: llm, events: &fakeTaskEvents{}, settings: DefaultRuntimeSettings(), executorId: "test-executor"}
	var err error
	p.store, err = storage.NewFsFileStore(t.TempDir())
	require.NoError(t, err)

	docText := NewDocumentTextService(p.store, NoTextCache{}, p.settings)
	ruleExtraction := NewRuleExtractionService(llm)
	p.finalizer = NewFinalizationService(p.db, p.db, p.settings)
	p.analysis = NewAnalysisService(p.db, p.store, docText, NewBidderNameService(llm), p.events)
	p.projects = NewProjectService(p.db, p.db, p.db, p.db, docText, ruleExtraction, p.finalizer, p.settings)
	p.rules = NewRuleTaskProcessor(p.db, p.db, docText, ruleExtraction, p.finalizer, p.events, p.settings, p.executorId).(*ruleTaskProcessorImpl)
	p.bids = NewBidTaskProcessor(p.db, p.db, docText, NewBidAnalyzer(llm, p.settings), p.finalizer, p.events, p.settings, p.executorId).(*bidTaskProcessorImpl)
	return p
}

// drain runs both processors synchronously until no work is left.
func (p *pipeline) drain() {
	for p.rules.processTask() {
	}
	for p.bids.processTask() {
	}
}

var pipelineBids = []UploadFile{
	{Name: "a.txt", Data: []byte("投标人：成都天府数据服务有限公司\f开标一览表\n投标总价：1200000（壹佰贰拾万元整）")},
	{Name: "b.txt", Data: []byte("投标人：四川蜀信科技有限公司\f开标一览表\n投标总价：1000000（壹佰万元整）")},
}

func TestPipelineScoresAllBids(t *testing.T) {
	p := newPipeline(t, &fakeLLM{})
	ctx := context.Background()
	projectId, err := p.analysis.StartAnalysis(ctx, UploadFile{Name: "tender.txt", Data: []byte("招标公告\n项目概况")}, pipelineBids)
	require.NoError(t, err)

	p.drain()

	status, err := p.projects.GetAnalysisStatus(ctx, projectId)
	require.NoError(t, err)
	assert.Equal(t, view.ProjectStatusCompleted, status.ProjectStatus)
	require.Len(t, status.Bids, 2)
	for _, b := range status.Bids {
		assert.Equal(t, view.BidStatusCompleted, b.Status)
		assert.Equal(t, b.ProgressTotal, b.ProgressCompleted)
	}

	rules, err := p.projects.GetScoringRules(ctx, projectId)
	require.NoError(t, err)
	require.Len(t, rules, 2)
	assert.Equal(t, "技术方案", rules[0].CriteriaName)
	assert.True(t, rules[1].IsPriceCriteria)
	assert.ElementsMatch(t, []string{"方案完整性", "方案可行性", "方案完整性", "方案可行性"}, p.llm.scoredCriteria())

	results, err := p.projects.GetResults(ctx, projectId)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "四川蜀信科技有限公司", results[0].BidderName)
	assert.InDelta(t, 40, results[0].PriceScore, 0.001)
	assert.InDelta(t, 42, results[0].TotalScore, 0.001)
	assert.Equal(t, "成都天府数据服务有限公司", results[1].BidderName)
	assert.InDelta(t, 33.33, results[1].PriceScore, 0.001)
	assert.InDelta(t, 35.33, results[1].TotalScore, 0.001)

	summary, err := p.projects.GetDynamicSummary(ctx, projectId)
	require.NoError(t, err)
	require.Len(t, summary.Rows, 2)
	assert.Equal(t, 1, summary.Rows[0].Rank)

	// recalculation does not change anything on stable data
	recalc, err := p.projects.RecalculatePriceScores(ctx, projectId)
	require.NoError(t, err)
	assert.Equal(t, 2, recalc.UpdatedCount)
	assert.InDelta(t, 40, recalc.PriceScores["四川蜀信科技有限公司"], 0.001)
	again, err := p.projects.GetResults(ctx, projectId)
	require.NoError(t, err)
	assert.InDelta(t, 42, again[0].TotalScore, 0.001)
}

func TestPipelineBidErrorCompletesWithErrors(t *testing.T) {
	p := newPipeline(t, &fakeLLM{})
	ctx := context.Background()
	projectId, err := p.analysis.StartAnalysis(ctx, UploadFile{Name: "tender.txt", Data: []byte("招标公告")}, pipelineBids)
	require.NoError(t, err)

	projectBids, err := p.db.GetProjectBids(ctx, projectId)
	require.NoError(t, err)
	require.NoError(t, p.store.Delete(ctx, projectBids[0].FileKey))

	p.drain()

	status, err := p.projects.GetAnalysisStatus(ctx, projectId)
	require.NoError(t, err)
	assert.Equal(t, view.ProjectStatusCompletedWithErrors, status.ProjectStatus)
	assert.Equal(t, view.BidStatusError, status.Bids[0].Status)
	assert.NotEmpty(t, status.Bids[0].ErrorMessage)
	assert.Equal(t, view.BidStatusCompleted, status.Bids[1].Status)

	results, err := p.projects.GetResults(ctx, projectId)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.InDelta(t, 40, results[0].PriceScore, 0.001)
}

func TestPipelineMissingTenderFailsProject(t *testing.T) {
	p := newPipeline(t, &fakeLLM{})
	ctx := context.Background()
	projectId, err := p.analysis.StartAnalysis(ctx, UploadFile{Name: "tender.txt", Data: []byte("招标公告")}, pipelineBids)
	require.NoError(t, err)
	project, err := p.db.GetProject(ctx, projectId)
	require.NoError(t, err)
	require.NoError(t, p.store.Delete(ctx, project.TenderFileKey))

	p.drain()

	project, err = p.db.GetProject(ctx, projectId)
	require.NoError(t, err)
	assert.Equal(t, view.TaskStatusError, project.RulesStatus)
	assert.Equal(t, "tender file not found", project.RulesDetails)
	assert.Equal(t, view.ProjectStatusCompletedWithErrors, project.Status)
	assert.Empty(t, p.llm.scoredCriteria())

	_, err = p.projects.GetResults(ctx, projectId)
	assert.Error(t, err)
}

func TestPipelineKeepsExistingRules(t *testing.T) {
	p := newPipeline(t, &fakeLLM{rulesErr: errors.New("must not be called")})
	ctx := context.Background()
	projectId, err := p.analysis.StartAnalysis(ctx, UploadFile{Name: "tender.txt", Data: []byte("招标公告")}, pipelineBids[:1])
	require.NoError(t, err)
	require.NoError(t, p.db.ReplaceProjectRules(ctx, projectId, []view.RuleDraft{
		{CriteriaName: "服务承诺", MaxScore: 10},
		{CriteriaName: "报价", MaxScore: 90, IsPriceCriteria: true},
	}))

	p.drain()

	assert.Equal(t, []string{"服务承诺"}, p.llm.scoredCriteria())
	results, err := p.projects.GetResults(ctx, projectId)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.InDelta(t, 91, results[0].TotalScore, 0.001)
}

func TestExtractScoringRulesReplacesRules(t *testing.T) {
	llm := &fakeLLM{rules: []view.RuleDraft{
		{CriteriaName: "商务部分", MaxScore: 30, Children: []view.RuleDraft{
			{CriteriaName: "业绩", MaxScore: 30},
		}},
		{CriteriaName: "投标报价", MaxScore: 70, IsPriceCriteria: true},
	}}
	p := newPipeline(t, llm)
	ctx := context.Background()
	projectId, err := p.analysis.StartAnalysis(ctx, UploadFile{Name: "tender.txt", Data: []byte("招标公告")}, pipelineBids[:1])
	require.NoError(t, err)

	resp, err := p.projects.ExtractScoringRules(ctx, projectId)
	require.NoError(t, err)
	assert.Equal(t, 3, resp.Count)
	require.Len(t, resp.Rules, 2)
	assert.Equal(t, "商务部分", resp.Rules[0].CriteriaName)
	require.Len(t, resp.Rules[0].Children, 1)
	assert.Equal(t, "商务部分", resp.Rules[0].Children[0].Category)
}

func TestExtractScoringRulesUnreadableTender(t *testing.T) {
	p := newPipeline(t, &fakeLLM{})
	ctx := context.Background()
	projectId, err := p.analysis.StartAnalysis(ctx, UploadFile{Name: "tender.txt", Data: []byte("招标公告")}, pipelineBids[:1])
	require.NoError(t, err)
	project, err := p.db.GetProject(ctx, projectId)
	require.NoError(t, err)
	require.NoError(t, p.store.Delete(ctx, project.TenderFileKey))

	_, err = p.projects.ExtractScoringRules(ctx, projectId)

	assertCustomError(t, err, 500)
}

func TestProjectServiceErrors(t *testing.T) {
	p := newPipeline(t, &fakeLLM{})
	ctx := context.Background()

	_, err := p.projects.GetAnalysisStatus(ctx, 404)
	assertCustomError(t, err, 404)
	_, err = p.projects.GetScoringRules(ctx, 404)
	assertCustomError(t, err, 404)
	_, err = p.projects.GetResults(ctx, 404)
	assertCustomError(t, err, 404)

	projectId, err := p.analysis.StartAnalysis(ctx, UploadFile{Name: "tender.txt", Data: []byte("招标公告")}, pipelineBids)
	require.NoError(t, err)

	_, err = p.projects.GetScoringRules(ctx, projectId)
	assertCustomError(t, err, 404)
	_, err = p.projects.RecalculatePriceScores(ctx, projectId)
	assertCustomError(t, err, 400)

	projectBids, err := p.db.GetProjectBids(ctx, projectId)
	require.NoError(t, err)
	_, err = p.projects.GetFailedPages(ctx, projectId, projectBids[0].Id)
	assertCustomError(t, err, 404)
	_, err = p.projects.GetFailedPages(ctx, projectId+1, projectBids[0].Id)
	assertCustomError(t, err, 404)

	_, err = p.projects.BulkUpdateScores(ctx, []view.ScoreUpdate{{Id: 999, TotalScore: 1}})
	assertCustomError(t, err, 404)
}

func TestGetFailedPages(t *testing.T) {
	p := newPipeline(t, &fakeLLM{})
	ctx := context.Background()
	projectId, err := p.analysis.StartAnalysis(ctx, UploadFile{Name: "tender.txt", Data: []byte("招标公告")}, pipelineBids[:1])
	require.NoError(t, err)
	projectBids, err := p.db.GetProjectBids(ctx, projectId)
	require.NoError(t, err)
	require.NoError(t, p.db.SaveFailedPages(ctx, projectBids[0].Id, []view.FailedPage{{Page: 3, Error: "timeout"}}))

	failed, err := p.projects.GetFailedPages(ctx, projectId, projectBids[0].Id)
	require.NoError(t, err)
	assert.Equal(t, "a.txt", failed.FileName)
	assert.Equal(t, []view.FailedPage{{Page: 3, Error: "timeout"}}, failed.FailedPages)
}

func TestBulkUpdateScores(t *testing.T) {
	p := newPipeline(t, &fakeLLM{})
	ctx := context.Background()
	projectId, err := p.analysis.StartAnalysis(ctx, UploadFile{Name: "tender.txt", Data: []byte("招标公告")}, pipelineBids)
	require.NoError(t, err)
	p.drain()
	results, err := p.projects.GetResults(ctx, projectId)
	require.NoError(t, err)

	resp, err := p.projects.BulkUpdateScores(sysadminCtx(), []view.ScoreUpdate{
		{Id: results[1].Id, TotalScore: 88.888},
		{Id: 12345, TotalScore: 10},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, resp.UpdatedCount)
	assert.Equal(t, "system", p.db.modifiedBy)

	updated, err := p.projects.GetResults(ctx, projectId)
	require.NoError(t, err)
	assert.Equal(t, results[1].Id, updated[0].Id)
	assert.Equal(t, 88.89, updated[0].TotalScore)
	assert.True(t, updated[0].IsModified)
}

func TestTextCacheIsUsedAcrossServices(t *testing.T) {
	store := newTestStore(t, map[string][]byte{"p/a.txt": pipelineBids[0].Data})
	cache := &memoryTextCache{}
	svc := NewDocumentTextService(store, cache, DefaultRuntimeSettings())
	_, _, err := svc.ExtractPages(context.Background(), "p/a.txt", "a.txt")
	require.NoError(t, err)

	// same content under another key is served from the cache
	require.NoError(t, store.Save(context.Background(), "q/a.txt", bytes.NewReader(pipelineBids[0].Data), int64(len(pipelineBids[0].Data))))
	pages, _, err := svc.ExtractPages(context.Background(), "q/a.txt", "a.txt")
	require.NoError(t, err)
	assert.Len(t, pages, 2)
	assert.Equal(t, 1, cache.hits)
}

func (p *pipeline) markStale(t *testing.T, update func(f *fakeDb)) {
	t.Helper()
	p.db.mu.Lock()
	defer p.db.mu.Unlock()
	update(p.db)
}

func TestPipelineStaleBidTaskRestartLimit(t *testing.T) {
	p := newPipeline(t, &fakeLLM{})
	ctx := context.Background()
	limit := p.settings.TaskRestartLimit
	projectId, err := p.analysis.StartAnalysis(ctx, UploadFile{Name: "tender.txt", Data: []byte("招标公告")}, pipelineBids)
	require.NoError(t, err)
	for p.rules.processTask() {
	}

	projectBids, err := p.db.GetProjectBids(ctx, projectId)
	require.NoError(t, err)
	exhaustedId, retriedId := projectBids[0].Id, projectBids[1].Id
	longAgo := time.Now().Add(-time.Hour)
	p.markStale(t, func(f *fakeDb) {
		for id, restarts := range map[int64]int{exhaustedId: limit, retriedId: limit - 1} {
			b := f.bids[id]
			b.Status = view.BidStatusProcessing
			b.ExecutorId = "crashed-executor"
			b.RestartCount = restarts
			b.LastActive = &longAgo
		}
	})

	p.drain()

	exhausted, err := p.db.GetBid(ctx, exhaustedId)
	require.NoError(t, err)
	assert.Equal(t, view.BidStatusError, exhausted.Status)
	assert.Contains(t, exhausted.ErrorMessage, "Restart count exceeded limit")
	assert.Equal(t, limit, exhausted.RestartCount)

	retried, err := p.db.GetBid(ctx, retriedId)
	require.NoError(t, err)
	assert.Equal(t, view.BidStatusCompleted, retried.Status)
	assert.Equal(t, limit, retried.RestartCount)

	project, err := p.db.GetProject(ctx, projectId)
	require.NoError(t, err)
	assert.Equal(t, view.ProjectStatusCompletedWithErrors, project.Status)

	results, err := p.projects.GetResults(ctx, projectId)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.InDelta(t, 40, results[0].PriceScore, 0.001)
}

func TestPipelineStaleRulesTaskRestartLimit(t *testing.T) {
	p := newPipeline(t, &fakeLLM{})
	ctx := context.Background()
	projectId, err := p.analysis.StartAnalysis(ctx, UploadFile{Name: "tender.txt", Data: []byte("招标公告")}, pipelineBids)
	require.NoError(t, err)
	longAgo := time.Now().Add(-time.Hour)
	p.markStale(t, func(f *fakeDb) {
		project := f.projects[projectId]
		project.RulesStatus = view.TaskStatusProcessing
		project.ExecutorId = "crashed-executor"
		project.RestartCount = p.settings.TaskRestartLimit
		project.LastActive = &longAgo
	})

	p.drain()

	project, err := p.db.GetProject(ctx, projectId)
	require.NoError(t, err)
	assert.Equal(t, view.TaskStatusError, project.RulesStatus)
	assert.Equal(t, view.ProjectStatusCompletedWithErrors, project.Status)
	projectBids, err := p.db.GetProjectBids(ctx, projectId)
	require.NoError(t, err)
	for _, b := range projectBids {
		assert.Equal(t, view.BidStatusError, b.Status)
	}
	assert.Empty(t, p.llm.scoredCriteria())
}

func TestFinishedBidIsNotReopenedByKeepAlive(t *testing.T) {
	p := newPipeline(t, &fakeLLM{})
	ctx := context.Background()
	projectId, err := p.analysis.StartAnalysis(ctx, UploadFile{Name: "tender.txt", Data: []byte("招标公告")}, pipelineBids[:1])
	require.NoError(t, err)
	for p.rules.processTask() {
	}
	bid, _, err := p.db.FindFreeBidTask(ctx, p.executorId, p.settings.TaskRestartLimit)
	require.NoError(t, err)
	require.NotNil(t, bid)

	touched := make(chan struct{}, 1)
	release := make(chan struct{})
	stop := keepAlive(time.Millisecond, func() {
		select {
		case touched <- struct{}{}:
			<-release
		default:
		}
		assert.NoError(t, p.db.TouchBidTask(ctx, bid.Id, p.executorId))
	})
	<-touched
	require.NoError(t, p.db.SaveBidResult(ctx, bid.Id, &entity.AnalysisResult{ProjectId: projectId, BidderName: bid.BidderName}, 1, p.executorId))
	close(release)
	stop()

	require.NoError(t, p.db.SetBidStatus(ctx, bid.Id, view.BidStatusError, "late failure", p.executorId))
	saved, err := p.db.GetBid(ctx, bid.Id)
	require.NoError(t, err)
	assert.Equal(t, view.BidStatusCompleted, saved.Status)
	assert.Empty(t, saved.ErrorMessage)
}
