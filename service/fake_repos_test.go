package service

import (
	"context"
	"errors"
	"regexp"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/Netcracker/qubership-bid-evaluation-service/entity"
	"github.com/Netcracker/qubership-bid-evaluation-service/exception"
	"github.com/Netcracker/qubership-bid-evaluation-service/repository"
	"github.com/Netcracker/qubership-bid-evaluation-service/secctx"
	"github.com/Netcracker/qubership-bid-evaluation-service/utils"
	"github.com/Netcracker/qubership-bid-evaluation-service/view"
	"github.com/buraksezer/olric"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeDb keeps all repositories in memory.
type fakeDb struct {
	mu       sync.Mutex
	nextId   int64
	projects map[int64]*entity.TenderProject
	bids     map[int64]*entity.BidDocument
	rules    map[int64][]entity.ScoringRule
	results  map[int64]*entity.AnalysisResult

	progress   []entity.BidProgress
	modifiedBy string
}

var (
	_ repository.ProjectRepository        = (*fakeDb)(nil)
	_ repository.BidDocumentRepository    = (*fakeDb)(nil)
	_ repository.ScoringRuleRepository    = (*fakeDb)(nil)
	_ repository.AnalysisResultRepository = (*fakeDb)(nil)
)

func newFakeDb() *fakeDb {
	return &fakeDb{
		projects: map[int64]*entity.TenderProject{},
		bids:     map[int64]*entity.BidDocument{},
		rules:    map[int64][]entity.ScoringRule{},
		results:  map[int64]*entity.AnalysisResult{},
	}
}

func (f *fakeDb) id() int64 {
	f.nextId++
	return f.nextId
}

func (f *fakeDb) CreateProject(ctx context.Context, project *entity.TenderProject, bids []entity.BidDocument) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	project.Id = f.id()
	p := *project
	f.projects[p.Id] = &p
	for i := range bids {
		bids[i].Id = f.id()
		bids[i].ProjectId = project.Id
		b := bids[i]
		f.bids[b.Id] = &b
	}
	return nil
}

func (f *fakeDb) GetProject(ctx context.Context, id int64) (*entity.TenderProject, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.projects[id]
	if !ok {
		return nil, nil
	}
	res := *p
	return &res, nil
}

func (f *fakeDb) ListProjects(ctx context.Context) ([]entity.ProjectWithCounts, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var result []entity.ProjectWithCounts
	for _, p := range f.projects {
		pc := entity.ProjectWithCounts{TenderProject: *p}
		for _, b := range f.bids {
			if b.ProjectId == p.Id {
				pc.BidCount++
			}
		}
		for _, r := range f.results {
			if r.ProjectId == p.Id {
				pc.ResultCount++
			}
		}
		result = append(result, pc)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Id > result[j].Id })
	return result, nil
}

func (f *fakeDb) FindFreeRulesTask(ctx context.Context, executorId string, restartLimit int) (*entity.TenderProject, []entity.TenderProject, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var exhausted []entity.TenderProject
	for _, id := range f.sortedProjectIds() {
		p := f.projects[id]
		stale := p.RulesStatus == view.TaskStatusProcessing && isStale(p.LastActive)
		if p.RulesStatus != view.TaskStatusNotStarted && !stale {
			continue
		}
		if p.RestartCount >= restartLimit {
			p.RulesStatus = view.TaskStatusError
			p.RulesDetails = "Restart count exceeded limit"
			exhausted = append(exhausted, *p)
			continue
		}
		if stale {
			p.RestartCount++
		}
		p.RulesStatus = view.TaskStatusProcessing
		p.ExecutorId = executorId
		p.LastActive = fakeNow()
		res := *p
		return &res, exhausted, nil
	}
	return nil, exhausted, nil
}

// fakeStaleTimeout mirrors the keepalive timeout of the task queries.
const fakeStaleTimeout = 30 * time.Second

func isStale(lastActive *time.Time) bool {
	return lastActive == nil || time.Since(*lastActive) > fakeStaleTimeout
}

func fakeNow() *time.Time {
	t := time.Now()
	return &t
}

func (f *fakeDb) sortedProjectIds() []int64 {
	ids := make([]int64, 0, len(f.projects))
	for id := range f.projects {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

func (f *fakeDb) SetRulesStatus(ctx context.Context, id int64, status view.TaskStatus, details string, executorId string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if p, ok := f.projects[id]; ok && p.ExecutorId == executorId && p.RulesStatus == view.TaskStatusProcessing {
		p.RulesStatus = status
		p.RulesDetails = details
		p.LastActive = fakeNow()
	}
	return nil
}

func (f *fakeDb) TouchRulesTask(ctx context.Context, id int64, executorId string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if p, ok := f.projects[id]; ok && p.ExecutorId == executorId && p.RulesStatus == view.TaskStatusProcessing {
		p.LastActive = fakeNow()
	}
	return nil
}

func (f *fakeDb) FailRulesTask(ctx context.Context, id int64, details string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if p, ok := f.projects[id]; ok {
		p.RulesStatus = view.TaskStatusError
		p.RulesDetails = details
	}
	for _, b := range f.bids {
		if b.ProjectId == id && (b.Status == view.BidStatusPending || b.Status == view.BidStatusProcessing) {
			b.Status = view.BidStatusError
			b.ErrorMessage = details
		}
	}
	return nil
}

func (f *fakeDb) FinalizeProject(ctx context.Context, id int64, finalizer repository.ProjectFinalizer) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.projects[id]
	if !ok || p.Status.IsTerminal() {
		return false, nil
	}
	bids := f.projectBids(id)
	for _, b := range bids {
		if !b.Status.IsTerminal() {
			return false, nil
		}
	}
	updated, status, err := finalizer(bids, f.projectResults(id))
	if err != nil {
		return false, err
	}
	for _, r := range updated {
		r := r
		f.results[r.Id] = &r
	}
	p.Status = status
	return true, nil
}

func (f *fakeDb) GetBid(ctx context.Context, id int64) (*entity.BidDocument, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.bids[id]
	if !ok {
		return nil, nil
	}
	res := *b
	return &res, nil
}

func (f *fakeDb) GetProjectBids(ctx context.Context, projectId int64) ([]entity.BidDocument, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.projectBids(projectId), nil
}

func (f *fakeDb) projectBids(projectId int64) []entity.BidDocument {
	var result []entity.BidDocument
	for _, b := range f.bids {
		if b.ProjectId == projectId {
			result = append(result, *b)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Id < result[j].Id })
	return result
}

func (f *fakeDb) FindFreeBidTask(ctx context.Context, executorId string, restartLimit int) (*entity.BidDocument, []entity.BidDocument, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	ids := make([]int64, 0, len(f.bids))
	for id := range f.bids {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	var exhausted []entity.BidDocument
	for _, id := range ids {
		b := f.bids[id]
		if f.projects[b.ProjectId].RulesStatus != view.TaskStatusSuccess {
			continue
		}
		stale := b.Status == view.BidStatusProcessing && isStale(b.LastActive)
		if b.Status != view.BidStatusPending && !stale {
			continue
		}
		if b.RestartCount >= restartLimit {
			b.Status = view.BidStatusError
			b.ErrorMessage = "Restart count exceeded limit"
			exhausted = append(exhausted, *b)
			continue
		}
		if stale {
			b.RestartCount++
		}
		b.Status = view.BidStatusProcessing
		b.ExecutorId = executorId
		b.ErrorMessage = ""
		b.LastActive = fakeNow()
		res := *b
		return &res, exhausted, nil
	}
	return nil, exhausted, nil
}

func (f *fakeDb) SetBidStatus(ctx context.Context, id int64, status view.BidStatus, errorMessage string, executorId string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if b, ok := f.bids[id]; ok && b.ExecutorId == executorId && b.Status == view.BidStatusProcessing {
		b.Status = status
		b.ErrorMessage = errorMessage
		b.LastActive = fakeNow()
	}
	return nil
}

func (f *fakeDb) TouchBidTask(ctx context.Context, id int64, executorId string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if b, ok := f.bids[id]; ok && b.ExecutorId == executorId && b.Status == view.BidStatusProcessing {
		b.LastActive = fakeNow()
	}
	return nil
}

func (f *fakeDb) UpdateProgress(ctx context.Context, id int64, progress entity.BidProgress) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.progress = append(f.progress, progress)
	if b, ok := f.bids[id]; ok {
		b.ProgressCompleted = progress.Completed
		b.ProgressTotal = progress.Total
		b.CurrentRule = progress.CurrentRule
		b.DetailedProgressInfo = progress.Details
		b.PartialResults = progress.PartialResults
	}
	return nil
}

func (f *fakeDb) SaveFailedPages(ctx context.Context, id int64, pages []view.FailedPage) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if b, ok := f.bids[id]; ok {
		b.FailedPages = pages
	}
	return nil
}

func (f *fakeDb) SaveBidResult(ctx context.Context, id int64, result *entity.AnalysisResult, analysisTimeMs int64, executorId string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for rid, r := range f.results {
		if r.BidDocumentId == id {
			delete(f.results, rid)
		}
	}
	result.Id = f.id()
	result.BidDocumentId = id
	r := *result
	f.results[r.Id] = &r
	if b, ok := f.bids[id]; ok {
		b.Status = view.BidStatusCompleted
		b.CurrentRule = "分析完成"
		b.AnalysisTimeMs = analysisTimeMs
	}
	return nil
}

func (f *fakeDb) GetProjectRules(ctx context.Context, projectId int64) ([]entity.ScoringRule, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]entity.ScoringRule(nil), f.rules[projectId]...), nil
}

func (f *fakeDb) CountProjectRules(ctx context.Context, projectId int64) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.rules[projectId]), nil
}

func (f *fakeDb) ReplaceProjectRules(ctx context.Context, projectId int64, rules []view.RuleDraft) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	var ents []entity.ScoringRule
	var insert func(list []view.RuleDraft, parentId int64, category string)
	insert = func(list []view.RuleDraft, parentId int64, category string) {
		for _, r := range list {
			ent := entity.ScoringRule{
				Id:              f.id(),
				ProjectId:       projectId,
				ParentId:        parentId,
				Position:        len(ents) + 1,
				Category:        category,
				CriteriaName:    r.CriteriaName,
				MaxScore:        r.MaxScore,
				Weight:          1.0,
				Description:     r.Description,
				IsVeto:          r.IsVeto,
				IsPriceCriteria: r.IsPriceCriteria,
				PriceFormula:    r.PriceFormula,
			}
			ents = append(ents, ent)
			insert(r.Children, ent.Id, r.CriteriaName)
		}
	}
	insert(rules, 0, "")
	f.rules[projectId] = ents
	return nil
}

func (f *fakeDb) GetProjectResults(ctx context.Context, projectId int64) ([]entity.AnalysisResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.projectResults(projectId), nil
}

func (f *fakeDb) projectResults(projectId int64) []entity.AnalysisResult {
	var result []entity.AnalysisResult
	for _, r := range f.results {
		if r.ProjectId == projectId {
			result = append(result, *r)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].TotalScore != result[j].TotalScore {
			return result[i].TotalScore > result[j].TotalScore
		}
		return result[i].Id < result[j].Id
	})
	return result
}

func (f *fakeDb) UpdateScores(ctx context.Context, results []entity.AnalysisResult) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range results {
		r := r
		f.results[r.Id] = &r
	}
	return nil
}

func (f *fakeDb) BulkUpdateTotals(ctx context.Context, updates []view.ScoreUpdate, modifiedBy string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	count := 0
	for _, u := range updates {
		r, ok := f.results[u.Id]
		if !ok {
			continue
		}
		r.TotalScore = utils.Round2(u.TotalScore)
		r.IsModified = true
		r.ModificationCount++
		r.LastModifiedBy = modifiedBy
		f.modifiedBy = modifiedBy
		count++
	}
	return count, nil
}

// fakeTaskEvents delivers events synchronously.
type fakeTaskEvents struct {
	mu          sync.Mutex
	events      []TaskEvent
	subscribers []func(event TaskEvent)
}

func (f *fakeTaskEvents) Start() {}

func (f *fakeTaskEvents) Notify(event TaskEvent) {
	f.mu.Lock()
	f.events = append(f.events, event)
	subs := append([]func(TaskEvent){}, f.subscribers...)
	f.mu.Unlock()
	for _, s := range subs {
		s(event)
	}
}

func (f *fakeTaskEvents) listen(message olric.DTopicMessage) {}

func (f *fakeTaskEvents) Subscribe(fn func(event TaskEvent)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.subscribers = append(f.subscribers, fn)
}

func assertCustomError(t *testing.T, err error, status int) {
	t.Helper()
	var customErr *exception.CustomError
	require.True(t, errors.As(err, &customErr), "unexpected error %v", err)
	assert.Equal(t, status, customErr.Status)
}

func sysadminCtx() context.Context {
	return secctx.MakeSysadminContext(context.Background())
}

// likeRegexp converts a LIKE pattern with backslash escapes to an anchored regexp.
func likeRegexp(pattern string) *regexp.Regexp {
	expr := "^"
	escaped := false
	for _, r := range pattern {
		switch {
		case escaped:
			expr += regexp.QuoteMeta(string(r))
			escaped = false
		case r == '\\':
			escaped = true
		case r == '%':
			expr += ".*"
		case r == '_':
			expr += "."
		default:
			expr += regexp.QuoteMeta(string(r))
		}
	}
	return regexp.MustCompile(expr + "$")
}

func (f *fakeDb) DeleteFinishedProjects(ctx context.Context, nameFilter string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	re := likeRegexp(nameFilter)
	var keys []string
	for _, id := range f.sortedProjectIds() {
		p := f.projects[id]
		if !re.MatchString(p.Name) || !p.Status.IsTerminal() {
			continue
		}
		keys = append(keys, p.TenderFileKey)
		for _, b := range f.projectBids(id) {
			keys = append(keys, b.FileKey)
			delete(f.bids, b.Id)
		}
		for resultId, r := range f.results {
			if r.ProjectId == id {
				delete(f.results, resultId)
			}
		}
		delete(f.rules, id)
		delete(f.projects, id)
	}
	return keys, nil
}
