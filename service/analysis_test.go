package service

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/Netcracker/qubership-bid-evaluation-service/entity"
	"github.com/Netcracker/qubership-bid-evaluation-service/exception"
	"github.com/Netcracker/qubership-bid-evaluation-service/repository"
	"github.com/Netcracker/qubership-bid-evaluation-service/storage"
	"github.com/Netcracker/qubership-bid-evaluation-service/view"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type analysisFixture struct {
	db     *fakeDb
	store  storage.FileStore
	events *fakeTaskEvents
	svc    AnalysisService
}

func newAnalysisFixture(t *testing.T, llm *fakeLLM) analysisFixture {
	db := newFakeDb()
	store, err := storage.NewFsFileStore(t.TempDir())
	require.NoError(t, err)
	events := &fakeTaskEvents{}
	docText := NewDocumentTextService(store, NoTextCache{}, DefaultRuntimeSettings())
	svc := NewAnalysisService(db, store, docText, NewBidderNameService(llm), events)
	return analysisFixture{db: db, store: store, events: events, svc: svc}
}

func TestStartAnalysis(t *testing.T) {
	f := newAnalysisFixture(t, &fakeLLM{})
	tender := UploadFile{Name: "智慧园区招标文件.txt", Data: []byte("招标公告")}
	bids := []UploadFile{
		{Name: "bid_a.txt", Data: []byte("投标函\n投标人：成都天府数据服务有限公司\n")},
		{Name: "乙方投标.md", Data: []byte("# 技术方案")},
	}

	projectId, err := f.svc.StartAnalysis(context.Background(), tender, bids)
	require.NoError(t, err)

	project, err := f.db.GetProject(context.Background(), projectId)
	require.NoError(t, err)
	require.NotNil(t, project)
	assert.True(t, strings.HasPrefix(project.ProjectCode, "PRJ-"))
	assert.Equal(t, "智慧园区招标文件", project.Name)
	assert.Equal(t, view.ProjectStatusProcessing, project.Status)
	assert.Equal(t, view.TaskStatusNotStarted, project.RulesStatus)

	stored, err := f.store.Open(context.Background(), project.TenderFileKey)
	require.NoError(t, err)
	assert.Equal(t, []byte("招标公告"), stored)

	projectBids, err := f.db.GetProjectBids(context.Background(), projectId)
	require.NoError(t, err)
	require.Len(t, projectBids, 2)
	assert.Equal(t, "成都天府数据服务有限公司", projectBids[0].BidderName)
	assert.Equal(t, "乙方投标", projectBids[1].BidderName)
	for _, b := range projectBids {
		assert.Equal(t, view.BidStatusPending, b.Status)
		assert.True(t, strings.HasPrefix(b.FileKey, project.ProjectCode+"/"))
	}

	require.Len(t, f.events.events, 1)
	assert.Equal(t, TaskEvent{ProjectId: projectId, Kind: TaskEventProjectCreated}, f.events.events[0])
}

func TestStartAnalysisUsesLLMBidderName(t *testing.T) {
	f := newAnalysisFixture(t, &fakeLLM{bidderName: "四川蜀信科技有限公司"})
	projectId, err := f.svc.StartAnalysis(context.Background(),
		UploadFile{Name: "tender.txt", Data: []byte("招标公告")},
		[]UploadFile{{Name: "b.txt", Data: []byte("技术响应文件 正文")}})
	require.NoError(t, err)

	projectBids, err := f.db.GetProjectBids(context.Background(), projectId)
	require.NoError(t, err)
	require.Len(t, projectBids, 1)
	assert.Equal(t, "四川蜀信科技有限公司", projectBids[0].BidderName)
}

func TestStartAnalysisValidation(t *testing.T) {
	f := newAnalysisFixture(t, &fakeLLM{})
	tender := UploadFile{Name: "tender.pdf", Data: []byte("%PDF")}
	bid := UploadFile{Name: "bid.pdf", Data: []byte("%PDF")}

	cases := []struct {
		name   string
		tender UploadFile
		bids   []UploadFile
		code   string
	}{
		{"no tender", UploadFile{}, []UploadFile{bid}, exception.TenderFileMissing},
		{"no bids", tender, nil, exception.BidFilesMissing},
		{"docx tender", UploadFile{Name: "tender.docx", Data: []byte("x")}, []UploadFile{bid}, exception.UnsupportedFileType},
		{"exe bid", tender, []UploadFile{bid, {Name: "setup.exe", Data: []byte("x")}}, exception.UnsupportedFileType},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			_, err := f.svc.StartAnalysis(context.Background(), c.tender, c.bids)
			var customErr *exception.CustomError
			require.True(t, errors.As(err, &customErr))
			assert.Equal(t, http.StatusBadRequest, customErr.Status)
			assert.Equal(t, c.code, customErr.Code)
		})
	}
	assert.Empty(t, f.db.projects)
	assert.Empty(t, f.events.events)
}

type failingProjectRepo struct {
	*fakeDb
}

func (f failingProjectRepo) CreateProject(ctx context.Context, project *entity.TenderProject, bids []entity.BidDocument) error {
	return errors.New("insert failed")
}

type recordingStore struct {
	storage.FileStore
	saved     []string
	saveLimit int
}

func (r *recordingStore) Save(ctx context.Context, key string, reader io.Reader, size int64) error {
	if r.saveLimit > 0 && len(r.saved) == r.saveLimit {
		return errors.New("disk full")
	}
	if err := r.FileStore.Save(ctx, key, reader, size); err != nil {
		return err
	}
	r.saved = append(r.saved, key)
	return nil
}

func TestStartAnalysisRemovesStoredFilesOnFailure(t *testing.T) {
	tender := UploadFile{Name: "tender.txt", Data: []byte("招标公告")}
	bids := []UploadFile{
		{Name: "a.txt", Data: []byte("投标函 甲")},
		{Name: "b.txt", Data: []byte("投标函 乙")},
	}
	cases := []struct {
		name      string
		failRepo  bool
		saveLimit int
		saved     int
	}{
		{"project insert fails", true, 0, 3},
		{"second bid save fails", false, 2, 2},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			fs, err := storage.NewFsFileStore(t.TempDir())
			require.NoError(t, err)
			store := &recordingStore{FileStore: fs, saveLimit: c.saveLimit}
			db := newFakeDb()
			var repo repository.ProjectRepository = db
			if c.failRepo {
				repo = failingProjectRepo{db}
			}
			docText := NewDocumentTextService(store, NoTextCache{}, DefaultRuntimeSettings())
			svc := NewAnalysisService(repo, store, docText, NewBidderNameService(&fakeLLM{}), &fakeTaskEvents{})

			_, err = svc.StartAnalysis(context.Background(), tender, bids)
			require.Error(t, err)

			require.Len(t, store.saved, c.saved)
			for _, key := range store.saved {
				_, err := fs.Open(context.Background(), key)
				assert.ErrorIs(t, err, storage.ErrFileNotFound, key)
			}
			assert.Empty(t, db.projects)
		})
	}
}
