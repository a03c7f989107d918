package service

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/Netcracker/qubership-bid-evaluation-service/entity"
	"github.com/Netcracker/qubership-bid-evaluation-service/exception"
	"github.com/Netcracker/qubership-bid-evaluation-service/repository"
	"github.com/Netcracker/qubership-bid-evaluation-service/storage"
	"github.com/Netcracker/qubership-bid-evaluation-service/utils"
	"github.com/Netcracker/qubership-bid-evaluation-service/view"
	log "github.com/sirupsen/logrus"
)

type UploadFile struct {
	Name string
	Data []byte
}

type AnalysisService interface {
	// StartAnalysis stores the files, creates the project with one pending bid per file and returns the project id.
	// Rule extraction and bid analysis run in the background.
	StartAnalysis(ctx context.Context, tender UploadFile, bids []UploadFile) (int64, error)
}

func NewAnalysisService(projectRepo repository.ProjectRepository, fileStore storage.FileStore, documentTextService DocumentTextService,
	bidderNameService BidderNameService, taskEvents TaskEventListener) AnalysisService {
	return &analysisServiceImpl{
		projectRepo:         projectRepo,
		fileStore:           fileStore,
		documentTextService: documentTextService,
		bidderNameService:   bidderNameService,
		taskEvents:          taskEvents,
	}
}

type analysisServiceImpl struct {
	projectRepo         repository.ProjectRepository
	fileStore           storage.FileStore
	documentTextService DocumentTextService
	bidderNameService   BidderNameService
	taskEvents          TaskEventListener
}

func MakeProjectCode(t time.Time) string {
	return "PRJ-" + t.Format("20060102-150405")
}

func (a analysisServiceImpl) StartAnalysis(ctx context.Context, tender UploadFile, bids []UploadFile) (int64, error) {
	if tender.Name == "" || len(tender.Data) == 0 {
		return 0, &exception.CustomError{
			Status:  http.StatusBadRequest,
			Code:    exception.TenderFileMissing,
			Message: exception.TenderFileMissingMsg,
		}
	}
	if len(bids) == 0 {
		return 0, &exception.CustomError{
			Status:  http.StatusBadRequest,
			Code:    exception.BidFilesMissing,
			Message: exception.BidFilesMissingMsg,
		}
	}
	for _, f := range append([]UploadFile{tender}, bids...) {
		if !IsSupportedFile(f.Name) {
			return 0, &exception.CustomError{
				Status:  http.StatusBadRequest,
				Code:    exception.UnsupportedFileType,
				Message: exception.UnsupportedFileTypeMsg,
				Params:  map[string]interface{}{"name": f.Name},
			}
		}
	}

	now := time.Now()
	code := MakeProjectCode(now)

	var savedKeys []string
	failed := func(err error) (int64, error) {
		a.removeFiles(ctx, savedKeys)
		return 0, err
	}

	tenderKey, err := a.saveFile(ctx, code, tender)
	if err != nil {
		return failed(err)
	}
	savedKeys = append(savedKeys, tenderKey)
	project := entity.TenderProject{
		ProjectCode:    code,
		Name:           utils.BaseNameWithoutExt(tender.Name),
		Description:    fmt.Sprintf("%d bid document(s)", len(bids)),
		TenderFileName: tender.Name,
		TenderFileKey:  tenderKey,
		Status:         view.ProjectStatusProcessing,
		CreatedAt:      now,
		RulesStatus:    view.TaskStatusNotStarted,
	}

	bidEnts := make([]entity.BidDocument, 0, len(bids))
	for _, f := range bids {
		key, err := a.saveFile(ctx, code, f)
		if err != nil {
			return failed(err)
		}
		savedKeys = append(savedKeys, key)
		bidEnts = append(bidEnts, entity.BidDocument{
			BidderName: a.bidderName(ctx, key, f),
			FileName:   f.Name,
			FileKey:    key,
			FileSize:   int64(len(f.Data)),
			UploadedAt: now,
			Status:     view.BidStatusPending,
		})
	}

	if err = a.projectRepo.CreateProject(ctx, &project, bidEnts); err != nil {
		return failed(err)
	}
	log.Infof("Project %d (%s) created with %d bids", project.Id, code, len(bidEnts))
	a.taskEvents.Notify(TaskEvent{ProjectId: project.Id, Kind: TaskEventProjectCreated})
	return project.Id, nil
}

// removeFiles drops files stored for a project that was never created.
func (a analysisServiceImpl) removeFiles(ctx context.Context, keys []string) {
	for _, key := range keys {
		if err := a.fileStore.Delete(ctx, key); err != nil {
			log.Warnf("Failed to remove stored file %s: %v", key, err)
		}
	}
}

func (a analysisServiceImpl) saveFile(ctx context.Context, projectCode string, f UploadFile) (string, error) {
	key := storage.MakeFileKey(projectCode, f.Name)
	if err := a.fileStore.Save(ctx, key, bytes.NewReader(f.Data), int64(len(f.Data))); err != nil {
		return "", fmt.Errorf("failed to store file %s: %w", f.Name, err)
	}
	return key, nil
}

func (a analysisServiceImpl) bidderName(ctx context.Context, key string, f UploadFile) string {
	pages, _, err := a.documentTextService.ExtractPages(ctx, key, f.Name)
	if err != nil {
		log.Warnf("Failed to read %s for bidder name extraction: %s", f.Name, err)
		pages = nil
	}
	return a.bidderNameService.ExtractBidderName(ctx, pages, f.Name, int64(len(f.Data)))
}
