package controller

import (
	"io"
	"mime/multipart"
	"net/http"

	"github.com/Netcracker/qubership-bid-evaluation-service/exception"
	"github.com/Netcracker/qubership-bid-evaluation-service/service"
	"github.com/Netcracker/qubership-bid-evaluation-service/view"
	log "github.com/sirupsen/logrus"
)

const maxUploadMemory = 64 << 20

type AnalysisController interface {
	AnalyzeImmediately(w http.ResponseWriter, r *http.Request)
}

func NewAnalysisController(analysisService service.AnalysisService) AnalysisController {
	return &analysisControllerImpl{analysisService: analysisService}
}

type analysisControllerImpl struct {
	analysisService service.AnalysisService
}

func (a analysisControllerImpl) AnalyzeImmediately(w http.ResponseWriter, r *http.Request) {
	err := r.ParseMultipartForm(maxUploadMemory)
	if err != nil {
		RespondWithCustomError(w, &exception.CustomError{
			Status:  http.StatusBadRequest,
			Code:    exception.IncorrectMultipartFile,
			Message: exception.IncorrectMultipartFileMsg,
			Debug:   err.Error(),
		})
		return
	}
	defer r.MultipartForm.RemoveAll()

	var missing []string
	tenderHeaders := r.MultipartForm.File["tender_file"]
	if len(tenderHeaders) == 0 {
		missing = append(missing, "tender_file")
	}
	bidHeaders := r.MultipartForm.File["bid_files"]
	if len(bidHeaders) == 0 {
		missing = append(missing, "bid_files")
	}
	if len(missing) > 0 {
		RespondWithCustomError(w, &exception.CustomError{
			Status:  http.StatusBadRequest,
			Code:    exception.RequiredParamsMissing,
			Message: exception.RequiredParamsMissingMsg,
			Params:  map[string]interface{}{"params": missing},
		})
		return
	}

	tender, err := readUploadFile(tenderHeaders[0])
	if err != nil {
		respondWithIncorrectFile(w, err)
		return
	}
	bids := make([]service.UploadFile, 0, len(bidHeaders))
	for _, h := range bidHeaders {
		f, err := readUploadFile(h)
		if err != nil {
			respondWithIncorrectFile(w, err)
			return
		}
		bids = append(bids, f)
	}

	projectId, err := a.analysisService.StartAnalysis(r.Context(), tender, bids)
	if err != nil {
		respondWithError(w, "Failed to start analysis", err)
		return
	}
	log.Debugf("Analysis of project %d started with %d bid(s)", projectId, len(bids))
	respondWithJson(w, http.StatusOK, view.AnalyzeResponse{ProjectId: projectId})
}

func readUploadFile(h *multipart.FileHeader) (service.UploadFile, error) {
	f, err := h.Open()
	if err != nil {
		return service.UploadFile{}, err
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		return service.UploadFile{}, err
	}
	return service.UploadFile{Name: h.Filename, Data: data}, nil
}

func respondWithIncorrectFile(w http.ResponseWriter, err error) {
	RespondWithCustomError(w, &exception.CustomError{
		Status:  http.StatusBadRequest,
		Code:    exception.IncorrectMultipartFile,
		Message: exception.IncorrectMultipartFileMsg,
		Debug:   err.Error(),
	})
}
