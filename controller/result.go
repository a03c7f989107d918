package controller

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/Netcracker/qubership-bid-evaluation-service/exception"
	"github.com/Netcracker/qubership-bid-evaluation-service/report"
	"github.com/Netcracker/qubership-bid-evaluation-service/secctx"
	"github.com/Netcracker/qubership-bid-evaluation-service/service"
	"github.com/Netcracker/qubership-bid-evaluation-service/view"
)

type ResultController interface {
	BulkUpdateScores(w http.ResponseWriter, r *http.Request)
	ExportResultsCsv(w http.ResponseWriter, r *http.Request)
	GetScoreChart(w http.ResponseWriter, r *http.Request)
}

func NewResultController(projectService service.ProjectService) ResultController {
	return &resultControllerImpl{projectService: projectService}
}

type resultControllerImpl struct {
	projectService service.ProjectService
}

func (c resultControllerImpl) BulkUpdateScores(w http.ResponseWriter, r *http.Request) {
	var updates []view.ScoreUpdate
	if err := json.NewDecoder(r.Body).Decode(&updates); err != nil {
		RespondWithCustomError(w, &exception.CustomError{
			Status:  http.StatusBadRequest,
			Code:    exception.BadRequestBody,
			Message: exception.BadRequestBodyMsg,
			Debug:   err.Error(),
		})
		return
	}
	if len(updates) == 0 {
		RespondWithCustomError(w, &exception.CustomError{
			Status:  http.StatusBadRequest,
			Code:    exception.RequiredParamsMissing,
			Message: exception.RequiredParamsMissingMsg,
			Params:  map[string]interface{}{"params": "id, total_score"},
		})
		return
	}

	result, err := c.projectService.BulkUpdateScores(secctx.MakeUserContext(r), updates)
	if err != nil {
		respondWithError(w, "Failed to update scores", err)
		return
	}
	respondWithJson(w, http.StatusOK, result)
}

func (c resultControllerImpl) ExportResultsCsv(w http.ResponseWriter, r *http.Request) {
	projectId, err := getIdParam(r, "projectId")
	if err != nil {
		respondWithError(w, "Invalid project id", err)
		return
	}
	results, err := c.projectService.GetResults(r.Context(), projectId)
	if err != nil {
		respondWithError(w, "Failed to get analysis results", err)
		return
	}
	rules, err := c.projectService.GetScoringRules(r.Context(), projectId)
	if err != nil {
		respondWithError(w, "Failed to get scoring rules", err)
		return
	}

	var buf bytes.Buffer
	if err = report.WriteResultsCSV(&buf, rules, results); err != nil {
		respondWithError(w, "Failed to export results", err)
		return
	}
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=results_%d.csv", projectId))
	w.Write(buf.Bytes())
}

func (c resultControllerImpl) GetScoreChart(w http.ResponseWriter, r *http.Request) {
	projectId, err := getIdParam(r, "projectId")
	if err != nil {
		respondWithError(w, "Invalid project id", err)
		return
	}
	results, err := c.projectService.GetResults(r.Context(), projectId)
	if err != nil {
		respondWithError(w, "Failed to get analysis results", err)
		return
	}

	var buf bytes.Buffer
	if err = report.RenderScoreChart(&buf, results); err != nil {
		respondWithError(w, "Failed to render chart", err)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Write(buf.Bytes())
}
