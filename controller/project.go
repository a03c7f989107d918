package controller

import (
	"net/http"

	"github.com/Netcracker/qubership-bid-evaluation-service/service"
)

type ProjectController interface {
	ListProjects(w http.ResponseWriter, r *http.Request)
	GetAnalysisStatus(w http.ResponseWriter, r *http.Request)
	GetResults(w http.ResponseWriter, r *http.Request)
	GetScoringRules(w http.ResponseWriter, r *http.Request)
	GetFailedPages(w http.ResponseWriter, r *http.Request)
	GetDynamicSummary(w http.ResponseWriter, r *http.Request)
	RecalculatePriceScores(w http.ResponseWriter, r *http.Request)
	ExtractScoringRules(w http.ResponseWriter, r *http.Request)
}

func NewProjectController(projectService service.ProjectService) ProjectController {
	return &projectControllerImpl{projectService: projectService}
}

type projectControllerImpl struct {
	projectService service.ProjectService
}

func (p projectControllerImpl) ListProjects(w http.ResponseWriter, r *http.Request) {
	result, err := p.projectService.ListProjects(r.Context())
	if err != nil {
		respondWithError(w, "Failed to list projects", err)
		return
	}
	respondWithJson(w, http.StatusOK, result)
}

func (p projectControllerImpl) GetAnalysisStatus(w http.ResponseWriter, r *http.Request) {
	projectId, err := getIdParam(r, "projectId")
	if err != nil {
		respondWithError(w, "Invalid project id", err)
		return
	}
	result, err := p.projectService.GetAnalysisStatus(r.Context(), projectId)
	if err != nil {
		respondWithError(w, "Failed to get analysis status", err)
		return
	}
	respondWithJson(w, http.StatusOK, result)
}

func (p projectControllerImpl) GetResults(w http.ResponseWriter, r *http.Request) {
	projectId, err := getIdParam(r, "projectId")
	if err != nil {
		respondWithError(w, "Invalid project id", err)
		return
	}
	result, err := p.projectService.GetResults(r.Context(), projectId)
	if err != nil {
		respondWithError(w, "Failed to get analysis results", err)
		return
	}
	respondWithJson(w, http.StatusOK, result)
}

func (p projectControllerImpl) GetScoringRules(w http.ResponseWriter, r *http.Request) {
	projectId, err := getIdParam(r, "projectId")
	if err != nil {
		respondWithError(w, "Invalid project id", err)
		return
	}
	result, err := p.projectService.GetScoringRules(r.Context(), projectId)
	if err != nil {
		respondWithError(w, "Failed to get scoring rules", err)
		return
	}
	respondWithJson(w, http.StatusOK, result)
}

func (p projectControllerImpl) GetFailedPages(w http.ResponseWriter, r *http.Request) {
	projectId, err := getIdParam(r, "projectId")
	if err != nil {
		respondWithError(w, "Invalid project id", err)
		return
	}
	bidId, err := getIdParam(r, "bidId")
	if err != nil {
		respondWithError(w, "Invalid bid document id", err)
		return
	}
	result, err := p.projectService.GetFailedPages(r.Context(), projectId, bidId)
	if err != nil {
		respondWithError(w, "Failed to get failed pages", err)
		return
	}
	respondWithJson(w, http.StatusOK, result)
}

func (p projectControllerImpl) GetDynamicSummary(w http.ResponseWriter, r *http.Request) {
	projectId, err := getIdParam(r, "projectId")
	if err != nil {
		respondWithError(w, "Invalid project id", err)
		return
	}
	result, err := p.projectService.GetDynamicSummary(r.Context(), projectId)
	if err != nil {
		respondWithError(w, "Failed to build summary", err)
		return
	}
	respondWithJson(w, http.StatusOK, result)
}

func (p projectControllerImpl) RecalculatePriceScores(w http.ResponseWriter, r *http.Request) {
	projectId, err := getIdParam(r, "projectId")
	if err != nil {
		respondWithError(w, "Invalid project id", err)
		return
	}
	result, err := p.projectService.RecalculatePriceScores(r.Context(), projectId)
	if err != nil {
		respondWithError(w, "Failed to recalculate price scores", err)
		return
	}
	respondWithJson(w, http.StatusOK, result)
}

func (p projectControllerImpl) ExtractScoringRules(w http.ResponseWriter, r *http.Request) {
	projectId, err := getIdParam(r, "projectId")
	if err != nil {
		respondWithError(w, "Invalid project id", err)
		return
	}
	result, err := p.projectService.ExtractScoringRules(r.Context(), projectId)
	if err != nil {
		respondWithError(w, "Failed to extract scoring rules", err)
		return
	}
	respondWithJson(w, http.StatusOK, result)
}
