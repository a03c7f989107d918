package controller

import (
	"net/http"

	"github.com/Netcracker/qubership-bid-evaluation-service/exception"
	"github.com/Netcracker/qubership-bid-evaluation-service/service"
)

type CleanupController interface {
	ClearTestData(w http.ResponseWriter, r *http.Request)
}

type cleanupControllerImpl struct {
	cleanupService    service.CleanupService
	systemInfoService service.SystemInfoService
}

func NewCleanupController(cleanupService service.CleanupService, systemInfoService service.SystemInfoService) CleanupController {
	return &cleanupControllerImpl{
		cleanupService:    cleanupService,
		systemInfoService: systemInfoService,
	}
}

func (c cleanupControllerImpl) ClearTestData(w http.ResponseWriter, r *http.Request) {
	if c.systemInfoService.IsProductionMode() {
		RespondWithCustomError(w, &exception.CustomError{
			Status: http.StatusNotFound,
		})
		return
	}

	testId, err := getUnescapedStringParam(r, "testId")
	if err != nil {
		RespondWithCustomError(w, &exception.CustomError{
			Status:  http.StatusBadRequest,
			Code:    exception.InvalidURLEscape,
			Message: exception.InvalidURLEscapeMsg,
			Params:  map[string]interface{}{"param": "testId"},
			Debug:   err.Error(),
		})
		return
	}
	if testId == "" {
		RespondWithCustomError(w, &exception.CustomError{
			Status:  http.StatusBadRequest,
			Code:    exception.RequiredParamsMissing,
			Message: exception.RequiredParamsMissingMsg,
			Params:  map[string]interface{}{"params": "testId"},
		})
		return
	}

	if _, err = c.cleanupService.ClearTestData(r.Context(), testId); err != nil {
		respondWithError(w, "Failed to clear test data", err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
