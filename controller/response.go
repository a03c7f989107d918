// Copyright 2024-2025 NetCracker Technology Corporation
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package controller

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/url"

	"github.com/Netcracker/qubership-bid-evaluation-service/exception"
	"github.com/Netcracker/qubership-bid-evaluation-service/utils"
	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"
)

func respondWithJson(w http.ResponseWriter, code int, payload interface{}) {
	response, err := json.Marshal(payload)
	if err != nil {
		respondWithError(w, "Failed to marshal response", err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(response)
}

func respondWithError(w http.ResponseWriter, msg string, err error) {
	var customError *exception.CustomError
	if errors.As(err, &customError) {
		log.Debugf("%s: %s", msg, customError.Error())
		RespondWithCustomError(w, customError)
		return
	}
	log.Errorf("%s: %s", msg, err)
	RespondWithCustomError(w, &exception.CustomError{
		Status:  http.StatusInternalServerError,
		Message: msg,
		Debug:   err.Error(),
	})
}

func RespondWithCustomError(w http.ResponseWriter, err *exception.CustomError) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(err.Status)
	json.NewEncoder(w).Encode(exception.CustomError{
		Status:  err.Status,
		Code:    err.Code,
		Message: err.Error(),
		Params:  err.Params,
		Debug:   err.Debug,
	})
}

func getStringParam(r *http.Request, p string) string {
	params := mux.Vars(r)
	return params[p]
}

func getUnescapedStringParam(r *http.Request, p string) (string, error) {
	return url.PathUnescape(getStringParam(r, p))
}

func getIdParam(r *http.Request, p string) (int64, error) {
	return utils.ParseId(p, getStringParam(r, p))
}
