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

package exception

import (
	"fmt"
	"strings"
)

type CustomError struct {
	Status  int                    `json:"status"`
	Code    string                 `json:"code,omitempty"`
	Message string                 `json:"message,omitempty"`
	Params  map[string]interface{} `json:"params,omitempty"`
	Debug   string                 `json:"debug,omitempty"`
}

func (c CustomError) Error() string {
	msg := c.Message
	for k, v := range c.Params {
		//todo make smart replace (e.g. now it replaces $projectId if we have $project in params)
		msg = strings.ReplaceAll(msg, "$"+k, fmt.Sprintf("%v", v))
	}
	return msg
}

const InvalidURLEscape = "6"
const InvalidURLEscapeMsg = "Failed to unescape parameter $param"

const InvalidParameterValue = "9"
const InvalidParameterValueMsg = "Value '$value' is not allowed for parameter $param"

const BadRequestBody = "10"
const BadRequestBodyMsg = "Failed to decode body"

const RequiredParamsMissing = "15"
const RequiredParamsMissingMsg = "Required parameters are missing: $params"

const EntityNotFound = "100"
const EntityNotFoundMsg = "$entity with id $id is not found"

const IncorrectMultipartFile = "1000"
const IncorrectMultipartFileMsg = "Unable to read Multipart file"

const TenderFileMissing = "1001"
const TenderFileMissingMsg = "Tender file is required"

const BidFilesMissing = "1002"
const BidFilesMissingMsg = "At least one bid file is required"

const UnsupportedFileType = "1003"
const UnsupportedFileTypeMsg = "File type of '$name' is not supported"

const NoScoringRules = "3000"
const NoScoringRulesMsg = "No scoring rules found for project $id"

const NoResults = "3001"
const NoResultsMsg = "No analysis results found for project $id"

const NoFailedPages = "3002"
const NoFailedPagesMsg = "No failed pages recorded for bid document $id"

const AnalysisIncomplete = "3100"
const AnalysisIncompleteMsg = "Analysis of project $id is not finished yet: $count bid(s) still in progress"

const NoPriceData = "3101"
const NoPriceDataMsg = "No price data found for project $id"

const NoScoresUpdated = "3102"
const NoScoresUpdatedMsg = "None of the requested analysis results were updated"

const TenderFileUnreadable = "3200"
const TenderFileUnreadableMsg = "Tender file of project $id can not be read"
