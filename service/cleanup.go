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

package service

import (
	"context"
	"fmt"

	"github.com/Netcracker/qubership-bid-evaluation-service/repository"
	"github.com/Netcracker/qubership-bid-evaluation-service/storage"
	"github.com/Netcracker/qubership-bid-evaluation-service/utils"
	log "github.com/sirupsen/logrus"
)

// CleanupService removes projects created by automated tests. Test tender files are named "QS<suite>-<testId>...".
type CleanupService interface {
	ClearTestData(ctx context.Context, testId string) (int, error)
}

type cleanupServiceImpl struct {
	projectRepo repository.ProjectRepository
	fileStore   storage.FileStore
}

func NewCleanupService(projectRepo repository.ProjectRepository, fileStore storage.FileStore) CleanupService {
	return &cleanupServiceImpl{
		projectRepo: projectRepo,
		fileStore:   fileStore,
	}
}

func (s *cleanupServiceImpl) ClearTestData(ctx context.Context, testId string) (int, error) {
	nameFilter := "QS%-" + utils.LikeEscaped(testId) + "%"

	log.Debugf("Starting cleanup for testId: %s with filter: %s", testId, nameFilter)

	fileKeys, err := s.projectRepo.DeleteFinishedProjects(ctx, nameFilter)
	if err != nil {
		return 0, fmt.Errorf("failed to delete test projects: %w", err)
	}
	if len(fileKeys) == 0 {
		log.Debugf("No finished projects found matching pattern: %s", nameFilter)
		return 0, nil
	}

	for _, key := range fileKeys {
		// rows are already gone, an orphan file is only logged
		if err := s.fileStore.Delete(ctx, key); err != nil {
			log.Warnf("Failed to delete file %s: %s", key, err)
		}
	}

	log.Debugf("Cleanup completed successfully for testId: %s, %d files removed", testId, len(fileKeys))
	return len(fileKeys), nil
}
