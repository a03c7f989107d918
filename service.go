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

package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"
	"time"

	"github.com/Netcracker/qubership-bid-evaluation-service/client"
	"github.com/Netcracker/qubership-bid-evaluation-service/controller"
	"github.com/Netcracker/qubership-bid-evaluation-service/db"
	"github.com/Netcracker/qubership-bid-evaluation-service/entity"
	"github.com/Netcracker/qubership-bid-evaluation-service/repository"
	"github.com/Netcracker/qubership-bid-evaluation-service/security"
	"github.com/Netcracker/qubership-bid-evaluation-service/service"
	"github.com/Netcracker/qubership-bid-evaluation-service/storage"
	"github.com/google/uuid"
	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"
)

func init() {
	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	log.SetOutput(os.Stdout)
}

func main() {
	readyChan := make(chan bool)
	systemInfoService, err := service.NewSystemInfoService()
	if err != nil {
		panic(err)
	}
	setLogLevel(systemInfoService.GetLogLevel())

	settings, err := service.LoadRuntimeSettings(systemInfoService.GetRuntimeSettingsFile())
	if err != nil {
		log.Fatalf("Failed to load runtime settings: %s", err)
	}

	ctx := context.Background()
	cp := db.NewConnectionProvider(&db.DbCredentials{
		Host:     systemInfoService.GetDbHost(),
		Port:     systemInfoService.GetDbPort(),
		Database: systemInfoService.GetDbName(),
		Username: systemInfoService.GetDbUser(),
		Password: systemInfoService.GetDbPassword(),
	})
	if err = db.CreateSchema(ctx, cp, entity.AllModels()...); err != nil {
		log.Fatalf("Failed to create db schema: %s", err)
	}

	olricProvider, err := client.NewOlricProvider(client.OlricConfig{
		DiscoveryMode: systemInfoService.GetOlricDiscoveryMode(),
		ReplicaCount:  systemInfoService.GetOlricReplicaCount(),
		Namespace:     systemInfoService.GetNamespace(),
	})
	if err != nil {
		log.Fatalf("Failed to create olric provider: %s", err)
	}

	fileStore, err := makeFileStore(ctx, systemInfoService)
	if err != nil {
		log.Fatalf("Failed to init file storage: %s", err)
	}

	llmClient, err := makeLLMClient(systemInfoService)
	if err != nil {
		log.Fatalf("Failed to init LLM client: %s", err)
	}
	log.Infof("LLM provider %s, model %s", systemInfoService.GetLLMProvider(), llmClient.GetModel())

	if err = security.SetupGoGuardian(systemInfoService.GetApiKeys(), systemInfoService.GetBasicAuthUsers()); err != nil {
		log.Fatalf("Failed to setup authentication: %s", err)
	}
	if !security.IsAuthEnabled() {
		log.Warn("No api keys or users configured, authentication is disabled")
	}

	projectRepository := repository.NewProjectRepository(cp)
	bidDocumentRepository := repository.NewBidDocumentRepository(cp)
	scoringRuleRepository := repository.NewScoringRuleRepository(cp)
	analysisResultRepository := repository.NewAnalysisResultRepository(cp)

	textCache := service.NewOlricTextCache(olricProvider, settings.TextCacheTtl())
	taskEvents := service.NewTaskEventListener(olricProvider)
	documentTextService := service.NewDocumentTextService(fileStore, textCache, settings)
	bidderNameService := service.NewBidderNameService(llmClient)
	ruleExtractionService := service.NewRuleExtractionService(llmClient)
	bidAnalyzer := service.NewBidAnalyzer(llmClient, settings)
	finalizationService := service.NewFinalizationService(projectRepository, scoringRuleRepository, settings)
	analysisService := service.NewAnalysisService(projectRepository, fileStore, documentTextService, bidderNameService, taskEvents)
	projectService := service.NewProjectService(projectRepository, bidDocumentRepository, scoringRuleRepository, analysisResultRepository,
		documentTextService, ruleExtractionService, finalizationService, settings)

	cleanupService := service.NewCleanupService(projectRepository, fileStore)

	executorId := uuid.New().String()
	log.Infof("Executor id: %s", executorId)
	ruleTaskProcessor := service.NewRuleTaskProcessor(projectRepository, scoringRuleRepository, documentTextService, ruleExtractionService,
		finalizationService, taskEvents, settings, executorId)
	bidTaskProcessor := service.NewBidTaskProcessor(bidDocumentRepository, scoringRuleRepository, documentTextService, bidAnalyzer,
		finalizationService, taskEvents, settings, executorId)

	taskEvents.Start()
	ruleTaskProcessor.Start()
	bidTaskProcessor.Start()

	analysisController := controller.NewAnalysisController(analysisService)
	projectController := controller.NewProjectController(projectService)
	resultController := controller.NewResultController(projectService)
	cleanupController := controller.NewCleanupController(cleanupService, systemInfoService)
	healthController := controller.NewHealthController(readyChan)

	router := mux.NewRouter()
	router.HandleFunc("/api/analyze-immediately", security.Protect(analysisController.AnalyzeImmediately)).Methods(http.MethodPost)
	router.HandleFunc("/api/projects", security.Protect(projectController.ListProjects)).Methods(http.MethodGet)
	router.HandleFunc("/api/projects/{projectId}/analysis-status", security.Protect(projectController.GetAnalysisStatus)).Methods(http.MethodGet)
	router.HandleFunc("/api/projects/{projectId}/results", security.Protect(projectController.GetResults)).Methods(http.MethodGet)
	router.HandleFunc("/api/projects/{projectId}/results/export.csv", security.Protect(resultController.ExportResultsCsv)).Methods(http.MethodGet)
	router.HandleFunc("/api/projects/{projectId}/chart.png", security.Protect(resultController.GetScoreChart)).Methods(http.MethodGet)
	router.HandleFunc("/api/projects/{projectId}/scoring-rules", security.Protect(projectController.GetScoringRules)).Methods(http.MethodGet)
	router.HandleFunc("/api/projects/{projectId}/extract-scoring-rules", security.Protect(projectController.ExtractScoringRules)).Methods(http.MethodPost)
	router.HandleFunc("/api/projects/{projectId}/dynamic-summary", security.Protect(projectController.GetDynamicSummary)).Methods(http.MethodGet)
	router.HandleFunc("/api/projects/{projectId}/recalculate-price-scores", security.Protect(projectController.RecalculatePriceScores)).Methods(http.MethodPost)
	router.HandleFunc("/api/projects/{projectId}/bid-documents/{bidId}/failed-pages", security.Protect(projectController.GetFailedPages)).Methods(http.MethodGet)
	router.HandleFunc("/api/analysis-results/bulk-update-scores", security.Protect(resultController.BulkUpdateScores)).Methods(http.MethodPost)
	router.HandleFunc("/api/internal/test-data/{testId}", security.Protect(cleanupController.ClearTestData)).Methods(http.MethodDelete)

	router.HandleFunc("/live", healthController.HandleLiveRequest).Methods(http.MethodGet)
	router.HandleFunc("/ready", healthController.HandleReadyRequest).Methods(http.MethodGet)
	readyChan <- true
	close(readyChan)

	debug.SetGCPercent(30)

	srv := makeServer(systemInfoService, router)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("%v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop
	log.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Errorf("Failed to shutdown http server: %s", err)
	}
	if err := olricProvider.Shutdown(shutdownCtx); err != nil {
		log.Errorf("Failed to shutdown olric: %s", err)
	}
	if err := cp.Close(); err != nil {
		log.Errorf("Failed to close db connection: %s", err)
	}
}

func setLogLevel(level string) {
	lvl, err := log.ParseLevel(level)
	if err != nil {
		log.Warnf("Unknown log level %s, INFO is used", level)
		lvl = log.InfoLevel
	}
	log.SetLevel(lvl)
}

func makeFileStore(ctx context.Context, systemInfoService service.SystemInfoService) (storage.FileStore, error) {
	if systemInfoService.GetStorageType() == service.StorageTypeMinio {
		log.Infof("Uploads are stored in minio bucket %s", systemInfoService.GetMinioConfig().Bucket)
		return storage.NewMinioFileStore(ctx, systemInfoService.GetMinioConfig())
	}
	log.Infof("Uploads are stored in %s", systemInfoService.GetUploadsDir())
	return storage.NewFsFileStore(systemInfoService.GetUploadsDir())
}

func makeLLMClient(systemInfoService service.SystemInfoService) (client.LLMClient, error) {
	if systemInfoService.GetLLMProvider() == service.LLMProviderOpenai {
		return client.NewOpenaiClient(systemInfoService.GetOpenaiApiKey(), systemInfoService.GetOpenaiModel(), systemInfoService.GetOpenaiProxy())
	}
	return client.NewOllamaClient(systemInfoService.GetOllamaUrl(), systemInfoService.GetOllamaModel())
}

func makeServer(systemInfoService service.SystemInfoService, r *mux.Router) *http.Server {
	listenAddr := systemInfoService.GetListenAddress()

	log.Infof("Listen addr = %s", listenAddr)

	var corsOptions []handlers.CORSOption

	corsOptions = append(corsOptions, handlers.AllowedHeaders([]string{"Connection", "Accept-Encoding", "Content-Encoding", "X-Requested-With", "Content-Type", "Authorization", security.ApiKeyHeader}))

	allowedOrigin := systemInfoService.GetOriginAllowed()
	if allowedOrigin != "" {
		corsOptions = append(corsOptions, handlers.AllowedOrigins([]string{allowedOrigin}))
	}
	corsOptions = append(corsOptions, handlers.AllowedMethods([]string{"GET", "HEAD", "POST", "PUT", "DELETE", "OPTIONS"}))

	return &http.Server{
		Handler:      handlers.CompressHandler(handlers.CORS(corsOptions...)(r)),
		Addr:         listenAddr,
		WriteTimeout: 600 * time.Second,
		ReadTimeout:  120 * time.Second,
	}
}
