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
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/Netcracker/qubership-bid-evaluation-service/storage"
	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"
)

const (
	LISTEN_ADDRESS        = "LISTEN_ADDRESS"
	ORIGIN_ALLOWED        = "ORIGIN_ALLOWED"
	LOG_LEVEL             = "LOG_LEVEL"
	PRODUCTION_MODE       = "PRODUCTION_MODE"
	DB_HOST               = "DB_HOST"
	DB_PORT               = "DB_PORT"
	DB_USER               = "DB_USER"
	DB_PASSWORD           = "DB_PASSWORD"
	DB_NAME               = "DB_NAME"
	STORAGE_TYPE          = "STORAGE_TYPE"
	UPLOADS_DIR           = "UPLOADS_DIR"
	MINIO_ENDPOINT        = "MINIO_ENDPOINT"
	MINIO_ACCESS_KEY      = "MINIO_ACCESS_KEY"
	MINIO_SECRET_KEY      = "MINIO_SECRET_KEY"
	MINIO_BUCKET          = "MINIO_BUCKET"
	MINIO_USE_SSL         = "MINIO_USE_SSL"
	LLM_PROVIDER          = "LLM_PROVIDER"
	OPENAI_API_KEY        = "OPENAI_API_KEY"
	OPENAI_MODEL          = "OPENAI_MODEL"
	OPENAI_PROXY          = "OPENAI_PROXY"
	OLLAMA_URL            = "OLLAMA_URL"
	OLLAMA_MODEL          = "OLLAMA_MODEL"
	OLRIC_DISCOVERY_MODE  = "OLRIC_DISCOVERY_MODE"
	OLRIC_REPLICA_COUNT   = "OLRIC_REPLICA_COUNT"
	NAMESPACE             = "NAMESPACE"
	API_KEYS              = "API_KEYS"
	BASIC_AUTH_USERS      = "BASIC_AUTH_USERS"
	RUNTIME_SETTINGS_FILE = "RUNTIME_SETTINGS_FILE"
)

const (
	StorageTypeFs    = "fs"
	StorageTypeMinio = "minio"

	LLMProviderOpenai = "openai"
	LLMProviderOllama = "ollama"

	DefaultOllamaModel = "qwen3:30b-a3b-instruct-2507-q4_K_M"
	DefaultOllamaUrl   = "http://localhost:11434"
)

type SystemInfoService interface {
	Init() error
	GetListenAddress() string
	GetOriginAllowed() string
	GetLogLevel() string
	IsProductionMode() bool
	GetDbHost() string
	GetDbPort() int
	GetDbUser() string
	GetDbPassword() string
	GetDbName() string
	GetStorageType() string
	GetUploadsDir() string
	GetMinioConfig() storage.MinioConfig
	GetLLMProvider() string
	GetOpenaiApiKey() string
	GetOpenaiModel() string
	GetOpenaiProxy() string
	GetOllamaUrl() string
	GetOllamaModel() string
	GetOlricDiscoveryMode() string
	GetOlricReplicaCount() int
	GetNamespace() string
	GetApiKeys() map[string]string
	GetBasicAuthUsers() map[string]string
	GetRuntimeSettingsFile() string
}

func NewSystemInfoService() (SystemInfoService, error) {
	if err := godotenv.Load(); err != nil {
		log.Debugf("No .env file loaded: %s", err)
	}
	s := &systemInfoServiceImpl{
		systemInfoMap: make(map[string]interface{})}
	if err := s.Init(); err != nil {
		log.Error("Failed to read system info: " + err.Error())
		return nil, err
	}
	return s, nil
}

type systemInfoServiceImpl struct {
	systemInfoMap map[string]interface{}
}

func (g systemInfoServiceImpl) Init() error {
	g.setString(LISTEN_ADDRESS, ":8080")
	g.setString(ORIGIN_ALLOWED, "")
	g.setString(LOG_LEVEL, "INFO")
	g.systemInfoMap[PRODUCTION_MODE] = strings.EqualFold(os.Getenv(PRODUCTION_MODE), "true")

	g.setString(DB_HOST, "localhost")
	if err := g.setInt(DB_PORT, 5432); err != nil {
		return err
	}
	g.setString(DB_USER, "postgres")
	g.setString(DB_PASSWORD, "")
	g.setString(DB_NAME, "bid_evaluation")

	g.setString(STORAGE_TYPE, StorageTypeFs)
	storageType := g.GetStorageType()
	if storageType != StorageTypeFs && storageType != StorageTypeMinio {
		return fmt.Errorf("%s has unsupported value '%s'", STORAGE_TYPE, storageType)
	}
	g.setString(UPLOADS_DIR, "uploads")
	g.setMinioConfig()
	if storageType == StorageTypeMinio && g.GetMinioConfig().Endpoint == "" {
		return fmt.Errorf("%s is required for minio storage", MINIO_ENDPOINT)
	}

	g.setString(LLM_PROVIDER, LLMProviderOllama)
	provider := g.GetLLMProvider()
	if provider != LLMProviderOpenai && provider != LLMProviderOllama {
		return fmt.Errorf("%s has unsupported value '%s'", LLM_PROVIDER, provider)
	}
	g.setString(OPENAI_API_KEY, "")
	g.setString(OPENAI_MODEL, "")
	g.setString(OPENAI_PROXY, "")
	g.setString(OLLAMA_URL, DefaultOllamaUrl)
	g.setString(OLLAMA_MODEL, DefaultOllamaModel)

	g.setString(OLRIC_DISCOVERY_MODE, "local")
	if err := g.setInt(OLRIC_REPLICA_COUNT, 1); err != nil {
		return err
	}
	g.setString(NAMESPACE, "")

	apiKeys, err := parsePairs(os.Getenv(API_KEYS))
	if err != nil {
		return fmt.Errorf("%s: %w", API_KEYS, err)
	}
	g.systemInfoMap[API_KEYS] = apiKeys
	users, err := parsePairs(os.Getenv(BASIC_AUTH_USERS))
	if err != nil {
		return fmt.Errorf("%s: %w", BASIC_AUTH_USERS, err)
	}
	g.systemInfoMap[BASIC_AUTH_USERS] = users

	g.setString(RUNTIME_SETTINGS_FILE, "runtime_settings.yaml")
	return nil
}

func (g systemInfoServiceImpl) setString(key string, def string) {
	val := os.Getenv(key)
	if val == "" {
		val = def
	}
	g.systemInfoMap[key] = val
}

func (g systemInfoServiceImpl) setInt(key string, def int) error {
	str := os.Getenv(key)
	if str == "" {
		g.systemInfoMap[key] = def
		return nil
	}
	val, err := strconv.Atoi(str)
	if err != nil {
		return fmt.Errorf("%s must be an integer: %w", key, err)
	}
	g.systemInfoMap[key] = val
	return nil
}

func (g systemInfoServiceImpl) setMinioConfig() {
	g.systemInfoMap[MINIO_ENDPOINT] = storage.MinioConfig{
		Endpoint:  os.Getenv(MINIO_ENDPOINT),
		AccessKey: os.Getenv(MINIO_ACCESS_KEY),
		SecretKey: os.Getenv(MINIO_SECRET_KEY),
		Bucket:    valueOrDefault(os.Getenv(MINIO_BUCKET), "bid-documents"),
		UseSSL:    strings.EqualFold(os.Getenv(MINIO_USE_SSL), "true"),
	}
}

// parsePairs reads "name:value,name2:value2".
func parsePairs(str string) (map[string]string, error) {
	result := make(map[string]string)
	if strings.TrimSpace(str) == "" {
		return result, nil
	}
	for _, pair := range strings.Split(str, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		name, value, found := strings.Cut(pair, ":")
		if !found || name == "" || value == "" {
			return nil, fmt.Errorf("invalid entry '%s', expected name:value", pair)
		}
		result[name] = value
	}
	return result, nil
}

func valueOrDefault(val string, def string) string {
	if val == "" {
		return def
	}
	return val
}

func (g systemInfoServiceImpl) GetListenAddress() string {
	return g.systemInfoMap[LISTEN_ADDRESS].(string)
}

func (g systemInfoServiceImpl) GetOriginAllowed() string {
	return g.systemInfoMap[ORIGIN_ALLOWED].(string)
}

func (g systemInfoServiceImpl) GetLogLevel() string {
	return g.systemInfoMap[LOG_LEVEL].(string)
}

func (g systemInfoServiceImpl) IsProductionMode() bool {
	return g.systemInfoMap[PRODUCTION_MODE].(bool)
}

func (g systemInfoServiceImpl) GetDbHost() string {
	return g.systemInfoMap[DB_HOST].(string)
}

func (g systemInfoServiceImpl) GetDbPort() int {
	return g.systemInfoMap[DB_PORT].(int)
}

func (g systemInfoServiceImpl) GetDbUser() string {
	return g.systemInfoMap[DB_USER].(string)
}

func (g systemInfoServiceImpl) GetDbPassword() string {
	return g.systemInfoMap[DB_PASSWORD].(string)
}

func (g systemInfoServiceImpl) GetDbName() string {
	return g.systemInfoMap[DB_NAME].(string)
}

func (g systemInfoServiceImpl) GetStorageType() string {
	return g.systemInfoMap[STORAGE_TYPE].(string)
}

func (g systemInfoServiceImpl) GetUploadsDir() string {
	return g.systemInfoMap[UPLOADS_DIR].(string)
}

func (g systemInfoServiceImpl) GetMinioConfig() storage.MinioConfig {
	return g.systemInfoMap[MINIO_ENDPOINT].(storage.MinioConfig)
}

func (g systemInfoServiceImpl) GetLLMProvider() string {
	return g.systemInfoMap[LLM_PROVIDER].(string)
}

func (g systemInfoServiceImpl) GetOpenaiApiKey() string {
	return g.systemInfoMap[OPENAI_API_KEY].(string)
}

func (g systemInfoServiceImpl) GetOpenaiModel() string {
	return g.systemInfoMap[OPENAI_MODEL].(string)
}

func (g systemInfoServiceImpl) GetOpenaiProxy() string {
	return g.systemInfoMap[OPENAI_PROXY].(string)
}

func (g systemInfoServiceImpl) GetOllamaUrl() string {
	return g.systemInfoMap[OLLAMA_URL].(string)
}

func (g systemInfoServiceImpl) GetOllamaModel() string {
	return g.systemInfoMap[OLLAMA_MODEL].(string)
}

func (g systemInfoServiceImpl) GetOlricDiscoveryMode() string {
	return g.systemInfoMap[OLRIC_DISCOVERY_MODE].(string)
}

func (g systemInfoServiceImpl) GetOlricReplicaCount() int {
	return g.systemInfoMap[OLRIC_REPLICA_COUNT].(int)
}

func (g systemInfoServiceImpl) GetNamespace() string {
	return g.systemInfoMap[NAMESPACE].(string)
}

func (g systemInfoServiceImpl) GetApiKeys() map[string]string {
	return g.systemInfoMap[API_KEYS].(map[string]string)
}

func (g systemInfoServiceImpl) GetBasicAuthUsers() map[string]string {
	return g.systemInfoMap[BASIC_AUTH_USERS].(map[string]string)
}

func (g systemInfoServiceImpl) GetRuntimeSettingsFile() string {
	return g.systemInfoMap[RUNTIME_SETTINGS_FILE].(string)
}
