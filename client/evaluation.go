package client

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/Netcracker/qubership-bid-evaluation-service/exception"
	"github.com/Netcracker/qubership-bid-evaluation-service/view"
	"gopkg.in/resty.v1"
)

// ErrNotFound is returned when the server answers 404. For status and results it means "not ready yet".
var ErrNotFound = errors.New("not found")

type EvaluationClient interface {
	Analyze(ctx context.Context, tenderFile string, bidFiles []string) (int64, error)
	GetAnalysisStatus(ctx context.Context, projectId int64) (*view.AnalysisStatus, error)
	GetResults(ctx context.Context, projectId int64) ([]view.AnalysisResult, error)
	GetScoringRules(ctx context.Context, projectId int64) ([]view.ScoringRule, error)
	GetDynamicSummary(ctx context.Context, projectId int64) (*view.DynamicSummary, error)
	ListProjects(ctx context.Context) ([]view.Project, error)
	GetFailedPages(ctx context.Context, projectId int64, bidId int64) (*view.FailedPages, error)
	RecalculatePriceScores(ctx context.Context, projectId int64) (*view.RecalculateResponse, error)
	ExtractScoringRules(ctx context.Context, projectId int64) (*view.ExtractRulesResponse, error)
	BulkUpdateScores(ctx context.Context, updates []view.ScoreUpdate) (*view.UpdateCountResponse, error)
	DownloadChart(ctx context.Context, projectId int64, w io.Writer) error
	DownloadResultsCsv(ctx context.Context, projectId int64, w io.Writer) error
}

type ClientCredentials struct {
	ApiKey   string
	Username string
	Password string
}

func NewEvaluationClient(serverUrl string, creds ClientCredentials) EvaluationClient {
	tr := http.Transport{TLSClientConfig: &tls.Config{InsecureSkipVerify: true}}
	cl := http.Client{Transport: &tr, Timeout: time.Second * 300}
	return &evaluationClientImpl{
		serverUrl: strings.TrimRight(serverUrl, "/"),
		creds:     creds,
		client:    resty.NewWithClient(&cl),
	}
}

type evaluationClientImpl struct {
	serverUrl string
	creds     ClientCredentials
	client    *resty.Client
}

func (e evaluationClientImpl) Analyze(ctx context.Context, tenderFile string, bidFiles []string) (int64, error) {
	req := e.makeRequest(ctx)

	var files []*os.File
	defer func() {
		for _, f := range files {
			_ = f.Close()
		}
	}()
	attach := func(param string, path string) error {
		f, err := os.Open(path)
		if err != nil {
			return err
		}
		files = append(files, f)
		req.SetFileReader(param, filepath.Base(path), f)
		return nil
	}
	if err := attach("tender_file", tenderFile); err != nil {
		return 0, err
	}
	for _, bid := range bidFiles {
		if err := attach("bid_files", bid); err != nil {
			return 0, err
		}
	}

	resp, err := req.Post(e.serverUrl + "/api/analyze-immediately")
	if err != nil {
		return 0, fmt.Errorf("failed to upload files: %w", err)
	}
	var result view.AnalyzeResponse
	if err = decodeResponse(resp, &result); err != nil {
		return 0, err
	}
	return result.ProjectId, nil
}

func (e evaluationClientImpl) GetAnalysisStatus(ctx context.Context, projectId int64) (*view.AnalysisStatus, error) {
	var result view.AnalysisStatus
	if err := e.get(ctx, fmt.Sprintf("/api/projects/%d/analysis-status", projectId), &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (e evaluationClientImpl) GetResults(ctx context.Context, projectId int64) ([]view.AnalysisResult, error) {
	var result []view.AnalysisResult
	if err := e.get(ctx, fmt.Sprintf("/api/projects/%d/results", projectId), &result); err != nil {
		return nil, err
	}
	return result, nil
}

func (e evaluationClientImpl) GetScoringRules(ctx context.Context, projectId int64) ([]view.ScoringRule, error) {
	var result []view.ScoringRule
	if err := e.get(ctx, fmt.Sprintf("/api/projects/%d/scoring-rules", projectId), &result); err != nil {
		return nil, err
	}
	return result, nil
}

func (e evaluationClientImpl) GetDynamicSummary(ctx context.Context, projectId int64) (*view.DynamicSummary, error) {
	var result view.DynamicSummary
	if err := e.get(ctx, fmt.Sprintf("/api/projects/%d/dynamic-summary", projectId), &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (e evaluationClientImpl) ListProjects(ctx context.Context) ([]view.Project, error) {
	var result []view.Project
	if err := e.get(ctx, "/api/projects", &result); err != nil {
		return nil, err
	}
	return result, nil
}

func (e evaluationClientImpl) GetFailedPages(ctx context.Context, projectId int64, bidId int64) (*view.FailedPages, error) {
	var result view.FailedPages
	if err := e.get(ctx, fmt.Sprintf("/api/projects/%d/bid-documents/%d/failed-pages", projectId, bidId), &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (e evaluationClientImpl) RecalculatePriceScores(ctx context.Context, projectId int64) (*view.RecalculateResponse, error) {
	resp, err := e.makeRequest(ctx).Post(fmt.Sprintf("%s/api/projects/%d/recalculate-price-scores", e.serverUrl, projectId))
	if err != nil {
		return nil, err
	}
	var result view.RecalculateResponse
	if err = decodeResponse(resp, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (e evaluationClientImpl) ExtractScoringRules(ctx context.Context, projectId int64) (*view.ExtractRulesResponse, error) {
	resp, err := e.makeRequest(ctx).Post(fmt.Sprintf("%s/api/projects/%d/extract-scoring-rules", e.serverUrl, projectId))
	if err != nil {
		return nil, err
	}
	var result view.ExtractRulesResponse
	if err = decodeResponse(resp, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (e evaluationClientImpl) BulkUpdateScores(ctx context.Context, updates []view.ScoreUpdate) (*view.UpdateCountResponse, error) {
	req := e.makeRequest(ctx)
	req.SetHeader("Content-Type", "application/json")
	req.SetBody(updates)
	resp, err := req.Post(e.serverUrl + "/api/analysis-results/bulk-update-scores")
	if err != nil {
		return nil, err
	}
	var result view.UpdateCountResponse
	if err = decodeResponse(resp, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (e evaluationClientImpl) DownloadChart(ctx context.Context, projectId int64, w io.Writer) error {
	return e.download(ctx, fmt.Sprintf("/api/projects/%d/chart.png", projectId), w)
}

func (e evaluationClientImpl) DownloadResultsCsv(ctx context.Context, projectId int64, w io.Writer) error {
	return e.download(ctx, fmt.Sprintf("/api/projects/%d/results/export.csv", projectId), w)
}

func (e evaluationClientImpl) download(ctx context.Context, path string, w io.Writer) error {
	resp, err := e.makeRequest(ctx).Get(e.serverUrl + path)
	if err != nil {
		return err
	}
	if err = checkResponse(resp); err != nil {
		return err
	}
	_, err = w.Write(resp.Body())
	return err
}

func (e evaluationClientImpl) get(ctx context.Context, path string, result interface{}) error {
	resp, err := e.makeRequest(ctx).Get(e.serverUrl + path)
	if err != nil {
		return err
	}
	return decodeResponse(resp, result)
}

func (e evaluationClientImpl) makeRequest(ctx context.Context) *resty.Request {
	req := e.client.R()
	req.SetContext(ctx)
	if e.creds.ApiKey != "" {
		req.SetHeader("api-key", e.creds.ApiKey)
	} else if e.creds.Username != "" {
		req.SetBasicAuth(e.creds.Username, e.creds.Password)
	}
	return req
}

func decodeResponse(resp *resty.Response, result interface{}) error {
	if err := checkResponse(resp); err != nil {
		return err
	}
	return json.Unmarshal(resp.Body(), result)
}

func checkResponse(resp *resty.Response) error {
	if resp.StatusCode() == http.StatusOK {
		return nil
	}
	if resp.StatusCode() == http.StatusNotFound {
		return ErrNotFound
	}
	if len(resp.Body()) > 0 {
		var customErr exception.CustomError
		if jsonErr := json.Unmarshal(resp.Body(), &customErr); jsonErr == nil && customErr.Message != "" {
			return &customErr
		}
	}
	return fmt.Errorf("unexpected status code %d: %s", resp.StatusCode(), string(resp.Body()))
}
