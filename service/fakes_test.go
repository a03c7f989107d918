package service

import (
	"context"
	"sync"

	"github.com/Netcracker/qubership-bid-evaluation-service/view"
)

type fakeLLM struct {
	mu sync.Mutex

	bidderName    string
	bidderNameErr error
	rules         []view.RuleDraft
	rulesErr      error

	// score returns the raw answer for a criterion, nil means a fixed answer of 1 point
	score    func(req view.CriterionRequest) (string, error)
	requests []view.CriterionRequest
}

func (f *fakeLLM) ScoreCriterion(ctx context.Context, req view.CriterionRequest) (string, error) {
	f.mu.Lock()
	f.requests = append(f.requests, req)
	f.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if f.score != nil {
		return f.score(req)
	}
	return `{"score": 1, "reason": "ok"}`, nil
}

func (f *fakeLLM) ExtractBidderName(ctx context.Context, text string) (string, error) {
	return f.bidderName, f.bidderNameErr
}

func (f *fakeLLM) ExtractScoringRules(ctx context.Context, text string) ([]view.RuleDraft, error) {
	return f.rules, f.rulesErr
}

func (f *fakeLLM) GetModel() string {
	return "fake-model"
}

func (f *fakeLLM) scoredCriteria() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	names := make([]string, 0, len(f.requests))
	for _, r := range f.requests {
		names = append(names, r.CriteriaName)
	}
	return names
}
