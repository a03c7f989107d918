package client

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/Netcracker/qubership-bid-evaluation-service/view"
	log "github.com/sirupsen/logrus"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/ollama"
)

const ollamaRetries = 3
const ollamaRetryDelay = 5 * time.Second

func NewOllamaClient(serverUrl string, model string) (LLMClient, error) {
	llm, err := ollama.New(ollama.WithModel(model), ollama.WithServerURL(serverUrl))
	if err != nil {
		return nil, fmt.Errorf("ollama: failed to create client: %w", err)
	}
	return &ollamaClientImpl{llm: llm, model: model}, nil
}

type ollamaClientImpl struct {
	llm   llms.Model
	model string
}

func (o ollamaClientImpl) ScoreCriterion(ctx context.Context, req view.CriterionRequest) (string, error) {
	prompt := scoringSystemPrompt + "\n\n" + buildScorePrompt(req)
	return o.generate(ctx, prompt, 0.1)
}

func (o ollamaClientImpl) ExtractBidderName(ctx context.Context, text string) (string, error) {
	answer, err := o.generate(ctx, bidderNamePrompt+"\n\n投标文件内容：\n"+text, 0)
	if err != nil {
		return "", err
	}
	name := strings.Trim(strings.TrimSpace(answer), "\"'“”")
	if name == "" || strings.Contains(name, bidderNameNotFound) {
		return "", nil
	}
	if line, _, found := strings.Cut(name, "\n"); found {
		name = strings.TrimSpace(line)
	}
	return name, nil
}

func (o ollamaClientImpl) ExtractScoringRules(ctx context.Context, text string) ([]view.RuleDraft, error) {
	start := time.Now()
	answer, err := o.generate(ctx, scoringRulesPrompt+"\n\n招标文件内容：\n"+truncateRunes(text, maxRulesTextChars), 0)
	log.Infof("finished scoring rules extraction with ollama, it took %dms", time.Since(start).Milliseconds())
	if err != nil {
		return nil, err
	}
	obj, ok := jsonObject(answer)
	if !ok {
		return nil, fmt.Errorf("ollama: no JSON object in rules answer")
	}
	var result view.LLMRules
	if err = json.Unmarshal([]byte(obj), &result); err != nil {
		return nil, fmt.Errorf("ollama: failed to parse rules answer: %w", err)
	}
	return ruleTree(result.Rules), nil
}

func (o ollamaClientImpl) GetModel() string {
	return o.model
}

func (o ollamaClientImpl) generate(ctx context.Context, prompt string, temperature float64) (string, error) {
	var lastErr error
	for attempt := 1; attempt <= ollamaRetries; attempt++ {
		answer, err := llms.GenerateFromSinglePrompt(ctx, o.llm, prompt, llms.WithTemperature(temperature))
		if err == nil {
			return answer, nil
		}
		lastErr = err
		log.Warnf("Ollama request failed (attempt %d/%d): %s", attempt, ollamaRetries, err)
		if attempt == ollamaRetries {
			break
		}
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(ollamaRetryDelay):
		}
	}
	return "", lastErr
}
