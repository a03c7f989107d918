package client

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/Netcracker/qubership-bid-evaluation-service/view"
	"github.com/invopop/jsonschema"
	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	log "github.com/sirupsen/logrus"
)

func NewOpenaiClient(apiKey string, model string, proxy string) (LLMClient, error) {

	var opts []option.RequestOption
	if apiKey != "" {
		opts = append(opts, option.WithAPIKey(apiKey))
	} else {
		return nil, errors.New("openai: api key is required")
	}

	if proxy != "" {
		opts = append(opts, option.WithBaseURL(proxy))
	}

	var openAIModel openai.ChatModel
	if model != "" {
		openAIModel = model
	} else {
		openAIModel = openai.ChatModelGPT5
	}

	tr := http.Transport{
		TLSClientConfig:       &tls.Config{InsecureSkipVerify: true},
		TLSHandshakeTimeout:   time.Second * 60,
		IdleConnTimeout:       time.Second * 600,
		ResponseHeaderTimeout: time.Second * 600,
		ExpectContinueTimeout: time.Second * 60,
	}
	cl := http.Client{Transport: &tr, Timeout: time.Second * 600}

	opts = append(opts, option.WithHTTPClient(&cl))

	return &oaiClientImpl{
		client: openai.NewClient(opts...),
		model:  openAIModel,
	}, nil
}

type oaiClientImpl struct {
	client openai.Client
	model  openai.ChatModel
}

var llmScoreResponseSchema = GenerateSchema[view.LLMScore]()
var llmBidderNameResponseSchema = GenerateSchema[view.LLMBidderName]()
var llmRulesResponseSchema = GenerateSchema[view.LLMRules]()

func (l oaiClientImpl) ScoreCriterion(ctx context.Context, req view.CriterionRequest) (string, error) {
	start := time.Now()
	messages := []openai.ChatCompletionMessageParamUnion{
		openai.SystemMessage(scoringSystemPrompt),
		openai.UserMessage(buildScorePrompt(req)),
	}

	content, err := l.complete(ctx, messages, "criterion_score", llmScoreResponseSchema)
	log.Debugf("Criterion '%s' scored with openai client, it took %dms", req.CriteriaName, time.Since(start).Milliseconds())
	if err != nil {
		return "", err
	}
	return content, nil
}

func (l oaiClientImpl) ExtractBidderName(ctx context.Context, text string) (string, error) {
	messages := []openai.ChatCompletionMessageParamUnion{
		openai.SystemMessage(bidderNamePrompt),
		openai.UserMessage(text),
	}
	content, err := l.complete(ctx, messages, "bidder_name", llmBidderNameResponseSchema)
	if err != nil {
		return "", err
	}

	var result view.LLMBidderName
	err = json.Unmarshal([]byte(content), &result)
	if err != nil {
		return "", err
	}
	name := strings.TrimSpace(result.Name)
	if name == bidderNameNotFound {
		return "", nil
	}
	return name, nil
}

func (l oaiClientImpl) ExtractScoringRules(ctx context.Context, text string) ([]view.RuleDraft, error) {
	start := time.Now()
	messages := []openai.ChatCompletionMessageParamUnion{
		openai.SystemMessage(scoringRulesPrompt),
		openai.UserMessage(truncateRunes(text, maxRulesTextChars)),
	}

	log.Infof("run scoring rules extraction with openai client")
	content, err := l.complete(ctx, messages, "scoring_rules", llmRulesResponseSchema)
	log.Infof("finished scoring rules extraction with openai client, it took %dms", time.Since(start).Milliseconds())
	if err != nil {
		return nil, err
	}

	var result view.LLMRules
	err = json.Unmarshal([]byte(content), &result)
	if err != nil {
		return nil, err
	}
	return ruleTree(result.Rules), nil
}

func (l oaiClientImpl) GetModel() string {
	return l.model
}

func (l oaiClientImpl) complete(ctx context.Context, messages []openai.ChatCompletionMessageParamUnion, name string, schema interface{}) (string, error) {
	schemaParam := openai.ResponseFormatJSONSchemaJSONSchemaParam{
		Name:   name,
		Schema: schema,
		Strict: openai.Bool(true),
	}

	chat, err := l.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Messages: messages,
		ResponseFormat: openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONSchema: &openai.ResponseFormatJSONSchemaParam{JSONSchema: schemaParam},
		},
		Model: l.model,
	})
	if err != nil {
		return "", err
	}
	if len(chat.Choices) == 0 {
		return "", errors.New("openai: empty response")
	}
	return chat.Choices[0].Message.Content, nil
}

func GenerateSchema[T any]() interface{} {
	reflector := jsonschema.Reflector{
		AllowAdditionalProperties: false,
		DoNotReference:            true,
	}
	var v T
	schema := reflector.Reflect(v)
	return schema
}
