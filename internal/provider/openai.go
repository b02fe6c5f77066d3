package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"

	"github.com/rocketscienceinc/ultimate-tictactoe/internal/entity"
)

var (
	ErrAPIKeyMissing    = errors.New("API key missing")
	ErrModelMissing     = errors.New("model missing")
	ErrUnexpectedStatus = errors.New("unexpected response status")
	ErrEmptyReply       = errors.New("empty reply")
)

const (
	openAIDefaultBaseURL     = "https://api.openai.com/v1"
	openRouterDefaultBaseURL = "https://openrouter.ai/api/v1"
)

const openAIInstructions = `First, analyze the board and explain your strategic thinking.
Return only a plain JSON object (no markdown) with:
1. A "message" field explaining your thought process (keep it short)
2. A "move" field with {"boardIndex": <0-8>, "cellIndex": <0-8>}`

// OpenAIConfig - everything needed to talk to an OpenAI compatible chat completions API.
type OpenAIConfig struct {
	Kind            string
	APIKey          string
	Model           string
	BaseURL         string
	HeaderName      string
	HeaderPrefix    string
	Organization    string
	ReasoningEffort string
	MaxTokens       int
	ExtraHeaders    map[string]string
}

// ResolveOpenAIConfig - fills the config from the environment. kind is KindOpenAI or KindOpenRouter;
// non-empty model and baseURL win over the environment.
func ResolveOpenAIConfig(kind, model, baseURL string) (OpenAIConfig, error) {
	conf := OpenAIConfig{
		Kind:         kind,
		Model:        strings.TrimSpace(model),
		ExtraHeaders: map[string]string{},
	}

	openRouter := kind == KindOpenRouter

	if conf.Model == "" {
		if openRouter {
			conf.Model = firstNonEmpty(os.Getenv("OPENROUTER_MODEL"), os.Getenv("OPENAI_MODEL"))
		} else {
			conf.Model = firstNonEmpty(os.Getenv("OPENAI_MODEL"))
		}
	}
	if conf.Model == "" {
		return OpenAIConfig{}, fmt.Errorf("%w: set OPENAI_MODEL/OPENROUTER_MODEL or configure one", ErrModelMissing)
	}

	base := strings.TrimSpace(baseURL)
	if base == "" {
		if openRouter {
			base = firstNonEmpty(os.Getenv("OPENROUTER_API_BASE"), os.Getenv("OPENROUTER_BASE_URL"), openRouterDefaultBaseURL)
		} else {
			base = firstNonEmpty(os.Getenv("OPENAI_API_BASE"), os.Getenv("OPENAI_BASE_URL"), openAIDefaultBaseURL)
		}
	}
	conf.BaseURL = strings.TrimRight(base, "/")

	openAIKey := strings.TrimSpace(os.Getenv("OPENAI_API_KEY"))
	openRouterKey := strings.TrimSpace(os.Getenv("OPENROUTER_API_KEY"))
	if openRouter {
		conf.APIKey = firstNonEmpty(openRouterKey, openAIKey)
	} else {
		conf.APIKey = firstNonEmpty(openAIKey, openRouterKey)
	}
	if conf.APIKey == "" {
		return OpenAIConfig{}, fmt.Errorf("%w: set OPENAI_API_KEY or OPENROUTER_API_KEY", ErrAPIKeyMissing)
	}

	conf.HeaderName = firstNonEmpty(os.Getenv("OPENAI_API_KEY_HEADER"), os.Getenv("OPENROUTER_API_KEY_HEADER"), "Authorization")
	conf.HeaderPrefix = os.Getenv("OPENAI_API_KEY_PREFIX")
	if conf.HeaderPrefix == "" {
		conf.HeaderPrefix = os.Getenv("OPENROUTER_API_KEY_PREFIX")
	}
	if conf.HeaderName == "Authorization" && strings.TrimSpace(conf.HeaderPrefix) == "" {
		conf.HeaderPrefix = "Bearer "
	}

	conf.Organization = strings.TrimSpace(os.Getenv("OPENAI_ORG"))
	conf.ReasoningEffort = firstNonEmpty(os.Getenv("OPENAI_REASONING_EFFORT"), os.Getenv("OPENROUTER_REASONING_EFFORT"))

	if openRouter {
		if v := strings.TrimSpace(os.Getenv("OPENROUTER_SITE_URL")); v != "" {
			conf.ExtraHeaders["HTTP-Referer"] = v
		}
		if v := strings.TrimSpace(os.Getenv("OPENROUTER_TITLE")); v != "" {
			conf.ExtraHeaders["X-Title"] = v
		}
	}

	return conf, nil
}

// OpenAI asks a chat completions model for a JSON move.
type OpenAI struct {
	conf   OpenAIConfig
	client *http.Client
}

func NewOpenAI(conf OpenAIConfig, client *http.Client) *OpenAI {
	return &OpenAI{conf: conf, client: client}
}

func (that *OpenAI) Name() string {
	return that.conf.Kind + ":" + that.conf.Model
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model           string         `json:"model"`
	Messages        []chatMessage  `json:"messages"`
	ResponseFormat  map[string]any `json:"response_format"`
	MaxTokens       int            `json:"max_completion_tokens,omitempty"`
	ReasoningEffort string         `json:"reasoning_effort,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

func (that *OpenAI) Propose(ctx context.Context, observation entity.Observation) (entity.Proposal, error) {
	payload := chatRequest{
		Model: that.conf.Model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: buildPrompt(observation, openAIInstructions)},
		},
		ResponseFormat:  map[string]any{"type": "json_object"},
		MaxTokens:       that.conf.MaxTokens,
		ReasoningEffort: that.conf.ReasoningEffort,
	}

	headers := map[string]string{
		that.conf.HeaderName: that.conf.HeaderPrefix + that.conf.APIKey,
	}
	if that.conf.Organization != "" {
		headers["OpenAI-Organization"] = that.conf.Organization
	}
	for name, value := range that.conf.ExtraHeaders {
		headers[name] = value
	}

	var response chatResponse
	if err := postJSON(ctx, that.client, that.conf.BaseURL+"/chat/completions", headers, payload, &response); err != nil {
		return entity.Proposal{}, fmt.Errorf("%s: %w", that.conf.Kind, err)
	}

	if len(response.Choices) == 0 || strings.TrimSpace(response.Choices[0].Message.Content) == "" {
		return entity.Proposal{}, fmt.Errorf("%s: %w", that.conf.Kind, ErrEmptyReply)
	}

	return ParseReply(response.Choices[0].Message.Content)
}

func postJSON(ctx context.Context, client *http.Client, url string, headers map[string]string, payload, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	for name, value := range headers {
		req.Header.Set(name, value)
	}

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return fmt.Errorf("%w: http %d: %s", ErrUnexpectedStatus, resp.StatusCode, truncate(string(raw), 800))
	}

	if err = json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	return nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}

	return ""
}
