package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strings"

	"github.com/rocketscienceinc/ultimate-tictactoe/internal/entity"
)

const (
	anthropicDefaultBaseURL   = "https://api.anthropic.com/v1"
	anthropicDefaultModel     = "claude-3-7-sonnet-20250219"
	anthropicVersion          = "2023-06-01"
	anthropicDefaultMaxTokens = 2048
	makeMoveTool              = "make_move"
)

const anthropicInstructions = "Analyze the board carefully, then use the make_move tool to submit your move."

type AnthropicConfig struct {
	APIKey    string
	Model     string
	BaseURL   string
	MaxTokens int
}

// ResolveAnthropicConfig - ANTHROPIC_API_KEY (or CLAUDE_API_KEY) is required, the rest has defaults.
func ResolveAnthropicConfig(model, baseURL string) (AnthropicConfig, error) {
	conf := AnthropicConfig{
		APIKey:    firstNonEmpty(os.Getenv("ANTHROPIC_API_KEY"), os.Getenv("CLAUDE_API_KEY")),
		Model:     firstNonEmpty(model, os.Getenv("ANTHROPIC_MODEL"), anthropicDefaultModel),
		BaseURL:   strings.TrimRight(firstNonEmpty(baseURL, os.Getenv("ANTHROPIC_BASE_URL"), anthropicDefaultBaseURL), "/"),
		MaxTokens: anthropicDefaultMaxTokens,
	}

	if conf.APIKey == "" {
		return AnthropicConfig{}, fmt.Errorf("%w: set ANTHROPIC_API_KEY", ErrAPIKeyMissing)
	}

	return conf, nil
}

// Anthropic asks a Claude model to call the make_move tool.
type Anthropic struct {
	conf   AnthropicConfig
	client *http.Client
}

func NewAnthropic(conf AnthropicConfig, client *http.Client) *Anthropic {
	return &Anthropic{conf: conf, client: client}
}

func (that *Anthropic) Name() string {
	return KindAnthropic + ":" + that.conf.Model
}

type anthropicTool struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	InputSchema map[string]any `json:"input_schema"`
}

type anthropicRequest struct {
	Model     string          `json:"model"`
	MaxTokens int             `json:"max_tokens"`
	System    string          `json:"system"`
	Tools     []anthropicTool `json:"tools"`
	Messages  []chatMessage   `json:"messages"`
}

type anthropicBlock struct {
	Type  string          `json:"type"`
	Name  string          `json:"name,omitempty"`
	Input json.RawMessage `json:"input,omitempty"`
	Text  string          `json:"text,omitempty"`
}

type anthropicResponse struct {
	Content []anthropicBlock `json:"content"`
}

type makeMoveInput struct {
	Message    string `json:"message"`
	BoardIndex *int   `json:"boardIndex"`
	CellIndex  *int   `json:"cellIndex"`
}

var makeMoveSchema = map[string]any{
	"type": "object",
	"properties": map[string]any{
		"message": map[string]any{
			"type":        "string",
			"description": "A short message explaining your strategic thinking for this move",
		},
		"boardIndex": map[string]any{
			"type":        "integer",
			"description": "The index of the board (0-8) where you want to make your move",
		},
		"cellIndex": map[string]any{
			"type":        "integer",
			"description": "The index of the cell (0-8) within the selected board where you want to make your move",
		},
	},
	"required": []string{"message", "boardIndex", "cellIndex"},
}

func (that *Anthropic) Propose(ctx context.Context, observation entity.Observation) (entity.Proposal, error) {
	payload := anthropicRequest{
		Model:     that.conf.Model,
		MaxTokens: that.conf.MaxTokens,
		System:    systemPrompt,
		Tools: []anthropicTool{{
			Name:        makeMoveTool,
			Description: "Make a move in the Ultimate Tic-Tac-Toe game with a short strategic message and the board and cell indices.",
			InputSchema: makeMoveSchema,
		}},
		Messages: []chatMessage{
			{Role: "user", Content: buildPrompt(observation, anthropicInstructions)},
		},
	}

	headers := map[string]string{
		"x-api-key":         that.conf.APIKey,
		"anthropic-version": anthropicVersion,
	}

	var response anthropicResponse
	if err := postJSON(ctx, that.client, that.conf.BaseURL+"/messages", headers, payload, &response); err != nil {
		return entity.Proposal{}, fmt.Errorf("%s: %w", KindAnthropic, err)
	}

	if len(response.Content) == 0 {
		return entity.Proposal{}, fmt.Errorf("%s: %w", KindAnthropic, ErrEmptyReply)
	}

	return proposalFromBlocks(response.Content)
}

// proposalFromBlocks - a complete make_move call wins; otherwise the first text block is parsed.
func proposalFromBlocks(blocks []anthropicBlock) (entity.Proposal, error) {
	for _, block := range blocks {
		if block.Type != "tool_use" || block.Name != makeMoveTool {
			continue
		}

		var input makeMoveInput
		if err := json.Unmarshal(block.Input, &input); err != nil {
			continue
		}

		if input.BoardIndex != nil && input.CellIndex != nil {
			return entity.Proposal{
				BoardIndex: *input.BoardIndex,
				CellIndex:  *input.CellIndex,
				Annotation: strings.TrimSpace(input.Message),
			}, nil
		}
	}

	for _, block := range blocks {
		if block.Type == "text" && strings.TrimSpace(block.Text) != "" {
			return ParseReply(block.Text)
		}
	}

	return entity.Proposal{}, fmt.Errorf("%w: no make_move call or text in reply", ErrUnparseableReply)
}
