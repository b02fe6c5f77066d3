package provider

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/rocketscienceinc/ultimate-tictactoe/internal/entity"
)

var ErrUnparseableReply = errors.New("could not find a valid move in the reply")

var (
	codeFenceRegex    = regexp.MustCompile("```(?:json)?\\s*([\\s\\S]+?)\\s*```")
	bareKeyRegex      = regexp.MustCompile(`([{,]\s*)([A-Za-z_][A-Za-z0-9_ ]*?)\s*:`)
	singleQuotedRegex = regexp.MustCompile(`'([^'\\]*)'`)
	boardIndexRegex   = regexp.MustCompile(`["']?boardIndex["']?\s*:\s*["']?(\d+)(?:[^\d.]|$)`)
	cellIndexRegex    = regexp.MustCompile(`["']?cellIndex["']?\s*:\s*["']?(\d+)(?:[^\d.]|$)`)
	messageRegex      = regexp.MustCompile(`["'](?:message|strategic_message)["']\s*:\s*["']([^"']+)["']`)
)

var messageKeys = []string{"message", "strategic_message", "strategic message"}

// ParseReply - extracts a proposal from free-form model output.
//
// Tried in order: the JSON object inside an optional code fence, the same object with
// quotes normalised, and finally field-by-field pattern matching over the raw text.
func ParseReply(raw string) (entity.Proposal, error) {
	text := strings.TrimSpace(raw)
	if text == "" {
		return entity.Proposal{}, fmt.Errorf("%w: empty reply", ErrUnparseableReply)
	}

	if match := codeFenceRegex.FindStringSubmatch(text); match != nil {
		text = strings.TrimSpace(match[1])
	}

	object := extractJSONObject(text)
	if object != "" {
		if proposal, ok := decodeProposal(object); ok {
			return proposal, nil
		}

		if proposal, ok := decodeProposal(normaliseQuotes(object)); ok {
			return proposal, nil
		}
	}

	if proposal, ok := scanProposal(raw); ok {
		return proposal, nil
	}

	return entity.Proposal{}, fmt.Errorf("%w: %q", ErrUnparseableReply, truncate(raw, 200))
}

func extractJSONObject(text string) string {
	start := strings.Index(text, "{")
	if start < 0 {
		return ""
	}

	end := strings.LastIndex(text, "}")
	if end < start {
		return ""
	}

	return strings.TrimSpace(text[start : end+1])
}

func normaliseQuotes(object string) string {
	object = strings.NewReplacer("“", `"`, "”", `"`, "‘", "'", "’", "'", `\"`, `"`).Replace(object)
	object = singleQuotedRegex.ReplaceAllString(object, `"$1"`)

	return bareKeyRegex.ReplaceAllStringFunc(object, func(match string) string {
		parts := bareKeyRegex.FindStringSubmatch(match)
		return parts[1] + strconv.Quote(strings.TrimSpace(parts[2])) + ":"
	})
}

func decodeProposal(object string) (entity.Proposal, bool) {
	var fields map[string]any
	if err := json.Unmarshal([]byte(object), &fields); err != nil {
		return entity.Proposal{}, false
	}

	source := fields
	if move, ok := fields["move"].(map[string]any); ok {
		source = move
	}

	board, ok := coerceIndex(source["boardIndex"])
	if !ok {
		return entity.Proposal{}, false
	}

	cell, ok := coerceIndex(source["cellIndex"])
	if !ok {
		return entity.Proposal{}, false
	}

	proposal := entity.Proposal{BoardIndex: board, CellIndex: cell}
	for _, key := range messageKeys {
		if message, ok := fields[key].(string); ok && strings.TrimSpace(message) != "" {
			proposal.Annotation = strings.TrimSpace(message)
			break
		}
	}

	return proposal, true
}

func coerceIndex(value any) (int, bool) {
	switch typed := value.(type) {
	case float64:
		if typed != math.Trunc(typed) {
			return 0, false
		}

		return int(typed), true
	case string:
		n, err := strconv.Atoi(strings.TrimSpace(typed))
		if err != nil {
			return 0, false
		}

		return n, true
	default:
		return 0, false
	}
}

func scanProposal(text string) (entity.Proposal, bool) {
	boardMatch := boardIndexRegex.FindStringSubmatch(text)
	cellMatch := cellIndexRegex.FindStringSubmatch(text)
	if boardMatch == nil || cellMatch == nil {
		return entity.Proposal{}, false
	}

	board, err := strconv.Atoi(boardMatch[1])
	if err != nil {
		return entity.Proposal{}, false
	}

	cell, err := strconv.Atoi(cellMatch[1])
	if err != nil {
		return entity.Proposal{}, false
	}

	proposal := entity.Proposal{BoardIndex: board, CellIndex: cell}
	if match := messageRegex.FindStringSubmatch(text); match != nil {
		proposal.Annotation = match[1]
	}

	return proposal, true
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}

	if n <= 3 {
		return s[:n]
	}

	return s[:n-3] + "..."
}
