// Package reply turns raw Keeper completions into structured turns.
//
// Two reply dialects are understood. The preferred one is a single JSON object
//
//	{"narration": "...", "choices": ["...", "..."]}
//
// optionally wrapped in Markdown fences or surrounded by prose. The legacy one is plain text with a
// NARRATION: section followed by a CHOICES: section of numbered lines.
package reply

import (
	"context"
	"encoding/json"
	"log/slog"
	"regexp"
	"strings"

	"github.com/myrjola/keeper/internal/errors"
	"github.com/myrjola/keeper/internal/models"
)

var (
	codeFence        = regexp.MustCompile("```[A-Za-z0-9_-]*")
	narrationSection = regexp.MustCompile(`(?is)NARRATION:\s*(.*?)\n\s*CHOICES:`)
	choicesSection   = regexp.MustCompile(`(?is)CHOICES:\s*(.*)$`)
	numberedChoice   = regexp.MustCompile(`^\s*\d+\.\s+(.+)$`)
)

type Parser struct {
	logger *slog.Logger
}

func NewParser(logger *slog.Logger) *Parser {
	return &Parser{
		logger: logger.With("source", "ReplyParser"),
	}
}

// Parse never fails. Structured JSON is tried first, then the legacy sections. If neither is present the whole
// trimmed text becomes the narration.
func (p *Parser) Parse(ctx context.Context, raw string) models.KeeperTurn {
	if turn, err := parseStructured(raw); err == nil {
		return turn
	} else if !errors.Is(err, errNoObject) && !errors.Is(err, errNoNarration) {
		p.logger.LogAttrs(ctx, slog.LevelDebug, "keeper reply is not valid JSON", errors.SlogError(err))
	}
	return parseSections(raw)
}

var (
	errNoObject    = errors.NewSentinel("no JSON object in reply")
	errNoNarration = errors.NewSentinel("JSON reply without narration")
)

type structuredReply struct {
	Narration json.RawMessage `json:"narration"`
	Choices   json.RawMessage `json:"choices"`
}

func parseStructured(raw string) (models.KeeperTurn, error) {
	text := codeFence.ReplaceAllString(raw, "")
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end <= start {
		return models.KeeperTurn{}, errNoObject
	}

	var r structuredReply
	if err := json.Unmarshal([]byte(text[start:end+1]), &r); err != nil {
		return models.KeeperTurn{}, errors.Wrap(err, "decode JSON reply")
	}

	var narration string
	if len(r.Narration) == 0 || json.Unmarshal(r.Narration, &narration) != nil {
		return models.KeeperTurn{}, errNoNarration
	}
	narration = strings.TrimSpace(narration)
	if narration == "" {
		return models.KeeperTurn{}, errNoNarration
	}

	return models.KeeperTurn{
		Narration: narration,
		Choices:   structuredChoices(r.Choices),
		Dialect:   models.ReplyDialectJSON,
	}, nil
}

// structuredChoices keeps the non-empty strings of a JSON array. Anything else yields no choices.
func structuredChoices(raw json.RawMessage) []string {
	choices := []string{}
	var items []json.RawMessage
	if len(raw) == 0 || json.Unmarshal(raw, &items) != nil {
		return choices
	}
	for _, item := range items {
		var choice string
		if json.Unmarshal(item, &choice) != nil {
			continue
		}
		if choice = strings.TrimSpace(choice); choice != "" {
			choices = append(choices, choice)
		}
	}
	return choices
}

func parseSections(raw string) models.KeeperTurn {
	turn := models.KeeperTurn{
		Narration: strings.TrimSpace(raw),
		Choices:   []string{},
		Dialect:   models.ReplyDialectPlain,
	}
	if m := narrationSection.FindStringSubmatch(raw); m != nil {
		turn.Narration = strings.TrimSpace(m[1])
		turn.Dialect = models.ReplyDialectSections
	}

	m := choicesSection.FindStringSubmatch(raw)
	if m == nil {
		return turn
	}
	for _, line := range strings.Split(strings.TrimSpace(m[1]), "\n") {
		line = strings.TrimRight(line, "\r")
		if c := numberedChoice.FindStringSubmatch(line); c != nil {
			turn.Choices = append(turn.Choices, strings.TrimSpace(c[1]))
		}
	}
	return turn
}
