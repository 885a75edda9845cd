// Package llm generates short natural-language player descriptions through an
// Ollama-compatible chat endpoint.
//
// Generation is strictly best-effort: a transport failure, a non-200 status,
// or an empty completion all degrade to one of a few canned sentences. The
// caller never sees an error from Describe.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"net/http"
	"strings"

	"github.com/rs/zerolog/log"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// maxDescriptionRunes caps generated descriptions.
const maxDescriptionRunes = 280

// HTTPClient is the narrow outbound client contract, satisfied by
// *http.Client and easily faked in tests.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Generator produces a short description for a player. Implementations must
// always return usable text; failures are absorbed internally.
type Generator interface {
	Describe(ctx context.Context, name, position, team string, data map[string]any) string
}

// OllamaClient talks to an Ollama /api/chat endpoint.
type OllamaClient struct {
	http  HTTPClient
	host  string
	model string

	titler cases.Caser
}

// NewOllama constructs an OllamaClient for the given host (scheme included)
// and model name.
func NewOllama(httpClient HTTPClient, host, model string) *OllamaClient {
	return &OllamaClient{
		http:   httpClient,
		host:   strings.TrimRight(host, "/"),
		model:  model,
		titler: cases.Title(language.AmericanEnglish),
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
	Stream   bool          `json:"stream"`
}

type chatResponse struct {
	Message chatMessage `json:"message"`
}

// Describe builds a single user-role prompt from the player's identity and
// asks the model for a description, truncated to 280 characters. On any
// failure or empty completion it falls back to a canned sentence.
func (c *OllamaClient) Describe(ctx context.Context, name, position, team string, data map[string]any) string {
	prompt := fmt.Sprintf(
		"Generate a concise 280-character description for a baseball player with these details:\n"+
			"Name: %s\nPosition: %s\nTeam: %s\n\n"+
			"Include career highlights, playing style, and personal background.",
		c.titler.String(name), position, team,
	)

	text, err := c.chat(ctx, prompt)
	if err != nil {
		log.Warn().Err(err).Str("model", c.model).Msg("description generation failed, using fallback")
		return fallbackDescription(position, team)
	}
	text = truncateRunes(strings.TrimSpace(text), maxDescriptionRunes)
	if text == "" {
		log.Warn().Str("model", c.model).Msg("empty description generated, using fallback")
		return fallbackDescription(position, team)
	}
	return text
}

// chat performs one non-streaming chat completion round-trip.
func (c *OllamaClient) chat(ctx context.Context, prompt string) (string, error) {
	body, err := json.Marshal(chatRequest{
		Model:    c.model,
		Messages: []chatMessage{{Role: "user", Content: prompt}},
		Stream:   false,
	})
	if err != nil {
		return "", fmt.Errorf("encode chat request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.host+"/api/chat", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build chat request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("chat: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("chat: unexpected status %d", resp.StatusCode)
	}

	var out chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decode chat response: %w", err)
	}
	return out.Message.Content, nil
}

// fallbackDescription returns one of three fixed sentences, chosen
// pseudo-randomly.
func fallbackDescription(position, team string) string {
	fallbacks := []string{
		fmt.Sprintf("A talented %s with a passion for the game.", position),
		fmt.Sprintf("Bringing skill and determination to %s.", team),
		"A rising star in baseball, known for precision and teamwork.",
	}
	return fallbacks[rand.Intn(len(fallbacks))]
}

// truncateRunes clips s to at most n runes.
func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
