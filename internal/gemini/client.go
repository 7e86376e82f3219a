// Package gemini implements the optional Gemini-backed attendance summary.
package gemini

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"google.golang.org/genai"

	"github.com/emezav/rollcall/internal/config"
)

// Client generates a natural-language summary of an attendance table.
type Client interface {
	SummarizeTable(ctx context.Context, values [][]string) (string, error)
}

type sdkClient struct {
	genaiClient   *genai.Client
	log           *slog.Logger
	contentConfig *genai.GenerateContentConfig
	modelName     string
}

// NewClient creates a Gemini client from the configuration. It returns an
// error when no API key is configured; the caller decides whether the
// summary feature is optional.
func NewClient(ctx context.Context, cfg config.GeminiConfig, log *slog.Logger) (Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("gemini API key is required")
	}
	if log == nil {
		log = slog.Default()
	}

	gi, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}

	contentConfig := &genai.GenerateContentConfig{
		Temperature: &cfg.Temperature,
	}
	if cfg.Instruction != "" {
		contentConfig.SystemInstruction = &genai.Content{
			Parts: []*genai.Part{{Text: cfg.Instruction}},
		}
	}

	logger := log.With("component", "gemini_client")
	logger.Info("Gemini client initialized", "model", cfg.ModelName)
	return &sdkClient{
		genaiClient:   gi,
		log:           logger,
		contentConfig: contentConfig,
		modelName:     cfg.ModelName,
	}, nil
}

// SummarizeTable renders the table as tab-separated text and asks the
// model for a short summary of who attended and what was answered.
func (c *sdkClient) SummarizeTable(ctx context.Context, values [][]string) (string, error) {
	if len(values) < 2 {
		return "", fmt.Errorf("table has no data rows to summarize")
	}

	var sb strings.Builder
	sb.WriteString("Summarize this group call attendance table. Mention who attended, for how long, and notable answers.\n\n")
	for _, row := range values {
		sb.WriteString(strings.Join(row, "\t"))
		sb.WriteString("\n")
	}

	contents := []*genai.Content{genai.NewContentFromText(sb.String(), genai.RoleUser)}

	resp, err := c.genaiClient.Models.GenerateContent(ctx, c.modelName, contents, c.contentConfig)
	if err != nil {
		c.log.ErrorContext(ctx, "Gemini summary generation failed", "error", err)
		return "", fmt.Errorf("gemini API call failed: %w", err)
	}

	if resp.PromptFeedback != nil && resp.PromptFeedback.BlockReason != genai.BlockedReasonUnspecified {
		return "", fmt.Errorf("summary blocked by safety filter: %s", resp.PromptFeedback.BlockReasonMessage)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		return "", fmt.Errorf("summary returned empty content")
	}

	text := resp.Text()
	if text == "" {
		return "", fmt.Errorf("summary returned empty text")
	}
	return text, nil
}
