package services

import (
	"context"
	"fmt"
	"io"
	"iter"
	"sort"
	"strings"

	"github.com/dimitrije/lorewiki-api/internal/config"
	"google.golang.org/genai"
)

type textStreamer interface {
	Stream(ctx context.Context, prompt string) iter.Seq2[string, error]
}

type genaiStreamer struct {
	client *genai.Client
	model  string
	config *genai.GenerateContentConfig
}

func (g *genaiStreamer) Stream(ctx context.Context, prompt string) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		for resp, err := range g.client.Models.GenerateContentStream(ctx, g.model, genai.Text(prompt), g.config) {
			if err != nil {
				yield("", err)
				return
			}
			if text := resp.Text(); text != "" {
				if !yield(text, nil) {
					return
				}
			}
		}
	}
}

// SafetySettings converts category/threshold names into genai settings in a
// stable order.
func SafetySettings(safety map[string]string) []*genai.SafetySetting {
	categories := make([]string, 0, len(safety))
	for k := range safety {
		categories = append(categories, k)
	}
	sort.Strings(categories)

	settings := make([]*genai.SafetySetting, 0, len(categories))
	for _, k := range categories {
		settings = append(settings, &genai.SafetySetting{
			Category:  genai.HarmCategory(k),
			Threshold: genai.HarmBlockThreshold(safety[k]),
		})
	}
	return settings
}

// AssistantService relays prompts to the generative model and forwards the
// streamed text verbatim.
type AssistantService struct {
	streamer textStreamer
}

// NewAssistantService builds the relay. Without an API key the service is
// created disabled and every Generate call fails.
func NewAssistantService(ctx context.Context, cfg config.AssistantConfig) (*AssistantService, error) {
	if cfg.APIKey == "" {
		return &AssistantService{}, nil
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}

	return &AssistantService{streamer: &genaiStreamer{
		client: client,
		model:  cfg.Model,
		config: &genai.GenerateContentConfig{SafetySettings: SafetySettings(cfg.Safety)},
	}}, nil
}

func (s *AssistantService) Enabled() bool {
	return s.streamer != nil
}

// Generate writes each chunk to w as it arrives, calling flush after every
// write. It returns the number of chunks written; a non-zero count with an
// error means the stream broke part way.
func (s *AssistantService) Generate(ctx context.Context, prompt string, w io.Writer, flush func() error) (int, error) {
	if !s.Enabled() {
		return 0, Internal("The GEMINI_API_KEY environment variable is not set.", nil)
	}
	if strings.TrimSpace(prompt) == "" {
		return 0, InvalidArgument("A prompt is required.")
	}

	written := 0
	for chunk, err := range s.streamer.Stream(ctx, prompt) {
		if err != nil {
			return written, fmt.Errorf("generation failed: %w", err)
		}
		if _, err := io.WriteString(w, chunk); err != nil {
			return written, fmt.Errorf("failed to forward chunk: %w", err)
		}
		written++
		if flush != nil {
			if err := flush(); err != nil {
				return written, fmt.Errorf("failed to flush chunk: %w", err)
			}
		}
	}
	return written, nil
}
