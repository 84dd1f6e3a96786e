// Package ollama provides the optional metadata annotator backed by a
// local Ollama endpoint. It is consumed only by the enrichment pipeline:
// annotations feed the searchable text, never the item content, and the
// search path never touches it.
package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/stashdrop-labs/stashdrop/internal/core/ports/driven"
)

// Ensure LLMService implements the interface.
var _ driven.LLMService = (*LLMService)(nil)

// Default configuration values.
const (
	DefaultBaseURL    = "http://localhost:11434"
	DefaultLLMModel   = "llama3.2"
	DefaultLLMTimeout = 120 * time.Second

	// maxAnnotationInput bounds how much item text is sent per request.
	maxAnnotationInput = 8 * 1024
)

const textPrompt = `You are labelling an item in a personal note vault.
Given the item text, respond with JSON only, no prose:
{"title": "<at most 8 words>", "keywords": "<5-10 comma separated>", "summary": "<one sentence>"}

Item text:
%s`

const imagePrompt = `You are labelling a captured image in a personal note vault.
Given the OCR text extracted from the image, respond with JSON only, no prose:
{"caption": "<one short sentence>", "keywords": "<5-10 comma separated>"}

OCR text:
%s`

// LLMConfig holds configuration for the Ollama annotator.
type LLMConfig struct {
	// BaseURL is the Ollama API base URL (default: http://localhost:11434).
	BaseURL string

	// Model is the LLM model to use (default: llama3.2).
	Model string

	// Timeout is the request timeout (default: 120s).
	Timeout time.Duration
}

// LLMService annotates item metadata using Ollama.
type LLMService struct {
	client  *http.Client
	baseURL string
	model   string
}

// generateRequest is the Ollama /api/generate request format.
type generateRequest struct {
	Model   string   `json:"model"`
	Prompt  string   `json:"prompt"`
	Stream  bool     `json:"stream"`
	Format  string   `json:"format,omitempty"`
	Options *options `json:"options,omitempty"`
}

// options holds generation parameters.
type options struct {
	NumPredict  int     `json:"num_predict,omitempty"`
	Temperature float64 `json:"temperature,omitempty"`
}

// generateResponse is the Ollama /api/generate response format.
type generateResponse struct {
	Response string `json:"response"`
	Done     bool   `json:"done"`
}

// NewLLMService creates a new Ollama annotator.
func NewLLMService(cfg LLMConfig) *LLMService {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = DefaultLLMModel
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultLLMTimeout
	}

	return &LLMService{
		client: &http.Client{
			Timeout: cfg.Timeout,
		},
		baseURL: cfg.BaseURL,
		model:   cfg.Model,
	}
}

// AnnotateText produces a short title, keywords, and summary for a text item.
func (s *LLMService) AnnotateText(ctx context.Context, content string) (*driven.TextAnnotation, error) {
	raw, err := s.generate(ctx, fmt.Sprintf(textPrompt, clip(content)))
	if err != nil {
		return nil, err
	}

	var annotation driven.TextAnnotation
	if err := json.Unmarshal([]byte(raw), &annotation); err != nil {
		return nil, fmt.Errorf("decode annotation: %w", err)
	}
	return &annotation, nil
}

// AnnotateImage produces a caption and keywords for an image from its OCR text.
func (s *LLMService) AnnotateImage(ctx context.Context, ocrText string) (*driven.ImageAnnotation, error) {
	raw, err := s.generate(ctx, fmt.Sprintf(imagePrompt, clip(ocrText)))
	if err != nil {
		return nil, err
	}

	var annotation driven.ImageAnnotation
	if err := json.Unmarshal([]byte(raw), &annotation); err != nil {
		return nil, fmt.Errorf("decode annotation: %w", err)
	}
	return &annotation, nil
}

// generate runs a single non-streaming completion in JSON mode.
func (s *LLMService) generate(ctx context.Context, prompt string) (string, error) {
	reqBody := generateRequest{
		Model:  s.model,
		Prompt: prompt,
		Stream: false,
		Format: "json",
		Options: &options{
			NumPredict:  256,
			Temperature: 0,
		},
	}

	jsonBody, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(
		ctx,
		http.MethodPost,
		s.baseURL+"/api/generate",
		bytes.NewReader(jsonBody),
	)
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return "", fmt.Errorf("ollama error (status %d): failed to read response", resp.StatusCode)
		}
		return "", fmt.Errorf("ollama error (status %d): %s", resp.StatusCode, string(body))
	}

	var genResp generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&genResp); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}

	return strings.TrimSpace(genResp.Response), nil
}

// ModelName returns the name of the model being used.
func (s *LLMService) ModelName() string {
	return s.model
}

// Ping validates the endpoint is reachable by checking the /api/tags endpoint.
func (s *LLMService) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+"/api/tags", http.NoBody)
	if err != nil {
		return fmt.Errorf("ollama: failed to create ping request: %w", err)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("ollama: ping failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("ollama: API returned status %d", resp.StatusCode)
	}
	return nil
}

// Close releases resources.
func (s *LLMService) Close() error {
	return nil
}

// clip bounds the text sent to the model.
func clip(s string) string {
	if len(s) > maxAnnotationInput {
		return s[:maxAnnotationInput]
	}
	return s
}
