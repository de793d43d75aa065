// Package huggingface provides an LLM service adapter using the Hugging Face
// Inference API text-generation task.
package huggingface

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/custodia-labs/domainrag/internal/core/domain"
	"github.com/custodia-labs/domainrag/internal/core/ports/driven"
)

// Ensure LLMService implements the interface.
var _ driven.LLMService = (*LLMService)(nil)

// Default configuration values.
const (
	DefaultBaseURL    = "https://api-inference.huggingface.co"
	DefaultLLMTimeout = 120 * time.Second

	// TokenEnv is the environment variable holding the API token.
	TokenEnv = "HUGGINGFACE_API_TOKEN"
)

// LLMConfig holds configuration for the Hugging Face LLM service.
type LLMConfig struct {
	// APIToken is the Hugging Face access token (required).
	APIToken string

	// BaseURL is the Inference API base URL.
	BaseURL string

	// Model is the model repository id, e.g. "mistralai/Mistral-7B-Instruct-v0.2" (required).
	Model string

	// Timeout is the request timeout (default: 120s).
	Timeout time.Duration
}

// LLMService provides LLM operations using the Hugging Face Inference API.
type LLMService struct {
	client  *http.Client
	baseURL string
	token   string
	model   string
}

type generateRequest struct {
	Inputs     string     `json:"inputs"`
	Parameters parameters `json:"parameters"`
	Options    reqOptions `json:"options"`
}

type parameters struct {
	MaxNewTokens      int      `json:"max_new_tokens,omitempty"`
	Temperature       float64  `json:"temperature,omitempty"`
	TopP              float64  `json:"top_p,omitempty"`
	TopK              int      `json:"top_k,omitempty"`
	RepetitionPenalty float64  `json:"repetition_penalty,omitempty"`
	Stop              []string `json:"stop,omitempty"`
	DoSample          bool     `json:"do_sample"`
	ReturnFullText    bool     `json:"return_full_text"`
}

type reqOptions struct {
	WaitForModel bool `json:"wait_for_model"`
}

type generation struct {
	GeneratedText string `json:"generated_text"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// NewLLMService creates a new Hugging Face LLM service.
func NewLLMService(cfg LLMConfig) (*LLMService, error) {
	if cfg.APIToken == "" {
		return nil, fmt.Errorf("huggingface: %s is not set: %w", TokenEnv, domain.ErrInvalidConfig)
	}
	if cfg.Model == "" {
		return nil, fmt.Errorf("huggingface: model repo id is required: %w", domain.ErrInvalidConfig)
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultLLMTimeout
	}

	return &LLMService{
		client:  &http.Client{Timeout: cfg.Timeout},
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		token:   cfg.APIToken,
		model:   cfg.Model,
	}, nil
}

func (s *LLMService) modelURL() string {
	return s.baseURL + "/models/" + (&url.URL{Path: s.model}).EscapedPath()
}

// Generate produces text completion from a prompt. Only the new text is returned.
func (s *LLMService) Generate(ctx context.Context, prompt string, opts driven.GenerateOptions) (string, error) {
	reqBody := generateRequest{
		Inputs: prompt,
		Parameters: parameters{
			MaxNewTokens:      opts.MaxTokens,
			Temperature:       opts.Temperature,
			TopP:              opts.TopP,
			TopK:              opts.TopK,
			RepetitionPenalty: opts.RepetitionPenalty,
			Stop:              opts.StopWords,
			DoSample:          opts.Temperature > 0,
			ReturnFullText:    false,
		},
		Options: reqOptions{WaitForModel: true},
	}

	jsonBody, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.modelURL(), bytes.NewReader(jsonBody))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+s.token)

	resp, err := s.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("huggingface: %w: %w", domain.ErrLLMUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", &driven.StatusError{Provider: "huggingface", StatusCode: resp.StatusCode, Body: string(body)}
	}

	return parseGeneration(body)
}

// parseGeneration accepts both the list form and the single-object form
// of a text-generation response.
func parseGeneration(body []byte) (string, error) {
	var list []generation
	if err := json.Unmarshal(body, &list); err == nil {
		if len(list) == 0 {
			return "", errors.New("huggingface: empty generation list")
		}
		return list[0].GeneratedText, nil
	}

	var single struct {
		generation
		errorResponse
	}
	if err := json.Unmarshal(body, &single); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	if single.Error != "" {
		return "", fmt.Errorf("huggingface error: %s", single.Error)
	}
	return single.GeneratedText, nil
}

// ModelName returns the model repository id.
func (s *LLMService) ModelName() string {
	return s.model
}

// Ping checks the token with the whoami endpoint.
func (s *LLMService) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+"/api/whoami-v2", http.NoBody)
	if err != nil {
		return fmt.Errorf("huggingface: failed to create ping request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+s.token)

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("huggingface: ping failed: %w: %w", domain.ErrLLMUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &driven.StatusError{Provider: "huggingface", StatusCode: resp.StatusCode, Body: string(body)}
	}
	return nil
}

// Close releases resources.
func (s *LLMService) Close() error {
	return nil
}
