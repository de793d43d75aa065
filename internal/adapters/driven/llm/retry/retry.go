// Package retry decorates an LLM service with linear-backoff retries for
// transient provider failures and an optional request throttle.
package retry

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/time/rate"

	"github.com/custodia-labs/domainrag/internal/core/domain"
	"github.com/custodia-labs/domainrag/internal/core/ports/driven"
)

// Ensure LLMService implements the interface.
var _ driven.LLMService = (*LLMService)(nil)

// Config controls retry and throttling behaviour.
type Config struct {
	// MaxRetries is the total number of attempts, at least 1.
	MaxRetries int

	// Delay is multiplied by the attempt number between attempts.
	Delay time.Duration

	// RequestsPerSecond throttles calls. Zero disables throttling.
	RequestsPerSecond float64
}

// ConfigFrom extracts the retry settings from the application configuration.
func ConfigFrom(cfg domain.LLMConfig) Config {
	return Config{
		MaxRetries:        cfg.MaxRetries,
		Delay:             cfg.RetryDelay(),
		RequestsPerSecond: cfg.RequestsPerSecond,
	}
}

// LLMService retries Generate on 429, 502, 503 and 504 responses.
type LLMService struct {
	next   driven.LLMService
	logger *log.Logger

	mu      sync.RWMutex
	cfg     Config
	limiter *rate.Limiter

	// sleep is replaced in tests.
	sleep func(ctx context.Context, d time.Duration) error
}

// New wraps next.
func New(next driven.LLMService, cfg Config, logger *log.Logger) *LLMService {
	s := &LLMService{
		next:   next,
		logger: logger,
		sleep:  sleepContext,
	}
	s.apply(cfg)
	return s
}

func (s *LLMService) apply(cfg Config) {
	if cfg.MaxRetries < 1 {
		cfg.MaxRetries = 1
	}
	if cfg.Delay < 0 {
		cfg.Delay = 0
	}
	var limiter *rate.Limiter
	if cfg.RequestsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1)
	}

	s.mu.Lock()
	s.cfg = cfg
	s.limiter = limiter
	s.mu.Unlock()
}

// UpdateConfig applies new retry settings from a reloaded configuration.
// The wrapped provider is not rebuilt.
func (s *LLMService) UpdateConfig(cfg domain.AppConfig) {
	s.apply(ConfigFrom(cfg.LLM))
}

func (s *LLMService) settings() (Config, *rate.Limiter) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cfg, s.limiter
}

// Generate calls the wrapped service until it succeeds, fails with a
// non-retryable error, or the attempts run out.
func (s *LLMService) Generate(ctx context.Context, prompt string, opts driven.GenerateOptions) (string, error) {
	cfg, limiter := s.settings()

	var lastErr error
	for attempt := 1; attempt <= cfg.MaxRetries; attempt++ {
		if limiter != nil {
			if err := limiter.Wait(ctx); err != nil {
				return "", err
			}
		}

		out, err := s.next.Generate(ctx, prompt, opts)
		if err == nil {
			return out, nil
		}
		if !Retryable(err) {
			return "", err
		}
		lastErr = err

		if attempt == cfg.MaxRetries {
			break
		}
		wait := cfg.Delay * time.Duration(attempt)
		if s.logger != nil {
			s.logger.Warn("llm request failed, retrying",
				"model", s.next.ModelName(), "attempt", attempt, "max", cfg.MaxRetries, "wait", wait, "err", err)
		}
		if err := s.sleep(ctx, wait); err != nil {
			return "", err
		}
	}

	return "", fmt.Errorf("%w: giving up after %d attempts: %w", domain.ErrRateLimited, cfg.MaxRetries, lastErr)
}

// Retryable reports whether err is a transient provider failure.
func Retryable(err error) bool {
	var statusErr *driven.StatusError
	if errors.As(err, &statusErr) {
		return statusErr.Retryable()
	}
	return errors.Is(err, domain.ErrRateLimited)
}

// ModelName returns the wrapped model name.
func (s *LLMService) ModelName() string {
	return s.next.ModelName()
}

// Ping is passed through without retries.
func (s *LLMService) Ping(ctx context.Context) error {
	return s.next.Ping(ctx)
}

// Close closes the wrapped service.
func (s *LLMService) Close() error {
	return s.next.Close()
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
