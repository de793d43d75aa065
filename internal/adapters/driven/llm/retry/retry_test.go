package retry

import (
	"context"
	"errors"
	"io"
	"net/http"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/domainrag/internal/core/domain"
	"github.com/custodia-labs/domainrag/internal/core/ports/driven"
)

type scriptedLLM struct {
	errs  []error
	calls int
}

func (m *scriptedLLM) Generate(context.Context, string, driven.GenerateOptions) (string, error) {
	i := m.calls
	m.calls++
	if i < len(m.errs) && m.errs[i] != nil {
		return "", m.errs[i]
	}
	return "ok", nil
}
func (m *scriptedLLM) ModelName() string          { return "scripted" }
func (m *scriptedLLM) Ping(context.Context) error { return nil }
func (m *scriptedLLM) Close() error               { return nil }

func status(code int) error {
	return &driven.StatusError{Provider: "test", StatusCode: code}
}

func newTestService(next driven.LLMService, cfg Config) (*LLMService, *[]time.Duration) {
	s := New(next, cfg, log.New(io.Discard))
	var waits []time.Duration
	s.sleep = func(_ context.Context, d time.Duration) error {
		waits = append(waits, d)
		return nil
	}
	return s, &waits
}

func TestGenerate_SucceedsAfterRetryableErrors(t *testing.T) {
	next := &scriptedLLM{errs: []error{status(http.StatusTooManyRequests), status(http.StatusServiceUnavailable)}}
	s, waits := newTestService(next, Config{MaxRetries: 3, Delay: time.Second})

	out, err := s.Generate(context.Background(), "p", driven.GenerateOptions{})
	require.NoError(t, err)
	assert.Equal(t, "ok", out)
	assert.Equal(t, 3, next.calls)
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second}, *waits)
}

func TestGenerate_GivesUpAfterMaxRetries(t *testing.T) {
	next := &scriptedLLM{errs: []error{status(502), status(502), status(502), status(502)}}
	s, waits := newTestService(next, Config{MaxRetries: 3, Delay: time.Second})

	_, err := s.Generate(context.Background(), "p", driven.GenerateOptions{})
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrRateLimited)
	assert.Equal(t, 3, next.calls)
	assert.Len(t, *waits, 2)

	var statusErr *driven.StatusError
	assert.True(t, errors.As(err, &statusErr))
}

func TestGenerate_NonRetryableReturnsImmediately(t *testing.T) {
	next := &scriptedLLM{errs: []error{status(http.StatusUnauthorized)}}
	s, waits := newTestService(next, Config{MaxRetries: 5, Delay: time.Second})

	_, err := s.Generate(context.Background(), "p", driven.GenerateOptions{})
	require.Error(t, err)
	assert.NotErrorIs(t, err, domain.ErrRateLimited)
	assert.Equal(t, 1, next.calls)
	assert.Empty(t, *waits)

	next = &scriptedLLM{errs: []error{errors.New("boom")}}
	s, _ = newTestService(next, Config{MaxRetries: 5})
	_, err = s.Generate(context.Background(), "p", driven.GenerateOptions{})
	assert.EqualError(t, err, "boom")
	assert.Equal(t, 1, next.calls)
}

func TestGenerate_CancelledDuringBackoff(t *testing.T) {
	next := &scriptedLLM{errs: []error{status(504), status(504)}}
	s := New(next, Config{MaxRetries: 3, Delay: time.Hour}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	_, err := s.Generate(ctx, "p", driven.GenerateOptions{})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, next.calls)
}

func TestUpdateConfig(t *testing.T) {
	next := &scriptedLLM{errs: []error{status(429), status(429)}}
	s, _ := newTestService(next, Config{MaxRetries: 1})

	cfg := domain.DefaultAppConfig()
	cfg.LLM.MaxRetries = 3
	cfg.LLM.RetryDelaySeconds = 0.5
	cfg.LLM.RequestsPerSecond = 1000
	s.UpdateConfig(cfg)

	got, limiter := s.settings()
	assert.Equal(t, 3, got.MaxRetries)
	assert.Equal(t, 500*time.Millisecond, got.Delay)
	assert.NotNil(t, limiter)

	out, err := s.Generate(context.Background(), "p", driven.GenerateOptions{})
	require.NoError(t, err)
	assert.Equal(t, "ok", out)
	assert.Equal(t, 3, next.calls)
}

func TestRetryable(t *testing.T) {
	assert.True(t, Retryable(status(429)))
	assert.True(t, Retryable(status(503)))
	assert.True(t, Retryable(domain.ErrRateLimited))
	assert.False(t, Retryable(status(500)))
	assert.False(t, Retryable(errors.New("x")))
}
