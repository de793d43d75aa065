package keywords

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeEmbedder maps known phrases to fixed vectors; everything else gets other.
type fakeEmbedder struct {
	vectors map[string][]float32
	other   []float32
	err     error
	calls   int
}

func (f *fakeEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	v, err := f.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return v[0], nil
}

func (f *fakeEmbedder) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		if v, ok := f.vectors[t]; ok {
			out[i] = v
		} else {
			out[i] = f.other
		}
	}
	return out, nil
}

func (f *fakeEmbedder) Dimensions() int              { return 2 }
func (f *fakeEmbedder) ModelName() string            { return "fake" }
func (f *fakeEmbedder) Ping(_ context.Context) error { return nil }
func (f *fakeEmbedder) Close() error                 { return nil }

func quietLogger() *log.Logger { return log.New(io.Discard) }

func TestCandidates(t *testing.T) {
	cands := candidates("The annual budget and the annual budget review.")
	phrases := make([]string, len(cands))
	for i, c := range cands {
		phrases[i] = c.phrase
	}

	assert.Equal(t, []string{"annual", "annual budget", "budget", "budget review", "review"}, phrases)
	assert.Equal(t, 2, cands[0].count)
	assert.NotContains(t, phrases, "the")
	assert.NotContains(t, phrases, "budget and")
}

func TestCandidates_Portuguese(t *testing.T) {
	cands := candidates("A política de férias para os funcionários")
	phrases := make([]string, len(cands))
	for i, c := range cands {
		phrases[i] = c.phrase
	}
	assert.Contains(t, phrases, "política")
	assert.Contains(t, phrases, "férias")
	assert.Contains(t, phrases, "funcionários")
	assert.NotContains(t, phrases, "de")
	assert.NotContains(t, phrases, "para")
}

func TestCandidates_SkipsNumbersAndShortTokens(t *testing.T) {
	cands := candidates("2024 x q3-results 12")
	require.Len(t, cands, 1)
	assert.Equal(t, "q3-results", cands[0].phrase)
}

func TestExtract_FrequencyWithoutEmbedder(t *testing.T) {
	e := New(nil, quietLogger())
	got := e.Extract(context.Background(), "Payroll payroll payroll. Benefits benefits. Leave.", 2)
	assert.Equal(t, []string{"payroll", "payroll payroll"}, got)
}

func TestExtract_RanksBySimilarity(t *testing.T) {
	text := "Revenue forecast and headcount planning"
	emb := &fakeEmbedder{
		vectors: map[string][]float32{
			text:        {1, 0},
			"headcount": {0.9, 0.1},
			"forecast":  {0.5, 0.5},
		},
		other: []float32{0, 1},
	}

	got := New(emb, quietLogger()).Extract(context.Background(), text, 2)
	assert.Equal(t, []string{"headcount", "forecast"}, got)
	assert.Equal(t, 1, emb.calls)
}

func TestExtract_FallsBackOnEmbedError(t *testing.T) {
	emb := &fakeEmbedder{err: errors.New("connection refused")}
	got := New(emb, quietLogger()).Extract(context.Background(), "audit audit report", 1)
	assert.Equal(t, []string{"audit"}, got)
}

func TestExtract_EdgeCases(t *testing.T) {
	e := New(nil, quietLogger())
	assert.Nil(t, e.Extract(context.Background(), "anything here", 0))
	assert.Nil(t, e.Extract(context.Background(), "the and of", 3))
	assert.Nil(t, e.Extract(context.Background(), "", 3))
}

func TestCosine(t *testing.T) {
	assert.InDelta(t, 1.0, Cosine([]float32{1, 2}, []float32{2, 4}), 1e-9)
	assert.InDelta(t, 0.0, Cosine([]float32{1, 0}, []float32{0, 1}), 1e-9)
	assert.Zero(t, Cosine([]float32{1}, []float32{1, 2}))
	assert.Zero(t, Cosine([]float32{0, 0}, []float32{1, 2}))
}
