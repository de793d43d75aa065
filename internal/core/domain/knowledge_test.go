package domain

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFSName(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"simple", "Finance", "finance"},
		{"spaces", "Human Resources", "human_resources"},
		{"punctuation collapses", "R&D / Labs!!", "r_d_labs"},
		{"keeps dots and dashes", "v1.2-beta", "v1.2-beta"},
		{"trims separators", "  ..hidden.. ", "hidden"},
		{"path traversal", "../../etc", "etc"},
		{"unicode letters kept", "Finanças", "finanças"},
		{"nothing safe", "!!!", ""},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, FSName(tc.input))
		})
	}
}

func TestPathsFor(t *testing.T) {
	paths := PathsFor("/data/domains", "Finance Team")

	assert.Equal(t, filepath.Join("/data/domains", "finance_team"), paths.Dir)
	assert.Equal(t, filepath.Join("/data/domains", "finance_team", "finance_team.db"), paths.DBPath)
	assert.Equal(t,
		filepath.Join("/data/domains", "finance_team", "vector_store", "finance_team.idx"),
		paths.VectorStorePath)
}

func TestKnowledgeDomain_Paths(t *testing.T) {
	expected := PathsFor("/base", "HR")
	d := &KnowledgeDomain{Name: "HR", DBPath: expected.DBPath, VectorStorePath: expected.VectorStorePath}

	assert.Equal(t, expected, d.Paths())
}

func TestValidateDomainName(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"valid", "Finance", false},
		{"valid with spaces", "Legal Docs", false},
		{"empty", "", true},
		{"whitespace only", "   ", true},
		{"surrounding whitespace", " Finance ", true},
		{"too long", strings.Repeat("a", MaxDomainNameLength+1), true},
		{"no safe characters", "???", true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := ValidateDomainName(tc.input)
			if tc.wantErr {
				assert.ErrorIs(t, err, ErrInvalidInput)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestDomainConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *DomainConfig)
		wantErr bool
	}{
		{"defaults", func(*DomainConfig) {}, false},
		{"semantic cluster", func(c *DomainConfig) { c.ChunkingStrategy = ChunkingSemanticCluster }, false},
		{"inner product", func(c *DomainConfig) { c.IndexType = IndexFlatIP }, false},
		{"unknown strategy", func(c *DomainConfig) { c.ChunkingStrategy = "fixed" }, true},
		{"unknown index", func(c *DomainConfig) { c.IndexType = "HNSW" }, true},
		{"zero chunk size", func(c *DomainConfig) { c.ChunkSize = 0 }, true},
		{"overlap equals size", func(c *DomainConfig) { c.ChunkOverlap = c.ChunkSize }, true},
		{"negative overlap", func(c *DomainConfig) { c.ChunkOverlap = -1 }, true},
		{"weight above one", func(c *DomainConfig) { c.EmbeddingWeight = 1.5 }, true},
		{"zero threshold", func(c *DomainConfig) { c.ClusterDistanceThreshold = 0 }, true},
		{"zero max words", func(c *DomainConfig) { c.ChunkMaxWords = 0 }, true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultDomainConfig()
			tc.mutate(&cfg)
			err := cfg.Validate()
			if tc.wantErr {
				assert.ErrorIs(t, err, ErrInvalidConfig)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestDomainFieldUpdate_IsEmpty(t *testing.T) {
	assert.True(t, DomainFieldUpdate{}.IsEmpty())

	desc := "new"
	assert.False(t, DomainFieldUpdate{Description: &desc}.IsEmpty())
}
