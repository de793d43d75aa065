// Package textnorm prepares chunk and question text before embedding.
package textnorm

import (
	"strings"
	"sync"

	"golang.org/x/text/unicode/norm"

	"github.com/custodia-labs/domainrag/internal/core/domain"
	"github.com/custodia-labs/domainrag/internal/core/ports/driven"
)

var _ driven.TextNormaliser = (*Normaliser)(nil)

// Normaliser applies the steps enabled in the [text_normalizer] section.
// Steps run in a fixed order: NFKC, whitespace collapse, lowercase.
type Normaliser struct {
	mu  sync.RWMutex
	cfg domain.TextNormalizerConfig
}

// New creates a normaliser with the given settings.
func New(cfg domain.TextNormalizerConfig) *Normaliser {
	return &Normaliser{cfg: cfg}
}

// Normalize returns text with the enabled steps applied.
func (n *Normaliser) Normalize(text string) string {
	n.mu.RLock()
	cfg := n.cfg
	n.mu.RUnlock()

	if cfg.UnicodeNormalization {
		text = norm.NFKC.String(text)
	}
	if cfg.CollapseWhitespace {
		text = strings.Join(strings.Fields(text), " ")
	}
	if cfg.Lowercase {
		text = strings.ToLower(text)
	}
	return text
}

// UpdateConfig swaps in the reloaded [text_normalizer] settings.
func (n *Normaliser) UpdateConfig(cfg domain.AppConfig) {
	n.mu.Lock()
	n.cfg = cfg.TextNormalizer
	n.mu.Unlock()
}
