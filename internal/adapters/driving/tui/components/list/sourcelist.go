// Package list provides list display components for the TUI.
package list

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/custodia-labs/domainrag/internal/adapters/driving/tui/styles"
	"github.com/custodia-labs/domainrag/internal/core/domain"
)

// SourceList displays the chunks an answer was built from.
type SourceList struct {
	chunks   []domain.RetrievedChunk
	selected int
	expanded bool
	styles   *styles.Styles
	width    int
	height   int
}

// NewSourceList creates a new source list component.
func NewSourceList(s *styles.Styles) *SourceList {
	if s == nil {
		s = styles.DefaultStyles()
	}

	return &SourceList{
		styles: s,
		width:  80,
		height: 10,
	}
}

// Update handles list navigation messages.
func (r *SourceList) Update(msg tea.Msg) (*SourceList, tea.Cmd) {
	if msg, ok := msg.(tea.KeyMsg); ok {
		switch msg.String() {
		case "up", "k":
			r.MoveUp()
		case "down", "j":
			r.MoveDown()
		case "e":
			r.expanded = !r.expanded
		}
	}
	return r, nil
}

// View renders the source list.
func (r *SourceList) View() string {
	if len(r.chunks) == 0 {
		return r.styles.Muted.Render("No sources")
	}

	lines := make([]string, 0, len(r.chunks)*2+2)
	lines = append(lines, r.styles.Subtitle.Render(fmt.Sprintf("Sources (%d)", len(r.chunks))), "")

	// Each entry takes two lines.
	visible := max((r.height-2)/2, 1)
	start := 0
	if r.selected >= visible {
		start = r.selected - visible + 1
	}
	end := min(start+visible, len(r.chunks))

	for i := start; i < end; i++ {
		lines = append(lines, r.renderChunk(i, &r.chunks[i]))
	}

	if r.expanded {
		if c := r.SelectedChunk(); c != nil {
			lines = append(lines, "", r.styles.Answer.Width(max(r.width-4, 20)).Render(c.Content))
		}
	}

	return strings.Join(lines, "\n")
}

// renderChunk formats one chunk as a heading line and a preview line.
func (r *SourceList) renderChunk(index int, c *domain.RetrievedChunk) string {
	indicator := "  "
	if index == r.selected {
		indicator = "> "
	}

	heading := fmt.Sprintf("%s[%s] chunk %d", indicator, c.Domain, c.ChunkID)
	if pages := c.Metadata.PageList; len(pages) > 0 {
		heading += " " + pageLabel(pages)
	}
	distance := fmt.Sprintf("%.3f", c.Distance)

	var head string
	if index == r.selected {
		head = r.styles.Selected.Render(heading + "  " + distance)
	} else {
		head = r.styles.Normal.Render(heading+"  ") + r.styles.Muted.Render(distance)
	}

	preview := strings.Join(strings.Fields(c.Content), " ")
	if limit := max(r.width-6, 20); len([]rune(preview)) > limit {
		preview = string([]rune(preview)[:limit-3]) + "..."
	}

	return head + "\n" + r.styles.Muted.Render("    "+preview)
}

func pageLabel(pages []int) string {
	if len(pages) == 1 {
		return fmt.Sprintf("p.%d", pages[0])
	}
	return fmt.Sprintf("pp.%d-%d", pages[0], pages[len(pages)-1])
}

// SetChunks replaces the listed chunks and resets the selection.
func (r *SourceList) SetChunks(chunks []domain.RetrievedChunk) {
	r.chunks = chunks
	r.selected = 0
	r.expanded = false
}

// Chunks returns the listed chunks.
func (r *SourceList) Chunks() []domain.RetrievedChunk {
	return r.chunks
}

// Selected returns the index of the selected chunk.
func (r *SourceList) Selected() int {
	return r.selected
}

// SelectedChunk returns the currently selected chunk, or nil if none.
func (r *SourceList) SelectedChunk() *domain.RetrievedChunk {
	if r.selected < 0 || r.selected >= len(r.chunks) {
		return nil
	}
	return &r.chunks[r.selected]
}

// Expanded reports whether the selected chunk's full text is shown.
func (r *SourceList) Expanded() bool {
	return r.expanded
}

// MoveUp moves selection up.
func (r *SourceList) MoveUp() {
	if r.selected > 0 {
		r.selected--
	}
}

// MoveDown moves selection down.
func (r *SourceList) MoveDown() {
	if r.selected < len(r.chunks)-1 {
		r.selected++
	}
}

// SetDimensions sets the component dimensions.
func (r *SourceList) SetDimensions(width, height int) {
	r.width = width
	r.height = height
}
