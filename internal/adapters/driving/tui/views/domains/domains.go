// Package domains provides the domain scope picker for the TUI.
package domains

import (
	"context"
	"errors"
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/custodia-labs/domainrag/internal/adapters/driving/tui/messages"
	"github.com/custodia-labs/domainrag/internal/adapters/driving/tui/styles"
	"github.com/custodia-labs/domainrag/internal/core/ports/driving"
)

// ErrNoDomainService indicates that no domain service was provided.
var ErrNoDomainService = errors.New("domain service is required")

// View lists domains and lets the user choose which ones questions go to.
type View struct {
	styles        *styles.Styles
	domainService driving.DomainService
	ctx           context.Context

	domains  []messages.DomainStatus
	scope    map[string]bool
	selected int
	width    int
	height   int
	err      error
	loading  bool
}

// NewView creates a new domains view.
func NewView(s *styles.Styles, domainService driving.DomainService) *View {
	if s == nil {
		s = styles.DefaultStyles()
	}
	return &View{
		styles:        s,
		domainService: domainService,
		ctx:           context.Background(),
		scope:         map[string]bool{},
	}
}

// WithContext sets the context the domain list is loaded under.
func (v *View) WithContext(ctx context.Context) *View {
	v.ctx = ctx
	return v
}

// Init loads the domain list.
func (v *View) Init() tea.Cmd {
	v.loading = true
	return v.loadDomains()
}

func (v *View) loadDomains() tea.Cmd {
	return func() tea.Msg {
		if v.domainService == nil {
			return messages.DomainsLoaded{Err: ErrNoDomainService}
		}
		list, err := v.domainService.List(v.ctx)
		if err != nil {
			return messages.DomainsLoaded{Err: err}
		}
		out := make([]messages.DomainStatus, len(list))
		for i := range list {
			out[i] = messages.DomainStatus{
				Domain:    list[i],
				Populated: v.domainService.IsPopulated(&list[i]),
			}
		}
		return messages.DomainsLoaded{Domains: out}
	}
}

// Update handles messages for the domains view.
func (v *View) Update(msg tea.Msg) (*View, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		v.SetDimensions(msg.Width, msg.Height)
		return v, nil

	case tea.KeyMsg:
		return v.handleKeyMsg(msg)

	case messages.DomainsLoaded:
		v.loading = false
		if msg.Err != nil {
			v.err = msg.Err
			return v, nil
		}
		v.err = nil
		v.domains = msg.Domains
		v.selected = min(v.selected, max(len(v.domains)-1, 0))
		// Drop scope entries for domains that no longer exist.
		known := make(map[string]bool, len(v.domains))
		for i := range v.domains {
			known[v.domains[i].Domain.Name] = true
		}
		for name := range v.scope {
			if !known[name] {
				delete(v.scope, name)
			}
		}
		return v, v.scopeChanged()
	}

	return v, nil
}

func (v *View) handleKeyMsg(msg tea.KeyMsg) (*View, tea.Cmd) {
	switch msg.String() {
	case "up", "k":
		if v.selected > 0 {
			v.selected--
		}
	case "down", "j":
		if v.selected < len(v.domains)-1 {
			v.selected++
		}
	case " ", "enter":
		if v.selected < len(v.domains) {
			name := v.domains[v.selected].Domain.Name
			if v.scope[name] {
				delete(v.scope, name)
			} else {
				v.scope[name] = true
			}
			return v, v.scopeChanged()
		}
	case "c":
		v.scope = map[string]bool{}
		return v, v.scopeChanged()
	case "r":
		v.loading = true
		return v, v.loadDomains()
	case "esc", "tab":
		return v, func() tea.Msg {
			return messages.ViewChanged{View: messages.ViewAsk}
		}
	}
	return v, nil
}

func (v *View) scopeChanged() tea.Cmd {
	scope := v.Scope()
	return func() tea.Msg {
		return messages.ScopeChanged{Domains: scope}
	}
}

// Scope returns the chosen domains in list order.
func (v *View) Scope() []string {
	var out []string
	for i := range v.domains {
		if name := v.domains[i].Domain.Name; v.scope[name] {
			out = append(out, name)
		}
	}
	return out
}

// View renders the domains view.
func (v *View) View() string {
	var b strings.Builder

	b.WriteString(v.styles.Title.Render("Domains"))
	b.WriteString("\n\n")

	switch {
	case v.loading:
		b.WriteString(v.styles.Muted.Render("Loading domains..."))
	case v.err != nil:
		b.WriteString(v.styles.Error.Render("Error: " + v.err.Error()))
	case len(v.domains) == 0:
		b.WriteString(v.styles.Muted.Render("No domains yet. Create one with `domainrag domain create`."))
	default:
		for i := range v.domains {
			b.WriteString(v.renderDomain(i, &v.domains[i]))
			b.WriteString("\n")
		}
		b.WriteString("\n")
		if len(v.scope) == 0 {
			b.WriteString(v.styles.Muted.Render("No domains chosen: the model picks for each question."))
		} else {
			b.WriteString(v.styles.Success.Render("Asking: " + strings.Join(v.Scope(), ", ")))
		}
	}

	b.WriteString("\n\n")
	b.WriteString(v.styles.Help.Render("[space] toggle  [c] auto-select  [r] reload  [esc] back"))
	return b.String()
}

// renderDomain renders one domain as "> [x] Name  description  (n docs)".
func (v *View) renderDomain(index int, d *messages.DomainStatus) string {
	indicator := "  "
	if index == v.selected {
		indicator = "> "
	}
	check := "[ ]"
	if v.scope[d.Domain.Name] {
		check = "[x]"
	}

	desc := d.Domain.Description
	if limit := max(v.width-len(d.Domain.Name)-30, 10); len([]rune(desc)) > limit {
		desc = string([]rune(desc)[:limit-3]) + "..."
	}
	docs := fmt.Sprintf("(%d docs)", d.Domain.TotalDocuments)
	if !d.Populated {
		docs = "(empty)"
	}

	if index == v.selected {
		return v.styles.Selected.Render(fmt.Sprintf("%s%s %s  %s  %s", indicator, check, d.Domain.Name, desc, docs))
	}
	return v.styles.Normal.Render(fmt.Sprintf("%s%s %s  ", indicator, check, d.Domain.Name)) +
		v.styles.Muted.Render(desc+"  "+docs)
}

// SetDimensions sets the view dimensions.
func (v *View) SetDimensions(width, height int) {
	v.width = width
	v.height = height
}

// Domains returns the loaded domains.
func (v *View) Domains() []messages.DomainStatus {
	return v.domains
}

// SelectedIndex returns the index of the highlighted domain.
func (v *View) SelectedIndex() int {
	return v.selected
}

// Err returns the last load error.
func (v *View) Err() error {
	return v.err
}
