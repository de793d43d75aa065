// Package ask provides the question and answer view for the TUI.
package ask

import (
	"context"
	"errors"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/custodia-labs/domainrag/internal/adapters/driving/tui/components/input"
	"github.com/custodia-labs/domainrag/internal/adapters/driving/tui/components/list"
	"github.com/custodia-labs/domainrag/internal/adapters/driving/tui/components/status"
	"github.com/custodia-labs/domainrag/internal/adapters/driving/tui/keymap"
	"github.com/custodia-labs/domainrag/internal/adapters/driving/tui/messages"
	"github.com/custodia-labs/domainrag/internal/adapters/driving/tui/styles"
	"github.com/custodia-labs/domainrag/internal/core/domain"
	"github.com/custodia-labs/domainrag/internal/core/ports/driving"
)

// View holds the question input, the latest answer and its sources.
type View struct {
	styles    *styles.Styles
	keymap    *keymap.KeyMap
	input     *input.QuestionInput
	sources   *list.SourceList
	statusbar *status.Bar

	queryService driving.QueryService
	ctx          context.Context

	scope  []string
	result *domain.QueryResult

	width      int
	height     int
	ready      bool
	err        error
	pending    bool
	focusInput bool // true while typing, false while browsing sources
}

// NewView creates a new ask view.
func NewView(s *styles.Styles, km *keymap.KeyMap, queryService driving.QueryService) *View {
	if s == nil {
		s = styles.DefaultStyles()
	}
	if km == nil {
		km = keymap.DefaultKeyMap()
	}

	return &View{
		styles:       s,
		keymap:       km,
		input:        input.NewQuestionInput(s),
		sources:      list.NewSourceList(s),
		statusbar:    status.NewBar(s, km),
		queryService: queryService,
		ctx:          context.Background(),
		width:        80,
		height:       24,
		focusInput:   true,
	}
}

// WithContext sets the context queries run under.
func (v *View) WithContext(ctx context.Context) *View {
	v.ctx = ctx
	return v
}

// Init initialises the view.
func (v *View) Init() tea.Cmd {
	return v.input.Init()
}

// Update handles messages for the ask view.
func (v *View) Update(msg tea.Msg) (*View, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		v.SetDimensions(msg.Width, msg.Height)
		return v, nil

	case tea.KeyMsg:
		return v.handleKeyMsg(msg)

	case messages.QueryCompleted:
		v.handleQueryCompleted(msg)
		return v, nil

	case messages.ScopeChanged:
		v.SetScope(msg.Domains)
		return v, nil

	case messages.ErrorOccurred:
		v.setError(msg.Err)
		return v, nil
	}

	var cmd tea.Cmd
	v.input, cmd = v.input.Update(msg)
	return v, cmd
}

// handleKeyMsg processes keyboard input.
func (v *View) handleKeyMsg(msg tea.KeyMsg) (*View, tea.Cmd) {
	if msg.Type == tea.KeyTab {
		return v, func() tea.Msg {
			return messages.ViewChanged{View: messages.ViewDomains}
		}
	}

	if v.focusInput {
		//nolint:exhaustive // handling only relevant key types
		switch msg.Type {
		case tea.KeyEnter:
			question := strings.TrimSpace(v.input.Value())
			if question == "" || v.pending {
				return v, nil
			}
			v.pending = true
			v.err = nil
			v.statusbar.SetState(status.StateThinking)
			return v, v.ask(question)
		case tea.KeyEsc:
			if v.result != nil {
				v.focusInput = false
				v.input.Blur()
			}
			return v, nil
		default:
			var cmd tea.Cmd
			v.input, cmd = v.input.Update(msg)
			return v, cmd
		}
	}

	switch msg.String() {
	case "n":
		v.focusInput = true
		v.input.SetValue("")
		return v, v.input.Focus()
	case "?":
		return v, func() tea.Msg {
			return messages.ViewChanged{View: messages.ViewHelp}
		}
	}

	var cmd tea.Cmd
	v.sources, cmd = v.sources.Update(msg)
	return v, cmd
}

// ask runs the question against the query service off the UI goroutine.
func (v *View) ask(question string) tea.Cmd {
	scope := append([]string(nil), v.scope...)
	return func() tea.Msg {
		if v.queryService == nil {
			return messages.QueryCompleted{Err: ErrNoQueryService}
		}
		result, err := v.queryService.Query(v.ctx, question, scope)
		return messages.QueryCompleted{Result: result, Err: err}
	}
}

func (v *View) handleQueryCompleted(msg messages.QueryCompleted) {
	v.pending = false
	if msg.Err != nil {
		v.setError(msg.Err)
		return
	}

	v.err = nil
	v.result = msg.Result
	v.sources.SetChunks(msg.Result.Chunks)
	v.statusbar.SetState(status.StateAnswered)
	v.statusbar.SetAnswerStats(len(msg.Result.Chunks), msg.Result.Metrics.TotalDuration)

	v.focusInput = false
	v.input.Blur()
}

func (v *View) setError(err error) {
	v.err = err
	v.statusbar.SetState(status.StateError)
	v.statusbar.SetMessage(errorHint(err))
}

// errorHint turns the errors a user can act on into guidance.
func errorHint(err error) string {
	switch {
	case errors.Is(err, domain.ErrNoPopulatedDomains):
		return "no domain holds any documents yet; ingest a directory first"
	case errors.Is(err, domain.ErrNoDomainSelected):
		return "no domain matched the question; pick domains with tab"
	case errors.Is(err, domain.ErrNoContext):
		return "the selected domains returned nothing for this question"
	default:
		return err.Error()
	}
}

// View renders the ask view.
func (v *View) View() string {
	if !v.ready {
		return "Initialising..."
	}

	sections := make([]string, 0, 10)
	sections = append(sections, v.styles.Title.Render("domainrag"), "", v.input.View(), "")

	if v.err != nil {
		sections = append(sections, v.styles.Error.Render("Error: "+errorHint(v.err)), "")
	}

	if v.result != nil {
		header := "Answer"
		if m := v.result.Metrics; len(m.SelectedDomains) > 0 {
			header += " from " + strings.Join(m.SelectedDomains, ", ")
			if m.AutoSelected {
				header += " (auto-selected)"
			}
		}
		answer := v.styles.Answer.Width(max(v.width-4, 20)).Render(v.result.Answer)
		sections = append(sections, v.styles.Subtitle.Render(header), answer, "", v.sources.View())
	}

	sections = append(sections, "", v.statusbar.View())
	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

// SetDimensions sets the view dimensions.
func (v *View) SetDimensions(width, height int) {
	v.width = width
	v.height = height
	v.ready = true

	v.input.SetWidth(width)
	v.sources.SetDimensions(width, height/2)
	v.statusbar.SetWidth(width)
}

// SetScope sets the domains questions are asked of. Empty lets the model choose.
func (v *View) SetScope(domains []string) {
	v.scope = domains
	v.statusbar.SetScope(domains)
}

// Scope returns the domains questions are asked of.
func (v *View) Scope() []string {
	return v.scope
}

// Ready returns whether the view is ready to render.
func (v *View) Ready() bool {
	return v.ready
}

// Question returns the text in the input box.
func (v *View) Question() string {
	return v.input.Value()
}

// SetQuestion sets the text in the input box.
func (v *View) SetQuestion(question string) {
	v.input.SetValue(question)
}

// Result returns the latest answer, if any.
func (v *View) Result() *domain.QueryResult {
	return v.result
}

// Pending reports whether a question is being answered.
func (v *View) Pending() bool {
	return v.pending
}

// Err returns the current error, if any.
func (v *View) Err() error {
	return v.err
}

// InputFocused returns whether the input has focus.
func (v *View) InputFocused() bool {
	return v.focusInput
}

// Status returns the status bar state.
func (v *View) Status() status.State {
	return v.statusbar.State()
}

// Reset returns the view to an empty question.
func (v *View) Reset() {
	v.focusInput = true
	v.input.Focus()
	v.input.SetValue("")
	v.sources.SetChunks(nil)
	v.result = nil
	v.err = nil
	v.pending = false
	v.statusbar.Clear()
}
