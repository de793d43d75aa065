package tui

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/custodia-labs/domainrag/internal/adapters/driving/tui/keymap"
	"github.com/custodia-labs/domainrag/internal/adapters/driving/tui/messages"
	"github.com/custodia-labs/domainrag/internal/adapters/driving/tui/styles"
	"github.com/custodia-labs/domainrag/internal/adapters/driving/tui/views/ask"
	"github.com/custodia-labs/domainrag/internal/adapters/driving/tui/views/domains"
)

// App is the main TUI application following the Elm architecture.
// It implements tea.Model for use with Bubbletea.
type App struct {
	ports  *Ports
	ctx    context.Context
	styles *styles.Styles
	keymap *keymap.KeyMap

	askView     *ask.View
	domainsView *domains.View

	currentView messages.ViewType

	width  int
	height int
	ready  bool
}

// Ensure App implements tea.Model.
var _ tea.Model = (*App)(nil)

// NewApp creates a new TUI application with the given ports.
// scope preselects the domains questions are asked of.
func NewApp(ports *Ports, scope []string) (*App, error) {
	if err := ports.Validate(); err != nil {
		return nil, fmt.Errorf("creating app: %w", err)
	}

	s := styles.DefaultStyles()
	km := keymap.DefaultKeyMap()
	askView := ask.NewView(s, km, ports.Query)
	askView.SetScope(scope)

	return &App{
		ports:       ports,
		ctx:         context.Background(),
		styles:      s,
		keymap:      km,
		askView:     askView,
		domainsView: domains.NewView(s, ports.Domains),
		currentView: messages.ViewAsk,
	}, nil
}

// WithContext sets the context for the app and its views.
func (a *App) WithContext(ctx context.Context) *App {
	a.ctx = ctx
	a.askView.WithContext(ctx)
	a.domainsView.WithContext(ctx)
	return a
}

// Init implements tea.Model.
func (a *App) Init() tea.Cmd {
	return tea.Batch(
		tea.SetWindowTitle("domainrag"),
		a.askView.Init(),
	)
}

// Update implements tea.Model.
func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		a.SetDimensions(msg.Width, msg.Height)
		return a, nil

	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			return a, tea.Quit
		}
		switch a.currentView {
		case messages.ViewAsk:
			// q quits only once the input has let go of the keyboard.
			if !a.askView.InputFocused() && msg.String() == "q" {
				return a, tea.Quit
			}
			if a.askView.InputFocused() && msg.Type == tea.KeyEsc && a.askView.Result() == nil {
				return a, tea.Quit
			}
			a.askView, cmd = a.askView.Update(msg)
		case messages.ViewDomains:
			a.domainsView, cmd = a.domainsView.Update(msg)
		case messages.ViewHelp:
			if msg.Type == tea.KeyEsc || msg.String() == "?" {
				a.currentView = messages.ViewAsk
			}
		}
		return a, cmd

	case messages.ViewChanged:
		a.currentView = msg.View
		if msg.View == messages.ViewDomains {
			return a, a.domainsView.Init()
		}
		return a, nil

	case messages.DomainsLoaded:
		a.domainsView, cmd = a.domainsView.Update(msg)
		return a, cmd

	case messages.ScopeChanged, messages.QueryCompleted, messages.ErrorOccurred:
		a.askView, cmd = a.askView.Update(msg)
		return a, cmd
	}

	if a.currentView == messages.ViewAsk {
		a.askView, cmd = a.askView.Update(msg)
	}
	return a, cmd
}

// View implements tea.Model.
func (a *App) View() string {
	if !a.ready {
		return "Initialising..."
	}

	switch a.currentView {
	case messages.ViewDomains:
		return a.domainsView.View()
	case messages.ViewHelp:
		return a.viewHelp()
	case messages.ViewAsk:
		return a.askView.View()
	default:
		return a.askView.View()
	}
}

// viewHelp renders the keybindings grouped as the keymap groups them.
func (a *App) viewHelp() string {
	out := a.styles.Title.Render("Help") + "\n"
	for _, group := range a.keymap.FullHelp() {
		out += "\n"
		for _, b := range group {
			h := b.Help()
			out += fmt.Sprintf("  %-10s %s\n", h.Key, h.Desc)
		}
	}
	return out + "\n" + a.styles.Help.Render("[esc] back")
}

// Run starts the TUI application.
func (a *App) Run() error {
	p := tea.NewProgram(a, tea.WithAltScreen(), tea.WithContext(a.ctx))
	_, err := p.Run()
	return err
}

// CurrentView returns the current view type.
func (a *App) CurrentView() messages.ViewType {
	return a.currentView
}

// Scope returns the domains questions are asked of.
func (a *App) Scope() []string {
	return a.askView.Scope()
}

// AskView exposes the ask view for inspection.
func (a *App) AskView() *ask.View {
	return a.askView
}

// Ready returns whether the app has been initialised.
func (a *App) Ready() bool {
	return a.ready
}

// SetDimensions sets the terminal dimensions.
func (a *App) SetDimensions(width, height int) {
	a.width = width
	a.height = height
	a.ready = true
	a.askView.SetDimensions(width, height)
	a.domainsView.SetDimensions(width, height)
}
