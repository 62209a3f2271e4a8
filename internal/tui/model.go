package tui

import (
	"fmt"
	"strings"
	"sync"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/vango-dev/vstore/pkg/demo"
)

// Options configures the demo UI.
type Options struct {
	// App provides the stores. Required.
	App *demo.App
}

// changedMsg reports that at least one watched store changed.
type changedMsg struct{}

// Model is the Bubble Tea model of the demo UI. It renders the counter,
// theme and cart stores and drives their actions from key presses.
type Model struct {
	app    *demo.App
	keys   keyMap
	help   help.Model
	width  int
	status string

	changes     chan struct{}
	done        chan struct{}
	closeOnce   *sync.Once
	unsubscribe []func()
}

// New creates the model and subscribes to the stores it renders. Call
// Close once the program has exited.
func New(opts Options) Model {
	m := Model{
		app:     opts.App,
		keys:    DefaultKeyMap(),
		help:    help.New(),
		changes:   make(chan struct{}, 1),
		done:      make(chan struct{}),
		closeOnce: &sync.Once{},
	}
	for _, name := range []string{"counter", "theme", "cart"} {
		b, ok := m.app.Binding(name)
		if !ok {
			continue
		}
		m.unsubscribe = append(m.unsubscribe, b.Subscribe(func(demo.Snapshot) {
			select {
			case m.changes <- struct{}{}:
			default:
			}
		}))
	}
	return m
}

// Close removes the store subscriptions and releases a pending
// waitForChange command.
func (m Model) Close() {
	m.closeOnce.Do(func() {
		for _, fn := range m.unsubscribe {
			fn()
		}
		close(m.done)
	})
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return tea.Batch(tea.SetWindowTitle("vstore"), m.waitForChange())
}

// waitForChange blocks until a watched store changes.
func (m Model) waitForChange() tea.Cmd {
	changes, done := m.changes, m.done
	return func() tea.Msg {
		select {
		case <-changes:
			return changedMsg{}
		case <-done:
			return nil
		}
	}
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.help.Width = msg.Width
		return m, nil

	case changedMsg:
		return m, m.waitForChange()

	case tea.KeyMsg:
		return m.handleKey(msg)
	}
	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.Help):
		m.help.ShowAll = !m.help.ShowAll
	case key.Matches(msg, m.keys.Increment):
		m.app.Counter.Increment()
	case key.Matches(msg, m.keys.Decrement):
		m.app.Counter.Decrement()
	case key.Matches(msg, m.keys.Reset):
		m.app.Counter.Reset()
		m.status = "Counter reset"
	case key.Matches(msg, m.keys.CycleTheme):
		next := nextTheme(m.app.Theme.Get().Theme)
		if err := m.app.Theme.SetTheme(next); err != nil {
			m.status = err.Error()
		} else {
			m.status = "Theme set to " + string(next)
		}
	case key.Matches(msg, m.keys.AddA):
		m.addProduct(1)
	case key.Matches(msg, m.keys.AddB):
		m.addProduct(2)
	case key.Matches(msg, m.keys.AddC):
		m.addProduct(3)
	case key.Matches(msg, m.keys.ClearCart):
		m.app.Cart.ClearCart()
		m.status = "Cart cleared"
	}
	return m, nil
}

func (m *Model) addProduct(id int) {
	p, ok := demo.FindProduct(id)
	if !ok {
		return
	}
	m.app.Cart.AddItem(p)
	m.status = "Added " + p.Name
}

func nextTheme(current demo.Theme) demo.Theme {
	switch current {
	case demo.ThemeLight:
		return demo.ThemeDark
	case demo.ThemeDark:
		return demo.ThemeSystem
	default:
		return demo.ThemeLight
	}
}

// View implements tea.Model.
func (m Model) View() string {
	theme := m.app.Theme.Get().Theme
	s := stylesFor(theme)
	cart := m.app.Cart.Get()

	row := func(label, value string) string {
		return s.Label.Render(label) + s.Value.Render(value)
	}

	counter := s.Panel.Render(lipgloss.JoinVertical(lipgloss.Left,
		s.Title.Render("Counter"),
		row("count", fmt.Sprint(m.app.Counter.Get().Count)),
	))
	prefs := s.Panel.Render(lipgloss.JoinVertical(lipgloss.Left,
		s.Title.Render("Theme"),
		row("theme", string(theme)),
	))

	lines := []string{s.Title.Render("Cart")}
	if len(cart.Items) == 0 {
		lines = append(lines, s.Muted.Render("empty"))
	}
	for _, item := range cart.Items {
		lines = append(lines, row(item.Name, fmt.Sprintf("%d x $%.2f", item.Quantity, item.Price)))
	}
	lines = append(lines,
		row("items", fmt.Sprint(demo.TotalItems(cart))),
		row("total", fmt.Sprintf("$%.2f", demo.TotalPrice(cart))),
	)
	cartPanel := s.Panel.Render(lipgloss.JoinVertical(lipgloss.Left, lines...))

	var b strings.Builder
	b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, counter, " ", prefs))
	b.WriteString("\n")
	b.WriteString(cartPanel)
	b.WriteString("\n")
	if m.status != "" {
		b.WriteString(s.Status.Render(m.status))
		b.WriteString("\n")
	}
	b.WriteString(m.help.View(m.keys))
	return b.String()
}
