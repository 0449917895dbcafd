package session

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/bnema/evm-wallet-cli/internal/domain"
	tea "github.com/charmbracelet/bubbletea"
)

var ErrUnexpectedRenderModel = errors.New("unexpected final bubbletea model type")

type renderReadyMsg struct{}

// staticModel renders a precomputed view once and quits.
type staticModel struct {
	render func(styles) string
	styles styles
	output string
}

func (m staticModel) Init() tea.Cmd {
	return func() tea.Msg {
		return renderReadyMsg{}
	}
}

func (m staticModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg.(type) {
	case renderReadyMsg:
		m.output = m.render(m.styles)
		return m, tea.Quit
	default:
		return m, nil
	}
}

func (m staticModel) View() string {
	return m.output
}

func run(render func(styles) string) (string, error) {
	p := tea.NewProgram(
		staticModel{render: render, styles: newStyles()},
		tea.WithInput(nil),
		tea.WithOutput(io.Discard),
	)

	finalModel, err := p.Run()
	if err != nil {
		return "", err
	}

	rendered, ok := finalModel.(staticModel)
	if !ok {
		return "", ErrUnexpectedRenderModel
	}

	return rendered.View(), nil
}

func Render(snapshot domain.Snapshot, catalog domain.ChainCatalog) (string, error) {
	return run(func(s styles) string {
		return renderSnapshot(snapshot, catalog, s)
	})
}

func RenderAccount(details domain.AccountDetails) (string, error) {
	return run(func(s styles) string {
		return renderAccount(details, s)
	})
}

// RenderNetworks lists the catalog and marks the current chain.
func RenderNetworks(catalog domain.ChainCatalog, current uint64) (string, error) {
	return run(func(s styles) string {
		return renderNetworks(catalog.List(), current, s)
	})
}

func RenderMints(records []domain.MintRecord, now time.Time) (string, error) {
	return run(func(s styles) string {
		return renderMints(records, now, s)
	})
}

type snapshotMsg struct {
	snapshot domain.Snapshot
	open     bool
}

// watchModel redraws on every snapshot until the feed closes.
type watchModel struct {
	updates <-chan domain.Snapshot
	catalog domain.ChainCatalog
	styles  styles
	current domain.Snapshot
	done    bool
}

func (m watchModel) next() tea.Cmd {
	return func() tea.Msg {
		snapshot, open := <-m.updates
		return snapshotMsg{snapshot: snapshot, open: open}
	}
}

func (m watchModel) Init() tea.Cmd {
	return m.next()
}

func (m watchModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case snapshotMsg:
		if !msg.open {
			m.done = true
			return m, tea.Quit
		}
		m.current = msg.snapshot
		return m, m.next()
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			m.done = true
			return m, tea.Quit
		}
		return m, nil
	default:
		return m, nil
	}
}

func (m watchModel) View() string {
	view := renderSnapshot(m.current, m.catalog, m.styles)
	if m.done {
		return view + "\n"
	}
	return view + "\n" + m.styles.empty.Render("press q to quit") + "\n"
}

// Watch renders initial and then every snapshot from updates until the
// channel closes or the user quits. in may be nil.
func Watch(ctx context.Context, initial domain.Snapshot, updates <-chan domain.Snapshot, catalog domain.ChainCatalog, in io.Reader, out io.Writer) error {
	p := tea.NewProgram(
		watchModel{updates: updates, catalog: catalog, styles: newStyles(), current: initial},
		tea.WithInput(in),
		tea.WithOutput(out),
		tea.WithContext(ctx),
	)

	_, err := p.Run()
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return nil
	}
	return err
}
