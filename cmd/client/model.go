package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/shopspring/decimal"

	"github.com/torcoste/orderbook-aggregator/internal/rpc"
	"github.com/torcoste/orderbook-aggregator/pkg/ui"
)

// summaryMsg carries a freshly received Summary into the model.
type summaryMsg struct {
	summary *rpc.Summary
}

// errMsg carries a terminal stream error into the model.
type errMsg struct {
	err error
}

// model renders the most recently received book summary as a table, the
// way the reference client clears the screen and reprints on every
// update rather than maintaining a scrollback.
type model struct {
	addr    string
	summary *rpc.Summary
	err     error
	quit    bool
	keys    ui.KeyMap
}

func newModel(addr string) model {
	return model{addr: addr, keys: ui.DefaultKeyMap()}
}

func (m model) Init() tea.Cmd {
	return nil
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if key.Matches(msg, m.keys.Quit) {
			m.quit = true
			return m, tea.Quit
		}
	case summaryMsg:
		m.summary = msg.summary
	case errMsg:
		m.err = msg.err
		return m, tea.Quit
	}
	return m, nil
}

func (m model) View() string {
	if m.quit {
		return ""
	}

	var b strings.Builder
	b.WriteString(ui.TitleStyle.Render(fmt.Sprintf(" order book summary — %s ", m.addr)))
	b.WriteString("\n\n")

	if m.err != nil {
		b.WriteString(ui.StatusDisconnected.Render(fmt.Sprintf("stream error: %v", m.err)))
		b.WriteString("\n")
		return b.String()
	}

	if m.summary == nil {
		b.WriteString(ui.MutedValue.Render("waiting for first summary..."))
		b.WriteString("\n")
		return b.String()
	}

	spreadStyle := ui.PositiveValue
	if m.summary.Spread < 0 {
		spreadStyle = ui.NegativeValue
	}
	b.WriteString(fmt.Sprintf("Current spread: %s\n\n", spreadStyle.Render(formatDecimal(m.summary.Spread))))

	header := []string{"Bid Exchange", "Bid Amount", "Bid Price", "Ask Price", "Ask Amount", "Ask Exchange"}
	b.WriteString(ui.TableHeaderStyle.Render(renderRow(header)))
	b.WriteString("\n")

	rows := min(len(m.summary.Bids), len(m.summary.Asks))
	for i := 0; i < rows; i++ {
		bid := m.summary.Bids[i]
		ask := m.summary.Asks[i]
		row := []string{
			bid.Exchange,
			formatDecimal(bid.Amount),
			formatDecimal(bid.Price),
			formatDecimal(ask.Price),
			formatDecimal(ask.Amount),
			ask.Exchange,
		}
		b.WriteString(ui.TableCellStyle.Render(renderRow(row)))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(ui.HelpStyle.Render("q: quit"))
	return b.String()
}

// renderRow lays out cells in fixed-width columns so the table stays
// aligned as prices and amounts fluctuate in width.
func renderRow(cells []string) string {
	const colWidth = 14
	var b strings.Builder
	for _, c := range cells {
		b.WriteString(lipgloss.NewStyle().Width(colWidth).Render(c))
	}
	return b.String()
}

// formatDecimal renders a float64 through shopspring/decimal purely for
// display, so the client's printed precision doesn't depend on Go's
// default float formatting.
func formatDecimal(v float64) string {
	return decimal.NewFromFloat(v).StringFixed(8)
}
