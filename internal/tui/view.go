package tui

import (
	"fmt"
	"strings"

	"github.com/NimbleMarkets/ntcharts/barchart"
	"github.com/charmbracelet/lipgloss"

	"github.com/tinytelemetry/errtop/internal/model"
)

func (m *DashboardModel) View() string {
	width := m.width
	if width <= 0 {
		width = 80
	}

	sections := []string{
		m.renderHeader(width),
		m.renderRanking(width),
	}
	if len(m.snap) > 0 {
		sections = append(sections, m.renderChart(width))
	}
	sections = append(sections, m.renderFooter(width))
	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

func (m *DashboardModel) renderHeader(width int) string {
	title := titleStyle.Render(fmt.Sprintf("errtop · top %d errors", m.k))

	var state string
	if m.paused {
		state = pausedStyle.Render("PAUSED")
	} else {
		state = liveStyle.Render("● live")
	}

	st := m.stats
	summary := helpStyle.Render(fmt.Sprintf("%s · %d lines · %d errors · %d distinct",
		m.source, st.Ingest.Lines, st.Ranker.Recorded, st.Ranker.Distinct))
	if st.Ranker.Approximate {
		summary += " " + helpStyle.Render(fmt.Sprintf("(%s, approximate)", st.Ranker.Strategy))
	}

	line := lipgloss.JoinHorizontal(lipgloss.Center, title, " ", state, " ", summary)
	return lipgloss.NewStyle().MaxWidth(width).Render(line)
}

func (m *DashboardModel) renderRanking(width int) string {
	inner := max(width-4, 20)

	var b strings.Builder
	b.WriteString(chartTitleStyle.Render("Most frequent errors"))
	b.WriteString("\n")

	if len(m.snap) == 0 {
		b.WriteString(helpStyle.Render("No errors recorded yet"))
		return sectionStyle.Width(inner).Render(b.String())
	}

	countWidth := len(fmt.Sprint(m.snap[0].Count))
	for i, rm := range m.snap {
		rank := rankStyle.Render(fmt.Sprintf("%2d.", i+1))
		count := countStyle.Render(fmt.Sprintf("%*d", countWidth, rm.Count))
		room := inner - countWidth - 6
		b.WriteString(fmt.Sprintf("%s %s  %s", rank, count, truncate(rm.Message, room)))
		if i < len(m.snap)-1 {
			b.WriteString("\n")
		}
	}
	return sectionStyle.Width(inner).Render(b.String())
}

func (m *DashboardModel) renderChart(width int) string {
	inner := max(width-4, 20)
	chartHeight := 8
	if m.height > 0 && m.height < 30 {
		chartHeight = 5
	}
	return sectionStyle.Width(inner).Render(
		lipgloss.JoinVertical(lipgloss.Left,
			chartTitleStyle.Render("Share of top errors"),
			renderBarChart(m.snap, inner, chartHeight),
		),
	)
}

// renderBarChart draws one bar per ranked message, labelled by rank.
func renderBarChart(snap model.Snapshot, width, height int) string {
	bc := barchart.New(width, height,
		barchart.WithBarGap(1),
		barchart.WithBarWidth(max(1, min(6, width/(2*max(1, len(snap)))))),
	)
	for i, rm := range snap {
		bc.Push(barchart.BarData{
			Label: fmt.Sprint(i + 1),
			Values: []barchart.BarValue{
				{Name: rm.Message, Value: float64(rm.Count), Style: barStyle},
			},
		})
	}
	bc.Draw()
	return bc.View()
}

func (m *DashboardModel) renderFooter(width int) string {
	var parts []string
	for _, b := range m.keys.ShortHelp() {
		h := b.Help()
		parts = append(parts, h.Key+" "+h.Desc)
	}
	footer := helpStyle.Render(strings.Join(parts, " · "))
	if m.lastError != "" {
		footer = errorStyle.Render("error: "+m.lastError) + "\n" + footer
	} else if !m.lastFetchAt.IsZero() {
		footer = helpStyle.Render("updated "+m.lastFetchAt.Format("15:04:05")) + "  " + footer
	}
	return lipgloss.NewStyle().MaxWidth(width).Render(footer)
}

func truncate(s string, n int) string {
	if n <= 1 {
		return ""
	}
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
