package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/lipgloss"

	"github.com/user/minerscan/internal/history"
	"github.com/user/minerscan/internal/model"
)

func tableColumns(width int) []table.Column {
	cols := []table.Column{
		{Title: "Address", Width: 16},
		{Title: "Model", Width: 20},
		{Title: "TH/s", Width: 9},
		{Title: "Power", Width: 8},
		{Title: "W/TH", Width: 6},
		{Title: "Temp", Width: 8},
		{Title: "Fan", Width: 9},
		{Title: "Worker", Width: 18},
	}

	used := 0
	for _, c := range cols {
		used += c.Width + 2
	}
	if extra := width - used - 4; extra > 0 {
		cols[len(cols)-1].Width += extra
	}
	return cols
}

func (m appModel) sectionWidth() int {
	w := m.width - 2
	if w < 40 {
		w = 40
	}
	return w
}

// render draws the full dashboard.
func (m appModel) render() string {
	var sb strings.Builder

	header := HeaderStyle.Width(m.width).Render("⛏  minerscan")
	sb.WriteString(header)
	sb.WriteString("\n")

	sb.WriteString(m.renderFleet())
	sb.WriteString("\n")

	sb.WriteString(m.renderProgress())
	sb.WriteString("\n")

	sb.WriteString(m.renderTable())
	sb.WriteString("\n")

	if m.detail != "" {
		sb.WriteString(m.renderDetail())
		sb.WriteString("\n")
	}

	if m.status != "" {
		sb.WriteString(DimStyle.Render(m.status))
		sb.WriteString("\n")
	}

	help := "↑/↓ move • enter open • esc close • / search • s sort • S order • space select • " +
		"u resume • p pause • i identify • r refresh • c record • x export rec • n scan • e export • q quit"
	sb.WriteString(HelpStyle.Width(m.width).Render(help))

	return sb.String()
}

func (m appModel) renderFleet() string {
	stats := m.engine.Registry().Stats()

	left := fmt.Sprintf(
		"%s %s\n%s %s\n%s %s",
		LabelStyle.Render("Miners:"),
		ValueStyle.Render(fmt.Sprintf("%d (%d mining)", stats.Count, stats.Mining)),
		LabelStyle.Render("Total:"),
		ValueStyle.Render(fmt.Sprintf("%.2f TH/s", stats.TotalHashrate)),
		LabelStyle.Render("Average:"),
		ValueStyle.Render(fmt.Sprintf("%.2f TH/s", stats.AvgHashrate)),
	)
	right := fmt.Sprintf(
		"%s %s\n%s %s",
		LabelStyle.Render("Efficiency:"),
		ValueStyle.Render(fmt.Sprintf("%.1f W/TH", stats.AvgEfficiency)),
		LabelStyle.Render("Temperature:"),
		TempStyle(stats.AvgTemperature).Render(fmt.Sprintf("%.1f°C", stats.AvgTemperature)),
	)

	fleet := m.engine.History().Fleet()
	values := make([]float64, len(fleet))
	for i, p := range fleet {
		values[i] = p.TotalHashrate
	}
	spark := Sparkline(values, max(10, m.sectionWidth()-70))

	body := lipgloss.JoinHorizontal(lipgloss.Top, left, "   ", right, "   ", spark)
	return SectionStyle.Width(m.sectionWidth()).Render(
		SectionTitleStyle.Render("Fleet") + "\n" + body)
}

func (m appModel) renderProgress() string {
	st := m.engine.Progress().Snapshot()
	if !st.Scanning {
		line := DimStyle.Render("idle")
		if st.LastPassSeconds > 0 {
			line = DimStyle.Render(fmt.Sprintf("last pass: %d found in %s",
				st.Found, st.Elapsed(time.Now()).Round(time.Second)))
		}
		return SectionStyle.Width(m.sectionWidth()).Render(
			SectionTitleStyle.Render("Scan") + "  " + line)
	}

	line := fmt.Sprintf("%s %s %d/%d  range %d/%d  found %d  %s",
		m.spinner.View(),
		m.progress.ViewAs(st.Fraction()),
		st.ScannedAddresses, st.TotalAddresses,
		st.ScannedRanges, st.TotalRanges,
		st.Found,
		st.CurrentAddress,
	)
	return SectionStyle.Width(m.sectionWidth()).Render(
		SectionTitleStyle.Render("Scan") + "\n" + line)
}

func (m appModel) renderTable() string {
	title := fmt.Sprintf("Miners  sort: %s", m.query().SortBy)
	if m.desc {
		title += " ↓"
	} else {
		title += " ↑"
	}
	if len(m.selected) > 0 {
		title += fmt.Sprintf("  selected: %d", len(m.selected))
	}

	var body string
	if len(m.entries) == 0 {
		body = DimStyle.Render("No miners discovered yet. Press n to scan the saved ranges.")
	} else {
		body = m.table.View()
	}

	if m.searching || m.search.Value() != "" {
		body = m.search.View() + "\n" + body
	}

	return SectionStyle.Width(m.sectionWidth()).Render(
		SectionTitleStyle.Render(title) + "\n" + body)
}

func (m appModel) renderDetail() string {
	entry, ok := m.engine.Registry().Get(m.detail)
	if !ok || entry.Reading == nil {
		return SectionStyle.Width(m.sectionWidth()).Render(
			DimStyle.Render(m.detail + " is no longer in the registry"))
	}
	r := entry.Reading
	d := entry.Display

	identity := fmt.Sprintf(
		"%s %s\n%s %s\n%s %s\n%s %s\n%s %s",
		LabelStyle.Render("Hostname:"), ValueStyle.Render(d.Hostname),
		LabelStyle.Render("Model:"), ValueStyle.Render(d.Model),
		LabelStyle.Render("Firmware:"), ValueStyle.Render(d.Firmware),
		LabelStyle.Render("Uptime:"), ValueStyle.Render(r.Uptime.Round(time.Second).String()),
		LabelStyle.Render("Mining:"), RenderStatus(r.Mining, "yes", "no"),
	)

	var boards []string
	for _, b := range r.Hashboards {
		hr, temp := 0.0, 0.0
		if b.Hashrate != nil {
			hr = *b.Hashrate
		}
		if b.Temperature != nil {
			temp = *b.Temperature
		}
		boards = append(boards, fmt.Sprintf("board %d %s %6.2f TH/s %s",
			b.Index, RenderBar(hr, boardScale(r), 12), hr,
			TempStyle(temp).Render(fmt.Sprintf("%.0f°C", temp))))
	}
	for _, f := range r.Fans {
		if f.RPM != nil {
			boards = append(boards, fmt.Sprintf("fan %d  %.0f RPM", f.Index, *f.RPM))
		}
	}

	width := max(10, m.sectionWidth()-6)
	coarse := m.engine.History().Coarse(m.detail)
	fine := m.engine.History().Fine(m.detail)
	charts := fmt.Sprintf("%s\n%s\n%s\n%s",
		DimStyle.Render(fmt.Sprintf("per pass (%d)", len(coarse))),
		Sparkline(coarseValues(coarse), width),
		DimStyle.Render(fmt.Sprintf("live (%d)", len(fine))),
		Sparkline(fineValues(fine), width),
	)

	title := fmt.Sprintf("%s  %s TH/s  %s", m.detail, d.Hashrate, d.Wattage)
	if state, ok := m.engine.Observer().Recording(m.detail); ok {
		if state.Recording() {
			title += "  " + ErrorStyle.Render(fmt.Sprintf("● REC %d rows", state.Rows()))
		} else {
			title += "  " + DimStyle.Render(fmt.Sprintf("recorded %d rows", state.Rows()))
		}
	}

	body := lipgloss.JoinHorizontal(lipgloss.Top, identity, "   ", strings.Join(boards, "\n"))
	return SectionStyle.Width(m.sectionWidth()).Render(
		SectionTitleStyle.Render(title) + "\n" + body + "\n" + charts)
}

// boardScale is the bar maximum: the largest board hashrate of the miner.
func boardScale(r *model.DeviceReading) float64 {
	var top float64
	for _, b := range r.Hashboards {
		if b.Hashrate != nil && *b.Hashrate > top {
			top = *b.Hashrate
		}
	}
	return top
}

func coarseValues(points []history.HashratePoint) []float64 {
	out := make([]float64, len(points))
	for i, p := range points {
		out[i] = p.Hashrate
	}
	return out
}

func fineValues(points []history.MetricsPoint) []float64 {
	out := make([]float64, len(points))
	for i, p := range points {
		out[i] = p.TotalHashrate
	}
	return out
}
