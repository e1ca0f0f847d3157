package report

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/user/minerscan/internal/model"
	"github.com/user/minerscan/internal/util"
)

// FormatMarkdown renders a report as markdown.
func FormatMarkdown(data *ReportData) string {
	var sb strings.Builder

	sb.WriteString("# Fleet Report\n\n")
	sb.WriteString(fmt.Sprintf("Generated: %s\n\n", data.GeneratedAt.Format("2006-01-02 15:04:05")))

	if p := data.LastPass; p != nil {
		sb.WriteString("## Last Scan\n\n")
		sb.WriteString(fmt.Sprintf("- Pass: `%s`\n", p.ID))
		sb.WriteString(fmt.Sprintf("- Ranges: %s\n", strings.Join(p.Ranges, ", ")))
		sb.WriteString(fmt.Sprintf("- Finished: %s (%s)\n", p.FinishedAt.Format("2006-01-02 15:04:05"), p.Duration))
		sb.WriteString(fmt.Sprintf("- Found: %d miners in %d addresses", p.Found, p.TotalAddresses))
		if p.FailedRanges > 0 {
			sb.WriteString(fmt.Sprintf(", %d ranges failed", p.FailedRanges))
		}
		sb.WriteString("\n\n")
	}

	s := data.Stats
	sb.WriteString("## Summary\n\n")
	sb.WriteString("| Metric | Value |\n|---|---|\n")
	sb.WriteString(fmt.Sprintf("| Miners | %d |\n", s.Count))
	sb.WriteString(fmt.Sprintf("| Mining | %d |\n", s.Mining))
	sb.WriteString(fmt.Sprintf("| Total hashrate | %.2f TH/s |\n", s.TotalHashrate))
	sb.WriteString(fmt.Sprintf("| Average hashrate | %.2f TH/s |\n", s.AvgHashrate))
	sb.WriteString(fmt.Sprintf("| Average efficiency | %.1f W/TH |\n", s.AvgEfficiency))
	sb.WriteString(fmt.Sprintf("| Average temperature | %.1f°C |\n\n", s.AvgTemperature))

	if len(data.Models) > 0 {
		sb.WriteString("## Models\n\n")
		sb.WriteString("| Model | Count | Hashrate (TH/s) | Efficiency (W/TH) |\n|---|---|---|---|\n")
		for _, m := range data.Models {
			sb.WriteString(fmt.Sprintf("| %s | %d | %.2f | %.1f |\n", m.Model, m.Count, m.TotalHashrate, m.AvgEfficiency))
		}
		sb.WriteString("\n")
		sb.WriteString(GenerateModelPie(data.Models))
		sb.WriteString("\n")
		sb.WriteString(GenerateHashrateChart(data.Models))
		sb.WriteString("\n")
	}

	writeRanking(&sb, "Most Efficient", data.MostEfficient)
	writeRanking(&sb, "Least Efficient", data.LeastEfficient)
	writeRanking(&sb, "Not Mining", data.Idle)
	writeRanking(&sb, fmt.Sprintf("Running Hot (≥ %.0f°C)", HotThreshold), data.Hot)

	return sb.String()
}

func writeRanking(sb *strings.Builder, title string, entries []model.MinerEntry) {
	if len(entries) == 0 {
		return
	}
	sb.WriteString(fmt.Sprintf("## %s\n\n", title))
	sb.WriteString("| Address | Model | Hashrate | Efficiency | Temperature |\n|---|---|---|---|---|\n")
	for _, e := range entries {
		sb.WriteString(fmt.Sprintf("| %s | %s | %s | %s | %s |\n",
			e.Address, e.Display.Model, e.Display.Hashrate, e.Display.Efficiency, e.Display.Temperature))
	}
	sb.WriteString("\n")
}

// WriteMarkdownFile writes the report to a timestamped file in dir.
func WriteMarkdownFile(data *ReportData, dir string) (string, error) {
	if err := util.EnsureDir(dir); err != nil {
		return "", fmt.Errorf("failed to create report dir: %w", err)
	}

	name := fmt.Sprintf("fleet_report_%s.md", data.GeneratedAt.Format("2006-01-02_15-04-05"))
	path := filepath.Join(dir, name)

	if err := os.WriteFile(path, []byte(FormatMarkdown(data)), 0644); err != nil {
		return "", fmt.Errorf("failed to write report: %w", err)
	}
	return path, nil
}
