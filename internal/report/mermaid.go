package report

import (
	"fmt"
	"strings"
)

// GenerateModelPie renders the model distribution as a Mermaid pie chart.
func GenerateModelPie(models []ModelSummary) string {
	var sb strings.Builder

	sb.WriteString("```mermaid\n")
	sb.WriteString("pie showData\n")
	sb.WriteString("    title Miners by model\n")
	for _, m := range models {
		sb.WriteString(fmt.Sprintf("    \"%s\" : %d\n", escapeLabel(m.Model), m.Count))
	}
	sb.WriteString("```\n")

	return sb.String()
}

// GenerateHashrateChart renders per-model hashrate as a Mermaid bar chart.
func GenerateHashrateChart(models []ModelSummary) string {
	if len(models) == 0 {
		return ""
	}

	labels := make([]string, len(models))
	values := make([]string, len(models))
	for i, m := range models {
		labels[i] = fmt.Sprintf("\"%s\"", escapeLabel(m.Model))
		values[i] = fmt.Sprintf("%.1f", m.TotalHashrate)
	}

	var sb strings.Builder
	sb.WriteString("```mermaid\n")
	sb.WriteString("xychart-beta\n")
	sb.WriteString("    title \"Hashrate by model (TH/s)\"\n")
	sb.WriteString(fmt.Sprintf("    x-axis [%s]\n", strings.Join(labels, ", ")))
	sb.WriteString(fmt.Sprintf("    bar [%s]\n", strings.Join(values, ", ")))
	sb.WriteString("```\n")

	return sb.String()
}

func escapeLabel(s string) string {
	return strings.ReplaceAll(s, "\"", "'")
}
