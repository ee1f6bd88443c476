package cli

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/spaghettifunk/prism/engine/assets"
	"github.com/spaghettifunk/prism/engine/benchmark"
	"github.com/spaghettifunk/prism/engine/core"
	"github.com/spaghettifunk/prism/engine/history"
)

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("63"))
	labelStyle = lipgloss.NewStyle().Faint(true).Width(14)
	valueStyle = lipgloss.NewStyle().Bold(true)
	faintStyle = lipgloss.NewStyle().Faint(true)
	panelStyle = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("240")).Padding(0, 1)
	warnStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("178"))

	gradeStyles = map[benchmark.Grade]lipgloss.Style{
		benchmark.GradeSPlus: gradeBadge("230", "129"),
		benchmark.GradeS:     gradeBadge("230", "129"),
		benchmark.GradeAPlus: gradeBadge("230", "34"),
		benchmark.GradeA:     gradeBadge("230", "34"),
		benchmark.GradeBPlus: gradeBadge("230", "33"),
		benchmark.GradeB:     gradeBadge("230", "33"),
		benchmark.GradeCPlus: gradeBadge("235", "178"),
		benchmark.GradeC:     gradeBadge("235", "178"),
		benchmark.GradeD:     gradeBadge("230", "160"),
	}
)

func gradeBadge(fg, bg string) lipgloss.Style {
	return lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color(fg)).Background(lipgloss.Color(bg)).Padding(0, 1)
}

func renderGrade(g benchmark.Grade) string {
	style, ok := gradeStyles[g]
	if !ok {
		style = gradeStyles[benchmark.GradeD]
	}
	return style.Render(string(g))
}

func row(label, value string) string {
	return labelStyle.Render(label) + valueStyle.Render(value)
}

// renderResult prints a finished session: score, grade and one line per dimension.
func renderResult(r *benchmark.BenchmarkResult) string {
	var b strings.Builder
	title := fmt.Sprintf("Benchmark %s", r.TestType)
	if r.Stopped {
		title += faintStyle.Render(" (stopped early)")
	}
	b.WriteString(titleStyle.Render(title) + "\n\n")
	b.WriteString(row("Score", fmt.Sprintf("%d ", r.Score)) + renderGrade(r.Grade) + "\n")
	b.WriteString(row("Duration", core.FormatDuration(r.Duration)) + "\n")
	b.WriteString(row("Samples", core.FormatNumber(int64(r.SampleCount))) + "\n")
	if s, ok := r.StabilityPercent(); ok {
		b.WriteString(row("Stability", fmt.Sprintf("%.1f%%", s)) + "\n")
	}
	b.WriteString("\n")

	header := faintStyle.Render(fmt.Sprintf("%-12s %10s %10s %10s %10s %10s", "", "avg", "min", "max", "median", "std"))
	b.WriteString(header + "\n")
	for _, d := range benchmark.Dimensions {
		st, ok := r.Metrics[d]
		if !ok {
			continue
		}
		b.WriteString(fmt.Sprintf("%-12s %10.2f %10.2f %10.2f %10.2f %10.2f\n",
			dimensionLabel(d), st.Average, st.Min, st.Max, st.Median, st.StandardDeviation))
	}
	return panelStyle.Render(strings.TrimRight(b.String(), "\n"))
}

func dimensionLabel(d benchmark.Dimension) string {
	switch d {
	case benchmark.DimensionFPS:
		return "fps"
	case benchmark.DimensionFrameTime:
		return "frame (ms)"
	case benchmark.DimensionObjects:
		return "objects"
	case benchmark.DimensionTriangles:
		return "triangles"
	case benchmark.DimensionMemory:
		return "memory (MB)"
	}
	return string(d)
}

func renderHistory(entries []history.Entry) string {
	if len(entries) == 0 {
		return faintStyle.Render("No benchmark history yet.")
	}
	var b strings.Builder
	b.WriteString(titleStyle.Render("Benchmark history") + "\n\n")
	b.WriteString(faintStyle.Render(fmt.Sprintf("%-20s %-8s %6s %-6s %8s %10s", "date", "tier", "score", "grade", "fps", "duration")) + "\n")
	// Most recent first.
	for i := len(entries) - 1; i >= 0; i-- {
		e := entries[i]
		fps := "-"
		if st, ok := e.Metrics[benchmark.DimensionFPS]; ok {
			fps = fmt.Sprintf("%.1f", st.Average)
		}
		b.WriteString(fmt.Sprintf("%-20s %-8s %6d %-6s %8s %10s\n",
			e.Timestamp.Local().Format("2006-01-02 15:04:05"), e.TestType, e.Score, e.Grade, fps,
			core.FormatDuration(e.Duration)))
	}
	return panelStyle.Render(strings.TrimRight(b.String(), "\n"))
}

func renderTiers(tiers []benchmark.BenchmarkConfig) string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("Benchmark tiers") + "\n\n")
	for _, t := range tiers {
		b.WriteString(row(string(t.Name), fmt.Sprintf("%d objects, %s complexity", t.ObjectCount, t.Complexity)) + "\n")
	}
	return panelStyle.Render(strings.TrimRight(b.String(), "\n"))
}

func renderFormats(formats []assets.FormatInfo) string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("Supported model formats") + "\n\n")
	for _, f := range formats {
		b.WriteString(row("."+f.Extension, f.Name) + " " + faintStyle.Render(f.Description) + "\n")
	}
	return panelStyle.Render(strings.TrimRight(b.String(), "\n"))
}

func renderMetadata(md *assets.ModelMetadata) string {
	var b strings.Builder
	b.WriteString(titleStyle.Render(md.Filename) + faintStyle.Render(" "+string(md.Format)) + "\n\n")
	s := md.Statistics
	b.WriteString(row("Size", core.FormatFileSize(md.FileSize)) + "\n")
	b.WriteString(row("Load time", core.FormatDuration(md.LoadDuration)) + "\n")
	b.WriteString(row("Meshes", core.FormatNumber(int64(s.MeshCount))) + "\n")
	b.WriteString(row("Materials", core.FormatNumber(int64(s.MaterialCount))) + "\n")
	b.WriteString(row("Triangles", core.FormatNumber(int64(s.TriangleCount))) + "\n")
	b.WriteString(row("Textures", core.FormatNumber(int64(s.TextureCount))) + "\n")
	b.WriteString(row("Animations", core.FormatNumber(int64(s.AnimationCount))) + "\n")
	for _, w := range md.Warnings {
		b.WriteString(warnStyle.Render("! "+w) + "\n")
	}
	return panelStyle.Render(strings.TrimRight(b.String(), "\n"))
}

func renderError(path string, err error) string {
	return panelStyle.Render(titleStyle.Render(path) + "\n\n" + warnStyle.Render(err.Error()))
}
