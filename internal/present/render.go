package present

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/rbright/voxseal/internal/upload"
)

// Theme is the terminal colour scheme.
type Theme struct {
	Primary lipgloss.Color
	Good    lipgloss.Color
	Fair    lipgloss.Color
	Poor    lipgloss.Color
	Dim     lipgloss.Color
}

var DefaultTheme = Theme{
	Primary: lipgloss.Color("#00b4d8"),
	Good:    lipgloss.Color("#2ecc71"),
	Fair:    lipgloss.Color("#f1c40f"),
	Poor:    lipgloss.Color("#e74c3c"),
	Dim:     lipgloss.Color("#6e7681"),
}

type Styles struct {
	Title  lipgloss.Style
	Label  lipgloss.Style
	Good   lipgloss.Style
	Fair   lipgloss.Style
	Poor   lipgloss.Style
	Dim    lipgloss.Style
	Error  lipgloss.Style
	Dialog lipgloss.Style
}

// NewStyles derives styles from t; without colour only layout survives.
func NewStyles(t Theme, color bool) Styles {
	if !color {
		plain := lipgloss.NewStyle()
		return Styles{
			Title:  plain.Bold(true),
			Label:  plain,
			Good:   plain,
			Fair:   plain,
			Poor:   plain,
			Dim:    plain,
			Error:  plain,
			Dialog: plain.Border(lipgloss.NormalBorder()).Padding(0, 2),
		}
	}
	return Styles{
		Title:  lipgloss.NewStyle().Bold(true).Foreground(t.Primary),
		Label:  lipgloss.NewStyle().Bold(true),
		Good:   lipgloss.NewStyle().Foreground(t.Good),
		Fair:   lipgloss.NewStyle().Foreground(t.Fair),
		Poor:   lipgloss.NewStyle().Foreground(t.Poor),
		Dim:    lipgloss.NewStyle().Foreground(t.Dim),
		Error:  lipgloss.NewStyle().Bold(true).Foreground(t.Poor),
		Dialog: lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(t.Primary).Padding(0, 2),
	}
}

type Renderer struct {
	styles Styles
}

func NewRenderer(color bool) *Renderer {
	return &Renderer{styles: NewStyles(DefaultTheme, color)}
}

// Selected is the confirmation line after picking a file.
func (r *Renderer) Selected(file upload.File) string {
	return r.styles.Dim.Render("Selected: " + file.Describe())
}

func (r *Renderer) Error(msg string) string {
	return r.styles.Error.Render("error: " + msg)
}

// Dialog frames the outcome modal text.
func (r *Renderer) Dialog(text string, hint string) string {
	body := r.styles.Title.Render(text)
	if hint != "" {
		body += "\n" + r.styles.Dim.Render(hint)
	}
	return r.styles.Dialog.Render(body)
}

// Render lays out any view as terminal text.
func (r *Renderer) Render(v View) string {
	switch view := v.(type) {
	case *EmbedView:
		return r.embed(view)
	case *ExtractView:
		return r.extract(view)
	case *CompareView:
		return r.compare(view)
	default:
		return ""
	}
}

func (r *Renderer) artifactLine(label string, a Artifact) string {
	where := a.Name
	if a.Path != "" {
		where = a.Path
	}
	return fmt.Sprintf("%s %s (%s)", r.styles.Label.Render(label+":"), where, a.Size)
}

func (r *Renderer) embed(v *EmbedView) string {
	lines := []string{r.styles.Title.Render("Stego Image")}
	if v.Message != "" {
		lines = append(lines, v.Message)
	}
	lines = append(lines, r.artifactLine("Download", v.StegoImage))
	if v.UniqueID != "" {
		lines = append(lines, r.styles.Dim.Render("Unique ID: "+v.UniqueID))
	}
	return strings.Join(lines, "\n")
}

func (r *Renderer) extract(v *ExtractView) string {
	lines := []string{r.styles.Title.Render("Extracted Audio"), r.artifactLine("Download", v.Audio)}
	if v.OriginalFilename != "" {
		lines = append(lines, r.styles.Dim.Render("Original file: "+v.OriginalFilename))
	}
	if v.Match != nil {
		style := r.styles.Poor
		if v.Match.Found {
			style = r.styles.Good
		}
		lines = append(lines, style.Render(v.Match.Text))
	}
	return strings.Join(lines, "\n")
}

func (r *Renderer) compare(v *CompareView) string {
	verdict := r.styles.Poor
	if v.SameSpeaker {
		verdict = r.styles.Good
	}

	lines := []string{
		r.styles.Title.Render("Voice Comparison"),
		fmt.Sprintf("%s %s", r.styles.Label.Render("Overall similarity:"), r.bandStyle(similarityBand(v.Score)).Render(v.Similarity)),
		fmt.Sprintf("%s %s", r.styles.Label.Render("Verdict:"), verdict.Render(v.Verdict)),
		"",
		r.styles.Label.Render(v.Breakdown),
	}

	width := 0
	for _, row := range v.Features {
		width = max(width, len(row.Label))
	}
	for _, row := range v.Features {
		label := row.Label + strings.Repeat(" ", width-len(row.Label))
		line := "  " + label + "  " + r.bandStyle(row.Status).Render(row.Display)
		switch {
		case v.SameSpeaker:
			line += "  " + r.bandStyle(row.Status).Render(bar(row.Value))
		case row.Threshold != nil:
			line += r.styles.Dim.Render(" (threshold " + row.Limit + ")")
		}
		lines = append(lines, line)
	}
	if len(v.Features) == 0 {
		lines = append(lines, r.styles.Dim.Render("  no feature data"))
	}

	if v.Spectrum != nil {
		lines = append(lines, "", r.artifactLine("Spectrum plot", *v.Spectrum))
	}
	return strings.Join(lines, "\n")
}

func (r *Renderer) bandStyle(status Status) lipgloss.Style {
	switch status {
	case StatusGood, StatusPass:
		return r.styles.Good
	case StatusFair:
		return r.styles.Fair
	case StatusPoor, StatusFail:
		return r.styles.Poor
	default:
		return r.styles.Dim
	}
}

const barWidth = 20

// bar draws a 0..100 value as a fixed-width gauge.
func bar(value float64) string {
	filled := int(value / 100 * barWidth)
	filled = min(max(filled, 0), barWidth)
	return strings.Repeat("█", filled) + strings.Repeat("░", barWidth-filled)
}
