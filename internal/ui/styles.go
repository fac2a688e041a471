package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/ticketdrop/ticketdrop/internal/types"
)

// Ayu palette, adaptive to light and dark terminals.
var (
	ColorPass   = lipgloss.AdaptiveColor{Light: "#86b300", Dark: "#c2d94c"}
	ColorWarn   = lipgloss.AdaptiveColor{Light: "#f2ae49", Dark: "#ffb454"}
	ColorFail   = lipgloss.AdaptiveColor{Light: "#f07171", Dark: "#f07178"}
	ColorMuted  = lipgloss.AdaptiveColor{Light: "#828c99", Dark: "#6c7680"}
	ColorAccent = lipgloss.AdaptiveColor{Light: "#399ee6", Dark: "#59c2ff"}
)

var (
	PassStyle   = lipgloss.NewStyle().Foreground(ColorPass)
	WarnStyle   = lipgloss.NewStyle().Foreground(ColorWarn)
	FailStyle   = lipgloss.NewStyle().Foreground(ColorFail)
	MutedStyle  = lipgloss.NewStyle().Foreground(ColorMuted)
	AccentStyle = lipgloss.NewStyle().Foreground(ColorAccent)
	TitleStyle  = lipgloss.NewStyle().Bold(true)
	HeaderStyle = lipgloss.NewStyle().Bold(true).Foreground(ColorAccent)
)

const (
	IconPass = "✓"
	IconWarn = "⚠"
	IconFail = "✗"
	IconInfo = "ℹ"
)

// DetailIndent prefixes wrapped description lines under a draft title.
const DetailIndent = "   "

func RenderPass(s string) string   { return PassStyle.Render(s) }
func RenderWarn(s string) string   { return WarnStyle.Render(s) }
func RenderFail(s string) string   { return FailStyle.Render(s) }
func RenderMuted(s string) string  { return MutedStyle.Render(s) }
func RenderAccent(s string) string { return AccentStyle.Render(s) }

// RenderHeader renders a section header in uppercase.
func RenderHeader(s string) string {
	return HeaderStyle.Render(strings.ToUpper(s))
}

// RenderDraft renders one draft as a numbered title with its description
// wrapped to width underneath. Numbers are 1-based for display.
func RenderDraft(index int, d types.IssueDraft, width int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s\n", RenderMuted(fmt.Sprintf("%d.", index+1)), TitleStyle.Render(d.Title))
	desc := WrapText(d.Description, width-len(DetailIndent))
	for _, line := range strings.Split(desc, "\n") {
		b.WriteString(DetailIndent)
		b.WriteString(line)
		b.WriteString("\n")
	}
	return b.String()
}

// RenderDrafts renders a whole collection, or a muted placeholder when empty.
func RenderDrafts(c types.IssueDraftCollection, width int) string {
	if c.Len() == 0 {
		return RenderMuted("No issues.") + "\n"
	}
	var b strings.Builder
	for i, d := range c.Issues {
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString(RenderDraft(i, d, width))
	}
	return b.String()
}

// RenderResult renders a per-item import outcome.
func RenderResult(r types.ImportResult) string {
	if r.OK() {
		line := fmt.Sprintf("%s %s %s", PassStyle.Render(IconPass), RenderAccent(r.Identifier), r.Title)
		if r.URL != "" {
			line += " " + RenderMuted(r.URL)
		}
		return line
	}
	return fmt.Sprintf("%s %s %s", FailStyle.Render(IconFail), r.Title, RenderMuted("("+TruncateSimple(r.Reason, 80)+")"))
}

// RenderSummary renders the completion line for an import.
func RenderSummary(s *types.ImportSummary) string {
	if s == nil {
		return ""
	}
	if s.Failed == 0 {
		return RenderPass(s.Message())
	}
	return RenderWarn(s.Message())
}
