package cli

import (
	"fmt"
	"math"

	"github.com/charmbracelet/lipgloss"
	"github.com/fatih/color"
)

var (
	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("86"))
	labelStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("241")).Width(18)
	valueStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("255"))
	seriesStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("205"))
	dimStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	folderStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("33"))
	sectionStyle = lipgloss.NewStyle().MarginTop(1)

	okColor   = color.New(color.FgGreen)
	warnColor = color.New(color.FgYellow)
	errColor  = color.New(color.FgRed)
)

func printField(label string, value any) {
	fmt.Println(labelStyle.Render(label) + valueStyle.Render(fmt.Sprint(value)))
}

func printOK(format string, args ...any) {
	okColor.Printf("✓ "+format+"\n", args...)
}

func printWarn(format string, args ...any) {
	warnColor.Printf(format+"\n", args...)
}

// clock renders seconds as m:ss or h:mm:ss.
func clock(seconds float64) string {
	if math.IsNaN(seconds) || math.IsInf(seconds, 0) || seconds < 0 {
		return "--:--"
	}
	s := int(seconds)
	if s >= 3600 {
		return fmt.Sprintf("%d:%02d:%02d", s/3600, s%3600/60, s%60)
	}
	return fmt.Sprintf("%d:%02d", s/60, s%60)
}
