package shell

import (
	"io"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"
)

type styles struct {
	prompt func(...string) string
	err    func(...string) string
}

func plain(strs ...string) string {
	out := ""
	for _, s := range strs {
		out += s
	}
	return out
}

// newStyles only styles output that reaches a terminal.
func newStyles(stdout, stderr io.Writer, enabled bool) styles {
	st := styles{prompt: plain, err: plain}
	if !enabled {
		return st
	}
	if isTerminal(stdout) {
		st.prompt = lipgloss.NewRenderer(stdout).NewStyle().Bold(true).Render
	}
	if isTerminal(stderr) {
		st.err = lipgloss.NewRenderer(stderr).NewStyle().Foreground(lipgloss.Color("9")).Render
	}
	return st
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(interface{ Fd() uintptr })
	return ok && term.IsTerminal(int(f.Fd()))
}
