// Package observability provides formatted output utilities for the CLI.
package observability

import (
	"fmt"
	"io"
	"strings"

	"github.com/jonathan/curator/internal/types"
)

const (
	// boxWidth is the default width for formatted output boxes
	boxWidth = 60
	// maxItemsToShow is the default number of items to display in lists
	maxItemsToShow = 5
)

// Printer handles formatted output for the CLI
type Printer struct {
	out io.Writer
}

// NewPrinter creates a new Printer that writes to the given writer
func NewPrinter(out io.Writer) *Printer {
	return &Printer{out: out}
}

// printBox prints a formatted box with a title and content
//
//nolint:errcheck // writing to stdout; errors are not recoverable
func (p *Printer) printBox(title string, content string) {
	border := strings.Repeat("─", boxWidth-2)
	fmt.Fprintf(p.out, "┌%s┐\n", border)
	fmt.Fprintf(p.out, "│ %-*s │\n", boxWidth-4, title)
	fmt.Fprintf(p.out, "├%s┤\n", border)

	lines := strings.Split(content, "\n")
	for _, line := range lines {
		// Truncate long lines
		if len([]rune(line)) > boxWidth-4 {
			line = string([]rune(line)[:boxWidth-7]) + "..."
		}
		fmt.Fprintf(p.out, "│ %-*s │\n", boxWidth-4, line)
	}

	fmt.Fprintf(p.out, "└%s┘\n", border)
}

// PrintPhase prints a one-line progress update.
//
//nolint:errcheck // writing to stdout; errors are not recoverable
func (p *Printer) PrintPhase(phase, message string, counts types.RunCounts) {
	fmt.Fprintf(p.out, "[%s] %s (found=%d vetted=%d ai=%d posts=%d)\n",
		phase, message, counts.CandidatesFound, counts.CandidatesVetted, counts.CandidatesAIScored, counts.PostsCreated)
}

// PrintRunSummary outputs the outcome of a run.
func (p *Printer) PrintRunSummary(agent *types.Agent, run *types.Run) {
	if run == nil {
		return
	}

	var sb strings.Builder
	if agent != nil {
		sb.WriteString(fmt.Sprintf("Agent:     %s\n", agent.Name))
	}
	sb.WriteString(fmt.Sprintf("Run:       %s\n", run.ID))
	sb.WriteString(fmt.Sprintf("Status:    %s\n", run.Status))
	if d := run.Duration(); d > 0 {
		sb.WriteString(fmt.Sprintf("Duration:  %s\n", d.Round(100_000_000)))
	}
	sb.WriteString("\n")
	sb.WriteString(fmt.Sprintf("Found:     %d\n", run.Counts.CandidatesFound))
	sb.WriteString(fmt.Sprintf("Vetted:    %d\n", run.Counts.CandidatesVetted))
	sb.WriteString(fmt.Sprintf("AI scored: %d\n", run.Counts.CandidatesAIScored))
	sb.WriteString(fmt.Sprintf("Posted:    %d", run.Counts.PostsCreated))
	if run.ErrorMessage != "" {
		sb.WriteString(fmt.Sprintf("\n\nError: %s", run.ErrorMessage))
	}

	p.printBox("RUN SUMMARY", sb.String())
}

// PrintCandidates outputs the top candidates of a run with their scores.
func (p *Printer) PrintCandidates(candidates []types.Candidate) {
	if len(candidates) == 0 {
		return
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Candidates: %d\n\n", len(candidates)))

	count := min(len(candidates), maxItemsToShow)
	for i := 0; i < count; i++ {
		c := candidates[i]
		sb.WriteString(fmt.Sprintf("#%d  %s\n", i+1, c.Title))
		sb.WriteString(fmt.Sprintf("    %s  rule %.2f", c.Status, c.RuleScore))
		if c.AIScore != nil {
			sb.WriteString(fmt.Sprintf("  ai %.2f", *c.AIScore))
		}
		if c.FinalScore != nil {
			sb.WriteString(fmt.Sprintf("  final %.2f", *c.FinalScore))
		}
		sb.WriteString("\n")
		if c.RejectionReason != "" {
			sb.WriteString(fmt.Sprintf("    %s\n", c.RejectionReason))
		}
		if i < count-1 {
			sb.WriteString("\n")
		}
	}

	if len(candidates) > maxItemsToShow {
		sb.WriteString(fmt.Sprintf("\n... and %d more candidates", len(candidates)-maxItemsToShow))
	}

	p.printBox("CANDIDATES", strings.TrimSuffix(sb.String(), "\n"))
}

// PrintAgents outputs a one-line summary per agent.
func (p *Printer) PrintAgents(agents []types.Agent) {
	if len(agents) == 0 {
		p.printBox("AGENTS", "No agents configured")
		return
	}

	var sb strings.Builder
	for i, a := range agents {
		state := "disabled"
		if a.Enabled {
			state = string(a.ScheduleInterval)
		}
		sb.WriteString(fmt.Sprintf("%-24s %-10s posts %d", a.Name, state, a.PostCount))
		if i < len(agents)-1 {
			sb.WriteString("\n")
		}
	}
	p.printBox("AGENTS", sb.String())
}
