package engine

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize/english"
)

// Summary aggregates the outcome of one bulk run. It is mutated as items
// complete and finalized once by the Runner.
type Summary struct {
	Operation   string        `json:"operation"`
	RunID       string        `json:"run_id"`
	Source      string        `json:"source"`
	Attempted   int           `json:"attempted"`
	Succeeded   int           `json:"succeeded"`
	Failed      int           `json:"failed"`
	Skipped     int           `json:"skipped"`
	FailedIDs   []int         `json:"failed_ids"`
	SkippedIDs  IDSpans       `json:"skipped_ids"`
	Interrupted bool          `json:"interrupted"`
	StartedAt   time.Time     `json:"started_at"`
	Duration    time.Duration `json:"duration"`

	// Results holds the attempted items; skipped ones are only in SkippedIDs.
	Results []ItemResult `json:"results"`
}

// record folds one terminal item result into the counters.
func (s *Summary) record(r ItemResult) {
	switch r.Status {
	case ItemSucceeded:
		s.Attempted++
		s.Succeeded++
	case ItemFailed:
		s.Attempted++
		s.Failed++
		s.FailedIDs = append(s.FailedIDs, r.ID)
	case ItemSkipped:
		s.Skipped++
		s.SkippedIDs.Add(r.ID)
		return
	}
	s.Results = append(s.Results, r)
}

// Processed returns the number of IDs that reached a terminal state.
func (s *Summary) Processed() int {
	return s.Attempted + s.Skipped
}

// Status classifies the run as a whole.
func (s *Summary) Status() RunStatus {
	switch {
	case s.Interrupted:
		return RunInterrupted
	case s.Attempted == 0:
		return RunEmpty
	case s.Failed == 0:
		return RunSucceeded
	case s.Succeeded == 0:
		return RunFailed
	default:
		return RunPartial
	}
}

// Err returns ErrItemsFailed when any item failed, nil otherwise.
func (s *Summary) Err() error {
	if s.Failed > 0 {
		return fmt.Errorf("%s: %w (%d of %d)", s.Operation, ErrItemsFailed, s.Failed, s.Attempted)
	}
	return nil
}

// ExitCode maps the summary to the process exit status.
func (s *Summary) ExitCode() int {
	if s.Failed > 0 {
		return ExitFailure
	}
	return ExitOK
}

// Render writes the human-readable report to w.
func (s *Summary) Render(w io.Writer) error {
	r := lipgloss.NewRenderer(w)
	header := r.NewStyle().Bold(true)
	good := r.NewStyle().Foreground(lipgloss.Color("2"))
	bad := r.NewStyle().Foreground(lipgloss.Color("1")).Bold(true)
	muted := r.NewStyle().Foreground(lipgloss.Color("8"))

	var b strings.Builder
	title := s.Operation
	if s.Source != "" {
		title += " " + s.Source
	}
	b.WriteString(header.Render("== "+title+" ==") + "\n")

	failed := fmt.Sprintf("failed: %d", s.Failed)
	if s.Failed > 0 {
		failed = bad.Render(failed)
	}
	fmt.Fprintf(&b, "attempted: %d  %s  %s  skipped: %d\n",
		s.Attempted,
		good.Render(fmt.Sprintf("succeeded: %d", s.Succeeded)),
		failed,
		s.Skipped)

	if len(s.FailedIDs) > 0 {
		b.WriteString(bad.Render("failed IDs: "+joinIDs(s.FailedIDs)) + "\n")
	}
	if len(s.SkippedIDs) > 0 {
		b.WriteString(muted.Render("skipped IDs (not found): "+s.SkippedIDs.String()) + "\n")
	}
	if s.Interrupted {
		b.WriteString(bad.Render("interrupted: remaining IDs were not processed") + "\n")
	}
	fmt.Fprintf(&b, "%s in %s (run %s)\n",
		english.Plural(s.Processed(), "item", "items"),
		s.Duration.Round(time.Millisecond),
		s.RunID)

	_, err := io.WriteString(w, b.String())
	return err
}

func joinIDs(ids []int) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = strconv.Itoa(id)
	}
	return strings.Join(parts, " ")
}
