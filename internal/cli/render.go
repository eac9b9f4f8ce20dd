package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/worklist/internal/model"
	"github.com/nhle/worklist/internal/source"
	"github.com/nhle/worklist/internal/theme"
	"github.com/nhle/worklist/internal/worklist"
)

type failureJSON struct {
	Source         model.SourceType `json:"source"`
	Kind           string           `json:"kind"`
	Error          string           `json:"error"`
	ReauthRequired bool             `json:"reauth_required,omitempty"`
	RetryAfterSec  int              `json:"retry_after_sec,omitempty"`
}

type listJSON struct {
	RunID       string        `json:"run_id"`
	RefreshedAt time.Time     `json:"refreshed_at"`
	Tasks       []model.Task  `json:"tasks"`
	Snoozed     int           `json:"snoozed"`
	Failures    []failureJSON `json:"failures"`
}

func toListJSON(res *worklist.Result) listJSON {
	out := listJSON{
		RunID:       res.RunID,
		RefreshedAt: res.RefreshedAt,
		Tasks:       res.Tasks,
		Snoozed:     res.Snoozed,
		Failures:    []failureJSON{},
	}
	if out.Tasks == nil {
		out.Tasks = []model.Task{}
	}
	for _, f := range res.Failures {
		out.Failures = append(out.Failures, failureJSON{
			Source:         f.Source,
			Kind:           source.KindOf(f.Err).String(),
			Error:          f.Err.Error(),
			ReauthRequired: source.IsAuthError(f.Err),
			RetryAfterSec:  int(source.RetryAfterOf(f.Err).Seconds()),
		})
	}
	return out
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// renderWorklist writes the human-readable worklist with a footer naming
// any source that failed.
func renderWorklist(w io.Writer, res *worklist.Result, now time.Time) error {
	var b strings.Builder

	b.WriteString(theme.HeaderStyle.Render(fmt.Sprintf("Worklist (%d)", len(res.Tasks))))
	b.WriteString("\n\n")

	if len(res.Tasks) == 0 {
		b.WriteString(theme.ListItemStyle.Render(theme.MutedStyle.Render("Nothing needs your attention.")))
		b.WriteString("\n")
	}
	for _, t := range res.Tasks {
		b.WriteString(renderTask(t, now))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	status := fmt.Sprintf("refreshed %s", relativeTime(res.RefreshedAt, now))
	if res.Snoozed > 0 {
		status += fmt.Sprintf(" · %d snoozed", res.Snoozed)
	}
	b.WriteString(theme.StatusBarStyle.Render(status))
	b.WriteString("\n")

	for _, f := range res.Failures {
		b.WriteString(theme.WarningStyle.Render(failureLine(f)))
		b.WriteString("\n")
	}

	_, err := io.WriteString(w, b.String())
	return err
}

func renderTask(t model.Task, now time.Time) string {
	badge := theme.SourceLabelStyle(t.Source).Render(theme.SourceLabel(t.Source))

	var markers []string
	if t.Flags.Important {
		markers = append(markers, theme.ImportantStyle.Render("!"))
	}
	if t.Flags.Flagged {
		markers = append(markers, theme.FlaggedStyle.Render("*"))
	}

	title := t.Title
	if !t.Flags.Read {
		title = theme.UnreadTitleStyle.Render(title)
	}

	head := badge + " " + title
	if len(markers) > 0 {
		head = badge + " " + strings.Join(markers, "") + " " + title
	}

	meta := t.ActorName
	if age := relativeTime(t.Timestamp, now); age != "" {
		meta += " · " + age
	}
	lines := []string{head, theme.MutedStyle.Render(meta)}
	if t.Summary != "" {
		lines = append(lines, theme.MutedStyle.Render(t.Summary))
	}
	lines = append(lines, theme.MutedStyle.Render(t.Key().String()))

	return theme.ListItemStyle.Render(lipgloss.JoinVertical(lipgloss.Left, lines...))
}

func failureLine(f worklist.SourceFailure) string {
	line := fmt.Sprintf("%s unavailable (%s)", f.Source, source.KindOf(f.Err))
	switch {
	case source.IsAuthError(f.Err):
		line += ": sign in again"
	case source.RetryAfterOf(f.Err) > 0:
		line += fmt.Sprintf(": retry after %s", source.RetryAfterOf(f.Err))
	}
	return line
}

// renderSnoozed lists active snoozes with their wake times in loc.
func renderSnoozed(w io.Writer, recs []model.SnoozedRecord, now time.Time, loc *time.Location) error {
	var b strings.Builder

	b.WriteString(theme.HeaderStyle.Render(fmt.Sprintf("Snoozed (%d)", len(recs))))
	b.WriteString("\n\n")
	for _, rec := range recs {
		wake := rec.WakeAt.In(loc).Format("Mon Jan 2 15:04")
		line := fmt.Sprintf("%s  wakes %s (in %s)",
			rec.Key().String(), wake, untilTime(rec.WakeAt, now))
		b.WriteString(theme.ListItemStyle.Render(line))
		b.WriteString("\n")
	}

	_, err := io.WriteString(w, b.String())
	return err
}

// relativeTime formats how long ago t was, relative to now.
func relativeTime(t, now time.Time) string {
	if t.IsZero() {
		return ""
	}

	d := now.Sub(t)
	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(d.Hours()))
	case d < 7*24*time.Hour:
		return fmt.Sprintf("%dd ago", int(d.Hours()/24))
	default:
		return fmt.Sprintf("%dw ago", int(d.Hours()/24/7))
	}
}

func untilTime(t, now time.Time) string {
	d := t.Sub(now).Round(time.Minute)
	if d < time.Minute {
		return "<1m"
	}
	return strings.TrimSuffix(d.String(), "0s")
}
