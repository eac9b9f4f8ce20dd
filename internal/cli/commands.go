package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/nhle/worklist/internal/action"
	"github.com/nhle/worklist/internal/credential"
	"github.com/nhle/worklist/internal/model"
	"github.com/nhle/worklist/internal/refresh"
	"github.com/nhle/worklist/internal/snooze"
	"github.com/nhle/worklist/internal/theme"
)

func (r *Runner) runList(ctx context.Context, app *App, args []string) error {
	fs := r.newFlagSet("list", "worklist list [--json]")
	jsonFlag := fs.Bool("json", false, "Emit JSON output")
	if err := fs.Parse(args); err != nil {
		return err
	}

	res, err := app.Engine.GetUnifiedWorklist(ctx)
	if err != nil {
		return err
	}
	if *jsonFlag {
		return writeJSON(r.Stdout, toListJSON(res))
	}
	return renderWorklist(r.Stdout, res, app.Now())
}

func (r *Runner) runWatch(ctx context.Context, app *App, args []string) error {
	fs := r.newFlagSet("watch", "worklist watch [--interval 2m] [--json]")
	interval := fs.Duration("interval", app.Config.RefreshInterval(), "Time between refreshes")
	jsonFlag := fs.Bool("json", false, "Emit one JSON document per refresh")
	if err := fs.Parse(args); err != nil {
		return err
	}

	refresher := refresh.New(app.Engine, refresh.Options{
		Interval:     *interval,
		CleanupAfter: app.Config.CleanupAfter(),
		Cleaner:      app.Store,
		Logger:       app.Logger,
		Now:          app.Now,
	})

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		refresher.Run(ctx)
	}()
	defer wg.Wait()

	for {
		select {
		case <-ctx.Done():
			return nil
		case u := <-refresher.Updates():
			if err := r.writeUpdate(app, u, *jsonFlag); err != nil {
				return err
			}
		}
	}
}

func (r *Runner) writeUpdate(app *App, u refresh.Update, asJSON bool) error {
	if u.Err != nil {
		_, err := fmt.Fprintln(r.Stderr, theme.ErrorStyle.Render("refresh failed: "+u.Err.Error()))
		return err
	}
	if asJSON {
		return writeJSON(r.Stdout, toListJSON(u.Result))
	}
	return renderWorklist(r.Stdout, u.Result, app.Now())
}

// runAction returns the handler for a single-key action with no options.
func (r *Runner) runAction(name string) func(context.Context, *App, []string) error {
	return func(ctx context.Context, app *App, args []string) error {
		fs := r.newFlagSet(name, "worklist "+name+" <source:id>")
		positional, err := parseInterspersed(fs, args)
		if err != nil {
			return err
		}
		key, err := parseKeyArg(name, positional)
		if err != nil {
			return err
		}
		act, err := action.ParseAction(name)
		if err != nil {
			return err
		}

		out, err := app.Dispatcher.PerformAction(ctx, action.Request{
			Action: act,
			Source: key.Source,
			ID:     key.ID,
		})
		if err != nil {
			return err
		}
		return r.writeOutcome(app, out)
	}
}

func (r *Runner) runSnooze(ctx context.Context, app *App, args []string) error {
	fs := r.newFlagSet("snooze", "worklist snooze <source:id> (--for 1h|3h|tomorrow|next_week | --until RFC3339)")
	forFlag := fs.String("for", "", "Snooze preset: 1h, 3h, tomorrow or next_week")
	untilFlag := fs.String("until", "", "Explicit wake time (RFC3339)")
	positional, err := parseInterspersed(fs, args)
	if err != nil {
		return err
	}
	key, err := parseKeyArg("snooze", positional)
	if err != nil {
		return err
	}

	req := action.Request{Action: action.ActionSnooze, Source: key.Source, ID: key.ID}
	switch {
	case *forFlag != "" && *untilFlag != "":
		return errors.New("use only one of --for or --until")
	case *untilFlag != "":
		until, err := time.Parse(time.RFC3339, *untilFlag)
		if err != nil {
			return fmt.Errorf("--until: %w", err)
		}
		req.Until = until
	case *forFlag != "":
		preset, err := snooze.ParsePreset(*forFlag)
		if err != nil {
			return err
		}
		req.Preset = preset
	default:
		return errors.New("snooze requires --for or --until")
	}

	out, err := app.Dispatcher.PerformAction(ctx, req)
	if err != nil {
		return err
	}
	return r.writeOutcome(app, out)
}

func (r *Runner) writeOutcome(app *App, out *action.Outcome) error {
	var msg string
	switch out.Action {
	case action.ActionArchive:
		msg = "archived " + out.Key.String()
	case action.ActionComplete:
		msg = "completed " + out.Key.String()
	case action.ActionSnooze:
		msg = fmt.Sprintf("snoozed %s until %s",
			out.Key.String(), out.WakeAt.In(app.Policy.Location).Format("Mon Jan 2 15:04"))
	case action.ActionUnsnooze:
		msg = "unsnoozed " + out.Key.String()
	default:
		msg = string(out.Action) + " " + out.Key.String()
	}
	_, err := fmt.Fprintln(r.Stdout, theme.SuccessStyle.Render(msg))
	return err
}

func (r *Runner) runSnoozed(ctx context.Context, app *App, args []string) error {
	fs := r.newFlagSet("snoozed", "worklist snoozed [--json]")
	jsonFlag := fs.Bool("json", false, "Emit JSON output")
	if err := fs.Parse(args); err != nil {
		return err
	}

	now := app.Now()
	recs, err := app.Store.ListActive(ctx, now)
	if err != nil {
		return err
	}
	if *jsonFlag {
		if recs == nil {
			recs = []model.SnoozedRecord{}
		}
		return writeJSON(r.Stdout, recs)
	}
	return renderSnoozed(r.Stdout, recs, now, app.Policy.Location)
}

func (r *Runner) runCleanup(ctx context.Context, app *App, args []string) error {
	fs := r.newFlagSet("cleanup", "worklist cleanup [--older-than 168h]")
	olderThan := fs.Duration("older-than", app.Config.CleanupAfter(), "Remove snoozes that woke longer ago than this")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *olderThan < 0 {
		return errors.New("--older-than must be >= 0")
	}

	removed, err := app.Store.CleanupExpired(ctx, app.Now().Add(-*olderThan))
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(r.Stdout, "removed %d expired snoozes\n", removed)
	return err
}

func (r *Runner) runToken(_ context.Context, app *App, args []string) error {
	fs := r.newFlagSet("token", "worklist token set|delete <source>")
	positional, err := parseInterspersed(fs, args)
	if err != nil {
		return err
	}
	if len(positional) != 2 {
		return errors.New("token: expected set|delete and a source")
	}
	st := model.SourceType(strings.ToLower(positional[1]))
	if !st.Valid() {
		return fmt.Errorf("token: unknown source %q", positional[1])
	}
	key := credential.TokenKey(st)

	switch positional[0] {
	case "set":
		tok, err := readToken(r.Stdin)
		if err != nil {
			return err
		}
		if err := app.Credentials.Set(key, tok); err != nil {
			return err
		}
		_, err = fmt.Fprintf(r.Stdout, "stored token for %s\n", st)
		return err
	case "delete":
		if err := app.Credentials.Delete(key); err != nil {
			return err
		}
		_, err := fmt.Fprintf(r.Stdout, "deleted token for %s\n", st)
		return err
	default:
		return fmt.Errorf("token: unknown subcommand %q", positional[0])
	}
}

// readToken reads the first non-empty line of in.
func readToken(in io.Reader) (string, error) {
	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		if tok := strings.TrimSpace(scanner.Text()); tok != "" {
			return tok, nil
		}
	}
	if err := scanner.Err(); err != nil {
		return "", fmt.Errorf("reading token: %w", err)
	}
	return "", errors.New("no token on stdin")
}
