package cli

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/nhle/worklist/internal/model"
)

const envConfig = "WORKLIST_CONFIG"

// Runner executes one command line against an App.
type Runner struct {
	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer

	// Open builds the App for a config path. Tests replace it.
	Open func(ctx context.Context, configPath string) (*App, error)
}

// Run executes args with the process's standard streams.
func Run(ctx context.Context, args []string) error {
	r := &Runner{
		Stdin:  os.Stdin,
		Stdout: os.Stdout,
		Stderr: os.Stderr,
		Open:   OpenApp,
	}
	return r.Run(ctx, args)
}

// Run dispatches to the subcommand named by args[0].
func (r *Runner) Run(ctx context.Context, args []string) error {
	configPath, args, err := r.parseGlobal(args)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil
		}
		return err
	}
	if len(args) == 0 || isHelp(args[0]) {
		return r.printUsage()
	}

	cmd, rest := args[0], args[1:]
	var run func(ctx context.Context, app *App, args []string) error
	switch cmd {
	case "list":
		run = r.runList
	case "watch":
		run = r.runWatch
	case "archive":
		run = r.runAction("archive")
	case "complete":
		run = r.runAction("complete")
	case "snooze":
		run = r.runSnooze
	case "unsnooze":
		run = r.runAction("unsnooze")
	case "snoozed":
		run = r.runSnoozed
	case "cleanup":
		run = r.runCleanup
	case "token":
		run = r.runToken
	default:
		return fmt.Errorf("unknown command: %s", cmd)
	}

	app, err := r.Open(ctx, configPath)
	if err != nil {
		return err
	}
	defer app.Close()

	if err := run(ctx, app, rest); err != nil && !errors.Is(err, flag.ErrHelp) {
		return err
	}
	return nil
}

func (r *Runner) parseGlobal(args []string) (string, []string, error) {
	fs := flag.NewFlagSet("worklist", flag.ContinueOnError)
	fs.SetOutput(r.Stderr)
	configPath := fs.String("config", defaultConfigPath(), "Path to the configuration file (or WORKLIST_CONFIG)")
	fs.Usage = func() {
		_ = r.printUsage()
	}
	if err := fs.Parse(args); err != nil {
		return "", nil, err
	}
	return *configPath, fs.Args(), nil
}

func defaultConfigPath() string {
	if env := strings.TrimSpace(os.Getenv(envConfig)); env != "" {
		return env
	}
	return model.DefaultConfigPath()
}

func isHelp(arg string) bool {
	switch arg {
	case "-h", "--help", "help":
		return true
	default:
		return false
	}
}

const usage = `worklist - one list of what needs your attention

Usage:
  worklist [--config path] <command> [options]

Commands:
  list                     Show the unified worklist
  watch                    Refresh the worklist on an interval
  archive <source:id>      Archive a mail item
  complete <source:id>     Move a work item to its closed state
  snooze <source:id>       Hide an item until a preset or explicit time
  unsnooze <source:id>     Bring a snoozed item back
  snoozed                  List active snoozes
  cleanup                  Remove long-expired snooze records
  token set|delete <src>   Manage a source's stored access token

Environment:
  WORKLIST_CONFIG          Default configuration file
  WORKLIST_<SOURCE>_TOKEN  Access token override, e.g. WORKLIST_GMAIL_TOKEN
`

func (r *Runner) printUsage() error {
	_, err := io.WriteString(r.Stdout, usage)
	return err
}

// parseInterspersed parses flags that may follow positional arguments and
// returns the positionals.
func parseInterspersed(fs *flag.FlagSet, args []string) ([]string, error) {
	var positional []string
	for {
		if err := fs.Parse(args); err != nil {
			return nil, err
		}
		rest := fs.Args()
		if len(rest) == 0 {
			return positional, nil
		}
		positional = append(positional, rest[0])
		args = rest[1:]
	}
}

// newFlagSet returns a FlagSet whose errors and usage go to stderr.
func (r *Runner) newFlagSet(name, synopsis string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(r.Stderr)
	fs.Usage = func() {
		fmt.Fprintf(r.Stderr, "Usage:\n  %s\n\nOptions:\n", synopsis)
		fs.PrintDefaults()
	}
	return fs
}

func parseKeyArg(cmd string, positional []string) (model.TaskKey, error) {
	if len(positional) != 1 {
		return model.TaskKey{}, fmt.Errorf("%s: expected exactly one <source:id> argument", cmd)
	}
	return model.ParseTaskKey(positional[0])
}
