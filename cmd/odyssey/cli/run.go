package cli

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/odyssey-erp/odyssey-records/internal/export"
	"github.com/odyssey-erp/odyssey-records/jobs"
)

// TableExporter writes a table snapshot to disk.
type TableExporter interface {
	Export(ctx context.Context, table string) (export.Result, error)
}

// JobsRunner is the subset of JobsCLI used by commands.
type JobsRunner interface {
	TriggerExport(ctx context.Context, table string) (string, error)
	InspectQueue(ctx context.Context) (jobs.QueueStats, error)
	Close() error
}

// Deps builds the services a command needs on demand so hash-password runs without a
// database or Redis.
type Deps struct {
	Stdout   io.Writer
	Stderr   io.Writer
	Exporter func(ctx context.Context) (TableExporter, func(), error)
	Jobs     func() (JobsRunner, error)
}

const usage = `usage: odyssey <command> [args]

commands:
  serve                         run the HTTP server (default)
  hash-password [-cost N] PASS  print a bcrypt hash for AUTH_USERS
  export TABLE                  write TABLE_data.csv into EXPORT_DIR
  jobs trigger-export TABLE     enqueue a background export
  jobs stats                    print default queue depth as JSON
`

// Run executes the command in args and returns the process exit code.
func Run(ctx context.Context, args []string, deps Deps) int {
	if deps.Stdout == nil {
		deps.Stdout = os.Stdout
	}
	if deps.Stderr == nil {
		deps.Stderr = os.Stderr
	}
	if len(args) == 0 {
		_, _ = fmt.Fprint(deps.Stderr, usage)
		return 2
	}
	switch args[0] {
	case "hash-password":
		return hashPassword(args[1:], deps)
	case "export":
		return exportTable(ctx, args[1:], deps)
	case "jobs":
		return jobsCommand(ctx, args[1:], deps)
	case "help", "-h", "--help":
		_, _ = fmt.Fprint(deps.Stdout, usage)
		return 0
	default:
		_, _ = fmt.Fprintf(deps.Stderr, "odyssey: unknown command %q\n%s", args[0], usage)
		return 2
	}
}

func hashPassword(args []string, deps Deps) int {
	fs := flag.NewFlagSet("hash-password", flag.ContinueOnError)
	fs.SetOutput(deps.Stderr)
	cost := fs.Int("cost", bcrypt.DefaultCost, "bcrypt cost")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() != 1 || fs.Arg(0) == "" {
		_, _ = fmt.Fprintln(deps.Stderr, "hash-password: exactly one password is required")
		return 2
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(fs.Arg(0)), *cost)
	if err != nil {
		_, _ = fmt.Fprintf(deps.Stderr, "hash-password: %v\n", err)
		return 1
	}
	_, _ = fmt.Fprintln(deps.Stdout, string(hash))
	return 0
}

func exportTable(ctx context.Context, args []string, deps Deps) int {
	if len(args) != 1 {
		_, _ = fmt.Fprintln(deps.Stderr, "export: exactly one table is required")
		return 2
	}
	if deps.Exporter == nil {
		_, _ = fmt.Fprintln(deps.Stderr, "export: exporter not configured")
		return 1
	}
	exporter, cleanup, err := deps.Exporter(ctx)
	if err != nil {
		_, _ = fmt.Fprintf(deps.Stderr, "export: %v\n", err)
		return 1
	}
	if cleanup != nil {
		defer cleanup()
	}
	result, err := exporter.Export(ctx, args[0])
	if err != nil {
		_, _ = fmt.Fprintf(deps.Stderr, "export: %v\n", err)
		return 1
	}
	return writeJSON(deps, "export", result)
}

func jobsCommand(ctx context.Context, args []string, deps Deps) int {
	if len(args) == 0 {
		_, _ = fmt.Fprintln(deps.Stderr, "jobs: expected trigger-export or stats")
		return 2
	}
	if deps.Jobs == nil {
		_, _ = fmt.Fprintln(deps.Stderr, "jobs: queue not configured")
		return 1
	}
	runner, err := deps.Jobs()
	if err != nil {
		_, _ = fmt.Fprintf(deps.Stderr, "jobs: %v\n", err)
		return 1
	}
	defer func() { _ = runner.Close() }()

	switch args[0] {
	case "trigger-export":
		if len(args) != 2 || strings.TrimSpace(args[1]) == "" {
			_, _ = fmt.Fprintln(deps.Stderr, "jobs trigger-export: exactly one table is required")
			return 2
		}
		id, err := runner.TriggerExport(ctx, args[1])
		if err != nil {
			_, _ = fmt.Fprintf(deps.Stderr, "jobs trigger-export: %v\n", err)
			return 1
		}
		_, _ = fmt.Fprintln(deps.Stdout, id)
		return 0
	case "stats":
		stats, err := runner.InspectQueue(ctx)
		if err != nil {
			_, _ = fmt.Fprintf(deps.Stderr, "jobs stats: %v\n", err)
			return 1
		}
		return writeJSON(deps, "jobs stats", stats)
	default:
		_, _ = fmt.Fprintf(deps.Stderr, "jobs: unknown subcommand %q\n", args[0])
		return 2
	}
}

func writeJSON(deps Deps, cmd string, v any) int {
	if err := json.NewEncoder(deps.Stdout).Encode(v); err != nil {
		_, _ = fmt.Fprintf(deps.Stderr, "%s: encode json: %v\n", cmd, err)
		return 1
	}
	return 0
}
