package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/ldi/cadence/internal/config"
	"github.com/ldi/cadence/internal/db"
	"github.com/ldi/cadence/internal/decision"
	"github.com/ldi/cadence/internal/habits"
	"github.com/ldi/cadence/internal/scoring"
	"github.com/ldi/cadence/internal/ui"
)

// runMenu picks a command interactively when none is given.
var runMenu = ui.RunMenu

func main() {
	err := execute(os.Args[1:], os.Stdout, os.Stderr)
	if errors.Is(err, flag.ErrHelp) {
		os.Exit(0)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// app carries the resolved configuration and output streams of one invocation.
type app struct {
	cfg     *config.Config
	cfgPath string
	out     io.Writer
	errOut  io.Writer
	now     func() time.Time
}

const usage = `Usage: cadence [flags] <command> [arguments]

Commands:
  init [dir]                      create .cadence/ with config and database
  serve [--addr]                  run the HTTP API
  mcp                             run the MCP server on stdio
  status                          task, habit and feedback counts
  add-goal [flags] <title>        create a goal
  add-task [flags] <title>        create a task
  list-tasks [flags]              list tasks
  recommend [--why] [task-id...]  recommend the next task (all open tasks by default)
  feedback <log-id> <task-id> [note]
                                  record which task you actually picked
  add-habit [flags] <title>       create a habit
  check [--undo] <habit-id> [date]
                                  mark a habit done for a day (default today)
  habit-stats <habit-id>          streaks and rates of one habit
  overview                        statistics over all habits
  token [--user] [--ttl]          issue an API bearer token
  export [path]                   write decision logs as JSONL
  import <path>                   load decision logs from JSONL

Running cadence with no command opens an interactive menu.

Flags:
`

func execute(args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("cadence", flag.ContinueOnError)
	fs.SetOutput(stderr)
	cfgPath := fs.String("config", config.DefaultPath("."), "Path to config file")
	dbPath := fs.String("db-path", "", "Path to database file (overrides config)")
	user := fs.String("user", "", "Act as this user (overrides config)")
	fs.Usage = func() {
		fmt.Fprint(stderr, usage)
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		return err
	}

	command, rest := fs.Arg(0), []string{}
	if fs.NArg() > 1 {
		rest = fs.Args()[1:]
	}
	if command == "" {
		selected, err := runMenu()
		if err != nil {
			return fmt.Errorf("running menu: %w", err)
		}
		if selected == "" {
			return nil
		}
		command = selected
	}

	// init writes the config, so it must not require one.
	if command == "init" {
		return runInit(rest, *dbPath, stdout)
	}

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		return err
	}
	if *dbPath != "" {
		cfg.Database.Driver = db.DriverSQLite
		cfg.Database.Path = *dbPath
	}
	if *user != "" {
		cfg.User = *user
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	a := &app{cfg: cfg, cfgPath: *cfgPath, out: stdout, errOut: stderr, now: time.Now}

	switch command {
	case "serve":
		return a.runServe(rest)
	case "mcp":
		return a.runMCP(rest)
	case "status":
		return a.runStatus(rest)
	case "add-goal":
		return a.runAddGoal(rest)
	case "add-task":
		return a.runAddTask(rest)
	case "list-tasks":
		return a.runListTasks(rest)
	case "recommend":
		return a.runRecommend(rest)
	case "feedback":
		return a.runFeedback(rest)
	case "add-habit":
		return a.runAddHabit(rest)
	case "check":
		return a.runCheck(rest)
	case "habit-stats":
		return a.runHabitStats(rest)
	case "overview":
		return a.runOverview(rest)
	case "token":
		return a.runToken(rest)
	case "export":
		return a.runExport(rest)
	case "import":
		return a.runImport(rest)
	default:
		return fmt.Errorf("unknown command: %s", command)
	}
}

// open connects to the configured database, applies the schema and enables
// the decision log auto export when configured.
func (a *app) open(ctx context.Context) (*db.DB, error) {
	database, err := db.Connect(a.cfg.Database.Driver, a.cfg.DBSource())
	if err != nil {
		return nil, err
	}
	if err := database.Init(ctx); err != nil {
		database.Close()
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	if a.cfg.Export.Auto && a.cfg.Export.Path != "" {
		database.EnableAutoExport(a.cfg.Export.Path)
	}
	return database, nil
}

func (a *app) engine(database *db.DB) *decision.Engine {
	e := decision.NewEngine(database, scoring.New(a.cfg.Scoring), a.cfg.Location())
	e.GapScale = a.cfg.ConfidenceGapScale
	e.Now = a.now
	return e
}

func (a *app) habitService(database *db.DB) *habits.Service {
	s := habits.NewService(database, a.cfg.Location())
	s.Now = a.now
	return s
}

// watchWeights swaps the engine's scorer whenever the config file changes.
func (a *app) watchWeights(e *decision.Engine) (func(), error) {
	return config.Watch(a.cfgPath, func(cfg *config.Config) {
		e.SetScorer(scoring.New(cfg.Scoring))
		fmt.Fprintf(a.errOut, "Reloaded scoring weights from %s\n", a.cfgPath)
	}, func(err error) {
		fmt.Fprintf(a.errOut, "Error reloading config: %v\n", err)
	})
}

func joinArgs(args []string) string {
	return strings.TrimSpace(strings.Join(args, " "))
}
