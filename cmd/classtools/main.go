// classtools is a classroom overlay for the terminal: a weighted no-repeat
// roll call, a scratch whiteboard and a countdown timer behind one floating
// toolbar.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/pflag"

	"github.com/jask/classtools/internal/config"
	"github.com/jask/classtools/internal/database"
	"github.com/jask/classtools/internal/database/repository"
	"github.com/jask/classtools/internal/narration"
	"github.com/jask/classtools/internal/overlay"
	"github.com/jask/classtools/internal/roster"
	"github.com/jask/classtools/internal/selection"
	"github.com/jask/classtools/internal/service"
	"github.com/jask/classtools/internal/tools"
	"github.com/jask/classtools/internal/tui"
)

type options struct {
	configPath   string
	rosterPath   string
	dbPath       string
	seed         uint64
	logOutput    string
	noNarration  bool
	resetHistory bool
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var opts options
	flagSet := pflag.NewFlagSet("classtools", pflag.ContinueOnError)
	flagSet.StringVar(&opts.configPath, "config", "", "settings file (default: "+config.DefaultPath()+")")
	flagSet.StringVar(&opts.rosterPath, "roster", "", "roster file, overrides roster.path for this run")
	flagSet.StringVar(&opts.dbPath, "db", "", "history database, overrides database.path for this run")
	flagSet.Uint64Var(&opts.seed, "seed", 0, "selection seed, overrides rollcall.seed for this run")
	flagSet.StringVar(&opts.logOutput, "log-output", "", "write JSON log records to this file")
	flagSet.BoolVar(&opts.noNarration, "no-narration", false, "never speak called names")
	flagSet.BoolVar(&opts.resetHistory, "reset-history", false, "delete all call history and scores, then exit")
	if err := flagSet.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}
	if args := flagSet.Args(); len(args) > 0 {
		return fmt.Errorf("unexpected argument: %s", args[0])
	}

	logger, closeLog, err := newLogger(opts.logOutput)
	if err != nil {
		return err
	}
	defer closeLog()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	settings, warnings := config.Load(opts.configPath)
	for _, w := range warnings {
		logger.Warn("settings", "error", w)
	}
	cfg := settings.Settings()
	dbPath := firstNonEmpty(opts.dbPath, cfg.Database.Path)
	rosterPath := firstNonEmpty(opts.rosterPath, cfg.Roster.Path)
	seed := cfg.RollCall.Seed
	if opts.seed != 0 {
		seed = opts.seed
	}

	db, err := database.Prepare(dbPath)
	if err != nil {
		return fmt.Errorf("open database %s: %w", dbPath, err)
	}
	defer db.Close()

	if opts.resetHistory {
		maintenance := &service.MaintenanceService{DB: db}
		if err := maintenance.Reset(ctx); err != nil {
			return err
		}
		fmt.Fprintln(os.Stderr, "call history and scores deleted")
		return nil
	}

	journal, restored, err := service.OpenJournal(ctx, db, logger)
	if err != nil {
		return fmt.Errorf("open history: %w", err)
	}
	journal.Start(ctx)
	defer func() {
		flushCtx, done := context.WithTimeout(context.Background(), 5*time.Second)
		defer done()
		if err := journal.Flush(flushCtx); err != nil {
			logger.Warn("history flush", "error", err)
		}
		journal.Close()
	}()

	var notices []tools.Notice

	rosters := service.NewRosterService(rosterPath, repository.NewScoreRepo(db), logger)
	if wrote, err := rosters.EnsureTemplate(); err != nil {
		logger.Warn("roster template", "error", err)
	} else if wrote {
		notices = append(notices, tools.Notice{Text: "wrote a starter roster to " + rosterPath})
	}
	current, rowWarnings, err := rosters.Load(ctx)
	switch {
	case err != nil:
		current, _ = roster.New(nil)
		notices = append(notices, tools.Notice{Level: tools.LevelError, Text: "roster not loaded: " + err.Error(), Err: err})
	case len(rowWarnings) > 0:
		notices = append(notices, tools.Notice{Level: tools.LevelWarn, Text: fmt.Sprintf("roster loaded with %d rows skipped", len(rowWarnings))})
	}

	engine := selection.New(current, seed)
	if err := engine.Restore(restored.Records); err != nil {
		logger.Warn("history not restored", "session", restored.Session.ID, "error", err)
	}
	engine.SetNextOrdinal(restored.MaxOrdinal)
	logger.Info("selection ready", "seed", engine.Seed(), "students", current.Len(), "restored", len(restored.Records))

	var narrator tools.Narrator
	var worker *narration.Worker
	if cfg.Narration.Enabled && !opts.noNarration {
		sink, err := narration.NewCommandSink(cfg.Narration.Command, cfg.Narration.Voice)
		if err != nil {
			logger.Warn("narration disabled", "error", err)
		} else {
			worker = narration.NewWorker(sink, logger)
			worker.Start(ctx)
			defer worker.Close()
			narrator = worker
		}
	}

	clock := tools.SystemClock
	rollcall := tools.NewRollCall(engine, narrator, tui.RollCallOptions(cfg), logger)
	rollcall.SetListener(journal)
	board := tools.NewWhiteboard(tools.PNGExporter{Dir: cfg.Whiteboard.ExportDir, Clock: clock}, tui.WhiteboardOptions(cfg))
	timer := tools.NewTimer(clock, tui.TimerOptions(cfg))

	hotkeys, conflicts := overlay.LoadHotkeys(cfg.Hotkeys)
	coord := overlay.New(hotkeys, overlay.Options{
		Toolbar:   tools.Point{X: cfg.Toolbar.X, Y: cfg.Toolbar.Y},
		Collapsed: cfg.Toolbar.Collapsed,
		Logger:    logger,
	}, rollcall, board, timer)
	for _, err := range conflicts {
		logger.Warn("hotkey", "error", err)
		coord.Notify(tools.Notice{Level: tools.LevelWarn, Text: err.Error(), Err: err})
	}
	for _, n := range notices {
		coord.Notify(n)
	}

	app := tui.New(ctx, tui.Deps{
		Coordinator:   coord,
		RollCall:      rollcall,
		Whiteboard:    board,
		Timer:         timer,
		Settings:      settings,
		Rosters:       rosters,
		Narration:     worker,
		JournalErrors: journal.Errors(),
		Clock:         clock,
		Logger:        logger,
	})
	p := tea.NewProgram(app, tea.WithAltScreen(), tea.WithMouseCellMotion(), tea.WithContext(ctx))
	if _, err := p.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return err
	}
	return nil
}

// newLogger writes JSON records to path when given, otherwise text records to
// classtools.log under the user cache dir. The terminal belongs to the UI.
// CLASSTOOLS_DEBUG enables debug records.
func newLogger(path string) (*slog.Logger, func(), error) {
	level := slog.LevelInfo
	if os.Getenv("CLASSTOOLS_DEBUG") != "" {
		level = slog.LevelDebug
	}
	handlerOpts := &slog.HandlerOptions{Level: level}
	jsonOutput := path != ""
	if !jsonOutput {
		dir, err := os.UserCacheDir()
		if err != nil {
			return slog.New(slog.NewTextHandler(io.Discard, handlerOpts)), func() {}, nil
		}
		path = filepath.Join(dir, "classtools", "classtools.log")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, nil, fmt.Errorf("mkdir log dir: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("open log output: %w", err)
	}
	var handler slog.Handler = slog.NewTextHandler(f, handlerOpts)
	if jsonOutput {
		handler = slog.NewJSONHandler(f, handlerOpts)
	}
	return slog.New(handler), func() { _ = f.Close() }, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
