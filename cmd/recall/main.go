package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/conorfennell/recall/internal/clock"
	"github.com/conorfennell/recall/internal/config"
	"github.com/conorfennell/recall/internal/domain"
	"github.com/conorfennell/recall/internal/logging"
	"github.com/conorfennell/recall/internal/metrics"
	"github.com/conorfennell/recall/internal/srs"
	"github.com/conorfennell/recall/internal/storage"
	"github.com/conorfennell/recall/internal/study"
	"github.com/conorfennell/recall/internal/sync"
	"github.com/conorfennell/recall/internal/web"
	"github.com/m-mizutani/goerr/v2"
)

const usage = `Usage: recall <command> [flags] [args]

Commands:
  serve                     run the HTTP API
  sync                      import every registered deck source
  add-source <path> <user>  register a directory or git URL for a user
  stats <user>              print the user's analytics report as JSON
  due <user>                list the user's due cards
  rebuild <user>            replay the user's review log with the current scheduler settings

Flags:
`

func main() {
	if err := run(os.Args[1:], os.Stdout); err != nil {
		logging.Default().Error("command failed", logging.ErrAttr(err))
		os.Exit(1)
	}
}

type app struct {
	cfg     *config.Config
	db      *storage.DB
	study   *study.Service
	syncer  *sync.Syncer
	metrics *metrics.Collector
}

func run(args []string, out io.Writer) error {
	if len(args) == 0 || args[0] == "-h" || args[0] == "--help" || args[0] == "help" {
		fmt.Fprint(out, usage)
		fmt.Fprint(out, config.FlagSet("recall").FlagUsages())
		return nil
	}
	command := args[0]

	cfg, rest, err := config.Load("recall "+command, args[1:])
	if err != nil {
		return err
	}

	level, err := logging.ParseLevel(cfg.Log.Level)
	if err != nil {
		return err
	}
	format, err := logging.ParseFormat(cfg.Log.Format)
	if err != nil {
		return err
	}
	logger, err := logging.New(os.Stderr, level, format)
	if err != nil {
		return err
	}
	logging.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logging.With(ctx, logger)

	loc, err := cfg.Analytics.Location()
	if err != nil {
		return err
	}
	ctx = clock.WithTimezone(ctx, loc)

	a, err := newApp(cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := a.db.Close(); err != nil {
			logger.Warn("failed to close database", logging.ErrAttr(err))
		}
	}()

	switch command {
	case "serve":
		return a.serve(ctx)
	case "sync":
		res, err := a.syncer.RunSync(ctx)
		if err != nil {
			return err
		}
		a.metrics.ObserveSync(res.Created, res.Suspended)
		return printJSON(out, res)
	case "add-source":
		if len(rest) != 2 {
			return goerr.New("add-source needs <path> <user>", goerr.T(domain.TagValidation))
		}
		src, err := a.syncer.AddSource(ctx, rest[0], rest[1])
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "added %s source %d: %s\n", src.Type, src.ID, src.Path)
		return nil
	case "stats":
		userID, err := oneUser(command, rest)
		if err != nil {
			return err
		}
		report, err := a.study.Performance(ctx, userID, study.ReportOptions{IncludeProjections: true})
		if err != nil {
			return err
		}
		return printJSON(out, report)
	case "rebuild":
		userID, err := oneUser(command, rest)
		if err != nil {
			return err
		}
		res, err := a.study.Rebuild(ctx, userID)
		if err != nil {
			return err
		}
		return printJSON(out, res)
	case "due":
		userID, err := oneUser(command, rest)
		if err != nil {
			return err
		}
		cards, err := a.study.Due(ctx, userID, 0)
		if err != nil {
			return err
		}
		now := clock.Now(ctx)
		for _, c := range cards {
			fmt.Fprintf(out, "%s\t%-10s\t%.2f\t%s\n", c.ID, c.LearningState, srs.CurrentStrength(c, now), c.Content.SourceText)
		}
		return nil
	}

	return goerr.New("unknown command", goerr.V("command", command), goerr.T(domain.TagValidation))
}

func newApp(cfg *config.Config) (*app, error) {
	db, err := storage.Open(cfg.DB)
	if err != nil {
		return nil, err
	}

	sched, err := srs.NewScheduler(cfg.Scheduler)
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	m := metrics.NewCollector("recall")
	return &app{
		cfg: cfg,
		db:  db,
		study: study.New(db, db, sched,
			study.WithMetrics(m),
			study.WithAnalyticsWindow(cfg.Analytics.Days),
		),
		syncer:  sync.New(db, cfg.ReposDir).WithProgress(os.Stderr),
		metrics: m,
	}, nil
}

func (a *app) serve(ctx context.Context) error {
	logger := logging.From(ctx)

	handler := web.NewServer(a.study,
		web.WithDecks(a.syncer),
		web.WithMetrics(a.metrics),
		web.WithAllowedOrigins(a.cfg.CORS.Origins),
	)
	srv := &http.Server{
		Addr:              a.cfg.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(_ net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting server", "addr", a.cfg.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return goerr.Wrap(err, "server stopped", goerr.V("addr", a.cfg.Addr))
	case <-ctx.Done():
	}

	logger.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return goerr.Wrap(err, "failed to shut down server")
	}
	return nil
}

func oneUser(command string, rest []string) (string, error) {
	if len(rest) != 1 {
		return "", goerr.New("command needs exactly one <user>", goerr.V("command", command), goerr.T(domain.TagValidation))
	}
	return rest[0], nil
}

func printJSON(out io.Writer, v any) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return goerr.Wrap(err, "failed to write output")
	}
	return nil
}
