package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"payments-engine/config"
	"payments-engine/csvio"
	"payments-engine/ledger"
	"payments-engine/logging"
	"payments-engine/model"
	"payments-engine/storage"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	exitOK    = 0
	exitIO    = 1
	exitUsage = 2
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}

func run(args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	// Setup signal handling so an interrupted run stops reading input
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	dotenv := config.LoadDotEnv()

	cfg, err := config.Load(args)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			fmt.Fprint(stderr, config.Usage)
			return exitOK
		}
		fmt.Fprintf(stderr, "%v\n\n%s", err, config.Usage)
		return exitUsage
	}

	logger, err := logging.New(cfg.Logger, cfg.Verbosity, stderr)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return exitUsage
	}
	defer logger.Sync() //nolint:errcheck

	runID := uuid.NewString()
	logger = logger.With(zap.String("run_id", runID))
	if !dotenv {
		logger.Debug("no .env file found, using environment and flags")
	}

	var input io.Reader = stdin
	name := "stdin"
	if !cfg.UseStdin() {
		f, err := os.Open(cfg.Input)
		if err != nil {
			logger.Error("open input", zap.Error(err))
			return exitIO
		}
		defer f.Close()
		input, name = f, cfg.Input
	}

	engine := ledger.NewEngine(logger, ledger.Config{Workers: cfg.Workers, QueueDepth: cfg.QueueDepth})
	res, err := engine.ProcessAll(ctx, csvio.NewReader(bufio.NewReader(input)))
	if err != nil {
		logger.Error("process transactions", zap.String("input", name), zap.Error(err))
		return exitIO
	}

	for _, r := range res.Rejections {
		logger.Info("rejected",
			zap.Uint64("seq", r.Seq),
			zap.Uint16("client", r.ClientID),
			zap.Uint32("tx", r.TxID),
			zap.String("type", string(r.Type)),
			zap.Error(r.Reason),
		)
	}

	snapshot := engine.Snapshot()
	out := bufio.NewWriter(stdout)
	if err := csvio.WriteSnapshot(out, snapshot, cfg.Precision); err != nil {
		logger.Error("write snapshot", zap.Error(err))
		return exitIO
	}
	if err := out.Flush(); err != nil {
		logger.Error("write snapshot", zap.Error(err))
		return exitIO
	}

	if cfg.DatabaseURL != "" {
		if err := export(ctx, cfg.DatabaseURL, runID, snapshot, res.Rejections); err != nil {
			logger.Error("export report", zap.Error(err))
			return exitIO
		}
		logger.Info("report exported", zap.Int("accounts", len(snapshot)))
	}

	logger.Info("run complete",
		zap.String("input", name),
		zap.Int("accounts", len(snapshot)),
		zap.Int("processed", res.Processed),
		zap.Int("rejected", res.Rejected),
		zap.Int("malformed", res.Malformed),
	)
	return exitOK
}

func export(ctx context.Context, url, runID string, snapshot []model.AccountView, rejections []ledger.Rejection) error {
	store, err := storage.NewPostgresStore(ctx, url)
	if err != nil {
		return err
	}
	defer store.Close()

	return save(ctx, store, runID, snapshot, rejections)
}

func save(ctx context.Context, store storage.Store, runID string, snapshot []model.AccountView, rejections []ledger.Rejection) error {
	if err := store.SaveSnapshot(ctx, runID, snapshot); err != nil {
		return err
	}
	return store.SaveRejections(ctx, runID, rejections)
}
