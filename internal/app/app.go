package app

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"

	"draftmark/internal/archive"
	"draftmark/internal/config"
	"draftmark/internal/database"
	"draftmark/internal/encryption"
	"draftmark/internal/lock"
	"draftmark/internal/review"
)

// App is the application layer between the CLI and review.Service.
// It constructs all dependencies from config, records mutating commands in
// the operation history, and releases resources on Close.
type App struct {
	cfg     *config.Config
	db      review.Database
	locker  review.Locker
	service *review.Service
	clock   review.Clock
	op      *Operation
	logFile *os.File
}

// Options configure NewApp.
type Options struct {
	// Passphrase unlocks sealed archives. It may be nil when encryption is off.
	Passphrase archive.PassphraseFunc

	// Console receives log records at or above warning level, or info level
	// when Verbose is set. Defaults to os.Stderr.
	Console io.Writer
	Verbose bool

	// Clock and IDs default to the wall clock and random UUIDs.
	Clock review.Clock
	IDs   review.IDGenerator
}

// NewApp creates a fully wired App from the given config.
// operation identifies the CLI command being run (e.g. "markup add").
// The caller must call Close when done.
func NewApp(ctx context.Context, cfg *config.Config, operation string, opts Options) (*App, error) {
	db, err := database.NewDatabaseFromConfig(ctx, cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("creating database: %w", err)
	}

	if err := db.CheckMigrations(); err != nil {
		db.Close()
		return nil, fmt.Errorf("database schema out of date (run config init): %w", err)
	}

	enc, err := encryption.NewEncryptorFromConfig(cfg.Archive.Encryption)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating encryptor: %w", err)
	}
	if enc != nil && !enc.IsConfigured() {
		db.Close()
		return nil, fmt.Errorf("archive encryption keys missing (run config init)")
	}

	backend, err := archive.NewArchiveFromConfig(ctx, cfg.Archive, enc, opts.Passphrase)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating archive: %w", err)
	}

	locker, err := lock.NewLockerFromConfig(cfg.Lock)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating locker: %w", err)
	}

	var clock review.Clock = review.RealClock{}
	if opts.Clock != nil {
		clock = opts.Clock
	}
	var ids review.IDGenerator = review.UUIDGenerator{}
	if opts.IDs != nil {
		ids = opts.IDs
	}
	console := opts.Console
	if console == nil {
		console = os.Stderr
	}
	level := slog.LevelWarn
	if opts.Verbose {
		level = slog.LevelInfo
	}

	opID := clock.Now().UTC().Format("20060102T150405Z")
	logger, logFile, err := newLogger(cfg.LogDir, opID, console, level)
	if err != nil {
		closeLocker(locker)
		db.Close()
		return nil, fmt.Errorf("creating logger: %w", err)
	}

	svc := review.NewService(db, locker, backend, &slogAdapter{l: logger}, clock, ids,
		review.Options{EnforceTransitions: cfg.Feedback.EnforceTransitions})

	return &App{
		cfg:     cfg,
		db:      db,
		locker:  locker,
		service: svc,
		clock:   clock,
		op:      NewOperation(operation),
		logFile: logFile,
	}, nil
}

// Setup prepares storage for first use: it migrates the database schema and,
// when archive encryption is enabled, generates the key pair.
func Setup(ctx context.Context, cfg *config.Config, passphrase archive.PassphraseFunc) error {
	db, err := database.NewDatabaseFromConfig(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("creating database: %w", err)
	}
	defer db.Close()

	if err := db.MigrateUp(); err != nil {
		return fmt.Errorf("migrating database: %w", err)
	}

	enc, err := encryption.NewEncryptorFromConfig(cfg.Archive.Encryption)
	if err != nil {
		return fmt.Errorf("creating encryptor: %w", err)
	}
	if enc == nil || enc.IsConfigured() {
		return nil
	}
	if passphrase == nil {
		return fmt.Errorf("archive encryption needs a passphrase")
	}
	pass, err := passphrase()
	if err != nil {
		return fmt.Errorf("reading passphrase: %w", err)
	}
	if err := enc.Setup(pass); err != nil {
		return fmt.Errorf("generating archive keys: %w", err)
	}
	return nil
}

// persistOperation saves the operation to the database, giving it an id.
// This should only be called for DB-mutating commands.
func (a *App) persistOperation(ctx context.Context, parameters any) error {
	if a.op.Persisted() {
		return nil
	}
	params, err := json.Marshal(parameters)
	if err != nil {
		return fmt.Errorf("encoding operation parameters: %w", err)
	}
	a.op.Parameters = string(params)

	dbOp, err := a.db.CreateOperation(ctx, a.op.Operation, a.op.Parameters, a.clock.Now())
	if err != nil {
		return fmt.Errorf("persisting operation: %w", err)
	}
	a.op.ID = dbOp.ID
	return nil
}

// mutate records the operation, then runs fn. A failing fn marks the
// operation as errored.
func mutate[T any](ctx context.Context, a *App, parameters any, fn func() (T, error)) (T, error) {
	var zero T
	if err := a.persistOperation(ctx, parameters); err != nil {
		return zero, err
	}
	v, err := fn()
	if err != nil {
		a.op.Fail()
		return zero, err
	}
	return v, nil
}

// Operation returns the command being tracked.
func (a *App) Operation() *Operation {
	return a.op
}

// Close finalizes the operation record and closes all resources.
func (a *App) Close() error {
	var firstErr error

	if a.op.Persisted() {
		if err := a.db.FinishOperation(context.Background(), a.op.ID, a.op.Status, a.clock.Now()); err != nil {
			firstErr = fmt.Errorf("finishing operation: %w", err)
		}
	}

	if err := a.db.Close(); err != nil && firstErr == nil {
		firstErr = fmt.Errorf("closing database: %w", err)
	}

	if err := closeLocker(a.locker); err != nil && firstErr == nil {
		firstErr = fmt.Errorf("closing locker: %w", err)
	}

	if a.logFile != nil {
		a.logFile.Close()
	}

	return firstErr
}

func closeLocker(l review.Locker) error {
	if c, ok := l.(interface{ Close() error }); ok {
		return c.Close()
	}
	return nil
}
