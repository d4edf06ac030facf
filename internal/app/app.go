package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"dirzip/internal/config"
	"dirzip/internal/database"
	"dirzip/internal/dirzip"
	"dirzip/internal/encryption"
	"dirzip/internal/export"
	"dirzip/internal/fs"
	"dirzip/internal/memory"
	"dirzip/internal/model"
	"dirzip/internal/server"
)

// ErrJournalDisabled is returned by History when the journal is turned off.
var ErrJournalDisabled = errors.New("transfer journal is disabled (database.type = \"none\")")

// DirZipApp is the application layer between the CLI and ArchiveService.
// It constructs all dependencies from config, exposes high-level operations
// that accept raw string paths, and manages the journal lifecycle on Close.
type DirZipApp struct {
	cfg       *config.Config
	db        *database.SQLiteDatabase // nil when the journal is disabled
	fsmgr     *fs.OSFilesystemManager
	encryptor encryption.Encryptor
	service   *dirzip.ArchiveService
	logger    *slog.Logger
	op        *Operation
	logFile   *os.File

	stdout      *os.File
	newUploader func(ctx context.Context, cfg config.ExportConfig) (export.Uploader, error)
}

// NewDirZipApp creates a fully wired DirZipApp from the given config.
// command and args identify the CLI command being run and go into the log.
// The caller must call Close when done.
func NewDirZipApp(cfg *config.Config, command, args string) (*DirZipApp, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	level, err := parseLevel(cfg.LogLevel)
	if err != nil {
		return nil, err
	}

	fsmgr := fs.NewOSFilesystemManager(cfg.Filesystem.Ignore)

	enc, err := encryption.NewEncryptorFromConfig(cfg.Encryption)
	if err != nil {
		return nil, fmt.Errorf("creating encryptor: %w", err)
	}

	db, err := database.NewDatabaseFromConfig(cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("creating database: %w", err)
	}
	if db != nil {
		if err := db.CheckMigrations(); err != nil {
			db.Close()
			return nil, fmt.Errorf("database schema out of date: %w", err)
		}
	}

	op := NewOperation(command, args, time.Now())
	logger, logFile, err := newLogger(cfg.LogDir, op.ID, level)
	if err != nil {
		if db != nil {
			db.Close()
		}
		return nil, fmt.Errorf("creating logger: %w", err)
	}
	adapter := &slogAdapter{l: logger}

	var monitor *dirzip.ResourceMonitor
	if !cfg.Memory.Disabled {
		monitor = dirzip.NewResourceMonitor(memory.NewSampler(), memory.NewGCReclaimer(), dirzip.RealClock{}, adapter)
		monitor.CheckFloor = cfg.Memory.CheckFloor
		monitor.Interval = cfg.Memory.CheckInterval.Duration
		monitor.Ceiling = cfg.Memory.Ceiling
	}

	// A nil *SQLiteDatabase must not become a non-nil TransferLog.
	var journal dirzip.TransferLog
	if db != nil {
		journal = db
	}

	svc := dirzip.NewArchiveService(fsmgr, cfg.Flow.FlowPolicy(), monitor, journal, adapter,
		dirzip.RealClock{}, dirzip.UUIDGenerator{}, cfg.Transfer.Options())

	logger.Debug("starting command", "command", command, "args", args)

	return &DirZipApp{
		cfg:       cfg,
		db:        db,
		fsmgr:     fsmgr,
		encryptor: enc,
		service:   svc,
		logger:    logger,
		op:        op,
		logFile:   logFile,
		stdout:    os.Stdout,
		newUploader: func(ctx context.Context, cfg config.ExportConfig) (export.Uploader, error) {
			return export.NewS3Uploader(ctx, cfg)
		},
	}, nil
}

// Logger returns the app's structured logger.
func (a *DirZipApp) Logger() *slog.Logger {
	return a.logger
}

// Serve runs the HTTP download server until ctx is cancelled.
func (a *DirZipApp) Serve(ctx context.Context) error {
	sc := a.cfg.Server
	base, err := a.fsmgr.ResolveDir(sc.FolderRoot)
	if err != nil {
		return a.op.Record(fmt.Errorf("resolving folder root %q: %w", sc.FolderRoot, err))
	}

	handler := server.NewHandler(a.service, a.fsmgr, base, !sc.SkipLength, a.logger)
	srv := server.New(server.Config{
		Address:           sc.Addr,
		Handler:           handler.Routes(),
		MaxConnections:    sc.MaxConnections,
		ReadHeaderTimeout: sc.ReadHeaderTimeout.Duration,
		ShutdownTimeout:   sc.ShutdownTimeout.Duration,
		Logger:            a.logger,
	})
	a.logger.Info("serving folders", "folder_root", base)
	return a.op.Record(srv.Serve(ctx))
}

// Size resolves rawPath and returns the exact length of its archive.
func (a *DirZipApp) Size(ctx context.Context, rawPath string) (int64, error) {
	p, err := a.fsmgr.ResolveDir(rawPath)
	if err != nil {
		return 0, a.op.Record(fmt.Errorf("resolving path: %w", err))
	}
	n, err := a.service.Measure(ctx, p)
	return n, a.op.Record(err)
}

// PackOptions controls a pack export.
type PackOptions struct {
	// To is "-" for stdout, "s3://bucket/key" or a file path.
	To string
	// NoLength skips sizing. Encrypted exports are never sized.
	NoLength bool
	Encrypt  bool
	// Force allows writing the archive to a terminal.
	Force bool
}

// PackResult describes a finished pack export.
type PackResult struct {
	*dirzip.Result
	Destination string
}

// Pack resolves rawPath and streams its archive to opts.To.
func (a *DirZipApp) Pack(ctx context.Context, rawPath string, opts PackOptions) (*PackResult, error) {
	p, err := a.fsmgr.ResolveDir(rawPath)
	if err != nil {
		return nil, a.op.Record(fmt.Errorf("resolving path: %w", err))
	}

	dst, err := a.openDestination(ctx, opts)
	if err != nil {
		return nil, a.op.Record(err)
	}

	res, err := a.service.Transfer(ctx, dirzip.Request{
		Root:            p,
		Name:            filepath.Base(p),
		Mode:            "pack",
		CalculateLength: !opts.NoLength && !opts.Encrypt,
	}, dst)
	if ferr := dst.Finish(err); ferr != nil && err == nil {
		err = fmt.Errorf("finishing export: %w", ferr)
	}

	out := &PackResult{Result: res, Destination: dst.String()}
	if s3dst, ok := dst.(*export.S3Destination); ok && s3dst.Location() != "" {
		out.Destination = s3dst.Location()
	}
	return out, a.op.Record(err)
}

func (a *DirZipApp) openDestination(ctx context.Context, opts PackOptions) (export.Destination, error) {
	target, err := export.ParseTarget(opts.To)
	if err != nil {
		return nil, err
	}
	if opts.Encrypt && !a.encryptor.IsConfigured() {
		return nil, errors.New("encryption keys not found: run `dirzip keys init` first")
	}

	var dst export.Destination
	switch target.Kind {
	case export.TargetStdout:
		dst, err = export.NewStdoutDestination(a.stdout, opts.Force)
	case export.TargetFile:
		dst, err = export.NewFileDestination(target.Path)
	case export.TargetS3:
		var up export.Uploader
		up, err = a.newUploader(ctx, a.cfg.Export)
		if err == nil {
			dst = export.NewS3Destination(ctx, up, target.Bucket, target.Key)
		}
	}
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", target, err)
	}

	if opts.Encrypt {
		dst = export.NewEncryptedDestination(dst, a.encryptor)
	}
	return dst, nil
}

// History returns the most recent journaled transfers.
func (a *DirZipApp) History(limit int) ([]*model.Transfer, error) {
	if a.db == nil {
		return nil, ErrJournalDisabled
	}
	transfers, err := a.db.RecentTransfers(limit)
	return transfers, a.op.Record(err)
}

// KeysInit generates the export key pair, protecting the private key with
// passphrase.
func (a *DirZipApp) KeysInit(passphrase string) error {
	return a.op.Record(a.encryptor.Setup(passphrase))
}

// Decrypt unlocks the private key and decrypts an encrypted export from r
// into w.
func (a *DirZipApp) Decrypt(passphrase string, r io.Reader, w io.Writer) error {
	dc, err := a.encryptor.Unlock(passphrase)
	if err != nil {
		return a.op.Record(fmt.Errorf("unlocking private key: %w", err))
	}
	return a.op.Record(dc.Decrypt(r, w))
}

// Close logs the command's outcome and closes all resources.
func (a *DirZipApp) Close() error {
	var firstErr error

	a.logger.Debug("command finished",
		"command", a.op.Command,
		"status", a.op.Status,
		"duration", time.Since(a.op.Started).Truncate(time.Millisecond).String())

	if a.db != nil {
		if err := a.db.Close(); err != nil {
			firstErr = fmt.Errorf("closing database: %w", err)
		}
	}

	if a.logFile != nil {
		a.logFile.Close()
	}

	return firstErr
}
