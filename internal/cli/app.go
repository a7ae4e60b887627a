package cli

import (
	"database/sql"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/dukerupert/freshmate/internal/auth"
	"github.com/dukerupert/freshmate/internal/backup"
	"github.com/dukerupert/freshmate/internal/config"
	"github.com/dukerupert/freshmate/internal/database"
	"github.com/dukerupert/freshmate/internal/email"
	"github.com/dukerupert/freshmate/internal/inventory"
	"github.com/dukerupert/freshmate/internal/logging"
	"github.com/dukerupert/freshmate/internal/model"
	"github.com/dukerupert/freshmate/internal/notify"
	"github.com/dukerupert/freshmate/internal/store"
)

// dataFile is a persistence backend that can also be backed up.
type dataFile interface {
	inventory.Backend
	backup.Source
}

// app is the wired program for one command invocation.
type app struct {
	cfg     config.Config
	logger  *slog.Logger
	backend dataFile
	sink    notify.Sink
	now     func() time.Time
	db      *sql.DB
}

func newApp(opts *RootOptions, logOut io.Writer) (*app, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}

	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "load config", err)
	}
	if opts.LogLevel != "" {
		cfg.LogLevel = opts.LogLevel
	}
	logger := logging.Setup(logOut, cfg.LogLevel, cfg.LogFormat)

	a := &app{cfg: cfg, logger: logger, now: time.Now}
	if opts.Today != "" {
		today, _ := model.ParseDate(opts.Today)
		a.now = func() time.Time { return today }
	}

	switch cfg.DataBackend {
	case config.BackendSQLite:
		db, err := database.Open(cfg.DataPath)
		if err != nil {
			return nil, WrapExitError(ExitCommandError, "open database", err)
		}
		a.db = db
		a.backend = store.NewItemStore(db)
	default:
		a.backend = store.NewCSVFile(cfg.DataPath)
	}

	if opts.sink != nil {
		a.sink = opts.sink
	} else {
		client := email.NewClient(cfg.PostmarkToken, cfg.FromEmail, email.WithTimeout(cfg.EmailTimeout))
		if !client.Configured() {
			logger.Warn("postmark token not set, notifications will fail and be retried")
		}
		a.sink = client
	}

	logger.Debug("app ready", "backend", cfg.DataBackend, "path", cfg.DataPath)
	return a, nil
}

func (a *app) Close() error {
	if a.db != nil {
		return a.db.Close()
	}
	return nil
}

func (a *app) service(opts ...inventory.ServiceOption) *inventory.Service {
	st := inventory.NewStore(a.backend, inventory.WithStoreLogger(a.logger.With("component", "store")))
	eval := notify.NewEvaluator(a.sink,
		notify.WithWindow(a.cfg.ReminderWindowDays),
		notify.WithPolicy(a.cfg.Policy()),
		notify.WithLogger(a.logger.With("component", "notify")),
	)
	opts = append([]inventory.ServiceOption{
		inventory.WithClock(a.now),
		inventory.WithLoginNotice(a.cfg.NotifyOnLogin),
		inventory.WithServiceLogger(a.logger.With("component", "inventory")),
	}, opts...)
	return inventory.NewService(st, eval, auth.NewManager(), a.sink, opts...)
}

func (a *app) backups() *backup.Manager {
	return backup.NewManager(backup.S3Config{
		Endpoint:  a.cfg.S3Endpoint,
		Bucket:    a.cfg.S3Bucket,
		Region:    a.cfg.S3Region,
		AccessKey: a.cfg.S3AccessKey,
		SecretKey: a.cfg.S3SecretKey,
		Prefix:    a.cfg.S3Prefix,
	}, a.backend, a.logger)
}

// ownerSession is the identity CLI commands act as. The CLI has no login
// step, so the owner email names the session directly.
func ownerSession(owner string) (auth.Session, error) {
	if owner == "" {
		return auth.Session{}, NewExitError(ExitCommandError, "--owner is required")
	}
	return auth.Session{Name: owner, Email: owner}, nil
}

// passError maps a pass outcome to an exit error.
func passError(p inventory.Pass) error {
	if p.SaveErr != nil {
		return WrapExitError(ExitCommandError, "save inventory", p.SaveErr)
	}
	if len(p.Failed) > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d notification(s) not delivered", len(p.Failed)))
	}
	return nil
}
