package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/user"

	"github.com/spf13/cobra"

	_ "github.com/nerrad567/partcompat/migrations" // registers the schema

	"github.com/nerrad567/partcompat/internal/audit"
	"github.com/nerrad567/partcompat/internal/compat"
	"github.com/nerrad567/partcompat/internal/infrastructure/config"
	"github.com/nerrad567/partcompat/internal/infrastructure/database"
	"github.com/nerrad567/partcompat/internal/infrastructure/logging"
	"github.com/nerrad567/partcompat/internal/infrastructure/mqtt"
)

// Default configuration file path
const defaultConfigPath = "configs/config.yaml"

// rootOptions holds the persistent flags shared by every subcommand.
type rootOptions struct {
	configPath string
	jsonOut    bool
	verbose    bool
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:           "partcompat",
		Short:         "Phone display and glass compatibility store",
		Version:       fmt.Sprintf("%s (commit %s, built %s)", version, commit, date),
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "config file (default $PARTCOMPAT_CONFIG or "+defaultConfigPath+")")
	cmd.PersistentFlags().BoolVar(&opts.jsonOut, "json", false, "print results as JSON")
	cmd.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "log to stderr while running one-shot commands")

	cmd.AddCommand(
		newServeCmd(opts),
		newLinkCmd(opts),
		newFindCmd(opts),
		newCompatibleCmd(opts),
		newDeleteCmd(opts),
		newListCmd(opts),
		newGroupsCmd(opts),
		newCheckCmd(opts),
		newWatchCmd(opts),
	)
	return cmd
}

// getConfigPath returns the flag value, then PARTCOMPAT_CONFIG, then the
// default path.
func (o *rootOptions) getConfigPath() (path string, explicit bool) {
	if o.configPath != "" {
		return o.configPath, true
	}
	if path := os.Getenv("PARTCOMPAT_CONFIG"); path != "" {
		return path, true
	}
	return defaultConfigPath, false
}

// loadConfig reads the config file. A missing default file falls back to
// built-in defaults; a missing explicit file is an error.
func (o *rootOptions) loadConfig() (*config.Config, error) {
	path, explicit := o.getConfigPath()
	cfg, err := config.Load(path)
	if err == nil {
		return cfg, nil
	}
	if !explicit && errors.Is(err, os.ErrNotExist) {
		return config.Default()
	}
	return nil, fmt.Errorf("loading config: %w", err)
}

// cliLogger returns a stderr logger when --verbose is set, else a discarding one.
func (o *rootOptions) cliLogger(cfg *config.Config) *logging.Logger {
	if !o.verbose {
		return logging.Discard()
	}
	lc := cfg.Logging
	lc.Output = "stderr"
	lc.Format = "text"
	return logging.New(lc, version)
}

// session is an opened store for a one-shot command.
type session struct {
	cfg    *config.Config
	log    *logging.Logger
	db     *database.DB
	engine *compat.Engine
	audit  *audit.SQLiteRepository
	mqtt   *mqtt.Client
}

// openSession loads config, opens and migrates the database and builds an
// engine. When withEvents is set and MQTT is enabled, change events are
// published as the server would.
func (o *rootOptions) openSession(ctx context.Context, withEvents bool) (*session, error) {
	cfg, err := o.loadConfig()
	if err != nil {
		return nil, err
	}
	log := o.cliLogger(cfg)

	db, err := database.Open(ctx, database.Config{
		Path:        cfg.Database.Path,
		WALMode:     cfg.Database.WALMode,
		BusyTimeout: cfg.Database.BusyTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if err := db.Migrate(ctx); err != nil {
		db.Close() //nolint:errcheck // already failing
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	engine, err := compat.NewEngine(db.DB, 0) // cache disabled
	if err != nil {
		db.Close() //nolint:errcheck // already failing
		return nil, err
	}
	engine.SetLogger(log.With("component", "compat"))

	s := &session{cfg: cfg, log: log, db: db, engine: engine, audit: audit.NewSQLiteRepository(db.DB)}

	if withEvents && cfg.MQTT.Enabled {
		client, err := mqtt.Connect(cfg.MQTT)
		if err != nil {
			log.Warn("MQTT unavailable, change events will not be published", "error", err)
		} else {
			client.SetLogger(log)
			s.mqtt = client
			engine.SetPublisher(&eventPublisher{client: client})
		}
	}
	return s, nil
}

func (s *session) Close() {
	if s.mqtt != nil {
		if err := s.mqtt.Close(); err != nil {
			s.log.Error("error closing MQTT", "error", err)
		}
	}
	if err := s.db.Close(); err != nil {
		s.log.Error("error closing database", "error", err)
	}
}

// recordAudit writes a cli-sourced audit entry synchronously.
func (s *session) recordAudit(ctx context.Context, entry *audit.AuditLog) {
	entry.Source = "cli"
	if entry.CallerID == "" {
		entry.CallerID = currentUser()
	}
	if err := s.audit.Create(ctx, entry); err != nil {
		s.log.Warn("audit entry not written", "action", entry.Action, "error", err)
	}
}

func currentUser() string {
	if u, err := user.Current(); err == nil {
		return u.Username
	}
	return os.Getenv("USER")
}

// printJSON writes v as indented JSON.
func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
