package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nerrad567/partcompat/internal/api"
	"github.com/nerrad567/partcompat/internal/audit"
	"github.com/nerrad567/partcompat/internal/compat"
	"github.com/nerrad567/partcompat/internal/infrastructure/config"
	"github.com/nerrad567/partcompat/internal/infrastructure/database"
	"github.com/nerrad567/partcompat/internal/infrastructure/influxdb"
	"github.com/nerrad567/partcompat/internal/infrastructure/logging"
	"github.com/nerrad567/partcompat/internal/infrastructure/mqtt"
)

func newServeCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := opts.loadConfig()
			if err != nil {
				return err
			}
			return run(cmd.Context(), cfg, logging.New(cfg.Logging, version))
		},
	}
}

// run is the server lifecycle, separated from the command for testability.
// It returns nil on clean shutdown.
func run(ctx context.Context, cfg *config.Config, log *logging.Logger) error {
	log.Info("starting partcompat",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	db, err := database.Open(ctx, database.Config{
		Path:        cfg.Database.Path,
		WALMode:     cfg.Database.WALMode,
		BusyTimeout: cfg.Database.BusyTimeout,
	})
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer func() {
		log.Info("closing database")
		if closeErr := db.Close(); closeErr != nil {
			log.Error("error closing database", "error", closeErr)
		}
	}()
	log.Info("database connected", "path", cfg.Database.Path)

	if migrateErr := db.Migrate(ctx); migrateErr != nil {
		return fmt.Errorf("running migrations: %w", migrateErr)
	}
	log.Info("database migrations complete")

	engine, err := compat.NewEngine(db.DB, cfg.Cache.Size)
	if err != nil {
		return fmt.Errorf("creating compat engine: %w", err)
	}
	engine.SetLogger(log.With("component", "compat"))
	engine.AddObserver(metricsObserver{})

	// Connect to MQTT broker (optional)
	var mqttClient *mqtt.Client
	if cfg.MQTT.Enabled {
		mqttClient, err = mqtt.Connect(cfg.MQTT)
		if err != nil {
			return fmt.Errorf("connecting to MQTT: %w", err)
		}
		defer func() {
			log.Info("disconnecting from MQTT")
			if closeErr := mqttClient.Close(); closeErr != nil {
				log.Error("error closing MQTT", "error", closeErr)
			}
		}()
		log.Info("MQTT connected",
			"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
			"client_id", cfg.MQTT.Broker.ClientID,
		)
		mqttClient.SetLogger(log)
		mqttClient.SetOnConnect(func() {
			log.Info("MQTT reconnected")
		})
		mqttClient.SetOnDisconnect(func(err error) {
			log.Warn("MQTT disconnected", "error", err)
		})
		engine.SetPublisher(&eventPublisher{client: mqttClient})
	} else {
		log.Info("MQTT disabled, change events will not be published")
	}

	// Connect to InfluxDB (optional)
	var influxClient *influxdb.Client
	if cfg.InfluxDB.Enabled {
		influxClient, err = influxdb.Connect(ctx, cfg.InfluxDB)
		if err != nil {
			return fmt.Errorf("connecting to InfluxDB: %w", err)
		}
		defer func() {
			log.Info("closing InfluxDB connection")
			if closeErr := influxClient.Close(); closeErr != nil {
				log.Error("error closing InfluxDB", "error", closeErr)
			}
		}()
		log.Info("InfluxDB connected",
			"url", cfg.InfluxDB.URL,
			"org", cfg.InfluxDB.Org,
			"bucket", cfg.InfluxDB.Bucket,
		)
		influxClient.SetOnError(func(err error) {
			log.Error("InfluxDB write error", "error", err)
		})
		engine.AddObserver(influxObserver{client: influxClient})
	} else {
		log.Info("InfluxDB disabled")
	}

	if err := healthCheck(ctx, db, mqttClient, influxClient); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	log.Info("all health checks passed")

	reportIntegrity(ctx, engine, log)

	deps := api.Deps{
		Config:    cfg.API,
		Admin:     cfg.Admin,
		Logger:    log.With("component", "api"),
		Engine:    engine,
		DB:        db,
		AuditRepo: audit.NewSQLiteRepository(db.DB),
		Version:   version,
	}
	if mqttClient != nil {
		deps.MQTT = mqttClient
	}
	srv, err := api.New(deps)
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}
	if err := srv.Start(ctx); err != nil {
		return fmt.Errorf("starting API server: %w", err)
	}
	defer func() {
		if closeErr := srv.Close(); closeErr != nil {
			log.Error("error closing API server", "error", closeErr)
		}
	}()
	if len(cfg.Admin.UserIDs) == 0 {
		log.Warn("no admin.user_ids configured, link and delete endpoints will reject every caller")
	}

	log.Info("initialisation complete, waiting for shutdown signal")
	<-ctx.Done()
	log.Info("shutdown signal received, cleaning up")

	// Deferred Close() calls run in reverse order:
	// API server (drains audit queue), InfluxDB, MQTT, database.
	return nil
}

// healthCheck verifies all infrastructure connections are healthy.
// mqttClient and influxClient may be nil when disabled.
func healthCheck(ctx context.Context, db *database.DB, mqttClient *mqtt.Client, influxClient *influxdb.Client) error {
	if err := db.HealthCheck(ctx); err != nil {
		return fmt.Errorf("database: %w", err)
	}
	if mqttClient != nil {
		if err := mqttClient.HealthCheck(ctx); err != nil {
			return fmt.Errorf("mqtt: %w", err)
		}
	}
	if influxClient != nil {
		if err := influxClient.HealthCheck(ctx); err != nil {
			return fmt.Errorf("influxdb: %w", err)
		}
	}
	return nil
}

// reportIntegrity logs any reference mismatches found at startup. It never
// blocks startup; repairs are a manual step.
func reportIntegrity(ctx context.Context, engine *compat.Engine, log *logging.Logger) {
	report, err := engine.CheckIntegrity(ctx)
	if err != nil {
		log.Warn("integrity check failed", "error", err)
		return
	}
	if report.OK() {
		log.Info("integrity check passed", "phones", report.Phones, "groups", report.Groups)
		return
	}
	for _, is := range report.Issues {
		log.Warn("integrity issue",
			"kind", is.Kind,
			"model", is.ModelID,
			"group_id", is.GroupID,
			"part_type", string(is.PartType),
			"detail", is.Detail,
		)
	}
}
