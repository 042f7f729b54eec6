// Fleet Core - IoT Fleet Management Backend
//
// This is the main entry point for the Fleet Core server. It ingests
// vehicle telemetry over MQTT, maintains the device registry and
// presence state, persists telemetry history and latest snapshots to
// SQLite, mirrors measurements to InfluxDB, and serves the operator
// REST/WebSocket API.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/draycott-io/fleet-core/migrations"

	"github.com/draycott-io/fleet-core/internal/api"
	"github.com/draycott-io/fleet-core/internal/device"
	"github.com/draycott-io/fleet-core/internal/infrastructure/config"
	"github.com/draycott-io/fleet-core/internal/infrastructure/database"
	"github.com/draycott-io/fleet-core/internal/infrastructure/influxdb"
	"github.com/draycott-io/fleet-core/internal/infrastructure/logging"
	"github.com/draycott-io/fleet-core/internal/infrastructure/mqtt"
	"github.com/draycott-io/fleet-core/internal/ingest"
	"github.com/draycott-io/fleet-core/internal/telemetry"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"     // Semantic version (e.g., "1.0.0")
	commit  = "unknown" // Git commit hash
	date    = "unknown" // Build date
)

// Default configuration file path
const defaultConfigPath = "configs/config.yaml"

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run is the actual application logic, separated from main for testability.
// Returning an error allows main to handle exit codes consistently.
func run(ctx context.Context) error {
	// Use default logger until config is loaded
	log := logging.Default()
	log.Info("starting Fleet Core",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	configPath := getConfigPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log.Info("configuration loaded", "path", configPath)

	// Reinitialise logger with config settings
	log = logging.New(cfg.Logging, version)
	log.Info("logger initialised",
		"level", cfg.Logging.Level,
		"format", cfg.Logging.Format,
	)

	// Open database
	db, err := database.Open(database.Config{
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

	// Initialise device registry
	registry := device.NewRegistry(device.NewSQLiteRepository(db))
	registry.SetLogger(log)

	if refreshErr := registry.RefreshCache(ctx); refreshErr != nil {
		return fmt.Errorf("loading device registry: %w", refreshErr)
	}
	log.Info("device registry initialised", "devices", registry.DeviceCount())

	// Connect to MQTT broker
	mqttClient, err := mqtt.Connect(cfg.MQTT)
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

	mqttClient.SetOnConnect(func() {
		log.Info("MQTT reconnected")
	})
	mqttClient.SetOnDisconnect(func(err error) {
		log.Warn("MQTT disconnected", "error", err)
	})

	// Connect to InfluxDB (optional)
	var influxClient *influxdb.Client
	if cfg.InfluxDB.Enabled {
		influxClient, err = influxdb.Connect(cfg.InfluxDB)
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
	} else {
		log.Info("InfluxDB disabled")
	}

	// Telemetry service: history + snapshot + alarms + cache
	cache := telemetry.NewCache(cfg.CacheTTL())
	defer cache.Close()

	telemetrySvc := telemetry.NewService(
		telemetry.NewSQLiteHistoryStore(db),
		telemetry.NewSQLiteSnapshotStore(db),
		telemetry.NewSQLiteAlarmStore(db),
		cache,
	)
	telemetrySvc.SetLogger(log)
	if influxClient != nil {
		telemetrySvc.SetAnalytics(influxClient)
	}

	// API server (created before the pipeline so its WebSocket hub can
	// receive telemetry broadcasts)
	apiServer, err := api.New(api.Deps{
		Config:    cfg.API,
		WS:        cfg.WebSocket,
		Security:  cfg.Security,
		Logger:    log,
		Registry:  registry,
		Telemetry: telemetrySvc,
		MQTT:      mqttClient,
		Version:   version,
	})
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}
	telemetrySvc.SetBroadcaster(apiServer.Hub())

	// Ingest pipeline: device messages fan in through a worker pool
	handlers := ingest.NewHandlers(registry, telemetrySvc)
	handlers.SetLogger(log)
	if influxClient != nil {
		handlers.SetPresenceRecorder(influxClient)
	}

	pipeline := ingest.NewPipeline(handlers, ingest.PipelineConfig{
		Workers:        cfg.Ingest.Workers,
		QueueSize:      cfg.Ingest.QueueSize,
		MessageTimeout: cfg.MessageTimeout(),
	})
	pipeline.SetLogger(log)
	pipeline.Start(ctx)
	defer pipeline.Stop()

	qos := byte(cfg.MQTT.QoS)
	if subErr := mqttClient.Subscribe(mqtt.Topics{}.AllDeviceTopics(), qos, pipeline.Enqueue); subErr != nil {
		return fmt.Errorf("subscribing to device topics: %w", subErr)
	}
	log.Info("subscribed to device topics", "topic", mqtt.Topics{}.AllDeviceTopics())

	// Start the API server last so every dependency is wired
	if startErr := apiServer.Start(ctx); startErr != nil {
		return fmt.Errorf("starting API server: %w", startErr)
	}
	defer func() {
		if closeErr := apiServer.Close(); closeErr != nil {
			log.Error("error closing API server", "error", closeErr)
		}
	}()

	// Announce server presence (retained, cleared by LWT on failure)
	if pubErr := mqttClient.PublishRetained(mqtt.Topics{}.ServerStatus(), []byte(`{"status":"online"}`)); pubErr != nil {
		log.Warn("failed to publish server status", "error", pubErr)
	}

	// Verify all connections are healthy
	if err := healthCheck(ctx, db, mqttClient, influxClient); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	log.Info("all health checks passed")

	log.Info("initialisation complete, waiting for shutdown signal")

	<-ctx.Done()

	log.Info("shutdown signal received, cleaning up")

	// Deferred Close() calls run in reverse order:
	// 1. API server
	// 2. Ingest pipeline (drains the queue)
	// 3. Snapshot cache
	// 4. InfluxDB (if enabled)
	// 5. MQTT
	// 6. Database

	log.Info("Fleet Core stopped")
	return nil
}

// getConfigPath returns the configuration file path.
// Uses FLEETCORE_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("FLEETCORE_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// healthCheck verifies all infrastructure connections are healthy.
func healthCheck(ctx context.Context, db *database.DB, mqttClient *mqtt.Client, influxClient *influxdb.Client) error {
	if err := db.HealthCheck(ctx); err != nil {
		return fmt.Errorf("database: %w", err)
	}

	if err := mqttClient.HealthCheck(ctx); err != nil {
		return fmt.Errorf("mqtt: %w", err)
	}

	if influxClient != nil {
		if err := influxClient.HealthCheck(ctx); err != nil {
			return fmt.Errorf("influxdb: %w", err)
		}
	}

	return nil
}
