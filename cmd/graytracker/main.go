// Gray Logic Tracker - FRITZ!Box presence tracking
//
// This is the main entry point for the Gray Logic Tracker service.
// It polls one or more FRITZ!Box routers over TR-064 and exposes the
// connected devices as presence trackers through:
//   - Home Assistant MQTT discovery
//   - A REST and WebSocket API
//   - InfluxDB presence history (optional)
//
// Running "graytracker -token <subject> [-role operator]" prints an API
// token signed with the configured secret and exits.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"

	"github.com/nerrad567/gray-logic-tracker/migrations"

	"github.com/nerrad567/gray-logic-tracker/internal/api"
	"github.com/nerrad567/gray-logic-tracker/internal/audit"
	"github.com/nerrad567/gray-logic-tracker/internal/auth"
	"github.com/nerrad567/gray-logic-tracker/internal/coordinator"
	"github.com/nerrad567/gray-logic-tracker/internal/entity"
	"github.com/nerrad567/gray-logic-tracker/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-tracker/internal/infrastructure/database"
	"github.com/nerrad567/gray-logic-tracker/internal/infrastructure/influxdb"
	"github.com/nerrad567/gray-logic-tracker/internal/infrastructure/logging"
	"github.com/nerrad567/gray-logic-tracker/internal/infrastructure/mqtt"
	"github.com/nerrad567/gray-logic-tracker/internal/tracker"
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

	if err := run(ctx, os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// options holds the parsed command-line flags.
type options struct {
	tokenSubject string
	tokenRole    string
}

func parseFlags(args []string) (options, error) {
	var opts options
	fs := flag.NewFlagSet("graytracker", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	fs.StringVar(&opts.tokenSubject, "token", "", "print an API token for `subject` and exit")
	fs.StringVar(&opts.tokenRole, "role", string(auth.RoleAdmin), "role granted by -token (viewer, operator, admin)")
	if err := fs.Parse(args); err != nil {
		return options{}, fmt.Errorf("parsing flags: %w", err)
	}
	if fs.NArg() > 0 {
		return options{}, fmt.Errorf("unexpected arguments: %v", fs.Args())
	}
	return opts, nil
}

// run is the actual application logic, separated from main for testability.
//
// Parameters:
//   - ctx: Context for cancellation and shutdown signals
//   - args: Command-line arguments without the program name
//   - stdout: Destination for -token output
//
// Returns:
//   - error: nil on clean shutdown, or error describing failure
func run(ctx context.Context, args []string, stdout io.Writer) error {
	opts, err := parseFlags(args)
	if err != nil {
		return err
	}

	if err := config.LoadDotEnv(""); err != nil {
		return fmt.Errorf("loading .env: %w", err)
	}

	configPath := getConfigPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	if opts.tokenSubject != "" {
		return printToken(stdout, cfg, opts)
	}

	log := logging.New(cfg.Logging, version)
	log.Info("starting Gray Logic Tracker",
		"version", version,
		"commit", commit,
		"build_date", date,
		"config", configPath,
		"routers", len(cfg.Routers),
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

	if migrateErr := db.Migrate(ctx, migrations.FS); migrateErr != nil {
		return fmt.Errorf("running migrations: %w", migrateErr)
	}
	log.Info("database migrations complete")

	// Entity and device registry
	registry := entity.NewRegistry(entity.NewSQLiteRepository(db))
	registry.SetLogger(log.Component("entity"))
	if refreshErr := registry.RefreshCache(ctx); refreshErr != nil {
		return fmt.Errorf("loading entity registry: %w", refreshErr)
	}
	log.Info("entity registry loaded")

	auditRepo := audit.NewSQLiteRepository(db.DB)

	// The integration does not exist yet when its sinks are built; the
	// MQTT command handler resolves it on use.
	var ready atomic.Pointer[tracker.Integration]
	setAccess := func(ctx context.Context, routerID, mac string, allow bool) error {
		integration := ready.Load()
		if integration == nil {
			return tracker.ErrRouterNotReady
		}
		err := integration.SetInternetAccess(ctx, routerID, mac, allow)
		recordMQTTCommand(ctx, auditRepo, log, routerID, mac, allow, err)
		return err
	}

	hub := api.NewHub(cfg.WebSocket, log.Component("websocket"))
	sinks := []tracker.Sink{hub}
	var observers []coordinator.CycleObserver

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
		mqttClient.SetLogger(log.Component("mqtt"))
		log.Info("MQTT connected",
			"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
			"client_id", cfg.MQTT.Broker.ClientID,
		)

		mqttSink := tracker.NewMQTTSink(mqttClient, setAccess)
		mqttSink.SetLogger(log.Component("mqtt_sink"))
		if startErr := mqttSink.Start(); startErr != nil {
			return fmt.Errorf("starting MQTT sink: %w", startErr)
		}
		mqttClient.SetOnConnect(func() {
			log.Info("MQTT reconnected, re-announcing trackers")
			mqttSink.Reannounce()
		})
		mqttClient.SetOnDisconnect(func(err error) {
			log.Warn("MQTT disconnected", "error", err)
		})
		sinks = append(sinks, mqttSink)
	} else {
		log.Info("MQTT disabled")
	}

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

		influxSink := tracker.NewInfluxSink(influxClient)
		sinks = append(sinks, influxSink)
		observers = append(observers, influxSink)
	} else {
		log.Info("InfluxDB disabled")
	}

	// Verify all connections are healthy before touching the routers
	if err := healthCheck(ctx, db, mqttClient, influxClient); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	log.Info("all health checks passed")

	integration, err := tracker.New(tracker.Options{
		Routers:    cfg.Routers,
		Entities:   registry,
		Dial:       tracker.DialFritz(log.Component("fritz")),
		Sinks:      sinks,
		Observers:  observers,
		RetryDelay: cfg.GetSetupRetryDelay(),
	})
	if err != nil {
		return fmt.Errorf("creating tracker integration: %w", err)
	}
	integration.SetLogger(log.Component("tracker"))
	ready.Store(integration)
	defer func() {
		log.Info("unloading routers")
		integration.Unload()
	}()

	// Start WebSocket hub and API server
	hubCtx, stopHub := context.WithCancel(ctx)
	defer stopHub()
	go hub.Run(hubCtx)

	deps := api.Deps{
		Config:   cfg.API,
		WS:       cfg.WebSocket,
		Security: cfg.Security,
		Logger:   log.Component("api"),
		Tracker:  integration,
		Hub:      hub,
		Audit:    auditRepo,
		Version:  version,
	}
	if influxClient != nil {
		deps.History = influxClient
	}
	server, err := api.New(deps)
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}
	if startErr := server.Start(ctx); startErr != nil {
		return fmt.Errorf("starting API server: %w", startErr)
	}
	defer func() {
		log.Info("stopping API server")
		if closeErr := server.Close(); closeErr != nil {
			log.Error("error stopping API server", "error", closeErr)
		}
	}()
	log.Info("API server started", "address", fmt.Sprintf("%s:%d", cfg.API.Host, cfg.API.Port))

	if setupErr := integration.Setup(ctx); setupErr != nil {
		return fmt.Errorf("setting up routers: %w", setupErr)
	}
	log.Info("router setup complete",
		"routers", len(integration.Routers()),
		"pending", integration.Pending(),
	)

	log.Info("initialisation complete, waiting for shutdown signal")

	<-ctx.Done()

	log.Info("shutdown signal received, cleaning up")

	// Deferred calls run in reverse order:
	// 1. API server
	// 2. WebSocket hub
	// 3. Router runners, platforms and retries
	// 4. InfluxDB (if enabled)
	// 5. MQTT (if enabled)
	// 6. Database

	log.Info("Gray Logic Tracker stopped")
	return nil
}

// printToken writes a signed API token for opts.tokenSubject to w.
func printToken(w io.Writer, cfg *config.Config, opts options) error {
	role := auth.Role(opts.tokenRole)
	token, err := auth.GenerateToken(opts.tokenSubject, role, cfg.Security.JWT.Secret, cfg.GetAccessTokenTTL())
	if err != nil {
		return fmt.Errorf("generating token: %w", err)
	}
	if _, err := fmt.Fprintln(w, token); err != nil {
		return fmt.Errorf("writing token: %w", err)
	}
	return nil
}

// recordMQTTCommand appends an internet access command received over MQTT
// to the audit log. Unknown routers and devices are not recorded.
func recordMQTTCommand(ctx context.Context, repo audit.Repository, log *logging.Logger, routerID, mac string, allow bool, err error) {
	if errors.Is(err, tracker.ErrRouterNotFound) || errors.Is(err, tracker.ErrDeviceNotFound) {
		return
	}
	e := &audit.Entry{
		Action:   audit.ActionInternetAccess,
		RouterID: routerID,
		MAC:      mac,
		Source:   audit.SourceMQTT,
		Outcome:  audit.OutcomeOK,
		Details:  map[string]any{"allow": allow},
	}
	if err != nil {
		e.Outcome = audit.OutcomeError
		e.Details["error"] = err.Error()
	}
	if createErr := repo.Create(ctx, e); createErr != nil {
		log.Error("writing audit log", "action", e.Action, "router", routerID, "error", createErr)
	}
}

// getConfigPath returns the configuration file path.
// Uses GRAYTRACKER_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("GRAYTRACKER_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// healthCheck verifies all infrastructure connections are healthy.
//
// Parameters:
//   - ctx: Context for timeout/cancellation
//   - db: Database connection to check
//   - mqttClient: MQTT client to check (may be nil if disabled)
//   - influxClient: InfluxDB client to check (may be nil if disabled)
//
// Returns:
//   - error: First health check failure, or nil if all healthy
func healthCheck(ctx context.Context, db *database.DB, mqttClient *mqtt.Client, influxClient *influxdb.Client) error {
	if db == nil {
		return errors.New("database: not open")
	}
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
