package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/gramvikas/kisha/internal/api"
	"github.com/gramvikas/kisha/internal/flow"
	"github.com/gramvikas/kisha/internal/geo"
	"github.com/gramvikas/kisha/internal/providers"
	"github.com/gramvikas/kisha/internal/session"
	"github.com/gramvikas/kisha/internal/speech"
	"github.com/gramvikas/kisha/internal/store"
	"github.com/gramvikas/kisha/internal/util"
	"github.com/joho/godotenv"
	backend "github.com/redis/go-redis/v9"
)

// Default configuration constants
const (
	// DefaultStateDir is the default directory for Kisha state data
	DefaultStateDir = "/var/lib/kisha"
	// DefaultDBFileName is the default SQLite database filename
	DefaultDBFileName = "kisha.db"
	// AudioDirName is the audio artifact directory inside the state dir
	AudioDirName = "audio"
)

func main() {
	initializeLogger()

	config := loadEnvironmentConfig()
	flags := parseCommandLineFlags(config)

	if err := run(flags); err != nil {
		slog.Error("Kisha failed to run", "error", err)
		os.Exit(1)
	}
	slog.Info("Kisha exited successfully")
}

// Config holds environment configuration
type Config struct {
	DatabaseURL  string
	StateDir     string
	APIAddr      string
	RedisAddr    string
	NominatimURL string
	DisableTTS   bool
}

// Flags holds command line flag values
type Flags struct {
	stateDir     *string
	dbDSN        *string
	apiAddr      *string
	redisAddr    *string
	nominatimURL *string
	disableTTS   *bool
}

// initializeLogger sets up structured logging with debug level
func initializeLogger() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
	slog.SetDefault(logger)
}

// loadEnvironmentConfig loads configuration from environment variables and .env file
func loadEnvironmentConfig() Config {
	if err := godotenv.Load(); err != nil {
		slog.Debug("failed to load .env file", "error", err)
	} else {
		slog.Debug("successfully loaded .env file")
	}

	config := Config{
		DatabaseURL:  os.Getenv("DATABASE_URL"),
		StateDir:     os.Getenv("KISHA_STATE_DIR"),
		APIAddr:      os.Getenv("API_ADDR"),
		RedisAddr:    os.Getenv("REDIS_ADDR"),
		NominatimURL: os.Getenv("NOMINATIM_URL"),
		DisableTTS:   util.ParseBoolEnv("KISHA_DISABLE_TTS", false),
	}

	if config.StateDir == "" {
		config.StateDir = DefaultStateDir
		slog.Debug("No KISHA_STATE_DIR set, using default", "default_state_dir", config.StateDir)
	}

	// If no database URL is provided, default to SQLite in the state directory
	if config.DatabaseURL == "" {
		config.DatabaseURL = filepath.Join(config.StateDir, DefaultDBFileName)
		slog.Debug("No database DSN provided, defaulting to SQLite", "sqlite_path", config.DatabaseURL)
	}

	slog.Debug("environment variables loaded",
		"DATABASE_URL_SET", config.DatabaseURL != "",
		"KISHA_STATE_DIR", config.StateDir,
		"API_ADDR", config.APIAddr,
		"REDIS_ADDR_SET", config.RedisAddr != "",
		"NOMINATIM_URL_SET", config.NominatimURL != "",
		"KISHA_DISABLE_TTS", config.DisableTTS)

	return config
}

// parseCommandLineFlags parses command line arguments with environment defaults
func parseCommandLineFlags(config Config) Flags {
	flags := Flags{
		stateDir:     flag.String("state-dir", config.StateDir, "state directory for Kisha data (overrides $KISHA_STATE_DIR)"),
		dbDSN:        flag.String("db-dsn", config.DatabaseURL, "database DSN for the farmer store (overrides $DATABASE_URL)"),
		apiAddr:      flag.String("api-addr", config.APIAddr, "API server address (overrides $API_ADDR)"),
		redisAddr:    flag.String("redis-addr", config.RedisAddr, "Redis address for the session store (overrides $REDIS_ADDR)"),
		nominatimURL: flag.String("nominatim-url", config.NominatimURL, "Nominatim endpoint (overrides $NOMINATIM_URL)"),
		disableTTS:   flag.Bool("disable-tts", config.DisableTTS, "disable speech rendering (overrides $KISHA_DISABLE_TTS)"),
	}

	flag.Parse()

	slog.Debug("flags parsed",
		"stateDir", *flags.stateDir,
		"dbDSN_set", *flags.dbDSN != "",
		"apiAddr", *flags.apiAddr,
		"redisAddr_set", *flags.redisAddr != "",
		"disableTTS", *flags.disableTTS)

	return flags
}

// buildStore constructs the farmer store based on the DSN type
func buildStore(dsn string) (store.Store, error) {
	if dsn == "" {
		slog.Debug("No database DSN provided, using in-memory store")
		return store.NewInMemoryStore(), nil
	}
	if store.DetectDSNType(dsn) == "postgres" {
		slog.Debug("Detected PostgreSQL DSN, configuring PostgreSQL store")
		return store.NewPostgresStore(store.WithPostgresDSN(dsn))
	}
	slog.Debug("Detected SQLite DSN, configuring SQLite store", "db_path", dsn)
	return store.NewSQLiteStore(store.WithSQLiteDSN(dsn))
}

// buildSessionManager constructs the session store; Redis when configured,
// in-process otherwise
func buildSessionManager(redisAddr string) session.Manager {
	ttl := util.ParseDurationEnv("KISHA_SESSION_TTL", session.DefaultTTL)
	if redisAddr == "" {
		return session.NewInMemoryManager(session.WithTTL(ttl))
	}
	slog.Info("Using Redis session store", "addr", redisAddr)
	client := backend.NewClient(&backend.Options{Addr: redisAddr})
	return session.NewRedisManager(client, session.WithTTL(ttl))
}

func run(flags Flags) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	st, err := buildStore(*flags.dbDSN)
	if err != nil {
		return err
	}
	defer st.Close()

	sessions := buildSessionManager(*flags.redisAddr)
	defer sessions.Stop()

	audioDir := filepath.Join(*flags.stateDir, AudioDirName)
	if err := speech.CleanupAudioDir(audioDir); err != nil {
		slog.Warn("Failed to clean up audio directory", "error", err, "dir", audioDir)
	}

	var renderer speech.Renderer
	if *flags.disableTTS {
		slog.Info("Speech rendering disabled")
	} else {
		renderer, err = speech.NewGoogleRenderer(speech.WithAudioDir(audioDir))
		if err != nil {
			return err
		}
	}

	var geoOpts []geo.Option
	if *flags.nominatimURL != "" {
		geoOpts = append(geoOpts, geo.WithBaseURL(*flags.nominatimURL))
	}

	engine := flow.NewEngine(flow.Dependencies{
		Store:      st,
		Sessions:   sessions,
		Geocoder:   geo.NewNominatimGeocoder(geoOpts...),
		Weather:    providers.NewWeatherProvider("", 0),
		Soil:       providers.NewSoilProvider("", 0),
		Vegetation: providers.NewVegetationProvider(os.Getenv("NDVI_PROXY_URL")),
		Market:     providers.NewStaticMarketProvider(),
		Speech:     renderer,
	})

	var apiOpts []api.Option
	if *flags.apiAddr != "" {
		apiOpts = append(apiOpts, api.WithAddr(*flags.apiAddr))
	}
	apiOpts = append(apiOpts, api.WithAudioDir(audioDir))

	slog.Info("Bootstrapping Kisha with configured modules")
	return api.NewServer(engine, sessions, apiOpts...).Run(ctx)
}
