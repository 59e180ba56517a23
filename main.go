package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/Jyotish2002/skill-link/internal/auth"
	"github.com/Jyotish2002/skill-link/internal/hub"
	"github.com/Jyotish2002/skill-link/store"
	"github.com/Jyotish2002/skill-link/store/mem"
	"github.com/Jyotish2002/skill-link/store/redis"
	"github.com/go-chi/chi"
	"github.com/gorilla/websocket"
	"github.com/knadh/koanf"
	"github.com/knadh/koanf/parsers/toml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/stuffbin"
	flag "github.com/spf13/pflag"
)

var (
	logger = log.New(os.Stdout, "", log.Ldate|log.Ltime|log.Lshortfile)
	ko     = koanf.New(".")

	// Version of the build injected at build time.
	buildString = "unknown"
)

// App is the global app context that's passed around.
type App struct {
	hub    *hub.Hub
	gate   *auth.Gate
	cfg    *hub.Config
	up     websocket.Upgrader
	fs     stuffbin.FileSystem
	logger *log.Logger
}

func loadConfig() {
	// Register --help handler.
	f := flag.NewFlagSet("config", flag.ContinueOnError)
	f.Usage = func() {
		fmt.Println(f.FlagUsages())
		os.Exit(0)
	}
	f.StringSlice("config", []string{"config.toml"},
		"Path to one or more TOML config files to load in order")
	f.Bool("new-config", false, "Generate a sample config.toml and exit")
	f.Bool("version", false, "Show build version")
	f.Parse(os.Args[1:])

	// Display version.
	if ok, _ := f.GetBool("version"); ok {
		fmt.Println(buildString)
		os.Exit(0)
	}

	// Generate a new sample config file.
	if ok, _ := f.GetBool("new-config"); ok {
		if err := newConfigFile(); err != nil {
			log.Fatalf("error generating config file: %v", err)
		}
		log.Println("generated config.toml. Edit it and run the relay.")
		os.Exit(0)
	}

	// Read the config files.
	cFiles, _ := f.GetStringSlice("config")
	for _, f := range cFiles {
		log.Printf("reading config: %s", f)
		if err := ko.Load(file.Provider(f), toml.Parser()); err != nil {
			log.Printf("error reading config: %v", err)
		}
	}

	// Merge env flags into config.
	if err := ko.Load(env.Provider("SKILLLINK_", ".", func(s string) string {
		return strings.Replace(strings.ToLower(
			strings.TrimPrefix(s, "SKILLLINK_")), "__", ".", -1)
	}), nil); err != nil {
		log.Printf("error loading env config: %v", err)
	}

	// Merge command line flags into config.
	ko.Load(posflag.Provider(f, ".", ko), nil)
}

// initFS initializes the stuffbin embedded static filesystem.
func initFS() stuffbin.FileSystem {
	// Get self executable path to initialise stuffed FS.
	exe, err := os.Executable()
	if err != nil {
		log.Fatalf("error getting executable path: %v", err)
	}

	// Read stuffed data from self.
	fs, err := stuffbin.UnStuff(exe)
	if err != nil {
		// Binary is unstuffed or is running in dev mode.
		// Fall back to the local filesystem.
		if err == stuffbin.ErrNoID {
			fs, err = stuffbin.NewLocalFS("/", "config.toml.sample")
			if err != nil {
				log.Fatalf("error falling back to local filesystem: %v", err)
			}
		} else {
			log.Fatalf("error reading stuffed binary: %v", err)
		}
	}
	return fs
}

// newConfigFile writes the embedded sample config to ./config.toml.
func newConfigFile() error {
	if _, err := os.Stat("config.toml"); !os.IsNotExist(err) {
		return errors.New("config.toml exists. Remove it to generate a new one")
	}

	b, err := initFS().Read("config.toml.sample")
	if err != nil {
		return fmt.Errorf("error reading sample config: %v", err)
	}
	return os.WriteFile("config.toml", b, 0644)
}

// initStore initializes the configured session store backend.
func initStore() (store.Store, error) {
	switch backend := ko.String("store.backend"); backend {
	case "redis":
		var cfg redis.Config
		if err := ko.Unmarshal("store.redis", &cfg); err != nil {
			return nil, fmt.Errorf("error unmarshalling 'store.redis' config: %v", err)
		}
		return redis.New(cfg)
	case "", "memory":
		var cfg mem.Config
		if err := ko.Unmarshal("store.memory", &cfg); err != nil {
			return nil, fmt.Errorf("error unmarshalling 'store.memory' config: %v", err)
		}
		return mem.New(cfg)
	default:
		return nil, fmt.Errorf("unknown store backend %q", backend)
	}
}

// initRoutes prepares the websocket upgrader and registers HTTP routes.
func initRoutes(app *App) *chi.Mux {
	app.up = websocket.Upgrader{
		ReadBufferSize:  app.cfg.ReadBufferSize,
		WriteBufferSize: app.cfg.WriteBufferSize,
		CheckOrigin:     app.checkOrigin,
	}

	r := chi.NewRouter()
	r.Get("/ws/call/{sessionID}", wrap(handleWS, app, hasAuth))

	// API.
	r.Get("/api/health", wrap(handleHealth, app, 0))
	return r
}

// checkTimeConfig validates the keepalive durations. All three have to be
// set; a zero ping interval would panic the writer's ticker on the first
// connection.
func checkTimeConfig(cfg *hub.Config) error {
	minTime := time.Duration(3) * time.Second
	if cfg.WSTimeout < minTime || cfg.IdleTimeout < minTime || cfg.PingInterval < minTime {
		return errors.New("app.websocket_timeout, app.idle_timeout and app.ping_interval should be > 3s")
	}
	return nil
}

func main() {
	// Load configuration from files.
	loadConfig()

	// Initialize global app context.
	app := &App{
		logger: logger,
		fs:     initFS(),
	}
	if err := ko.Unmarshal("app", &app.cfg); err != nil {
		logger.Fatalf("error unmarshalling 'app' config: %v", err)
	}

	if err := checkTimeConfig(app.cfg); err != nil {
		logger.Fatal(err)
	}

	var authCfg auth.Config
	if err := ko.Unmarshal("auth", &authCfg); err != nil {
		logger.Fatalf("error unmarshalling 'auth' config: %v", err)
	}
	if authCfg.JWTSecret == "" {
		logger.Fatal("auth.jwt_secret is empty: set it in config or SKILLLINK_AUTH__JWT_SECRET")
	}

	// Initialize store.
	st, err := initStore()
	if err != nil {
		logger.Fatalf("error initializing store: %v", err)
	}

	app.gate = auth.New(authCfg, st)
	app.hub = hub.NewHub(app.cfg, logger)

	// Register HTTP routes.
	r := initRoutes(app)

	// Start the app.
	srv := &http.Server{
		Addr:    ko.String("app.address"),
		Handler: r,
	}
	go func() {
		logger.Printf("starting server on %v", ko.String("app.address"))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatalf("couldn't start server: %v", err)
		}
	}()

	// Wait for an interrupt, then force-close all rooms before exiting.
	c := make(chan os.Signal, 1)
	signal.Notify(c, syscall.SIGINT, syscall.SIGTERM)
	sig := <-c
	logger.Printf("shutting down: %v", sig)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Printf("error shutting down HTTP server: %v", err)
	}
	app.hub.Shutdown()
}
