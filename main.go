// Command samogonki-srv starts the KDLAB game server.
//
// It supports two modes:
//  1. "server" (default) – runs the HTTP server with the legacy game endpoint, the admin REST API and an /mcp endpoint
//  2. "stdio-mcp" – runs an MCP stdio server and spins up an internal HTTP API if none is available
//
// Storage is chosen from the flags: PostgreSQL when a database URL is given,
// JSON files when a data directory is given, process memory otherwise. A redis
// URL switches per-game locking from in-process mutexes to redis.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/mark3labs/mcp-go/server"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
	"golang.ngrok.com/ngrok"
	ngrokConfig "golang.ngrok.com/ngrok/config"

	"github.com/Fenex/samogonki-srv/api"
	"github.com/Fenex/samogonki-srv/game/config"
	"github.com/Fenex/samogonki-srv/game/service"
	"github.com/Fenex/samogonki-srv/game/session"
	"github.com/Fenex/samogonki-srv/game/storage"
	"github.com/Fenex/samogonki-srv/transport/mcp"
)

// Version information
const (
	Version = "1.0.0"
	AppName = "Samogonki Game Server"
)

const lockTTL = 30 * time.Second

var (
	port         = flag.Int("port", 8080, "HTTP server port")
	host         = flag.String("host", "localhost", "HTTP server host")
	configDir    = flag.String("config-dir", envDefault("CONFIG_DIR", "configs"), "Directory containing game presets")
	dataDir      = flag.String("data-dir", os.Getenv("DATA_DIR"), "Directory for JSON file storage (optional)")
	databaseURL  = flag.String("database-url", os.Getenv("DATABASE_URL"), "PostgreSQL connection string (optional)")
	redisURL     = flag.String("redis-url", os.Getenv("REDIS_URL"), "Redis URL for per-game locks (optional)")
	debug        = flag.Bool("debug", false, "Enable debug logging")
	logJSON      = flag.Bool("log-json", false, "Log in JSON format")
	version      = flag.Bool("version", false, "Show version information")
	ngrokEnabled = flag.Bool("ngrok", false, "Enable ngrok tunnel")
	ngrokAuth    = flag.String("ngrok-auth", "", "Ngrok auth token (or use NGROK_AUTHTOKEN env var)")
	ngrokDomain  = flag.String("ngrok-domain", "", "Custom ngrok domain (optional)")
)

// envDefault returns the environment variable key, or fallback when it is unset.
func envDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func init() {
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [OPTIONS] [MODE]\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "%s v%s\n\n", AppName, Version)
		fmt.Fprintf(os.Stderr, "Available modes:\n")
		fmt.Fprintf(os.Stderr, "  server, http     Run HTTP server with game endpoint, API and MCP endpoint (default)\n")
		fmt.Fprintf(os.Stderr, "  stdio-mcp        Run MCP stdio server with internal HTTP server\n")
		fmt.Fprintf(os.Stderr, "  mcp-stdio        Alias for stdio-mcp\n")
		fmt.Fprintf(os.Stderr, "  mcp              Alias for stdio-mcp\n")
		fmt.Fprintf(os.Stderr, "\nOptions:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  %s                                   # In-memory server on port 8080\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s -data-dir data                    # Keep games in JSON files\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s -database-url postgres://...      # Keep games in PostgreSQL\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s stdio-mcp                         # Run MCP stdio server\n", os.Args[0])
	}
}

func main() {
	if err := godotenv.Load(); err != nil {
		if !os.IsNotExist(err) {
			log.Warnf("Error loading .env file: %v", err)
		}
	} else {
		log.Info("Loaded environment variables from .env file")
	}

	flag.Parse()

	if *version {
		fmt.Printf("%s v%s\n", AppName, Version)
		os.Exit(0)
	}

	configureLogging(*debug, *logJSON)

	args := flag.Args()
	mode := "server"
	if len(args) > 0 {
		mode = args[0]
	}

	log.WithField("mode", mode).Infof("Starting %s v%s", AppName, Version)

	ctx := context.Background()
	gameService, cleanup, err := initializeServices(ctx)
	if err != nil {
		log.Fatalf("Failed to initialize services: %v", err)
	}
	defer cleanup()

	switch mode {
	case "stdio-mcp", "mcp-stdio", "mcp":
		runStdioMCPWithInternalServer(gameService)

	case "server", "http":
		runHTTPServer(gameService)

	default:
		log.Fatalf("Unknown mode: %s. Use 'server' (default) or 'stdio-mcp'", mode)
	}
}

// configureLogging sets the logrus level and formatter. Logs go to stderr,
// which keeps stdout free for the stdio MCP transport.
func configureLogging(debug, asJSON bool) {
	log.SetOutput(os.Stderr)
	if asJSON {
		log.SetFormatter(&log.JSONFormatter{})
	} else {
		log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	}
	if debug {
		log.SetLevel(log.DebugLevel)
		log.SetReportCaller(true)
	} else {
		log.SetLevel(log.InfoLevel)
		log.SetReportCaller(false)
	}
}

// backend is what every storage implementation provides.
type backend interface {
	service.Store
	session.Repository
}

// initializeServices wires storage, locking, presets and the game service.
// The returned cleanup releases database and redis connections.
func initializeServices(ctx context.Context) (service.GameService, func(), error) {
	presets, err := config.NewManager(*configDir)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create preset manager: %w", err)
	}

	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	store, closeStore, err := openStorage(ctx, *databaseURL, *dataDir)
	if err != nil {
		return nil, nil, err
	}
	closers = append(closers, closeStore)

	locker, closeLocker, err := openLocker(ctx, *redisURL)
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	closers = append(closers, closeLocker)

	sessions := session.NewManager(store, locker)
	return service.NewGameService(sessions, store, presets), cleanup, nil
}

func openStorage(ctx context.Context, databaseURL, dataDir string) (backend, func(), error) {
	switch {
	case databaseURL != "":
		pg, err := storage.NewPostgres(ctx, databaseURL)
		if err != nil {
			return nil, nil, err
		}
		if err := pg.Migrate(ctx); err != nil {
			pg.Close()
			return nil, nil, err
		}
		log.Info("Using PostgreSQL storage")
		return pg, pg.Close, nil

	case dataDir != "":
		f, err := storage.NewFile(dataDir)
		if err != nil {
			return nil, nil, err
		}
		log.WithField("dir", dataDir).Info("Using file storage")
		return f, func() {}, nil
	}

	log.Warn("Using in-memory storage, games are lost on restart")
	return storage.NewMemory(), func() {}, nil
}

// openLocker returns nil for in-process locking, which session.NewManager
// replaces with a LocalLocker.
func openLocker(ctx context.Context, redisURL string) (session.Locker, func(), error) {
	if redisURL == "" {
		return nil, func() {}, nil
	}

	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, nil, fmt.Errorf("invalid redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	log.WithField("addr", opts.Addr).Info("Using redis game locks")
	return session.NewRedisLocker(client, lockTTL), func() { client.Close() }, nil
}

// newRouter mounts the API server at the root and the MCP endpoint at /mcp.
func newRouter(apiServer http.Handler, mcpClient *mcp.Client) *http.ServeMux {
	router := http.NewServeMux()
	router.Handle("/", apiServer)
	router.Handle("/mcp", server.NewStreamableHTTPServer(mcpClient.GetMCPServer()))
	return router
}

// runHTTPServer serves until SIGINT or SIGTERM. If ngrok is enabled (via
// flag or environment) it also provisions a public tunnel.
func runHTTPServer(gameService service.GameService) {
	apiServer := api.NewServer(gameService)

	addr := fmt.Sprintf("%s:%d", *host, *port)
	mcpClient := mcp.NewClient(fmt.Sprintf("http://%s", addr))
	router := newRouter(apiServer, mcpClient)

	httpServer := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()

		log.Infof("HTTP server listening on %s", addr)
		log.Infof("Game endpoint: http://%s%s", addr, api.LegacyPath)
		log.Infof("REST API: http://%s/api", addr)
		log.Infof("MCP endpoint: http://%s/mcp", addr)

		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("HTTP server failed: %v", err)
		}
	}()

	ngrokShouldRun := *ngrokEnabled
	if !ngrokShouldRun {
		if envEnabled := os.Getenv("NGROK_ENABLED"); envEnabled == "true" || envEnabled == "1" {
			ngrokShouldRun = true
		}
	}

	if ngrokShouldRun {
		wg.Add(1)
		go func() {
			defer wg.Done()
			runNgrok(ctx, router)
		}()
	}

	sig := <-stop
	log.Infof("Received signal: %v. Shutting down...", sig)
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Errorf("HTTP server shutdown error: %v", err)
	}

	wg.Wait()
	log.Info("Server stopped")
}

func runNgrok(ctx context.Context, handler http.Handler) {
	authToken := *ngrokAuth
	if authToken == "" {
		authToken = os.Getenv("NGROK_AUTHTOKEN")
		if authToken == "" {
			authToken = os.Getenv("NGROK_AUTH_TOKEN")
		}
	}
	if authToken == "" {
		log.Warn("Ngrok enabled but no auth token provided (use -ngrok-auth, NGROK_AUTHTOKEN, or NGROK_AUTH_TOKEN env var)")
		return
	}

	domain := *ngrokDomain
	if domain == "" {
		domain = os.Getenv("NGROK_DOMAIN")
	}

	var tunnel ngrokConfig.Tunnel
	if domain != "" {
		tunnel = ngrokConfig.HTTPEndpoint(ngrokConfig.WithDomain(domain))
		log.WithField("domain", domain).Info("Using custom ngrok domain")
	} else {
		tunnel = ngrokConfig.HTTPEndpoint()
	}

	log.Info("Starting ngrok tunnel...")
	tun, err := ngrok.Listen(ctx, tunnel, ngrok.WithAuthtoken(authToken))
	if err != nil {
		log.Errorf("Failed to start ngrok tunnel: %v", err)
		return
	}
	defer func() {
		if err := tun.Close(); err != nil {
			log.Errorf("Failed to close ngrok tunnel: %v", err)
		}
	}()

	ngrokURL := tun.URL()
	log.Infof("Ngrok tunnel established: %s", ngrokURL)
	log.Infof("  Game endpoint (ngrok): %s%s", ngrokURL, api.LegacyPath)
	log.Infof("  REST API (ngrok): %s/api", ngrokURL)
	log.Infof("  MCP endpoint (ngrok): %s/mcp", ngrokURL)

	if err := http.Serve(tun, handler); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Errorf("Ngrok server error: %v", err)
	}
	log.Info("Ngrok tunnel closed")
}

// runStdioMCPWithInternalServer runs an MCP stdio server. It reuses an API
// already listening on host:port; otherwise it starts one on a random
// loopback port and targets that.
func runStdioMCPWithInternalServer(gameService service.GameService) {
	externalURL := fmt.Sprintf("http://%s:%d", *host, *port)
	baseURL := externalURL

	log.Infof("Checking for external API server at %s...", externalURL)
	testClient := &http.Client{Timeout: 2 * time.Second}
	resp, err := testClient.Get(externalURL + "/api/health")
	if err == nil && resp.StatusCode == http.StatusOK {
		resp.Body.Close()
		log.Infof("External API server found at %s, using it for MCP", externalURL)
	} else {
		if resp != nil {
			resp.Body.Close()
		}
		log.Info("No external API server found, starting internal HTTP server")

		listener, err := net.Listen("tcp", "127.0.0.1:0")
		if err != nil {
			log.Fatalf("Failed to get available port: %v", err)
		}
		baseURL = fmt.Sprintf("http://%s", listener.Addr().String())

		httpServer := &http.Server{Handler: api.NewServer(gameService)}
		go func() {
			if err := httpServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Errorf("Internal HTTP server error: %v", err)
			}
		}()
		defer httpServer.Close()

		log.Infof("Internal HTTP server on %s", baseURL)
	}

	mcpClient := mcp.NewClient(baseURL)
	log.WithField("api", baseURL).Info("MCP stdio server ready")

	if err := server.ServeStdio(mcpClient.GetMCPServer()); err != nil {
		log.Fatalf("MCP stdio server error: %v", err)
	}
}
