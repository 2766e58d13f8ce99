package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/Fenex/samogonki-srv/api"
	"github.com/Fenex/samogonki-srv/game/service"
	"github.com/Fenex/samogonki-srv/transport/mcp"
)

func TestConstants(t *testing.T) {
	if Version == "" {
		t.Error("Version should not be empty")
	}
	if AppName != "Samogonki Game Server" {
		t.Errorf("Unexpected app name %s", AppName)
	}
}

func TestFlagDefaults(t *testing.T) {
	if *port <= 0 || *port > 65535 {
		t.Errorf("Invalid default port: %d", *port)
	}
	if *host == "" {
		t.Error("Host should have a default value")
	}
	if *configDir == "" {
		t.Error("Config directory should have a default value")
	}
}

func TestEnvDefault(t *testing.T) {
	t.Setenv("SAMOGONKI_TEST_VALUE", "")
	if got := envDefault("SAMOGONKI_TEST_VALUE", "fallback"); got != "fallback" {
		t.Errorf("Expected fallback, got %s", got)
	}

	t.Setenv("SAMOGONKI_TEST_VALUE", "set")
	if got := envDefault("SAMOGONKI_TEST_VALUE", "fallback"); got != "set" {
		t.Errorf("Expected set, got %s", got)
	}
}

func withFlags(t *testing.T, config, data string) {
	t.Helper()
	origConfig, origData, origDB, origRedis := *configDir, *dataDir, *databaseURL, *redisURL
	*configDir, *dataDir, *databaseURL, *redisURL = config, data, "", ""
	t.Cleanup(func() {
		*configDir, *dataDir, *databaseURL, *redisURL = origConfig, origData, origDB, origRedis
	})
}

func TestInitializeServices(t *testing.T) {
	if _, err := os.Stat("configs"); os.IsNotExist(err) {
		t.Skip("Skipping test - configs directory not found")
	}

	t.Run("memory", func(t *testing.T) {
		withFlags(t, "configs", "")

		gameService, cleanup, err := initializeServices(context.Background())
		if err != nil {
			t.Fatalf("Failed to initialize services: %v", err)
		}
		defer cleanup()

		presets, err := gameService.ListPresets(context.Background())
		if err != nil {
			t.Fatalf("ListPresets failed: %v", err)
		}
		if len(presets) == 0 {
			t.Error("Expected presets from the configs directory")
		}
	})

	t.Run("file", func(t *testing.T) {
		dir := t.TempDir()
		withFlags(t, "configs", dir)

		gameService, cleanup, err := initializeServices(context.Background())
		if err != nil {
			t.Fatalf("Failed to initialize services: %v", err)
		}
		defer cleanup()

		user, err := gameService.CreateUser(context.Background(), service.CreateUserRequest{SteamID: 7})
		if err != nil {
			t.Fatalf("CreateUser failed: %v", err)
		}
		if _, err := os.Stat(dir + "/users.json"); err != nil {
			t.Errorf("Expected users file for user %d: %v", user.ID, err)
		}
	})
}

func TestInitializeServices_InvalidConfigDir(t *testing.T) {
	withFlags(t, "/non/existent/path", "")

	if _, _, err := initializeServices(context.Background()); err == nil {
		t.Error("Expected error for non-existent config directory")
	}
}

func TestOpenLocker(t *testing.T) {
	locker, cleanup, err := openLocker(context.Background(), "")
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	cleanup()
	if locker != nil {
		t.Error("Expected nil locker without a redis url")
	}

	if _, _, err := openLocker(context.Background(), "not a url"); err == nil {
		t.Error("Expected error for an invalid redis url")
	}
}

func TestNewRouter(t *testing.T) {
	apiServer := api.NewServer(nil)
	router := newRouter(apiServer, mcp.NewClient("http://127.0.0.1:0"))

	req := httptest.NewRequest("GET", "/api/health", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Errorf("Expected health to pass through, got %d", w.Code)
	}

	req = httptest.NewRequest("POST", "/mcp", strings.NewReader(`{"jsonrpc":"2.0","id":1,"method":"tools/list"}`))
	req.Header.Set("Content-Type", "application/json")
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code == http.StatusNotFound {
		t.Error("Expected /mcp to be mounted")
	}
}
