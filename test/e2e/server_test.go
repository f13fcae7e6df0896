package e2e

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/s8l-xyz/shortlinker/internal/migrations"
	"github.com/s8l-xyz/shortlinker/internal/shortener"
)

// testApp holds the application components for e2e testing.
type testApp struct {
	dbPool  *pgxpool.Pool
	repo    shortener.Repository
	handler *shortener.Handler
	baseURL string
	cleanup func()
}

// setupTestApp starts a real PostgreSQL container, applies the embedded
// migrations, and wires the engine on top of it.
func setupTestApp(t *testing.T) *testApp {
	t.Helper()
	ctx := context.Background()

	pgContainer, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("testdb"),
		postgres.WithUsername("testuser"),
		postgres.WithPassword("testpass"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	if err != nil {
		t.Fatalf("failed to start postgres container: %v", err)
	}

	connStr, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		t.Fatalf("failed to get connection string: %v", err)
	}

	poolConfig, err := pgxpool.ParseConfig(connStr)
	if err != nil {
		t.Fatalf("failed to parse config: %v", err)
	}
	poolConfig.MaxConns = 10
	poolConfig.MinConns = 2

	dbPool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		t.Fatalf("failed to create pool: %v", err)
	}

	if err := dbPool.Ping(ctx); err != nil {
		t.Fatalf("failed to ping database: %v", err)
	}

	logger := setupTestLogger()

	if err := migrations.Up(stdlib.OpenDBFromPool(dbPool), logger); err != nil {
		t.Fatalf("failed to run migrations: %v", err)
	}

	repo := shortener.NewRepository(dbPool, nil)
	svc := shortener.NewService(repo, &shortener.ServiceConfig{
		ServiceDomain: "s8l.test",
		Logger:        logger,
	})

	baseURL := "http://s8l.test"
	handler := shortener.NewHandler(shortener.HandlerConfig{
		Service: svc,
		Logger:  logger,
		BaseURL: baseURL,
	})

	cleanup := func() {
		dbPool.Close()
		if err := pgContainer.Terminate(ctx); err != nil {
			t.Errorf("failed to terminate container: %v", err)
		}
	}

	return &testApp{
		dbPool:  dbPool,
		repo:    repo,
		handler: handler,
		baseURL: baseURL,
		cleanup: cleanup,
	}
}

func (a *testApp) shorten(t *testing.T, url string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()

	body, _ := json.Marshal(map[string]string{"url": url})
	req := httptest.NewRequest("POST", "/api/shorten", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()

	a.handler.Shorten(rr, req)

	var response map[string]any
	if rr.Code == http.StatusCreated {
		if err := json.NewDecoder(rr.Body).Decode(&response); err != nil {
			t.Fatalf("failed to decode response: %v", err)
		}
	}
	return rr, response
}

func (a *testApp) redirect(t *testing.T, code string) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest("GET", "/"+code, nil)
	req.SetPathValue("code", code)
	rr := httptest.NewRecorder()

	a.handler.Redirect(rr, req)
	return rr
}

func TestShorten_E2E(t *testing.T) {
	app := setupTestApp(t)
	defer app.cleanup()

	t.Run("allocates a link for a valid URL", func(t *testing.T) {
		rr, resp := app.shorten(t, "https://example.com/page")
		if rr.Code != http.StatusCreated {
			t.Fatalf("expected status 201, got %d: %s", rr.Code, rr.Body.String())
		}

		code, _ := resp["short_code"].(string)
		if code == "" {
			t.Error("expected short_code to be generated")
		}
		if resp["destination_url"] != "https://example.com/page" {
			t.Errorf("destination_url = %v", resp["destination_url"])
		}
		if resp["short_url"] != app.baseURL+"/"+code {
			t.Errorf("short_url = %v", resp["short_url"])
		}
		// No title fetcher wired: the sentinel is stored.
		if resp["title"] != shortener.TitleUnavailable {
			t.Errorf("title = %v, want %q", resp["title"], shortener.TitleUnavailable)
		}
	})

	t.Run("same destination returns the same link", func(t *testing.T) {
		rr1, resp1 := app.shorten(t, "https://example.com/idempotent")
		if rr1.Code != http.StatusCreated {
			t.Fatalf("first request: status %d", rr1.Code)
		}

		rr2, resp2 := app.shorten(t, "https://example.com/idempotent")
		if rr2.Code != http.StatusCreated {
			t.Fatalf("second request: status %d", rr2.Code)
		}

		if resp1["short_code"] != resp2["short_code"] {
			t.Errorf("codes differ: %v vs %v", resp1["short_code"], resp2["short_code"])
		}
	})

	t.Run("casual spellings collapse to one link", func(t *testing.T) {
		_, resp1 := app.shorten(t, "example.com/spelling")
		_, resp2 := app.shorten(t, "https://EXAMPLE.com/spelling")

		if resp1["short_code"] != resp2["short_code"] {
			t.Errorf("codes differ: %v vs %v", resp1["short_code"], resp2["short_code"])
		}
	})

	t.Run("rejects an invalid URL", func(t *testing.T) {
		rr, _ := app.shorten(t, "not a url")
		if rr.Code != http.StatusBadRequest {
			t.Errorf("expected status 400, got %d", rr.Code)
		}
	})

	t.Run("rejects a self-referential URL", func(t *testing.T) {
		rr, _ := app.shorten(t, "http://s8l.test/abc123")
		if rr.Code != http.StatusBadRequest {
			t.Errorf("expected status 400, got %d", rr.Code)
		}
	})
}

func TestResolve_E2E(t *testing.T) {
	app := setupTestApp(t)
	defer app.cleanup()

	_, resp := app.shorten(t, "https://example.com/redirect-test")
	code := resp["short_code"].(string)

	t.Run("redirects to the destination", func(t *testing.T) {
		rr := app.redirect(t, code)
		if rr.Code != http.StatusFound {
			t.Fatalf("expected status 302, got %d", rr.Code)
		}
		if loc := rr.Header().Get("Location"); loc != "https://example.com/redirect-test" {
			t.Errorf("Location = %q", loc)
		}
	})

	t.Run("unknown code is 404", func(t *testing.T) {
		rr := app.redirect(t, "nonexistent")
		if rr.Code != http.StatusNotFound {
			t.Errorf("expected status 404, got %d", rr.Code)
		}
	})
}

func TestClickTracking_E2E(t *testing.T) {
	app := setupTestApp(t)
	defer app.cleanup()
	ctx := context.Background()

	_, resp := app.shorten(t, "https://example.com/track-test")
	code := resp["short_code"].(string)

	link, err := app.repo.FindByCode(ctx, code)
	if err != nil {
		t.Fatalf("failed to load link: %v", err)
	}
	if link.ClickCount != 0 {
		t.Fatalf("fresh link click count = %d, want 0", link.ClickCount)
	}

	for i := range 3 {
		rr := app.redirect(t, code)
		if rr.Code != http.StatusFound {
			t.Errorf("resolve attempt %d failed with status %d", i+1, rr.Code)
		}
	}

	link, err = app.repo.FindByCode(ctx, code)
	if err != nil {
		t.Fatalf("failed to load link: %v", err)
	}
	if link.ClickCount != 3 {
		t.Errorf("click count = %d, want 3", link.ClickCount)
	}
	if !link.UpdatedAt.After(link.CreatedAt) {
		t.Error("expected updated_at to advance past created_at")
	}

	// A failed resolve does not move any counter.
	app.redirect(t, "nonexistent")
	link, err = app.repo.FindByCode(ctx, code)
	if err != nil {
		t.Fatalf("failed to load link: %v", err)
	}
	if link.ClickCount != 3 {
		t.Errorf("click count after miss = %d, want 3", link.ClickCount)
	}
}

func TestConcurrentShortenSameURL_E2E(t *testing.T) {
	app := setupTestApp(t)
	defer app.cleanup()

	// Hammer one destination concurrently; the unique index must collapse
	// the race to a single link.
	concurrency := 10
	errChan := make(chan error, concurrency)
	codeChan := make(chan string, concurrency)

	for range concurrency {
		go func() {
			rr, resp := app.shorten(t, "https://example.com/contended")
			if rr.Code != http.StatusCreated {
				errChan <- fmt.Errorf("request failed with status %d: %s", rr.Code, rr.Body.String())
				return
			}
			codeChan <- resp["short_code"].(string)
			errChan <- nil
		}()
	}

	codes := make(map[string]bool)
	for range concurrency {
		if err := <-errChan; err != nil {
			t.Errorf("concurrent request failed: %v", err)
			continue
		}
		codes[<-codeChan] = true
	}

	if len(codes) != 1 {
		t.Errorf("expected 1 unique code, got %d: %v", len(codes), codes)
	}
}

func TestConcurrentShortenDistinctURLs_E2E(t *testing.T) {
	app := setupTestApp(t)
	defer app.cleanup()

	concurrency := 10
	errChan := make(chan error, concurrency)
	codeChan := make(chan string, concurrency)

	for i := range concurrency {
		go func(index int) {
			rr, resp := app.shorten(t, fmt.Sprintf("https://example.com/concurrent-%d", index))
			if rr.Code != http.StatusCreated {
				errChan <- fmt.Errorf("request %d failed with status %d", index, rr.Code)
				return
			}
			codeChan <- resp["short_code"].(string)
			errChan <- nil
		}(i)
	}

	codes := make(map[string]bool)
	for range concurrency {
		if err := <-errChan; err != nil {
			t.Errorf("concurrent request failed: %v", err)
			continue
		}
		code := <-codeChan
		if codes[code] {
			t.Errorf("duplicate code generated: %s", code)
		}
		codes[code] = true
	}

	if len(codes) != concurrency {
		t.Errorf("expected %d unique codes, got %d", concurrency, len(codes))
	}
}

func setupTestLogger() *slog.Logger {
	handler := slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelError,
	})
	return slog.New(handler)
}
