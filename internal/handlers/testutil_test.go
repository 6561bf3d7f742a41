package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/authgate/backend/internal/middleware"
	"github.com/authgate/backend/internal/models"
	"github.com/authgate/backend/internal/store"
	"github.com/authgate/backend/internal/totp"
	"github.com/authgate/backend/pkg/logger"
	"github.com/authgate/backend/pkg/token"
	"github.com/authgate/backend/pkg/utils"
	"github.com/glebarez/sqlite"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"gorm.io/gorm"
)

const testJWTSecret = "handlers-test-signing-secret-32-bytes!"

type testEnv struct {
	app    *fiber.App
	db     *gorm.DB
	store  *store.GormStore
	issuer *token.Issuer
	engine totp.Engine
}

var testSetupOnce sync.Once

func setupTestEnv(t *testing.T) *testEnv {
	t.Helper()

	testSetupOnce.Do(func() {
		logger.Init()
		utils.ConfigureEncryption(testJWTSecret)
	})

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed opening in-memory sqlite database: %v", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("failed getting sql.DB from gorm: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)

	t.Cleanup(func() {
		_ = sqlDB.Close()
	})

	if err := db.AutoMigrate(&models.User{}); err != nil {
		t.Fatalf("failed automigrating models: %v", err)
	}

	issuer, err := token.NewIssuer(token.Config{
		Secret:   testJWTSecret,
		Issuer:   "authgate-test",
		Audience: "authgate-test-clients",
		Validity: 3 * time.Hour,
	})
	if err != nil {
		t.Fatalf("failed building token issuer: %v", err)
	}

	engine := totp.Engine{Issuer: "AuthGate", Skew: 1}
	credStore := store.NewGormStore(db, engine.GenerateSecret)

	authHandler := NewAuthHandler(credStore, issuer)
	mfaHandler := NewMFAHandler(credStore, issuer, engine)
	authMiddleware := middleware.NewAuthMiddleware(credStore, issuer)

	app := fiber.New()
	app.Use(recover.New(recover.Config{EnableStackTrace: true}))
	app.Use(middleware.CORS())
	app.Use(middleware.RequestLogger())
	app.Use(middleware.SecurityLogger())

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusOK).JSON(fiber.Map{"status": "ok"})
	})

	api := app.Group("/api")

	authRoutes := api.Group("/auth")
	authRoutes.Post("/register", authHandler.Register)
	authRoutes.Post("/login", authHandler.Login)
	authRoutes.Post("/verify-mfa", mfaHandler.Verify)
	authRoutes.Post("/enroll-mfa", authMiddleware.RequireAuth, mfaHandler.Enroll)
	authRoutes.Post("/mfa/reset", authMiddleware.RequireAuth, mfaHandler.Reset)
	authRoutes.Get("/me", authMiddleware.RequireAuth, authHandler.Me)
	authRoutes.Put("/me", authMiddleware.RequireAuth, authHandler.UpdateMe)
	authRoutes.Put("/password", authMiddleware.RequireAuth, authHandler.ChangePassword)
	authRoutes.Get("/settings", authMiddleware.RequireAuth, authHandler.GetSettings)
	authRoutes.Post("/settings/mfa", authMiddleware.RequireAuth, authHandler.UpdateMFASetting)

	return &testEnv{app: app, db: db, store: credStore, issuer: issuer, engine: engine}
}

func createTestUser(t *testing.T, env *testEnv, email, password string) (*models.User, string) {
	t.Helper()

	user, err := env.store.CreateIdentity(context.Background(), email, password, store.Profile{
		FirstName: "Test",
		LastName:  "User",
	})
	if err != nil {
		t.Fatalf("failed creating test user %q: %v", email, err)
	}

	signed, _, err := env.issuer.Issue(user)
	if err != nil {
		t.Fatalf("failed issuing token for test user %q: %v", email, err)
	}
	return user, signed
}

func authHeaders(token string) map[string]string {
	return map[string]string{"Authorization": "Bearer " + token}
}

func performRequest(t *testing.T, app *fiber.App, method, path string, body io.Reader, headers map[string]string) *http.Response {
	t.Helper()

	req := httptest.NewRequest(method, path, body)
	for key, value := range headers {
		req.Header.Set(key, value)
	}

	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatalf("request %s %s failed: %v", method, path, err)
	}
	return resp
}

func performJSONRequest(t *testing.T, app *fiber.App, method, path string, payload interface{}, headers map[string]string) *http.Response {
	t.Helper()

	data, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("failed marshaling request payload: %v", err)
	}

	req := httptest.NewRequest(method, path, bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	for key, value := range headers {
		req.Header.Set(key, value)
	}

	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatalf("request %s %s failed: %v", method, path, err)
	}
	return resp
}

func assertStatus(t *testing.T, resp *http.Response, expected int) {
	t.Helper()

	if resp.StatusCode != expected {
		body, _ := io.ReadAll(resp.Body)
		t.Fatalf("expected status %d, got %d (body: %s)", expected, resp.StatusCode, string(body))
	}
}

func decodeJSONMap(t *testing.T, resp *http.Response) map[string]interface{} {
	t.Helper()

	defer resp.Body.Close()
	var body map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("failed decoding response body: %v", err)
	}
	return body
}

func readBody(t *testing.T, resp *http.Response) []byte {
	t.Helper()

	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("failed reading response body: %v", err)
	}
	return data
}

func dataField(t *testing.T, body map[string]interface{}) map[string]interface{} {
	t.Helper()

	data, ok := body["data"].(map[string]interface{})
	if !ok {
		t.Fatalf("expected a data object in response, got %v", body)
	}
	return data
}
