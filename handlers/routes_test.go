package handlers

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"loyalty-program-system/models"
	"loyalty-program-system/services"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const testAdminToken = "test-admin-token"

type testApp struct {
	app *fiber.App
	db  *gorm.DB
}

func newTestApp(t *testing.T) *testApp {
	t.Helper()
	t.Setenv("ADMIN_API_TOKEN", testAdminToken)

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_busy_timeout=5000", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&models.User{},
		&models.Purchase{},
		&models.Achievement{},
		&models.Badge{},
		&models.UserAchievement{},
		&models.UserBadge{},
	))

	userService := services.NewUserService(db)
	catalogService := services.NewCatalogService(db, nil)
	loyaltyService := services.NewLoyaltyService(db, userService, services.LogSink{})

	app := fiber.New()
	api := app.Group("/api/v1")
	SetupPurchaseRoutes(api, loyaltyService)
	SetupLoyaltyRoutes(api, loyaltyService)
	SetupAdminRoutes(api, catalogService, userService, loyaltyService)

	return &testApp{app: app, db: db}
}

func (ta *testApp) seedUser(t *testing.T) *models.User {
	t.Helper()
	user := &models.User{ID: uuid.NewString(), Name: "Jane Customer", Email: uuid.NewString() + "@example.com"}
	require.NoError(t, ta.db.Create(user).Error)
	return user
}

func (ta *testApp) request(t *testing.T, method, path string, body interface{}, headers map[string]string) (int, map[string]interface{}) {
	t.Helper()

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := ta.app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	var decoded map[string]interface{}
	if len(raw) > 0 {
		require.NoError(t, json.Unmarshal(raw, &decoded), "response body: %s", raw)
	}
	return resp.StatusCode, decoded
}

func adminHeaders() map[string]string {
	return map[string]string{"X-Admin-Token": testAdminToken}
}

func TestPostPurchase_RecordsWithCashback(t *testing.T) {
	ta := newTestApp(t)
	user := ta.seedUser(t)

	status, body := ta.request(t, http.MethodPost, "/api/v1/purchases", fiber.Map{
		"user_id":        user.ID,
		"amount":         149.99,
		"transaction_id": "txn-http-1",
	}, nil)

	require.Equal(t, http.StatusCreated, status)
	assert.Equal(t, true, body["success"])

	data := body["data"].(map[string]interface{})
	assert.Equal(t, user.ID, data["user_id"])
	assert.InDelta(t, 3.00, data["cashback_amount"].(float64), 0.0001)
	assert.Equal(t, "USD", data["currency"])
	assert.Equal(t, "completed", data["status"])
}

func TestPostPurchase_ValidationFailures(t *testing.T) {
	ta := newTestApp(t)
	user := ta.seedUser(t)

	t.Run("missing amount", func(t *testing.T) {
		status, body := ta.request(t, http.MethodPost, "/api/v1/purchases", fiber.Map{
			"user_id":        user.ID,
			"transaction_id": "txn-no-amount",
		}, nil)
		require.Equal(t, http.StatusUnprocessableEntity, status)
		fields := body["fields"].(map[string]interface{})
		assert.Contains(t, fields, "amount")
	})

	t.Run("unknown user", func(t *testing.T) {
		status, body := ta.request(t, http.MethodPost, "/api/v1/purchases", fiber.Map{
			"user_id":        uuid.NewString(),
			"amount":         10.0,
			"transaction_id": "txn-ghost-user",
		}, nil)
		require.Equal(t, http.StatusUnprocessableEntity, status)
		fields := body["fields"].(map[string]interface{})
		assert.Contains(t, fields, "user_id")
	})

	t.Run("duplicate transaction id", func(t *testing.T) {
		payload := fiber.Map{"user_id": user.ID, "amount": 10.0, "transaction_id": "txn-dup"}
		status, _ := ta.request(t, http.MethodPost, "/api/v1/purchases", payload, nil)
		require.Equal(t, http.StatusCreated, status)

		status, body := ta.request(t, http.MethodPost, "/api/v1/purchases", payload, nil)
		require.Equal(t, http.StatusUnprocessableEntity, status)
		fields := body["fields"].(map[string]interface{})
		assert.Contains(t, fields, "transaction_id")
	})

	t.Run("malformed json", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/purchases", bytes.NewReader([]byte("{not json")))
		req.Header.Set("Content-Type", "application/json")
		resp, err := ta.app.Test(req, -1)
		require.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})
}

func TestGetSummary(t *testing.T) {
	ta := newTestApp(t)
	user := ta.seedUser(t)

	status, _ := ta.request(t, http.MethodPost, "/api/v1/purchases", fiber.Map{
		"user_id":        user.ID,
		"amount":         200.0,
		"transaction_id": "txn-summary",
	}, nil)
	require.Equal(t, http.StatusCreated, status)

	status, body := ta.request(t, http.MethodGet, "/api/v1/users/"+user.ID+"/summary", nil, nil)
	require.Equal(t, http.StatusOK, status)

	data := body["data"].(map[string]interface{})
	assert.InDelta(t, 200.0, data["total_spent"].(float64), 0.0001)
	assert.InDelta(t, 4.0, data["total_cashback"].(float64), 0.0001)
	assert.Equal(t, models.NoBadge, data["current_badge"])

	t.Run("unknown user is 404", func(t *testing.T) {
		status, body := ta.request(t, http.MethodGet, "/api/v1/users/"+uuid.NewString()+"/summary", nil, nil)
		require.Equal(t, http.StatusNotFound, status)
		assert.Contains(t, body, "error")
	})
}

func TestGetUserAchievements_EmptyListNotNull(t *testing.T) {
	ta := newTestApp(t)
	user := ta.seedUser(t)

	status, body := ta.request(t, http.MethodGet, "/api/v1/users/"+user.ID+"/achievements", nil, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, float64(0), body["count"])
	assert.NotNil(t, body["data"], "data must be [] not null")
}

func TestAdminRoutes_RequireToken(t *testing.T) {
	ta := newTestApp(t)

	status, _ := ta.request(t, http.MethodGet, "/api/v1/admin/achievements", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, status)

	status, _ = ta.request(t, http.MethodGet, "/api/v1/admin/achievements", nil, map[string]string{"X-Admin-Token": "wrong"})
	assert.Equal(t, http.StatusUnauthorized, status)

	status, _ = ta.request(t, http.MethodGet, "/api/v1/admin/achievements", nil, adminHeaders())
	assert.Equal(t, http.StatusOK, status)
}

func TestAdminCreateAchievement(t *testing.T) {
	ta := newTestApp(t)

	status, body := ta.request(t, http.MethodPost, "/api/v1/admin/achievements", fiber.Map{
		"name":        "Big Spender",
		"description": "Spend 500 in total",
		"points":      50,
		"type":        models.AchievementTypePurchaseMilestone,
		"criteria":    fiber.Map{"min_amount": 500},
	}, adminHeaders())

	require.Equal(t, http.StatusCreated, status)
	data := body["data"].(map[string]interface{})
	assert.Equal(t, "big-spender", data["slug"])

	t.Run("missing points rejected", func(t *testing.T) {
		status, body := ta.request(t, http.MethodPost, "/api/v1/admin/achievements", fiber.Map{
			"name":        "No Points",
			"description": "desc",
			"type":        models.AchievementTypePurchaseMilestone,
			"criteria":    fiber.Map{"min_purchases": 1},
		}, adminHeaders())
		require.Equal(t, http.StatusUnprocessableEntity, status)
		fields := body["fields"].(map[string]interface{})
		assert.Contains(t, fields, "points")
	})
}

func TestAdminCreateBadgeAndList(t *testing.T) {
	ta := newTestApp(t)

	status, _ := ta.request(t, http.MethodPost, "/api/v1/admin/badges", fiber.Map{
		"name":                  "Bronze Member",
		"description":           "Entry tier",
		"level":                 1,
		"required_achievements": 2,
		"required_points":       50,
	}, adminHeaders())
	require.Equal(t, http.StatusCreated, status)

	status, body := ta.request(t, http.MethodGet, "/api/v1/admin/badges", nil, adminHeaders())
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, float64(1), body["count"])
}

func TestAdminCreateUser(t *testing.T) {
	ta := newTestApp(t)

	status, body := ta.request(t, http.MethodPost, "/api/v1/admin/users", fiber.Map{
		"name":  "Jane Customer",
		"email": "Jane@Example.com",
	}, adminHeaders())
	require.Equal(t, http.StatusCreated, status)

	data := body["data"].(map[string]interface{})
	assert.Equal(t, "jane@example.com", data["email"])

	t.Run("duplicate email rejected", func(t *testing.T) {
		status, body := ta.request(t, http.MethodPost, "/api/v1/admin/users", fiber.Map{
			"name":  "Jane Again",
			"email": "jane@example.com",
		}, adminHeaders())
		require.Equal(t, http.StatusUnprocessableEntity, status)
		fields := body["fields"].(map[string]interface{})
		assert.Contains(t, fields, "email")
	})
}

func TestAdminUserAchievementsOverview(t *testing.T) {
	ta := newTestApp(t)
	user := ta.seedUser(t)

	status, body := ta.request(t, http.MethodGet, "/api/v1/admin/users/"+user.ID+"/achievements", nil, adminHeaders())
	require.Equal(t, http.StatusOK, status)

	data := body["data"].(map[string]interface{})
	assert.Equal(t, user.ID, data["user_id"])
	assert.NotNil(t, data["achievements"])
	assert.NotNil(t, data["badges"])

	status, body = ta.request(t, http.MethodGet, "/api/v1/admin/users/achievements", nil, adminHeaders())
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, float64(1), body["count"])
}
