package handlers

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	jsoniter "github.com/json-iterator/go"
	"github.com/localnerve/voicehome/internal/analysis"
	"github.com/localnerve/voicehome/internal/config"
	"github.com/localnerve/voicehome/internal/logging"
	"github.com/localnerve/voicehome/internal/models"
	"github.com/localnerve/voicehome/internal/notify"
	"github.com/localnerve/voicehome/internal/services"
	"github.com/localnerve/voicehome/internal/testutil"
	"gorm.io/gorm"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

func setupTestApp(t *testing.T) (*fiber.App, *gorm.DB) {
	t.Helper()

	db := testutil.SetupTestDB(t)
	log := logging.Discard()

	tables, err := analysis.DefaultTables()
	if err != nil {
		t.Fatalf("Failed to load keyword tables: %v", err)
	}

	cfg := &config.Config{
		DBType:          "sqlite",
		DBDatabase:      ":memory:",
		DefaultUserID:   1,
		DefaultLanguage: "ru-RU",
	}

	app := fiber.New(fiber.Config{ErrorHandler: ErrorHandler(log)})
	Register(app, Routes{
		Config: cfg,
		DB:     db,
		Log:    log,
		Pipeline: &services.VoicePipeline{
			DB:              db,
			Classifier:      analysis.NewClassifier(tables),
			Publisher:       notify.Nop{},
			Log:             log,
			DefaultLanguage: cfg.DefaultLanguage,
		},
	})

	return app, db
}

func doJSON(t *testing.T, app *fiber.App, method, url string, body interface{}) *http.Response {
	t.Helper()

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("Failed to marshal body: %v", err)
		}
		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, url, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("Failed to execute request: %v", err)
	}
	return resp
}

func decode(t *testing.T, resp *http.Response, out interface{}) {
	t.Helper()
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
}

func TestRoot(t *testing.T) {
	app, _ := setupTestApp(t)

	resp := doJSON(t, app, "GET", "/", nil)
	if resp.StatusCode != 200 {
		t.Fatalf("Expected status 200, got %d", resp.StatusCode)
	}
	var body RootResponse
	decode(t, resp, &body)
	if body.Message != "Voice Assistant API is running" {
		t.Errorf("Unexpected message %q", body.Message)
	}
}

func TestHealth(t *testing.T) {
	app, _ := setupTestApp(t)

	resp := doJSON(t, app, "GET", "/api/health", nil)
	if resp.StatusCode != 200 {
		t.Fatalf("Expected status 200, got %d", resp.StatusCode)
	}
	var body services.HealthCheckResult
	decode(t, resp, &body)
	if body.Status != "healthy" || body.Database != services.HealthOK || body.Authorizer != services.HealthDisabled {
		t.Errorf("Unexpected health %+v", body)
	}
	if resp.Header.Get("X-Api-Version") == "" {
		t.Error("Expected API version header")
	}
}

func TestVoiceProcess(t *testing.T) {
	app, db := setupTestApp(t)
	user := testutil.CreateTestUser(t, db, "alice")
	light := testutil.CreateTestDevice(t, db, user.ID, "Люстра", "light", "гостиная", false)

	resp := doJSON(t, app, "POST", fmt.Sprintf("/api/voice/process?user_id=%d", user.ID),
		map[string]string{"text": "Включи свет в гостиной"})
	if resp.StatusCode != 200 {
		t.Fatalf("Expected status 200, got %d", resp.StatusCode)
	}

	var body services.VoiceCommandResponse
	decode(t, resp, &body)
	if body.Action != "turn_on" || body.Status != "executed" || body.Message != "Включаю Люстра" {
		t.Errorf("Unexpected response %+v", body)
	}
	if body.DeviceID == nil || *body.DeviceID != light.ID {
		t.Errorf("Expected device %d, got %v", light.ID, body.DeviceID)
	}
	if !testutil.ReloadDevice(t, db, light.ID).IsOn {
		t.Error("Expected light to be on")
	}
}

func TestVoiceProcessDefaultUser(t *testing.T) {
	app, db := setupTestApp(t)
	user := testutil.CreateTestUser(t, db, "default")
	if user.ID != 1 {
		t.Fatalf("Expected first user to have ID 1, got %d", user.ID)
	}

	resp := doJSON(t, app, "POST", "/api/voice/process", map[string]string{"text": "выключи телевизор"})
	if resp.StatusCode != 200 {
		t.Fatalf("Expected status 200, got %d", resp.StatusCode)
	}
	var body services.VoiceCommandResponse
	decode(t, resp, &body)
	if body.Status != "failed" || body.Message != "Устройство не найдено" || body.DeviceID != nil {
		t.Errorf("Unexpected response %+v", body)
	}
	if testutil.CountCommands(t, db, 1) != 1 {
		t.Error("Expected the command to be recorded for the default user")
	}
}

func TestVoiceProcessErrors(t *testing.T) {
	app, db := setupTestApp(t)
	testutil.CreateTestUser(t, db, "alice")

	tests := []struct {
		name       string
		url        string
		body       interface{}
		wantStatus int
		wantType   string
	}{
		{"empty body", "/api/voice/process", map[string]string{}, 400, "validation"},
		{"invalid audio", "/api/voice/process", map[string]string{"audio_data": "%%%"}, 400, "validation"},
		{"unknown user", "/api/voice/process?user_id=999", map[string]string{"text": "стоп"}, 404, "not_found"},
		{"bad user id", "/api/voice/process?user_id=x", map[string]string{"text": "стоп"}, 400, "validation"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := doJSON(t, app, "POST", tt.url, tt.body)
			if resp.StatusCode != tt.wantStatus {
				t.Fatalf("Expected status %d, got %d", tt.wantStatus, resp.StatusCode)
			}
			var body map[string]interface{}
			decode(t, resp, &body)
			if body["ok"] != false || body["type"] != tt.wantType {
				t.Errorf("Unexpected error envelope %v", body)
			}
		})
	}
}

func TestUserRoutes(t *testing.T) {
	app, _ := setupTestApp(t)

	resp := doJSON(t, app, "POST", "/api/users", map[string]string{"username": "alice", "email": "alice@example.com"})
	if resp.StatusCode != 201 {
		t.Fatalf("Expected status 201, got %d", resp.StatusCode)
	}
	var user models.User
	decode(t, resp, &user)

	resp = doJSON(t, app, "POST", "/api/users/", map[string]string{"username": "alice", "email": "x@example.com"})
	if resp.StatusCode != 400 {
		t.Errorf("Expected duplicate username to be 400, got %d", resp.StatusCode)
	}

	resp = doJSON(t, app, "POST", "/api/users", map[string]string{"username": "bob", "email": "not-an-email"})
	if resp.StatusCode != 400 {
		t.Errorf("Expected invalid email to be 400, got %d", resp.StatusCode)
	}

	resp = doJSON(t, app, "GET", "/api/users?skip=0&limit=10", nil)
	var users []models.User
	decode(t, resp, &users)
	if len(users) != 1 || users[0].Username != "alice" {
		t.Errorf("Unexpected users %+v", users)
	}

	resp = doJSON(t, app, "GET", fmt.Sprintf("/api/users/%d", user.ID), nil)
	if resp.StatusCode != 200 {
		t.Errorf("Expected status 200, got %d", resp.StatusCode)
	}

	resp = doJSON(t, app, "DELETE", fmt.Sprintf("/api/users/%d", user.ID), nil)
	if resp.StatusCode != 200 {
		t.Errorf("Expected status 200, got %d", resp.StatusCode)
	}

	resp = doJSON(t, app, "GET", fmt.Sprintf("/api/users/%d", user.ID), nil)
	if resp.StatusCode != 404 {
		t.Errorf("Expected deleted user to be 404, got %d", resp.StatusCode)
	}

	resp = doJSON(t, app, "GET", "/api/users?limit=0", nil)
	if resp.StatusCode != 400 {
		t.Errorf("Expected limit=0 to be 400, got %d", resp.StatusCode)
	}
}

func TestDeviceRoutes(t *testing.T) {
	app, db := setupTestApp(t)
	user := testutil.CreateTestUser(t, db, "alice")
	other := testutil.CreateTestUser(t, db, "bob")
	base := "/api/devices"
	query := fmt.Sprintf("?user_id=%d", user.ID)

	resp := doJSON(t, app, "POST", base+query, map[string]string{"name": "Телевизор", "device_type": "tv", "location": "гостиная"})
	if resp.StatusCode != 201 {
		t.Fatalf("Expected status 201, got %d", resp.StatusCode)
	}
	var device models.Device
	decode(t, resp, &device)
	if device.OwnerID != user.ID || device.IsOn || !device.IsActive {
		t.Errorf("Unexpected device %+v", device)
	}

	resp = doJSON(t, app, "POST", base+query, map[string]string{"name": "Без типа"})
	if resp.StatusCode != 400 {
		t.Errorf("Expected missing device_type to be 400, got %d", resp.StatusCode)
	}

	item := fmt.Sprintf("%s/%d", base, device.ID)

	resp = doJSON(t, app, "PUT", item+query, map[string]interface{}{"is_on": true})
	decode(t, resp, &device)
	if !device.IsOn || device.Name != "Телевизор" {
		t.Errorf("Expected partial update, got %+v", device)
	}

	resp = doJSON(t, app, "POST", item+"/toggle"+query, nil)
	decode(t, resp, &device)
	if device.IsOn {
		t.Error("Expected toggle to turn the device off")
	}

	resp = doJSON(t, app, "GET", item+fmt.Sprintf("?user_id=%d", other.ID), nil)
	if resp.StatusCode != 404 {
		t.Errorf("Expected other user's device to be 404, got %d", resp.StatusCode)
	}

	resp = doJSON(t, app, "GET", base+query, nil)
	var devices []models.Device
	decode(t, resp, &devices)
	if len(devices) != 1 {
		t.Errorf("Expected 1 device, got %d", len(devices))
	}

	resp = doJSON(t, app, "DELETE", item+query, nil)
	if resp.StatusCode != 200 {
		t.Errorf("Expected status 200, got %d", resp.StatusCode)
	}
	resp = doJSON(t, app, "GET", item+query, nil)
	if resp.StatusCode != 404 {
		t.Errorf("Expected deleted device to be 404, got %d", resp.StatusCode)
	}

	resp = doJSON(t, app, "GET", base+"/abc"+query, nil)
	if resp.StatusCode != 400 {
		t.Errorf("Expected invalid id to be 400, got %d", resp.StatusCode)
	}
}

func TestCommandRoutes(t *testing.T) {
	app, db := setupTestApp(t)
	user := testutil.CreateTestUser(t, db, "alice")
	other := testutil.CreateTestUser(t, db, "bob")
	device := testutil.CreateTestDevice(t, db, user.ID, "Люстра", "light", "", false)
	foreign := testutil.CreateTestDevice(t, db, other.ID, "Лампа", "light", "", false)
	query := fmt.Sprintf("?user_id=%d", user.ID)

	resp := doJSON(t, app, "POST", "/api/commands"+query, map[string]interface{}{
		"command_text": "включи свет",
		"device_id":    fmt.Sprintf("%d", device.ID),
	})
	if resp.StatusCode != 201 {
		t.Fatalf("Expected status 201, got %d", resp.StatusCode)
	}
	var command models.Command
	decode(t, resp, &command)
	if command.Status != models.StatusPending || command.DeviceID == nil || *command.DeviceID != device.ID {
		t.Errorf("Unexpected command %+v", command)
	}

	resp = doJSON(t, app, "POST", "/api/commands"+query, map[string]interface{}{
		"command_text": "включи",
		"device_id":    foreign.ID,
	})
	if resp.StatusCode != 404 {
		t.Errorf("Expected another user's device to be 404, got %d", resp.StatusCode)
	}

	doJSON(t, app, "POST", "/api/voice/process"+query, map[string]string{"text": "стоп"})

	resp = doJSON(t, app, "GET", "/api/commands"+query, nil)
	var commands []models.Command
	decode(t, resp, &commands)
	if len(commands) != 2 {
		t.Fatalf("Expected 2 commands, got %d", len(commands))
	}
	if commands[0].Action == nil || *commands[0].Action != "emergency_stop" {
		t.Errorf("Expected newest command first, got %+v", commands[0])
	}

	resp = doJSON(t, app, "GET", fmt.Sprintf("/api/commands/%d%s", command.ID, query), nil)
	if resp.StatusCode != 200 {
		t.Errorf("Expected status 200, got %d", resp.StatusCode)
	}
	resp = doJSON(t, app, "GET", "/api/commands/9999"+query, nil)
	if resp.StatusCode != 404 {
		t.Errorf("Expected status 404, got %d", resp.StatusCode)
	}
}

func TestSettingsRoutes(t *testing.T) {
	app, db := setupTestApp(t)
	user := testutil.CreateTestUser(t, db, "alice")
	url := fmt.Sprintf("/api/settings/%d", user.ID)

	resp := doJSON(t, app, "GET", url, nil)
	if resp.StatusCode != 200 {
		t.Fatalf("Expected status 200, got %d", resp.StatusCode)
	}
	var settings map[string]interface{}
	decode(t, resp, &settings)
	if settings["voice_timbre"] != "female" || settings["volume"] != float64(80) {
		t.Errorf("Unexpected defaults %v", settings)
	}
	if keywords, ok := settings["custom_keywords"].([]interface{}); !ok || len(keywords) != 0 {
		t.Errorf("Expected empty custom_keywords array, got %v", settings["custom_keywords"])
	}

	resp = doJSON(t, app, "PUT", url, map[string]interface{}{"speech_speed": 150, "custom_keywords": "уют"})
	if resp.StatusCode != 200 {
		t.Fatalf("Expected status 200, got %d", resp.StatusCode)
	}
	decode(t, resp, &settings)
	if settings["speech_speed"] != float64(150) || settings["volume"] != float64(80) {
		t.Errorf("Unexpected update result %v", settings)
	}
	if keywords, ok := settings["custom_keywords"].([]interface{}); !ok || len(keywords) != 1 || keywords[0] != "уют" {
		t.Errorf("Expected single keyword to become a list, got %v", settings["custom_keywords"])
	}

	resp = doJSON(t, app, "PUT", url, map[string]interface{}{"volume": 150})
	if resp.StatusCode != 400 {
		t.Errorf("Expected out-of-range volume to be 400, got %d", resp.StatusCode)
	}

	resp = doJSON(t, app, "GET", "/api/settings/999", nil)
	if resp.StatusCode != 404 {
		t.Errorf("Expected unknown user to be 404, got %d", resp.StatusCode)
	}
}

func TestNotFoundRoute(t *testing.T) {
	app, _ := setupTestApp(t)

	resp := doJSON(t, app, "GET", "/api/nowhere", nil)
	if resp.StatusCode != 404 {
		t.Fatalf("Expected status 404, got %d", resp.StatusCode)
	}
	var body map[string]interface{}
	decode(t, resp, &body)
	if body["url"] != "/api/nowhere" || body["ok"] != false {
		t.Errorf("Unexpected envelope %v", body)
	}
}
