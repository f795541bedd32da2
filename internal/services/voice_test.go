package services

import (
	"context"
	"encoding/base64"
	"errors"
	"os"
	"testing"

	"github.com/localnerve/voicehome/internal/analysis"
	"github.com/localnerve/voicehome/internal/logging"
	"github.com/localnerve/voicehome/internal/models"
	"github.com/localnerve/voicehome/internal/notify"
	"github.com/localnerve/voicehome/internal/testutil"
	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"gorm.io/gorm"
)

func newTestPipeline(t *testing.T, db *gorm.DB) (*VoicePipeline, *notify.Recorder) {
	t.Helper()

	tables, err := analysis.DefaultTables()
	if err != nil {
		t.Fatalf("Failed to load keyword tables: %v", err)
	}

	recorder := &notify.Recorder{}
	return &VoicePipeline{
		DB:              db,
		Classifier:      analysis.NewClassifier(tables),
		Publisher:       recorder,
		Log:             logging.Discard(),
		DefaultLanguage: "ru-RU",
	}, recorder
}

func lastCommand(t *testing.T, db *gorm.DB, userID uint64) *models.Command {
	t.Helper()

	var command models.Command
	if err := db.Where("user_id = ?", userID).Order("id DESC").First(&command).Error; err != nil {
		t.Fatalf("Failed to load command: %v", err)
	}
	return &command
}

func TestProcessTurnOnSelectsDeviceByLocation(t *testing.T) {
	db := testutil.SetupTestDB(t)
	pipeline, recorder := newTestPipeline(t, db)

	user := testutil.CreateTestUser(t, db, "alice")
	bedroom := testutil.CreateTestDevice(t, db, user.ID, "Ночник", "light", "спальня", false)
	living := testutil.CreateTestDevice(t, db, user.ID, "Люстра", "light", "гостиная", false)

	before := promtest.ToFloat64(voiceCommandsTotal.WithLabelValues("turn_on", "executed"))

	resp, err := pipeline.Process(context.Background(), user.ID, VoiceCommandRequest{Text: "Включи свет в гостиной"})
	if err != nil {
		t.Fatalf("Process failed: %v", err)
	}

	if resp.Action != analysis.ActionTurnOn {
		t.Errorf("Expected action turn_on, got %s", resp.Action)
	}
	if resp.Status != models.StatusExecuted {
		t.Errorf("Expected status executed, got %s", resp.Status)
	}
	if resp.DeviceID == nil || *resp.DeviceID != living.ID {
		t.Fatalf("Expected device %d, got %v", living.ID, resp.DeviceID)
	}
	if resp.Message != "Включаю Люстра" {
		t.Errorf("Unexpected message %q", resp.Message)
	}
	if resp.RecognizedText != "включи свет в гостиной" {
		t.Errorf("Unexpected recognized text %q", resp.RecognizedText)
	}

	if !testutil.ReloadDevice(t, db, living.ID).IsOn {
		t.Error("Expected living room light to be on")
	}
	if testutil.ReloadDevice(t, db, bedroom.ID).IsOn {
		t.Error("Expected bedroom light to stay off")
	}

	if n := testutil.CountCommands(t, db, user.ID); n != 1 {
		t.Fatalf("Expected exactly 1 command row, got %d", n)
	}
	command := lastCommand(t, db, user.ID)
	if command.DeviceID == nil || *command.DeviceID != living.ID {
		t.Errorf("Expected command device %d, got %v", living.ID, command.DeviceID)
	}
	if command.Action == nil || *command.Action != analysis.ActionTurnOn {
		t.Errorf("Expected stored action turn_on, got %v", command.Action)
	}
	if command.Language != "ru-RU" {
		t.Errorf("Expected default language ru-RU, got %s", command.Language)
	}

	events := recorder.Events()
	if len(events) != 1 {
		t.Fatalf("Expected 1 device event, got %d", len(events))
	}
	if events[0].DeviceID != living.ID || !events[0].IsOn || events[0].CommandID != command.ID {
		t.Errorf("Unexpected event %+v", events[0])
	}

	after := promtest.ToFloat64(voiceCommandsTotal.WithLabelValues("turn_on", "executed"))
	if after != before+1 {
		t.Errorf("Expected counter to increase by 1, got %v -> %v", before, after)
	}
}

func TestProcessEmergencyStop(t *testing.T) {
	db := testutil.SetupTestDB(t)
	pipeline, recorder := newTestPipeline(t, db)

	user := testutil.CreateTestUser(t, db, "bob")
	other := testutil.CreateTestUser(t, db, "carol")
	onDevices := []*models.Device{
		testutil.CreateTestDevice(t, db, user.ID, "Люстра", "light", "гостиная", true),
		testutil.CreateTestDevice(t, db, user.ID, "Телевизор", "tv", "гостиная", true),
		testutil.CreateTestDevice(t, db, user.ID, "Кофемашина", "coffee_maker", "кухня", true),
	}
	offDevice := testutil.CreateTestDevice(t, db, user.ID, "Пылесос", "robot_vacuum", "", false)
	otherDevice := testutil.CreateTestDevice(t, db, other.ID, "Чужой свет", "light", "", true)

	resp, err := pipeline.Process(context.Background(), user.ID, VoiceCommandRequest{Text: "стоп"})
	if err != nil {
		t.Fatalf("Process failed: %v", err)
	}

	if resp.Action != ActionEmergencyStop {
		t.Errorf("Expected action emergency_stop, got %s", resp.Action)
	}
	if resp.Status != models.StatusExecuted {
		t.Errorf("Expected status executed, got %s", resp.Status)
	}
	if resp.DeviceID != nil {
		t.Errorf("Expected no device, got %d", *resp.DeviceID)
	}
	if resp.Message != MessageEmergencyStop {
		t.Errorf("Unexpected message %q", resp.Message)
	}

	for _, device := range onDevices {
		if testutil.ReloadDevice(t, db, device.ID).IsOn {
			t.Errorf("Expected device %s to be off", device.Name)
		}
	}
	if testutil.ReloadDevice(t, db, offDevice.ID).IsOn {
		t.Error("Expected already-off device to stay off")
	}
	if !testutil.ReloadDevice(t, db, otherDevice.ID).IsOn {
		t.Error("Expected another user's device to stay on")
	}

	if n := testutil.CountCommands(t, db, user.ID); n != 1 {
		t.Fatalf("Expected exactly 1 command row, got %d", n)
	}
	command := lastCommand(t, db, user.ID)
	if command.DeviceID != nil {
		t.Errorf("Expected null command device, got %d", *command.DeviceID)
	}
	if command.Action == nil || *command.Action != ActionEmergencyStop {
		t.Errorf("Expected stored action emergency_stop, got %v", command.Action)
	}

	if n := len(recorder.Events()); n != 3 {
		t.Errorf("Expected 3 device events, got %d", n)
	}
}

func TestProcessPauseWithNothingOn(t *testing.T) {
	db := testutil.SetupTestDB(t)
	pipeline, recorder := newTestPipeline(t, db)

	user := testutil.CreateTestUser(t, db, "dave")
	testutil.CreateTestDevice(t, db, user.ID, "Люстра", "light", "", false)

	resp, err := pipeline.Process(context.Background(), user.ID, VoiceCommandRequest{Text: "пауза"})
	if err != nil {
		t.Fatalf("Process failed: %v", err)
	}

	if resp.Action != ActionEmergencyStop || resp.Status != models.StatusExecuted {
		t.Errorf("Expected executed emergency_stop, got %s/%s", resp.Action, resp.Status)
	}
	if len(recorder.Events()) != 0 {
		t.Error("Expected no device events")
	}
}

func TestProcessDeviceNotFound(t *testing.T) {
	db := testutil.SetupTestDB(t)
	pipeline, recorder := newTestPipeline(t, db)

	user := testutil.CreateTestUser(t, db, "erin")
	light := testutil.CreateTestDevice(t, db, user.ID, "Люстра", "light", "гостиная", true)

	resp, err := pipeline.Process(context.Background(), user.ID, VoiceCommandRequest{Text: "выключи телевизор"})
	if err != nil {
		t.Fatalf("Process failed: %v", err)
	}

	if resp.Action != analysis.ActionTurnOff {
		t.Errorf("Expected action turn_off, got %s", resp.Action)
	}
	if resp.Status != models.StatusFailed {
		t.Errorf("Expected status failed, got %s", resp.Status)
	}
	if resp.Message != MessageDeviceNotFound {
		t.Errorf("Unexpected message %q", resp.Message)
	}
	if resp.DeviceID != nil {
		t.Errorf("Expected no device, got %d", *resp.DeviceID)
	}
	if !testutil.ReloadDevice(t, db, light.ID).IsOn {
		t.Error("Expected light to stay on")
	}
	if lastCommand(t, db, user.ID).Status != models.StatusFailed {
		t.Error("Expected stored command to be failed")
	}
	if len(recorder.Events()) != 0 {
		t.Error("Expected no device events")
	}
}

func TestProcessNonPowerActionLeavesDevice(t *testing.T) {
	db := testutil.SetupTestDB(t)
	pipeline, recorder := newTestPipeline(t, db)

	user := testutil.CreateTestUser(t, db, "frank")
	thermostat := testutil.CreateTestDevice(t, db, user.ID, "Кондиционер", "thermostat", "спальня", true)

	resp, err := pipeline.Process(context.Background(), user.ID, VoiceCommandRequest{Text: "увеличь кондиционер в спальне"})
	if err != nil {
		t.Fatalf("Process failed: %v", err)
	}

	if resp.Action != analysis.ActionIncrease || resp.Status != models.StatusExecuted {
		t.Errorf("Expected executed increase, got %s/%s", resp.Action, resp.Status)
	}
	if resp.Message != "Выполняю команду для Кондиционер" {
		t.Errorf("Unexpected message %q", resp.Message)
	}
	if !testutil.ReloadDevice(t, db, thermostat.ID).IsOn {
		t.Error("Expected thermostat power state to be unchanged")
	}
	if len(recorder.Events()) != 0 {
		t.Error("Expected no device events")
	}
}

func TestProcessTurnOnAlreadyOn(t *testing.T) {
	db := testutil.SetupTestDB(t)
	pipeline, recorder := newTestPipeline(t, db)

	user := testutil.CreateTestUser(t, db, "gina")
	light := testutil.CreateTestDevice(t, db, user.ID, "Люстра", "light", "", true)

	resp, err := pipeline.Process(context.Background(), user.ID, VoiceCommandRequest{Text: "включи свет"})
	if err != nil {
		t.Fatalf("Process failed: %v", err)
	}

	if resp.Status != models.StatusExecuted || resp.DeviceID == nil || *resp.DeviceID != light.ID {
		t.Errorf("Expected executed on device %d, got %+v", light.ID, resp)
	}
	if len(recorder.Events()) != 0 {
		t.Error("Expected no events when the power state does not change")
	}
}

func TestProcessSelectionOrder(t *testing.T) {
	db := testutil.SetupTestDB(t)
	pipeline, _ := newTestPipeline(t, db)

	user := testutil.CreateTestUser(t, db, "hank")
	inactive := testutil.CreateTestDevice(t, db, user.ID, "Старая лампа", "light", "", false)
	if err := db.Model(inactive).Update("is_active", false).Error; err != nil {
		t.Fatalf("Failed to deactivate device: %v", err)
	}
	first := testutil.CreateTestDevice(t, db, user.ID, "Лампа 1", "light", "", false)
	second := testutil.CreateTestDevice(t, db, user.ID, "Лампа 2", "light", "", false)

	resp, err := pipeline.Process(context.Background(), user.ID, VoiceCommandRequest{Text: "включи лампу"})
	if err != nil {
		t.Fatalf("Process failed: %v", err)
	}

	if resp.DeviceID == nil || *resp.DeviceID != first.ID {
		t.Fatalf("Expected lowest-ID active device %d, got %v", first.ID, resp.DeviceID)
	}
	if testutil.ReloadDevice(t, db, inactive.ID).IsOn {
		t.Error("Expected inactive device to be skipped")
	}
	if testutil.ReloadDevice(t, db, second.ID).IsOn {
		t.Error("Expected only one device to change")
	}
}

func TestProcessRequestLanguage(t *testing.T) {
	db := testutil.SetupTestDB(t)
	pipeline, _ := newTestPipeline(t, db)
	user := testutil.CreateTestUser(t, db, "ivan")

	if _, err := pipeline.Process(context.Background(), user.ID, VoiceCommandRequest{Text: "стоп", Language: "en-US"}); err != nil {
		t.Fatalf("Process failed: %v", err)
	}
	if lang := lastCommand(t, db, user.ID).Language; lang != "en-US" {
		t.Errorf("Expected language en-US, got %s", lang)
	}
}

func TestProcessRejectsEmptyRequest(t *testing.T) {
	db := testutil.SetupTestDB(t)
	pipeline, _ := newTestPipeline(t, db)
	user := testutil.CreateTestUser(t, db, "jane")

	_, err := pipeline.Process(context.Background(), user.ID, VoiceCommandRequest{})
	if !errors.Is(err, ErrEmptyCommand) {
		t.Fatalf("Expected ErrEmptyCommand, got %v", err)
	}
	if n := testutil.CountCommands(t, db, user.ID); n != 0 {
		t.Errorf("Expected no command rows, got %d", n)
	}
}

func TestProcessUnknownUser(t *testing.T) {
	db := testutil.SetupTestDB(t)
	pipeline, _ := newTestPipeline(t, db)

	_, err := pipeline.Process(context.Background(), 999, VoiceCommandRequest{Text: "стоп"})
	if !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("Expected ErrUserNotFound, got %v", err)
	}
	if n := testutil.CountCommands(t, db, 999); n != 0 {
		t.Errorf("Expected no command rows, got %d", n)
	}
}

func TestProcessAudio(t *testing.T) {
	db := testutil.SetupTestDB(t)
	pipeline, _ := newTestPipeline(t, db)
	pipeline.AudioDir = t.TempDir()
	user := testutil.CreateTestUser(t, db, "kate")

	audio := base64.StdEncoding.EncodeToString([]byte("RIFF fake wave data"))
	resp, err := pipeline.Process(context.Background(), user.ID, VoiceCommandRequest{AudioData: audio})
	if err != nil {
		t.Fatalf("Process failed: %v", err)
	}

	if resp.RecognizedText != AudioPlaceholderText {
		t.Errorf("Expected placeholder text, got %q", resp.RecognizedText)
	}
	if resp.Status != models.StatusFailed || resp.Message != MessageDeviceNotFound {
		t.Errorf("Expected failed with no devices, got %s %q", resp.Status, resp.Message)
	}
	if lastCommand(t, db, user.ID).CommandText != AudioPlaceholderText {
		t.Error("Expected command text to be the placeholder")
	}

	var stored models.AudioData
	if err := db.Where("user_id = ?", user.ID).First(&stored).Error; err != nil {
		t.Fatalf("Expected audio record: %v", err)
	}
	if stored.SizeBytes != int64(len("RIFF fake wave data")) {
		t.Errorf("Unexpected audio size %d", stored.SizeBytes)
	}
	if stored.FilePath == nil {
		t.Fatal("Expected audio file path")
	}
	if _, err := os.Stat(*stored.FilePath); err != nil {
		t.Errorf("Expected audio file on disk: %v", err)
	}
}

func TestProcessTextWinsOverAudio(t *testing.T) {
	db := testutil.SetupTestDB(t)
	pipeline, _ := newTestPipeline(t, db)
	user := testutil.CreateTestUser(t, db, "lena")

	resp, err := pipeline.Process(context.Background(), user.ID, VoiceCommandRequest{Text: "стоп", AudioData: "not base64!"})
	if err != nil {
		t.Fatalf("Process failed: %v", err)
	}
	if resp.Action != ActionEmergencyStop {
		t.Errorf("Expected text to be used, got action %s", resp.Action)
	}

	var count int64
	db.Model(&models.AudioData{}).Count(&count)
	if count != 0 {
		t.Errorf("Expected no audio records, got %d", count)
	}
}

func TestProcessInvalidAudio(t *testing.T) {
	db := testutil.SetupTestDB(t)
	pipeline, _ := newTestPipeline(t, db)
	user := testutil.CreateTestUser(t, db, "mike")

	_, err := pipeline.Process(context.Background(), user.ID, VoiceCommandRequest{AudioData: "%%%"})
	if !errors.Is(err, ErrInvalidAudio) {
		t.Fatalf("Expected ErrInvalidAudio, got %v", err)
	}
	if n := testutil.CountCommands(t, db, user.ID); n != 0 {
		t.Errorf("Expected no command rows, got %d", n)
	}
}

func TestProcessRollsBackOnFailure(t *testing.T) {
	db := testutil.SetupTestDB(t)
	pipeline, recorder := newTestPipeline(t, db)
	user := testutil.CreateTestUser(t, db, "nina")
	light := testutil.CreateTestDevice(t, db, user.ID, "Люстра", "light", "", false)

	boom := errors.New("boom")
	err := db.Callback().Update().Before("gorm:update").Register("test:fail_device_update", func(tx *gorm.DB) {
		if tx.Statement.Table == "devices" {
			_ = tx.AddError(boom)
		}
	})
	if err != nil {
		t.Fatalf("Failed to register callback: %v", err)
	}

	_, err = pipeline.Process(context.Background(), user.ID, VoiceCommandRequest{Text: "включи свет"})
	if !errors.Is(err, boom) {
		t.Fatalf("Expected injected failure, got %v", err)
	}

	if n := testutil.CountCommands(t, db, user.ID); n != 0 {
		t.Errorf("Expected the pending command to be rolled back, got %d rows", n)
	}
	if testutil.ReloadDevice(t, db, light.ID).IsOn {
		t.Error("Expected device to be unchanged")
	}
	if len(recorder.Events()) != 0 {
		t.Error("Expected no events for a rolled back command")
	}
}

func TestProcessPublishFailureIsNotFatal(t *testing.T) {
	db := testutil.SetupTestDB(t)
	pipeline, recorder := newTestPipeline(t, db)
	recorder.Err = errors.New("broker down")
	user := testutil.CreateTestUser(t, db, "oleg")
	light := testutil.CreateTestDevice(t, db, user.ID, "Люстра", "light", "", false)

	resp, err := pipeline.Process(context.Background(), user.ID, VoiceCommandRequest{Text: "включи свет"})
	if err != nil {
		t.Fatalf("Process failed: %v", err)
	}
	if resp.Status != models.StatusExecuted {
		t.Errorf("Expected executed, got %s", resp.Status)
	}
	if !testutil.ReloadDevice(t, db, light.ID).IsOn {
		t.Error("Expected device change to be committed")
	}
}

func TestFormResponse(t *testing.T) {
	ptr := func(s string) *string { return &s }
	id := uint64(7)
	device := &models.Device{ID: id, Name: "Люстра"}

	tests := []struct {
		name    string
		command models.Command
		device  *models.Device
		want    VoiceCommandResponse
	}{
		{
			name:    "emergency stop",
			command: models.Command{RecognizedText: ptr("стоп"), Action: ptr(ActionEmergencyStop), Status: models.StatusExecuted},
			want:    VoiceCommandResponse{RecognizedText: "стоп", Action: ActionEmergencyStop, Status: models.StatusExecuted, Message: MessageEmergencyStop},
		},
		{
			name:    "turn on",
			command: models.Command{RecognizedText: ptr("включи свет"), Action: ptr("turn_on"), Status: models.StatusExecuted, DeviceID: &id},
			device:  device,
			want:    VoiceCommandResponse{RecognizedText: "включи свет", Action: "turn_on", DeviceID: &id, Status: models.StatusExecuted, Message: "Включаю Люстра"},
		},
		{
			name:    "turn off",
			command: models.Command{RecognizedText: ptr("выключи свет"), Action: ptr("turn_off"), Status: models.StatusExecuted, DeviceID: &id},
			device:  device,
			want:    VoiceCommandResponse{RecognizedText: "выключи свет", Action: "turn_off", DeviceID: &id, Status: models.StatusExecuted, Message: "Выключаю Люстра"},
		},
		{
			name:    "other action",
			command: models.Command{RecognizedText: ptr("открой"), Action: ptr("open"), Status: models.StatusExecuted, DeviceID: &id},
			device:  device,
			want:    VoiceCommandResponse{RecognizedText: "открой", Action: "open", DeviceID: &id, Status: models.StatusExecuted, Message: "Выполняю команду для Люстра"},
		},
		{
			name:    "no device",
			command: models.Command{RecognizedText: ptr("выключи телевизор"), Action: ptr("turn_off"), Status: models.StatusFailed},
			want:    VoiceCommandResponse{RecognizedText: "выключи телевизор", Action: "turn_off", Status: models.StatusFailed, Message: MessageDeviceNotFound},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			first := FormResponse(&tt.command, tt.device)
			second := FormResponse(&tt.command, tt.device)

			for _, got := range []VoiceCommandResponse{first, second} {
				if got.RecognizedText != tt.want.RecognizedText || got.Action != tt.want.Action ||
					got.Status != tt.want.Status || got.Message != tt.want.Message {
					t.Errorf("FormResponse() = %+v, want %+v", got, tt.want)
				}
				if (got.DeviceID == nil) != (tt.want.DeviceID == nil) ||
					(got.DeviceID != nil && *got.DeviceID != *tt.want.DeviceID) {
					t.Errorf("FormResponse() device = %v, want %v", got.DeviceID, tt.want.DeviceID)
				}
			}
		})
	}
}
