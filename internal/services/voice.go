package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/localnerve/voicehome/internal/analysis"
	"github.com/localnerve/voicehome/internal/models"
	"github.com/localnerve/voicehome/internal/notify"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/hints"
)

// Action recorded for a stop or pause command
const ActionEmergencyStop = "emergency_stop"

// Response messages
const (
	MessageEmergencyStop  = "Выполняю экстренную остановку всех устройств!"
	MessageDeviceNotFound = "Устройство не найдено"
	messageTurnOn         = "Включаю %s"
	messageTurnOff        = "Выключаю %s"
	messageGeneric        = "Выполняю команду для %s"
)

// VoiceCommandRequest is the body of a voice command. At least one of
// text or audio_data is required; text wins when both are present.
type VoiceCommandRequest struct {
	Text      string `json:"text" validate:"required_without=AudioData"`
	AudioData string `json:"audio_data" validate:"required_without=Text"`
	Language  string `json:"language" validate:"omitempty,max=10"`
}

// VoiceCommandResponse is the rendered outcome of a voice command
type VoiceCommandResponse struct {
	RecognizedText string  `json:"recognized_text"`
	Action         string  `json:"action"`
	DeviceID       *uint64 `json:"device_id"`
	Status         string  `json:"status"`
	Message        string  `json:"message"`
}

// Decision is the finalized command with the device it targeted
// and every device whose power state it changed
type Decision struct {
	Command *models.Command
	Device  *models.Device
	Changed []models.Device
}

// FormRequest records the incoming command as pending
func FormRequest(tx *gorm.DB, userID uint64, commandText, language string) (*models.Command, error) {
	recognized := commandText
	command := &models.Command{
		UserID:         userID,
		CommandText:    commandText,
		RecognizedText: &recognized,
		Status:         models.StatusPending,
		Language:       language,
	}
	if err := tx.Create(command).Error; err != nil {
		return nil, fmt.Errorf("form request: %w", err)
	}
	return command, nil
}

// FormDecision applies the classified command to the user's devices and
// finalizes the pending command row.
//
// Stop and pause turn off every device of the user that is on and record
// emergency_stop with no device. Otherwise the lowest-ID active device
// matching the classified type and location is selected; turn_on and
// turn_off set its power state, other actions leave it untouched. No
// matching device marks the command failed.
func FormDecision(tx *gorm.DB, result analysis.Result, command *models.Command) (*Decision, error) {
	decision := &Decision{Command: command}
	action := result.Action
	status := models.StatusExecuted

	if result.IsEmergency() {
		action = ActionEmergencyStop
		changed, err := stopAllDevices(tx, command.UserID)
		if err != nil {
			return nil, err
		}
		decision.Changed = changed
	} else {
		device, err := findTargetDevice(tx, command.UserID, result)
		if err != nil {
			return nil, err
		}

		if device == nil {
			status = models.StatusFailed
		} else {
			decision.Device = device
			if changed, err := applyPowerAction(tx, device, action); err != nil {
				return nil, err
			} else if changed {
				decision.Changed = []models.Device{*device}
			}
		}
	}

	recognized := result.RecognizedText
	command.RecognizedText = &recognized
	command.Action = &action
	command.Status = status
	if decision.Device != nil {
		command.DeviceID = &decision.Device.ID
	}

	if err := tx.Save(command).Error; err != nil {
		return nil, fmt.Errorf("form decision: %w", err)
	}
	return decision, nil
}

// FormResponse renders the user-facing outcome of a finalized command.
// device is the command's device, nil when none was selected.
func FormResponse(command *models.Command, device *models.Device) VoiceCommandResponse {
	response := VoiceCommandResponse{
		Status:   command.Status,
		DeviceID: command.DeviceID,
	}
	if command.RecognizedText != nil {
		response.RecognizedText = *command.RecognizedText
	}
	if command.Action != nil {
		response.Action = *command.Action
	}

	switch {
	case response.Action == ActionEmergencyStop:
		response.Message = MessageEmergencyStop
	case device == nil || response.Status != models.StatusExecuted:
		response.Message = MessageDeviceNotFound
	case response.Action == analysis.ActionTurnOn:
		response.Message = fmt.Sprintf(messageTurnOn, device.Name)
	case response.Action == analysis.ActionTurnOff:
		response.Message = fmt.Sprintf(messageTurnOff, device.Name)
	default:
		response.Message = fmt.Sprintf(messageGeneric, device.Name)
	}

	return response
}

func stopAllDevices(tx *gorm.DB, userID uint64) ([]models.Device, error) {
	var devices []models.Device
	err := tx.Clauses(hints.CommentBefore("select", "voice:emergency_stop")).
		Where("owner_id = ? AND is_on = ?", userID, true).
		Order("id").
		Find(&devices).Error
	if err != nil {
		return nil, fmt.Errorf("emergency stop: %w", err)
	}
	if len(devices) == 0 {
		return nil, nil
	}

	ids := make([]uint64, len(devices))
	for i := range devices {
		ids[i] = devices[i].ID
		devices[i].IsOn = false
	}

	err = tx.Model(&models.Device{}).
		Where("id IN ?", ids).
		Update("is_on", false).Error
	if err != nil {
		return nil, fmt.Errorf("emergency stop: %w", err)
	}
	return devices, nil
}

func findTargetDevice(tx *gorm.DB, userID uint64, result analysis.Result) (*models.Device, error) {
	query := tx.Clauses(hints.CommentBefore("select", "voice:device_lookup")).
		Where("owner_id = ? AND is_active = ?", userID, true)
	if result.DeviceType != nil {
		query = query.Where("device_type = ?", *result.DeviceType)
	}
	if result.Location != nil {
		query = query.Where("location = ?", *result.Location)
	}

	var device models.Device
	if err := query.Order("id").Take(&device).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("device lookup: %w", err)
	}
	return &device, nil
}

// applyPowerAction reports whether the device's power state changed
func applyPowerAction(tx *gorm.DB, device *models.Device, action string) (bool, error) {
	var target bool
	switch action {
	case analysis.ActionTurnOn:
		target = true
	case analysis.ActionTurnOff:
		target = false
	default:
		return false, nil
	}

	if device.IsOn == target {
		return false, nil
	}
	if err := tx.Model(device).Update("is_on", target).Error; err != nil {
		return false, fmt.Errorf("set power state: %w", err)
	}
	device.IsOn = target
	return true, nil
}

// VoicePipeline runs a voice command through request, analysis, decision
// and response. The database work is a single transaction, so a failure
// leaves neither a command row nor device changes behind.
type VoicePipeline struct {
	DB              *gorm.DB
	Classifier      *analysis.Classifier
	Publisher       notify.Publisher
	Log             *logrus.Logger
	AudioDir        string
	DefaultLanguage string
}

// Process handles one voice command for the user
func (p *VoicePipeline) Process(ctx context.Context, userID uint64, req VoiceCommandRequest) (*VoiceCommandResponse, error) {
	if req.Text == "" && req.AudioData == "" {
		return nil, ErrEmptyCommand
	}

	language := req.Language
	if language == "" {
		language = p.DefaultLanguage
	}

	db := p.DB.WithContext(ctx)
	if _, err := GetUser(db, userID); err != nil {
		return nil, err
	}

	var (
		decision *Decision
		audio    *models.AudioData
	)
	err := db.Transaction(func(tx *gorm.DB) error {
		commandText := req.Text
		if commandText == "" {
			var err error
			if audio, err = StoreAudio(tx, userID, req.AudioData, p.AudioDir); err != nil {
				return err
			}
			commandText = AudioPlaceholderText
		}

		command, err := FormRequest(tx, userID, commandText, language)
		if err != nil {
			return err
		}

		decision, err = FormDecision(tx, p.Classifier.Classify(command.CommandText), command)
		return err
	})
	if err != nil {
		removeAudioFile(audio)
		return nil, err
	}

	response := FormResponse(decision.Command, decision.Device)
	voiceCommandsTotal.WithLabelValues(response.Action, response.Status).Inc()

	p.publish(ctx, decision)

	p.logger().WithFields(logrus.Fields{
		"user_id":    userID,
		"command_id": decision.Command.ID,
		"action":     response.Action,
		"status":     response.Status,
		"changed":    len(decision.Changed),
	}).Info("Voice command processed")

	return &response, nil
}

// publish sends committed device changes; delivery failures are logged only
func (p *VoicePipeline) publish(ctx context.Context, decision *Decision) {
	if p.Publisher == nil || len(decision.Changed) == 0 {
		return
	}

	now := time.Now().UTC()
	for _, device := range decision.Changed {
		event := notify.DeviceEvent{
			UserID:    device.OwnerID,
			DeviceID:  device.ID,
			IsOn:      device.IsOn,
			Action:    *decision.Command.Action,
			CommandID: decision.Command.ID,
			Timestamp: now,
		}
		if err := p.Publisher.PublishDeviceState(ctx, event); err != nil {
			p.logger().WithError(err).WithField("device_id", device.ID).Warn("Failed to publish device state")
		}
	}
}

func (p *VoicePipeline) logger() *logrus.Logger {
	if p.Log == nil {
		return logrus.StandardLogger()
	}
	return p.Log
}
