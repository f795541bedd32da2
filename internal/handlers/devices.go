package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/localnerve/voicehome/internal/services"
	"github.com/localnerve/voicehome/internal/utils"
	"gorm.io/gorm"
)

// DeviceHandler handles device routes. Every route acts on the current user's devices.
type DeviceHandler struct {
	DB *gorm.DB
}

// CreateDevice handles POST /api/devices
// @Summary Register a device
// @Tags Devices
// @Accept json
// @Produce json
// @Param user_id query int false "Acting user"
// @Param device body services.DeviceCreateInput true "Device"
// @Success 201 {object} models.Device
// @Failure 400 {object} utils.ErrorResponseStruct
// @Failure 404 {object} utils.ErrorResponseStruct
// @Router /devices [post]
func (h *DeviceHandler) CreateDevice(c *fiber.Ctx) error {
	userID, err := currentUser(c)
	if err != nil {
		return err
	}

	var input services.DeviceCreateInput
	if err := parseBody(c, &input); err != nil {
		return err
	}

	device, err := services.CreateDevice(h.DB.WithContext(c.UserContext()), userID, input)
	if err != nil {
		return serviceError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(device)
}

// ListDevices handles GET /api/devices
// @Summary List devices
// @Tags Devices
// @Produce json
// @Param user_id query int false "Acting user"
// @Param skip query int false "Offset" default(0)
// @Param limit query int false "Page size" default(100)
// @Success 200 {array} models.Device
// @Router /devices [get]
func (h *DeviceHandler) ListDevices(c *fiber.Ctx) error {
	userID, err := currentUser(c)
	if err != nil {
		return err
	}
	page, err := parsePage(c)
	if err != nil {
		return err
	}

	devices, err := services.ListDevices(h.DB.WithContext(c.UserContext()), userID, page)
	if err != nil {
		return err
	}
	return c.JSON(devices)
}

// GetDevice handles GET /api/devices/:id
// @Summary Get a device
// @Tags Devices
// @Produce json
// @Param id path int true "Device ID"
// @Param user_id query int false "Acting user"
// @Success 200 {object} models.Device
// @Failure 404 {object} utils.ErrorResponseStruct
// @Router /devices/{id} [get]
func (h *DeviceHandler) GetDevice(c *fiber.Ctx) error {
	userID, id, err := h.target(c)
	if err != nil {
		return err
	}

	device, err := services.GetDevice(h.DB.WithContext(c.UserContext()), userID, id)
	if err != nil {
		return serviceError(c, err)
	}
	return c.JSON(device)
}

// UpdateDevice handles PUT /api/devices/:id
// @Summary Update a device
// @Description Partial update; omitted fields are unchanged
// @Tags Devices
// @Accept json
// @Produce json
// @Param id path int true "Device ID"
// @Param user_id query int false "Acting user"
// @Param device body services.DeviceUpdateInput true "Changes"
// @Success 200 {object} models.Device
// @Failure 400 {object} utils.ErrorResponseStruct
// @Failure 404 {object} utils.ErrorResponseStruct
// @Router /devices/{id} [put]
func (h *DeviceHandler) UpdateDevice(c *fiber.Ctx) error {
	userID, id, err := h.target(c)
	if err != nil {
		return err
	}

	var input services.DeviceUpdateInput
	if err := parseBody(c, &input); err != nil {
		return err
	}

	device, err := services.UpdateDevice(h.DB.WithContext(c.UserContext()), userID, id, input)
	if err != nil {
		return serviceError(c, err)
	}
	return c.JSON(device)
}

// ToggleDevice handles POST /api/devices/:id/toggle
// @Summary Toggle a device
// @Description Flip the device's power state
// @Tags Devices
// @Produce json
// @Param id path int true "Device ID"
// @Param user_id query int false "Acting user"
// @Success 200 {object} models.Device
// @Failure 404 {object} utils.ErrorResponseStruct
// @Router /devices/{id}/toggle [post]
func (h *DeviceHandler) ToggleDevice(c *fiber.Ctx) error {
	userID, id, err := h.target(c)
	if err != nil {
		return err
	}

	device, err := services.ToggleDevice(h.DB.WithContext(c.UserContext()), userID, id)
	if err != nil {
		return serviceError(c, err)
	}
	return c.JSON(device)
}

// DeleteDevice handles DELETE /api/devices/:id
// @Summary Delete a device
// @Description Delete a device; its command history is kept without a device
// @Tags Devices
// @Produce json
// @Param id path int true "Device ID"
// @Param user_id query int false "Acting user"
// @Success 200 {object} utils.DeletedResponseStruct
// @Failure 404 {object} utils.ErrorResponseStruct
// @Router /devices/{id} [delete]
func (h *DeviceHandler) DeleteDevice(c *fiber.Ctx) error {
	userID, id, err := h.target(c)
	if err != nil {
		return err
	}

	if err := services.DeleteDevice(h.DB.WithContext(c.UserContext()), userID, id); err != nil {
		return serviceError(c, err)
	}
	return utils.DeletedResponse(c, "Device deleted successfully")
}

func (h *DeviceHandler) target(c *fiber.Ctx) (uint64, uint64, error) {
	userID, err := currentUser(c)
	if err != nil {
		return 0, 0, err
	}
	id, err := parseID(c, "id")
	if err != nil {
		return 0, 0, err
	}
	return userID, id, nil
}
