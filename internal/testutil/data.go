// data.go
//
// A smart-home voice command service with multi-database support
// Copyright (c) 2026 Alex Grant <info@localnerve.com> (https://www.localnerve.com), LocalNerve LLC
//
// This file is part of voicehome.
// voicehome is free software: you can redistribute it and/or modify it
// under the terms of the GNU Affero General Public License as published by the Free Software
// Foundation, either version 3 of the License, or (at your option) any later version.
// voicehome is distributed in the hope that it will be useful, but WITHOUT ANY WARRANTY;
// without even the implied warranty of MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.
// See the GNU Affero General Public License for more details.
// You should have received a copy of the GNU Affero General Public License along with voicehome.
// If not, see <https://www.gnu.org/licenses/>.
// Additional terms under GNU AGPL version 3 section 7:
// a) The reasonable legal notice of original copyright and author attribution must be preserved
//    by including the string: "Copyright (c) 2026 Alex Grant <info@localnerve.com> (https://www.localnerve.com), LocalNerve LLC"
//    in this material, copies, or source code of derived works.

// Package testutil provides an in-memory database and fixtures for package tests.
package testutil

import (
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/localnerve/voicehome/internal/database"
	"github.com/localnerve/voicehome/internal/logging"
	"github.com/localnerve/voicehome/internal/models"
	"gorm.io/gorm"
)

// SetupTestDB creates a migrated in-memory SQLite database for testing.
// The pool is pinned to one connection so every query sees the same memory database.
func SetupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := database.Open(sqlite.Open(":memory:"), logging.Discard(), "silent")
	if err != nil {
		t.Fatalf("Failed to create test database: %v", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("Failed to get underlying SQL DB: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() {
		_ = sqlDB.Close()
	})

	if err := database.AutoMigrate(db); err != nil {
		t.Fatalf("Failed to migrate test database: %v", err)
	}

	return db
}

// CreateTestUser creates a user with default settings
func CreateTestUser(t *testing.T, db *gorm.DB, username string) *models.User {
	t.Helper()

	user := &models.User{
		Username: username,
		Email:    username + "@example.com",
		IsActive: true,
	}
	if err := db.Create(user).Error; err != nil {
		t.Fatalf("Failed to create user: %v", err)
	}
	if err := db.Create(models.NewDefaultSettings(user.ID)).Error; err != nil {
		t.Fatalf("Failed to create settings: %v", err)
	}
	return user
}

// CreateTestDevice creates an active device for the owner.
// An empty location stores NULL.
func CreateTestDevice(t *testing.T, db *gorm.DB, ownerID uint64, name, deviceType, location string, isOn bool) *models.Device {
	t.Helper()

	device := &models.Device{
		Name:       name,
		DeviceType: deviceType,
		IsActive:   true,
		IsOn:       isOn,
		OwnerID:    ownerID,
	}
	if location != "" {
		device.Location = &location
	}
	if err := db.Create(device).Error; err != nil {
		t.Fatalf("Failed to create device: %v", err)
	}
	return device
}

// ReloadDevice fetches the current row for a device
func ReloadDevice(t *testing.T, db *gorm.DB, id uint64) *models.Device {
	t.Helper()

	var device models.Device
	if err := db.First(&device, id).Error; err != nil {
		t.Fatalf("Failed to reload device %d: %v", id, err)
	}
	return &device
}

// CountCommands returns the number of command rows for a user
func CountCommands(t *testing.T, db *gorm.DB, userID uint64) int64 {
	t.Helper()

	var count int64
	if err := db.Model(&models.Command{}).Where("user_id = ?", userID).Count(&count).Error; err != nil {
		t.Fatalf("Failed to count commands: %v", err)
	}
	return count
}
