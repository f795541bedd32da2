// Package notify fans device state changes out to subscribers after a
// command has been committed.
package notify

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// DeviceEvent describes one committed device state change
type DeviceEvent struct {
	UserID    uint64    `json:"user_id"`
	DeviceID  uint64    `json:"device_id"`
	IsOn      bool      `json:"is_on"`
	Action    string    `json:"action"`
	CommandID uint64    `json:"command_id"`
	Timestamp time.Time `json:"timestamp"`
}

// Publisher delivers device events
type Publisher interface {
	PublishDeviceState(ctx context.Context, event DeviceEvent) error
	Close()
}

// StateTopic returns the retained state topic for a device.
//
// Example: voicehome/state/1/42
func StateTopic(prefix string, userID, deviceID uint64) string {
	return fmt.Sprintf("%s/state/%d/%d", prefix, userID, deviceID)
}

// Nop discards every event
type Nop struct{}

// PublishDeviceState implements Publisher
func (Nop) PublishDeviceState(context.Context, DeviceEvent) error { return nil }

// Close implements Publisher
func (Nop) Close() {}

// Recorder keeps published events in memory
type Recorder struct {
	mu     sync.Mutex
	events []DeviceEvent
	Err    error
}

// PublishDeviceState implements Publisher
func (r *Recorder) PublishDeviceState(_ context.Context, event DeviceEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return r.Err
	}
	r.events = append(r.events, event)
	return nil
}

// Close implements Publisher
func (r *Recorder) Close() {}

// Events returns a copy of the recorded events
func (r *Recorder) Events() []DeviceEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]DeviceEvent(nil), r.events...)
}
