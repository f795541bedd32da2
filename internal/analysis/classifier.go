// Package analysis classifies command text into an action, device type and
// location by ordered substring matching against static keyword tables.
package analysis

import (
	"strings"
)

// Actions produced by the classifier
const (
	ActionTurnOn   = "turn_on"
	ActionTurnOff  = "turn_off"
	ActionOpen     = "open"
	ActionClose    = "close"
	ActionIncrease = "increase"
	ActionDecrease = "decrease"
	ActionStop     = "stop"
	ActionPause    = "pause"
	ActionUnknown  = "unknown"
)

// Result is the outcome of classifying one command
type Result struct {
	Action         string  `json:"action"`
	DeviceType     *string `json:"device_type"`
	Location       *string `json:"location"`
	RecognizedText string  `json:"recognized_text"`
}

// IsEmergency reports whether the action halts every device
func (r Result) IsEmergency() bool {
	return r.Action == ActionStop || r.Action == ActionPause
}

// Classifier matches text against a fixed set of keyword tables.
// It holds no mutable state and is safe for concurrent use.
type Classifier struct {
	tables Tables
}

// NewClassifier builds a classifier over a private copy of tables
func NewClassifier(tables *Tables) *Classifier {
	return &Classifier{tables: *tables.clone()}
}

// Classify lowercases and space-joins inputs, then picks the first matching
// entry from each table. No action match yields ActionUnknown; no device or
// location match yields nil.
func (c *Classifier) Classify(inputs ...string) Result {
	text := strings.ToLower(strings.Join(inputs, " "))

	result := Result{
		Action:         ActionUnknown,
		RecognizedText: text,
	}

	if action, ok := c.tables.Actions.match(text); ok {
		result.Action = action
	}
	if deviceType, ok := c.tables.DeviceTypes.match(text); ok {
		result.DeviceType = &deviceType
	}
	if location, ok := c.tables.Locations.match(text); ok {
		result.Location = &location
	}

	return result
}
