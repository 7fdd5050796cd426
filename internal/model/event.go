// internal/model/event.go
package model

import (
	"time"

	"github.com/google/uuid"
)

// EventType represents the type of event
type EventType string

const (
	EventOperationCompleted EventType = "OPERATION_COMPLETED"
	EventOperationFailed    EventType = "OPERATION_FAILED"
	EventFrameTransmitted   EventType = "FRAME_TRANSMITTED"
	EventFrameReceived      EventType = "FRAME_RECEIVED"
	EventFrameInjected      EventType = "FRAME_INJECTED"
	EventBootServicesExited EventType = "BOOT_SERVICES_EXITED"
)

// AllEventTypes lists every type published by the NIC service
var AllEventTypes = []EventType{
	EventOperationCompleted,
	EventOperationFailed,
	EventFrameTransmitted,
	EventFrameReceived,
	EventFrameInjected,
	EventBootServicesExited,
}

// NICEvent represents an event in the simulator
type NICEvent struct {
	ID        uuid.UUID              `json:"id"`
	EventType EventType              `json:"event_type"`
	Source    string                 `json:"source"`
	Severity  string                 `json:"severity"` // INFO, WARNING, ERROR
	Data      map[string]interface{} `json:"data"`
	Timestamp time.Time              `json:"timestamp"`
}

// NewNICEvent creates an event with a fresh ID
func NewNICEvent(eventType EventType, severity string, data map[string]interface{}) NICEvent {
	return NICEvent{
		ID:        uuid.New(),
		EventType: eventType,
		Source:    "nic",
		Severity:  severity,
		Data:      data,
		Timestamp: time.Now(),
	}
}
