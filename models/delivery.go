package models

import "time"

// DeliveryRecord is the debug history entry written for every dispatched
// reminder.
type DeliveryRecord struct {
	Token       string    `json:"token"`
	Message     string    `json:"message"`
	DueCount    int       `json:"due_count"`
	DeliveredAt time.Time `json:"delivered_at"`
	Error       string    `json:"error,omitempty"`
}
