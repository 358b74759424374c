package queue

import (
	"encoding/json"

	"github.com/dukani-next/internal/constants"

	"github.com/hibiken/asynq"
)

const (
	// TaskNotificationDispatch delivers one SMS or email
	TaskNotificationDispatch = constants.TaskNotificationDispatch
	// TaskMpesaStatusQuery reconciles an STK push whose callback may have been lost
	TaskMpesaStatusQuery = constants.TaskMpesaStatusQuery
)

// NotificationDispatchPayload notification intent recorded by an order transition
type NotificationDispatchPayload struct {
	Channel   string `json:"channel"`
	EventType string `json:"event_type"`
	OrderID   uint   `json:"order_id,omitempty"`
	Status    string `json:"status,omitempty"`  // fulfillment status for status_update
	To        string `json:"to,omitempty"`      // overrides the order's contact
	Message   string `json:"message,omitempty"` // prerendered body for ad-hoc SMS
}

// MpesaStatusQueryPayload STK push to reconcile
type MpesaStatusQueryPayload struct {
	OrderID           uint   `json:"order_id"`
	CheckoutRequestID string `json:"checkout_request_id"`
	Attempt           int    `json:"attempt"`
}

// NewNotificationDispatchTask builds the task
func NewNotificationDispatchTask(payload NotificationDispatchPayload) (*asynq.Task, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskNotificationDispatch, body), nil
}

// NewMpesaStatusQueryTask builds the task
func NewMpesaStatusQueryTask(payload MpesaStatusQueryPayload) (*asynq.Task, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskMpesaStatusQuery, body), nil
}
