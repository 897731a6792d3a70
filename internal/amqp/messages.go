package amqp

import (
	"encoding/json"
	"time"
)

// Actions carried by subscription event messages.
const (
	ActionCreated = "created"
	ActionUpdated = "updated"
	ActionDeleted = "deleted"
)

// SubscriptionEventMessage tells the mirror worker that a subscription
// changed. It carries only the ID, action and version; the worker fetches the
// full row from the database so messages stay small and never go stale.
type SubscriptionEventMessage struct {
	ID        string    `json:"id"`
	Action    string    `json:"action"`
	Version   int64     `json:"version"`
	Timestamp time.Time `json:"timestamp"`
}

func NewSubscriptionEventMessage(id, action string, version int64) *SubscriptionEventMessage {
	return &SubscriptionEventMessage{
		ID:        id,
		Action:    action,
		Version:   version,
		Timestamp: time.Now(),
	}
}

func (m *SubscriptionEventMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func SubscriptionEventMessageFromJSON(data []byte) (*SubscriptionEventMessage, error) {
	var msg SubscriptionEventMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

// RenewalDueMessage announces that a subscription bills today. NextDueDate is
// the occurrence after this one, so consumers can show "renews again on".
type RenewalDueMessage struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Amount      float64   `json:"amount"`
	Currency    string    `json:"currency"`
	DueDate     time.Time `json:"due_date"`
	NextDueDate time.Time `json:"next_due_date"`
	Timestamp   time.Time `json:"timestamp"`
}

func NewRenewalDueMessage(id, name string, amount float64, currencyCode string, dueDate, nextDueDate time.Time) *RenewalDueMessage {
	return &RenewalDueMessage{
		ID:          id,
		Name:        name,
		Amount:      amount,
		Currency:    currencyCode,
		DueDate:     dueDate,
		NextDueDate: nextDueDate,
		Timestamp:   time.Now(),
	}
}

func (m *RenewalDueMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func RenewalDueMessageFromJSON(data []byte) (*RenewalDueMessage, error) {
	var msg RenewalDueMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
