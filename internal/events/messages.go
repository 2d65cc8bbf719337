package events

import (
	"encoding/json"
	"time"
)

// Actions carried by expense events.
const (
	ActionCreated       = "created"
	ActionUpdated       = "updated"
	ActionDeleted       = "deleted"
	ActionBudgetChanged = "budget_changed"
)

// ExpenseEventMessage tells sibling clients that the backend dataset
// changed so they can refresh. It carries only the id and action; the
// consumer re-fetches whatever it needs.
type ExpenseEventMessage struct {
	Action    string    `json:"action"`
	ExpenseID string    `json:"expenseId,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// NewExpenseEventMessage creates an event for the given action and id.
func NewExpenseEventMessage(action, expenseID string) *ExpenseEventMessage {
	return &ExpenseEventMessage{
		Action:    action,
		ExpenseID: expenseID,
		Timestamp: time.Now(),
	}
}

// ToJSON converts the message to JSON bytes
func (m *ExpenseEventMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// ExpenseEventMessageFromJSON creates a message from JSON bytes
func ExpenseEventMessageFromJSON(data []byte) (*ExpenseEventMessage, error) {
	var msg ExpenseEventMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
