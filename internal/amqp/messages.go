package amqp

import (
	"encoding/json"
	"errors"
	"time"

	"bankroll/internal/core"

	"github.com/shopspring/decimal"
)

// EventType names what happened to a user's ledger.
type EventType string

const (
	RecordCreated EventType = "record.created"
	RecordDeleted EventType = "record.deleted"
	MonthCleared  EventType = "month.cleared"
)

// RecordSnapshot is the part of a record downstream consumers need. Deleted
// records are gone from the database by the time the event is handled, so
// the message carries the data instead of just an id.
type RecordSnapshot struct {
	ID          int64           `json:"id"`
	Description string          `json:"description"`
	Amount      decimal.Decimal `json:"amount"`
	Status      core.Status     `json:"status"`
	Date        time.Time       `json:"date"`
}

// RecordEventMessage is published after every successful ledger write.
type RecordEventMessage struct {
	Type      EventType       `json:"type"`
	UserID    string          `json:"userId"`
	Record    *RecordSnapshot `json:"record,omitempty"`
	Year      int             `json:"year,omitempty"`
	Month     int             `json:"month,omitempty"`
	Deleted   int64           `json:"deleted,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
}

var ErrInvalidMessage = errors.New("invalid record event message")

func SnapshotOf(r core.BetRecord) *RecordSnapshot {
	return &RecordSnapshot{
		ID:          r.ID,
		Description: r.Description,
		Amount:      r.Amount,
		Status:      r.Status,
		Date:        r.Date,
	}
}

func NewRecordCreatedMessage(r core.BetRecord) *RecordEventMessage {
	return &RecordEventMessage{Type: RecordCreated, UserID: r.UserID, Record: SnapshotOf(r), Timestamp: time.Now()}
}

func NewRecordDeletedMessage(r core.BetRecord) *RecordEventMessage {
	return &RecordEventMessage{Type: RecordDeleted, UserID: r.UserID, Record: SnapshotOf(r), Timestamp: time.Now()}
}

func NewMonthClearedMessage(userID string, w core.Window, deleted int64) *RecordEventMessage {
	return &RecordEventMessage{
		Type:      MonthCleared,
		UserID:    userID,
		Year:      w.Year,
		Month:     int(w.Month),
		Deleted:   deleted,
		Timestamp: time.Now(),
	}
}

// Validate checks the fields each event type depends on.
func (m *RecordEventMessage) Validate() error {
	if m.UserID == "" {
		return ErrInvalidMessage
	}
	switch m.Type {
	case RecordCreated, RecordDeleted:
		if m.Record == nil || m.Record.ID == 0 {
			return ErrInvalidMessage
		}
	case MonthCleared:
		if m.Month < 1 || m.Month > 12 || m.Year < 1 {
			return ErrInvalidMessage
		}
	default:
		return ErrInvalidMessage
	}
	return nil
}

// ToJSON converts the message to JSON bytes
func (m *RecordEventMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// RecordEventMessageFromJSON decodes and validates a message.
func RecordEventMessageFromJSON(data []byte) (*RecordEventMessage, error) {
	var msg RecordEventMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if err := msg.Validate(); err != nil {
		return nil, err
	}
	return &msg, nil
}
