package core

import (
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const (
	Green Status = "green"
	Red   Status = "red"
)

// DefaultDescription is used when a record is logged without a label.
const DefaultDescription = "Entrada"

// MaxDescriptionLength bounds the free-text label of a record.
const MaxDescriptionLength = 200

// EntryHour is the hour of day at which a record is pinned on its calendar day.
const EntryHour = 12

type (
	Status string

	// BetRecord is one logged profit or loss tied to a calendar day and a user.
	BetRecord struct {
		ID          int64
		UserID      string
		Description string
		Amount      decimal.Decimal
		Status      Status
		Date        time.Time // zero when unknown
		CreatedAt   time.Time
	}

	// RecordInput is what a user submits to log a record.
	RecordInput struct {
		UserID      string
		Description string
		Amount      decimal.Decimal
		Status      Status // optional; coerces the sign of Amount when set
		Year        int
		Month       int
		Day         int
	}
)

var (
	ErrInvalidDay         = errors.New("invalid day")
	ErrInvalidMonth       = errors.New("invalid month")
	ErrInvalidYear        = errors.New("invalid year")
	ErrInvalidAmount      = errors.New("invalid amount")
	ErrInvalidStatus      = errors.New("invalid status")
	ErrEmptyUser          = errors.New("empty user id")
	ErrDescriptionTooLong = errors.New("description too long (max 200 characters)")
)

// StatusFromAmount derives the outcome of a record from the sign of its amount.
// Zero counts as green.
func StatusFromAmount(amount decimal.Decimal) Status {
	if amount.IsNegative() {
		return Red
	}
	return Green
}

func (s Status) Validate() error {
	switch s {
	case Green, Red, "":
		return nil
	default:
		return ErrInvalidStatus
	}
}

// IsWin reports whether the record counts as a win.
func (r BetRecord) IsWin() bool {
	return !r.Amount.IsNegative()
}

// HasDate reports whether the record can be placed on the calendar.
func (r BetRecord) HasDate() bool {
	return !r.Date.IsZero()
}

func (r BetRecord) Validate() error {
	if strings.TrimSpace(r.UserID) == "" {
		return ErrEmptyUser
	}
	if len(r.Description) > MaxDescriptionLength {
		return ErrDescriptionTooLong
	}
	if err := r.Status.Validate(); err != nil {
		return err
	}
	if r.Status != "" && r.Status != StatusFromAmount(r.Amount) {
		return ErrInvalidStatus
	}
	return nil
}

func (in RecordInput) Validate() error {
	if strings.TrimSpace(in.UserID) == "" {
		return ErrEmptyUser
	}
	if in.Year < 1 || in.Year > 9999 {
		return ErrInvalidYear
	}
	if in.Month < 1 || in.Month > 12 {
		return ErrInvalidMonth
	}
	if in.Day < 1 || in.Day > DaysInMonth(in.Year, time.Month(in.Month)) {
		return ErrInvalidDay
	}
	if len(strings.TrimSpace(in.Description)) > MaxDescriptionLength {
		return ErrDescriptionTooLong
	}
	return in.Status.Validate()
}

// NewRecord validates the input and builds the record to be stored. The sign
// of the amount is authoritative: an explicit status only coerces it, and the
// stored status is always derived from the final sign.
func NewRecord(in RecordInput, loc *time.Location) (BetRecord, error) {
	if err := in.Validate(); err != nil {
		return BetRecord{}, err
	}
	if loc == nil {
		loc = time.UTC
	}

	amount := in.Amount.Round(2)
	switch in.Status {
	case Red:
		if amount.IsPositive() {
			amount = amount.Neg()
		}
	case Green:
		amount = amount.Abs()
	}

	desc := strings.TrimSpace(in.Description)
	if desc == "" {
		desc = DefaultDescription
	}

	return BetRecord{
		UserID:      in.UserID,
		Description: desc,
		Amount:      amount,
		Status:      StatusFromAmount(amount),
		Date:        time.Date(in.Year, time.Month(in.Month), in.Day, EntryHour, 0, 0, 0, loc),
	}, nil
}
