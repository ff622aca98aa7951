// Package http provides HTTP server and handler implementations.
//
// This file implements request decoding and validation: JSON bodies are
// decoded into DTOs checked with go-playground/validator, query parameters
// are parsed into calendar windows.
package http

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"bankroll/internal/core"

	"github.com/go-playground/validator/v10"
)

// maxBodyBytes bounds every JSON request body.
const maxBodyBytes = 64 << 10

var errMalformedBody = errors.New("malformed request body")

// flexString accepts a JSON string or number, so amounts may be sent as
// 12.5 or "12,50".
type flexString string

func (f *flexString) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		*f = ""
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = flexString(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*f = flexString(n.String())
	return nil
}

type signUpRequest struct {
	Email           string `json:"email" validate:"required"`
	Password        string `json:"password" validate:"required"`
	ConfirmPassword string `json:"confirmPassword"`
}

type signInRequest struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type confirmRequest struct {
	Token string `json:"token" validate:"required"`
}

// createRecordRequest carries either year/month/day or the legacy createdAt.
type createRecordRequest struct {
	Description string     `json:"description" validate:"max=200"`
	Amount      flexString `json:"amount" validate:"required"`
	Status      string     `json:"status" validate:"omitempty,oneof=green red"`
	Year        int        `json:"year" validate:"required_without=CreatedAt,omitempty,min=1,max=9999"`
	Month       int        `json:"month" validate:"required_without=CreatedAt,omitempty,min=1,max=12"`
	Day         int        `json:"day" validate:"required_without=CreatedAt,omitempty,min=1,max=31"`
	CreatedAt   string     `json:"createdAt"`
}

type initialBankRequest struct {
	InitialBank flexString `json:"initialBank" validate:"required"`
}

// decodeJSON reads one JSON object into dst and validates it. Syntax errors
// wrap errMalformedBody; validation errors are validator.ValidationErrors.
func decodeJSON(r *http.Request, v *validator.Validate, dst any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("%w: %v", errMalformedBody, err)
	}
	return v.Struct(dst)
}

// requestError turns a decodeJSON failure into its response.
func requestError(err error) *JSONResponseBuilder {
	if errors.Is(err, errMalformedBody) {
		return BadRequestError("Malformed JSON body")
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		return UnprocessableEntityError(validationMessage(verrs))
	}
	return ErrorFor(err)
}

func validationMessage(errs validator.ValidationErrors) string {
	msgs := make([]string, 0, len(errs))
	for _, err := range errs {
		field := lowerFirst(err.Field())
		switch err.ActualTag() {
		case "required", "required_without":
			msgs = append(msgs, fmt.Sprintf("field %s is required", field))
		case "oneof":
			msgs = append(msgs, fmt.Sprintf("field %s must be one of %s", field, err.Param()))
		case "max":
			msgs = append(msgs, fmt.Sprintf("field %s must be at most %s", field, err.Param()))
		case "min":
			msgs = append(msgs, fmt.Sprintf("field %s must be at least %s", field, err.Param()))
		default:
			msgs = append(msgs, fmt.Sprintf("field %s is invalid", field))
		}
	}
	return strings.Join(msgs, ", ")
}

func lowerFirst(s string) string {
	if s == "" {
		return s
	}
	return strings.ToLower(s[:1]) + s[1:]
}

// toInput converts the request into a RecordInput for userID. Dates given as
// createdAt are read in loc.
func (req createRecordRequest) toInput(userID string, loc *time.Location) (core.RecordInput, error) {
	amount, err := core.ParseAmount(string(req.Amount))
	if err != nil {
		return core.RecordInput{}, err
	}
	in := core.RecordInput{
		UserID:      userID,
		Description: sanitizeInput(req.Description),
		Amount:      amount,
		Status:      core.Status(req.Status),
		Year:        req.Year,
		Month:       req.Month,
		Day:         req.Day,
	}
	if req.Year == 0 && req.CreatedAt != "" {
		t, err := parseCreatedAt(req.CreatedAt, loc)
		if err != nil {
			return core.RecordInput{}, core.ErrInvalidDay
		}
		in.Year, in.Month, in.Day = t.Year(), int(t.Month()), t.Day()
	}
	return in, nil
}

func parseCreatedAt(s string, loc *time.Location) (time.Time, error) {
	s = strings.TrimSpace(s)
	if t, err := time.ParseInLocation(time.DateOnly, s, loc); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, err
	}
	return t.In(loc), nil
}

// sanitizeInput removes control characters and trims whitespace.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		return r
	}, s)
}

// queryInt reads an optional integer parameter. ok is false when absent.
func queryInt(q url.Values, key string) (n int, ok bool, err error) {
	v := strings.TrimSpace(q.Get(key))
	if v == "" {
		return 0, false, nil
	}
	n, err = strconv.Atoi(v)
	if err != nil {
		return 0, false, fmt.Errorf("parameter %s must be an integer", key)
	}
	return n, true, nil
}

// maxMonthOffset spans the whole valid year range; larger offsets can only
// land outside it.
const maxMonthOffset = 12 * 9999

// parseWindowQuery reads year, month and offset, defaulting to the current
// month in loc. explicit reports whether year or month was given.
func parseWindowQuery(q url.Values, loc *time.Location, now time.Time) (w core.Window, explicit bool, err error) {
	now = now.In(loc)
	year, hasYear, err := queryInt(q, "year")
	if err != nil {
		return core.Window{}, false, err
	}
	month, hasMonth, err := queryInt(q, "month")
	if err != nil {
		return core.Window{}, false, err
	}
	offset, _, err := queryInt(q, "offset")
	if err != nil {
		return core.Window{}, false, err
	}
	if !hasYear {
		year = now.Year()
	}
	if !hasMonth {
		month = int(now.Month())
	}

	w, err = core.NewWindow(year, month, loc)
	if err != nil {
		return core.Window{}, false, err
	}
	if offset != 0 {
		if offset > maxMonthOffset || offset < -maxMonthOffset {
			return core.Window{}, false, core.ErrInvalidYear
		}
		w = w.Shift(offset)
		if err := w.Validate(); err != nil {
			return core.Window{}, false, err
		}
	}
	return w, hasYear || hasMonth, nil
}

// parseNavigator builds the navigator state of a dashboard request.
func parseNavigator(q url.Values, loc *time.Location, now time.Time) (core.Navigator, error) {
	w, _, err := parseWindowQuery(q, loc, now)
	if err != nil {
		return core.Navigator{}, err
	}
	nav := core.NewNavigator(w)
	day, ok, err := queryInt(q, "day")
	if err != nil {
		return core.Navigator{}, err
	}
	if ok && day != 0 {
		return nav.SelectDay(day)
	}
	return nav, nil
}

func parseRecordID(s string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid record id %q", s)
	}
	return id, nil
}
