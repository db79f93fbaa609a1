// Package audit defines the event taxonomy every authenticated action is
// recorded under. The service writes events; clients read them back through
// the logs endpoints.
package audit

import (
	"encoding/json"
	"errors"
	"net/url"
	"strconv"
	"time"

	"dnsmanager/internal/failure"
)

type Action string

const (
	ActionLogin          Action = "login"
	ActionLogout         Action = "logout"
	ActionAddRecord      Action = "add_record"
	ActionUpdateRecord   Action = "update_record"
	ActionDeleteRecord   Action = "delete_record"
	ActionReloadZone     Action = "reload_zone"
	ActionRestartService Action = "restart_service"
	ActionCreateZone     Action = "create_zone"
	ActionValidateZone   Action = "validate_zone"
	ActionCreateUser     Action = "create_user"
	ActionDeleteUser     Action = "delete_user"
)

// Actions lists every known action.
func Actions() []Action {
	return []Action{
		ActionLogin, ActionLogout,
		ActionAddRecord, ActionUpdateRecord, ActionDeleteRecord,
		ActionReloadZone, ActionRestartService,
		ActionCreateZone, ActionValidateZone, ActionCreateUser, ActionDeleteUser,
	}
}

func (a Action) Valid() bool {
	for _, known := range Actions() {
		if a == known {
			return true
		}
	}
	return false
}

type Status string

const (
	StatusSuccess Status = "success"
	StatusFailure Status = "failure"
)

// Event is one audit row. ErrorMessage is set only on failures.
type Event struct {
	ID           int64           `json:"id,omitempty"`
	Timestamp    time.Time       `json:"timestamp"`
	User         string          `json:"user"`
	Action       Action          `json:"action"`
	Status       Status          `json:"status"`
	Zone         string          `json:"zone,omitempty"`
	RecordType   string          `json:"record_type,omitempty"`
	Details      json.RawMessage `json:"details,omitempty"`
	ErrorMessage string          `json:"error_message,omitempty"`
	IPAddress    string          `json:"ip_address,omitempty"`
}

var (
	ErrNoUser          = errors.New("audit: event has no user")
	ErrUnknownAction   = errors.New("audit: unknown action")
	ErrBadStatus       = errors.New("audit: status must be success or failure")
	ErrStrayError      = errors.New("audit: error_message set on a successful event")
	ErrMissingErrorMsg = errors.New("audit: failed event has no error_message")
)

func (e Event) Validate() error {
	if e.User == "" {
		return ErrNoUser
	}
	if !e.Action.Valid() {
		return ErrUnknownAction
	}
	switch e.Status {
	case StatusSuccess:
		if e.ErrorMessage != "" {
			return ErrStrayError
		}
	case StatusFailure:
		if e.ErrorMessage == "" {
			return ErrMissingErrorMsg
		}
	default:
		return ErrBadStatus
	}
	return nil
}

func Success(user string, action Action) Event {
	return Event{Timestamp: time.Now().UTC(), User: user, Action: action, Status: StatusSuccess}
}

// Failure builds a failed event. An empty message is replaced so the event
// still validates.
func Failure(user string, action Action, message string) Event {
	if message == "" {
		message = "unknown error"
	}
	return Event{Timestamp: time.Now().UTC(), User: user, Action: action, Status: StatusFailure, ErrorMessage: message}
}

// Outcome picks Success or Failure from err. Structured failures record
// their user-facing message.
func Outcome(user string, action Action, err error) Event {
	if err != nil {
		return Failure(user, action, failure.Message(err))
	}
	return Success(user, action)
}

func (e Event) WithZone(zone string) Event {
	e.Zone = zone
	return e
}

func (e Event) WithRecordType(t string) Event {
	e.RecordType = t
	return e
}

func (e Event) WithIP(ip string) Event {
	e.IPAddress = ip
	return e
}

// WithDetails attaches v encoded as JSON. Values that fail to encode are
// dropped.
func (e Event) WithDetails(v any) Event {
	if v == nil {
		return e
	}
	b, err := json.Marshal(v)
	if err != nil {
		return e
	}
	e.Details = b
	return e
}

// Filter selects log entries. Zero fields do not filter.
type Filter struct {
	Limit  int
	User   string
	Action Action
	Zone   string
}

// Clamp returns f with Limit defaulted to def and capped at max.
func (f Filter) Clamp(def, max int) Filter {
	if f.Limit <= 0 {
		f.Limit = def
	}
	if f.Limit > max {
		f.Limit = max
	}
	return f
}

// Values encodes f as the query string of the logs endpoint.
func (f Filter) Values() url.Values {
	v := url.Values{}
	if f.Limit > 0 {
		v.Set("limit", strconv.Itoa(f.Limit))
	}
	if f.User != "" {
		v.Set("user", f.User)
	}
	if f.Action != "" {
		v.Set("action", string(f.Action))
	}
	if f.Zone != "" {
		v.Set("zone", f.Zone)
	}
	return v
}

// ParseFilter is the inverse of Values. A malformed limit is ignored.
func ParseFilter(v url.Values) Filter {
	f := Filter{
		User:   v.Get("user"),
		Action: Action(v.Get("action")),
		Zone:   v.Get("zone"),
	}
	if n, err := strconv.Atoi(v.Get("limit")); err == nil {
		f.Limit = n
	}
	return f
}
