package taskrouter

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Provider-boundary types. Attribute blobs arrive as JSON strings and are
// decoded exactly once, here. Malformed payloads fail closed rather than
// being silently ignored.

type Activity struct {
	SID          string
	FriendlyName string
}

// Well-known activity names every workspace is expected to carry.
const (
	ActivityOffline     = "Offline"
	ActivityAvailable   = "Available"
	ActivityUnavailable = "Unavailable"
)

// WorkerAttributes is the capability blob attached to a TaskRouter worker.
type WorkerAttributes struct {
	Languages  []string `json:"languages"`
	ContactURI string   `json:"contact_uri"`
}

var ErrBadAttributes = errors.New("taskrouter: malformed attributes")

// ParseWorkerAttributes decodes a worker attribute blob. A worker without a
// contact number or language set is unusable for dispatch, so both are
// required.
func ParseWorkerAttributes(raw string) (WorkerAttributes, error) {
	var a WorkerAttributes
	if err := json.Unmarshal([]byte(raw), &a); err != nil {
		return WorkerAttributes{}, fmt.Errorf("%w: %v", ErrBadAttributes, err)
	}
	if strings.TrimSpace(a.ContactURI) == "" {
		return WorkerAttributes{}, fmt.Errorf("%w: missing contact_uri", ErrBadAttributes)
	}
	if len(a.Languages) == 0 {
		return WorkerAttributes{}, fmt.Errorf("%w: missing languages", ErrBadAttributes)
	}
	return a, nil
}

func (a WorkerAttributes) Encode() string {
	b, _ := json.Marshal(a)
	return string(b)
}

type Worker struct {
	SID          string
	FriendlyName string
	ActivitySID  string
	ActivityName string
	Attributes   WorkerAttributes
	DateUpdated  time.Time
}

// TaskAttributes describes one inbound call waiting for service.
type TaskAttributes struct {
	CallSID          string `json:"call_sid"`
	SelectedLanguage string `json:"selected_language"`
	CalledNumber     string `json:"called_number"`
	CallerNumber     string `json:"caller_number,omitempty"`
}

func ParseTaskAttributes(raw string) (TaskAttributes, error) {
	var a TaskAttributes
	if err := json.Unmarshal([]byte(raw), &a); err != nil {
		return TaskAttributes{}, fmt.Errorf("%w: %v", ErrBadAttributes, err)
	}
	return a, nil
}

type TaskStatus string

const (
	TaskPending   TaskStatus = "pending"
	TaskReserved  TaskStatus = "reserved"
	TaskAssigned  TaskStatus = "assigned"
	TaskWrapping  TaskStatus = "wrapping"
	TaskCompleted TaskStatus = "completed"
	TaskCanceled  TaskStatus = "canceled"
)

type Task struct {
	SID              string
	AssignmentStatus TaskStatus
	Attributes       TaskAttributes
	Reason           string
	DateCreated      time.Time
	DateUpdated      time.Time
}

type ReservationStatus string

const (
	ReservationPending   ReservationStatus = "pending"
	ReservationAccepted  ReservationStatus = "accepted"
	ReservationRejected  ReservationStatus = "rejected"
	ReservationTimeout   ReservationStatus = "timeout"
	ReservationCanceled  ReservationStatus = "canceled"
	ReservationCompleted ReservationStatus = "completed"
)

type Reservation struct {
	SID         string
	TaskSID     string
	WorkerSID   string
	Status      ReservationStatus
	DateCreated time.Time
	DateUpdated time.Time
}

// AnsweredBy is the answering-machine detection verdict for an outbound leg.
type AnsweredBy string

const (
	AnsweredByHuman             AnsweredBy = "human"
	AnsweredByUnknown           AnsweredBy = "unknown"
	AnsweredByMachineStart      AnsweredBy = "machine_start"
	AnsweredByMachineEndBeep    AnsweredBy = "machine_end_beep"
	AnsweredByMachineEndSilence AnsweredBy = "machine_end_silence"
	AnsweredByMachineEndOther   AnsweredBy = "machine_end_other"
	AnsweredByFax               AnsweredBy = "fax"
)

func (a AnsweredBy) Human() bool { return a == AnsweredByHuman }

// Machine reports whether the verdict is a recognized machine or fax variant.
// Unknown and empty verdicts are neither human nor machine.
func (a AnsweredBy) Machine() bool {
	switch a {
	case AnsweredByMachineStart, AnsweredByMachineEndBeep, AnsweredByMachineEndSilence, AnsweredByMachineEndOther, AnsweredByFax:
		return true
	default:
		return false
	}
}

type CallStatus string

const (
	CallQueued     CallStatus = "queued"
	CallRinging    CallStatus = "ringing"
	CallInProgress CallStatus = "in-progress"
	CallCompleted  CallStatus = "completed"
	CallBusy       CallStatus = "busy"
	CallFailed     CallStatus = "failed"
	CallNoAnswer   CallStatus = "no-answer"
	CallCanceled   CallStatus = "canceled"
)

type Call struct {
	SID    string
	From   string
	To     string
	Status CallStatus
}

type CreateCallParams struct {
	To   string
	From string

	// URL is invoked by the provider once the leg is answered.
	URL string

	// StatusCallback receives terminal leg status events.
	StatusCallback string

	// MachineDetection enables AMD on the leg.
	MachineDetection bool

	// Timeout is the ring timeout in seconds; zero uses the provider default.
	Timeout int
}

type CreateWorkerParams struct {
	FriendlyName string
	Attributes   WorkerAttributes
}

type UpdateWorkerParams struct {
	FriendlyName string
	Attributes   WorkerAttributes
}
