package dispatch

import "github.com/MutualAidNYC/twilio-server/internal/taskrouter"

// Typed webhook events. Form decoding and attribute-blob parsing happen at
// the HTTP boundary; handlers only ever see these.

// AssignmentEvent fires when the platform offers a task to a worker.
type AssignmentEvent struct {
	ReservationSID   string
	TaskSID          string
	WorkerSID        string
	WorkerAttributes taskrouter.WorkerAttributes
	TaskAttributes   taskrouter.TaskAttributes
}

// AgentConnectedEvent fires when a worker answers the outbound leg.
type AgentConnectedEvent struct {
	CallSID    string
	Called     string
	AnsweredBy taskrouter.AnsweredBy
}

// AgentGatherEvent carries the digits a worker pressed (possibly none).
type AgentGatherEvent struct {
	CallSID string
	Called  string
	Digits  string
}

// DisconnectEvent fires when a worker leg or its conference ends.
type DisconnectEvent struct {
	Called     string
	CallStatus taskrouter.CallStatus
}

// RecordingEvent fires when a voicemail recording finishes.
type RecordingEvent struct {
	CallSID      string
	CallStatus   taskrouter.CallStatus
	From         string
	RecordingSID string
	RecordingURL string
}

// TranscriptionEvent fires when a voicemail transcription is ready.
type TranscriptionEvent struct {
	CallSID           string
	RecordingSID      string
	TranscriptionSID  string
	TranscriptionText string
}

// SmsEvent is a worker texting the sign-in number.
type SmsEvent struct {
	From string
	Body string
}
