package roster

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"
)

// Table and view names in the roster bases.
const (
	volunteersTable = "Volunteers"
	voicemailTable  = "Voice Mails"
	hoursTable      = "General Hours"
	gridView        = "Grid view"
)

// api is the subset of Client the store uses; narrowed for tests.
type api interface {
	ListRecords(ctx context.Context, baseID, table string, q ListQuery) ([]Record, error)
	CreateRecord(ctx context.Context, baseID, table string, fields map[string]any) (Record, error)
	UpdateRecord(ctx context.Context, baseID, table, recordID string, fields map[string]any) (Record, error)
}

// RecordingDeleter removes provider-side recordings once the store has its
// own copy of the audio.
type RecordingDeleter interface {
	DeleteCallRecordings(ctx context.Context, callSID string) error
}

// Volunteer is one roster row: the source of truth for who should exist as
// a worker.
type Volunteer struct {
	RecordID  string
	Name      string
	Phone     string
	Languages []string
}

type Store struct {
	client    api
	phoneBase string
	vmBase    string
	log       *slog.Logger

	// stopPurge is a cooperative flag: a purge pass already in flight when
	// the flag is set runs to completion before the loop exits.
	stopPurge atomic.Bool

	sleep func(ctx context.Context, d time.Duration) error
}

func NewStore(client *Client, phoneBase, vmBase string, log *slog.Logger) *Store {
	return newStore(client, phoneBase, vmBase, log)
}

func newStore(client api, phoneBase, vmBase string, log *slog.Logger) *Store {
	if log == nil {
		log = slog.Default()
	}
	return &Store{
		client:    client,
		phoneBase: phoneBase,
		vmBase:    vmBase,
		log:       log,
		sleep:     sleepCtx,
	}
}

// ListVolunteers fetches the full roster, skipping rows missing any of
// name, phone or languages.
func (s *Store) ListVolunteers(ctx context.Context) ([]Volunteer, error) {
	records, err := s.client.ListRecords(ctx, s.phoneBase, volunteersTable, ListQuery{View: gridView})
	if err != nil {
		return nil, err
	}
	var out []Volunteer
	for _, rec := range records {
		name, _ := rec.Fields["Name"].(string)
		phone, _ := rec.Fields["Phone"].(string)
		languages := stringSlice(rec.Fields["Languages"])
		if name == "" || phone == "" || len(languages) == 0 {
			continue
		}
		out = append(out, Volunteer{RecordID: rec.ID, Name: name, Phone: phone, Languages: languages})
	}
	return out, nil
}

// AddVoicemail records a voicemail reference against the caller.
func (s *Store) AddVoicemail(ctx context.Context, callSID, recordingURL, language, phone string) (string, error) {
	fields := map[string]any{
		"Call ID":      callSID,
		"Voice Mail":   []map[string]any{{"url": recordingURL}},
		"Language":     language,
		"Phone Number": phone,
	}
	rec, err := s.client.CreateRecord(ctx, s.vmBase, voicemailTable, fields)
	if err != nil {
		return "", err
	}
	return rec.ID, nil
}

// AttachTranscription stores transcription text on the voicemail row
// matching the caller's call id.
func (s *Store) AttachTranscription(ctx context.Context, callSID, text string) error {
	formula := fmt.Sprintf("{Call ID} = %q", callSID)
	records, err := s.client.ListRecords(ctx, s.vmBase, voicemailTable, ListQuery{View: gridView, FilterByFormula: formula})
	if err != nil {
		return err
	}
	if len(records) == 0 {
		return fmt.Errorf("roster: no voicemail record for call %s", callSID)
	}
	_, err = s.client.UpdateRecord(ctx, s.vmBase, voicemailTable, records[0].ID, map[string]any{
		"Transcription": text,
	})
	return err
}

// ListSchedule returns the hours-of-operation rows with bookkeeping
// columns dropped.
func (s *Store) ListSchedule(ctx context.Context) ([]map[string]any, error) {
	records, err := s.client.ListRecords(ctx, s.phoneBase, hoursTable, ListQuery{})
	if err != nil {
		return nil, err
	}
	out := make([]map[string]any, 0, len(records))
	for _, rec := range records {
		row := make(map[string]any, len(rec.Fields))
		for k, v := range rec.Fields {
			if k == "Created Time" || k == "Last Modified" {
				continue
			}
			row[k] = v
		}
		out = append(out, row)
	}
	return out, nil
}

// RunVoicemailPurge polls for voicemail rows whose audio has been mirrored
// away from the provider, deletes the provider recording, and marks the row
// processed. Runs until StopVoicemailPurge is called or ctx is canceled.
func (s *Store) RunVoicemailPurge(ctx context.Context, deleter RecordingDeleter, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	for !s.stopPurge.Load() {
		s.purgeMirroredVoicemails(ctx, deleter)
		if err := s.sleep(ctx, interval); err != nil {
			return
		}
	}
}

func (s *Store) StopVoicemailPurge() {
	s.stopPurge.Store(true)
}

func (s *Store) purgeMirroredVoicemails(ctx context.Context, deleter RecordingDeleter) {
	records, err := s.client.ListRecords(ctx, s.vmBase, voicemailTable, ListQuery{
		View:            gridView,
		FilterByFormula: "Processed = FALSE()",
	})
	if err != nil {
		s.log.Error("voicemail purge listing failed", "err", err)
		return
	}
	for _, rec := range records {
		attachments, _ := rec.Fields["Voice Mail"].([]any)
		if len(attachments) == 0 {
			continue
		}
		attachment, _ := attachments[0].(map[string]any)
		recURL, _ := attachment["url"].(string)
		if strings.Contains(recURL, "twilio") {
			// Audio still lives at the provider; not mirrored yet.
			continue
		}
		callSID, _ := rec.Fields["Call ID"].(string)
		if callSID == "" {
			continue
		}
		if err := deleter.DeleteCallRecordings(ctx, callSID); err != nil {
			s.log.Error("recording delete failed", "call_sid", callSID, "err", err)
			continue
		}
		if _, err := s.client.UpdateRecord(ctx, s.vmBase, voicemailTable, rec.ID, map[string]any{"Processed": true}); err != nil {
			s.log.Error("voicemail row update failed", "record_id", rec.ID, "err", err)
		}
	}
}

func stringSlice(v any) []string {
	switch vv := v.(type) {
	case []string:
		out := make([]string, len(vv))
		copy(out, vv)
		return out
	case []any:
		var out []string
		for _, item := range vv {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}
