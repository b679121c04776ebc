package dispatch

import (
	"context"
	"fmt"
	"strings"

	"github.com/MutualAidNYC/twilio-server/internal/directory"
	"github.com/MutualAidNYC/twilio-server/internal/taskrouter"
	"github.com/MutualAidNYC/twilio-server/internal/twiml"
)

// handleVoicemailAssignment runs when no human worker was assignable and
// the platform handed the task to the voicemail worker. The reservation is
// accepted unconditionally before any branching; whether the caller gets a
// recording prompt or an apology depends only on configuration and the
// task's language.
func (s *Service) handleVoicemailAssignment(ctx context.Context, ev AssignmentEvent) error {
	if _, err := s.tr.UpdateReservation(ctx, ev.TaskSID, ev.ReservationSID, taskrouter.ReservationAccepted); err != nil {
		return fmt.Errorf("dispatch: voicemail reservation accept failed: %w", err)
	}

	callerLeg := ev.TaskAttributes.CallSID

	if !s.cfg.Voicemail.Enabled {
		// The only branch that terminates the task here; the recording
		// branches leave completion to the recording-ended event.
		if _, err := s.tr.CompleteTask(ctx, ev.TaskSID, reasonQueueTimeout); err != nil {
			return fmt.Errorf("dispatch: task completion failed: %w", err)
		}
		markup, err := twiml.New().Say(msgClosedApology).Hangup().Render()
		if err != nil {
			return err
		}
		s.background("caller apology", func(ctx context.Context) error {
			return s.tr.RedirectCall(ctx, callerLeg, markup)
		})
		return nil
	}

	rec := twiml.Record{
		Action:    s.cfg.CallbackURL("/api/vm-recording-ended"),
		MaxLength: recordMaxSeconds,
		PlayBeep:  true,
	}
	if s.cfg.Voicemail.TranscribeEnglish && strings.EqualFold(ev.TaskAttributes.SelectedLanguage, "english") {
		rec.Transcribe = true
		rec.TranscribeCallback = s.cfg.CallbackURL("/api/new-transcription")
	}
	markup, err := twiml.New().Say(msgVoicemailPrompt).Record(rec).Render()
	if err != nil {
		return err
	}

	// This handler runs off an assignment callback, not the caller's own
	// webhook, so the prompt has to be pushed onto the live caller leg.
	s.background("caller voicemail prompt", func(ctx context.Context) error {
		return s.tr.RedirectCall(ctx, callerLeg, markup)
	})
	return nil
}

// HandleVmRecordingEnded persists the finished voicemail and completes the
// task it belongs to. If the caller is still on the line they get a
// goodbye; otherwise an empty acknowledgment.
func (s *Service) HandleVmRecordingEnded(ctx context.Context, ev RecordingEvent) (string, error) {
	tasks, err := s.tr.ListTasksByCallSID(ctx, ev.CallSID)
	if err != nil {
		return "", fmt.Errorf("dispatch: task lookup failed: %w", err)
	}
	if len(tasks) == 0 {
		s.log.Warn("recording ended for unknown call", "call_sid", ev.CallSID)
		return twiml.New().Render()
	}
	task := tasks[0]

	callerNumber := directory.StripCountryCode(directory.NormalizePhone(ev.From))
	if _, err := s.vms.AddVoicemail(ctx, ev.CallSID, ev.RecordingURL, task.Attributes.SelectedLanguage, callerNumber); err != nil {
		return "", fmt.Errorf("dispatch: voicemail persist failed: %w", err)
	}

	if _, err := s.tr.CompleteTask(ctx, task.SID, reasonVoicemail); err != nil {
		return "", fmt.Errorf("dispatch: task completion failed: %w", err)
	}

	if ev.CallStatus == taskrouter.CallInProgress {
		return twiml.New().Say(msgGoodbye).Hangup().Render()
	}
	return twiml.New().Render()
}

// HandleNewTranscription stores the transcription text and then deletes
// the provider-side transcription resource, which is redundant once the
// text is in the store.
func (s *Service) HandleNewTranscription(ctx context.Context, ev TranscriptionEvent) error {
	if err := s.vms.AttachTranscription(ctx, ev.CallSID, ev.TranscriptionText); err != nil {
		return fmt.Errorf("dispatch: transcription persist failed: %w", err)
	}
	s.background("transcription cleanup", func(ctx context.Context) error {
		return s.tr.DeleteTranscription(ctx, ev.TranscriptionSID)
	})
	return nil
}
