package dispatch

import (
	"context"

	"github.com/MutualAidNYC/twilio-server/internal/directory"
	"github.com/MutualAidNYC/twilio-server/internal/taskrouter"
)

// HandleCallAssignment reacts to the platform offering a task. A human
// worker gets an outbound call with answering-machine detection enabled;
// the designated voicemail worker routes into the fallback flow.
func (s *Service) HandleCallAssignment(ctx context.Context, ev AssignmentEvent) error {
	workerPhone := directory.NormalizePhone(ev.WorkerAttributes.ContactURI)
	if workerPhone == directory.NormalizePhone(s.cfg.Twilio.VoicemailPhone) {
		return s.handleVoicemailAssignment(ctx, ev)
	}

	// Placement failures are logged and swallowed: the caller simply waits
	// out the reservation timeout and the platform re-offers the task.
	s.background("outbound worker call", func(ctx context.Context) error {
		_, err := s.tr.CreateCall(ctx, taskrouter.CreateCallParams{
			To:               workerPhone,
			From:             s.cfg.Twilio.CallerID,
			URL:              s.cfg.CallbackURL("/api/agent-connected"),
			StatusCallback:   s.cfg.CallbackURL("/api/worker-bridge-disconnect"),
			MachineDetection: true,
			Timeout:          ringTimeoutSeconds,
		})
		return err
	})
	return nil
}
