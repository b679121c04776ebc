package dispatch

import (
	"context"
	"fmt"

	"github.com/MutualAidNYC/twilio-server/internal/taskrouter"
)

// HandleWorkerDisconnect reconciles a hang-up notification: among the
// worker's accepted reservations, the most recently updated one is the
// call that just ended, and its task is marked complete. Ties keep the
// first in input order. Double-disconnect notifications are expected, so
// finding nothing accepted is not an error.
func (s *Service) HandleWorkerDisconnect(ctx context.Context, ev DisconnectEvent) error {
	worker, ok := s.dir.LookupByPhone(ev.Called)
	if !ok {
		s.log.Warn("disconnect for unknown number", "called", ev.Called)
		return nil
	}

	accepted, err := s.tr.ListReservations(ctx, worker.SID, taskrouter.ReservationAccepted)
	if err != nil {
		return fmt.Errorf("dispatch: reservation lookup failed: %w", err)
	}
	if len(accepted) == 0 {
		s.log.Debug("disconnect with no accepted reservation", "worker", worker.SID)
		return nil
	}

	best := accepted[0]
	for _, r := range accepted[1:] {
		if r.DateUpdated.After(best.DateUpdated) {
			best = r
		}
	}

	if _, err := s.tr.CompleteTask(ctx, best.TaskSID, reasonHangup); err != nil {
		return fmt.Errorf("dispatch: task completion failed: %w", err)
	}
	return nil
}
