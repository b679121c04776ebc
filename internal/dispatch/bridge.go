package dispatch

import (
	"context"
	"fmt"

	"github.com/MutualAidNYC/twilio-server/internal/taskrouter"
	"github.com/MutualAidNYC/twilio-server/internal/twiml"
)

// acceptAndBridge marks the reservation accepted and joins both legs into
// a conference named after the task. The name doubles as the isolation
// key: even if both legs' webhooks arrive concurrently they land in the
// same room, and no other task can collide with it.
//
// The join markup is pushed onto both legs out of band. The worker's own
// webhook response cannot carry it, because the caller leg needs the same
// instructions and only a live-leg update can reach it; the synchronous
// response is a short pause that holds the worker leg open while the
// pushes land.
func (s *Service) acceptAndBridge(ctx context.Context, res taskrouter.Reservation, workerCallSID string) (string, error) {
	// The accept is awaited: bridging a reservation the platform did not
	// accept would double-offer the caller.
	if _, err := s.tr.UpdateReservation(ctx, res.TaskSID, res.SID, taskrouter.ReservationAccepted); err != nil {
		return "", fmt.Errorf("dispatch: reservation accept failed: %w", err)
	}

	task, err := s.tr.GetTask(ctx, res.TaskSID)
	if err != nil {
		return "", fmt.Errorf("dispatch: task fetch failed: %w", err)
	}

	join, err := twiml.New().DialConference(twiml.Conference{
		Name:                task.SID,
		EndConferenceOnExit: true,
		StatusCallback:      s.cfg.CallbackURL("/api/worker-bridge-disconnect"),
		StatusCallbackEvent: "end",
	}).Render()
	if err != nil {
		return "", err
	}

	callerLeg := task.Attributes.CallSID
	s.background("caller leg bridge", func(ctx context.Context) error {
		return s.tr.RedirectCall(ctx, callerLeg, join)
	})
	s.background("worker leg bridge", func(ctx context.Context) error {
		return s.tr.RedirectCall(ctx, workerCallSID, join)
	})

	return twiml.New().Pause(pauseSeconds).Render()
}
