package dispatch

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/MutualAidNYC/twilio-server/internal/taskrouter"
	"github.com/MutualAidNYC/twilio-server/internal/twiml"
)

// HandleAgentConnected decides what to do with a worker who just answered:
// bridge, reject, or confirm with a key press, depending on the
// answering-machine verdict. Returns the markup for the worker leg.
func (s *Service) HandleAgentConnected(ctx context.Context, ev AgentConnectedEvent) (string, error) {
	worker, ok := s.dir.LookupByPhone(ev.Called)
	if !ok {
		// Stale directory or a number we never knew. Not fatal; answer
		// politely and hang up.
		s.log.Warn("no worker for dialed number", "called", ev.Called)
		return apologyHangup()
	}

	pending, err := s.tr.ListReservations(ctx, worker.SID, taskrouter.ReservationPending)
	if err != nil {
		return "", fmt.Errorf("dispatch: reservation lookup failed: %w", err)
	}
	res, ok := pickPendingReservation(pending)
	if !ok {
		// The caller hung up before the worker picked up. Nothing to mutate.
		return apologyHangup()
	}

	switch {
	case ev.AnsweredBy.Human():
		return s.acceptAndBridge(ctx, res, ev.CallSID)

	case ev.AnsweredBy.Machine():
		// An answering machine or fax picked up. Reject so the platform
		// re-offers the task; the hangup response must not wait on it.
		s.background("reservation reject", func(ctx context.Context) error {
			_, err := s.tr.UpdateReservation(ctx, res.TaskSID, res.SID, taskrouter.ReservationRejected)
			return err
		})
		return twiml.New().Hangup().Render()

	default:
		// Unknown verdict, or detection disabled: let the worker confirm
		// with a key press. An empty gather still posts back, landing on
		// the rejection path in HandleAgentGather.
		g := twiml.Gather{
			Action:              s.cfg.CallbackURL("/api/agent-gather"),
			Method:              http.MethodPost,
			NumDigits:           1,
			Timeout:             gatherTimeoutSeconds,
			ActionOnEmptyResult: true,
			Verbs:               []any{twiml.Say{Text: msgGatherPrompt}},
		}
		return twiml.New().Gather(g).Render()
	}
}

// HandleAgentGather resolves the key-press confirmation: no digits means
// the worker never engaged, so the reservation is rejected; any digit
// accepts it.
func (s *Service) HandleAgentGather(ctx context.Context, ev AgentGatherEvent) (string, error) {
	worker, ok := s.dir.LookupByPhone(ev.Called)
	if !ok {
		s.log.Warn("no worker for dialed number", "called", ev.Called)
		return apologyHangup()
	}

	pending, err := s.tr.ListReservations(ctx, worker.SID, taskrouter.ReservationPending)
	if err != nil {
		return "", fmt.Errorf("dispatch: reservation lookup failed: %w", err)
	}
	res, ok := pickPendingReservation(pending)
	if !ok {
		return apologyHangup()
	}

	if strings.TrimSpace(ev.Digits) == "" {
		s.background("reservation reject", func(ctx context.Context) error {
			_, err := s.tr.UpdateReservation(ctx, res.TaskSID, res.SID, taskrouter.ReservationRejected)
			return err
		})
		return twiml.New().Hangup().Render()
	}

	return s.acceptAndBridge(ctx, res, ev.CallSID)
}

func apologyHangup() (string, error) {
	return twiml.New().Say(msgApology).Hangup().Render()
}
