package dispatch

import (
	"context"
	"fmt"
	"strings"

	"github.com/MutualAidNYC/twilio-server/internal/taskrouter"
	"github.com/MutualAidNYC/twilio-server/internal/twiml"
)

// HandleIncomingSms lets workers sign in and out by text message.
func (s *Service) HandleIncomingSms(ctx context.Context, ev SmsEvent) (string, error) {
	worker, ok := s.dir.LookupByPhone(ev.From)
	if !ok {
		return twiml.New().Message("This number is not registered. Contact your coordinator to be added.").Render()
	}

	var activityName, reply string
	switch strings.ToLower(strings.TrimSpace(ev.Body)) {
	case "on":
		activityName = taskrouter.ActivityAvailable
		reply = fmt.Sprintf("%s, You are signed in", worker.FriendlyName)
	case "off":
		activityName = taskrouter.ActivityOffline
		reply = fmt.Sprintf("%s, You are signed out", worker.FriendlyName)
	default:
		return twiml.New().Message("Reply On to sign in or Off to sign out.").Render()
	}

	activitySID, ok := s.dir.ActivitySID(activityName)
	if !ok {
		return "", fmt.Errorf("dispatch: activity %q not found", activityName)
	}
	if _, err := s.tr.UpdateWorkerActivity(ctx, worker.SID, activitySID); err != nil {
		return "", fmt.Errorf("dispatch: activity update failed: %w", err)
	}
	return twiml.New().Message(reply).Render()
}
