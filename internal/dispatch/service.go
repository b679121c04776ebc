// Package dispatch holds the reservation lifecycle and call-bridging
// orchestrator: for each assignment or call event it decides whether to
// bridge a caller to a worker, fall back to voicemail, or abandon the
// attempt.
//
// The routing platform's reservation/task/call state is the only shared
// mutable resource and is treated as externally atomic: handlers perform
// read-then-act sequences without local locking. Reservation state is
// always fetched live, never cached.
package dispatch

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/MutualAidNYC/twilio-server/internal/config"
	"github.com/MutualAidNYC/twilio-server/internal/directory"
	"github.com/MutualAidNYC/twilio-server/internal/taskrouter"
)

// Task completion reasons reported to the platform.
const (
	reasonQueueTimeout = "queue timed out"
	reasonVoicemail    = "voicemail recorded"
	reasonHangup       = "call ended after hang-up"
)

// Spoken prompts.
const (
	msgApology         = "We are sorry, the caller is no longer on the line. Goodbye."
	msgGatherPrompt    = "You have a caller waiting. Press any key to accept the call."
	msgVoicemailPrompt = "No one is available to take your call right now. Please leave a message after the beep."
	msgClosedApology   = "We are sorry, no one is available to take your call. Please try again later. Goodbye."
	msgGoodbye         = "We have received your message. Someone will get back to you soon. Goodbye."
)

const (
	gatherTimeoutSeconds = 10
	ringTimeoutSeconds   = 30
	recordMaxSeconds     = 120
	pauseSeconds         = 5

	backgroundTimeout = 30 * time.Second
)

// VoicemailStore persists voicemail references and transcriptions.
type VoicemailStore interface {
	AddVoicemail(ctx context.Context, callSID, recordingURL, language, phone string) (string, error)
	AttachTranscription(ctx context.Context, callSID, text string) error
}

// Service is the long-lived orchestrator, constructed once at process
// start and shared by every webhook handler.
type Service struct {
	cfg config.Config
	tr  taskrouter.Client
	dir *directory.Directory
	vms VoicemailStore
	log *slog.Logger

	wg sync.WaitGroup
}

func New(cfg config.Config, tr taskrouter.Client, dir *directory.Directory, vms VoicemailStore, log *slog.Logger) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{
		cfg: cfg,
		tr:  tr,
		dir: dir,
		vms: vms,
		log: log,
	}
}

// background runs a mutation whose failure must not change the response
// already being written: the unit is tracked, given its own deadline, and
// failures are logged rather than propagated.
func (s *Service) background(op string, fn func(ctx context.Context) error) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), backgroundTimeout)
		defer cancel()
		if err := fn(ctx); err != nil {
			s.log.Error("background operation failed", "op", op, "err", err)
		}
	}()
}

// Drain blocks until all tracked background mutations have finished.
// Called on shutdown after the HTTP server stops accepting requests.
func (s *Service) Drain() {
	s.wg.Wait()
}

// pickPendingReservation chooses among a worker's pending reservations.
// The platform documents no ordering for its listing, so the earliest
// created reservation wins; equal timestamps fall back to input order.
func pickPendingReservation(list []taskrouter.Reservation) (taskrouter.Reservation, bool) {
	if len(list) == 0 {
		return taskrouter.Reservation{}, false
	}
	best := list[0]
	for _, r := range list[1:] {
		if r.DateCreated.Before(best.DateCreated) {
			best = r
		}
	}
	return best, true
}
