// Package directory maintains the in-process mapping of phone numbers to
// workers, loaded from the routing platform at startup and refreshed only
// by explicit synchronizer runs. Between refreshes it may serve stale
// language or activity data; reservation state is never cached here.
package directory

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/MutualAidNYC/twilio-server/internal/taskrouter"
)

type Directory struct {
	tr  taskrouter.Client
	log *slog.Logger

	mu         sync.RWMutex
	activities map[string]string // friendly name -> activity sid
	byPhone    map[string]taskrouter.Worker
	bySID      map[string]taskrouter.Worker
}

func New(tr taskrouter.Client, log *slog.Logger) *Directory {
	if log == nil {
		log = slog.Default()
	}
	return &Directory{
		tr:         tr,
		log:        log,
		activities: map[string]string{},
		byPhone:    map[string]taskrouter.Worker{},
		bySID:      map[string]taskrouter.Worker{},
	}
}

// Load fetches all activities and workers and rebuilds the indexes.
// Malformed worker attributes surface as an error from the client: bad
// capability data is a defect, not a recoverable condition.
func (d *Directory) Load(ctx context.Context) error {
	activities, err := d.tr.ListActivities(ctx)
	if err != nil {
		return fmt.Errorf("directory: activities fetch failed: %w", err)
	}
	workers, err := d.tr.ListWorkers(ctx)
	if err != nil {
		return fmt.Errorf("directory: workers fetch failed: %w", err)
	}

	acts := make(map[string]string, len(activities))
	for _, a := range activities {
		acts[a.FriendlyName] = a.SID
	}

	byPhone := make(map[string]taskrouter.Worker, len(workers))
	bySID := make(map[string]taskrouter.Worker, len(workers))
	for _, w := range workers {
		phone := NormalizePhone(w.Attributes.ContactURI)
		if prev, ok := byPhone[phone]; ok {
			d.log.Warn("duplicate worker contact number", "phone", phone, "kept", prev.SID, "ignored", w.SID)
			continue
		}
		byPhone[phone] = w
		bySID[w.SID] = w
	}

	d.mu.Lock()
	d.activities = acts
	d.byPhone = byPhone
	d.bySID = bySID
	d.mu.Unlock()

	d.log.Info("worker directory loaded", "workers", len(byPhone), "activities", len(acts))
	return nil
}

// LookupByPhone resolves a worker by dialed number (normalized first).
func (d *Directory) LookupByPhone(phone string) (taskrouter.Worker, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	w, ok := d.byPhone[NormalizePhone(phone)]
	return w, ok
}

func (d *Directory) LookupBySID(sid string) (taskrouter.Worker, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	w, ok := d.bySID[sid]
	return w, ok
}

// ActivitySID resolves a friendly activity name to its platform identifier.
func (d *Directory) ActivitySID(name string) (string, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	sid, ok := d.activities[name]
	return sid, ok
}

// Workers returns a snapshot of the current worker set keyed by normalized
// phone number.
func (d *Directory) Workers() map[string]taskrouter.Worker {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make(map[string]taskrouter.Worker, len(d.byPhone))
	for phone, w := range d.byPhone {
		out[phone] = w
	}
	return out
}
