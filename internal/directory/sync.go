package directory

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/MutualAidNYC/twilio-server/internal/roster"
	"github.com/MutualAidNYC/twilio-server/internal/taskrouter"
)

// RosterLister provides the desired worker set.
type RosterLister interface {
	ListVolunteers(ctx context.Context) ([]roster.Volunteer, error)
}

// Synchronizer reconciles the roster store against the routing platform's
// worker set. It runs on its own schedule and never interacts with live
// calls.
type Synchronizer struct {
	dir    *Directory
	tr     taskrouter.Client
	roster RosterLister

	// protectedPhone is the voicemail worker's normalized contact number.
	// That identity is never deleted, roster or no roster.
	protectedPhone string

	log *slog.Logger
}

func NewSynchronizer(dir *Directory, tr taskrouter.Client, lister RosterLister, voicemailPhone string, log *slog.Logger) *Synchronizer {
	if log == nil {
		log = slog.Default()
	}
	return &Synchronizer{
		dir:            dir,
		tr:             tr,
		roster:         lister,
		protectedPhone: NormalizePhone(voicemailPhone),
		log:            log,
	}
}

type SyncStats struct {
	Created int
	Updated int
	Deleted int
	Skipped int
}

// Sync diffs the roster against the directory and applies the difference:
// create missing workers, update drifted names or language sets, delete
// workers no longer on the roster. Running twice against an unchanged
// roster is a no-op the second time.
func (s *Synchronizer) Sync(ctx context.Context) (SyncStats, error) {
	var stats SyncStats

	volunteers, err := s.roster.ListVolunteers(ctx)
	if err != nil {
		return stats, fmt.Errorf("sync: roster fetch failed: %w", err)
	}

	desired := make(map[string]roster.Volunteer, len(volunteers))
	for _, v := range volunteers {
		phone := NormalizePhone(v.Phone)
		if _, ok := desired[phone]; ok {
			stats.Skipped++
			s.log.Warn("duplicate roster phone", "phone", phone, "name", v.Name)
			continue
		}
		desired[phone] = v
	}

	current := s.dir.Workers()

	for phone, v := range desired {
		w, exists := current[phone]
		if !exists {
			_, err := s.tr.CreateWorker(ctx, taskrouter.CreateWorkerParams{
				FriendlyName: v.Name,
				Attributes: taskrouter.WorkerAttributes{
					Languages:  v.Languages,
					ContactURI: phone,
				},
			})
			if err != nil {
				return stats, fmt.Errorf("sync: create %s failed: %w", phone, err)
			}
			stats.Created++
			continue
		}
		if w.FriendlyName != v.Name || !sameLanguages(w.Attributes.Languages, v.Languages) {
			_, err := s.tr.UpdateWorker(ctx, w.SID, taskrouter.UpdateWorkerParams{
				FriendlyName: v.Name,
				Attributes: taskrouter.WorkerAttributes{
					Languages:  v.Languages,
					ContactURI: phone,
				},
			})
			if err != nil {
				return stats, fmt.Errorf("sync: update %s failed: %w", phone, err)
			}
			stats.Updated++
		}
	}

	for phone, w := range current {
		if _, keep := desired[phone]; keep {
			continue
		}
		if phone == s.protectedPhone {
			continue
		}
		if err := s.tr.DeleteWorker(ctx, w.SID); err != nil {
			return stats, fmt.Errorf("sync: delete %s failed: %w", phone, err)
		}
		stats.Deleted++
	}

	if stats.Created+stats.Updated+stats.Deleted > 0 {
		if err := s.dir.Load(ctx); err != nil {
			return stats, err
		}
	}

	s.log.Info("worker sync complete",
		"created", stats.Created, "updated", stats.Updated, "deleted", stats.Deleted, "skipped", stats.Skipped)
	return stats, nil
}

// sameLanguages compares language sets order-independently. Inputs are
// copied before sorting; the provider-owned slices stay untouched.
func sameLanguages(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	ac := make([]string, len(a))
	bc := make([]string, len(b))
	copy(ac, a)
	copy(bc, b)
	sort.Strings(ac)
	sort.Strings(bc)
	for i := range ac {
		if ac[i] != bc[i] {
			return false
		}
	}
	return true
}
