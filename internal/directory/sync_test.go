package directory

import (
	"context"
	"testing"

	"github.com/MutualAidNYC/twilio-server/internal/roster"
	"github.com/MutualAidNYC/twilio-server/internal/taskrouter"
)

type fakeRoster struct {
	volunteers []roster.Volunteer
}

func (f *fakeRoster) ListVolunteers(ctx context.Context) ([]roster.Volunteer, error) {
	return append([]roster.Volunteer(nil), f.volunteers...), nil
}

const vmPhone = "+19998887777"

func newSyncFixture(t *testing.T, tr *fakeTR, volunteers ...roster.Volunteer) (*Synchronizer, *Directory) {
	t.Helper()
	dir := New(tr, nil)
	if err := dir.Load(context.Background()); err != nil {
		t.Fatalf("directory load failed: %v", err)
	}
	return NewSynchronizer(dir, tr, &fakeRoster{volunteers: volunteers}, vmPhone, nil), dir
}

func TestSyncCreatesMissingWorker(t *testing.T) {
	tr := &fakeTR{}
	sync, dir := newSyncFixture(t, tr,
		roster.Volunteer{Name: "Jane Doe", Phone: "(222) 333-4444", Languages: []string{"Spanish"}},
	)

	stats, err := sync.Sync(context.Background())
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if stats.Created != 1 || stats.Updated != 0 || stats.Deleted != 0 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
	// The directory was refreshed with the new worker.
	if _, ok := dir.LookupByPhone("+12223334444"); !ok {
		t.Fatalf("created worker not visible in directory")
	}
}

func TestSyncUpdatesDriftedWorker(t *testing.T) {
	tr := &fakeTR{
		workers: []taskrouter.Worker{worker("WK1", "Jane Doe", "+12223334444", "English")},
	}
	sync, _ := newSyncFixture(t, tr,
		roster.Volunteer{Name: "Jane Q. Doe", Phone: "+12223334444", Languages: []string{"English"}},
	)

	stats, err := sync.Sync(context.Background())
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if stats.Updated != 1 || stats.Created != 0 || stats.Deleted != 0 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
	if len(tr.updated) != 1 || tr.updated[0] != "WK1" {
		t.Fatalf("unexpected updates: %v", tr.updated)
	}
}

func TestSyncLanguageOrderIsNotDrift(t *testing.T) {
	tr := &fakeTR{
		workers: []taskrouter.Worker{worker("WK1", "Jane Doe", "+12223334444", "English", "Spanish")},
	}
	sync, _ := newSyncFixture(t, tr,
		roster.Volunteer{Name: "Jane Doe", Phone: "+12223334444", Languages: []string{"Spanish", "English"}},
	)

	stats, err := sync.Sync(context.Background())
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if stats.Updated != 0 {
		t.Fatalf("reordered languages should not count as drift: %+v", stats)
	}
	// The comparison must not have reordered the worker's own slice.
	if got := tr.workers[0].Attributes.Languages; got[0] != "English" || got[1] != "Spanish" {
		t.Fatalf("worker language slice mutated: %v", got)
	}
}

func TestSyncDeletesOnlyAbsentWorkers(t *testing.T) {
	tr := &fakeTR{
		workers: []taskrouter.Worker{
			worker("WK1", "Jane Doe", "+12223334444", "English"),
			worker("WK2", "Bob Marley", "+15556667777", "English"),
		},
	}
	sync, dir := newSyncFixture(t, tr,
		roster.Volunteer{Name: "Jane Doe", Phone: "+12223334444", Languages: []string{"English"}},
	)

	stats, err := sync.Sync(context.Background())
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if stats.Deleted != 1 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
	if len(tr.deleted) != 1 || tr.deleted[0] != "WK2" {
		t.Fatalf("unexpected deletes: %v", tr.deleted)
	}
	if _, ok := dir.LookupByPhone("+12223334444"); !ok {
		t.Fatalf("surviving worker lost")
	}
}

func TestSyncNeverDeletesVoicemailWorker(t *testing.T) {
	tr := &fakeTR{
		workers: []taskrouter.Worker{worker("WKVM", "Voice Mail", vmPhone, "English")},
	}
	sync, _ := newSyncFixture(t, tr) // empty roster

	stats, err := sync.Sync(context.Background())
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if stats.Deleted != 0 || len(tr.deleted) != 0 {
		t.Fatalf("voicemail worker was deleted: %+v %v", stats, tr.deleted)
	}
}

func TestSyncSkipsDuplicateRosterPhones(t *testing.T) {
	tr := &fakeTR{}
	sync, _ := newSyncFixture(t, tr,
		roster.Volunteer{Name: "Jane Doe", Phone: "+12223334444", Languages: []string{"English"}},
		roster.Volunteer{Name: "Jane Dupe", Phone: "(222) 333-4444", Languages: []string{"English"}},
	)

	stats, err := sync.Sync(context.Background())
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if stats.Created != 1 || stats.Skipped != 1 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
}

func TestSyncStableForMalformedRosterPhone(t *testing.T) {
	// An eleven-digit roster phone without a leading country code must
	// settle after one create: the key the synchronizer writes has to be
	// the key the directory reads back, or every run churns a
	// create-and-delete pair for the same volunteer.
	tr := &fakeTR{}
	sync, _ := newSyncFixture(t, tr,
		roster.Volunteer{Name: "Odd Number", Phone: "22345678901", Languages: []string{"English"}},
	)

	first, err := sync.Sync(context.Background())
	if err != nil {
		t.Fatalf("first sync failed: %v", err)
	}
	if first.Created != 1 {
		t.Fatalf("unexpected first-run stats: %+v", first)
	}

	second, err := sync.Sync(context.Background())
	if err != nil {
		t.Fatalf("second sync failed: %v", err)
	}
	if second.Created+second.Updated+second.Deleted != 0 {
		t.Fatalf("second run not a no-op: %+v (deleted %v)", second, tr.deleted)
	}
}

func TestSyncIsIdempotent(t *testing.T) {
	tr := &fakeTR{
		workers: []taskrouter.Worker{
			worker("WK1", "Old Name", "+12223334444", "English"),
			worker("WK2", "Bob Marley", "+15556667777", "English"),
			worker("WKVM", "Voice Mail", vmPhone, "English"),
		},
	}
	sync, _ := newSyncFixture(t, tr,
		roster.Volunteer{Name: "Jane Doe", Phone: "+12223334444", Languages: []string{"English", "Spanish"}},
		roster.Volunteer{Name: "Carla Cruz", Phone: "+14445556666", Languages: []string{"Spanish"}},
	)

	first, err := sync.Sync(context.Background())
	if err != nil {
		t.Fatalf("first sync failed: %v", err)
	}
	if first.Created != 1 || first.Updated != 1 || first.Deleted != 1 {
		t.Fatalf("unexpected first-run stats: %+v", first)
	}

	second, err := sync.Sync(context.Background())
	if err != nil {
		t.Fatalf("second sync failed: %v", err)
	}
	if second.Created+second.Updated+second.Deleted != 0 {
		t.Fatalf("second run should be a no-op: %+v", second)
	}
}
