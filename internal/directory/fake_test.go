package directory

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/MutualAidNYC/twilio-server/internal/taskrouter"
)

// fakeTR is a stateful in-memory routing platform: creates, updates and
// deletes are applied to its worker list so a reload observes them.
type fakeTR struct {
	mu         sync.Mutex
	activities []taskrouter.Activity
	workers    []taskrouter.Worker
	nextSID    int

	listErr error

	created []string
	updated []string
	deleted []string
}

func (f *fakeTR) ListActivities(ctx context.Context) ([]taskrouter.Activity, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]taskrouter.Activity(nil), f.activities...), nil
}

func (f *fakeTR) ListWorkers(ctx context.Context) ([]taskrouter.Worker, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listErr != nil {
		return nil, f.listErr
	}
	return append([]taskrouter.Worker(nil), f.workers...), nil
}

func (f *fakeTR) CreateWorker(ctx context.Context, p taskrouter.CreateWorkerParams) (taskrouter.Worker, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextSID++
	w := taskrouter.Worker{
		SID:          fmt.Sprintf("WKnew%d", f.nextSID),
		FriendlyName: p.FriendlyName,
		Attributes:   p.Attributes,
	}
	f.workers = append(f.workers, w)
	f.created = append(f.created, w.FriendlyName)
	return w, nil
}

func (f *fakeTR) UpdateWorker(ctx context.Context, workerSID string, p taskrouter.UpdateWorkerParams) (taskrouter.Worker, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, w := range f.workers {
		if w.SID == workerSID {
			f.workers[i].FriendlyName = p.FriendlyName
			f.workers[i].Attributes = p.Attributes
			f.updated = append(f.updated, workerSID)
			return f.workers[i], nil
		}
	}
	return taskrouter.Worker{}, errors.New("worker not found")
}

func (f *fakeTR) UpdateWorkerActivity(ctx context.Context, workerSID, activitySID string) (taskrouter.Worker, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, w := range f.workers {
		if w.SID == workerSID {
			f.workers[i].ActivitySID = activitySID
			return f.workers[i], nil
		}
	}
	return taskrouter.Worker{}, errors.New("worker not found")
}

func (f *fakeTR) DeleteWorker(ctx context.Context, workerSID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, w := range f.workers {
		if w.SID == workerSID {
			f.workers = append(f.workers[:i], f.workers[i+1:]...)
			f.deleted = append(f.deleted, workerSID)
			return nil
		}
	}
	return errors.New("worker not found")
}

func (f *fakeTR) ListReservations(ctx context.Context, workerSID string, status taskrouter.ReservationStatus) ([]taskrouter.Reservation, error) {
	return nil, nil
}

func (f *fakeTR) UpdateReservation(ctx context.Context, taskSID, reservationSID string, status taskrouter.ReservationStatus) (taskrouter.Reservation, error) {
	return taskrouter.Reservation{}, nil
}

func (f *fakeTR) GetTask(ctx context.Context, taskSID string) (taskrouter.Task, error) {
	return taskrouter.Task{}, nil
}

func (f *fakeTR) ListTasksByCallSID(ctx context.Context, callSID string) ([]taskrouter.Task, error) {
	return nil, nil
}

func (f *fakeTR) CompleteTask(ctx context.Context, taskSID, reason string) (taskrouter.Task, error) {
	return taskrouter.Task{}, nil
}

func (f *fakeTR) CreateCall(ctx context.Context, p taskrouter.CreateCallParams) (taskrouter.Call, error) {
	return taskrouter.Call{}, nil
}

func (f *fakeTR) RedirectCall(ctx context.Context, callSID, markup string) error { return nil }

func (f *fakeTR) DeleteCallRecordings(ctx context.Context, callSID string) error { return nil }

func (f *fakeTR) DeleteTranscription(ctx context.Context, transcriptionSID string) error { return nil }

var _ taskrouter.Client = (*fakeTR)(nil)

func worker(sid, name, phone string, languages ...string) taskrouter.Worker {
	return taskrouter.Worker{
		SID:          sid,
		FriendlyName: name,
		Attributes: taskrouter.WorkerAttributes{
			Languages:  languages,
			ContactURI: phone,
		},
	}
}
