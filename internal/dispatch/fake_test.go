package dispatch

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/MutualAidNYC/twilio-server/internal/config"
	"github.com/MutualAidNYC/twilio-server/internal/directory"
	"github.com/MutualAidNYC/twilio-server/internal/taskrouter"
)

// Shared fixtures. Handlers push some mutations through tracked background
// goroutines, so the fake is locked throughout and tests call svc.Drain()
// before asserting on it.

const (
	testHost     = "https://dispatch.example.org"
	testCallerID = "+15550001111"
	testVMPhone  = "+19998887777"
	janePhone    = "+12223334444"
	janeSID      = "WK1"
	vmWorkerSID  = "WKVM"
	availableSID = "WA1"
	offlineSID   = "WA2"
	callerLegSID = "CAcaller"
	workerLegSID = "CAworker"
	testTaskSID  = "WT1"
	testResSID   = "WR1"
)

type resUpdate struct {
	taskSID string
	resSID  string
	status  taskrouter.ReservationStatus
}

type completion struct {
	taskSID string
	reason  string
}

type redirect struct {
	callSID string
	markup  string
}

type activityUpdate struct {
	workerSID   string
	activitySID string
}

type fakeTR struct {
	mu sync.Mutex

	activities  []taskrouter.Activity
	workers     []taskrouter.Worker
	pending     map[string][]taskrouter.Reservation // worker sid -> pending
	accepted    map[string][]taskrouter.Reservation // worker sid -> accepted
	tasks       map[string]taskrouter.Task
	tasksByCall map[string][]taskrouter.Task

	resUpdates      []resUpdate
	completions     []completion
	redirects       []redirect
	createdCalls    []taskrouter.CreateCallParams
	deletedTrans    []string
	activityUpdates []activityUpdate
	taskFetches     int
}

func newFakeTR() *fakeTR {
	return &fakeTR{
		activities: []taskrouter.Activity{
			{SID: availableSID, FriendlyName: taskrouter.ActivityAvailable},
			{SID: offlineSID, FriendlyName: taskrouter.ActivityOffline},
		},
		workers: []taskrouter.Worker{
			{
				SID:          janeSID,
				FriendlyName: "Jane Doe",
				Attributes:   taskrouter.WorkerAttributes{Languages: []string{"Spanish", "English"}, ContactURI: janePhone},
			},
			{
				SID:          vmWorkerSID,
				FriendlyName: "Voice Mail",
				Attributes:   taskrouter.WorkerAttributes{Languages: []string{"English"}, ContactURI: testVMPhone},
			},
		},
		pending:     map[string][]taskrouter.Reservation{},
		accepted:    map[string][]taskrouter.Reservation{},
		tasks:       map[string]taskrouter.Task{},
		tasksByCall: map[string][]taskrouter.Task{},
	}
}

func (f *fakeTR) ListActivities(ctx context.Context) ([]taskrouter.Activity, error) {
	return append([]taskrouter.Activity(nil), f.activities...), nil
}

func (f *fakeTR) ListWorkers(ctx context.Context) ([]taskrouter.Worker, error) {
	return append([]taskrouter.Worker(nil), f.workers...), nil
}

func (f *fakeTR) CreateWorker(ctx context.Context, p taskrouter.CreateWorkerParams) (taskrouter.Worker, error) {
	return taskrouter.Worker{}, fmt.Errorf("not supported in fixture")
}

func (f *fakeTR) UpdateWorker(ctx context.Context, workerSID string, p taskrouter.UpdateWorkerParams) (taskrouter.Worker, error) {
	return taskrouter.Worker{}, fmt.Errorf("not supported in fixture")
}

func (f *fakeTR) UpdateWorkerActivity(ctx context.Context, workerSID, activitySID string) (taskrouter.Worker, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.activityUpdates = append(f.activityUpdates, activityUpdate{workerSID: workerSID, activitySID: activitySID})
	return taskrouter.Worker{SID: workerSID, ActivitySID: activitySID}, nil
}

func (f *fakeTR) DeleteWorker(ctx context.Context, workerSID string) error {
	return fmt.Errorf("not supported in fixture")
}

func (f *fakeTR) ListReservations(ctx context.Context, workerSID string, status taskrouter.ReservationStatus) ([]taskrouter.Reservation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	switch status {
	case taskrouter.ReservationPending:
		return append([]taskrouter.Reservation(nil), f.pending[workerSID]...), nil
	case taskrouter.ReservationAccepted:
		return append([]taskrouter.Reservation(nil), f.accepted[workerSID]...), nil
	default:
		return nil, nil
	}
}

func (f *fakeTR) UpdateReservation(ctx context.Context, taskSID, reservationSID string, status taskrouter.ReservationStatus) (taskrouter.Reservation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.resUpdates = append(f.resUpdates, resUpdate{taskSID: taskSID, resSID: reservationSID, status: status})
	return taskrouter.Reservation{SID: reservationSID, TaskSID: taskSID, Status: status}, nil
}

func (f *fakeTR) GetTask(ctx context.Context, taskSID string) (taskrouter.Task, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.taskFetches++
	task, ok := f.tasks[taskSID]
	if !ok {
		return taskrouter.Task{}, fmt.Errorf("task %s not found", taskSID)
	}
	return task, nil
}

func (f *fakeTR) ListTasksByCallSID(ctx context.Context, callSID string) ([]taskrouter.Task, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]taskrouter.Task(nil), f.tasksByCall[callSID]...), nil
}

func (f *fakeTR) CompleteTask(ctx context.Context, taskSID, reason string) (taskrouter.Task, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.completions = append(f.completions, completion{taskSID: taskSID, reason: reason})
	return taskrouter.Task{SID: taskSID, AssignmentStatus: taskrouter.TaskCompleted, Reason: reason}, nil
}

func (f *fakeTR) CreateCall(ctx context.Context, p taskrouter.CreateCallParams) (taskrouter.Call, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.createdCalls = append(f.createdCalls, p)
	return taskrouter.Call{SID: "CAout", To: p.To, From: p.From, Status: taskrouter.CallQueued}, nil
}

func (f *fakeTR) RedirectCall(ctx context.Context, callSID, markup string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.redirects = append(f.redirects, redirect{callSID: callSID, markup: markup})
	return nil
}

func (f *fakeTR) DeleteCallRecordings(ctx context.Context, callSID string) error { return nil }

func (f *fakeTR) DeleteTranscription(ctx context.Context, transcriptionSID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deletedTrans = append(f.deletedTrans, transcriptionSID)
	return nil
}

var _ taskrouter.Client = (*fakeTR)(nil)

func (f *fakeTR) snapshotResUpdates() []resUpdate {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]resUpdate(nil), f.resUpdates...)
}

func (f *fakeTR) snapshotRedirects() []redirect {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]redirect(nil), f.redirects...)
}

func (f *fakeTR) snapshotCompletions() []completion {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]completion(nil), f.completions...)
}

func (f *fakeTR) snapshotCreatedCalls() []taskrouter.CreateCallParams {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]taskrouter.CreateCallParams(nil), f.createdCalls...)
}

func (f *fakeTR) snapshotDeletedTranscriptions() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.deletedTrans...)
}

func (f *fakeTR) fetches() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.taskFetches
}

type vmCall struct {
	callSID      string
	recordingURL string
	language     string
	phone        string
}

type fakeVoicemailStore struct {
	mu             sync.Mutex
	added          []vmCall
	transcriptions map[string]string
}

func newFakeVoicemailStore() *fakeVoicemailStore {
	return &fakeVoicemailStore{transcriptions: map[string]string{}}
}

func (f *fakeVoicemailStore) AddVoicemail(ctx context.Context, callSID, recordingURL, language, phone string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.added = append(f.added, vmCall{callSID: callSID, recordingURL: recordingURL, language: language, phone: phone})
	return "recVM", nil
}

func (f *fakeVoicemailStore) AttachTranscription(ctx context.Context, callSID, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.transcriptions[callSID] = text
	return nil
}

func testConfig(vmEnabled, transcribe bool) config.Config {
	return config.Config{
		App: config.AppConfig{Env: "local", Port: 8080, HostName: testHost},
		Twilio: config.TwilioConfig{
			AccountSID:     "AC1",
			AuthToken:      "token",
			WorkspaceSID:   "WS1",
			CallerID:       testCallerID,
			VoicemailPhone: testVMPhone,
		},
		Voicemail: config.VoicemailConfig{Enabled: vmEnabled, TranscribeEnglish: transcribe},
	}
}

func newTestService(t *testing.T, tr *fakeTR, cfg config.Config, vms VoicemailStore) *Service {
	t.Helper()
	dir := directory.New(tr, nil)
	if err := dir.Load(context.Background()); err != nil {
		t.Fatalf("directory load failed: %v", err)
	}
	return New(cfg, tr, dir, vms, nil)
}
