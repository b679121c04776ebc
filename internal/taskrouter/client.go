package taskrouter

import "context"

// Client is the provider-agnostic contract used by business logic.
//
// Rules:
//   - No provider REST calls outside this package.
//   - Reservation and task state is never cached; it is re-fetched live
//     on every decision.
type Client interface {
	ListActivities(ctx context.Context) ([]Activity, error)

	ListWorkers(ctx context.Context) ([]Worker, error)
	CreateWorker(ctx context.Context, p CreateWorkerParams) (Worker, error)
	UpdateWorker(ctx context.Context, workerSID string, p UpdateWorkerParams) (Worker, error)
	UpdateWorkerActivity(ctx context.Context, workerSID, activitySID string) (Worker, error)
	DeleteWorker(ctx context.Context, workerSID string) error

	// ListReservations returns a worker's reservations filtered by status.
	ListReservations(ctx context.Context, workerSID string, status ReservationStatus) ([]Reservation, error)
	UpdateReservation(ctx context.Context, taskSID, reservationSID string, status ReservationStatus) (Reservation, error)

	GetTask(ctx context.Context, taskSID string) (Task, error)
	// ListTasksByCallSID finds tasks whose caller-leg call id matches.
	ListTasksByCallSID(ctx context.Context, callSID string) ([]Task, error)
	CompleteTask(ctx context.Context, taskSID, reason string) (Task, error)

	CreateCall(ctx context.Context, p CreateCallParams) (Call, error)
	// RedirectCall pushes new call-control markup onto a live leg.
	RedirectCall(ctx context.Context, callSID, markup string) error

	DeleteCallRecordings(ctx context.Context, callSID string) error
	DeleteTranscription(ctx context.Context, transcriptionSID string) error
}
