package taskrouter

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// RESTClient talks to the Twilio REST and TaskRouter APIs directly.
// It intentionally avoids the provider SDK; only the handful of endpoints
// this server uses are implemented.

const (
	defaultAPIBase        = "https://api.twilio.com/2010-04-01"
	defaultTaskRouterBase = "https://taskrouter.twilio.com/v1"

	// maxPageSize is the provider's upper bound for list requests.
	maxPageSize = 1000
)

type ClientOptions struct {
	AccountSID   string
	AuthToken    string
	WorkspaceSID string

	// HTTPClient defaults to a client with a conservative timeout.
	HTTPClient *http.Client

	// APIBase and TaskRouterBase are overridable for tests.
	APIBase        string
	TaskRouterBase string

	PageSize int
}

type RESTClient struct {
	http *http.Client

	accountSID   string
	authToken    string
	workspaceSID string

	apiBase  string
	trBase   string
	pageSize int
}

var _ Client = (*RESTClient)(nil)

func NewRESTClient(opts ClientOptions) (*RESTClient, error) {
	if opts.AccountSID == "" || opts.AuthToken == "" || opts.WorkspaceSID == "" {
		return nil, errors.New("taskrouter: account sid, auth token and workspace sid are required")
	}
	c := &RESTClient{
		http:         opts.HTTPClient,
		accountSID:   opts.AccountSID,
		authToken:    opts.AuthToken,
		workspaceSID: opts.WorkspaceSID,
		apiBase:      strings.TrimRight(opts.APIBase, "/"),
		trBase:       strings.TrimRight(opts.TaskRouterBase, "/"),
		pageSize:     opts.PageSize,
	}
	if c.http == nil {
		c.http = &http.Client{Timeout: 15 * time.Second}
	}
	if c.apiBase == "" {
		c.apiBase = defaultAPIBase
	}
	if c.trBase == "" {
		c.trBase = defaultTaskRouterBase
	}
	if c.pageSize <= 0 || c.pageSize > maxPageSize {
		c.pageSize = maxPageSize
	}
	return c, nil
}

// APIError is a non-2xx provider response.
type APIError struct {
	Status  int
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("taskrouter: provider returned %d (code %d): %s", e.Status, e.Code, e.Message)
}

type pageMeta struct {
	NextPageURL string `json:"next_page_url"`
}

type wireActivity struct {
	SID          string `json:"sid"`
	FriendlyName string `json:"friendly_name"`
}

type wireWorker struct {
	SID          string `json:"sid"`
	FriendlyName string `json:"friendly_name"`
	ActivitySID  string `json:"activity_sid"`
	ActivityName string `json:"activity_name"`
	Attributes   string `json:"attributes"`
	DateUpdated  string `json:"date_updated"`
}

type wireReservation struct {
	SID         string `json:"sid"`
	TaskSID     string `json:"task_sid"`
	WorkerSID   string `json:"worker_sid"`
	Status      string `json:"reservation_status"`
	DateCreated string `json:"date_created"`
	DateUpdated string `json:"date_updated"`
}

type wireTask struct {
	SID              string `json:"sid"`
	AssignmentStatus string `json:"assignment_status"`
	Attributes       string `json:"attributes"`
	Reason           string `json:"reason"`
	DateCreated      string `json:"date_created"`
	DateUpdated      string `json:"date_updated"`
}

type wireCall struct {
	SID    string `json:"sid"`
	From   string `json:"from"`
	To     string `json:"to"`
	Status string `json:"status"`
}

func (c *RESTClient) ListActivities(ctx context.Context) ([]Activity, error) {
	var out []Activity
	next := fmt.Sprintf("%s/Workspaces/%s/Activities?PageSize=%d", c.trBase, c.workspaceSID, c.pageSize)
	for next != "" {
		var page struct {
			Activities []wireActivity `json:"activities"`
			Meta       pageMeta       `json:"meta"`
		}
		if err := c.do(ctx, http.MethodGet, next, nil, &page); err != nil {
			return nil, err
		}
		for _, a := range page.Activities {
			out = append(out, Activity{SID: a.SID, FriendlyName: a.FriendlyName})
		}
		next = page.Meta.NextPageURL
	}
	return out, nil
}

func (c *RESTClient) ListWorkers(ctx context.Context) ([]Worker, error) {
	var out []Worker
	next := fmt.Sprintf("%s/Workspaces/%s/Workers?PageSize=%d", c.trBase, c.workspaceSID, c.pageSize)
	for next != "" {
		var page struct {
			Workers []wireWorker `json:"workers"`
			Meta    pageMeta     `json:"meta"`
		}
		if err := c.do(ctx, http.MethodGet, next, nil, &page); err != nil {
			return nil, err
		}
		for _, w := range page.Workers {
			worker, err := decodeWorker(w)
			if err != nil {
				return nil, fmt.Errorf("worker %s: %w", w.SID, err)
			}
			out = append(out, worker)
		}
		next = page.Meta.NextPageURL
	}
	return out, nil
}

func (c *RESTClient) CreateWorker(ctx context.Context, p CreateWorkerParams) (Worker, error) {
	form := url.Values{}
	form.Set("FriendlyName", p.FriendlyName)
	form.Set("Attributes", p.Attributes.Encode())
	var w wireWorker
	u := fmt.Sprintf("%s/Workspaces/%s/Workers", c.trBase, c.workspaceSID)
	if err := c.do(ctx, http.MethodPost, u, form, &w); err != nil {
		return Worker{}, err
	}
	return decodeWorker(w)
}

func (c *RESTClient) UpdateWorker(ctx context.Context, workerSID string, p UpdateWorkerParams) (Worker, error) {
	form := url.Values{}
	form.Set("FriendlyName", p.FriendlyName)
	form.Set("Attributes", p.Attributes.Encode())
	var w wireWorker
	u := fmt.Sprintf("%s/Workspaces/%s/Workers/%s", c.trBase, c.workspaceSID, workerSID)
	if err := c.do(ctx, http.MethodPost, u, form, &w); err != nil {
		return Worker{}, err
	}
	return decodeWorker(w)
}

func (c *RESTClient) UpdateWorkerActivity(ctx context.Context, workerSID, activitySID string) (Worker, error) {
	form := url.Values{}
	form.Set("ActivitySid", activitySID)
	var w wireWorker
	u := fmt.Sprintf("%s/Workspaces/%s/Workers/%s", c.trBase, c.workspaceSID, workerSID)
	if err := c.do(ctx, http.MethodPost, u, form, &w); err != nil {
		return Worker{}, err
	}
	return decodeWorker(w)
}

func (c *RESTClient) DeleteWorker(ctx context.Context, workerSID string) error {
	u := fmt.Sprintf("%s/Workspaces/%s/Workers/%s", c.trBase, c.workspaceSID, workerSID)
	return c.do(ctx, http.MethodDelete, u, nil, nil)
}

func (c *RESTClient) ListReservations(ctx context.Context, workerSID string, status ReservationStatus) ([]Reservation, error) {
	var out []Reservation
	next := fmt.Sprintf("%s/Workspaces/%s/Workers/%s/Reservations?ReservationStatus=%s&PageSize=%d",
		c.trBase, c.workspaceSID, workerSID, url.QueryEscape(string(status)), c.pageSize)
	for next != "" {
		var page struct {
			Reservations []wireReservation `json:"reservations"`
			Meta         pageMeta          `json:"meta"`
		}
		if err := c.do(ctx, http.MethodGet, next, nil, &page); err != nil {
			return nil, err
		}
		for _, r := range page.Reservations {
			out = append(out, Reservation{
				SID:         r.SID,
				TaskSID:     r.TaskSID,
				WorkerSID:   r.WorkerSID,
				Status:      ReservationStatus(r.Status),
				DateCreated: parseTime(r.DateCreated),
				DateUpdated: parseTime(r.DateUpdated),
			})
		}
		next = page.Meta.NextPageURL
	}
	return out, nil
}

func (c *RESTClient) UpdateReservation(ctx context.Context, taskSID, reservationSID string, status ReservationStatus) (Reservation, error) {
	form := url.Values{}
	form.Set("ReservationStatus", string(status))
	var r wireReservation
	u := fmt.Sprintf("%s/Workspaces/%s/Tasks/%s/Reservations/%s", c.trBase, c.workspaceSID, taskSID, reservationSID)
	if err := c.do(ctx, http.MethodPost, u, form, &r); err != nil {
		return Reservation{}, err
	}
	return Reservation{
		SID:         r.SID,
		TaskSID:     r.TaskSID,
		WorkerSID:   r.WorkerSID,
		Status:      ReservationStatus(r.Status),
		DateCreated: parseTime(r.DateCreated),
		DateUpdated: parseTime(r.DateUpdated),
	}, nil
}

func (c *RESTClient) GetTask(ctx context.Context, taskSID string) (Task, error) {
	var t wireTask
	u := fmt.Sprintf("%s/Workspaces/%s/Tasks/%s", c.trBase, c.workspaceSID, taskSID)
	if err := c.do(ctx, http.MethodGet, u, nil, &t); err != nil {
		return Task{}, err
	}
	return decodeTask(t)
}

func (c *RESTClient) ListTasksByCallSID(ctx context.Context, callSID string) ([]Task, error) {
	expr := fmt.Sprintf("call_sid == %q", callSID)
	var out []Task
	next := fmt.Sprintf("%s/Workspaces/%s/Tasks?EvaluateTaskAttributes=%s&PageSize=%d",
		c.trBase, c.workspaceSID, url.QueryEscape(expr), c.pageSize)
	for next != "" {
		var page struct {
			Tasks []wireTask `json:"tasks"`
			Meta  pageMeta   `json:"meta"`
		}
		if err := c.do(ctx, http.MethodGet, next, nil, &page); err != nil {
			return nil, err
		}
		for _, t := range page.Tasks {
			task, err := decodeTask(t)
			if err != nil {
				return nil, err
			}
			out = append(out, task)
		}
		next = page.Meta.NextPageURL
	}
	return out, nil
}

func (c *RESTClient) CompleteTask(ctx context.Context, taskSID, reason string) (Task, error) {
	form := url.Values{}
	form.Set("AssignmentStatus", string(TaskCompleted))
	form.Set("Reason", reason)
	var t wireTask
	u := fmt.Sprintf("%s/Workspaces/%s/Tasks/%s", c.trBase, c.workspaceSID, taskSID)
	if err := c.do(ctx, http.MethodPost, u, form, &t); err != nil {
		return Task{}, err
	}
	return decodeTask(t)
}

func (c *RESTClient) CreateCall(ctx context.Context, p CreateCallParams) (Call, error) {
	form := url.Values{}
	form.Set("To", p.To)
	form.Set("From", p.From)
	form.Set("Url", p.URL)
	if p.StatusCallback != "" {
		form.Set("StatusCallback", p.StatusCallback)
	}
	if p.MachineDetection {
		form.Set("MachineDetection", "Enable")
	}
	if p.Timeout > 0 {
		form.Set("Timeout", strconv.Itoa(p.Timeout))
	}
	var call wireCall
	u := fmt.Sprintf("%s/Accounts/%s/Calls.json", c.apiBase, c.accountSID)
	if err := c.do(ctx, http.MethodPost, u, form, &call); err != nil {
		return Call{}, err
	}
	return Call{SID: call.SID, From: call.From, To: call.To, Status: CallStatus(call.Status)}, nil
}

func (c *RESTClient) RedirectCall(ctx context.Context, callSID, markup string) error {
	form := url.Values{}
	form.Set("Twiml", markup)
	u := fmt.Sprintf("%s/Accounts/%s/Calls/%s.json", c.apiBase, c.accountSID, callSID)
	return c.do(ctx, http.MethodPost, u, form, nil)
}

func (c *RESTClient) DeleteCallRecordings(ctx context.Context, callSID string) error {
	var page struct {
		Recordings []struct {
			SID string `json:"sid"`
		} `json:"recordings"`
	}
	u := fmt.Sprintf("%s/Accounts/%s/Calls/%s/Recordings.json", c.apiBase, c.accountSID, callSID)
	if err := c.do(ctx, http.MethodGet, u, nil, &page); err != nil {
		return err
	}
	for _, rec := range page.Recordings {
		du := fmt.Sprintf("%s/Accounts/%s/Recordings/%s.json", c.apiBase, c.accountSID, rec.SID)
		if err := c.do(ctx, http.MethodDelete, du, nil, nil); err != nil {
			return err
		}
	}
	return nil
}

func (c *RESTClient) DeleteTranscription(ctx context.Context, transcriptionSID string) error {
	u := fmt.Sprintf("%s/Accounts/%s/Transcriptions/%s.json", c.apiBase, c.accountSID, transcriptionSID)
	return c.do(ctx, http.MethodDelete, u, nil, nil)
}

func (c *RESTClient) do(ctx context.Context, method, rawURL string, form url.Values, out any) error {
	var body io.Reader
	if form != nil {
		body = strings.NewReader(form.Encode())
	}
	req, err := http.NewRequestWithContext(ctx, method, rawURL, body)
	if err != nil {
		return err
	}
	req.SetBasicAuth(c.accountSID, c.authToken)
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		apiErr := &APIError{Status: resp.StatusCode}
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
		_ = json.Unmarshal(b, apiErr)
		return apiErr
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func decodeWorker(w wireWorker) (Worker, error) {
	attrs, err := ParseWorkerAttributes(w.Attributes)
	if err != nil {
		return Worker{}, err
	}
	return Worker{
		SID:          w.SID,
		FriendlyName: w.FriendlyName,
		ActivitySID:  w.ActivitySID,
		ActivityName: w.ActivityName,
		Attributes:   attrs,
		DateUpdated:  parseTime(w.DateUpdated),
	}, nil
}

func decodeTask(t wireTask) (Task, error) {
	attrs, err := ParseTaskAttributes(t.Attributes)
	if err != nil {
		return Task{}, fmt.Errorf("task %s: %w", t.SID, err)
	}
	return Task{
		SID:              t.SID,
		AssignmentStatus: TaskStatus(t.AssignmentStatus),
		Attributes:       attrs,
		Reason:           t.Reason,
		DateCreated:      parseTime(t.DateCreated),
		DateUpdated:      parseTime(t.DateUpdated),
	}, nil
}

func parseTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t
	}
	// Legacy API resources use RFC 1123 dates.
	if t, err := time.Parse(time.RFC1123Z, s); err == nil {
		return t
	}
	return time.Time{}
}
