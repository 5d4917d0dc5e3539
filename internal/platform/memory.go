package platform

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/Spacey6849/palliative-care-app/internal/notify"
)

// Memory is an in-memory Platform fake for tests and development. It records
// the order of capability calls and exposes knobs for permission state, token
// results, and injected failures, so registrar and scheduler branching can be
// exercised without a real device.
type Memory struct {
	mu sync.Mutex

	// DeviceProfile is returned by Profile. Defaults to a physical,
	// non-sandboxed device.
	DeviceProfile Profile

	// Permission is the current permission status; RequestResult is what a
	// permission request yields (and becomes the new status).
	Permission    PermissionStatus
	RequestResult PermissionStatus

	// Token and TokenErr control PushToken.
	Token    string
	TokenErr error

	ChannelErr  error
	ScheduleErr error
	CancelErr   error
	ListErr     error

	calls     []string
	channels  []notify.Channel
	scheduled []Request
	pending   map[string]Request
	seq       int
	projectID string
}

// NewMemory returns a fake for the happy path: physical device, permission
// granted, a stub token available.
func NewMemory() *Memory {
	return &Memory{
		DeviceProfile: Profile{PhysicalDevice: true, OS: "test"},
		Permission:    PermissionGranted,
		RequestResult: PermissionGranted,
		Token:         "fake-push-token",
		pending:       make(map[string]Request),
	}
}

func (m *Memory) Profile() Profile {
	return m.DeviceProfile
}

func (m *Memory) PermissionStatus(ctx context.Context) (PermissionStatus, error) {
	m.record("permission_status")
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Permission, nil
}

func (m *Memory) RequestPermission(ctx context.Context) (PermissionStatus, error) {
	m.record("request_permission")
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Permission = m.RequestResult
	return m.Permission, nil
}

func (m *Memory) CreateChannel(ctx context.Context, ch notify.Channel) error {
	m.record("create_channel:" + ch.ID)
	if m.ChannelErr != nil {
		return m.ChannelErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.channels = append(m.channels, ch)
	return nil
}

func (m *Memory) PushToken(ctx context.Context, projectID string) (string, error) {
	m.record("push_token")
	m.mu.Lock()
	m.projectID = projectID
	m.mu.Unlock()
	if m.TokenErr != nil {
		return "", m.TokenErr
	}
	return m.Token, nil
}

func (m *Memory) ScheduleLocal(ctx context.Context, req Request) (string, error) {
	m.record("schedule_local")
	if m.ScheduleErr != nil {
		return "", m.ScheduleErr
	}
	if err := req.Trigger.Validate(); err != nil {
		return "", err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.seq++
	id := fmt.Sprintf("sched-%d", m.seq)
	m.scheduled = append(m.scheduled, req)
	// Immediate requests fire at once on a real platform and never sit in
	// the pending queue.
	if req.Trigger.Kind != notify.TriggerImmediate {
		m.pending[id] = req
	}
	return id, nil
}

func (m *Memory) CancelLocal(ctx context.Context, id string) error {
	m.record("cancel_local:" + id)
	if m.CancelErr != nil {
		return m.CancelErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.pending, id)
	return nil
}

func (m *Memory) ListPending(ctx context.Context) ([]Pending, error) {
	m.record("list_pending")
	if m.ListErr != nil {
		return nil, m.ListErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]Pending, 0, len(m.pending))
	for id, req := range m.pending {
		out = append(out, Pending{
			ID:       id,
			Owner:    req.Owner,
			Title:    req.Title,
			Body:     req.Body,
			Data:     req.Data,
			Channel:  req.Channel,
			Trigger:  req.Trigger,
			NextFire: time.Time{},
		})
	}
	return out, nil
}

// Calls returns the recorded capability call sequence.
func (m *Memory) Calls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.calls))
	copy(out, m.calls)
	return out
}

// Scheduled returns every ScheduleLocal request seen, immediate ones
// included.
func (m *Memory) Scheduled() []Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Request, len(m.scheduled))
	copy(out, m.scheduled)
	return out
}

// CreatedChannels returns the channels registered so far.
func (m *Memory) CreatedChannels() []notify.Channel {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]notify.Channel, len(m.channels))
	copy(out, m.channels)
	return out
}

// SeenProjectID returns the project identifier of the last PushToken call.
func (m *Memory) SeenProjectID() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.projectID
}

func (m *Memory) record(call string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, call)
}
