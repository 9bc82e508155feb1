package cachemanager

import (
	"context"
	"errors"
	"fmt"
	"proactiveCacher/business/scheduler"
	"proactiveCacher/domain"
	"sync"
	"time"
)

type fakeStore struct {
	mu         sync.Mutex
	users      []domain.User
	videos     []domain.Video
	ratings    []domain.Rating
	connLogs   map[string][]domain.ConnectivityLog
	connErr    map[string]error
	usageLogs  []domain.AppUsageLog
	cached     map[string][]string
	flagged    map[string]string
	records    []domain.PushRecord
	recordsErr error
	appendErr  error
	purgeCount int64
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		connLogs: map[string][]domain.ConnectivityLog{},
		connErr:  map[string]error{},
		cached:   map[string][]string{},
		flagged:  map[string]string{},
	}
}

func (f *fakeStore) repos() Repositories {
	return Repositories{
		Users:       fakeUsers{f},
		Videos:      fakeVideos{f},
		Ratings:     fakeRatings{f},
		Logs:        fakeLogs{f},
		PushRecords: fakeRecords{f},
	}
}

func (f *fakeStore) Snapshot() []domain.User {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]domain.User(nil), f.users...)
}

func (f *fakeStore) cachedFor(userID string) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.cached[userID]...)
}

func (f *fakeStore) pushRecords() []domain.PushRecord {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]domain.PushRecord(nil), f.records...)
}

type fakeUsers struct{ f *fakeStore }

func (r fakeUsers) FindAll(context.Context) ([]domain.User, error) {
	return r.f.Snapshot(), nil
}

func (r fakeUsers) FindByID(_ context.Context, id string) (domain.User, error) {
	for _, u := range r.f.Snapshot() {
		if u.ID == id {
			return u, nil
		}
	}
	return domain.User{}, domain.ErrNotFound
}

func (r fakeUsers) CachedVideoIDs(_ context.Context, userID string) ([]string, error) {
	return r.f.cachedFor(userID), nil
}

func (r fakeUsers) AppendCachedVideo(ctx context.Context, userID, videoID string) error {
	r.f.mu.Lock()
	defer r.f.mu.Unlock()
	if r.f.appendErr != nil {
		return r.f.appendErr
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	r.f.cached[userID] = append(r.f.cached[userID], videoID)
	return nil
}

func (r fakeUsers) Flag(_ context.Context, userID, reason string) error {
	r.f.mu.Lock()
	defer r.f.mu.Unlock()
	r.f.flagged[userID] = reason
	return nil
}

type fakeVideos struct{ f *fakeStore }

func (r fakeVideos) FindAll(context.Context) ([]domain.Video, error) {
	r.f.mu.Lock()
	defer r.f.mu.Unlock()
	return append([]domain.Video(nil), r.f.videos...), nil
}

func (r fakeVideos) FindByID(_ context.Context, id string) (domain.Video, error) {
	r.f.mu.Lock()
	defer r.f.mu.Unlock()
	for _, v := range r.f.videos {
		if v.ID == id {
			return v, nil
		}
	}
	return domain.Video{}, domain.ErrNotFound
}

type fakeRatings struct{ f *fakeStore }

func (r fakeRatings) FindAll(_ context.Context, validOnly bool) ([]domain.Rating, error) {
	r.f.mu.Lock()
	defer r.f.mu.Unlock()
	var out []domain.Rating
	for _, rt := range r.f.ratings {
		if validOnly && !rt.Valid() {
			continue
		}
		out = append(out, rt)
	}
	return out, nil
}

func (r fakeRatings) RatedVideoIDs(_ context.Context, userID string) ([]string, error) {
	r.f.mu.Lock()
	defer r.f.mu.Unlock()
	var out []string
	for _, rt := range r.f.ratings {
		if rt.Valid() && *rt.UserID == userID {
			out = append(out, rt.VideoID)
		}
	}
	return out, nil
}

func (r fakeRatings) PurgeOrphaned(context.Context) (int64, error) {
	return r.f.purgeCount, nil
}

type fakeLogs struct{ f *fakeStore }

func (r fakeLogs) FindConnectivityLogs(_ context.Context, userID string) ([]domain.ConnectivityLog, error) {
	r.f.mu.Lock()
	defer r.f.mu.Unlock()
	if err := r.f.connErr[userID]; err != nil {
		return nil, err
	}
	return r.f.connLogs[userID], nil
}

func (r fakeLogs) FindAllUsageLogs(context.Context) ([]domain.AppUsageLog, error) {
	r.f.mu.Lock()
	defer r.f.mu.Unlock()
	return r.f.usageLogs, nil
}

type fakeRecords struct{ f *fakeStore }

func (r fakeRecords) Save(_ context.Context, rec *domain.PushRecord) error {
	r.f.mu.Lock()
	defer r.f.mu.Unlock()
	r.f.records = append(r.f.records, *rec)
	return nil
}

func (r fakeRecords) ExistsForTask(_ context.Context, taskID string) (bool, error) {
	r.f.mu.Lock()
	defer r.f.mu.Unlock()
	if r.f.recordsErr != nil {
		return false, r.f.recordsErr
	}
	for _, rec := range r.f.records {
		if rec.TaskID == taskID {
			return true, nil
		}
	}
	return false, nil
}

type sentPush struct {
	Channel string
	Payload map[string]any
}

type fakeTransport struct {
	mu     sync.Mutex
	pushes []sentPush
	wakes  []string
	// reject maps a channel to the result returned for it
	reject map[string]domain.DeliveryResult
	err    error
	// onSend runs after a push is accepted by the transport
	onSend func()
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{reject: map[string]domain.DeliveryResult{}}
}

func (t *fakeTransport) result(channel string) (domain.DeliveryResult, error) {
	if t.err != nil {
		return domain.DeliveryResult{}, t.err
	}
	if r, ok := t.reject[channel]; ok {
		r.Device = channel
		return r, nil
	}
	return domain.DeliveryResult{Device: channel, Sent: true, StatusCode: 200, ID: "apns-" + channel}, nil
}

func (t *fakeTransport) SendPush(_ context.Context, channel string, payload map[string]any) (domain.DeliveryResult, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.pushes = append(t.pushes, sentPush{Channel: channel, Payload: payload})
	if t.onSend != nil {
		t.onSend()
	}
	return t.result(channel)
}

func (t *fakeTransport) SendSilentWake(_ context.Context, channel string) (domain.DeliveryResult, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.wakes = append(t.wakes, channel)
	return t.result(channel)
}

func (t *fakeTransport) sent() []sentPush {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]sentPush(nil), t.pushes...)
}

type fakeScheduler struct {
	mu    sync.Mutex
	seq   int
	tasks map[string]scheduler.Task
	err   error
}

func newFakeScheduler() *fakeScheduler {
	return &fakeScheduler{tasks: map[string]scheduler.Task{}}
}

func (s *fakeScheduler) Schedule(_ context.Context, task scheduler.Task) (scheduler.Task, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return scheduler.Task{}, false, s.err
	}
	s.seq++
	task.ID = fmt.Sprintf("task-%d", s.seq)
	task.CreatedAt = time.Now()
	_, replaced := s.tasks[task.UserID]
	s.tasks[task.UserID] = task
	return task, replaced, nil
}

func (s *fakeScheduler) PendingTasks() []scheduler.Task {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]scheduler.Task, 0, len(s.tasks))
	for _, t := range s.tasks {
		out = append(out, t)
	}
	return out
}

func (s *fakeScheduler) task(userID string) (scheduler.Task, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tasks[userID]
	return t, ok
}

var errStoreDown = errors.New("store down")

func strPtr(s string) *string { return &s }

func intPtr(i int) *int { return &i }
