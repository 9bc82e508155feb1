package cachemanager

import (
	"context"
	"errors"
	"proactiveCacher/business/recommender"
	"proactiveCacher/business/scheduler"
	"proactiveCacher/domain"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	store     *fakeStore
	transport *fakeTransport
	sched     *fakeScheduler
	svc       *Service
	now       time.Time
}

// newFixture seeds two users and three videos. u1 rated v1 and v2, u2 rated v1.
func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := newFakeStore()
	store.users = []domain.User{{ID: "u1", DeviceToken: "tok-1"}, {ID: "u2"}}
	store.videos = []domain.Video{{ID: "v1"}, {ID: "v2"}, {ID: "v3"}}
	store.ratings = []domain.Rating{
		rating("u1", "v1", 5),
		rating("u1", "v2", 1),
		rating("u2", "v1", 4),
		{UserID: nil, VideoID: "v3", Score: 5},
	}

	transport := newFakeTransport()
	sched := newFakeScheduler()
	cfg := DefaultConfig()
	cfg.Location = time.UTC

	svc := NewService(store.repos(), transport, recommender.NewALS(recommender.DefaultALSConfig()), sched, store, cfg)
	now := at(10, 5, 0)
	svc.now = func() time.Time { return now }

	return &fixture{store: store, transport: transport, sched: sched, svc: svc, now: now}
}

func TestService_GeneratePredictedRatings(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	t.Run("one prediction per video", func(t *testing.T) {
		model, err := f.svc.BuildModel(ctx)
		require.NoError(t, err)
		assert.False(t, model.Empty())
		for _, u := range f.store.users {
			assert.Len(t, model.Recommendations(u.ID), 3)
		}
	})

	t.Run("no videos yields empty model", func(t *testing.T) {
		model, err := f.svc.GeneratePredictedRatings(ctx, f.store.users, nil, nil)
		require.NoError(t, err)
		assert.True(t, model.Empty())
		assert.Empty(t, model.Recommendations("u1"))
	})

	t.Run("factorizer failure is a model build error", func(t *testing.T) {
		svc := NewService(f.store.repos(), f.transport, failingFactorizer{}, f.sched, f.store, DefaultConfig())
		_, err := svc.BuildModel(ctx)
		assert.ErrorIs(t, err, ErrModelBuild)
	})
}

type failingFactorizer struct{}

func (failingFactorizer) Fit(context.Context, recommender.Matrix) (recommender.Model, error) {
	return nil, errors.New("singular")
}

func TestService_MakeCachingDecision(t *testing.T) {
	ctx := context.Background()

	t.Run("schedules at predicted wifi slot", func(t *testing.T) {
		f := newFixture(t)
		f.store.connLogs["u1"] = wifiInSlots(40, 41, 42, 43, 44)
		model, err := f.svc.BuildModel(ctx)
		require.NoError(t, err)

		decision, err := f.svc.MakeCachingDecision(ctx, f.store.users[0], model)
		require.NoError(t, err)
		assert.True(t, at(10, 10, 0).Equal(decision.PushAt))
		assert.False(t, decision.Replaced)

		task, ok := f.sched.task("u1")
		require.True(t, ok)
		assert.Equal(t, decision.TaskID, task.ID)
		assert.Same(t, model, task.Payload)
	})

	t.Run("second decision replaces the first", func(t *testing.T) {
		f := newFixture(t)
		model, err := f.svc.BuildModel(ctx)
		require.NoError(t, err)

		_, err = f.svc.MakeCachingDecision(ctx, f.store.users[0], model)
		require.NoError(t, err)
		decision, err := f.svc.MakeCachingDecision(ctx, f.store.users[0], model)
		require.NoError(t, err)
		assert.True(t, decision.Replaced)
		assert.Len(t, f.sched.PendingTasks(), 1)
	})

	t.Run("empty model schedules nothing", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.svc.MakeCachingDecision(ctx, f.store.users[0], &RecommendationModel{})
		assert.ErrorIs(t, err, ErrDataUnavailable)
		assert.Empty(t, f.sched.PendingTasks())
	})

	t.Run("log failure aborts only this decision", func(t *testing.T) {
		f := newFixture(t)
		f.store.connErr["u1"] = errStoreDown
		model, err := f.svc.BuildModel(ctx)
		require.NoError(t, err)

		_, err = f.svc.MakeCachingDecision(ctx, f.store.users[0], model)
		assert.ErrorIs(t, err, ErrPersistence)
		assert.ErrorIs(t, err, errStoreDown)
		assert.Empty(t, f.sched.PendingTasks())
	})

	t.Run("zero push time uses fallback delay", func(t *testing.T) {
		f := newFixture(t)
		model, err := f.svc.BuildModel(ctx)
		require.NoError(t, err)

		decision, err := f.svc.SchedulePush(ctx, f.store.users[0], model, time.Time{})
		require.NoError(t, err)
		assert.True(t, f.now.Add(time.Hour).Equal(decision.PushAt))
	})

	t.Run("scheduler failure", func(t *testing.T) {
		f := newFixture(t)
		f.sched.err = errStoreDown
		model, err := f.svc.BuildModel(ctx)
		require.NoError(t, err)

		_, err = f.svc.MakeCachingDecision(ctx, f.store.users[0], model)
		assert.ErrorIs(t, err, ErrPersistence)
	})
}

func TestService_DecideForAll(t *testing.T) {
	f := newFixture(t)
	f.store.connErr["u2"] = errStoreDown

	decisions, failed, err := f.svc.DecideForAll(context.Background())
	require.NoError(t, err)
	require.Len(t, decisions, 1)
	assert.Equal(t, "u1", decisions[0].UserID)
	assert.Equal(t, 1, failed)
	assert.Len(t, f.svc.PendingPushes(), 1)
}

func TestService_DecideForUser(t *testing.T) {
	f := newFixture(t)

	decision, err := f.svc.DecideForUser(context.Background(), "u2")
	require.NoError(t, err)
	assert.Equal(t, "u2", decision.UserID)

	_, err = f.svc.DecideForUser(context.Background(), "ghost")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func scheduledTask(t *testing.T, f *fixture, userID string) scheduler.Task {
	t.Helper()
	model, err := f.svc.BuildModel(context.Background())
	require.NoError(t, err)
	user, err := f.store.repos().Users.FindByID(context.Background(), userID)
	require.NoError(t, err)
	_, err = f.svc.MakeCachingDecision(context.Background(), user, model)
	require.NoError(t, err)
	got, ok := f.sched.task(userID)
	require.True(t, ok)
	return got
}

func TestService_ExecutePush(t *testing.T) {
	ctx := context.Background()

	t.Run("pushes top unrated video and records it cached", func(t *testing.T) {
		f := newFixture(t)
		f.svc.ExecutePush(ctx, scheduledTask(t, f, "u1"))

		pushes := f.transport.sent()
		require.Len(t, pushes, 1)
		assert.Equal(t, "tok-1", pushes[0].Channel)
		assert.Equal(t, map[string]any{"videoID": "v3"}, pushes[0].Payload)
		assert.Equal(t, []string{"v3"}, f.store.cachedFor("u1"))

		records := f.store.pushRecords()
		require.Len(t, records, 1)
		assert.Equal(t, domain.PushStatusSent, records[0].Status)
		require.NotNil(t, records[0].VideoID)
		assert.Equal(t, "v3", *records[0].VideoID)
	})

	t.Run("channel defaults to user id", func(t *testing.T) {
		f := newFixture(t)
		f.svc.ExecutePush(ctx, scheduledTask(t, f, "u2"))

		pushes := f.transport.sent()
		require.Len(t, pushes, 1)
		assert.Equal(t, "u2", pushes[0].Channel)
		pushed := pushes[0].Payload["videoID"]
		assert.Contains(t, []string{"v2", "v3"}, pushed)
		assert.Equal(t, []string{pushed.(string)}, f.store.cachedFor("u2"))
	})

	t.Run("restored task rebuilds the model", func(t *testing.T) {
		f := newFixture(t)
		task := scheduledTask(t, f, "u1")
		task.Payload = nil

		f.svc.ExecutePush(ctx, task)
		assert.Equal(t, []string{"v3"}, f.store.cachedFor("u1"))
	})

	t.Run("cached videos are not pushed again", func(t *testing.T) {
		f := newFixture(t)
		f.store.cached["u1"] = []string{"v3"}
		f.svc.ExecutePush(ctx, scheduledTask(t, f, "u1"))

		assert.Empty(t, f.transport.sent())
		records := f.store.pushRecords()
		require.Len(t, records, 1)
		assert.Equal(t, domain.PushStatusSkipped, records[0].Status)
	})

	t.Run("rejected push adds no cached video", func(t *testing.T) {
		f := newFixture(t)
		f.transport.reject["tok-1"] = domain.DeliveryResult{StatusCode: 400, Reason: "PayloadEmpty"}
		f.svc.ExecutePush(ctx, scheduledTask(t, f, "u1"))

		assert.Empty(t, f.store.cachedFor("u1"))
		assert.Empty(t, f.store.flagged)
		records := f.store.pushRecords()
		require.Len(t, records, 1)
		assert.Equal(t, domain.PushStatusFailed, records[0].Status)
		assert.Equal(t, 400, records[0].StatusCode)
	})

	t.Run("invalid channel flags the user", func(t *testing.T) {
		f := newFixture(t)
		f.transport.reject["tok-1"] = domain.DeliveryResult{StatusCode: 400, Reason: "BadDeviceToken"}
		f.svc.ExecutePush(ctx, scheduledTask(t, f, "u1"))

		assert.Empty(t, f.store.cachedFor("u1"))
		assert.Equal(t, "BadDeviceToken", f.store.flagged["u1"])
	})

	t.Run("transport error", func(t *testing.T) {
		f := newFixture(t)
		f.transport.err = errors.New("breaker open")
		f.svc.ExecutePush(ctx, scheduledTask(t, f, "u1"))

		assert.Empty(t, f.store.cachedFor("u1"))
		records := f.store.pushRecords()
		require.Len(t, records, 1)
		assert.Equal(t, domain.PushStatusFailed, records[0].Status)
		assert.Contains(t, records[0].Reason, ErrTransport.Error())
	})

	t.Run("bookkeeping failure keeps the delivery", func(t *testing.T) {
		f := newFixture(t)
		f.store.appendErr = errStoreDown
		f.svc.ExecutePush(ctx, scheduledTask(t, f, "u1"))

		assert.Len(t, f.transport.sent(), 1)
		records := f.store.pushRecords()
		require.Len(t, records, 1)
		assert.Equal(t, domain.PushStatusSent, records[0].Status)
	})

	t.Run("task executed twice pushes once", func(t *testing.T) {
		f := newFixture(t)
		task := scheduledTask(t, f, "u1")

		f.svc.ExecutePush(ctx, task)
		f.svc.ExecutePush(ctx, task)

		assert.Len(t, f.transport.sent(), 1)
		assert.Equal(t, []string{"v3"}, f.store.cachedFor("u1"))
		assert.Len(t, f.store.pushRecords(), 1)
	})

	t.Run("restored copy of a skipped task stays skipped", func(t *testing.T) {
		f := newFixture(t)
		task := scheduledTask(t, f, "u1")
		f.store.cached["u1"] = []string{"v3"}
		f.svc.ExecutePush(ctx, task)

		f.store.cached["u1"] = nil
		task.Payload = nil
		f.svc.ExecutePush(ctx, task)

		assert.Empty(t, f.transport.sent())
		assert.Len(t, f.store.pushRecords(), 1)
	})

	t.Run("push history unavailable", func(t *testing.T) {
		f := newFixture(t)
		f.store.recordsErr = errStoreDown
		f.svc.ExecutePush(ctx, scheduledTask(t, f, "u1"))

		assert.Empty(t, f.transport.sent())
		assert.Empty(t, f.store.pushRecords())
	})

	t.Run("shutdown during push keeps the cached video", func(t *testing.T) {
		f := newFixture(t)
		runCtx, stop := context.WithCancel(ctx)
		defer stop()
		f.transport.onSend = stop

		f.svc.ExecutePush(runCtx, scheduledTask(t, f, "u1"))

		require.Len(t, f.transport.sent(), 1)
		assert.Equal(t, []string{"v3"}, f.store.cachedFor("u1"))
		records := f.store.pushRecords()
		require.Len(t, records, 1)
		assert.Equal(t, domain.PushStatusSent, records[0].Status)
	})

	t.Run("user deleted before firing", func(t *testing.T) {
		f := newFixture(t)
		task := scheduledTask(t, f, "u1")
		f.store.users = f.store.users[1:]

		f.svc.ExecutePush(ctx, task)
		assert.Empty(t, f.transport.sent())
		assert.Equal(t, domain.PushStatusSkipped, f.store.pushRecords()[0].Status)
	})
}

func TestService_ProbeNetworkAvailability(t *testing.T) {
	f := newFixture(t)
	f.transport.reject["u2"] = domain.DeliveryResult{StatusCode: 410, Reason: "Unregistered"}

	sent, failed := f.svc.ProbeNetworkAvailability(context.Background())
	assert.Equal(t, 1, sent)
	assert.Equal(t, 1, failed)
	assert.ElementsMatch(t, []string{"tok-1", "u2"}, f.transport.wakes)
	assert.Equal(t, "Unregistered", f.store.flagged["u2"])
	assert.NotContains(t, f.store.flagged, "u1")
}

func TestService_HitRate(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.HitRate(context.Background())
	assert.ErrorIs(t, err, ErrNoHitRateData)

	f.store.usageLogs = []domain.AppUsageLog{usageLog(at(1, 9, 0), intPtr(3), intPtr(1))}
	hr, err := f.svc.HitRate(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0.75, hr.HitRate)
}

func TestInvalidChannel(t *testing.T) {
	assert.True(t, InvalidChannel(domain.DeliveryResult{StatusCode: 410}))
	assert.True(t, InvalidChannel(domain.DeliveryResult{StatusCode: 400, Reason: "BadDeviceToken"}))
	assert.False(t, InvalidChannel(domain.DeliveryResult{StatusCode: 400, Reason: "PayloadEmpty"}))
	assert.False(t, InvalidChannel(domain.DeliveryResult{Sent: true, StatusCode: 200}))
}
