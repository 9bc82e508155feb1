// Package cachemanager decides which video each user should have cached and
// when to push it: it builds a rating matrix, fits a recommendation model,
// predicts the next likely WiFi slot and hands a push task to the scheduler.
package cachemanager

import (
	"context"
	"errors"
	"fmt"
	"proactiveCacher/business/recommender"
	"proactiveCacher/business/scheduler"
	"proactiveCacher/domain"
	"proactiveCacher/pkg/logger"
	"time"

	"golang.org/x/sync/errgroup"
)

// ---- Repository interfaces ----

type UserRepository interface {
	FindAll(ctx context.Context) ([]domain.User, error)
	FindByID(ctx context.Context, id string) (domain.User, error)
	CachedVideoIDs(ctx context.Context, userID string) ([]string, error)
	AppendCachedVideo(ctx context.Context, userID, videoID string) error
	Flag(ctx context.Context, userID, reason string) error
}

type VideoRepository interface {
	FindAll(ctx context.Context) ([]domain.Video, error)
	FindByID(ctx context.Context, id string) (domain.Video, error)
}

type RatingRepository interface {
	FindAll(ctx context.Context, validOnly bool) ([]domain.Rating, error)
	RatedVideoIDs(ctx context.Context, userID string) ([]string, error)
	PurgeOrphaned(ctx context.Context) (int64, error)
}

type LogRepository interface {
	FindConnectivityLogs(ctx context.Context, userID string) ([]domain.ConnectivityLog, error)
	FindAllUsageLogs(ctx context.Context) ([]domain.AppUsageLog, error)
}

type PushRecordRepository interface {
	Save(ctx context.Context, record *domain.PushRecord) error
	ExistsForTask(ctx context.Context, taskID string) (bool, error)
}

// PushTransport delivers notifications to a device channel. A nil error with
// DeliveryResult.Sent false is a per-recipient rejection.
type PushTransport interface {
	SendPush(ctx context.Context, channel string, payload map[string]any) (domain.DeliveryResult, error)
	SendSilentWake(ctx context.Context, channel string) (domain.DeliveryResult, error)
}

type TaskScheduler interface {
	Schedule(ctx context.Context, task scheduler.Task) (scheduler.Task, bool, error)
	PendingTasks() []scheduler.Task
}

// UserDirectory is the in-memory registry of known users.
type UserDirectory interface {
	Snapshot() []domain.User
}

type Repositories struct {
	Users       UserRepository
	Videos      VideoRepository
	Ratings     RatingRepository
	Logs        LogRepository
	PushRecords PushRecordRepository
}

type Config struct {
	SlotDuration      time.Duration
	WiFiThreshold     float64
	FallbackPushDelay time.Duration
	Location          *time.Location
	// Concurrency bounds batch decisions and network probes.
	Concurrency int
}

func DefaultConfig() Config {
	return Config{
		SlotDuration:      DefaultSlotDuration,
		WiFiThreshold:     DefaultWiFiThreshold,
		FallbackPushDelay: time.Hour,
		Location:          time.Local,
		Concurrency:       8,
	}
}

type Service struct {
	repos      Repositories
	transport  PushTransport
	factorizer recommender.Factorizer
	scheduler  TaskScheduler
	directory  UserDirectory
	predictor  WiFiPredictor
	cfg        Config
	now        func() time.Time
}

func NewService(
	repos Repositories,
	transport PushTransport,
	factorizer recommender.Factorizer,
	sched TaskScheduler,
	directory UserDirectory,
	cfg Config,
) *Service {
	if cfg.FallbackPushDelay <= 0 {
		cfg.FallbackPushDelay = time.Hour
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 8
	}
	return &Service{
		repos:      repos,
		transport:  transport,
		factorizer: factorizer,
		scheduler:  sched,
		directory:  directory,
		predictor:  NewWiFiPredictor(cfg.SlotDuration, cfg.WiFiThreshold, cfg.Location),
		cfg:        cfg,
		now:        time.Now,
	}
}

func (s *Service) Predictor() WiFiPredictor {
	return s.predictor
}

// GeneratePredictedRatings fits a model over the current ratings. With no
// users or no videos it returns an empty model rather than an error.
func (s *Service) GeneratePredictedRatings(ctx context.Context, users []domain.User, videos []domain.Video, ratings []domain.Rating) (*RecommendationModel, error) {
	matrix := BuildRatingMatrix(users, videos, ratings)
	model := &RecommendationModel{
		users:   matrix.Rows(),
		videos:  matrix.Cols(),
		BuiltAt: s.now(),
	}
	if matrix.Empty() {
		logger.Info("Rating matrix is empty, no recommendations available",
			"users", matrix.Rows(),
			"videos", matrix.Cols(),
		)
		return model, nil
	}

	fitted, err := s.factorizer.Fit(ctx, matrix)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrModelBuild, err)
	}
	model.model = fitted
	return model, nil
}

// BuildModel loads users, videos and valid ratings and fits a model over them.
func (s *Service) BuildModel(ctx context.Context) (*RecommendationModel, error) {
	users, err := s.repos.Users.FindAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: load users: %w", ErrPersistence, err)
	}
	videos, err := s.repos.Videos.FindAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: load videos: %w", ErrPersistence, err)
	}
	ratings, err := s.repos.Ratings.FindAll(ctx, true)
	if err != nil {
		return nil, fmt.Errorf("%w: load ratings: %w", ErrPersistence, err)
	}
	return s.GeneratePredictedRatings(ctx, users, videos, ratings)
}

// PredictPushTime loads the user's connectivity history and returns the
// start of the next slot likely to be on WiFi.
func (s *Service) PredictPushTime(ctx context.Context, userID string) (time.Time, error) {
	logs, err := s.repos.Logs.FindConnectivityLogs(ctx, userID)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: load connectivity logs: %w", ErrPersistence, err)
	}
	return s.predictor.NextPushTime(logs, s.now()), nil
}

// MakeCachingDecision schedules a push for user at the predicted WiFi slot.
// The push itself runs later; the returned decision only says when.
func (s *Service) MakeCachingDecision(ctx context.Context, user domain.User, model *RecommendationModel) (domain.CachingDecision, error) {
	if model.Empty() {
		CacheDecisionsTotal.WithLabelValues("no_data").Inc()
		return domain.CachingDecision{}, ErrDataUnavailable
	}
	pushAt, err := s.PredictPushTime(ctx, user.ID)
	if err != nil {
		CacheDecisionsTotal.WithLabelValues("failed").Inc()
		return domain.CachingDecision{}, err
	}
	return s.SchedulePush(ctx, user, model, pushAt)
}

// SchedulePush arms a push for user at pushAt, or after the fallback delay
// when pushAt is zero. Any push already pending for the user is replaced.
func (s *Service) SchedulePush(ctx context.Context, user domain.User, model *RecommendationModel, pushAt time.Time) (domain.CachingDecision, error) {
	if pushAt.IsZero() {
		pushAt = s.now().Add(s.cfg.FallbackPushDelay)
	}

	task, replaced, err := s.scheduler.Schedule(ctx, scheduler.Task{
		UserID:  user.ID,
		FireAt:  pushAt,
		Payload: model,
	})
	if err != nil {
		CacheDecisionsTotal.WithLabelValues("failed").Inc()
		return domain.CachingDecision{}, fmt.Errorf("%w: schedule push: %w", ErrPersistence, err)
	}

	outcome := "scheduled"
	if replaced {
		outcome = "replaced"
	}
	CacheDecisionsTotal.WithLabelValues(outcome).Inc()

	logger.Info("Caching decision scheduled",
		"user_id", user.ID,
		"task_id", task.ID,
		"push_at", task.FireAt,
		"replaced", replaced,
	)

	return domain.CachingDecision{
		TaskID:   task.ID,
		UserID:   user.ID,
		PushAt:   task.FireAt,
		Replaced: replaced,
	}, nil
}

// DecideForUser builds a fresh model and makes a caching decision for one user.
func (s *Service) DecideForUser(ctx context.Context, userID string) (domain.CachingDecision, error) {
	user, err := s.repos.Users.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.CachingDecision{}, err
		}
		return domain.CachingDecision{}, fmt.Errorf("%w: load user: %w", ErrPersistence, err)
	}
	model, err := s.BuildModel(ctx)
	if err != nil {
		CacheDecisionsTotal.WithLabelValues("failed").Inc()
		return domain.CachingDecision{}, err
	}
	return s.MakeCachingDecision(ctx, user, model)
}

// DecideForAll makes one decision per registered user from a single model.
// A failure for one user is logged and counted, never returned.
func (s *Service) DecideForAll(ctx context.Context) ([]domain.CachingDecision, int, error) {
	model, err := s.BuildModel(ctx)
	if err != nil {
		CacheDecisionsTotal.WithLabelValues("failed").Inc()
		return nil, 0, err
	}
	users := s.directory.Snapshot()
	if model.Empty() {
		CacheDecisionsTotal.WithLabelValues("no_data").Add(float64(len(users)))
		return []domain.CachingDecision{}, 0, nil
	}

	results := make([]*domain.CachingDecision, len(users))
	var g errgroup.Group
	g.SetLimit(s.cfg.Concurrency)
	for i, u := range users {
		g.Go(func() error {
			d, err := s.MakeCachingDecision(ctx, u, model)
			if err != nil {
				logger.Warn("Caching decision failed",
					"user_id", u.ID,
					"error", err,
				)
				return nil
			}
			results[i] = &d
			return nil
		})
	}
	_ = g.Wait()

	decisions := make([]domain.CachingDecision, 0, len(users))
	for _, d := range results {
		if d != nil {
			decisions = append(decisions, *d)
		}
	}
	return decisions, len(users) - len(decisions), nil
}

// PendingPushes lists the pushes currently armed, earliest first.
func (s *Service) PendingPushes() []domain.ScheduledPush {
	tasks := s.scheduler.PendingTasks()
	out := make([]domain.ScheduledPush, 0, len(tasks))
	for _, t := range tasks {
		out = append(out, domain.ScheduledPush{
			TaskID:    t.ID,
			UserID:    t.UserID,
			FireAt:    t.FireAt,
			CreatedAt: t.CreatedAt,
		})
	}
	return out
}

// HitRate evaluates all stored app-usage logs.
func (s *Service) HitRate(ctx context.Context) (domain.HitRate, error) {
	logs, err := s.repos.Logs.FindAllUsageLogs(ctx)
	if err != nil {
		return domain.HitRate{}, fmt.Errorf("%w: load usage logs: %w", ErrPersistence, err)
	}
	result, err := EvaluateHitRate(logs)
	if err != nil {
		return domain.HitRate{}, err
	}
	CacheHitRate.Set(result.HitRate)
	return result, nil
}

// PurgeOrphanedRatings deletes ratings whose user no longer exists.
func (s *Service) PurgeOrphanedRatings(ctx context.Context) (int64, error) {
	n, err := s.repos.Ratings.PurgeOrphaned(ctx)
	if err != nil {
		return 0, fmt.Errorf("%w: purge ratings: %w", ErrPersistence, err)
	}
	if n > 0 {
		logger.Info("Purged orphaned ratings", "count", n)
	}
	return n, nil
}
