package cachemanager

import (
	"context"
	"errors"
	"fmt"
	"proactiveCacher/business/scheduler"
	"proactiveCacher/domain"
	"proactiveCacher/pkg/logger"
	"time"

	"gorm.io/datatypes"
)

const (
	pushTimeout = 30 * time.Second
	// bookkeeping writes outlive the handler context so a shutdown mid-push
	// does not lose them
	bookkeepingTimeout = 5 * time.Second
)

// rejection reasons that mean the device channel is dead
var invalidChannelReasons = map[string]bool{
	"BadDeviceToken":         true,
	"Unregistered":           true,
	"DeviceTokenNotForTopic": true,
	"MissingDeviceToken":     true,
}

// InvalidChannel reports whether a rejection means the device channel itself
// is dead, so the user should be flagged.
func InvalidChannel(r domain.DeliveryResult) bool {
	if r.Sent {
		return false
	}
	return r.StatusCode == 410 || invalidChannelReasons[r.Reason]
}

// ExecutePush is the scheduler handler. It re-derives the best video for the
// user at fire time, skipping videos the user rated or already has cached,
// and pushes it. Only a confirmed delivery records the video as cached.
//
// A task that already has a push record is not executed again, so a task
// restored after a crash between firing and its store cleanup pushes once.
func (s *Service) ExecutePush(ctx context.Context, task scheduler.Task) {
	ctx, cancel := context.WithTimeout(ctx, pushTimeout)
	defer cancel()

	done, err := s.repos.PushRecords.ExistsForTask(ctx, task.ID)
	if err != nil {
		CachePushesTotal.WithLabelValues("failed").Inc()
		logger.Error("Failed to check push history, not pushing",
			"user_id", task.UserID,
			"task_id", task.ID,
			"error", err,
		)
		return
	}
	if done {
		CachePushesTotal.WithLabelValues("duplicate").Inc()
		logger.Warn("Push already executed for task",
			"user_id", task.UserID,
			"task_id", task.ID,
		)
		return
	}

	record := &domain.PushRecord{
		TaskID:       task.ID,
		UserID:       task.UserID,
		ScheduledFor: task.FireAt,
		Context: datatypes.JSONMap{
			"fired_at": s.now().Format(time.RFC3339),
			"restored": task.Payload == nil,
		},
	}
	defer s.savePushRecord(record)

	model, _ := task.Payload.(*RecommendationModel)
	if model == nil {
		rebuilt, err := s.BuildModel(ctx)
		if err != nil {
			s.failPush(record, "model_build", err)
			return
		}
		model = rebuilt
	}

	user, err := s.repos.Users.FindByID(ctx, task.UserID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			s.skipPush(record, "user no longer registered")
			return
		}
		s.failPush(record, "load_user", err)
		return
	}

	exclude, err := s.excludedVideos(ctx, user.ID)
	if err != nil {
		s.failPush(record, "load_exclusions", err)
		return
	}

	rec, ok := model.Top(user.ID, exclude)
	if !ok {
		s.skipPush(record, ErrNoRecommendation.Error())
		return
	}
	record.Context["score"] = rec.Score

	video, err := s.repos.Videos.FindByID(ctx, rec.VideoID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			s.skipPush(record, "recommended video not found")
			return
		}
		s.failPush(record, "load_video", err)
		return
	}
	record.VideoID = &video.ID

	result, err := s.transport.SendPush(ctx, user.PushChannel(), map[string]any{"videoID": video.ID})
	if err != nil {
		s.failPush(record, "transport", fmt.Errorf("%w: %w", ErrTransport, err))
		return
	}
	record.StatusCode = result.StatusCode
	record.Reason = result.Reason

	if !result.Sent {
		logger.Warn("Push rejected for device",
			"user_id", user.ID,
			"video_id", video.ID,
			"status_code", result.StatusCode,
			"reason", result.Reason,
		)
		record.Status = domain.PushStatusFailed
		CachePushesTotal.WithLabelValues("failed").Inc()
		if InvalidChannel(result) {
			s.flagUser(ctx, user.ID, result.Reason)
		}
		return
	}

	record.Status = domain.PushStatusSent
	CachePushesTotal.WithLabelValues("sent").Inc()
	logger.Info("Pushed video to device",
		"user_id", user.ID,
		"video_id", video.ID,
		"apns_id", result.ID,
	)

	bookCtx, bookCancel := context.WithTimeout(context.WithoutCancel(ctx), bookkeepingTimeout)
	defer bookCancel()
	if err := s.repos.Users.AppendCachedVideo(bookCtx, user.ID, video.ID); err != nil {
		// delivery already happened, nothing to roll back
		CachePushesTotal.WithLabelValues("bookkeeping_lost").Inc()
		logger.Error("Failed to record cached video after push",
			"user_id", user.ID,
			"video_id", video.ID,
			"error", err,
		)
	}
}

func (s *Service) excludedVideos(ctx context.Context, userID string) (map[string]struct{}, error) {
	rated, err := s.repos.Ratings.RatedVideoIDs(ctx, userID)
	if err != nil {
		return nil, err
	}
	cached, err := s.repos.Users.CachedVideoIDs(ctx, userID)
	if err != nil {
		return nil, err
	}
	exclude := make(map[string]struct{}, len(rated)+len(cached))
	for _, id := range rated {
		exclude[id] = struct{}{}
	}
	for _, id := range cached {
		exclude[id] = struct{}{}
	}
	return exclude, nil
}

func (s *Service) flagUser(ctx context.Context, userID, reason string) {
	if err := s.repos.Users.Flag(ctx, userID, reason); err != nil {
		logger.Error("Failed to flag user with invalid push channel",
			"user_id", userID,
			"error", err,
		)
		return
	}
	logger.Warn("Flagged user with invalid push channel",
		"user_id", userID,
		"reason", reason,
	)
}

func (s *Service) skipPush(record *domain.PushRecord, reason string) {
	record.Status = domain.PushStatusSkipped
	record.Reason = reason
	CachePushesTotal.WithLabelValues("skipped").Inc()
	logger.Info("Skipped scheduled push",
		"user_id", record.UserID,
		"task_id", record.TaskID,
		"reason", reason,
	)
}

func (s *Service) failPush(record *domain.PushRecord, stage string, err error) {
	record.Status = domain.PushStatusFailed
	record.Reason = err.Error()
	record.Context["stage"] = stage
	CachePushesTotal.WithLabelValues("failed").Inc()
	logger.Warn("Scheduled push failed",
		"user_id", record.UserID,
		"task_id", record.TaskID,
		"stage", stage,
		"error", err,
	)
}

func (s *Service) savePushRecord(record *domain.PushRecord) {
	ctx, cancel := context.WithTimeout(context.Background(), bookkeepingTimeout)
	defer cancel()
	if err := s.repos.PushRecords.Save(ctx, record); err != nil {
		logger.Error("Failed to save push record",
			"task_id", record.TaskID,
			"error", err,
		)
	}
}
