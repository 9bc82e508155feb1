package user

import (
	"context"
	"errors"
	"fmt"
	"proactiveCacher/domain"
	"proactiveCacher/pkg/logger"
	"time"

	"github.com/go-playground/validator/v10"
)

var (
	ErrUserExists   = errors.New("user is already registered")
	ErrInvalidUser  = errors.New("invalid userID")
	ErrInvalidInput = errors.New("invalid request")
)

// UserRepository contract interface
type UserRepository interface {
	Create(ctx context.Context, user *domain.User) error
	FindByID(ctx context.Context, id string) (domain.User, error)
	FindAll(ctx context.Context) ([]domain.User, error)
	Delete(ctx context.Context, id string) error
}

type LogRepository interface {
	CreateConnectivityLogs(ctx context.Context, logs []domain.ConnectivityLog) error
	CreateUsageLogs(ctx context.Context, logs []domain.AppUsageLog) error
}

// DecisionMaker is the caching engine as seen from log uploads.
type DecisionMaker interface {
	DecideForUser(ctx context.Context, userID string) (domain.CachingDecision, error)
}

type userService struct {
	userRepo UserRepository
	logRepo  LogRepository
	registry *Registry
	decider  DecisionMaker
	validate *validator.Validate
	// decisionTimeout bounds the background decision after an app-log upload.
	decisionTimeout time.Duration
}

func NewUserService(
	userRepo UserRepository,
	logRepo LogRepository,
	registry *Registry,
	decider DecisionMaker,
	validate *validator.Validate,
) *userService {
	return &userService{
		userRepo:        userRepo,
		logRepo:         logRepo,
		registry:        registry,
		decider:         decider,
		validate:        validate,
		decisionTimeout: 2 * time.Minute,
	}
}

type RegisterRequest struct {
	UserID      string `json:"userID" validate:"required,max=255"`
	DeviceToken string `json:"deviceToken" validate:"omitempty,max=255"`
}

// Register creates a user. The device token defaults to the user ID, which is
// what devices registered before explicit tokens existed send.
func (s *userService) Register(ctx context.Context, req RegisterRequest) (domain.User, error) {
	if err := s.validate.Struct(req); err != nil {
		logger.Warn("Invalid registration request", "error", err)
		return domain.User{}, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	if s.registry.Contains(req.UserID) {
		logger.Warn("User already registered", "user_id", req.UserID)
		return domain.User{}, ErrUserExists
	}
	if _, err := s.userRepo.FindByID(ctx, req.UserID); err == nil {
		logger.Warn("User already registered", "user_id", req.UserID)
		return domain.User{}, ErrUserExists
	} else if !errors.Is(err, domain.ErrNotFound) {
		logger.Error("Failed to look up user", "user_id", req.UserID, "error", err)
		return domain.User{}, err
	}

	newUser := domain.User{
		ID:          req.UserID,
		DeviceToken: req.DeviceToken,
	}
	if newUser.DeviceToken == "" {
		newUser.DeviceToken = req.UserID
	}

	if err := s.userRepo.Create(ctx, &newUser); err != nil {
		if errors.Is(err, domain.ErrDuplicate) {
			// a concurrent registration won the insert
			logger.Warn("User already registered", "user_id", req.UserID)
			return domain.User{}, ErrUserExists
		}
		logger.Error("Failed to create new user", "user_id", req.UserID, "error", err)
		return domain.User{}, err
	}
	s.registry.Add(newUser)

	logger.Info("Registration successful", "user_id", newUser.ID)
	return newUser, nil
}

// Authenticate resolves a device identity against the registry.
func (s *userService) Authenticate(userID string) (domain.User, error) {
	if userID == "" {
		return domain.User{}, ErrInvalidUser
	}
	u, ok := s.registry.Get(userID)
	if !ok {
		return domain.User{}, ErrInvalidUser
	}
	return u, nil
}

func (s *userService) UploadConnectivityLogs(ctx context.Context, userID string, logs []domain.ConnectivityLog) error {
	if len(logs) == 0 {
		return fmt.Errorf("%w: no logs in body", ErrInvalidInput)
	}
	for i := range logs {
		logs[i].ID = 0
		logs[i].UserID = userID
		if err := s.validate.Struct(uploadedConnectivityLogOf(logs[i])); err != nil {
			return fmt.Errorf("%w: log %d: %v", ErrInvalidInput, i, err)
		}
	}

	if err := s.logRepo.CreateConnectivityLogs(ctx, logs); err != nil {
		logger.Error("Error saving user logs", "user_id", userID, "error", err)
		return err
	}
	logger.Info("User logs saved", "user_id", userID, "count", len(logs))
	return nil
}

// UploadAppUsageLogs stores the logs and then makes a caching decision for
// the user in the background; the upload never waits on the decision.
func (s *userService) UploadAppUsageLogs(ctx context.Context, userID string, logs []domain.AppUsageLog) error {
	if len(logs) == 0 {
		return fmt.Errorf("%w: no logs in body", ErrInvalidInput)
	}
	for i := range logs {
		logs[i].ID = 0
		logs[i].UserID = userID
		if err := s.validate.Struct(uploadedUsageLogOf(logs[i])); err != nil {
			return fmt.Errorf("%w: log %d: %v", ErrInvalidInput, i, err)
		}
	}

	if err := s.logRepo.CreateUsageLogs(ctx, logs); err != nil {
		logger.Error("Error saving app usage logs", "user_id", userID, "error", err)
		return err
	}
	logger.Info("App usage logs saved", "user_id", userID, "count", len(logs))

	if s.decider != nil {
		go s.decide(context.WithoutCancel(ctx), userID)
	}
	return nil
}

func (s *userService) decide(ctx context.Context, userID string) {
	ctx, cancel := context.WithTimeout(ctx, s.decisionTimeout)
	defer cancel()

	logger.Info("Making a caching decision", "user_id", userID)
	if _, err := s.decider.DecideForUser(ctx, userID); err != nil {
		logger.Warn("Caching decision after app log upload failed",
			"user_id", userID,
			"error", err,
		)
	}
}

// DeleteUser removes the user and its logs. Its ratings stay behind without
// an owner until PurgeOrphanedRatings runs.
func (s *userService) DeleteUser(ctx context.Context, id string) error {
	if err := s.userRepo.Delete(ctx, id); err != nil {
		logger.Error("Failed to delete user", "user_id", id, "error", err)
		return err
	}
	s.registry.Remove(id)
	return nil
}

func (s *userService) GetAllUsers(ctx context.Context) ([]domain.User, error) {
	users, err := s.userRepo.FindAll(ctx)
	if err != nil {
		logger.Error("Failed to get all users", "error", err)
		return nil, err
	}
	return users, nil
}

type uploadedConnectivityLog struct {
	Timestamp         time.Time `validate:"required"`
	NetworkStatus     string    `validate:"required,max=32"`
	BatteryPercentage *int      `validate:"omitempty,min=0,max=100"`
	Latitude          *float64  `validate:"omitempty,latitude"`
	Longitude         *float64  `validate:"omitempty,longitude"`
}

func uploadedConnectivityLogOf(l domain.ConnectivityLog) uploadedConnectivityLog {
	return uploadedConnectivityLog{
		Timestamp:         l.Timestamp,
		NetworkStatus:     l.NetworkStatus,
		BatteryPercentage: l.BatteryPercentage,
		Latitude:          l.Latitude,
		Longitude:         l.Longitude,
	}
}

type uploadedUsageLog struct {
	AppOpeningTime              time.Time `validate:"required"`
	WatchedVideosCount          int       `validate:"min=0"`
	WatchedCachedVideosCount    *int      `validate:"omitempty,min=0"`
	NotWatchedCachedVideosCount *int      `validate:"omitempty,min=0"`
}

func uploadedUsageLogOf(l domain.AppUsageLog) uploadedUsageLog {
	return uploadedUsageLog{
		AppOpeningTime:              l.AppOpeningTime,
		WatchedVideosCount:          l.WatchedVideosCount,
		WatchedCachedVideosCount:    l.WatchedCachedVideosCount,
		NotWatchedCachedVideosCount: l.NotWatchedCachedVideosCount,
	}
}
