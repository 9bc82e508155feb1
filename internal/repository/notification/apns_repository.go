package notification

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"proactiveCacher/domain"
	"proactiveCacher/pkg/logger"
	"time"

	"github.com/sideshow/apns2"
	"github.com/sideshow/apns2/payload"
	"github.com/sideshow/apns2/token"
	gobreaker "github.com/sony/gobreaker/v2"
)

const networkAvailableMessage = "Network Available"

var errUpstream = errors.New("apns upstream error")

type APNsConfig struct {
	KeyPath    string
	KeyID      string
	TeamID     string
	Topic      string
	Production bool
	// Expiration is how long APNs keeps an undelivered push.
	Expiration time.Duration
	// FailureThreshold is the number of consecutive failures before the
	// breaker opens.
	FailureThreshold uint32
	OpenTimeout      time.Duration
}

func DefaultAPNsConfig() APNsConfig {
	return APNsConfig{
		Topic:            "com.DavidPasztor.ProactiveCacher",
		Expiration:       time.Hour,
		FailureThreshold: 5,
		OpenTimeout:      30 * time.Second,
	}
}

type pusher interface {
	PushWithContext(ctx apns2.Context, n *apns2.Notification) (*apns2.Response, error)
}

// APNsRepository sends silent background pushes through APNs. Connection
// errors and APNs 5xx/429 answers trip the breaker; per-device rejections
// do not.
type APNsRepository struct {
	cfg     APNsConfig
	client  pusher
	breaker *gobreaker.CircuitBreaker[*apns2.Response]
	now     func() time.Time
}

func NewAPNsRepository(cfg APNsConfig) (*APNsRepository, error) {
	authKey, err := token.AuthKeyFromFile(cfg.KeyPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load APNs auth key: %w", err)
	}

	client := apns2.NewTokenClient(&token.Token{
		AuthKey: authKey,
		KeyID:   cfg.KeyID,
		TeamID:  cfg.TeamID,
	})
	if cfg.Production {
		client = client.Production()
	} else {
		client = client.Development()
	}

	return newAPNsRepository(cfg, client), nil
}

func newAPNsRepository(cfg APNsConfig, client pusher) *APNsRepository {
	def := DefaultAPNsConfig()
	if cfg.Topic == "" {
		cfg.Topic = def.Topic
	}
	if cfg.Expiration <= 0 {
		cfg.Expiration = def.Expiration
	}
	if cfg.FailureThreshold == 0 {
		cfg.FailureThreshold = def.FailureThreshold
	}
	if cfg.OpenTimeout <= 0 {
		cfg.OpenTimeout = def.OpenTimeout
	}

	threshold := cfg.FailureThreshold
	breaker := gobreaker.NewCircuitBreaker[*apns2.Response](gobreaker.Settings{
		Name:        "apns",
		MaxRequests: 1,
		Timeout:     cfg.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("Push transport breaker changed state",
				"breaker", name,
				"from", from.String(),
				"to", to.String(),
			)
		},
	})

	return &APNsRepository{
		cfg:     cfg,
		client:  client,
		breaker: breaker,
		now:     time.Now,
	}
}

// SendPush delivers a silent content-available push carrying data to the
// device channel.
func (r *APNsRepository) SendPush(ctx context.Context, channel string, data map[string]any) (domain.DeliveryResult, error) {
	p := payload.NewPayload().ContentAvailable()
	for k, v := range data {
		p = p.Custom(k, v)
	}
	return r.send(ctx, channel, p)
}

// SendSilentWake asks the device to wake up and upload fresh logs.
func (r *APNsRepository) SendSilentWake(ctx context.Context, channel string) (domain.DeliveryResult, error) {
	p := payload.NewPayload().ContentAvailable().Custom("message", networkAvailableMessage)
	return r.send(ctx, channel, p)
}

func (r *APNsRepository) send(ctx context.Context, channel string, p *payload.Payload) (domain.DeliveryResult, error) {
	n := &apns2.Notification{
		DeviceToken: channel,
		Topic:       r.cfg.Topic,
		Expiration:  r.now().Add(r.cfg.Expiration),
		Priority:    apns2.PriorityLow,
		PushType:    apns2.PushTypeBackground,
		Payload:     p,
	}

	res, err := r.breaker.Execute(func() (*apns2.Response, error) {
		res, err := r.client.PushWithContext(ctx, n)
		if err != nil {
			return nil, err
		}
		if res.StatusCode >= http.StatusInternalServerError || res.StatusCode == http.StatusTooManyRequests {
			return res, fmt.Errorf("%w: %d %s", errUpstream, res.StatusCode, res.Reason)
		}
		return res, nil
	})
	if res != nil {
		return domain.DeliveryResult{
			Device:     channel,
			Sent:       res.Sent(),
			StatusCode: res.StatusCode,
			Reason:     res.Reason,
			ID:         res.ApnsID,
		}, nil
	}
	if err != nil {
		return domain.DeliveryResult{}, fmt.Errorf("apns push: %w", err)
	}
	return domain.DeliveryResult{}, errors.New("apns push: empty response")
}
