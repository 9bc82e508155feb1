package cachemanager

import (
	"context"
	"proactiveCacher/pkg/logger"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"
)

// ProbeNetworkAvailability sends a silent wake-up to every registered user so
// devices upload fresh connectivity logs. Users whose channel is rejected as
// invalid are flagged, not deleted.
func (s *Service) ProbeNetworkAvailability(ctx context.Context) (sent, failed int) {
	users := s.directory.Snapshot()
	var nSent, nFailed atomic.Int64

	var g errgroup.Group
	g.SetLimit(s.cfg.Concurrency)
	for _, u := range users {
		g.Go(func() error {
			result, err := s.transport.SendSilentWake(ctx, u.PushChannel())
			switch {
			case err != nil:
				nFailed.Add(1)
				CacheNetworkProbesTotal.WithLabelValues("failed").Inc()
				logger.Warn("Network probe failed",
					"user_id", u.ID,
					"error", err,
				)
			case !result.Sent:
				nFailed.Add(1)
				CacheNetworkProbesTotal.WithLabelValues("failed").Inc()
				logger.Warn("Network probe rejected for device",
					"user_id", u.ID,
					"status_code", result.StatusCode,
					"reason", result.Reason,
				)
				if InvalidChannel(result) {
					s.flagUser(ctx, u.ID, result.Reason)
				}
			default:
				nSent.Add(1)
				CacheNetworkProbesTotal.WithLabelValues("sent").Inc()
			}
			return nil
		})
	}
	_ = g.Wait()

	logger.Debug("Network probe round finished",
		"users", len(users),
		"sent", nSent.Load(),
		"failed", nFailed.Load(),
	)
	return int(nSent.Load()), int(nFailed.Load())
}

// ProbeLoop runs ProbeNetworkAvailability on a fixed interval until its
// context ends. It is meant to run under the supervisor.
type ProbeLoop struct {
	svc      *Service
	interval time.Duration
}

func NewProbeLoop(svc *Service, interval time.Duration) *ProbeLoop {
	if interval <= 0 {
		interval = DefaultSlotDuration
	}
	return &ProbeLoop{svc: svc, interval: interval}
}

func (p *ProbeLoop) Serve(ctx context.Context) error {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			roundCtx, cancel := context.WithTimeout(ctx, p.interval)
			p.svc.ProbeNetworkAvailability(roundCtx)
			cancel()
		}
	}
}

func (p *ProbeLoop) String() string {
	return "network-probe"
}
