package cachemanager

import (
	"proactiveCacher/domain"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func at(day, hour, minute int) time.Time {
	return time.Date(2024, time.March, day, hour, minute, 0, 0, time.UTC)
}

func connLog(t time.Time, status string) domain.ConnectivityLog {
	return domain.ConnectivityLog{UserID: "u1", Timestamp: t, NetworkStatus: status}
}

// wifiInSlots returns WiFi samples in each slot on three different days.
func wifiInSlots(slots ...int) []domain.ConnectivityLog {
	var logs []domain.ConnectivityLog
	for day := 1; day <= 3; day++ {
		for _, s := range slots {
			ts := at(day, 0, 0).Add(time.Duration(s)*15*time.Minute + 3*time.Minute)
			logs = append(logs, connLog(ts, domain.NetworkStatusWiFi))
		}
	}
	return logs
}

func TestWiFiPredictor_SlotProbabilities(t *testing.T) {
	p := NewWiFiPredictor(15*time.Minute, 0.5, time.UTC)
	require.Equal(t, 96, p.NumSlots())

	t.Run("single wifi slot", func(t *testing.T) {
		probs := p.SlotProbabilities(wifiInSlots(40))
		for i, s := range probs {
			if i == 40 {
				assert.True(t, s.Defined())
				assert.Equal(t, 1.0, s.Probability)
				assert.Equal(t, 3, s.Samples)
				continue
			}
			assert.False(t, s.Defined(), "slot %d", i)
		}
	})

	t.Run("mixed samples aggregate across days", func(t *testing.T) {
		logs := []domain.ConnectivityLog{
			connLog(at(1, 8, 1), domain.NetworkStatusWiFi),
			connLog(at(2, 8, 14), "Cellular"),
			connLog(at(3, 8, 7), domain.NetworkStatusWiFi),
			connLog(at(4, 8, 0), "Offline"),
		}
		probs := p.SlotProbabilities(logs)
		assert.Equal(t, 4, probs[32].Samples)
		assert.InDelta(t, 0.5, probs[32].Probability, 1e-9)
	})

	t.Run("no logs leaves every slot undefined", func(t *testing.T) {
		for _, s := range p.SlotProbabilities(nil) {
			assert.False(t, s.Defined())
		}
	})
}

func TestWiFiPredictor_NextPushTime(t *testing.T) {
	p := NewWiFiPredictor(15*time.Minute, 0.5, time.UTC)

	tests := []struct {
		name string
		logs []domain.ConnectivityLog
		now  time.Time
		want time.Time
	}{
		{
			name: "later slot today",
			logs: wifiInSlots(40, 41, 42, 43, 44),
			now:  at(10, 5, 0),
			want: at(10, 10, 0),
		},
		{
			name: "earliest qualifying slot wins",
			logs: wifiInSlots(30, 40),
			now:  at(10, 5, 0),
			want: at(10, 7, 30),
		},
		{
			name: "current partial slot is skipped",
			logs: wifiInSlots(20),
			now:  at(10, 5, 1),
			want: at(11, 5, 0),
		},
		{
			name: "wraps to tomorrow",
			logs: wifiInSlots(40),
			now:  at(10, 12, 0),
			want: at(11, 10, 0),
		},
		{
			name: "no logs falls back to next boundary",
			logs: nil,
			now:  at(10, 5, 7),
			want: at(10, 5, 15),
		},
		{
			name: "fallback at end of day is midnight",
			logs: nil,
			now:  at(10, 23, 50),
			want: at(11, 0, 0),
		},
		{
			name: "after last slot searches tomorrow",
			logs: wifiInSlots(40),
			now:  at(10, 23, 50),
			want: at(11, 10, 0),
		},
		{
			name: "probability equal to threshold does not qualify",
			logs: []domain.ConnectivityLog{
				connLog(at(1, 10, 0), domain.NetworkStatusWiFi),
				connLog(at(2, 10, 5), "Cellular"),
			},
			now:  at(10, 5, 7),
			want: at(10, 5, 15),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := p.NextPushTime(tt.logs, tt.now)
			assert.True(t, tt.want.Equal(got), "want %s, got %s", tt.want, got)
			assert.False(t, got.Before(tt.now.Truncate(15*time.Minute)))
		})
	}
}

func TestWiFiPredictor_NextPushTimeWithinWiFiWindow(t *testing.T) {
	p := NewWiFiPredictor(15*time.Minute, 0.5, time.UTC)
	now := at(10, 5, 0)

	got := p.NextPushTime(wifiInSlots(40, 41, 42, 43, 44), now)

	assert.False(t, got.Before(at(10, 10, 0)))
	assert.True(t, got.Before(at(10, 11, 15)))
}

func TestWiFiPredictor_UsesConfiguredZone(t *testing.T) {
	zone := time.FixedZone("UTC+2", 2*60*60)
	p := NewWiFiPredictor(time.Hour, 0.5, zone)

	// 08:30 UTC is 10:30 local, slot 10
	logs := []domain.ConnectivityLog{connLog(time.Date(2024, 3, 1, 8, 30, 0, 0, time.UTC), domain.NetworkStatusWiFi)}
	assert.Equal(t, 10, p.SlotIndex(logs[0].Timestamp))

	now := time.Date(2024, 3, 5, 3, 0, 0, 0, zone)
	got := p.NextPushTime(logs, now)
	assert.True(t, time.Date(2024, 3, 5, 10, 0, 0, 0, zone).Equal(got), "got %s", got)
}

func TestNewWiFiPredictor_Defaults(t *testing.T) {
	p := NewWiFiPredictor(7*time.Minute, 2, nil)
	assert.Equal(t, DefaultSlotDuration, p.SlotDuration)
	assert.Equal(t, DefaultWiFiThreshold, p.Threshold)
	assert.Equal(t, time.Local, p.Location)
}
