package cachemanager

import (
	"math"
	"proactiveCacher/domain"
	"time"
)

const (
	DefaultSlotDuration  = 15 * time.Minute
	DefaultWiFiThreshold = 0.5
	day                  = 24 * time.Hour
)

// SlotProbability is the share of WiFi samples seen in one time-of-day slot.
// A slot without samples is undefined and never clears a threshold.
type SlotProbability struct {
	Probability float64
	Samples     int
}

func (s SlotProbability) Defined() bool {
	return s.Samples > 0
}

// WiFiPredictor buckets connectivity history into fixed time-of-day slots,
// aggregated across days, and picks the next slot likely to have WiFi.
type WiFiPredictor struct {
	SlotDuration time.Duration
	Threshold    float64
	Location     *time.Location
}

func NewWiFiPredictor(slot time.Duration, threshold float64, loc *time.Location) WiFiPredictor {
	if slot <= 0 || day%slot != 0 {
		slot = DefaultSlotDuration
	}
	if threshold < 0 || threshold > 1 {
		threshold = DefaultWiFiThreshold
	}
	if loc == nil {
		loc = time.Local
	}
	return WiFiPredictor{SlotDuration: slot, Threshold: threshold, Location: loc}
}

func (p WiFiPredictor) NumSlots() int {
	return int(day / p.SlotDuration)
}

func (p WiFiPredictor) startOfDay(t time.Time) time.Time {
	y, m, d := t.In(p.Location).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, p.Location)
}

// SlotIndex is the 0-based slot t falls in, counted from the start of its
// own calendar day.
func (p WiFiPredictor) SlotIndex(t time.Time) int {
	idx := int(t.Sub(p.startOfDay(t)) / p.SlotDuration)
	// a 25h DST day would otherwise overflow the last slot
	return min(idx, p.NumSlots()-1)
}

// SlotProbabilities returns one entry per slot of the day.
func (p WiFiPredictor) SlotProbabilities(logs []domain.ConnectivityLog) []SlotProbability {
	wifi := make([]int, p.NumSlots())
	out := make([]SlotProbability, p.NumSlots())
	for _, l := range logs {
		idx := p.SlotIndex(l.Timestamp)
		out[idx].Samples++
		if l.OnWiFi() {
			wifi[idx]++
		}
	}
	for i := range out {
		if out[i].Samples > 0 {
			out[i].Probability = float64(wifi[i]) / float64(out[i].Samples)
		}
	}
	return out
}

func (p WiFiPredictor) qualifies(s SlotProbability) bool {
	return s.Defined() && s.Probability > p.Threshold
}

// NextPushTime returns the start of the first slot from now to the end of
// today whose probability clears the threshold; failing that the first such
// slot earlier in the day, tomorrow; failing that the next slot boundary.
func (p WiFiPredictor) NextPushTime(logs []domain.ConnectivityLog, now time.Time) time.Time {
	probs := p.SlotProbabilities(logs)
	start := p.startOfDay(now)
	current := int(math.Ceil(float64(now.Sub(start)) / float64(p.SlotDuration)))

	for i := current; i < len(probs); i++ {
		if p.qualifies(probs[i]) {
			return start.Add(time.Duration(i) * p.SlotDuration)
		}
	}

	tomorrow := start.AddDate(0, 0, 1)
	for i := 0; i < current && i < len(probs); i++ {
		if p.qualifies(probs[i]) {
			return tomorrow.Add(time.Duration(i) * p.SlotDuration)
		}
	}

	return start.Add(time.Duration(current) * p.SlotDuration)
}
