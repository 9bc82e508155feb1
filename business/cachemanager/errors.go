package cachemanager

import "errors"

var (
	// ErrDataUnavailable means there are no users or videos to build a model
	// from. It produces an empty decision, not a failure.
	ErrDataUnavailable = errors.New("no users or videos to recommend from")

	// ErrModelBuild wraps a failure of the factorization routine.
	ErrModelBuild = errors.New("recommendation model build failed")

	// ErrNoRecommendation means the model had nothing left to push for a user.
	ErrNoRecommendation = errors.New("no recommendation available")

	// ErrTransport wraps push delivery failures.
	ErrTransport = errors.New("push delivery failed")

	// ErrPersistence wraps store reads and writes made by the engine.
	ErrPersistence = errors.New("cache manager persistence failed")

	// ErrNoHitRateData means no app-usage log reported cached videos yet.
	ErrNoHitRateData = errors.New("no cache-relevant app usage logs")
)
