package engine

import "errors"

var (
	// ErrInitializationFailed is returned by Initialize when the first
	// configuration load fails. The engine stays in the failed state.
	ErrInitializationFailed = errors.New("engine initialization failed")
	ErrAlreadyInitialized   = errors.New("engine already initialized")
	// ErrCycleInProgress is returned by RunOnce while another cycle runs.
	ErrCycleInProgress = errors.New("collection cycle already in progress")
	// ErrQueueCorrupted marks an asset snapshot that cannot be iterated.
	ErrQueueCorrupted = errors.New("asset queue corrupted")
	// ErrNotReady is returned by operations that need an initialized engine.
	ErrNotReady = errors.New("engine not ready")
)
