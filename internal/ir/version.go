package ir

// Version constants for cached data and the engine.
const (
	// CacheVersion is bumped whenever TransformResult semantics change,
	// invalidating persisted cache rows.
	CacheVersion = "1"

	// EngineVersion is the bakecss engine version.
	EngineVersion = "0.1.0"
)
