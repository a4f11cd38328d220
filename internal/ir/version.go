package ir

// Version constants for the op stream schema and engine.
const (
	// IRVersion is the op stream schema version.
	IRVersion = "1"

	// EngineVersion is the akl engine version.
	EngineVersion = "0.1.0"
)
