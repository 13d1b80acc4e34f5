package ir

// Version constants for the cache schema and the tool.
const (
	// SchemaVersion is bumped whenever stored identities change meaning.
	SchemaVersion = "1"

	// Version is the restage release.
	Version = "0.3.0"
)
