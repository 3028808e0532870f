package fleet

// Version is the current version of the go-fleet library
const Version = "1.0.0"

// VersionInfo contains detailed version information
type VersionInfo struct {
	// Version is the semantic version
	Version string
	// Primitive is the process-control contract spoken to the backends
	Primitive string
}

// GetVersion returns the current version information
func GetVersion() VersionInfo {
	return VersionInfo{
		Version:   Version,
		Primitive: "start-stop-daemon",
	}
}
