package domain

import "strings"

// SchemaVersion identifies the SpaceAPI schema generation a payload declares.
type SchemaVersion string

const (
	VersionUnknown SchemaVersion = ""
	Version013     SchemaVersion = "0.13"
	Version14      SchemaVersion = "14"
	Version15      SchemaVersion = "15"
)

// DetectVersion returns the newest supported generation among the declared ones.
// Unsupported or malformed declarations yield VersionUnknown.
func DetectVersion(declared []string) SchemaVersion {
	best := VersionUnknown
	for _, v := range declared {
		switch strings.TrimSpace(v) {
		case "15":
			return Version15
		case "14":
			best = Version14
		case "0.13":
			if best == VersionUnknown {
				best = Version013
			}
		}
	}
	return best
}

// Supported reports whether v is one of the generations this package knows how to read.
func (v SchemaVersion) Supported() bool {
	return v != VersionUnknown
}

func (v SchemaVersion) String() string {
	if v == VersionUnknown {
		return "unknown"
	}
	return string(v)
}
