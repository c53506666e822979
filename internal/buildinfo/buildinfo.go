// Package buildinfo carries version metadata stamped in at link time:
//
//	go build -ldflags "-X github.com/modoterra/hookscope/internal/buildinfo.Version=v0.3.0"
package buildinfo

var (
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

// String formats the metadata for version output.
func String(name string) string {
	return name + " " + Version + " (" + Commit + ") built " + Date
}
