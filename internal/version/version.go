// Package version holds build metadata injected with -ldflags "-X".
package version

var (
	Version = "dev"
	Commit  = "none"
)

func String() string {
	if Commit == "" || Commit == "none" {
		return Version
	}
	return Version + " (" + Commit + ")"
}
