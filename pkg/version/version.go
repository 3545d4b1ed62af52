// Package version holds the build metadata stamped into release binaries
// with `-ldflags "-X ..."`.
package version

// Unset is the value of fields that weren't stamped at link time, such as
// in `go test` builds.
const Unset = "dev"

var (
	// Version is the release tag the binary was built from.
	Version = Unset

	// Commit is the git revision the binary was built from.
	Commit = Unset
)

// String returns the version with the commit appended when it's known.
func String() string {
	if Commit == Unset {
		return Version
	}
	return Version + " (" + Commit + ")"
}
