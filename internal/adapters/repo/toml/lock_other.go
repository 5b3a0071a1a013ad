//go:build !unix

package toml

// lockExclusive is a no-op where flock is unavailable; only the in-process
// path lock applies.
func lockExclusive(string) (func(), error) {
	return func() {}, nil
}
