// Package version carries the build version, set with
// -ldflags "-X phredmean/internal/version.Version=...".
package version

var Version = "dev"
