// Package version holds the build version of the codegen binaries.
package version

// Version is overridden at build time with -ldflags "-X github.com/getpup/codegen/pkg/version.Version=...".
var Version = "0.1.0-dev"
