// Package version carries the build identity of the execkit binary.
//
// Version, commit, branch and build time are injected with -ldflags:
//
//	go build -ldflags "-X github.com/kbukum/execkit/version.Version=1.0.0" ./cmd/execkit
//
// Missing values fall back to the VCS stamp recorded by the Go toolchain.
package version
