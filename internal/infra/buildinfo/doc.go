// Package buildinfo exposes the version of the cidmesh binaries.
//
// Version, Commit and BuildTime are injected via ldflags:
//
//	go build -ldflags "-X github.com/yndnr/cidmesh-go/internal/infra/buildinfo.Version=v0.3.0"
//
// The Go version is read from the binary itself.
package buildinfo
