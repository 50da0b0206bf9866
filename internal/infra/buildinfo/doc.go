// Package buildinfo reports the wasmsnap build.
//
// Values are injected via ldflags:
//
//	go build -ldflags "-X github.com/yndnr/wasmsnap-go/internal/infra/buildinfo.Version=v0.3.0"
package buildinfo
