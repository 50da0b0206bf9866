// Package command defines the wasmsnap CLI commands on urfave/cli/v2.
//
//   - root.go: App, global flags, config loading, store and metrics setup
//   - snapshot.go: list, inspect, verify, compact
//   - bundle.go: export, import
//   - config.go: config show/validate, version
//
// Every action fetches the per-invocation env, does its work against the
// store and hands a plain result to the selected output formatter.
package command
