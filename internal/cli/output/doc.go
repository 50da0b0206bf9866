// Package output renders command results for the wasmsnap CLI.
//
// Every command builds a plain value and hands it to a Formatter chosen by
// the --output flag: table for people, json and yaml for scripts. Types that
// know their own tabular shape implement Tabular.
package output
