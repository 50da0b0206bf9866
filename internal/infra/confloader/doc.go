// Package confloader loads layered configuration with koanf.
//
// Sources, highest priority first:
//
//  1. Values set by the caller (command-line flags) via LoadMap
//  2. Environment variables (WASMSNAP_SECTION_KEY)
//  3. A YAML configuration file
//  4. Defaults already present in the target struct
package confloader
