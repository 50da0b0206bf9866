// Package config defines the wasmsnap configuration.
//
// Configuration is loaded by confloader from a YAML file and WASMSNAP_*
// environment variables on top of Default(). Sections:
//
//	snapshot  strategy, ids, page size, zip factor, verification
//	storage   backend selection and Badger tuning
//	bundle    export sealing
//	log       level and format
//	metrics   Prometheus textfile output
package config
