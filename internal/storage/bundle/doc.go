// Package bundle packs snapshot artifacts into a single portable file.
//
// Layout:
//
//	magic    8 bytes  "WSNBNDL1"
//	flags    1 byte   bit 0: sealed
//	cipher   1 byte   adaptive.CipherType id, 0 when not sealed
//	salt    16 bytes  present only when sealed
//	body              zstd(tar), wrapped in an adaptive sealed stream
//	                  when sealed
//
// Tar entries are artifact names (see storage.ParseArtifact); anything else
// is rejected on import.
package bundle
