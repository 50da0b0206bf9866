package storage

import (
	"slices"
	"strconv"
	"strings"
)

// Kind identifies what an artifact holds.
type Kind string

const (
	KindSnap Kind = "snap"
	KindBin  Kind = "bin"
	KindMeta Kind = "meta"
)

// ArtifactName returns the artifact name for snapshot id and kind.
func ArtifactName(id uint32, kind Kind) string {
	return strconv.FormatUint(uint64(id), 10) + "." + string(kind)
}

// SnapName returns "<id>.snap".
func SnapName(id uint32) string { return ArtifactName(id, KindSnap) }

// BinName returns "<id>.bin".
func BinName(id uint32) string { return ArtifactName(id, KindBin) }

// MetaName returns "<id>.meta".
func MetaName(id uint32) string { return ArtifactName(id, KindMeta) }

// ParseArtifact splits an artifact name into snapshot id and kind.
func ParseArtifact(name string) (uint32, Kind, bool) {
	base, ext, ok := strings.Cut(name, ".")
	if !ok {
		return 0, "", false
	}
	kind := Kind(ext)
	switch kind {
	case KindSnap, KindBin, KindMeta:
	default:
		return 0, "", false
	}
	id, err := strconv.ParseUint(base, 10, 32)
	if err != nil {
		return 0, "", false
	}
	return uint32(id), kind, true
}

// SnapshotIDs returns the distinct ids that have a .snap artifact, ascending.
func SnapshotIDs(infos []Info) []uint32 {
	var ids []uint32
	for _, info := range infos {
		if id, kind, ok := ParseArtifact(info.Name); ok && kind == KindSnap {
			ids = append(ids, id)
		}
	}
	slices.Sort(ids)
	return ids
}
