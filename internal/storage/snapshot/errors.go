package snapshot

import (
	"errors"
	"io"

	"github.com/yndnr/wasmsnap-go/internal/core/domain"
	"github.com/yndnr/wasmsnap-go/internal/storage"
	"github.com/yndnr/wasmsnap-go/internal/storage/archive"
	"github.com/yndnr/wasmsnap-go/internal/storage/difflog"
	"github.com/yndnr/wasmsnap-go/internal/storage/rle"
)

// classify maps a low-level error onto the snapshot error taxonomy. Domain
// errors pass through unchanged.
func classify(err error, what string) error {
	if err == nil {
		return nil
	}

	var de *domain.DomainError
	if errors.As(err, &de) {
		return err
	}

	switch {
	case errors.Is(err, storage.ErrNotFound):
		return domain.ErrSnapshotNotFound.WithDetails(what).Wrap(err)
	case errors.Is(err, io.EOF),
		errors.Is(err, io.ErrUnexpectedEOF),
		errors.Is(err, archive.ErrMalformedToken),
		errors.Is(err, rle.ErrCorrupt),
		errors.Is(err, difflog.ErrTruncatedRecord):
		return domain.ErrFormatCorruption.WithDetails(what).Wrap(err)
	default:
		return domain.ErrIOFailure.WithDetails(what).Wrap(err)
	}
}

func isNotFound(err error) bool {
	return errors.Is(err, storage.ErrNotFound)
}
