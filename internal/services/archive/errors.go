package archive

import (
	"errors"
	"fmt"
)

var (
	ErrNoEntries     = errors.New("archive has no entries")
	ErrUnknownMethod = errors.New("unknown archive method")
)

// ArchiveError reports a failed archive build. Entry is empty when the
// failure is not tied to a single file.
type ArchiveError struct {
	Entry string
	Err   error
}

func (e *ArchiveError) Error() string {
	if e.Entry == "" {
		return fmt.Sprintf("archive: %v", e.Err)
	}
	return fmt.Sprintf("archive entry %s: %v", e.Entry, e.Err)
}

func (e *ArchiveError) Unwrap() error { return e.Err }
