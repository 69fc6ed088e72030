package sequencer

import (
	"errors"
	"fmt"

	"github.com/Southclaws/fault"
	"github.com/Southclaws/fault/fmsg"
	"github.com/Southclaws/fault/ftag"
)

var (
	ErrInvalidNote         = errors.New("invalid note")
	ErrNoteNotInLegend     = errors.New("note value not in legend")
	ErrNoteNotFound        = errors.New("note not found")
	ErrDuplicateNote       = errors.New("duplicate note")
	ErrInvalidConfig       = errors.New("invalid sequencer config")
	ErrUnknownInstrument   = errors.New("unknown instrument")
	ErrDuplicateInstrument = errors.New("instrument already exists")
	ErrPresetNotFound      = errors.New("preset not found")
	ErrPatternIndex        = errors.New("pattern index out of range")
	ErrPresetIndex         = errors.New("preset index out of range")
	ErrRoomClosed          = errors.New("room closed")
)

func invalid(err error, format string, args ...any) error {
	return fault.Wrap(err,
		fmsg.With(fmt.Sprintf(format, args...)),
		ftag.With(ftag.InvalidArgument),
	)
}

func notFound(err error, format string, args ...any) error {
	return fault.Wrap(err,
		fmsg.With(fmt.Sprintf(format, args...)),
		ftag.With(ftag.NotFound),
	)
}

func duplicate(err error, format string, args ...any) error {
	return fault.Wrap(err,
		fmsg.With(fmt.Sprintf(format, args...)),
		ftag.With(ftag.AlreadyExists),
	)
}

// IsStale reports whether err is a stale-reference failure (missing
// instrument, pattern or note). Those are skipped, never fatal.
func IsStale(err error) bool {
	return ftag.Get(err) == ftag.NotFound
}
