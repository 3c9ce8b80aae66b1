package stompy

import (
	"io"

	"github.com/rs/zerolog"
)

// newDisabledLogger returns a zerolog.Logger that discards everything;
// the package's tests pass it wherever a logger is taken. Dial and
// NewConnector take a zerolog.Logger argument and substitute no default
// of their own. Connection and Connector log through that value rather
// than reaching for the standard log package directly, matching how the
// rest of this corpus wires structured, leveled logging.
func newDisabledLogger() zerolog.Logger {
	return zerolog.New(io.Discard).Level(zerolog.Disabled)
}
