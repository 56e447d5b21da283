package raspiaprs

import (
	"fmt"
	"io"

	"github.com/charmbracelet/log"
)

// NewLogger is the one place loggers are made.  level is one of debug,
// info, warn, error.
func NewLogger(w io.Writer, level string) (*log.Logger, error) {
	var lvl, err = log.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("%w: log level %q: %w", ErrConfig, level, err)
	}

	return log.NewWithOptions(w, log.Options{
		Level:           lvl,
		Prefix:          "raspiaprs",
		ReportTimestamp: true,
		TimeFormat:      "2006-01-02 15:04:05",
	}), nil
}
