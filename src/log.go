package raspiaprs

/*------------------------------------------------------------------
 *
 * Purpose:	Save transmitted packets to a log file.
 *
 * Description: CSV, one row per line handed to the server, for
 *		easy reading and later processing.
 *
 *		There are two alternatives here.
 *
 *		-L logfile		Specify full file path.
 *
 *		-l logdir		Daily names will be created here.
 *
 *		Use one or the other but not both.
 *
 *------------------------------------------------------------------*/

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/charmbracelet/log"
)

var transmitLogHeader = []string{"utime", "isotime", "kind", "ok", "error", "packet"}

// UTC date, so all stations agree where a day starts.
var dailyLogName = mustStrftime("%Y-%m-%d.log")

// TransmitLog is a TransmitObserver writing CSV.
type TransmitLog struct {
	dailyNames bool
	path       string // directory if dailyNames, otherwise the file
	logger     *log.Logger

	mu       sync.Mutex
	file     *os.File
	openName string
}

// OpenTransmitLog prepares a log.  With dailyNames, path is a directory
// that is created if needed; otherwise it is the file name.
func OpenTransmitLog(dailyNames bool, path string, logger *log.Logger) (*TransmitLog, error) {
	if dailyNames {
		var stat, err = os.Stat(path)
		switch {
		case err == nil && !stat.IsDir():
			return nil, fmt.Errorf("log file location %q is not a directory", path)
		case err != nil:
			// parent directory must exist.  No "mkdir -p".
			if mkErr := os.Mkdir(path, 0o755); mkErr != nil {
				return nil, fmt.Errorf("failed to create log file location %q: %w", path, mkErr)
			}
			logger.Info("Log file location has been created", "path", path)
		}
	}

	return &TransmitLog{dailyNames: dailyNames, path: path, logger: logger}, nil
}

func (l *TransmitLog) ObserveTransmit(tx Transmission) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.write(tx); err != nil {
		l.logger.Warn("Can't write log file", "err", err)
	}
}

func (l *TransmitLog) write(tx Transmission) error {
	var now = tx.Time.UTC()

	var fullPath = l.path
	if l.dailyNames {
		var fname = dailyLogName.FormatString(now)

		// Close current file if name has changed
		if l.file != nil && fname != l.openName {
			l.closeLocked()
		}
		fullPath = filepath.Join(l.path, fname)
	}

	if l.file == nil {
		// Header only if this will be the first line.
		var _, statErr = os.Stat(fullPath)
		var alreadyThere = statErr == nil

		var f, err = os.OpenFile(fullPath, os.O_RDWR|os.O_APPEND|os.O_CREATE, 0o644)
		if err != nil {
			return err
		}
		l.logger.Info("Opening log file", "path", fullPath)

		l.file = f
		l.openName = filepath.Base(fullPath)

		if !alreadyThere {
			var w = csv.NewWriter(l.file)
			w.Write(transmitLogHeader) //nolint:errcheck
			w.Flush()
			if err := w.Error(); err != nil {
				return err
			}
		}
	}

	var errText string
	if tx.Err != nil {
		errText = tx.Err.Error()
	}

	var w = csv.NewWriter(l.file)
	w.Write([]string{ //nolint:errcheck
		strconv.FormatInt(now.Unix(), 10),
		now.Format(time.RFC3339),
		string(tx.Kind),
		strconv.FormatBool(tx.Err == nil),
		errText,
		tx.Line,
	})
	w.Flush()

	return w.Error()
}

func (l *TransmitLog) closeLocked() {
	if l.file != nil {
		l.file.Close()
		l.file = nil
		l.openName = ""
	}
}

// Close is called when exiting.
func (l *TransmitLog) Close() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.closeLocked()
}
