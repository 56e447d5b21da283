package raspiaprs

/*------------------------------------------------------------------
 *
 * Purpose:	Small integer counters that survive a restart.
 *
 * Description:	Two of these exist.  The telemetry sequence number
 *		(0 - 998) and the scheduler tick (0 - 3599).
 *		Each one lives in its own text file holding a single
 *		decimal number.  A missing or garbled file simply
 *		means "start from 0".
 *
 *---------------------------------------------------------------*/

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/charmbracelet/log"
)

const (
	SequenceModulus = 999
	TickModulus     = 3600
)

// LoadCounter reads the value stored at path.  It never fails; anything
// unexpected comes back as 0.
func LoadCounter(path string) int {
	var data, err = os.ReadFile(path)
	if err != nil {
		return 0
	}

	var n, convErr = strconv.Atoi(strings.TrimSpace(string(data)))
	if convErr != nil || n < 0 {
		return 0
	}

	return n
}

// IncrementAndPersist computes (current + 1) mod modulus, writes it to path
// and returns it.  A failed write is logged and the new value is returned
// anyway.
func IncrementAndPersist(path string, current int, modulus int, logger *log.Logger) int {
	var next = (current + 1) % modulus
	if next < 0 {
		next += modulus
	}

	if err := writeCounter(path, next); err != nil && logger != nil {
		logger.Warn("Could not persist counter", "path", path, "value", next, "err", err)
	}

	return next
}

// Write to a temporary file next to the target and rename, so a crash
// mid-write leaves either the old or the new number, never half of one.
func writeCounter(path string, value int) error {
	var tmp, err = os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*")
	if err != nil {
		return err
	}

	var tmpName = tmp.Name()

	if _, err = tmp.WriteString(strconv.Itoa(value)); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}

	if err = tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}

	if err = os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return err
	}

	return nil
}

// Counter owns one persisted value.  Nothing else writes the file.
type Counter struct {
	path    string
	modulus int
	value   int
	logger  *log.Logger
}

// OpenCounter loads the counter stored at path.  A stored value outside
// [0, modulus) is folded back into range.
func OpenCounter(path string, modulus int, logger *log.Logger) *Counter {
	return &Counter{
		path:    path,
		modulus: modulus,
		value:   LoadCounter(path) % modulus,
		logger:  logger,
	}
}

func (c *Counter) Value() int {
	return c.value
}

// Next advances the counter, flushes it, and returns the new value.
func (c *Counter) Next() int {
	c.value = IncrementAndPersist(c.path, c.value, c.modulus, c.logger)
	return c.value
}

// BeaconState is everything the scheduler remembers across restarts.
type BeaconState struct {
	Sequence *Counter
	Tick     *Counter
}

const (
	sequenceFileName = "raspiaprs.seq"
	tickFileName     = "raspiaprs.tmr"
)

// OpenBeaconState loads both counters from dir.
func OpenBeaconState(dir string, logger *log.Logger) *BeaconState {
	return &BeaconState{
		Sequence: OpenCounter(filepath.Join(dir, sequenceFileName), SequenceModulus, logger),
		Tick:     OpenCounter(filepath.Join(dir, tickFileName), TickModulus, logger),
	}
}
