package raspiaprs

/*------------------------------------------------------------------
 *
 * Purpose:   	Build the free text comment for position reports.
 *
 * Description:	<MMDVM frequency info>,<user comment> <OS info>
 *
 *		The MMDVM part is only there on hotspots (Pi-Star,
 *		WPSD) where /etc/mmdvmhost exists.
 *
 *---------------------------------------------------------------*/

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

// MMDVMInfo is what we show from an MMDVMHost configuration.
type MMDVMInfo struct {
	RXFrequency int // Hz
	TXFrequency int // Hz
	ColorCode   int
	DMREnabled  bool
}

// ReadMMDVMInfo parses the ini style MMDVMHost configuration.
func ReadMMDVMInfo(path string) (MMDVMInfo, error) {
	var f, err = os.Open(path)
	if err != nil {
		return MMDVMInfo{}, err
	}
	defer f.Close()

	return parseMMDVMInfo(f)
}

func parseMMDVMInfo(r io.Reader) (MMDVMInfo, error) {
	var info MMDVMInfo
	var section string

	var scanner = bufio.NewScanner(r)
	for scanner.Scan() {
		var line = strings.TrimSpace(scanner.Text())

		if strings.HasPrefix(line, "[") && strings.HasSuffix(line, "]") {
			section = line[1 : len(line)-1]
			continue
		}

		var key, value, found = strings.Cut(line, "=")
		if !found {
			continue
		}
		key = strings.TrimSpace(key)
		value = strings.TrimSpace(value)

		switch {
		case section == "Info" && key == "RXFrequency":
			info.RXFrequency, _ = strconv.Atoi(value)
		case section == "Info" && key == "TXFrequency":
			info.TXFrequency, _ = strconv.Atoi(value)
		case section == "DMR" && key == "ColorCode":
			info.ColorCode, _ = strconv.Atoi(value)
		case section == "DMR" && key == "Enable":
			info.DMREnabled = value == "1"
		}
	}

	return info, scanner.Err()
}

// String is e.g. "438.800000MHz (-0.000000MHz) CC1".
func (m MMDVMInfo) String() string {
	var tx = float64(m.TXFrequency) / 1e6
	var rx = float64(m.RXFrequency) / 1e6

	var s = fmt.Sprintf("%.6fMHz", tx)

	switch {
	case m.TXFrequency > m.RXFrequency:
		s += fmt.Sprintf(" (%.6fMHz)", rx-tx)
	case m.TXFrequency < m.RXFrequency:
		s += fmt.Sprintf(" (+%.6fMHz)", rx-tx)
	}

	if m.DMREnabled {
		s += fmt.Sprintf(" CC%d", m.ColorCode)
	}

	return s
}

var lineBreaks = strings.NewReplacer("\r\n", " ", "\r", " ", "\n", " ")

// PositionComment puts the pieces together, skipping empty ones.
// Line breaks become spaces; each packet must stay one APRS-IS line.
func PositionComment(mmdvm string, comment string, osInfo string) string {
	mmdvm = lineBreaks.Replace(mmdvm)
	comment = lineBreaks.Replace(comment)
	osInfo = lineBreaks.Replace(osInfo)

	var parts []string
	if mmdvm != "" {
		parts = append(parts, mmdvm+",")
	}
	if comment != "" {
		parts = append(parts, comment)
	}
	if osInfo != "" {
		parts = append(parts, osInfo)
	}
	return strings.Join(parts, " ")
}
