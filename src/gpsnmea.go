package raspiaprs

/*------------------------------------------------------------------
 *
 * Purpose:   	Obtain position from a GPS receiver with a serial
 *		port and NMEA output.
 *
 * Description:	We only care about two sentence types.
 *
 *		RMC	Time, position, speed, course.
 *		GGA	Position, altitude, satellites used.
 *
 *		The talker id (GP, GN, GL, ...) doesn't matter.
 *
 *---------------------------------------------------------------*/

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/pkg/term"
)

const DefaultNMEABaud = 4800

var errNMEAChecksum = errors.New("NMEA checksum mismatch")

// NMEAProvider is a PositionSource and SatelliteSource fed by a serial GPS.
type NMEAProvider struct {
	*fixStore

	device string
	baud   int
	logger *log.Logger
	open   func(device string, baud int) (io.ReadCloser, error)

	current PositionSample
	lastRMC time.Time
}

func NewNMEAProvider(device string, baud int, maxAge time.Duration, logger *log.Logger) *NMEAProvider {
	if baud <= 0 {
		baud = DefaultNMEABaud
	}
	return &NMEAProvider{
		fixStore: newFixStore(maxAge),
		device:   device,
		baud:     baud,
		logger:   logger,
		open:     openSerialPort,
	}
}

func openSerialPort(device string, baud int) (io.ReadCloser, error) {
	return term.Open(device, term.Speed(baud), term.RawMode)
}

// Run reads sentences until ctx is done, reopening the port after errors.
func (n *NMEAProvider) Run(ctx context.Context) error {
	for {
		var err = n.session(ctx)

		if ctx.Err() != nil {
			return ctx.Err()
		}

		n.logger.Warn("GPS serial port problem", "device", n.device, "err", err)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(gpsdReconnectDelay):
		}
	}
}

func (n *NMEAProvider) session(ctx context.Context) error {
	var port, err = n.open(n.device, n.baud)
	if err != nil {
		return err
	}
	defer port.Close()

	var done = make(chan struct{})
	defer close(done)

	go func() {
		select {
		case <-ctx.Done():
			port.Close()
		case <-done:
		}
	}()

	var scanner = bufio.NewScanner(port)
	for scanner.Scan() {
		n.handleSentence(scanner.Text(), time.Now())
	}

	if err := scanner.Err(); err != nil {
		return err
	}
	return io.EOF
}

func (n *NMEAProvider) handleSentence(sentence string, now time.Time) {
	var body, err = removeChecksum(strings.TrimSpace(sentence))
	if err != nil {
		n.logger.Debug("Bad NMEA sentence", "sentence", sentence, "err", err)
		return
	}

	var fields = strings.Split(body, ",")
	if len(fields[0]) != 6 || fields[0][0] != '$' {
		return
	}

	switch fields[0][3:] {
	case "RMC":
		var p, ok = parseRMC(fields)
		if !ok {
			return
		}
		p.Altitude = n.current.Altitude
		n.current = p
		n.lastRMC = now
		n.setFix(p, now)

	case "GGA":
		var p, used, ok = parseGGA(fields, now)
		if !ok {
			return
		}

		if n.fresh(n.lastRMC, now) {
			// RMC has better speed, course and time.  Only take altitude.
			n.current.Altitude = p.Altitude
		} else {
			n.current = deriveMotion(n.current, p)
		}

		n.setFix(n.current, now)
		n.setSky(SkyView{Used: used, Visible: used}, now)
	}
}

/*------------------------------------------------------------------
 *
 * Name:        removeChecksum
 *
 * Purpose:     Validate checksum and remove before further processing.
 *
 * Inputs:	sent	- NMEA sentence, e.g. $GPRMC,...*hh
 *
 * Returns:	Sentence without the *hh part.
 *
 *----------------------------------------------------------------*/

func removeChecksum(sent string) (string, error) {
	var body, cs, found = strings.Cut(sent, "*")
	if !found {
		return "", errors.New("missing NMEA checksum")
	}
	if len(body) < 1 || body[0] != '$' {
		return "", errors.New("NMEA sentence must start with $")
	}

	var want, err = strconv.ParseUint(cs, 16, 8)
	if err != nil {
		return "", fmt.Errorf("bad NMEA checksum %q: %w", cs, err)
	}

	var got byte
	for i := 1; i < len(body); i++ {
		got ^= body[i]
	}

	if got != byte(want) {
		return "", errNMEAChecksum
	}

	return body, nil
}

// $GPRMC,hhmmss.ss,A,ddmm.mm,N,dddmm.mm,W,knots,course,ddmmyy,...
func parseRMC(f []string) (PositionSample, bool) {
	if len(f) < 10 || f[2] != "A" {
		return PositionSample{}, false
	}

	var lat, latOK = latitudeFromNMEA(f[3], firstByte(f[4]))
	var lon, lonOK = longitudeFromNMEA(f[5], firstByte(f[6]))
	if !latOK || !lonOK {
		return PositionSample{}, false
	}

	var knots, _ = strconv.ParseFloat(f[7], 64)
	var course, _ = strconv.ParseFloat(f[8], 64) // empty when stationary

	var p = PositionSample{
		Latitude:  lat,
		Longitude: lon,
		Speed:     knots * metersPerKnot,
		Course:    course,
	}

	if len(f[1]) >= 6 && len(f[9]) == 6 {
		if t, err := time.Parse("020106150405", f[9]+f[1][:6]); err == nil {
			p.Time = t
		}
	}

	return p, true
}

// $GPGGA,hhmmss.ss,ddmm.mm,N,dddmm.mm,W,quality,nsat,hdop,alt,M,...
func parseGGA(f []string, now time.Time) (PositionSample, int, bool) {
	if len(f) < 10 || f[6] == "" || f[6] == "0" {
		return PositionSample{}, 0, false
	}

	var lat, latOK = latitudeFromNMEA(f[2], firstByte(f[3]))
	var lon, lonOK = longitudeFromNMEA(f[4], firstByte(f[5]))
	if !latOK || !lonOK {
		return PositionSample{}, 0, false
	}

	var used, _ = strconv.Atoi(f[7])
	var alt, _ = strconv.ParseFloat(f[9], 64)

	return PositionSample{
		Time:      now.UTC(),
		Latitude:  lat,
		Longitude: lon,
		Altitude:  alt,
	}, used, true
}

func firstByte(s string) byte {
	if s == "" {
		return 0
	}
	return s[0]
}
