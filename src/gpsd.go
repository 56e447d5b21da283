package raspiaprs

/*------------------------------------------------------------------
 *
 * Purpose:   	Obtain position and satellite information from gpsd.
 *
 * Description:	Connect to the daemon, ask it to stream JSON, and keep
 *		the most recent TPV (fix) and SKY (satellites) reports.
 *		If gpsd goes away, keep trying to reconnect.
 *
 * References:	https://gpsd.gitlab.io/gpsd/gpsd_json.html
 *
 *---------------------------------------------------------------*/

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"strconv"
	"time"

	"github.com/charmbracelet/log"
)

const (
	DefaultGPSDPort    = 2947
	gpsdWatchCommand   = `?WATCH={"enable":true,"json":true};` + "\n"
	gpsdReconnectDelay = 5 * time.Second
)

type gpsdReport struct {
	Class string `json:"class"`

	// TPV
	Mode     int       `json:"mode"`
	Time     time.Time `json:"time"`
	Lat      float64   `json:"lat"`
	Lon      float64   `json:"lon"`
	Alt      float64   `json:"alt"`
	AltMSL   float64   `json:"altMSL"`
	Speed    float64   `json:"speed"`
	Track    float64   `json:"track"`
	Magtrack float64   `json:"magtrack"`

	// SKY
	USat       *int `json:"uSat"`
	NSat       *int `json:"nSat"`
	Satellites []struct {
		Used bool `json:"used"`
	} `json:"satellites"`
}

// GPSDProvider is a PositionSource and SatelliteSource fed by gpsd.
type GPSDProvider struct {
	*fixStore

	addr   string
	dialer Dialer
	logger *log.Logger
}

func NewGPSDProvider(host string, port int, maxAge time.Duration, logger *log.Logger) *GPSDProvider {
	return &GPSDProvider{
		fixStore: newFixStore(maxAge),
		addr:     net.JoinHostPort(host, strconv.Itoa(port)),
		dialer:   &net.Dialer{Timeout: 10 * time.Second},
		logger:   logger,
	}
}

// Run reads from gpsd until ctx is done.
func (g *GPSDProvider) Run(ctx context.Context) error {
	for {
		var err = g.session(ctx)

		if ctx.Err() != nil {
			return ctx.Err()
		}

		g.logger.Warn("Lost gpsd", "addr", g.addr, "err", err)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(gpsdReconnectDelay):
		}
	}
}

func (g *GPSDProvider) session(ctx context.Context) error {
	var conn, err = g.dialer.DialContext(ctx, "tcp", g.addr)
	if err != nil {
		return err
	}
	defer conn.Close()

	var done = make(chan struct{})
	defer close(done)

	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()

	if _, err = io.WriteString(conn, gpsdWatchCommand); err != nil {
		return err
	}

	g.logger.Info("Connected to gpsd", "addr", g.addr)

	return g.consume(conn)
}

func (g *GPSDProvider) consume(r io.Reader) error {
	var scanner = bufio.NewScanner(r)
	for scanner.Scan() {
		g.handleReport(scanner.Bytes(), time.Now())
	}

	if err := scanner.Err(); err != nil {
		return err
	}
	return errors.New("gpsd closed the connection")
}

func (g *GPSDProvider) handleReport(line []byte, now time.Time) {
	var rep gpsdReport
	if err := json.Unmarshal(line, &rep); err != nil {
		g.logger.Debug("Unparseable gpsd report", "err", err)
		return
	}

	switch rep.Class {
	case "TPV":
		if rep.Mode < 2 {
			g.logger.Debug("gpsd: no fix")
			return
		}

		var p = PositionSample{
			Time:      rep.Time,
			Latitude:  rep.Lat,
			Longitude: rep.Lon,
			Speed:     rep.Speed,
			Course:    rep.Track,
		}
		if p.Course == 0 {
			p.Course = rep.Magtrack
		}
		if rep.Mode >= 3 {
			p.Altitude = rep.AltMSL
			if p.Altitude == 0 {
				p.Altitude = rep.Alt
			}
		}
		if p.Time.IsZero() {
			p.Time = now
		}

		g.setFix(p, now)

	case "SKY":
		var v SkyView
		for _, s := range rep.Satellites {
			v.Visible++
			if s.Used {
				v.Used++
			}
		}
		if rep.USat != nil {
			v.Used = *rep.USat
		}
		if rep.NSat != nil {
			v.Visible = *rep.NSat
		}

		// gpsd sends SKY reports with no satellite data in between.
		if rep.USat == nil && rep.NSat == nil && len(rep.Satellites) == 0 {
			return
		}

		g.setSky(v, now)
	}
}
