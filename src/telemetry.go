package raspiaprs

/*------------------------------------------------------------------
 *
 * Purpose:   	Station health telemetry: what the channels are, how
 *		physical readings become the integers in a T# packet,
 *		and the PARM / UNIT / EQNS metadata receivers need to
 *		turn them back.
 *
 * Description:	Each channel has a fixed scale.  The raw value is
 *		round(reading * scale), clamped to [0, maxTelemetryValue],
 *		and the published equation is 0, 1/scale, 0.
 *
 *			CPUTemp		deg.C	x10
 *			CPULoad		pcnt	x1000
 *			RAMUsed		MB	x1000
 *			DiskUsed	GB	x1000
 *			GPSUsed		sats	x1	(only with a GPS)
 *
 *---------------------------------------------------------------*/

import (
	"math"
	"strings"
)

// Large enough for a few TB of disk at x1000.
const maxTelemetryValue = 99_999_999

// TelemetrySample holds physical readings.  A failed read is 0.
type TelemetrySample struct {
	CPUTempC    float64
	CPULoadPct  float64 // 5 minute load average as percent of all cores
	MemUsedMB   float64
	DiskUsedGB  float64
	SatsUsed    int
	SatsVisible int
}

// TelemetryChannel describes one analog value.
type TelemetryChannel struct {
	Name  string
	Unit  string
	Scale float64
	Value func(TelemetrySample) float64
}

// Raw converts the channel's reading to the transmitted integer.
func (c TelemetryChannel) Raw(s TelemetrySample) int {
	var v = math.Round(finiteOrZero(c.Value(s)) * c.Scale)
	return int(clampFloat(v, 0, maxTelemetryValue))
}

func (c TelemetryChannel) Coefficients() Coefficients {
	return Coefficients{A: 0, B: 1 / c.Scale, C: 0}
}

var (
	cpuTempChannel = TelemetryChannel{Name: "CPUTemp", Unit: "deg.C", Scale: 10,
		Value: func(s TelemetrySample) float64 { return s.CPUTempC }}
	cpuLoadChannel = TelemetryChannel{Name: "CPULoad", Unit: "pcnt", Scale: 1000,
		Value: func(s TelemetrySample) float64 { return s.CPULoadPct }}
	ramUsedChannel = TelemetryChannel{Name: "RAMUsed", Unit: "MB", Scale: 1000,
		Value: func(s TelemetrySample) float64 { return s.MemUsedMB }}
	diskUsedChannel = TelemetryChannel{Name: "DiskUsed", Unit: "GB", Scale: 1000,
		Value: func(s TelemetrySample) float64 { return s.DiskUsedGB }}
	gpsUsedChannel = TelemetryChannel{Name: "GPSUsed", Unit: "sats", Scale: 1,
		Value: func(s TelemetrySample) float64 { return float64(s.SatsUsed) }}
)

// TelemetryLayout is the ordered set of channels currently reported.
type TelemetryLayout struct {
	Channels []TelemetryChannel
}

// DefaultLayout is the host health channels, plus satellites used when
// a GPS is reporting.
func DefaultLayout(withGPS bool) TelemetryLayout {
	var ch = []TelemetryChannel{cpuTempChannel, cpuLoadChannel, ramUsedChannel, diskUsedChannel}
	if withGPS {
		ch = append(ch, gpsUsedChannel)
	}
	return TelemetryLayout{Channels: ch}
}

// Key identifies the layout.  When it changes the header must be resent.
func (l TelemetryLayout) Key() string {
	var names = make([]string, len(l.Channels))
	for i, c := range l.Channels {
		names[i] = c.Name
	}
	return strings.Join(names, ",")
}

// Values returns the raw integers in channel order.
func (l TelemetryLayout) Values(s TelemetrySample) []int {
	var v = make([]int, len(l.Channels))
	for i, c := range l.Channels {
		v[i] = c.Raw(s)
	}
	return v
}

// Packet builds the T# packet for one sample.
func (l TelemetryLayout) Packet(st Station, seq int, s TelemetrySample) string {
	return BuildTelemetryPacket(st, seq, l.Values(s)...)
}

// Header builds the PARM, UNIT and EQNS packets matching Packet.
func (l TelemetryLayout) Header(st Station) []string {
	var names = make([]string, len(l.Channels))
	var units = make([]string, len(l.Channels))
	var eqns = make([]Coefficients, len(l.Channels))

	for i, c := range l.Channels {
		names[i] = c.Name
		units[i] = c.Unit
		eqns[i] = c.Coefficients()
	}

	var parm, unit, eqn = BuildHeaderPackets(st, names, units, eqns)

	return []string{parm, unit, eqn}
}
