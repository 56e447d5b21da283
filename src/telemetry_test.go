package raspiaprs

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"pgregory.net/rapid"
)

func TestDefaultLayoutHeader(t *testing.T) {
	var header = DefaultLayout(false).Header(testStation)

	assert.Equal(t, []string{
		"N0CALL>APP642::N0CALL   :PARM.CPUTemp,CPULoad,RAMUsed,DiskUsed",
		"N0CALL>APP642::N0CALL   :UNIT.deg.C,pcnt,MB,GB",
		"N0CALL>APP642::N0CALL   :EQNS.0,0.1,0,0,0.001,0,0,0.001,0,0,0.001,0",
	}, header)

	header = DefaultLayout(true).Header(testStation)
	assert.Equal(t, "N0CALL>APP642::N0CALL   :PARM.CPUTemp,CPULoad,RAMUsed,DiskUsed,GPSUsed", header[0])
	assert.Equal(t, "N0CALL>APP642::N0CALL   :EQNS.0,0.1,0,0,0.001,0,0,0.001,0,0,0.001,0,0,1,0", header[2])
}

func TestLayoutKeyChangesWithGPS(t *testing.T) {
	assert.NotEqual(t, DefaultLayout(false).Key(), DefaultLayout(true).Key())
	assert.Equal(t, DefaultLayout(true).Key(), DefaultLayout(true).Key())
}

func TestTelemetryPacket(t *testing.T) {
	var s = TelemetrySample{
		CPUTempC:   52.34,
		CPULoadPct: 12.5,
		MemUsedMB:  345.678,
		DiskUsedGB: 1234.5,
		SatsUsed:   7,
	}

	assert.Equal(t, "N0CALL>APP642:T#042,523,12500,345678,1234500", DefaultLayout(false).Packet(testStation, 42, s))
	assert.Equal(t, "N0CALL>APP642:T#042,523,12500,345678,1234500,7", DefaultLayout(true).Packet(testStation, 42, s))
}

func TestTelemetryFailedReadingsAreZero(t *testing.T) {
	var s = TelemetrySample{CPUTempC: math.NaN(), CPULoadPct: -4, MemUsedMB: math.Inf(1)}
	assert.Equal(t, []int{0, 0, 0, 0}, DefaultLayout(false).Values(s))
}

func TestTelemetryGigabytesOfRAM(t *testing.T) {
	var s = TelemetrySample{MemUsedMB: 1500, DiskUsedGB: 29.7}

	var values = DefaultLayout(false).Values(s)
	assert.Equal(t, 1500000, values[2])
	assert.Equal(t, 29700, values[3])
	assert.InDelta(t, 1500, ramUsedChannel.Coefficients().Apply(values[2]), 0.001)

	s.MemUsedMB = 1e9
	assert.Equal(t, maxTelemetryValue, ramUsedChannel.Raw(s))
}

func TestTelemetryRoundTrip(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		var s = TelemetrySample{
			CPUTempC:   rapid.Float64Range(0, 99999).Draw(t, "temp"),
			CPULoadPct: rapid.Float64Range(0, 999).Draw(t, "load"),
			MemUsedMB:  rapid.Float64Range(0, 16384).Draw(t, "mem"),
			DiskUsedGB: rapid.Float64Range(0, 4096).Draw(t, "disk"),
			SatsUsed:   rapid.IntRange(0, 40).Draw(t, "sats"),
		}

		for _, c := range DefaultLayout(true).Channels {
			var raw = c.Raw(s)
			if raw < 0 || raw > maxTelemetryValue {
				t.Fatalf("%s raw %d out of range", c.Name, raw)
			}

			var decoded = c.Coefficients().Apply(raw)
			if math.Abs(decoded-c.Value(s)) > 1/c.Scale {
				t.Fatalf("%s: %v encoded as %d decodes to %v", c.Name, c.Value(s), raw, decoded)
			}
		}
	})
}
