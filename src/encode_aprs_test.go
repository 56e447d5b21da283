package raspiaprs

import (
	"math"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

var testStation = Station{Call: "N0CALL", Symbol: Symbol{Table: '/', Code: 'n'}, Passcode: 13023}

func TestZuluTimestamp(t *testing.T) {
	var utc = time.Date(2024, 3, 5, 14, 7, 59, 0, time.UTC)
	assert.Equal(t, "051407z", ZuluTimestamp(utc))

	var local = time.Date(2024, 3, 5, 15, 7, 0, 0, time.FixedZone("CET", 3600))
	assert.Equal(t, "051407z", ZuluTimestamp(local))
}

func TestEncodeAltitude(t *testing.T) {
	tests := []struct {
		name     string
		meters   float64
		expected string
	}{
		{name: "sea level", meters: 0, expected: "/A=000000"},
		{name: "100 m", meters: 100, expected: "/A=000328"},
		{name: "below sea level", meters: -10, expected: "/A=-00033"},
		{name: "clamped low", meters: -200000, expected: "/A=-99999"},
		{name: "clamped high", meters: 500000, expected: "/A=999999"},
		{name: "NaN", meters: math.NaN(), expected: "/A=000000"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, EncodeAltitude(tt.meters))
		})
	}
}

func TestEncodeAltitudeIsFixedWidth(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		var m = rapid.Float64().Draw(t, "meters")
		var s = EncodeAltitude(m)
		if len(s) != 9 {
			t.Fatalf("%v encoded as %q", m, s)
		}
	})
}

func TestEncodeSpeedAndCourse(t *testing.T) {
	assert.Equal(t, "000", EncodeSpeed(0))
	assert.Equal(t, "019", EncodeSpeed(10))
	assert.Equal(t, "000", EncodeSpeed(-5))
	assert.Equal(t, "999", EncodeSpeed(1e6))

	assert.Equal(t, "000", EncodeCourse(0))
	assert.Equal(t, "090", EncodeCourse(90.4))
	assert.Equal(t, "000", EncodeCourse(359.6))
	assert.Equal(t, "270", EncodeCourse(-90))
	assert.Equal(t, "010", EncodeCourse(370))
}

func TestSpeedAndCourseAreThreeDigits(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		var mps = rapid.Float64().Draw(t, "mps")
		var deg = rapid.Float64().Draw(t, "deg")

		var spd = EncodeSpeed(mps)
		var cse = EncodeCourse(deg)

		if len(spd) != 3 || len(cse) != 3 {
			t.Fatalf("speed %v -> %q, course %v -> %q", mps, spd, deg, cse)
		}

		var c, err = strconv.Atoi(cse)
		if err != nil || c < 0 || c > 359 {
			t.Fatalf("course %v -> %q", deg, cse)
		}

		var kmh = SpeedKMH(mps)
		if kmh < 0 || kmh > 999 {
			t.Fatalf("speed %v -> %d km/h", mps, kmh)
		}
	})
}

func TestSpeedKMHTruncates(t *testing.T) {
	tests := []struct {
		mps      float64
		expected int
	}{
		{mps: 0, expected: 0},
		{mps: 0.14, expected: 0},
		{mps: 0.27, expected: 0},
		{mps: 0.28, expected: 1},
		{mps: 10, expected: 36},
		{mps: 16.6, expected: 59},
		{mps: -3, expected: 0},
		{mps: 1000, expected: 999},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, SpeedKMH(tt.mps), "%v m/s", tt.mps)
	}
}

func TestBuildPositionPacket(t *testing.T) {
	var st = Station{Call: "N0CALL-9", Symbol: Symbol{Table: '/', Code: '>'}}
	var p = PositionSample{
		Time:      time.Date(2024, 3, 5, 14, 7, 0, 0, time.UTC),
		Latitude:  42.662139,
		Longitude: -71.365553,
		Altitude:  100,
		Speed:     10,
		Course:    90.4,
	}

	assert.Equal(t, "N0CALL-9>APP642:/051407z4239.73N/07121.93W>090/019/A=000328 hello", BuildPositionPacket(st, p, " hello"))

	// Course is meaningless when stopped.
	p.Speed = 0
	assert.Equal(t, "N0CALL-9>APP642:/051407z4239.73N/07121.93W>000/000/A=000328", BuildPositionPacket(st, p, ""))
}

func TestBuildTelemetryPacket(t *testing.T) {
	assert.Equal(t, "N0CALL>APP642:T#007,523,1500,0", BuildTelemetryPacket(testStation, 7, 523, 1500, -3))
	assert.Equal(t, "N0CALL>APP642:T#998", BuildTelemetryPacket(testStation, 998))
}

func TestBuildHeaderPackets(t *testing.T) {
	var parm, unit, eqns = BuildHeaderPackets(testStation,
		[]string{"A", "B"},
		[]string{"u1", "u2"},
		[]Coefficients{{0, 0.1, 0}, {0, 1, -5}})

	assert.Equal(t, "N0CALL>APP642::N0CALL   :PARM.A,B", parm)
	assert.Equal(t, "N0CALL>APP642::N0CALL   :UNIT.u1,u2", unit)
	assert.Equal(t, "N0CALL>APP642::N0CALL   :EQNS.0,0.1,0,0,1,-5", eqns)
}

func TestAddresseeIsNineCharacters(t *testing.T) {
	for _, call := range []string{"", "N0CALL", "N0CALL-15", "TOOLONGCALL-1"} {
		require.Len(t, addressee(call), 9, call)
	}
	assert.Equal(t, "TOOLONGCA", addressee("TOOLONGCALL-1"))
}

func TestBuildStatusPacket(t *testing.T) {
	assert.Equal(t, "N0CALL>APP642:>hi there", BuildStatusPacket(testStation, "hi there"))
}

func TestStationWithSymbol(t *testing.T) {
	var moved = testStation.WithSymbol(DefaultFastSymbol)
	assert.Equal(t, `\>`, moved.Symbol.String())
	assert.Equal(t, "/n", testStation.Symbol.String())
}
