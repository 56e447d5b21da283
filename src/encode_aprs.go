package raspiaprs

/*------------------------------------------------------------------
 *
 * Purpose:   	Construct APRS packets from components.
 *
 * Description:	Every field has a fixed width no matter what the
 *		sensors hand us.  Out of range values are clamped and
 *		garbage (NaN, Inf) becomes 0 so the column layout of a
 *		packet never shifts.
 *
 * References:	APRS Protocol Reference, chapters 6, 7, 13 and 16.
 *
 *---------------------------------------------------------------*/

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/lestrrat-go/strftime"
)

// ToCall is the destination (TOCALL) registered for this software.
const ToCall = "APP642"

const (
	metersPerFoot  = 0.3048
	metersPerKnot  = 0.51444
	kmhPerMPS      = 3.6
	minAltitudeFt  = -99999
	maxAltitudeFt  = 999999
	maxSpeedKnots  = 999
	addresseeWidth = 9
)

// DDHHMM followed by z for zulu.
var zuluTimestamp = mustStrftime("%d%H%Mz")

func mustStrftime(pattern string) *strftime.Strftime {
	var f, err = strftime.New(pattern)
	if err != nil {
		panic(err)
	}
	return f
}

// Symbol is the two character icon selector: table id (or overlay) and
// symbol code.
type Symbol struct {
	Table byte
	Code  byte
}

func (s Symbol) String() string {
	return string([]byte{s.Table, s.Code})
}

// Station is the fixed identity of the transmitter.
type Station struct {
	Call     string // Including SSID, e.g. N0CALL-9
	Symbol   Symbol
	Passcode int
}

// WithSymbol returns a copy of the station showing a different icon.
func (st Station) WithSymbol(sym Symbol) Station {
	st.Symbol = sym
	return st
}

// PositionSample is one fix.  Zero values mean "unknown".
type PositionSample struct {
	Time      time.Time
	Latitude  float64 // degrees
	Longitude float64 // degrees
	Altitude  float64 // meters
	Speed     float64 // meters / second
	Course    float64 // degrees true
}

// IsZero reports a sample with no usable coordinates.
func (p PositionSample) IsZero() bool {
	return p.Latitude == 0 && p.Longitude == 0
}

// ZuluTimestamp formats t as DDHHMMz in UTC.
func ZuluTimestamp(t time.Time) string {
	return zuluTimestamp.FormatString(t.UTC())
}

// EncodeAltitude gives "/A=" followed by 6 characters of feet.
func EncodeAltitude(meters float64) string {
	var ft = math.Round(finiteOrZero(meters) / metersPerFoot)
	ft = clampFloat(ft, minAltitudeFt, maxAltitudeFt)

	return fmt.Sprintf("/A=%06d", int(ft))
}

// EncodeSpeed gives ground speed in knots, 3 digits.
func EncodeSpeed(mps float64) string {
	var knots = math.Round(finiteOrZero(mps) / metersPerKnot)
	knots = clampFloat(knots, 0, maxSpeedKnots)

	return fmt.Sprintf("%03d", int(knots))
}

// EncodeCourse gives course in degrees, 000 - 359.
func EncodeCourse(deg float64) string {
	var cse = math.Round(math.Mod(finiteOrZero(deg), 360))
	if cse < 0 {
		cse += 360
	}
	if cse >= 360 {
		cse -= 360
	}

	return fmt.Sprintf("%03d", int(clampFloat(cse, 0, 359)))
}

// SpeedKMH truncates ground speed to whole km/h, 0 - 999.  A parked
// receiver wandering under 1 km/h stays at 0.
func SpeedKMH(mps float64) int {
	return int(clampFloat(math.Trunc(finiteOrZero(mps)*kmhPerMPS), 0, 999))
}

func packetHeader(st Station) string {
	return st.Call + ">" + ToCall + ":"
}

/*------------------------------------------------------------------
 *
 * Name:        BuildPositionPacket
 *
 * Purpose:     Position report with timestamp, course/speed and altitude.
 *
 *		CALL>APP642:/DDHHMMzDDMM.mmN/DDDMM.mmW>CCC/SSS/A=AAAAAAcomment
 *
 * Inputs:	st	- Call and symbol.
 *		p	- The fix.  p.Time must be set by the caller.
 *		comment	- Appended as is.
 *
 * Description:	Course means nothing when we aren't moving so it
 *		goes out as 000 whenever the speed field is 000.
 *
 *----------------------------------------------------------------*/

func BuildPositionPacket(st Station, p PositionSample, comment string) string {
	var spd = EncodeSpeed(p.Speed)

	var cse = "000"
	if spd != "000" {
		cse = EncodeCourse(p.Course)
	}

	var sb strings.Builder

	sb.WriteString(packetHeader(st))
	sb.WriteByte('/')
	sb.WriteString(ZuluTimestamp(p.Time))
	sb.WriteString(EncodeLatitude(p.Latitude))
	sb.WriteByte(st.Symbol.Table)
	sb.WriteString(EncodeLongitude(p.Longitude))
	sb.WriteByte(st.Symbol.Code)
	sb.WriteString(cse)
	sb.WriteByte('/')
	sb.WriteString(spd)
	sb.WriteString(EncodeAltitude(p.Altitude))
	sb.WriteString(comment)

	return sb.String()
}

// BuildTelemetryPacket gives CALL>APP642:T#SSS,v1,v2,...
// Values should already be scaled; negatives are sent as 0.
func BuildTelemetryPacket(st Station, seq int, values ...int) string {
	var sb strings.Builder

	sb.WriteString(packetHeader(st))
	fmt.Fprintf(&sb, "T#%03d", ((seq%1000)+1000)%1000)

	for _, v := range values {
		sb.WriteByte(',')
		sb.WriteString(strconv.Itoa(max(v, 0)))
	}

	return sb.String()
}

// Coefficients are one channel's entry in EQNS.  The receiver shows
// A*v*v + B*v + C for raw value v.
type Coefficients struct {
	A, B, C float64
}

func (c Coefficients) Apply(v int) float64 {
	var x = float64(v)
	return c.A*x*x + c.B*x + c.C
}

func (c Coefficients) String() string {
	return formatCoefficient(c.A) + "," + formatCoefficient(c.B) + "," + formatCoefficient(c.C)
}

func formatCoefficient(x float64) string {
	return strconv.FormatFloat(x, 'f', -1, 64)
}

// The message addressee is always exactly 9 characters.
func addressee(call string) string {
	return fmt.Sprintf("%-*.*s", addresseeWidth, addresseeWidth, call)
}

/*------------------------------------------------------------------
 *
 * Name:        BuildHeaderPackets
 *
 * Purpose:     Telemetry metadata, sent as messages to ourselves.
 *
 *		CALL>APP642::CALL     :PARM.name1,name2,...
 *		CALL>APP642::CALL     :UNIT.unit1,unit2,...
 *		CALL>APP642::CALL     :EQNS.a,b,c,a,b,c,...
 *
 * Description:	Order must match the order of values in T# packets.
 *
 *----------------------------------------------------------------*/

func BuildHeaderPackets(st Station, names []string, units []string, eqns []Coefficients) (string, string, string) {
	var prefix = packetHeader(st) + ":" + addressee(st.Call) + ":"

	var coeffs = make([]string, len(eqns))
	for i, c := range eqns {
		coeffs[i] = c.String()
	}

	return prefix + "PARM." + strings.Join(names, ","),
		prefix + "UNIT." + strings.Join(units, ","),
		prefix + "EQNS." + strings.Join(coeffs, ",")
}

// BuildStatusPacket gives CALL>APP642:>text
func BuildStatusPacket(st Station, text string) string {
	return packetHeader(st) + ">" + text
}
