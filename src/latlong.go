package raspiaprs

/*------------------------------------------------------------------
 *
 * Purpose:   	Various functions for dealing with latitude and longitude.
 *
 *---------------------------------------------------------------*/

import (
	"fmt"
	"math"
	"strconv"

	"github.com/golang/geo/s1"
	"github.com/golang/geo/s2"
)

const earthRadiusMeters = 6371008.8

// Anything that isn't a real number is treated like a failed sensor read.
func finiteOrZero(x float64) float64 {
	if math.IsNaN(x) || math.IsInf(x, 0) {
		return 0
	}
	return x
}

func clampFloat(x, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, x))
}

/*------------------------------------------------------------------
 *
 * Name:        EncodeLatitude
 *
 * Purpose:     Convert numeric latitude to string for transmission.
 *
 * Inputs:      dlat		- Floating point degrees.
 *
 * Returns:	String in format ddmm.mm[NS]
 *		Always exactly 8 characters, with leading zeros,
 *		because the position report has fixed width fields.
 *
 *----------------------------------------------------------------*/

func EncodeLatitude(dlat float64) string {
	dlat = clampFloat(finiteOrZero(dlat), -90, 90)

	var hemi = 'N'
	if dlat < 0 {
		dlat = -dlat
		hemi = 'S'
	}

	var ideg, smin = degreesMinutes(dlat)

	return fmt.Sprintf("%02d%s%c", ideg, smin, hemi)
}

/*------------------------------------------------------------------
 *
 * Name:        EncodeLongitude
 *
 * Purpose:     Convert numeric longitude to string for transmission.
 *
 * Returns:	String in format dddmm.mm[EW], exactly 9 characters.
 *
 *----------------------------------------------------------------*/

func EncodeLongitude(dlong float64) string {
	dlong = clampFloat(finiteOrZero(dlong), -180, 180)

	var hemi = 'E'
	if dlong < 0 {
		dlong = -dlong
		hemi = 'W'
	}

	var ideg, smin = degreesMinutes(dlong)

	return fmt.Sprintf("%03d%s%c", ideg, smin, hemi)
}

// degreesMinutes splits a non-negative angle into whole degrees and
// minutes formatted as mm.mm.
func degreesMinutes(d float64) (int, string) {
	var ideg = int(d)
	var dmin = (d - float64(ideg)) * 60

	var smin = fmt.Sprintf("%05.2f", dmin)
	/* Due to roundoff, 59.9999 could come out as "60.00" */
	if smin[0] == '6' {
		smin = "00.00"
		ideg++
	}

	return ideg, smin
}

/*------------------------------------------------------------------
 *
 * Name:        GridSquare
 *
 * Purpose:     Convert latitude and longitude to a Maidenhead locator.
 *
 * Inputs:	precision	- 2, 4, or 6 characters.
 *
 * Example:	42.662139, -71.365553 -> FN42HP
 *
 *----------------------------------------------------------------*/

func GridSquare(dlat, dlong float64, precision int) string {
	// Shift to positive values and stay just inside the far edge.
	var lon = clampFloat(finiteOrZero(dlong), -180, 179.999999) + 180
	var lat = clampFloat(finiteOrZero(dlat), -90, 89.999999) + 90

	var grid = []byte{
		byte('A' + int(lon/20)),
		byte('A' + int(lat/10)),
	}

	if precision >= 4 {
		grid = append(grid,
			byte('0'+int(math.Mod(lon, 20)/2)),
			byte('0'+int(math.Mod(lat, 10))))
	}

	if precision >= 6 {
		grid = append(grid,
			byte('A'+int(math.Mod(lon, 2)/2*24)),
			byte('A'+int(math.Mod(lat, 1)*24)))
	}

	return string(grid)
}

/*------------------------------------------------------------------
 *
 * Name:        latitudeFromNMEA
 *
 * Purpose:     Convert NMEA latitude encoding to degrees.
 *
 * Inputs:	pstr	- Pointer to numeric string in ddmm.mmmm format.
 *		phemi	- N or S.
 *
 * Returns:	Latitude in degrees, and whether it could be parsed.
 *
 *----------------------------------------------------------------*/

func latitudeFromNMEA(pstr string, phemi byte) (float64, bool) {
	return fromNMEA(pstr, phemi, 2, 'N', 'S')
}

func longitudeFromNMEA(pstr string, phemi byte) (float64, bool) {
	return fromNMEA(pstr, phemi, 3, 'E', 'W')
}

func fromNMEA(pstr string, phemi byte, degDigits int, pos, neg byte) (float64, bool) {
	if len(pstr) < degDigits+2 {
		return 0, false
	}

	var deg, degErr = strconv.Atoi(pstr[:degDigits])
	var minutes, minErr = strconv.ParseFloat(pstr[degDigits:], 64)
	if degErr != nil || minErr != nil {
		return 0, false
	}

	var d = float64(deg) + minutes/60

	switch phemi {
	case pos:
		return d, true
	case neg:
		return -d, true
	default:
		return 0, false
	}
}

// distanceMeters is the great circle distance between two points.
func distanceMeters(lat1, lon1, lat2, lon2 float64) float64 {
	var a = s2.LatLngFromDegrees(lat1, lon1)
	var b = s2.LatLngFromDegrees(lat2, lon2)

	return a.Distance(b).Radians() * earthRadiusMeters
}

// bearingDegrees is the initial course from point 1 to point 2, 0 - 360.
func bearingDegrees(lat1, lon1, lat2, lon2 float64) float64 {
	var a = s2.LatLngFromDegrees(lat1, lon1)
	var b = s2.LatLngFromDegrees(lat2, lon2)

	var dlon = (b.Lng - a.Lng).Radians()
	var y = math.Sin(dlon) * math.Cos(b.Lat.Radians())
	var x = math.Cos(a.Lat.Radians())*math.Sin(b.Lat.Radians()) -
		math.Sin(a.Lat.Radians())*math.Cos(b.Lat.Radians())*math.Cos(dlon)

	var brng = s1.Angle(math.Atan2(y, x)).Degrees()

	return math.Mod(brng+360, 360)
}
