package raspiaprs

// Position summaries using https://github.com/tzneal/coordconv

import (
	"fmt"
	"strings"

	"github.com/golang/geo/s2"
	"github.com/tzneal/coordconv"
)

func hemisphereRune(h coordconv.Hemisphere) rune {
	switch h {
	case coordconv.HemisphereNorth:
		return 'N'
	case coordconv.HemisphereSouth:
		return 'S'
	case coordconv.HemisphereInvalid:
		return '!'
	default:
		return '?'
	}
}

/*------------------------------------------------------------------
 *
 * Name:        DescribePosition
 *
 * Purpose:     Show the configured position several ways, so it can be
 *		checked against a map before going on the air.
 *
 * Inputs:	lat, lon	- Decimal degrees.
 *
 * Returns:	Multi-line text.  A conversion that fails is reported
 *		and the others are still attempted.
 *
 *----------------------------------------------------------------*/

func DescribePosition(lat, lon float64) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Decimal   = %.6f, %.6f\n", lat, lon)
	fmt.Fprintf(&b, "APRS      = %s %s\n", EncodeLatitude(lat), EncodeLongitude(lon))
	fmt.Fprintf(&b, "Grid      = %s\n", GridSquare(lat, lon, 6))

	var latlng = s2.LatLngFromDegrees(lat, lon)

	var utmCoord, utmErr = coordconv.DefaultUTMConverter.ConvertFromGeodetic(latlng, 0)
	if utmErr == nil {
		fmt.Fprintf(&b, "UTM       = zone %d%c, easting %.0f, northing %.0f\n",
			utmCoord.Zone, hemisphereRune(utmCoord.Hemisphere), utmCoord.Easting, utmCoord.Northing)
	} else {
		fmt.Fprintf(&b, "UTM       = conversion failed: %s\n", utmErr)
	}

	var mgrsCoord, mgrsErr = coordconv.DefaultMGRSConverter.ConvertFromGeodetic(latlng, 5)
	if mgrsErr == nil {
		fmt.Fprintf(&b, "MGRS      = %s\n", mgrsCoord)
	} else {
		fmt.Fprintf(&b, "MGRS      = conversion failed: %s\n", mgrsErr)
	}

	return b.String()
}
