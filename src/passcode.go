package raspiaprs

import "strings"

// Passcode computes the APRS-IS login passcode for a call sign.  The SSID
// is ignored and case doesn't matter.
func Passcode(call string) int {
	var base, _, _ = strings.Cut(strings.ToUpper(strings.TrimSpace(call)), "-")

	var hash = 0x73e2

	for i := 0; i < len(base); i += 2 {
		hash ^= int(base[i]) << 8
		if i+1 < len(base) {
			hash ^= int(base[i+1])
		}
	}

	return hash & 0x7fff
}
