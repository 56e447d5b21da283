package raspiaprs

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const mmdvmConfig = `
[General]
Callsign=9M2PJU
Duplex=1

[Info]
RXFrequency=433800000
TXFrequency=438800000
Location=Kuala Lumpur

[DMR]
Enable=1
ColorCode=1
`

func TestParseMMDVMInfo(t *testing.T) {
	var info, err = parseMMDVMInfo(strings.NewReader(mmdvmConfig))
	require.NoError(t, err)

	assert.Equal(t, MMDVMInfo{RXFrequency: 433800000, TXFrequency: 438800000, ColorCode: 1, DMREnabled: true}, info)
	assert.Equal(t, "438.800000MHz (-5.000000MHz) CC1", info.String())
}

func TestMMDVMInfoString(t *testing.T) {
	assert.Equal(t, "145.500000MHz", MMDVMInfo{RXFrequency: 145500000, TXFrequency: 145500000}.String())
	assert.Equal(t, "145.000000MHz (+0.600000MHz)", MMDVMInfo{RXFrequency: 145600000, TXFrequency: 145000000}.String())
}

func TestReadMMDVMInfo(t *testing.T) {
	var path = filepath.Join(t.TempDir(), "mmdvmhost")
	require.NoError(t, os.WriteFile(path, []byte(mmdvmConfig), 0o644))

	var info, err = ReadMMDVMInfo(path)
	require.NoError(t, err)
	assert.Equal(t, 1, info.ColorCode)

	_, err = ReadMMDVMInfo(filepath.Join(t.TempDir(), "missing"))
	assert.Error(t, err)
}

func TestPositionComment(t *testing.T) {
	assert.Equal(t, "438.800000MHz (-5.000000MHz) CC1, RasPiAPRS debian 12 [6.6 aarch64]",
		PositionComment("438.800000MHz (-5.000000MHz) CC1", "RasPiAPRS", "debian 12 [6.6 aarch64]"))
	assert.Equal(t, "hello", PositionComment("", "hello", ""))
	assert.Equal(t, "", PositionComment("", "", ""))
	assert.Equal(t, "two lines", PositionComment("", "two\r\nlines", ""))
	assert.Equal(t, "a b c", PositionComment("", "a\nb\rc", ""))
}
