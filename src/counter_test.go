package raspiaprs

import (
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func quietLogger() *log.Logger {
	return log.New(io.Discard)
}

func TestLoadCounter(t *testing.T) {
	var dir = t.TempDir()

	tests := []struct {
		name     string
		contents string
		expected int
	}{
		{name: "plain", contents: "42", expected: 42},
		{name: "trailing newline", contents: "17\n", expected: 17},
		{name: "garbage", contents: "forty two", expected: 0},
		{name: "negative", contents: "-3", expected: 0},
		{name: "empty", contents: "", expected: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var path = filepath.Join(dir, tt.name)
			require.NoError(t, os.WriteFile(path, []byte(tt.contents), 0o644))
			assert.Equal(t, tt.expected, LoadCounter(path))
		})
	}

	assert.Equal(t, 0, LoadCounter(filepath.Join(dir, "missing")))
}

func TestIncrementAndPersist(t *testing.T) {
	var path = filepath.Join(t.TempDir(), "seq")

	assert.Equal(t, 1, IncrementAndPersist(path, 0, SequenceModulus, quietLogger()))
	assert.Equal(t, 1, LoadCounter(path))

	assert.Equal(t, 0, IncrementAndPersist(path, 998, SequenceModulus, quietLogger()))
	assert.Equal(t, 0, LoadCounter(path))
}

func TestIncrementAndPersistUnwritable(t *testing.T) {
	var path = filepath.Join(t.TempDir(), "no", "such", "dir", "seq")

	// Still counts, even though nothing was saved.
	assert.Equal(t, 6, IncrementAndPersist(path, 5, SequenceModulus, quietLogger()))
	assert.Equal(t, 0, LoadCounter(path))
}

func TestCounterWraps(t *testing.T) {
	var path = filepath.Join(t.TempDir(), "seq")
	var c = OpenCounter(path, SequenceModulus, quietLogger())

	assert.Equal(t, 0, c.Value())

	for range SequenceModulus - 1 {
		c.Next()
	}
	assert.Equal(t, 998, c.Value())
	assert.Equal(t, 0, c.Next())

	var reopened = OpenCounter(path, SequenceModulus, quietLogger())
	assert.Equal(t, 0, reopened.Value())
}

func TestCounterStaysInRange(t *testing.T) {
	var dir = t.TempDir()

	rapid.Check(t, func(t *rapid.T) {
		var modulus = rapid.SampledFrom([]int{SequenceModulus, TickModulus}).Draw(t, "modulus")
		var start = rapid.IntRange(0, 1_000_000).Draw(t, "start")
		var steps = rapid.IntRange(1, 50).Draw(t, "steps")

		var path = filepath.Join(dir, "counter")
		if err := writeCounter(path, start); err != nil {
			t.Fatal(err)
		}

		var c = OpenCounter(path, modulus, quietLogger())
		var expected = start % modulus

		for range steps {
			expected = (expected + 1) % modulus
			if got := c.Next(); got != expected {
				t.Fatalf("got %d, expected %d", got, expected)
			}
		}

		if got := LoadCounter(path); got != expected {
			t.Fatalf("persisted %d, expected %d", got, expected)
		}
	})
}

func TestOpenBeaconState(t *testing.T) {
	var dir = t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "raspiaprs.seq"), []byte("12"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "raspiaprs.tmr"), []byte("3599"), 0o644))

	var state = OpenBeaconState(dir, quietLogger())
	assert.Equal(t, 12, state.Sequence.Value())
	assert.Equal(t, 3599, state.Tick.Value())

	assert.Equal(t, 0, state.Tick.Next())
	assert.Equal(t, 13, state.Sequence.Next())
}
