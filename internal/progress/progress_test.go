package progress

import (
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReaderReportsCumulativeBytes(t *testing.T) {
	var updates []int64
	r := NewReader(strings.NewReader("hello world"), 11, func(transferred, total int64) {
		updates = append(updates, transferred)
		assert.Equal(t, int64(11), total)
	})

	data, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.Equal(t, "hello world", string(data))
	assert.Equal(t, int64(11), r.Transferred())

	require.NotEmpty(t, updates)
	assert.Equal(t, int64(11), updates[len(updates)-1])
}

func TestReaderWithoutCallback(t *testing.T) {
	r := NewReader(strings.NewReader("abc"), -1, nil)
	_, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.Equal(t, int64(3), r.Transferred())
}

func TestBar(t *testing.T) {
	assert.Equal(t, "[=====>    ]  50.0%", Bar(50, 100, 10))
	assert.Equal(t, "[==========] 100.0%", Bar(100, 100, 10))
	assert.Equal(t, "[>         ]   0.0%", Bar(0, 100, 10))
	assert.Equal(t, "42 B", Bar(42, -1, 10), "unknown totals fall back to a byte count")

	// Overshoot clamps at 100%
	assert.Equal(t, "[==========] 100.0%", Bar(150, 100, 10))
}
