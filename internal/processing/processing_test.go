package processing_test

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"sleepywoodpecker/emg-goes-live/internal/processing"
)

func TestProcessorDrainsQueue(t *testing.T) {
	cfg := testConfig()
	p, err := newPipeline(cfg)
	require.NoError(t, err)

	out := filepath.Join(t.TempDir(), "raw.csv")
	queue := make(chan []byte, cfg.Serial.QueueLength)
	proc := processing.NewProcessor(out, queue, zap.NewNop(), p)

	raw := encode(sine(1000, 50, 500, 80))
	go func() {
		for off := 0; off < len(raw); off += 244 {
			queue <- raw[off:min(off+244, len(raw))]
		}
		close(queue)
	}()

	require.NoError(t, proc.Run(context.Background()))
	assert.Equal(t, 1000, p.Stats().Samples)
	assert.Len(t, p.MPF(), 1)

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 1000)
	assert.Equal(t, "0,0.0000", lines[0])
	assert.True(t, strings.HasPrefix(lines[999], "999,"))
}

func TestProcessorStopsOnCancel(t *testing.T) {
	p, err := newPipeline(testConfig())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	proc := processing.NewProcessor("", make(chan []byte), zap.NewNop(), p)
	assert.NoError(t, proc.Run(ctx))
}
