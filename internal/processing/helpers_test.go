package processing_test

import (
	"encoding/binary"
	"math"

	"go.uber.org/zap"

	"sleepywoodpecker/emg-goes-live/internal/config"
	"sleepywoodpecker/emg-goes-live/internal/processing"
)

func encode(samples []float32) []byte {
	out := make([]byte, 0, len(samples)*processing.SampleWidth)
	for _, s := range samples {
		out = binary.LittleEndian.AppendUint32(out, math.Float32bits(s))
	}
	return out
}

func sine(n int, freq, fs, amplitude float64) []float32 {
	out := make([]float32, n)
	for i := range out {
		out[i] = float32(amplitude * math.Sin(2*math.Pi*freq*float64(i)/fs))
	}
	return out
}

// testConfig is the 500 Hz setup: 1000-sample epochs every 100 samples.
func testConfig() config.Config {
	cfg := config.Default()
	cfg.SamplingFreq = 500
	cfg.PacketSize = 200
	cfg.Envelope.BufferSize = 208
	cfg.Epoch = config.EpochConfig{Length: 1000, Stride: 100, Policy: config.EpochSliding}
	cfg.FatigueB.Window = 1000
	cfg.FatigueB.HighBand = config.Band{Low: 80, High: 240}
	return cfg
}

func newPipeline(cfg config.Config) (*processing.Pipeline, error) {
	return processing.NewPipeline(cfg, zap.NewNop())
}
