package processing

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"go.uber.org/zap"
)

const SamplingChannelName = "emg"

// Sampler periodically pushes the latest pipeline values to telegraf as an
// influx line. It runs on its own clock and only ever reads the pipeline.
type Sampler struct {
	samplingFrequency time.Duration
	out               io.Writer
	pipeline          *Pipeline
	logger            *zap.Logger
	now               func() time.Time
}

func NewSampler(samplingFrequency time.Duration, out io.Writer, pipeline *Pipeline, logger *zap.Logger) *Sampler {
	return &Sampler{
		samplingFrequency: samplingFrequency,
		out:               out,
		pipeline:          pipeline,
		logger:            logger,
		now:               time.Now,
	}
}

// InfluxLine formats l in line protocol. Nothing is returned before the
// first sample arrives; fatigue fields appear once they have a value.
func InfluxLine(l Latest, ts time.Time) (string, bool) {
	if l.Samples == 0 {
		return "", false
	}

	fields := []string{
		fmt.Sprintf("sample=%.4f", l.Sample),
		fmt.Sprintf("envelope=%.4f", l.Envelope),
		fmt.Sprintf("samples=%di", l.Samples),
	}
	if l.HasFeat {
		fields = append(fields,
			fmt.Sprintf("rms=%.4f", l.Feature.RMS),
			fmt.Sprintf("iemg=%.4f", l.Feature.IEMG),
			fmt.Sprintf("mnf=%.4f", l.Feature.MNF),
			fmt.Sprintf("mpf=%.4f", l.Feature.MPF),
		)
	}
	if l.HasFatA {
		fields = append(fields, fmt.Sprintf("fatigue_a=%.4f", l.FatigueA))
	}
	if l.HasFatB {
		fields = append(fields, fmt.Sprintf("fatigue_b=%.4f", l.FatigueB))
	}

	return SamplingChannelName + " " + strings.Join(fields, ",") + fmt.Sprintf(" %d\n", ts.UnixNano()), true
}

func (s *Sampler) SampleAndLog() {
	line, ok := InfluxLine(s.pipeline.Latest(), s.now())
	if !ok {
		return
	}

	if err := s.write(line); err != nil {
		s.logger.Warn("[sampler] Error writing data to UDP connection", zap.Error(err))
	} else {
		s.logger.Debug("[sampler] collected sample", zap.String("influxString", line))
	}
}

func (s *Sampler) Run(ctx context.Context) {
	ticker := time.NewTicker(s.samplingFrequency)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.SampleAndLog()
		case <-ctx.Done():
			s.logger.Info("[sampler] received shutdown signal")
			return
		}
	}
}

func (s *Sampler) write(line string) error {
	data := []byte(line)
	for len(data) > 0 {
		n, err := s.out.Write(data)
		if err != nil {
			return err
		}
		data = data[n:]
	}

	return nil
}
