package processing

import (
	"fmt"
	"math"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"sleepywoodpecker/emg-goes-live/internal/config"
)

// FeatureRow is one line of the session export: the features of one epoch
// plus the fatigue A value emitted when that epoch completed, if any.
type FeatureRow struct {
	Index    int      `json:"index"`
	RMS      float64  `json:"rms"`
	IEMG     float64  `json:"iemg"`
	MNF      float64  `json:"mnf"`
	MPF      float64  `json:"mpf"`
	FatigueA *float64 `json:"fatigue_a,omitempty"`
}

// Latest is the most recent value of every result sequence, used by
// pollers that only want the current state.
type Latest struct {
	Samples  int
	Features int
	Sample   float64
	Envelope float64
	Feature  FeatureRecord
	FatigueA float64
	FatigueB float64
	HasFeat  bool
	HasFatA  bool
	HasFatB  bool
}

type Stats struct {
	Samples       int   `json:"samples"`
	Packets       int64 `json:"packets"`
	PendingBytes  int64 `json:"pending_bytes"`
	Epochs        int64 `json:"epochs"`
	SkippedEpochs int64 `json:"skipped_epochs"`
	Features      int   `json:"features"`
	FatigueA      int   `json:"fatigue_a"`
	FatigueB      int   `json:"fatigue_b"`
}

// Pipeline turns raw chunks into samples, envelope values, epoch features
// and fatigue scores. Feed is meant for a single writer goroutine; every
// accessor may be called concurrently with it.
type Pipeline struct {
	logger *zap.Logger

	feedMu      sync.Mutex
	reassembler *Reassembler
	envelope    *EnvelopeFilter
	windower    *Windower
	extractor   *FeatureExtractor
	fatigueA    *FatigueTrackerA
	fatigueB    *FatigueTrackerB

	samples   *Series[float64]
	envelopes *Series[float64]
	features  *Series[FeatureRecord]
	fatA      *Series[FatiguePoint]
	fatB      *Series[FatiguePoint]

	packets atomic.Int64
	pending atomic.Int64
	epochs  atomic.Int64
	skipped atomic.Int64
}

func NewPipeline(cfg config.Config, logger *zap.Logger) (*Pipeline, error) {
	reassembler, err := NewReassembler(cfg.PacketSize)
	if err != nil {
		return nil, err
	}
	envelope, err := NewEnvelopeFilter(cfg.Envelope.BufferSize)
	if err != nil {
		return nil, err
	}
	windower, err := NewWindower(cfg.Epoch.Length, cfg.Epoch.Stride, cfg.Epoch.Policy)
	if err != nil {
		return nil, err
	}
	extractor, err := NewFeatureExtractor(cfg.SamplingFreq, cfg.Spectrum.Mode)
	if err != nil {
		return nil, err
	}
	fatigueA, err := NewFatigueTrackerA(cfg.FatigueA)
	if err != nil {
		return nil, err
	}
	fatigueB, err := NewFatigueTrackerB(cfg.FatigueB, cfg.SamplingFreq)
	if err != nil {
		return nil, fmt.Errorf("[pipeline] fatigue B: %w", err)
	}

	if cfg.Epoch.Policy == config.EpochCumulative {
		logger.Warn("[pipeline] cumulative epoch policy is deprecated, epochs will grow without bound")
	}

	return &Pipeline{
		logger:      logger,
		reassembler: reassembler,
		envelope:    envelope,
		windower:    windower,
		extractor:   extractor,
		fatigueA:    fatigueA,
		fatigueB:    fatigueB,
		samples:     NewSeries[float64](),
		envelopes:   NewSeries[float64](),
		features:    NewSeries[FeatureRecord](),
		fatA:        NewSeries[FatiguePoint](),
		fatB:        NewSeries[FatiguePoint](),
	}, nil
}

// Feed processes one transport chunk to completion and returns the samples
// it decoded.
func (p *Pipeline) Feed(chunk []byte) []float64 {
	p.feedMu.Lock()
	defer p.feedMu.Unlock()

	decoded, err := p.reassembler.Feed(chunk)
	p.pending.Store(int64(p.reassembler.Pending()))
	if err != nil {
		p.logger.Warn("[pipeline] error decoding chunk", zap.Error(err), zap.Int("chunkLength", len(chunk)))
		return nil
	}
	if len(decoded) == 0 {
		return nil
	}
	p.packets.Store(int64(p.reassembler.Packets()))

	values := make([]float64, len(decoded))
	envelopes := make([]float64, len(decoded))
	for i, s := range decoded {
		values[i] = float64(s)
		envelopes[i] = p.envelope.Push(math.Abs(values[i]))
	}
	p.samples.Append(values...)
	p.envelopes.Append(envelopes...)

	for {
		start, end, ok := p.windower.Next(p.samples.Len())
		if !ok {
			break
		}
		p.processEpoch(Epoch{
			Index:   p.windower.Count() - 1,
			Start:   start,
			Samples: p.samples.Range(start, end),
		})
	}

	return values
}

func (p *Pipeline) processEpoch(epoch Epoch) {
	p.epochs.Add(1)

	record, err := p.extractor.Extract(epoch)
	if err != nil {
		p.skipped.Add(1)
		p.logger.Warn("[pipeline] skipping epoch", zap.Error(err), zap.Int("epoch", epoch.Index), zap.Int("start", epoch.Start))
		return
	}

	feature := p.features.Len()
	p.features.Append(record)
	p.logger.Debug("[pipeline] epoch complete",
		zap.Int("epoch", epoch.Index),
		zap.Int("start", epoch.Start),
		zap.Int("end", epoch.End()),
		zap.Float64("rms", record.RMS),
		zap.Float64("iemg", record.IEMG),
		zap.Float64("mnf", record.MNF),
		zap.Float64("mpf", record.MPF),
	)

	level, ok, err := p.fatigueA.Push(record.MPF)
	switch {
	case err != nil:
		p.logger.Warn("[pipeline] fatigue A step skipped", zap.Error(err), zap.Int("feature", feature))
	case ok:
		p.fatA.Append(FatiguePoint{Feature: feature, Value: level})
		p.logger.Info("[pipeline] fatigue level", zap.Float64("fatigueA", level), zap.Float64("baseline", p.fatigueA.State().Baseline))
	}

	index, ok, err := p.fatigueB.Push(record.IEMG, p.samples)
	switch {
	case err != nil:
		p.logger.Warn("[pipeline] fatigue B step skipped", zap.Error(err), zap.Int("feature", feature))
	case ok:
		p.fatB.Append(FatiguePoint{Feature: feature, Value: index})
		p.logger.Info("[pipeline] fatigue index", zap.Float64("fatigueB", index))
	}
}

// Close ends the stream. It reports ErrMalformedChunk if a partial sample
// was left buffered.
func (p *Pipeline) Close() error {
	p.feedMu.Lock()
	defer p.feedMu.Unlock()

	return p.reassembler.Close()
}

func (p *Pipeline) Samples() []float64 {
	return p.samples.Snapshot()
}

func (p *Pipeline) Envelope() []float64 {
	return p.envelopes.Snapshot()
}

func (p *Pipeline) Features() []FeatureRecord {
	return p.features.Snapshot()
}

func (p *Pipeline) RMS() []float64 {
	return column(p.features.Snapshot(), func(r FeatureRecord) float64 { return r.RMS })
}

func (p *Pipeline) IEMG() []float64 {
	return column(p.features.Snapshot(), func(r FeatureRecord) float64 { return r.IEMG })
}

func (p *Pipeline) MNF() []float64 {
	return column(p.features.Snapshot(), func(r FeatureRecord) float64 { return r.MNF })
}

func (p *Pipeline) MPF() []float64 {
	return column(p.features.Snapshot(), func(r FeatureRecord) float64 { return r.MPF })
}

func (p *Pipeline) FatigueA() []float64 {
	return column(p.fatA.Snapshot(), func(f FatiguePoint) float64 { return f.Value })
}

func (p *Pipeline) FatigueB() []float64 {
	return column(p.fatB.Snapshot(), func(f FatiguePoint) float64 { return f.Value })
}

func (p *Pipeline) FatigueAPoints() []FatiguePoint {
	return p.fatA.Snapshot()
}

func (p *Pipeline) FatigueBPoints() []FatiguePoint {
	return p.fatB.Snapshot()
}

func (p *Pipeline) Latest() Latest {
	var l Latest
	l.Samples = p.samples.Len()
	l.Sample, _ = p.samples.Last()
	l.Envelope, _ = p.envelopes.Last()
	l.Features = p.features.Len()
	l.Feature, l.HasFeat = p.features.Last()

	var f FatiguePoint
	f, l.HasFatA = p.fatA.Last()
	l.FatigueA = f.Value
	f, l.HasFatB = p.fatB.Last()
	l.FatigueB = f.Value

	return l
}

// Snapshot builds the export table. Rows are read before fatigue values, so
// every fatigue point refers to a row that is present.
func (p *Pipeline) Snapshot() []FeatureRow {
	features := p.features.Snapshot()
	fatigue := p.fatA.Snapshot()

	rows := make([]FeatureRow, len(features))
	for i, r := range features {
		rows[i] = FeatureRow{Index: i, RMS: r.RMS, IEMG: r.IEMG, MNF: r.MNF, MPF: r.MPF}
	}
	for _, f := range fatigue {
		if f.Feature < len(rows) {
			v := f.Value
			rows[f.Feature].FatigueA = &v
		}
	}
	return rows
}

func (p *Pipeline) Stats() Stats {
	return Stats{
		Samples:       p.samples.Len(),
		Packets:       p.packets.Load(),
		PendingBytes:  p.pending.Load(),
		Epochs:        p.epochs.Load(),
		SkippedEpochs: p.skipped.Load(),
		Features:      p.features.Len(),
		FatigueA:      p.fatA.Len(),
		FatigueB:      p.fatB.Len(),
	}
}

func column[T any](in []T, get func(T) float64) []float64 {
	out := make([]float64, len(in))
	for i, v := range in {
		out[i] = get(v)
	}
	return out
}
