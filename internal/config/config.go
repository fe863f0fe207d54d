package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// EpochPolicy selects how the end index of the next epoch is derived.
type EpochPolicy string

const (
	// EpochSliding keeps every epoch at a fixed length: end = start + length.
	EpochSliding EpochPolicy = "sliding"
	// EpochCumulative grows the end index by the new start offset: end += start.
	// Deprecated: kept to reproduce old recordings, the window grows without bound.
	EpochCumulative EpochPolicy = "cumulative"
)

// SpectrumMode selects which DFT bins feed MNF/MPF.
type SpectrumMode string

const (
	SpectrumPositive SpectrumMode = "positive"
	SpectrumFull     SpectrumMode = "full"
)

// WindowPolicy selects the raw-signal window fatigue B band-splits.
type WindowPolicy string

const (
	WindowInitial WindowPolicy = "initial"
	WindowLatest  WindowPolicy = "latest"
)

type Band struct {
	Low  float64 `yaml:"low"`
	High float64 `yaml:"high"`
}

type EnvelopeConfig struct {
	BufferSize int `yaml:"buffer_size"`
}

type EpochConfig struct {
	Length int         `yaml:"length"`
	Stride int         `yaml:"stride"`
	Policy EpochPolicy `yaml:"policy"`
}

type SpectrumConfig struct {
	Mode SpectrumMode `yaml:"mode"`
}

type FatigueAConfig struct {
	Group int `yaml:"group"`
	Span  int `yaml:"span"`
}

type FatigueBConfig struct {
	Group        int          `yaml:"group"`
	Window       int          `yaml:"window"`
	WindowPolicy WindowPolicy `yaml:"window_policy"`
	Order        int          `yaml:"order"`
	LowBand      Band         `yaml:"low_band"`
	HighBand     Band         `yaml:"high_band"`
}

type SerialConfig struct {
	Port        string        `yaml:"port"`
	Baudrate    int           `yaml:"baudrate"`
	ReadTimeout time.Duration `yaml:"read_timeout"`
	QueueLength int           `yaml:"queue_length"`
}

type ExportConfig struct {
	Dir       string `yaml:"dir"`
	PatientID string `yaml:"patient_id"`
	Recording string `yaml:"recording"`
}

// Config is the full runtime configuration of the EMG pipeline and the
// service around it.
type Config struct {
	SamplingFreq float64        `yaml:"sampling_freq"`
	PacketSize   int            `yaml:"packet_size"`
	Envelope     EnvelopeConfig `yaml:"envelope"`
	Epoch        EpochConfig    `yaml:"epoch"`
	Spectrum     SpectrumConfig `yaml:"spectrum"`
	FatigueA     FatigueAConfig `yaml:"fatigue_a"`
	FatigueB     FatigueBConfig `yaml:"fatigue_b"`

	Serial         SerialConfig  `yaml:"serial"`
	TelegrafAddr   string        `yaml:"telegraf_addr"`
	SampleInterval time.Duration `yaml:"sample_interval"`
	HTTPAddr       string        `yaml:"http_addr"`
	LogFile        string        `yaml:"log_file"`
	RawLogFile     string        `yaml:"raw_log_file"`
	Export         ExportConfig  `yaml:"export"`
}

// Default mirrors the settings of the last BLE recording sessions.
func Default() Config {
	return base().withDerived()
}

// base leaves the settings that follow other fields at zero.
func base() Config {
	return Config{
		SamplingFreq: 800,
		PacketSize:   244,
		Envelope:     EnvelopeConfig{BufferSize: 208},
		Epoch: EpochConfig{
			Length: 800,
			Stride: 400,
			Policy: EpochSliding,
		},
		Spectrum: SpectrumConfig{Mode: SpectrumPositive},
		FatigueA: FatigueAConfig{Group: 3},
		FatigueB: FatigueBConfig{
			Group:        3,
			WindowPolicy: WindowInitial,
			Order:        4,
			LowBand:      Band{Low: 25, High: 79},
			HighBand:     Band{Low: 80, High: 350},
		},
		Serial: SerialConfig{
			Port:        "/dev/ttyUSB0",
			Baudrate:    460800,
			ReadTimeout: 5 * time.Millisecond,
			QueueLength: 20,
		},
		TelegrafAddr:   "127.0.0.1:4020",
		SampleInterval: 100 * time.Millisecond,
		HTTPAddr:       ":8080",
		LogFile:        "emg.logs",
		Export: ExportConfig{
			Dir:       ".",
			PatientID: "X X X X",
			Recording: "Startdate X X X X",
		},
	}
}

// Load reads a YAML file on top of Default and validates the result.
// fatigue_b.window and fatigue_a.span follow epoch.length and
// fatigue_a.group unless the file sets them.
func Load(filename string) (Config, error) {
	cfg := base()

	data, err := os.ReadFile(filename)
	if err != nil {
		return cfg, fmt.Errorf("reading config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parsing config: %w", err)
	}

	cfg = cfg.withDerived()
	return cfg, cfg.Validate()
}

func (c Config) withDerived() Config {
	if c.FatigueB.Window == 0 {
		c.FatigueB.Window = c.Epoch.Length
	}
	if c.FatigueA.Span == 0 {
		c.FatigueA.Span = 2 * c.FatigueA.Group
	}
	return c
}

func (c Config) Validate() error {
	var errs []error

	if c.SamplingFreq <= 0 {
		errs = append(errs, fmt.Errorf("sampling_freq must be positive, got %v", c.SamplingFreq))
	}
	if c.PacketSize <= 0 || c.PacketSize%4 != 0 {
		errs = append(errs, fmt.Errorf("packet_size must be a positive multiple of 4, got %d", c.PacketSize))
	}
	if c.Envelope.BufferSize <= 0 {
		errs = append(errs, fmt.Errorf("envelope.buffer_size must be positive, got %d", c.Envelope.BufferSize))
	}
	if c.Epoch.Length <= 0 || c.Epoch.Stride <= 0 {
		errs = append(errs, fmt.Errorf("epoch length and stride must be positive, got %d/%d", c.Epoch.Length, c.Epoch.Stride))
	}
	switch c.Epoch.Policy {
	case EpochSliding, EpochCumulative:
	default:
		errs = append(errs, fmt.Errorf("unknown epoch.policy %q", c.Epoch.Policy))
	}
	switch c.Spectrum.Mode {
	case SpectrumPositive, SpectrumFull:
	default:
		errs = append(errs, fmt.Errorf("unknown spectrum.mode %q", c.Spectrum.Mode))
	}
	if c.FatigueA.Group <= 0 || c.FatigueA.Span < c.FatigueA.Group {
		errs = append(errs, fmt.Errorf("fatigue_a needs 0 < group <= span, got %d/%d", c.FatigueA.Group, c.FatigueA.Span))
	}
	if c.FatigueB.Group <= 0 || c.FatigueB.Window <= 0 || c.FatigueB.Order <= 0 {
		errs = append(errs, fmt.Errorf("fatigue_b group, window and order must be positive"))
	}
	switch c.FatigueB.WindowPolicy {
	case WindowInitial, WindowLatest:
	default:
		errs = append(errs, fmt.Errorf("unknown fatigue_b.window_policy %q", c.FatigueB.WindowPolicy))
	}
	nyquist := c.SamplingFreq / 2
	for _, b := range []struct {
		name string
		Band
	}{{"low_band", c.FatigueB.LowBand}, {"high_band", c.FatigueB.HighBand}} {
		if b.Low <= 0 || b.High <= b.Low || b.High >= nyquist {
			errs = append(errs, fmt.Errorf("fatigue_b.%s %v-%v Hz must lie inside (0, %v)", b.name, b.Low, b.High, nyquist))
		}
	}

	return errors.Join(errs...)
}
