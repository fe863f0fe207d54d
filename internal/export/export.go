// Package export writes the results of a finished session to disk.
package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"go.uber.org/multierr"

	"sleepywoodpecker/emg-goes-live/internal/processing"
)

const (
	FeatureFile = "features.csv"
	SeriesFile  = "series.csv"
	RawEDFFile  = "raw.edf"
)

// Meta describes the recording for the EDF header.
type Meta struct {
	PatientID    string
	RecordingID  string
	StartTime    time.Time
	SamplingFreq float64
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

// WriteFeatureCSV writes one row per completed epoch. The fatigue_a cell is
// empty for rows where no fatigue A value was emitted.
func WriteFeatureCSV(w io.Writer, rows []processing.FeatureRow) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"index", "rms", "iemg", "mnf", "mpf", "fatigue_a"}); err != nil {
		return err
	}

	for _, r := range rows {
		fatigue := ""
		if r.FatigueA != nil {
			fatigue = formatFloat(*r.FatigueA)
		}
		record := []string{
			strconv.Itoa(r.Index),
			formatFloat(r.RMS),
			formatFloat(r.IEMG),
			formatFloat(r.MNF),
			formatFloat(r.MPF),
			fatigue,
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}

	cw.Flush()
	return cw.Error()
}

// NamedSeries is one full result array.
type NamedSeries struct {
	Name   string
	Values []float64
}

// WriteSeriesCSV writes every array on its own row as "name","v1,v2,...".
func WriteSeriesCSV(w io.Writer, series []NamedSeries) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"ArrayID", "Array"}); err != nil {
		return err
	}

	for _, s := range series {
		values := make([]string, len(s.Values))
		for i, v := range s.Values {
			values[i] = formatFloat(v)
		}
		if err := cw.Write([]string{s.Name, strings.Join(values, ",")}); err != nil {
			return err
		}
	}

	cw.Flush()
	return cw.Error()
}

// PipelineSeries lists the result arrays of p in export order.
func PipelineSeries(p *processing.Pipeline) []NamedSeries {
	return []NamedSeries{
		{"amplitudes", p.Samples()},
		{"envelope_values", p.Envelope()},
		{"rms_values", p.RMS()},
		{"iemg_values", p.IEMG()},
		{"mnf_values", p.MNF()},
		{"mpf_values", p.MPF()},
		{"fatigue_A_values", p.FatigueA()},
		{"fatigue_B_values", p.FatigueB()},
	}
}

// Session writes the feature table, the result arrays and the raw signal
// into dir. Every file is attempted; the errors are combined.
func Session(dir string, p *processing.Pipeline, meta Meta) (err error) {
	if mkErr := os.MkdirAll(dir, 0o755); mkErr != nil {
		return mkErr
	}

	err = multierr.Append(err, writeFile(filepath.Join(dir, FeatureFile), func(f *os.File) error {
		return WriteFeatureCSV(f, p.Snapshot())
	}))
	err = multierr.Append(err, writeFile(filepath.Join(dir, SeriesFile), func(f *os.File) error {
		return WriteSeriesCSV(f, PipelineSeries(p))
	}))
	err = multierr.Append(err, writeFile(filepath.Join(dir, RawEDFFile), func(f *os.File) error {
		return WriteEDF(f, p.Samples(), meta)
	}))

	return err
}

func writeFile(path string, write func(f *os.File) error) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}
	defer func() {
		err = multierr.Append(err, f.Close())
	}()

	if werr := write(f); werr != nil {
		return fmt.Errorf("writing %s: %w", path, werr)
	}
	return nil
}
