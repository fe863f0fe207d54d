package export

import (
	"fmt"
	"io"
	"math"
	"time"

	"github.com/OpenPSG/edf"
)

const (
	edfDigitalMin = -32768
	edfDigitalMax = 32767
	// 61440 bytes per data record at two bytes per sample
	edfMaxSamplesPerRecord = 30720
)

// WriteEDF stores the raw signal as a single-channel EDF file with one
// second data records. The last record is padded with zeros.
func WriteEDF(ws io.WriteSeeker, samples []float64, meta Meta) error {
	perRecord := int(math.Round(meta.SamplingFreq))
	if perRecord <= 0 || perRecord > edfMaxSamplesPerRecord {
		return fmt.Errorf("[export] sampling frequency %v does not fit one-second EDF records", meta.SamplingFreq)
	}

	physMin, physMax := physicalRange(samples)
	start := meta.StartTime
	if start.IsZero() {
		start = time.Now()
	}

	hdr := edf.Header{
		Version:            edf.Version0,
		PatientID:          meta.PatientID,
		RecordingID:        meta.RecordingID,
		StartTime:          start,
		DataRecordDuration: time.Second,
		SignalCount:        1,
		Signals: []edf.SignalHeader{
			{
				Label:             "EMG",
				TransducerType:    "surface electrode",
				PhysicalDimension: "uV",
				PhysicalMin:       physMin,
				PhysicalMax:       physMax,
				DigitalMin:        edfDigitalMin,
				DigitalMax:        edfDigitalMax,
				SamplesPerRecord:  perRecord,
			},
		},
	}

	ew, err := edf.Create(ws, hdr)
	if err != nil {
		return err
	}

	record := make([]float64, perRecord)
	for off := 0; off < len(samples); off += perRecord {
		n := copy(record, samples[off:])
		clear(record[n:])
		if err := ew.WriteRecord([][]float64{record}); err != nil {
			return fmt.Errorf("writing record %d: %w", off/perRecord, err)
		}
	}

	return ew.Close()
}

// physicalRange returns a symmetric, non-empty range covering every sample.
// The bounds are whole numbers so the 8-character header fields hold them
// exactly and readers scale with the same values the writer used.
func physicalRange(samples []float64) (float64, float64) {
	peak := 0.0
	for _, s := range samples {
		peak = math.Max(peak, math.Abs(s))
	}
	peak = math.Max(1, math.Ceil(peak))
	return -peak, peak
}
