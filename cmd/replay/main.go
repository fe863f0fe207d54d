package main

import (
	"bufio"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"

	"go.uber.org/zap"

	"sleepywoodpecker/emg-goes-live/internal/config"
	"sleepywoodpecker/emg-goes-live/internal/export"
	"sleepywoodpecker/emg-goes-live/internal/processing"
)

// replay feeds a raw capture (the bytes exactly as the bridge sent them)
// through the pipeline and prints the feature table.
func main() {
	configPath := flag.String("config", "", "path to a YAML config file")
	chunkSize := flag.Int("chunk", 244, "bytes handed to the pipeline per read")
	exportDir := flag.String("export", "", "also write the session files into this directory")
	flag.Parse()

	if flag.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "usage: replay [-config cfg.yaml] [-chunk n] [-export dir] capture.bin")
		os.Exit(2)
	}

	cfg := config.Default()
	if *configPath != "" {
		var err error
		if cfg, err = config.Load(*configPath); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
	}

	// stdout carries the feature table, so logs go to stderr
	log, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	pipeline, err := processing.NewPipeline(cfg, log)
	if err != nil {
		log.Fatal("building pipeline", zap.Error(err))
	}

	file, err := os.Open(flag.Arg(0))
	if err != nil {
		log.Fatal("opening capture", zap.Error(err))
	}
	defer file.Close()

	if err := replay(bufio.NewReader(file), *chunkSize, pipeline); err != nil {
		log.Fatal("reading capture", zap.Error(err))
	}
	if err := pipeline.Close(); err != nil {
		log.Warn("capture ended mid-sample", zap.Error(err))
	}

	if err := export.WriteFeatureCSV(os.Stdout, pipeline.Snapshot()); err != nil {
		log.Fatal("writing feature table", zap.Error(err))
	}

	if *exportDir != "" {
		stat, _ := file.Stat()
		meta := export.Meta{
			PatientID:    cfg.Export.PatientID,
			RecordingID:  cfg.Export.Recording,
			SamplingFreq: cfg.SamplingFreq,
		}
		if stat != nil {
			meta.StartTime = stat.ModTime()
		}
		if err := export.Session(*exportDir, pipeline, meta); err != nil {
			log.Fatal("exporting session", zap.Error(err))
		}
	}
}

func replay(r io.Reader, chunkSize int, pipeline *processing.Pipeline) error {
	if chunkSize <= 0 {
		return fmt.Errorf("chunk size must be positive, got %d", chunkSize)
	}

	buf := make([]byte, chunkSize)
	for {
		n, err := r.Read(buf)
		if n > 0 {
			pipeline.Feed(buf[:n])
		}
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
	}
}
