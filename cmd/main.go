package main

import (
	"context"
	"errors"
	"flag"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"sleepywoodpecker/emg-goes-live/internal/config"
	"sleepywoodpecker/emg-goes-live/internal/export"
	"sleepywoodpecker/emg-goes-live/internal/logger"
	"sleepywoodpecker/emg-goes-live/internal/processing"
	rserial "sleepywoodpecker/emg-goes-live/internal/rSerial"
	"sleepywoodpecker/emg-goes-live/internal/web"
)

const SHUTDOWN_GRACE = 500 * time.Millisecond

func main() {
	configPath := flag.String("config", "", "path to a YAML config file")
	flag.Parse()

	cfg := config.Default()
	if *configPath != "" {
		var err error
		if cfg, err = config.Load(*configPath); err != nil {
			panic(err)
		}
	} else if err := cfg.Validate(); err != nil {
		panic(err)
	}

	// context handler for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	// first initialize the main logger
	log, err := logger.NewLogger(cfg.LogFile)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	// initialize UDP connection to grafana
	udpAddr, err := net.ResolveUDPAddr("udp", cfg.TelegrafAddr)
	if err != nil {
		log.Fatal("resolving telegraf address", zap.Error(err), zap.String("addr", cfg.TelegrafAddr))
	}
	udpConn, err := net.DialUDP("udp", nil, udpAddr)
	if err != nil {
		log.Fatal("dialing telegraf", zap.Error(err), zap.String("addr", cfg.TelegrafAddr))
	}
	defer udpConn.Close()

	pipeline, err := processing.NewPipeline(cfg, log)
	if err != nil {
		log.Fatal("building pipeline", zap.Error(err))
	}

	messageQueue := make(chan []byte, cfg.Serial.QueueLength)
	emgSerial, err := rserial.NewRSerial(cfg.Serial.Port, cfg.Serial.Baudrate, cfg.Serial.ReadTimeout, messageQueue, log, cfg.PacketSize)
	if err != nil {
		log.Fatal("opening serial port", zap.Error(err))
	}
	processor := processing.NewProcessor(cfg.RawLogFile, messageQueue, log, pipeline)
	sampler := processing.NewSampler(cfg.SampleInterval, udpConn, pipeline, log)
	server := web.NewServer(cfg.HTTPAddr, pipeline, log)

	startTime := time.Now()
	processorDone := make(chan struct{})

	// run everything
	go func() {
		defer close(processorDone)
		if err := processor.Run(ctx); err != nil {
			log.Error("processor stopped", zap.Error(err))
		}
	}()
	go emgSerial.Run(ctx)
	go sampler.Run(ctx)
	go func() {
		if err := server.Start(); err != nil {
			log.Error("web server stopped", zap.Error(err))
		}
	}()

	select {
	case <-sigCh:
	case <-processorDone:
	}
	cancel()

	select {
	case <-processorDone:
	case <-time.After(SHUTDOWN_GRACE):
		log.Warn("processor did not stop in time")
	}

	var shutdownErr error
	shutdownErr = multierr.Append(shutdownErr, server.Shutdown())
	shutdownErr = multierr.Append(shutdownErr, emgSerial.Close())
	if err := pipeline.Close(); errors.Is(err, processing.ErrMalformedChunk) {
		log.Warn("stream ended mid-sample", zap.Error(err))
	}

	stats := pipeline.Stats()
	log.Info("session finished",
		zap.Int("samples", stats.Samples),
		zap.Int64("epochs", stats.Epochs),
		zap.Int("features", stats.Features),
	)

	shutdownErr = multierr.Append(shutdownErr, export.Session(cfg.Export.Dir, pipeline, export.Meta{
		PatientID:    cfg.Export.PatientID,
		RecordingID:  cfg.Export.Recording,
		StartTime:    startTime,
		SamplingFreq: cfg.SamplingFreq,
	}))
	if shutdownErr != nil {
		log.Error("errors during shutdown", zap.Errors("errors", multierr.Errors(shutdownErr)))
	}
}
