package processing

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"

	"go.uber.org/zap"
)

// Processor drains the chunk queue into the pipeline. When Filename is set
// every decoded sample is also written there as "index,value".
type Processor struct {
	Filename     string
	MessageQueue <-chan []byte
	logger       *zap.Logger
	pipeline     *Pipeline
	written      int
}

func NewProcessor(filename string, messageQueue <-chan []byte, logger *zap.Logger, pipeline *Pipeline) *Processor {
	return &Processor{
		Filename:     filename,
		MessageQueue: messageQueue,
		logger:       logger,
		pipeline:     pipeline,
	}
}

func (p *Processor) Run(ctx context.Context) error {
	out := io.Discard
	if p.Filename != "" {
		file, err := os.OpenFile(p.Filename, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
		if err != nil {
			p.logger.Error("[processor] error opening a file", zap.Error(err), zap.String("outputFile", p.Filename))
			return err
		}
		defer file.Close()

		writer := bufio.NewWriter(file)
		defer writer.Flush()
		out = writer
	}

	for {
		select {
		case chunk, ok := <-p.MessageQueue:
			if !ok {
				p.logger.Info("[processor] message queue closed", zap.Int("samples", p.written))
				return nil
			}

			if err := p.ProcessChunk(chunk, out); err != nil {
				p.logger.Warn(
					"[processor] error writing raw samples",
					zap.Error(err),
					zap.Int("chunkLength", len(chunk)),
					zap.String("outputFile", p.Filename),
				)
			}
		case <-ctx.Done():
			p.logger.Info("[processor] received shutdown signal", zap.Int("samples", p.written))
			return nil
		}
	}
}

func (p *Processor) ProcessChunk(chunk []byte, outStream io.Writer) error {
	samples := p.pipeline.Feed(chunk)

	start := p.written
	p.written += len(samples)

	for i, s := range samples {
		if _, err := fmt.Fprintf(outStream, "%d,%.4f\n", start+i, s); err != nil {
			return err
		}
	}

	return nil
}
