// r in rserial stands for "robust"
package rserial

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"go.bug.st/serial"
	"go.uber.org/zap"
)

// Port is the part of serial.Port the reader needs.
type Port interface {
	io.ReadCloser
}

// RSerial reads raw chunks from the EMG bridge and forwards copies of them,
// in arrival order, to MessageQueue. It does not interpret the bytes.
type RSerial struct {
	port         Port
	MessageQueue chan<- []byte
	tempBuff     []byte
	logger       *zap.Logger
	portName     string
	chunks       int
	bytes        int
}

type PortError struct {
	PortName string
	Err      error
}

func (e *PortError) Error() string {
	return fmt.Sprintf("[rserial] error opening %s: %v", e.PortName, e.Err)
}

func (e *PortError) Unwrap() error {
	return e.Err
}

func NewRSerial(portName string, baudrate int, readTimeout time.Duration, messageQueue chan<- []byte, logger *zap.Logger, readSize int) (*RSerial, error) {
	mode := &serial.Mode{
		BaudRate: baudrate,
	}

	port, err := serial.Open(portName, mode)
	if err != nil {
		return nil, &PortError{PortName: portName, Err: err}
	}
	if err := port.SetReadTimeout(readTimeout); err != nil {
		port.Close()
		return nil, &PortError{PortName: portName, Err: err}
	}
	if err := port.ResetInputBuffer(); err != nil {
		logger.Warn("[rserial] could not reset input buffer", zap.Error(err), zap.String("portName", portName))
	}

	return NewWithPort(port, portName, messageQueue, logger, readSize), nil
}

// NewWithPort wraps an already opened port, or any reader that behaves like one.
func NewWithPort(port Port, portName string, messageQueue chan<- []byte, logger *zap.Logger, readSize int) *RSerial {
	return &RSerial{
		port:         port,
		MessageQueue: messageQueue,
		tempBuff:     make([]byte, readSize),
		logger:       logger,
		portName:     portName,
	}
}

func (r *RSerial) Run(ctx context.Context) {
	defer close(r.MessageQueue)

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("[rserial] exiting from rserial read loop",
				zap.String("portName", r.portName),
				zap.Int("chunks", r.chunks),
				zap.Int("bytes", r.bytes),
			)
			return
		default:
			err := r.ReadChunk(ctx)
			if errors.Is(err, io.EOF) {
				r.logger.Info("[rserial] port reached end of stream", zap.String("portName", r.portName))
				return
			}
			if err != nil {
				r.logger.Warn("Error while attempting to read chunk from serial", zap.Error(err), zap.String("portName", r.portName))
			}
		}
	}
}

// ReadChunk performs one read and queues whatever arrived. A read timeout
// returns zero bytes and queues nothing.
func (r *RSerial) ReadChunk(ctx context.Context) error {
	n, err := r.port.Read(r.tempBuff)
	if n > 0 {
		// the read buffer is reused, so the queue gets its own copy
		chunk := make([]byte, n)
		copy(chunk, r.tempBuff[:n])

		select {
		case r.MessageQueue <- chunk:
			r.chunks++
			r.bytes += n
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	return err
}

func (r *RSerial) Close() error {
	return r.port.Close()
}
