package processing

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

const SampleWidth = 4

// Reassembler turns an in-order byte stream, delivered in chunks of any
// size, into little-endian float32 samples. Bytes are only consumed in whole
// packets; anything shorter stays pending until the next Feed.
type Reassembler struct {
	packetSize int
	pending    []byte
	packets    int
}

func NewReassembler(packetSize int) (*Reassembler, error) {
	if packetSize <= 0 || packetSize%SampleWidth != 0 {
		return nil, fmt.Errorf("[reassembler] packet size %d is not a positive multiple of %d", packetSize, SampleWidth)
	}
	return &Reassembler{packetSize: packetSize}, nil
}

// Feed appends chunk and returns every sample decoded from the packets it
// completed, in arrival order. The result is empty when no packet completed.
func (r *Reassembler) Feed(chunk []byte) ([]float32, error) {
	r.pending = append(r.pending, chunk...)

	whole := len(r.pending) / r.packetSize * r.packetSize
	if whole == 0 {
		return nil, nil
	}

	samples := make([]float32, whole/SampleWidth)
	if err := binary.Read(bytes.NewReader(r.pending[:whole]), binary.LittleEndian, samples); err != nil {
		return nil, err
	}
	r.packets += whole / r.packetSize

	// shift the remainder down instead of reslicing so the backing array
	// does not grow for the whole session
	n := copy(r.pending, r.pending[whole:])
	r.pending = r.pending[:n]

	return samples, nil
}

// Pending is the number of buffered bytes not yet decoded.
func (r *Reassembler) Pending() int {
	return len(r.pending)
}

func (r *Reassembler) Packets() int {
	return r.packets
}

// Close reports ErrMalformedChunk if the stream ended mid-sample.
func (r *Reassembler) Close() error {
	if rem := len(r.pending) % SampleWidth; rem != 0 {
		return fmt.Errorf("%w: %d stray bytes", ErrMalformedChunk, rem)
	}
	return nil
}
