// Package rpc implements the wire protocol spoken with the numeric worker:
// length-prefixed binary frames carrying raw float64 matrices on the eigen
// socket and JSON envelopes on the bridge socket.
package rpc

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// Failure classes. Callers match them with errors.Is.
var (
	ErrConnection = errors.New("rpc: connection failed")
	ErrTransfer   = errors.New("rpc: transfer failed")
	ErrProtocol   = errors.New("rpc: protocol violation")
	ErrNumeric    = errors.New("rpc: numeric failure")
)

// MaxFrameSize bounds the payload a peer may announce.
const MaxFrameSize = 1 << 30

const prefixSize = 4

// WriteFrame writes a 4-byte little-endian length followed by payload.
func WriteFrame(w io.Writer, payload []byte) error {
	if len(payload) > MaxFrameSize {
		return fmt.Errorf("frame of %d bytes exceeds limit: %w", len(payload), ErrProtocol)
	}
	buf := make([]byte, prefixSize+len(payload))
	binary.LittleEndian.PutUint32(buf, uint32(len(payload)))
	copy(buf[prefixSize:], payload)
	n, err := w.Write(buf)
	if n == 0 {
		if err == nil {
			err = io.ErrShortWrite
		}
		return fmt.Errorf("sent 0 bytes: %v: %w", err, ErrTransfer)
	}
	if err != nil {
		return fmt.Errorf("sent %d of %d bytes: %v: %w", n, len(buf), err, ErrTransfer)
	}
	return nil
}

// ReadFrame reads one length-prefixed frame.
func ReadFrame(r io.Reader) ([]byte, error) {
	var prefix [prefixSize]byte
	n, err := io.ReadFull(r, prefix[:])
	if n == 0 && err != nil {
		return nil, fmt.Errorf("received 0 bytes: %v: %w", err, ErrTransfer)
	}
	if err != nil {
		return nil, fmt.Errorf("truncated length prefix (%d bytes): %w", n, ErrProtocol)
	}
	size := int32(binary.LittleEndian.Uint32(prefix[:]))
	if size < 0 || int64(size) > MaxFrameSize {
		return nil, fmt.Errorf("announced frame size %d out of range: %w", size, ErrProtocol)
	}
	if size == 0 {
		return nil, fmt.Errorf("received 0 bytes: %w", ErrTransfer)
	}
	payload := make([]byte, size)
	if n, err := io.ReadFull(r, payload); err != nil {
		return nil, fmt.Errorf("frame truncated at %d of %d bytes: %w", n, size, ErrProtocol)
	}
	return payload, nil
}
