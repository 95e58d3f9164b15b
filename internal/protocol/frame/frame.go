package frame

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"unicode/utf8"
)

// HeaderLen is the size of the big-endian payload length prefix.
const HeaderLen = 4

var (
	// ErrClosed reports a clean end-of-stream at a message boundary.
	ErrClosed = errors.New("frame: connection closed")
	// ErrTransport wraps I/O failures; the connection must be dropped.
	ErrTransport = errors.New("frame: transport failure")
	// ErrProtocol wraps malformed messages.
	ErrProtocol = errors.New("frame: protocol violation")

	ErrTruncated       = fmt.Errorf("%w: stream ended inside a frame", ErrTransport)
	ErrInvalidUTF8     = fmt.Errorf("%w: payload is not valid utf-8", ErrProtocol)
	ErrPayloadTooLarge = fmt.Errorf("%w: payload too large", ErrProtocol)
)

// Limits constrains frame decode/encode memory use.
type Limits struct {
	MaxPayloadBytes uint32
	ChunkSize       int
}

func DefaultLimits() Limits {
	return Limits{
		MaxPayloadBytes: 8 * 1024 * 1024,
		ChunkSize:       4096,
	}
}

func (l Limits) withDefaults() Limits {
	d := DefaultLimits()
	if l.MaxPayloadBytes == 0 {
		l.MaxPayloadBytes = d.MaxPayloadBytes
	}
	if l.ChunkSize <= 0 {
		l.ChunkSize = d.ChunkSize
	}
	return l
}

// Encode returns the wire form of text: length prefix followed by UTF-8 bytes.
func Encode(text string) []byte {
	buf := make([]byte, HeaderLen+len(text))
	binary.BigEndian.PutUint32(buf[:HeaderLen], uint32(len(text)))
	copy(buf[HeaderLen:], text)
	return buf
}

// WriteMessage writes one framed message with a single Write call.
func WriteMessage(w io.Writer, text string, limits Limits) error {
	limits = limits.withDefaults()
	if !utf8.ValidString(text) {
		return ErrInvalidUTF8
	}
	if uint64(len(text)) > uint64(limits.MaxPayloadBytes) {
		return ErrPayloadTooLarge
	}
	if _, err := w.Write(Encode(text)); err != nil {
		return fmt.Errorf("%w: %w", ErrTransport, err)
	}
	return nil
}

// ReadMessage blocks until one complete message is available.
//
// A stream that ends before any header byte yields ErrClosed. A stream that
// ends inside the header or payload yields ErrTruncated. Invalid UTF-8 yields
// ErrInvalidUTF8 after the whole payload has been consumed, so the stream is
// still positioned on a frame boundary.
func ReadMessage(r io.Reader, limits Limits) (string, error) {
	limits = limits.withDefaults()

	var header [HeaderLen]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		switch {
		case errors.Is(err, io.EOF):
			return "", ErrClosed
		case errors.Is(err, io.ErrUnexpectedEOF):
			return "", ErrTruncated
		default:
			return "", fmt.Errorf("%w: %w", ErrTransport, err)
		}
	}

	length := binary.BigEndian.Uint32(header[:])
	if length > limits.MaxPayloadBytes {
		return "", fmt.Errorf("%w: declared=%d max=%d", ErrPayloadTooLarge, length, limits.MaxPayloadBytes)
	}

	payload, err := readChunked(r, int(length), limits.ChunkSize)
	if err != nil {
		return "", err
	}
	if !utf8.Valid(payload) {
		return "", ErrInvalidUTF8
	}
	return string(payload), nil
}

// Decode parses exactly one frame from b.
func Decode(b []byte) (string, error) {
	if len(b) < HeaderLen {
		if len(b) == 0 {
			return "", ErrClosed
		}
		return "", ErrTruncated
	}
	length := binary.BigEndian.Uint32(b[:HeaderLen])
	if uint64(len(b)-HeaderLen) < uint64(length) {
		return "", ErrTruncated
	}
	payload := b[HeaderLen : HeaderLen+int(length)]
	if !utf8.Valid(payload) {
		return "", ErrInvalidUTF8
	}
	return string(payload), nil
}

func readChunked(r io.Reader, length int, chunkSize int) ([]byte, error) {
	payload := make([]byte, 0, min(length, chunkSize))
	chunk := make([]byte, min(length, chunkSize))
	for len(payload) < length {
		want := min(length-len(payload), chunkSize)
		n, err := r.Read(chunk[:want])
		payload = append(payload, chunk[:n]...)
		if len(payload) == length || err == nil {
			continue
		}
		if errors.Is(err, io.EOF) {
			return nil, ErrTruncated
		}
		return nil, fmt.Errorf("%w: %w", ErrTransport, err)
	}
	return payload, nil
}
