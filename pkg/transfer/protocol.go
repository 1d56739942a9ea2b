package transfer

import (
	"bufio"
	"fmt"
	"io"

	"github.com/ugorji/go/codec"

	"github.com/andydunstall/rumor/pkg/broadcast"
)

type messageType uint8

const (
	messageTypeTransfer messageType = iota + 1
	messageTypeAck
)

func (t messageType) String() string {
	switch t {
	case messageTypeTransfer:
		return "transfer"
	case messageTypeAck:
		return "ack"
	default:
		return "unknown"
	}
}

const (
	supportedVersion uint8 = 0
)

// transferHeader is sent by the node running the round.
type transferHeader struct {
	NodeID string            `codec:"node_id"`
	Values []broadcast.Value `codec:"values"`
}

// ackHeader is sent by the receiving node once it has stored the values.
type ackHeader struct {
	NodeID string `codec:"node_id"`
	Added  int    `codec:"added"`
}

// trackedWriter is a wrapper for the underlying writer that counts the number
// of bytes written.
type trackedWriter struct {
	w io.Writer
	n int
}

func newTrackedWriter(w io.Writer) *trackedWriter {
	return &trackedWriter{
		w: w,
	}
}

func (w *trackedWriter) Write(b []byte) (int, error) {
	n, err := w.w.Write(b)
	w.n += n
	return n, err
}

func (w *trackedWriter) NumBytesWritten() int {
	return w.n
}

var _ io.Writer = &trackedWriter{}

// trackedReader is a wrapper for the underlying reader that counts the number
// of bytes read.
type trackedReader struct {
	r io.Reader
	n int
}

func newTrackedReader(r io.Reader) *trackedReader {
	return &trackedReader{
		r: r,
	}
}

func (r *trackedReader) Read(b []byte) (int, error) {
	n, err := r.r.Read(b)
	r.n += n
	return n, err
}

func (r *trackedReader) NumBytesRead() int {
	return r.n
}

var _ io.Reader = &trackedReader{}

// writeMessage writes the fixed message type and version, followed by the
// msgpack encoded header, then flushes.
func writeMessage(w *bufio.Writer, t messageType, header interface{}) error {
	_ = w.WriteByte(uint8(t))
	_ = w.WriteByte(supportedVersion)

	var handle codec.MsgpackHandle
	if err := codec.NewEncoder(w, &handle).Encode(header); err != nil {
		return fmt.Errorf("encode: %w", err)
	}
	if err := w.Flush(); err != nil {
		return fmt.Errorf("flush: %w", err)
	}
	return nil
}

// readMessage reads a message of the expected type into header.
func readMessage(r *bufio.Reader, expected messageType, header interface{}) error {
	firstByte, err := r.ReadByte()
	if err != nil {
		return fmt.Errorf("read: %w", err)
	}
	t := messageType(firstByte)
	if t != expected {
		return fmt.Errorf("incorrect message type: %s", t)
	}

	version, err := r.ReadByte()
	if err != nil {
		return fmt.Errorf("read: %w", err)
	}
	if version != supportedVersion {
		return fmt.Errorf("unsupported version: %d", version)
	}

	var handle codec.MsgpackHandle
	if err := codec.NewDecoder(r, &handle).Decode(header); err != nil {
		return fmt.Errorf("decode: %w", err)
	}
	return nil
}
