package transfer

import (
	"bufio"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/andydunstall/rumor/pkg/broadcast"
	"github.com/andydunstall/rumor/pkg/log"
)

// Receiver stores values transferred from another node.
type Receiver interface {
	// Receive stores the values and returns the number of new values.
	Receive(from string, values []broadcast.Value) int
}

// Listener accepts transfer connections from other nodes, passes the
// values to the receiver then acknowledges.
type Listener struct {
	ln net.Listener

	nodeID string

	receiver Receiver

	timeout time.Duration

	wg sync.WaitGroup

	metrics *Metrics

	logger log.Logger
}

func NewListener(
	ln net.Listener,
	nodeID string,
	receiver Receiver,
	timeout time.Duration,
	metrics *Metrics,
	logger log.Logger,
) *Listener {
	return &Listener{
		ln:       ln,
		nodeID:   nodeID,
		receiver: receiver,
		timeout:  timeout,
		metrics:  metrics,
		logger:   logger.WithSubsystem("transfer"),
	}
}

// Serve will accept connections until listener is closed.
func (l *Listener) Serve() error {
	for {
		conn, err := l.ln.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Timeout() {
				l.logger.Warn("failed to accept connection", zap.Error(err))
				continue
			}
			return fmt.Errorf("accept: %w", err)
		}

		l.metrics.ConnectionsInbound.Inc()

		l.wg.Add(1)
		go func() {
			defer l.wg.Done()

			if err := l.handleConn(conn); err != nil {
				l.logger.Warn(
					"failed to handle connection",
					zap.String("addr", conn.RemoteAddr().String()),
					zap.Error(err),
				)
			}
		}()
	}
}

// Close stops accepting connections and waits for in-progress transfers to
// complete.
func (l *Listener) Close() error {
	err := l.ln.Close()
	l.wg.Wait()
	return err
}

func (l *Listener) Addr() net.Addr {
	return l.ln.Addr()
}

func (l *Listener) handleConn(conn net.Conn) error {
	defer conn.Close()

	if l.timeout > 0 {
		_ = conn.SetDeadline(time.Now().Add(l.timeout))
	}

	trackedReader := newTrackedReader(conn)
	defer func() {
		l.metrics.BytesInbound.Add(float64(trackedReader.NumBytesRead()))
	}()

	trackedWriter := newTrackedWriter(conn)
	defer func() {
		l.metrics.BytesOutbound.Add(float64(trackedWriter.NumBytesWritten()))
	}()

	var header transferHeader
	if err := readMessage(
		bufio.NewReader(trackedReader),
		messageTypeTransfer,
		&header,
	); err != nil {
		return fmt.Errorf("read transfer: %w", err)
	}

	added := l.receiver.Receive(header.NodeID, header.Values)

	if err := writeMessage(
		bufio.NewWriter(trackedWriter),
		messageTypeAck,
		&ackHeader{
			NodeID: l.nodeID,
			Added:  added,
		},
	); err != nil {
		return fmt.Errorf("write ack: %w", err)
	}

	return nil
}
