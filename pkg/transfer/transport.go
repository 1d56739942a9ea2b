package transfer

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/andydunstall/rumor/pkg/broadcast"
	"github.com/andydunstall/rumor/pkg/log"
)

var (
	// ErrUnknownPeer is returned when transferring to a node with no known
	// address.
	ErrUnknownPeer = errors.New("unknown peer")
)

// Transport sends transfer RPCs to other nodes over TCP.
//
// Each transfer opens a new connection to the peer, writes the values and
// waits for the peer to acknowledge.
type Transport struct {
	nodeID string

	// peers maps node ID to transfer address.
	peers map[string]string

	// mu protects the above fields.
	mu sync.RWMutex

	dialer net.Dialer

	metrics *Metrics

	logger log.Logger
}

func NewTransport(
	nodeID string,
	peers map[string]string,
	metrics *Metrics,
	logger log.Logger,
) *Transport {
	p := make(map[string]string, len(peers))
	for id, addr := range peers {
		p[id] = addr
	}
	return &Transport{
		nodeID:  nodeID,
		peers:   p,
		metrics: metrics,
		logger:  logger.WithSubsystem("transfer"),
	}
}

// Transfer sends the values to the peer and waits for an acknowledgement.
//
// Any deadline on the context is used as the connection deadline.
func (t *Transport) Transfer(ctx context.Context, peer string, values []broadcast.Value) error {
	addr, ok := t.peerAddr(peer)
	if !ok {
		return fmt.Errorf("%s: %w", peer, ErrUnknownPeer)
	}

	conn, err := t.dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("dial: %s: %w", addr, err)
	}
	defer conn.Close()

	t.metrics.ConnectionsOutbound.Inc()

	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}
	// Unblock any pending reads or writes if the context is cancelled.
	stop := context.AfterFunc(ctx, func() {
		_ = conn.SetDeadline(time.Now())
	})
	defer stop()

	trackedReader := newTrackedReader(conn)
	defer func() {
		t.metrics.BytesInbound.Add(float64(trackedReader.NumBytesRead()))
	}()

	trackedWriter := newTrackedWriter(conn)
	defer func() {
		t.metrics.BytesOutbound.Add(float64(trackedWriter.NumBytesWritten()))
	}()

	if err := writeMessage(
		bufio.NewWriter(trackedWriter),
		messageTypeTransfer,
		&transferHeader{
			NodeID: t.nodeID,
			Values: values,
		},
	); err != nil {
		return t.contextErr(ctx, fmt.Errorf("write transfer: %w", err))
	}

	var ack ackHeader
	if err := readMessage(
		bufio.NewReader(trackedReader),
		messageTypeAck,
		&ack,
	); err != nil {
		return t.contextErr(ctx, fmt.Errorf("read ack: %w", err))
	}

	t.logger.Debug(
		"transfer acknowledged",
		zap.String("peer", peer),
		zap.Int("values", len(values)),
		zap.Int("added", ack.Added),
	)

	return nil
}

// SetPeer adds or updates the transfer address of the peer.
func (t *Transport) SetPeer(id string, addr string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.peers[id] = addr
}

// Peers returns the IDs of the known peers, sorted.
func (t *Transport) Peers() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()

	ids := make([]string, 0, len(t.peers))
	for id := range t.peers {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (t *Transport) peerAddr(id string) (string, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	addr, ok := t.peers[id]
	return addr, ok
}

// contextErr returns the context error if the context is done, since an IO
// error caused by the deadline is less useful.
func (t *Transport) contextErr(ctx context.Context, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	return err
}

var _ broadcast.Transport = &Transport{}
