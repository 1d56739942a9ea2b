package maelstrom

import (
	"context"
	"fmt"

	mnode "github.com/jepsen-io/maelstrom/demo/go"

	"github.com/andydunstall/rumor/pkg/counter"
)

// KV is a counter.KV backed by one of the Maelstrom key-value services, such
// as 'seq-kv'.
type KV struct {
	kv *mnode.KV
}

func NewSeqKV(node *Node) *KV {
	return &KV{
		kv: mnode.NewSeqKV(node.node),
	}
}

func NewLinKV(node *Node) *KV {
	return &KV{
		kv: mnode.NewLinKV(node.node),
	}
}

func (kv *KV) Read(ctx context.Context, key string) (uint64, error) {
	v, err := kv.kv.ReadInt(ctx, key)
	if err != nil {
		return 0, kvError(err)
	}
	if v < 0 {
		return 0, fmt.Errorf("negative value: %d", v)
	}
	return uint64(v), nil
}

func (kv *KV) CompareAndSwap(
	ctx context.Context,
	key string,
	from, to uint64,
	create bool,
) error {
	if err := kv.kv.CompareAndSwap(ctx, key, from, to, create); err != nil {
		return kvError(err)
	}
	return nil
}

// kvError maps Maelstrom error codes onto the counter errors.
func kvError(err error) error {
	switch mnode.ErrorCode(err) {
	case mnode.KeyDoesNotExist:
		return counter.ErrKeyNotFound
	case mnode.PreconditionFailed:
		return counter.ErrPreconditionFailed
	default:
		return err
	}
}

var _ counter.KV = &KV{}
