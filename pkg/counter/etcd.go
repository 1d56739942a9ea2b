package counter

import (
	"context"
	"fmt"
	"strconv"

	"go.etcd.io/etcd/api/v3/mvccpb"
	clientv3 "go.etcd.io/etcd/client/v3"
)

// EtcdKV is a KV backed by etcd.
type EtcdKV struct {
	client *clientv3.Client
	prefix string
}

func NewEtcdKV(client *clientv3.Client, prefix string) *EtcdKV {
	return &EtcdKV{
		client: client,
		prefix: prefix,
	}
}

func (kv *EtcdKV) Read(ctx context.Context, key string) (uint64, error) {
	resp, err := kv.client.Get(ctx, kv.prefix+key)
	if err != nil {
		return 0, fmt.Errorf("get: %w", err)
	}
	if len(resp.Kvs) == 0 {
		return 0, ErrKeyNotFound
	}
	return parseValue(resp.Kvs[0])
}

// CompareAndSwap updates the key in a transaction comparing the current
// value. If create is set, a nested transaction creates the key when it
// doesn't exist.
func (kv *EtcdKV) CompareAndSwap(
	ctx context.Context,
	key string,
	from, to uint64,
	create bool,
) error {
	key = kv.prefix + key
	put := clientv3.OpPut(key, strconv.FormatUint(to, 10))

	txn := kv.client.Txn(ctx).If(
		clientv3.Compare(clientv3.Value(key), "=", strconv.FormatUint(from, 10)),
	).Then(put)
	if create {
		txn = txn.Else(clientv3.OpTxn(
			[]clientv3.Cmp{
				clientv3.Compare(clientv3.CreateRevision(key), "=", 0),
			},
			[]clientv3.Op{put},
			nil,
		))
	}

	resp, err := txn.Commit()
	if err != nil {
		return fmt.Errorf("txn: %w", err)
	}
	if resp.Succeeded {
		return nil
	}
	if create && len(resp.Responses) == 1 {
		if nested := resp.Responses[0].GetResponseTxn(); nested != nil && nested.Succeeded {
			return nil
		}
	}
	return ErrPreconditionFailed
}

func parseValue(kv *mvccpb.KeyValue) (uint64, error) {
	value, err := strconv.ParseUint(string(kv.Value), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse value: %s: %w", kv.Key, err)
	}
	return value, nil
}

var _ KV = &EtcdKV{}
