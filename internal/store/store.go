package store

import "context"

// KV — внешнее долговременное хранилище устройства. Нетранзакционное:
// записи best-effort, неудача логируется вызывающим и не эскалируется.
type KV interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
}
