package redisfeed

import (
	"context"

	"github.com/redis/go-redis/v9"

	gferrors "github.com/vnykmshr/workq/pkg/common/errors"
	"github.com/vnykmshr/workq/pkg/common/validation"
)

// Publisher appends payloads to a Redis list for a Feed to drain.
type Publisher struct {
	client redis.UniversalClient
	key    string
}

// NewPublisher creates a publisher for key.
func NewPublisher(client redis.UniversalClient, key string) (*Publisher, error) {
	if err := validation.ValidateNotNil("redisfeed", "redis", client); err != nil {
		return nil, err
	}
	if err := validation.ValidateNotEmpty("redisfeed", "key", key); err != nil {
		return nil, err
	}
	return &Publisher{client: client, key: key}, nil
}

// Publish pushes payloads in order and returns the list length afterwards.
// A Feed on the same key receives them in the order given.
func (p *Publisher) Publish(ctx context.Context, payloads ...string) (int64, error) {
	if len(payloads) == 0 {
		return p.Len(ctx)
	}

	args := make([]interface{}, len(payloads))
	for i, payload := range payloads {
		args[i] = payload
	}

	n, err := p.client.LPush(ctx, p.key, args...).Result()
	if err != nil {
		return 0, gferrors.NewOperationError("redisfeed", "publish", err).WithContext("key " + p.key)
	}
	return n, nil
}

// Len returns the number of payloads waiting on the list.
func (p *Publisher) Len(ctx context.Context) (int64, error) {
	n, err := p.client.LLen(ctx, p.key).Result()
	if err != nil {
		return 0, gferrors.NewOperationError("redisfeed", "len", err).WithContext("key " + p.key)
	}
	return n, nil
}
