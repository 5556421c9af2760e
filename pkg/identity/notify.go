package identity

import (
	"context"
	"encoding/json"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"

	"github.com/plugboard/plugboard/pkg/async"
)

// DeletionChannel is the Redis pub/sub channel deletion events are
// published on, so session stores in other processes can invalidate
// sessions for the deleted ids.
const DeletionChannel = "plugboard:users:deleted"

const notifyTimeout = 5 * time.Second

// DeletionHook receives the ids of deleted users. Hooks run
// asynchronously; a slow or panicking hook cannot block or fail the
// deletion that triggered it.
type DeletionHook func(ctx context.Context, ids []string)

// Notifier fans user-deletion events out to in-process hooks and,
// when a Redis client is configured, to the pub/sub channel.
type Notifier struct {
	hooks []DeletionHook
	redis *redis.Client
	log   *logrus.Logger
}

// NewNotifier creates a notifier. redis may be nil for single-process
// deployments.
func NewNotifier(rdb *redis.Client, log *logrus.Logger) *Notifier {
	if log == nil {
		log = logrus.New()
	}
	return &Notifier{redis: rdb, log: log}
}

// OnDeletion registers a hook. Not safe to call concurrently with
// UsersDeleted; register everything during boot.
func (n *Notifier) OnDeletion(hook DeletionHook) {
	n.hooks = append(n.hooks, hook)
}

// UsersDeleted emits a deletion event for the given user ids.
func (n *Notifier) UsersDeleted(ctx context.Context, ids []string) {
	if len(ids) == 0 {
		return
	}

	for _, hook := range n.hooks {
		hook := hook
		async.SafeGoNoError(ctx, notifyTimeout, "user deletion hook", func(ctx context.Context) {
			hook(ctx, ids)
		})
	}

	if n.redis == nil {
		return
	}
	payload, err := json.Marshal(ids)
	if err != nil {
		n.log.Errorf("Failed to encode deletion event: %v", err)
		return
	}
	async.SafeGo(ctx, notifyTimeout, "user deletion publish", func(ctx context.Context) error {
		return n.redis.Publish(ctx, DeletionChannel, payload).Err()
	})
}
