package bootstrap

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/wolfman30/agenda-assistant/internal/booking"
	"github.com/wolfman30/agenda-assistant/internal/dialogue"
	"github.com/wolfman30/agenda-assistant/internal/keylock"
	"github.com/wolfman30/agenda-assistant/internal/knowledge"
	"github.com/wolfman30/agenda-assistant/internal/store"
	"github.com/wolfman30/agenda-assistant/internal/userconfig"
)

const sweepInterval = 5 * time.Minute

// Stores holds every per-user store the assistant needs.
type Stores struct {
	States      store.KeyedStore[dialogue.State]
	Offers      store.KeyedStore[[]booking.Slot]
	Pending     store.KeyedStore[dialogue.Registration]
	History     store.KeyedStore[[]knowledge.Turn]
	ConfigCache store.KeyedStore[userconfig.Config]
	Bindings    store.Bindings
	Locker      keylock.Locker
	Knowledge   knowledge.Repository

	sweepers []func(ctx context.Context, interval time.Duration)
}

// StoreOptions sizes the stores.
type StoreOptions struct {
	StateTTL      time.Duration
	UserConfigTTL time.Duration
	LockTimeout   time.Duration
}

// BuildStores backs the stores with Redis when a client is given and with
// in-process maps otherwise. Customer bindings prefer Postgres, then Redis
// without expiry, then memory.
func BuildStores(redisClient *redis.Client, pool *pgxpool.Pool, opts StoreOptions) *Stores {
	s := &Stores{}
	if redisClient != nil {
		s.States = store.NewRedisStore[dialogue.State](redisClient, "dialogue:state", opts.StateTTL)
		s.Offers = store.NewRedisStore[[]booking.Slot](redisClient, "dialogue:offer", opts.StateTTL)
		s.Pending = store.NewRedisStore[dialogue.Registration](redisClient, "dialogue:registration", opts.StateTTL)
		s.History = store.NewRedisStore[[]knowledge.Turn](redisClient, "knowledge:history", opts.StateTTL)
		s.ConfigCache = store.NewRedisStore[userconfig.Config](redisClient, "userconfig", opts.UserConfigTTL)
		s.Bindings = store.NewKeyedBindings(store.NewRedisStore[string](redisClient, "billing:customer", 0))
		s.Locker = keylock.NewRedis(redisClient, 0, opts.LockTimeout)
		s.Knowledge = knowledge.NewRedisRepository(redisClient)
	} else {
		states := store.NewMemoryStore[dialogue.State](opts.StateTTL)
		offers := store.NewMemoryStore[[]booking.Slot](opts.StateTTL)
		pending := store.NewMemoryStore[dialogue.Registration](opts.StateTTL)
		history := store.NewMemoryStore[[]knowledge.Turn](opts.StateTTL)
		configs := store.NewMemoryStore[userconfig.Config](opts.UserConfigTTL)
		s.States, s.Offers, s.Pending, s.History, s.ConfigCache = states, offers, pending, history, configs
		s.sweepers = append(s.sweepers, states.RunSweeper, offers.RunSweeper, pending.RunSweeper, history.RunSweeper, configs.RunSweeper)
		s.Bindings = store.NewKeyedBindings(store.NewMemoryStore[string](0))
		s.Locker = keylock.NewLocal(opts.LockTimeout)
		s.Knowledge = knowledge.NewMemoryRepository()
	}
	if pool != nil {
		s.Bindings = store.NewPostgresBindings(pool)
	}
	return s
}

// RunSweepers expires in-process entries until ctx is done. It returns
// immediately for Redis-backed stores.
func (s *Stores) RunSweepers(ctx context.Context) {
	for _, sweep := range s.sweepers {
		go sweep(ctx, sweepInterval)
	}
}
