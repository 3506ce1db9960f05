package leaderboard

import (
	"context"
	_ "embed"
	"fmt"
	"sort"
	"strconv"
	"time"

	"pointsbank/domain/entities"
	"pointsbank/events"

	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
)

//go:embed lua/apply.lua
var luaApply string

//go:embed lua/reset.lua
var luaReset string

// RedisLeaderboard projects account balances into a Redis sorted set.
// Balance events can arrive out of order, so each update carries its
// transaction id and older ones are ignored.
type RedisLeaderboard struct {
	rdb      redis.UniversalClient
	key      string
	scrApply *redis.Script
	scrReset *redis.Script
}

// Connect opens a client from a redis:// URL and checks it with a ping
func Connect(ctx context.Context, url string) (redis.UniversalClient, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}
	opts.DialTimeout = time.Second
	opts.ReadTimeout = 400 * time.Millisecond
	opts.WriteTimeout = 400 * time.Millisecond
	opts.OnConnect = func(ctx context.Context, cn *redis.Conn) error {
		_ = cn.ClientSetName(ctx, "pointsbank").Err()
		return nil
	}

	rdb := redis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}

	log.WithField("addr", opts.Addr).Info("Connected to Redis")
	return rdb, nil
}

// NewRedisLeaderboard creates a projection stored under key
func NewRedisLeaderboard(rdb redis.UniversalClient, key string) *RedisLeaderboard {
	return &RedisLeaderboard{
		rdb:      rdb,
		key:      key,
		scrApply: redis.NewScript(luaApply),
		scrReset: redis.NewScript(luaReset),
	}
}

func (l *RedisLeaderboard) keys() []string {
	return []string{l.key, l.key + ":txn", l.key + ":reset"}
}

// Rebuild replaces the projection with the given accounts
func (l *RedisLeaderboard) Rebuild(ctx context.Context, accounts []*entities.Account) error {
	keys := l.keys()
	_, err := l.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, keys...)
		if len(accounts) == 0 {
			return nil
		}
		members := make([]redis.Z, 0, len(accounts))
		for _, a := range accounts {
			members = append(members, redis.Z{Score: float64(a.Balance), Member: a.Username})
		}
		pipe.ZAdd(ctx, l.key, members...)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to rebuild leaderboard: %w", err)
	}

	log.WithField("accounts", len(accounts)).Info("Leaderboard projection rebuilt")
	return nil
}

// Apply folds one balance change into the projection
func (l *RedisLeaderboard) Apply(ctx context.Context, e events.BalanceChangeEvent) error {
	if e.TransactionType == entities.TransactionTypeReset {
		if err := l.scrReset.Run(ctx, l.rdb, l.keys(), e.TransactionID).Err(); err != nil {
			return fmt.Errorf("failed to reset leaderboard: %w", err)
		}
		return nil
	}

	if err := l.scrApply.Run(ctx, l.rdb, l.keys(), e.Username, e.TransactionID, e.NewBalance).Err(); err != nil {
		return fmt.Errorf("failed to update leaderboard for %s: %w", e.Username, err)
	}
	return nil
}

// Subscribe keeps the projection current from the bus
func (l *RedisLeaderboard) Subscribe(bus *events.Bus) {
	bus.Subscribe(events.EventTypeBalanceChange, func(ctx context.Context, event events.Event) {
		e, ok := event.(events.BalanceChangeEvent)
		if !ok {
			return
		}
		if err := l.Apply(ctx, e); err != nil {
			log.WithFields(log.Fields{
				"username":      e.Username,
				"transactionID": e.TransactionID,
			}).WithError(err).Error("Failed to project balance change")
		}
	})
}

// Top returns the richest accounts, ties broken by username
func (l *RedisLeaderboard) Top(ctx context.Context, limit int) ([]*entities.Account, error) {
	if limit <= 0 {
		return []*entities.Account{}, nil
	}

	head, err := l.rdb.ZRevRangeWithScores(ctx, l.key, 0, int64(limit-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read leaderboard: %w", err)
	}
	if len(head) == 0 {
		return []*entities.Account{}, nil
	}

	// Members tied at the cut-off score are read in full so the cut keeps the
	// lowest usernames.
	boundary := head[len(head)-1].Score
	score := strconv.FormatFloat(boundary, 'f', -1, 64)
	tied, err := l.rdb.ZRangeByScore(ctx, l.key, &redis.ZRangeBy{Min: score, Max: score}).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read leaderboard ties: %w", err)
	}

	return mergeTies(head, boundary, tied, limit), nil
}

// mergeTies orders the entries above boundary by score descending then
// username, and fills the rest with the tied usernames in ascending order
func mergeTies(head []redis.Z, boundary float64, tied []string, limit int) []*entities.Account {
	out := make([]*entities.Account, 0, limit)
	for _, z := range head {
		if z.Score > boundary {
			out = append(out, projected(z.Member, z.Score))
		}
	}
	// Redis returns equal scores in reverse member order.
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Balance != out[j].Balance {
			return out[i].Balance > out[j].Balance
		}
		return out[i].Username < out[j].Username
	})

	sorted := append([]string(nil), tied...)
	sort.Strings(sorted)
	for _, name := range sorted {
		if len(out) == limit {
			break
		}
		out = append(out, projected(name, boundary))
	}
	return out
}

func projected(member any, score float64) *entities.Account {
	name, _ := member.(string)
	return &entities.Account{Username: name, Balance: int64(score)}
}
