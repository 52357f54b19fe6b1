// Package redis implements ledger.Ledger on Redis.
//
// Both batch calls run as Lua scripts, so each batch is applied atomically.
//
// Key layout under a prefix P:
//
//	P:seq        INCR counter for task ids
//	P:ids        list of ids in creation order
//	P:task:<id>  hash with content, completed ("0"/"1") and deleted ("0"/"1")
package redis

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"

	"todosync/internal/ledger"
)

// DefaultPrefix is the key prefix used when Options.Prefix is empty.
const DefaultPrefix = "todosync"

// createScript creates one task per ARGV entry and returns the new ids in order.
// KEYS[1] = seq key, KEYS[2] = ids list key, KEYS[3] = task key prefix
var createScript = redis.NewScript(`
local ids = {}
for i, content in ipairs(ARGV) do
    local id = redis.call("INCR", KEYS[1])
    redis.call("HSET", KEYS[3] .. id, "content", content, "completed", "0", "deleted", "0")
    redis.call("RPUSH", KEYS[2], id)
    ids[i] = tostring(id)
end
return ids
`)

// mutateScript applies (kind, id) pairs from ARGV. Every op is checked against the
// state left by the ops before it; nothing is written unless all ops are valid.
// KEYS[1] = task key prefix
var mutateScript = redis.NewScript(`
local prefix = KEYS[1]
local state = {}
local order = {}
local n = #ARGV / 2
for i = 1, n do
    local kind = ARGV[2 * i - 1]
    local id = ARGV[2 * i]
    local s = state[id]
    if not s then
        local fields = redis.call("HMGET", prefix .. id, "completed", "deleted")
        if not fields[2] then
            return redis.error_reply("UNKNOWN op " .. (i - 1))
        end
        s = {completed = fields[1], deleted = fields[2]}
        state[id] = s
        table.insert(order, id)
    end
    if s.deleted == "1" then
        return redis.error_reply("UNKNOWN op " .. (i - 1))
    end
    if kind == "toggle" then
        if s.completed == "1" then s.completed = "0" else s.completed = "1" end
    elseif kind == "delete" then
        s.deleted = "1"
    else
        return redis.error_reply("UNSUPPORTED op " .. (i - 1))
    end
end
for _, id in ipairs(order) do
    redis.call("HSET", prefix .. id, "completed", state[id].completed, "deleted", state[id].deleted)
end
return n
`)

// Options configures the Redis connection.
type Options struct {
	Addr     string
	Password string
	DB       int
	Prefix   string
}

// Ledger is a Redis-backed ledger.Ledger.
type Ledger struct {
	client redis.UniversalClient
	keys   keys
}

// New connects to Redis with opts.
func New(opts Options) *Ledger {
	rdb := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})
	return NewWithClient(rdb, opts.Prefix)
}

// NewWithClient wraps an existing client.
func NewWithClient(client redis.UniversalClient, prefix string) *Ledger {
	return &Ledger{client: client, keys: newKeys(prefix)}
}

// Close closes the client.
func (l *Ledger) Close() error {
	return l.client.Close()
}

// BatchCreate implements ledger.Ledger.
func (l *Ledger) BatchCreate(ctx context.Context, contents []string) ([]ledger.Created, error) {
	if len(contents) == 0 {
		return nil, ledger.ErrEmptyBatch
	}

	args := make([]interface{}, len(contents))
	for i, c := range contents {
		args[i] = c
	}

	ids, err := createScript.Run(ctx, l.client, []string{l.keys.seq, l.keys.ids, l.keys.taskPrefix}, args...).StringSlice()
	if err != nil {
		return nil, fmt.Errorf("redis create batch: %w", err)
	}
	if len(ids) != len(contents) {
		return nil, fmt.Errorf("redis create batch: got %d ids for %d tasks", len(ids), len(contents))
	}

	created := make([]ledger.Created, len(ids))
	for i, id := range ids {
		created[i] = ledger.Created{ID: ledger.RemoteID(id), Content: contents[i]}
	}
	return created, nil
}

// BatchMutate implements ledger.Ledger.
func (l *Ledger) BatchMutate(ctx context.Context, ops []ledger.Op) (ledger.MutateResult, error) {
	if len(ops) == 0 {
		return ledger.MutateResult{}, ledger.ErrEmptyBatch
	}

	args := make([]interface{}, 0, 2*len(ops))
	for _, op := range ops {
		args = append(args, op.Kind.String(), string(op.ID))
	}

	err := mutateScript.Run(ctx, l.client, []string{l.keys.taskPrefix}, args...).Err()
	if err != nil {
		return ledger.MutateResult{}, translateError(err)
	}
	return ledger.MutateResult{}, nil
}

// ListAll implements ledger.Ledger.
func (l *Ledger) ListAll(ctx context.Context) ([]ledger.Record, error) {
	ids, err := l.client.LRange(ctx, l.keys.ids, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("redis list ids: %w", err)
	}
	if len(ids) == 0 {
		return nil, nil
	}

	cmds := make([]*redis.MapStringStringCmd, len(ids))
	_, err = l.client.Pipelined(ctx, func(p redis.Pipeliner) error {
		for i, id := range ids {
			cmds[i] = p.HGetAll(ctx, l.keys.task(id))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("redis load tasks: %w", err)
	}

	records := make([]ledger.Record, 0, len(ids))
	for i, cmd := range cmds {
		fields := cmd.Val()
		if len(fields) == 0 {
			continue
		}
		records = append(records, ledger.Record{
			ID:        ledger.RemoteID(ids[i]),
			Content:   fields["content"],
			Completed: fields["completed"] == "1",
			Deleted:   fields["deleted"] == "1",
		})
	}
	return records, nil
}

func translateError(err error) error {
	var rerr redis.Error
	if errors.As(err, &rerr) && strings.HasPrefix(rerr.Error(), "UNKNOWN") {
		return fmt.Errorf("redis mutate batch: %s: %w", rerr.Error(), ledger.ErrUnknownTask)
	}
	return fmt.Errorf("redis mutate batch: %w", err)
}

type keys struct {
	seq        string
	ids        string
	taskPrefix string
}

func newKeys(prefix string) keys {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return keys{
		seq:        prefix + ":seq",
		ids:        prefix + ":ids",
		taskPrefix: prefix + ":task:",
	}
}

func (k keys) task(id string) string {
	return k.taskPrefix + id
}
