// Package redisstore persists the chat collections in Redis.
package redisstore

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"batepapo/internal/model"
	"batepapo/internal/store"
)

// Redis key patterns:
// {prefix}participants   HASH<name, lastSeen unix ms>
// {prefix}messages       LIST<store.EncodeMessage JSON>, RPUSH order is creation order

// Config holds Redis connection configuration.
type Config struct {
	Address  string
	Password string
	DB       int
	Prefix   string // key namespace, e.g. "batepapo:"
}

// Store implements store.Store on Redis.
type Store struct {
	client          *redis.Client
	participantsKey string
	messagesKey     string
}

var _ store.Store = (*Store)(nil)

// touchScript updates the timestamp only if the participant exists.
// Returns 1 if updated, 0 if the participant is absent.
var touchScript = redis.NewScript(`
if redis.call("HEXISTS", KEYS[1], ARGV[1]) == 1 then
  redis.call("HSET", KEYS[1], ARGV[1], ARGV[2])
  return 1
end
return 0
`)

// evictScript removes every participant whose timestamp is below the cutoff
// and returns them as a flat {name, ts, name, ts, ...} array.
var evictScript = redis.NewScript(`
local all = redis.call("HGETALL", KEYS[1])
local cutoff = tonumber(ARGV[1])
local evicted = {}
for i = 1, #all, 2 do
  if tonumber(all[i + 1]) < cutoff then
    redis.call("HDEL", KEYS[1], all[i])
    table.insert(evicted, all[i])
    table.insert(evicted, all[i + 1])
  end
end
return evicted
`)

// Open connects and pings Redis.
func Open(ctx context.Context, cfg Config) (*Store, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return New(client, cfg.Prefix), nil
}

// New wraps an existing client.
func New(client *redis.Client, prefix string) *Store {
	return &Store{
		client:          client,
		participantsKey: prefix + "participants",
		messagesKey:     prefix + "messages",
	}
}

func (s *Store) InsertParticipantIfAbsent(ctx context.Context, p model.Participant) error {
	ok, err := s.client.HSetNX(ctx, s.participantsKey, p.Name, p.LastSeen.UnixMilli()).Result()
	if err != nil {
		return fmt.Errorf("redis insert participant: %w", err)
	}
	if !ok {
		return store.ErrAlreadyExists
	}
	return nil
}

func (s *Store) GetParticipant(ctx context.Context, name string) (model.Participant, error) {
	val, err := s.client.HGet(ctx, s.participantsKey, name).Result()
	if errors.Is(err, redis.Nil) {
		return model.Participant{}, store.ErrNotFound
	}
	if err != nil {
		return model.Participant{}, fmt.Errorf("redis get participant: %w", err)
	}
	return parseParticipant(name, val)
}

func (s *Store) TouchParticipant(ctx context.Context, name string, seen time.Time) error {
	updated, err := touchScript.Run(ctx, s.client, []string{s.participantsKey}, name, seen.UnixMilli()).Int()
	if err != nil {
		return fmt.Errorf("redis touch participant: %w", err)
	}
	if updated == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) ListParticipants(ctx context.Context) ([]model.Participant, error) {
	all, err := s.client.HGetAll(ctx, s.participantsKey).Result()
	if err != nil {
		return nil, fmt.Errorf("redis list participants: %w", err)
	}
	participants := make([]model.Participant, 0, len(all))
	for name, val := range all {
		p, err := parseParticipant(name, val)
		if err != nil {
			return nil, err
		}
		participants = append(participants, p)
	}
	return participants, nil
}

func (s *Store) DeleteParticipantsSeenBefore(ctx context.Context, cutoff time.Time) ([]model.Participant, error) {
	flat, err := evictScript.Run(ctx, s.client, []string{s.participantsKey}, cutoff.UnixMilli()).StringSlice()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("redis evict participants: %w", err)
	}
	if len(flat)%2 != 0 {
		return nil, fmt.Errorf("unexpected Redis response length: %d", len(flat))
	}
	evicted := make([]model.Participant, 0, len(flat)/2)
	for i := 0; i < len(flat); i += 2 {
		p, err := parseParticipant(flat[i], flat[i+1])
		if err != nil {
			return nil, err
		}
		evicted = append(evicted, p)
	}
	return evicted, nil
}

func (s *Store) InsertMessages(ctx context.Context, msgs []model.Message) error {
	if len(msgs) == 0 {
		return nil
	}
	values := make([]interface{}, 0, len(msgs))
	for _, m := range msgs {
		data, err := store.EncodeMessage(m)
		if err != nil {
			return err
		}
		values = append(values, string(data))
	}
	// A single variadic RPUSH is atomic.
	if err := s.client.RPush(ctx, s.messagesKey, values...).Err(); err != nil {
		return fmt.Errorf("redis append messages: %w", err)
	}
	return nil
}

func (s *Store) ListMessages(ctx context.Context) ([]model.Message, error) {
	raw, err := s.client.LRange(ctx, s.messagesKey, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("redis list messages: %w", err)
	}
	messages := make([]model.Message, 0, len(raw))
	for _, item := range raw {
		msg, err := store.DecodeMessage([]byte(item))
		if err != nil {
			return nil, err
		}
		messages = append(messages, msg)
	}
	return messages, nil
}

func (s *Store) Close() error {
	return s.client.Close()
}

func parseParticipant(name, val string) (model.Participant, error) {
	ms, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return model.Participant{}, fmt.Errorf("participant %q: bad timestamp %q: %w", name, val, err)
	}
	return model.Participant{Name: name, LastSeen: time.UnixMilli(ms)}, nil
}
