// Package redisstore implements mq.SessionStore on top of Redis, for
// deployments that want session state to survive a process restart without
// managing a local file tree. It mirrors the layout of the root package's
// FileStore: one hash of pending publishes, one hash of subscriptions, and
// one set of received QoS 2 packet ids, all scoped to a client id.
package redisstore

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	mq "github.com/tern-io/mqtt"
)

// Compile-time check that Store implements mq.SessionStore.
var _ mq.SessionStore = (*Store)(nil)

// Store is a Redis-backed mq.SessionStore. Every key it touches is scoped
// under a prefix derived from the client id, so one Redis instance can back
// several clients without collisions.
type Store struct {
	client   *redis.Client
	clientID string
	ttl      time.Duration
	timeout  time.Duration
}

// Config configures a Store.
type Config struct {
	// Options configures the underlying redis.Client. Required.
	Options *redis.Options

	// TTL, if non-zero, is applied to every key this store writes. Useful
	// so an abandoned session eventually falls out of Redis on its own
	// instead of accumulating forever.
	TTL time.Duration

	// CommandTimeout bounds each individual Redis command. Defaults to
	// 5 seconds if zero.
	CommandTimeout time.Duration
}

// New creates a Redis-backed session store for the given client id and
// verifies connectivity with a PING.
//
// Example:
//
//	store, err := redisstore.New("sensor-1", redisstore.Config{
//	    Options: &redis.Options{Addr: "localhost:6379"},
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	client, err := mq.Dial("tcp://localhost:1883",
//	    mq.WithClientID("sensor-1"),
//	    mq.WithCleanSession(false),
//	    mq.WithSessionStore(store))
func New(clientID string, cfg Config) (*Store, error) {
	if clientID == "" {
		return nil, fmt.Errorf("redisstore: clientID cannot be empty")
	}
	if cfg.Options == nil {
		return nil, fmt.Errorf("redisstore: Options is required")
	}

	timeout := cfg.CommandTimeout
	if timeout == 0 {
		timeout = 5 * time.Second
	}

	client := redis.NewClient(cfg.Options)

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redisstore: failed to connect: %w", err)
	}

	return &Store{
		client:   client,
		clientID: clientID,
		ttl:      cfg.TTL,
		timeout:  timeout,
	}, nil
}

// ClientID returns the client id this store is scoped to.
func (s *Store) ClientID() string {
	return s.clientID
}

// Close releases the underlying Redis connection pool.
func (s *Store) Close() error {
	return s.client.Close()
}

func (s *Store) ctx() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), s.timeout)
}

func (s *Store) pendingKey() string      { return "mq:" + s.clientID + ":pending" }
func (s *Store) subscriptionKey() string { return "mq:" + s.clientID + ":subs" }
func (s *Store) qos2Key() string         { return "mq:" + s.clientID + ":qos2" }

func (s *Store) applyTTL(ctx context.Context, pipe redis.Pipeliner, keys ...string) {
	if s.ttl <= 0 {
		return
	}
	for _, key := range keys {
		pipe.Expire(ctx, key, s.ttl)
	}
}

// SavePendingPublish stores an outgoing publish awaiting acknowledgment in
// the pending-publishes hash, keyed by packet id.
func (s *Store) SavePendingPublish(packetID uint16, pub *mq.PersistedPublish) error {
	data, err := json.Marshal(pub)
	if err != nil {
		return fmt.Errorf("redisstore: failed to marshal publish: %w", err)
	}

	ctx, cancel := s.ctx()
	defer cancel()

	key := s.pendingKey()
	pipe := s.client.Pipeline()
	pipe.HSet(ctx, key, strconv.Itoa(int(packetID)), data)
	s.applyTTL(ctx, pipe, key)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redisstore: failed to save pending publish: %w", err)
	}
	return nil
}

// DeletePendingPublish removes a publish once it has been acknowledged.
func (s *Store) DeletePendingPublish(packetID uint16) error {
	ctx, cancel := s.ctx()
	defer cancel()

	if err := s.client.HDel(ctx, s.pendingKey(), strconv.Itoa(int(packetID))).Err(); err != nil {
		return fmt.Errorf("redisstore: failed to delete pending publish: %w", err)
	}
	return nil
}

// LoadPendingPublishes retrieves every stored pending publish.
func (s *Store) LoadPendingPublishes() (map[uint16]*mq.PersistedPublish, error) {
	ctx, cancel := s.ctx()
	defer cancel()

	raw, err := s.client.HGetAll(ctx, s.pendingKey()).Result()
	if err != nil {
		return nil, fmt.Errorf("redisstore: failed to load pending publishes: %w", err)
	}

	result := make(map[uint16]*mq.PersistedPublish, len(raw))
	for field, data := range raw {
		id, err := strconv.Atoi(field)
		if err != nil {
			continue // skip malformed field name
		}

		var pub mq.PersistedPublish
		if err := json.Unmarshal([]byte(data), &pub); err != nil {
			continue // skip corrupted entry
		}
		result[uint16(id)] = &pub
	}
	return result, nil
}

// ClearPendingPublishes drops the entire pending-publishes hash.
func (s *Store) ClearPendingPublishes() error {
	ctx, cancel := s.ctx()
	defer cancel()

	if err := s.client.Del(ctx, s.pendingKey()).Err(); err != nil {
		return fmt.Errorf("redisstore: failed to clear pending publishes: %w", err)
	}
	return nil
}

// SaveSubscription stores an active subscription in the subscriptions hash,
// keyed by topic filter.
func (s *Store) SaveSubscription(topic string, sub *mq.SubscriptionInfo) error {
	data, err := json.Marshal(sub)
	if err != nil {
		return fmt.Errorf("redisstore: failed to marshal subscription: %w", err)
	}

	ctx, cancel := s.ctx()
	defer cancel()

	key := s.subscriptionKey()
	pipe := s.client.Pipeline()
	pipe.HSet(ctx, key, topic, data)
	s.applyTTL(ctx, pipe, key)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redisstore: failed to save subscription: %w", err)
	}
	return nil
}

// DeleteSubscription removes a subscription.
func (s *Store) DeleteSubscription(topic string) error {
	ctx, cancel := s.ctx()
	defer cancel()

	if err := s.client.HDel(ctx, s.subscriptionKey(), topic).Err(); err != nil {
		return fmt.Errorf("redisstore: failed to delete subscription: %w", err)
	}
	return nil
}

// LoadSubscriptions retrieves every stored subscription.
func (s *Store) LoadSubscriptions() (map[string]*mq.SubscriptionInfo, error) {
	ctx, cancel := s.ctx()
	defer cancel()

	raw, err := s.client.HGetAll(ctx, s.subscriptionKey()).Result()
	if err != nil {
		return nil, fmt.Errorf("redisstore: failed to load subscriptions: %w", err)
	}

	result := make(map[string]*mq.SubscriptionInfo, len(raw))
	for topic, data := range raw {
		var sub mq.SubscriptionInfo
		if err := json.Unmarshal([]byte(data), &sub); err != nil {
			continue // skip corrupted entry
		}
		result[topic] = &sub
	}
	return result, nil
}

// SaveReceivedQoS2 marks a QoS 2 packet id as received, guarding against
// redelivery before PUBCOMP is sent.
func (s *Store) SaveReceivedQoS2(packetID uint16) error {
	ctx, cancel := s.ctx()
	defer cancel()

	key := s.qos2Key()
	pipe := s.client.Pipeline()
	pipe.SAdd(ctx, key, packetID)
	s.applyTTL(ctx, pipe, key)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redisstore: failed to save received QoS2 id: %w", err)
	}
	return nil
}

// DeleteReceivedQoS2 removes a QoS 2 packet id once its flow has completed.
func (s *Store) DeleteReceivedQoS2(packetID uint16) error {
	ctx, cancel := s.ctx()
	defer cancel()

	if err := s.client.SRem(ctx, s.qos2Key(), packetID).Err(); err != nil {
		return fmt.Errorf("redisstore: failed to delete received QoS2 id: %w", err)
	}
	return nil
}

// LoadReceivedQoS2 retrieves every stored received QoS 2 packet id.
func (s *Store) LoadReceivedQoS2() (map[uint16]struct{}, error) {
	ctx, cancel := s.ctx()
	defer cancel()

	members, err := s.client.SMembers(ctx, s.qos2Key()).Result()
	if err != nil {
		return nil, fmt.Errorf("redisstore: failed to load received QoS2 ids: %w", err)
	}

	result := make(map[uint16]struct{}, len(members))
	for _, m := range members {
		id, err := strconv.Atoi(m)
		if err != nil {
			continue
		}
		result[uint16(id)] = struct{}{}
	}
	return result, nil
}

// ClearReceivedQoS2 drops the entire received-QoS2 set.
func (s *Store) ClearReceivedQoS2() error {
	ctx, cancel := s.ctx()
	defer cancel()

	if err := s.client.Del(ctx, s.qos2Key()).Err(); err != nil {
		return fmt.Errorf("redisstore: failed to clear received QoS2 ids: %w", err)
	}
	return nil
}

// Clear removes all session state for this client id: pending publishes,
// subscriptions, and received QoS2 ids.
func (s *Store) Clear() error {
	ctx, cancel := s.ctx()
	defer cancel()

	if err := s.client.Del(ctx, s.pendingKey(), s.subscriptionKey(), s.qos2Key()).Err(); err != nil {
		return fmt.Errorf("redisstore: failed to clear session state: %w", err)
	}
	return nil
}
