package redis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	goredis "github.com/redis/go-redis/v9"

	"ereader/internal/platform/logger"
	"ereader/internal/platform/metrics"
	"ereader/internal/session"
)

const (
	fieldToken = "auth_token"
	fieldUser  = "user_data"

	eventWrite = "write"
	eventClear = "clear"
)

// RedisStore shares one session between processes through a Redis hash.
// Changes are announced on a pub/sub channel so every process observing the
// store sees logins and logouts made elsewhere. Observers in the writing
// process are notified directly, so they do not depend on the subscription.
type RedisStore struct {
	client  goredis.UniversalClient
	key     string
	channel string
	logger  *slog.Logger
	metrics *metrics.Metrics

	mu         sync.Mutex
	bus        *session.Broadcaster
	listenOnce sync.Once
	stop       context.CancelFunc
	listening  chan struct{}
}

// Option configures a RedisStore.
type Option func(*RedisStore)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *RedisStore) {
		s.logger = l
	}
}

// WithMetrics records writes and clears.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *RedisStore) {
		s.metrics = m
	}
}

// New constructs a Redis-backed store. Keys are prefixed with namespace.
func New(client goredis.UniversalClient, namespace string, opts ...Option) *RedisStore {
	if namespace == "" {
		namespace = "ereader"
	}
	s := &RedisStore{
		client:    client,
		key:       namespace + ":session",
		channel:   namespace + ":session:events",
		logger:    logger.Discard(),
		bus:       session.NewBroadcaster(),
		listening: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *RedisStore) Read(ctx context.Context) (*session.Session, error) {
	fields, err := s.client.HGetAll(ctx, s.key).Result()
	if err != nil {
		return nil, fmt.Errorf("read session hash: %w", err)
	}
	rec := session.Record{AuthToken: fields[fieldToken], UserData: fields[fieldUser]}
	sess, err := rec.Decode()
	if err != nil {
		s.logger.WarnContext(ctx, "session record corrupt, treating as logged out", "key", s.key, "error", err)
		return nil, nil
	}
	return sess, nil
}

func (s *RedisStore) Observe(ctx context.Context) <-chan *session.Session {
	s.startListener()

	s.mu.Lock()
	defer s.mu.Unlock()
	current, err := s.Read(ctx)
	if err != nil {
		s.logger.WarnContext(ctx, "session read failed, observing as logged out", "error", err)
	}
	return s.bus.Subscribe(ctx, current)
}

func (s *RedisStore) Write(ctx context.Context, sess session.Session) error {
	rec, err := session.EncodeRecord(sess)
	if err != nil {
		return err
	}
	_, err = s.client.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
		pipe.Del(ctx, s.key)
		pipe.HSet(ctx, s.key, fieldToken, rec.AuthToken, fieldUser, rec.UserData)
		pipe.Publish(ctx, s.channel, eventWrite)
		return nil
	})
	if err != nil {
		return fmt.Errorf("write session hash: %w", err)
	}
	s.metrics.RecordSessionWrite("write")
	s.publish(&sess)
	return nil
}

func (s *RedisStore) Clear(ctx context.Context) error {
	_, err := s.client.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
		pipe.Del(ctx, s.key)
		pipe.Publish(ctx, s.channel, eventClear)
		return nil
	})
	if err != nil {
		return fmt.Errorf("clear session hash: %w", err)
	}
	s.metrics.RecordSessionWrite("clear")
	s.publish(nil)
	return nil
}

// Close stops the change listener and closes all observer channels.
func (s *RedisStore) Close() error {
	s.mu.Lock()
	stop := s.stop
	s.mu.Unlock()
	if stop != nil {
		stop()
	}
	s.bus.Close()
	return nil
}

// startListener subscribes to the change channel once per store. It returns
// after the subscription is confirmed so no change is missed between the
// caller's initial read and the first event.
func (s *RedisStore) startListener() {
	s.listenOnce.Do(func() {
		ctx, cancel := context.WithCancel(context.Background())
		s.mu.Lock()
		s.stop = cancel
		s.mu.Unlock()

		pubsub := s.client.Subscribe(ctx, s.channel)
		if _, err := pubsub.Receive(ctx); err != nil {
			s.logger.Warn("session change subscription failed", "channel", s.channel, "error", err)
		}
		close(s.listening)

		go func() {
			defer pubsub.Close() //nolint:errcheck // shutting down
			msgs := pubsub.Channel()
			for {
				select {
				case <-ctx.Done():
					return
				case msg, ok := <-msgs:
					if !ok {
						return
					}
					s.refresh(ctx, msg.Payload)
				}
			}
		}()
	})
	<-s.listening
}

func (s *RedisStore) publish(sess *session.Session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.bus.Publish(sess)
}

// refresh re-reads the hash whatever the event, so a late clear event never
// hides a newer local write.
func (s *RedisStore) refresh(ctx context.Context, event string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	current, err := s.Read(ctx)
	if err != nil {
		if !errors.Is(err, context.Canceled) {
			s.logger.Warn("session refresh failed", "event", event, "error", err)
		}
		return
	}
	s.bus.Publish(current)
}

var _ session.Store = (*RedisStore)(nil)
