package lock

import (
	"context"
	"errors"
	"testing"
	"time"

	"crm-bridge/core/syncerr"

	"github.com/bsm/redislock"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubObtainer struct {
	err  error
	keys []string
}

func (s *stubObtainer) Obtain(ctx context.Context, key string, ttl time.Duration, opt *redislock.Options) (*redislock.Lock, error) {
	s.keys = append(s.keys, key)
	return nil, s.err
}

func TestNop(t *testing.T) {
	release, err := Nop{}.Acquire(context.Background())
	require.NoError(t, err)
	assert.NoError(t, release(context.Background()))
}

func TestRedisLocker_HeldElsewhere(t *testing.T) {
	stub := &stubObtainer{err: redislock.ErrNotObtained}
	l := NewWithObtainer(stub, "crm-bridge:cycle", time.Minute, nil)

	_, err := l.Acquire(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, syncerr.ErrCycleInProgress)
	assert.Equal(t, []string{"crm-bridge:cycle"}, stub.keys)
}

func TestRedisLocker_Unreachable(t *testing.T) {
	stub := &stubObtainer{err: errors.New("dial tcp: connection refused")}
	l := NewWithObtainer(stub, "k", time.Minute, nil)

	_, err := l.Acquire(context.Background())
	require.Error(t, err)
	assert.NotErrorIs(t, err, syncerr.ErrCycleInProgress)
}

func TestNewRedis_NoServer(t *testing.T) {
	rdb := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1", DialTimeout: 100 * time.Millisecond, MaxRetries: -1})
	defer rdb.Close()

	l := NewRedis(rdb, "k", time.Second, nil)
	_, err := l.Acquire(context.Background())
	assert.Error(t, err)
}
