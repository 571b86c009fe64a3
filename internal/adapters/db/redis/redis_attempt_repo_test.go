package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	redisv9 "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func newRepo(t *testing.T, hooks ...redisv9.Hook) (*RedisAttemptRepo, *miniredis.Miniredis) {
	mr := miniredis.RunT(t)
	t.Cleanup(mr.Close)

	client := redisv9.NewClient(&redisv9.Options{
		Addr: mr.Addr(),
	})
	for _, h := range hooks {
		client.AddHook(h)
	}
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisAttemptRepo(client), mr
}

// cancelAfterHook cancels the caller's context as soon as a script has been
// answered successfully.
type cancelAfterHook struct {
	cancel context.CancelFunc
}

func (h cancelAfterHook) DialHook(next redisv9.DialHook) redisv9.DialHook { return next }

func (h cancelAfterHook) ProcessHook(next redisv9.ProcessHook) redisv9.ProcessHook {
	return func(ctx context.Context, cmd redisv9.Cmder) error {
		err := next(ctx, cmd)
		if name := cmd.Name(); err == nil && (name == "eval" || name == "evalsha") {
			h.cancel()
		}
		return err
	}
}

func (h cancelAfterHook) ProcessPipelineHook(next redisv9.ProcessPipelineHook) redisv9.ProcessPipelineHook {
	return next
}

func TestRedisAttemptRepo_CountsFailures(t *testing.T) {
	repo, _ := newRepo(t)
	ctx := context.Background()

	n, err := repo.Failures(ctx, "ann_dev1")
	require.NoError(t, err)
	require.Zero(t, n)

	for i := int64(1); i <= 3; i++ {
		n, err = repo.RecordFailure(ctx, "ann_dev1", time.Minute)
		require.NoError(t, err)
		require.Equal(t, i, n)
	}

	n, err = repo.Failures(ctx, "ann_dev1")
	require.NoError(t, err)
	require.EqualValues(t, 3, n)

	n, err = repo.Failures(ctx, "someone_else")
	require.NoError(t, err)
	require.Zero(t, n)
}

func TestRedisAttemptRepo_WindowExpires(t *testing.T) {
	repo, mr := newRepo(t)
	ctx := context.Background()

	_, err := repo.RecordFailure(ctx, "ann_dev1", time.Minute)
	require.NoError(t, err)
	mr.FastForward(30 * time.Second)

	// a later failure does not push the window out
	_, err = repo.RecordFailure(ctx, "ann_dev1", time.Minute)
	require.NoError(t, err)
	mr.FastForward(31 * time.Second)

	n, err := repo.Failures(ctx, "ann_dev1")
	require.NoError(t, err)
	require.Zero(t, n)
}

func TestRedisAttemptRepo_CancelledCallStillArmsWindow(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	repo, mr := newRepo(t, cancelAfterHook{cancel: cancel})

	n, err := repo.RecordFailure(ctx, "ann_dev1", time.Minute)
	require.NoError(t, err)
	require.EqualValues(t, 1, n)
	require.Error(t, ctx.Err())

	require.Equal(t, time.Minute, mr.TTL(attemptPrefix+"ann_dev1"))
	mr.FastForward(time.Minute)
	require.False(t, mr.Exists(attemptPrefix+"ann_dev1"))
}

func TestRedisAttemptRepo_KeyWithoutTTLIsRearmed(t *testing.T) {
	repo, mr := newRepo(t)
	ctx := context.Background()
	require.NoError(t, mr.Set(attemptPrefix+"ann_dev1", "5"))

	n, err := repo.RecordFailure(ctx, "ann_dev1", time.Minute)
	require.NoError(t, err)
	require.EqualValues(t, 6, n)
	require.Equal(t, time.Minute, mr.TTL(attemptPrefix+"ann_dev1"))

	mr.FastForward(time.Minute)
	n, err = repo.Failures(ctx, "ann_dev1")
	require.NoError(t, err)
	require.Zero(t, n)
}

func TestRedisAttemptRepo_Reset(t *testing.T) {
	repo, _ := newRepo(t)
	ctx := context.Background()

	_, err := repo.RecordFailure(ctx, "ann_dev1", time.Minute)
	require.NoError(t, err)
	require.NoError(t, repo.Reset(ctx, "ann_dev1"))

	n, err := repo.Failures(ctx, "ann_dev1")
	require.NoError(t, err)
	require.Zero(t, n)

	// resetting an absent key is not an error
	require.NoError(t, repo.Reset(ctx, "ann_dev1"))
}

func TestRedisAttemptRepo_Unavailable(t *testing.T) {
	repo, mr := newRepo(t)
	mr.Close()

	_, err := repo.Failures(context.Background(), "ann_dev1")
	require.Error(t, err)
}
