package store_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/docker/docker/api/types/container"
	"github.com/effective-security/agenttools/store"
	"github.com/effective-security/agenttools/tools"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	rediscon "github.com/testcontainers/testcontainers-go/modules/redis"
)

func Test_RedisStore(t *testing.T) {
	testcontainers.SkipIfProviderIsNotHealthy(t)

	ctx := context.Background()
	redisContainer, err := rediscon.Run(ctx, "redis:7",
		testcontainers.WithConfigModifier(func(config *container.Config) {
			config.Env = []string{
				"ALLOW_EMPTY_PASSWORD=yes",
				"REDIS_PASSWORD=redis",
				"REDIS_TLS_PORT=16379",
			}
		}),
	)
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, redisContainer.Terminate(ctx))
	})

	state, err := redisContainer.State(ctx)
	require.NoError(t, err)
	require.True(t, state.Running)

	root := fmt.Sprintf("test-%d", time.Now().Unix())

	host, err := redisContainer.ConnectionString(ctx)
	require.NoError(t, err)

	options, err := redis.ParseURL(host)
	require.NoError(t, err)

	client := redis.NewClient(options)
	rs := client.Ping(ctx)
	require.NoError(t, rs.Err(), "failed to connect to Redis")

	testSnapshotStore(t, store.NewRedisStore(client, root))

	t.Run("keys", func(t *testing.T) {
		st := store.NewRedisStore(client, root+"-keys")
		require.NoError(t, st.Save(ctx, "hello", &tools.Snapshot{Name: "HelloWorld"}))

		doc, err := client.Get(ctx, root+"-keys/toolstore/snapshots/hello").Result()
		require.NoError(t, err)
		assert.Equal(t, `{"version":1,"name":"HelloWorld"}`, doc)

		ids, err := client.SMembers(ctx, root+"-keys/toolstore/ids").Result()
		require.NoError(t, err)
		assert.Equal(t, []string{"hello"}, ids)
	})

	t.Run("corrupted", func(t *testing.T) {
		st := store.NewRedisStore(client, root+"-bad")
		require.NoError(t, client.Set(ctx, root+"-bad/toolstore/snapshots/bad", "{not json", 0).Err())
		_, err := st.Load(ctx, "bad")
		assert.EqualError(t, err, "invalid snapshot: malformed JSON")
	})
}
