package store

import (
	"context"
	"path"
	"slices"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/agenttools/tools"
	"github.com/effective-security/xlog"
	"github.com/redis/go-redis/v9"
)

// The redis store keeps the snapshot documents in Redis.
// The keys namespace is organized as follows:
// - `/<prefix>/toolstore/snapshots/<id>` for the snapshot document
// - `/<prefix>/toolstore/ids` for the set of snapshot IDs

type redisStore struct {
	client *redis.Client
	prefix string
}

// NewRedisStore returns the SnapshotStore backed by Redis
func NewRedisStore(client *redis.Client, prefix string) SnapshotStore {
	return &redisStore{
		client: client,
		prefix: prefix,
	}
}

func (m *redisStore) snapshotKey(id string) string {
	return path.Join(m.prefix, "toolstore", "snapshots", id)
}

func (m *redisStore) idsKey() string {
	return path.Join(m.prefix, "toolstore", "ids")
}

func (m *redisStore) Save(ctx context.Context, id string, s *tools.Snapshot) error {
	if err := checkID(id); err != nil {
		return err
	}
	if s == nil {
		return errors.New("snapshot is required")
	}
	doc, err := s.Marshal()
	if err != nil {
		return err
	}

	pipe := m.client.Pipeline()
	pipe.Set(ctx, m.snapshotKey(id), doc, 0)
	pipe.SAdd(ctx, m.idsKey(), id)
	_, err = pipe.Exec(ctx)
	if err != nil {
		logger.ContextKV(ctx, xlog.ERROR, "reason", "save", "id", id, "err", err.Error())
		return errors.Wrapf(err, "failed to save snapshot %s", id)
	}

	logger.ContextKV(ctx, xlog.DEBUG, "status", "saved", "id", id, "tool", s.Name)
	return nil
}

func (m *redisStore) Load(ctx context.Context, id string) (*tools.Snapshot, error) {
	if err := checkID(id); err != nil {
		return nil, err
	}

	doc, err := m.client.Get(ctx, m.snapshotKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, notFound(id)
		}
		logger.ContextKV(ctx, xlog.ERROR, "reason", "load", "id", id, "err", err.Error())
		return nil, errors.Wrapf(err, "failed to load snapshot %s", id)
	}
	return tools.ParseSnapshot(doc)
}

func (m *redisStore) List(ctx context.Context) ([]string, error) {
	ids, err := m.client.SMembers(ctx, m.idsKey()).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return []string{}, nil
		}
		return nil, errors.Wrap(err, "failed to list snapshots")
	}
	slices.Sort(ids)
	return ids, nil
}

func (m *redisStore) Delete(ctx context.Context, id string) error {
	if err := checkID(id); err != nil {
		return err
	}

	pipe := m.client.Pipeline()
	pipe.Del(ctx, m.snapshotKey(id))
	pipe.SRem(ctx, m.idsKey(), id)
	_, err := pipe.Exec(ctx)
	if err != nil {
		return errors.Wrapf(err, "failed to delete snapshot %s", id)
	}
	return nil
}
