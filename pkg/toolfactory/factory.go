package toolfactory

import (
	"context"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/agenttools/store"
	"github.com/effective-security/agenttools/toolbox"
	"github.com/effective-security/agenttools/tools"
	"github.com/effective-security/agenttools/tools/airtable"
	"github.com/effective-security/agenttools/tools/helloworld"
	"github.com/effective-security/agenttools/tools/imagedesc"
	"github.com/effective-security/agenttools/tools/openlibrary"
	"github.com/effective-security/xlog"
	"github.com/redis/go-redis/v9"
)

var logger = xlog.NewPackageLogger("github.com/effective-security/agenttools", "toolfactory")

// Load returns the toolbox with the tools configured in the file
func Load(location string) (*toolbox.Toolbox, error) {
	cfg, err := LoadConfig(location)
	if err != nil {
		return nil, err
	}
	return NewToolbox(cfg)
}

// NewToolbox returns the toolbox with the enabled tools
func NewToolbox(cfg *Config) (*toolbox.Toolbox, error) {
	list, err := CreateTools(cfg)
	if err != nil {
		return nil, err
	}
	return toolbox.New(list...)
}

// CreateTools returns the enabled tools, in the configuration order
func CreateTools(cfg *Config) ([]tools.ITool, error) {
	var list []tools.ITool

	if cfg.OpenLibrary != nil && cfg.OpenLibrary.Enabled {
		list = append(list, openlibrary.NewWithOptions(&openlibrary.Options{
			BaseURL: cfg.OpenLibrary.BaseURL,
		}))
	}
	if cfg.Airtable != nil && cfg.Airtable.Enabled {
		t, err := airtable.New(cfg.Airtable.options())
		if err != nil {
			return nil, err
		}
		list = append(list, t)
	}
	if cfg.ImageDescription != nil && cfg.ImageDescription.Enabled {
		t, err := imagedesc.New(cfg.ImageDescription.config())
		if err != nil {
			return nil, err
		}
		list = append(list, t)
	}
	if cfg.HelloWorld != nil && cfg.HelloWorld.Enabled {
		list = append(list, helloworld.New())
	}

	logger.KV(xlog.DEBUG, "status", "created", "tools", len(list))
	return list, nil
}

// Restore returns the tool with the configuration from the snapshot
func Restore(s *tools.Snapshot) (tools.ITool, error) {
	switch strings.ToLower(s.Name) {
	case strings.ToLower(openlibrary.ToolName):
		var opts openlibrary.Options
		if err := s.DecodeOptions(&opts); err != nil {
			return nil, err
		}
		return openlibrary.NewWithOptions(&opts), nil
	case strings.ToLower(airtable.ToolName):
		var opts airtable.Options
		if err := s.DecodeOptions(&opts); err != nil {
			return nil, err
		}
		t, err := airtable.New(&opts)
		if err != nil {
			return nil, err
		}
		return t, nil
	case strings.ToLower(imagedesc.ToolName):
		var cfg imagedesc.Config
		if err := s.DecodeOptions(&cfg); err != nil {
			return nil, err
		}
		t, err := imagedesc.New(&cfg)
		if err != nil {
			return nil, err
		}
		return t, nil
	case strings.ToLower(helloworld.ToolName):
		return helloworld.New(), nil
	}
	return nil, errors.Newf("unsupported tool: %s", s.Name)
}

// SnapshotID returns the store ID of the tool snapshot
func SnapshotID(prefix, toolName string) string {
	id := strings.ToLower(toolName)
	if prefix != "" {
		id = prefix + "." + id
	}
	return id
}

// SaveToolbox saves the snapshots of the toolbox tools,
// and returns their IDs.
func SaveToolbox(ctx context.Context, st store.SnapshotStore, prefix string, box *toolbox.Toolbox) ([]string, error) {
	snapshots, err := box.Snapshots()
	if err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(snapshots))
	for _, s := range snapshots {
		id := SnapshotID(prefix, s.Name)
		if err = st.Save(ctx, id, s); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	logger.ContextKV(ctx, xlog.DEBUG, "status", "saved", "ids", ids)
	return ids, nil
}

// RestoreToolbox returns the toolbox with the tools restored from the store.
// All stored snapshots are restored when ids is empty.
func RestoreToolbox(ctx context.Context, st store.SnapshotStore, ids ...string) (*toolbox.Toolbox, error) {
	if len(ids) == 0 {
		var err error
		ids, err = st.List(ctx)
		if err != nil {
			return nil, err
		}
	}

	list := make([]tools.ITool, 0, len(ids))
	for _, id := range ids {
		s, err := st.Load(ctx, id)
		if err != nil {
			return nil, err
		}
		t, err := Restore(s)
		if err != nil {
			return nil, errors.WithMessagef(err, "failed to restore snapshot %s", id)
		}
		list = append(list, t)
	}
	return toolbox.New(list...)
}

// NewStore returns the snapshot store.
// The snapshots are kept in memory when Redis is not configured.
func NewStore(ctx context.Context, cfg *StoreConfig) (store.SnapshotStore, error) {
	if cfg == nil || cfg.RedisURL == "" {
		return store.NewMemoryStore(), nil
	}

	options, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, errors.Wrap(err, "invalid Redis URL")
	}
	client := redis.NewClient(options)
	if err = client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, errors.Wrap(err, "failed to connect to Redis")
	}
	return store.NewRedisStore(client, cfg.Prefix), nil
}
