package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"path"
	"strings"

	"go.uber.org/zap"
)

// Archive persists JSON-encoded values by name under a prefix of the store.
type Archive struct {
	client Client
	prefix string
	logger *zap.Logger
}

// NewArchive creates an archive rooted at prefix.
func NewArchive(client Client, prefix string, logger *zap.Logger) *Archive {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Archive{
		client: client,
		prefix: strings.Trim(prefix, "/"),
		logger: logger,
	}
}

func (a *Archive) key(name string) string {
	return path.Join(a.prefix, name)
}

// EnsureBucket prepares the underlying bucket.
func (a *Archive) EnsureBucket(ctx context.Context) error {
	created, err := a.client.EnsureBucket(ctx)
	if err != nil {
		return err
	}
	if created {
		a.logger.Info("Created snapshot bucket", zap.String("prefix", a.prefix))
	}
	return nil
}

// Save encodes v as JSON and uploads it.
func (a *Archive) Save(ctx context.Context, name string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", name, err)
	}
	if err := a.client.Put(ctx, a.key(name), data); err != nil {
		return err
	}
	a.logger.Debug("Archived document", zap.String("name", name), zap.Int("bytes", len(data)))
	return nil
}

// Load downloads name and decodes it into v. A missing object yields ErrNotFound.
func (a *Archive) Load(ctx context.Context, name string, v any) error {
	key := a.key(name)
	data, err := a.client.Get(ctx, key)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("failed to decode %s: %w", key, err)
	}
	return nil
}

// Delete removes name. Deleting a missing object is not an error.
func (a *Archive) Delete(ctx context.Context, name string) error {
	return a.client.Remove(ctx, a.key(name))
}

// List returns the names stored under sub, relative to the archive prefix.
func (a *Archive) List(ctx context.Context, sub string) ([]string, error) {
	root := a.key(sub)
	if root != "" {
		root += "/"
	}
	keys, err := a.client.List(ctx, root)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(keys))
	for _, k := range keys {
		names = append(names, strings.TrimPrefix(strings.TrimPrefix(k, a.prefix), "/"))
	}
	return names, nil
}
