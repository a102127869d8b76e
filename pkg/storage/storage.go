// Package storage copies finished recordings to durable storage.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/qieqieplus/meeting-bot/pkg/config"
	"github.com/qieqieplus/meeting-bot/pkg/log"
)

// FileStore is a minimal interface for object-oriented storage.
//
// Keys are forward-slash separated and relative to the store root.
// Implementations must be safe for concurrent use.
type FileStore interface {
	// Put stores the contents of r under key, replacing any existing object.
	Put(ctx context.Context, key string, r io.Reader) error

	// Exists reports whether key is present.
	Exists(ctx context.Context, key string) (bool, error)
}

// New returns the store selected by cfg, or nil when storage is disabled.
func New(cfg config.StorageConfig) (FileStore, error) {
	switch cfg.Type {
	case "":
		return nil, nil
	case "local":
		if cfg.LocalDir == "" {
			return nil, errors.New("storage: local_dir is required for local storage")
		}
		local, err := NewLocal(cfg.LocalDir)
		if err != nil {
			return nil, err
		}
		return local, nil
	case "s3":
		if cfg.Bucket == "" {
			return nil, errors.New("storage: bucket is required for s3 storage")
		}
		return NewS3(NewS3Client(cfg), cfg.Bucket, cfg.Prefix), nil
	default:
		return nil, fmt.Errorf("storage: unknown type %q", cfg.Type)
	}
}

// maxKeySuffix bounds the "-N" suffixes tried for a key already taken.
const maxKeySuffix = 100

// Upload copies each file to store under "<prefix>/<base name>" and returns
// the keys written. An earlier recording under the same key is kept: the
// new one gets the first free "-N" suffix. Upload keeps going after a
// failure and returns the joined errors.
func Upload(ctx context.Context, store FileStore, prefix string, files []string) ([]string, error) {
	var (
		keys []string
		errs []error
	)
	for _, file := range files {
		key, err := freeKey(ctx, store, path.Join(prefix, filepath.Base(file)))
		if err == nil {
			err = putFile(ctx, store, key, file)
		}
		if err != nil {
			errs = append(errs, fmt.Errorf("upload %s: %w", file, err))
			continue
		}
		log.Infof("Uploaded %s to %s", file, key)
		keys = append(keys, key)
	}
	return keys, errors.Join(errs...)
}

// freeKey returns key, or "<base>-N<ext>" for the smallest N not stored yet.
func freeKey(ctx context.Context, store FileStore, key string) (string, error) {
	ext := path.Ext(key)
	base := strings.TrimSuffix(key, ext)
	candidate := key
	for n := 1; n <= maxKeySuffix; n++ {
		exists, err := store.Exists(ctx, candidate)
		if err != nil {
			return "", err
		}
		if !exists {
			return candidate, nil
		}
		candidate = fmt.Sprintf("%s-%d%s", base, n, ext)
	}
	return "", fmt.Errorf("storage: no free key for %s", key)
}

func putFile(ctx context.Context, store FileStore, key, file string) error {
	f, err := os.Open(file)
	if err != nil {
		return err
	}
	defer f.Close()
	return store.Put(ctx, key, f)
}
