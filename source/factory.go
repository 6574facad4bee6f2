package source

import (
	"context"
	"fmt"
	"net/url"

	"github.com/go-git/go-git/v5/plumbing/transport/http"
	"github.com/sardine-ai/go-widget-config/config"
	"github.com/sardine-ai/go-widget-config/model"
	"google.golang.org/api/option"
)

// Refresher is implemented by repositories that mirror a remote and need to
// synchronize before reads observe remote changes.
type Refresher interface {
	Refresh(ctx context.Context) error
}

// Watcher is implemented by repositories that can report changes made
// outside this process.
type Watcher interface {
	Watch(ctx context.Context, onChange func(model.Channel)) error
}

// New builds the repository selected by cfg.Type. Repositories holding
// connections implement io.Closer.
func New(ctx context.Context, cfg config.Repository) (Repository, error) {
	name := cfg.Name
	if name == "" {
		name = cfg.Type
	}

	switch cfg.Type {
	case "", "memory":
		return NewMemoryRepository(name), nil
	case "fs":
		return NewFileRepository(name, cfg.Path)
	case "http":
		repository, err := NewWebRepository(name, cfg.URL)
		if err != nil {
			return nil, err
		}
		repository.APIKey = cfg.APIKey
		return repository, nil
	case "gcs":
		repository := &GcpStorageRepository{Name: name, BucketName: cfg.Bucket, Prefix: cfg.Prefix}
		if cfg.Endpoint != "" {
			repository.ClientOptions = []option.ClientOption{
				option.WithEndpoint(cfg.Endpoint),
				option.WithoutAuthentication(),
			}
		}
		return repository, nil
	case "s3":
		return &AwsS3Repository{
			Name:            name,
			BucketName:      cfg.Bucket,
			Prefix:          cfg.Prefix,
			Region:          cfg.Region,
			Endpoint:        cfg.Endpoint,
			AccessKeyID:     cfg.AccessKeyID,
			SecretAccessKey: cfg.SecretAccessKey,
		}, nil
	case "git":
		remote, err := url.Parse(cfg.URL)
		if err != nil {
			return nil, err
		}
		repository := &GitRepository{
			Name:   name,
			URL:    remote,
			Path:   cfg.Path,
			Branch: cfg.Branch,
			Push:   cfg.Push,
		}
		if cfg.Username != "" || cfg.Password != "" {
			repository.Auth = &http.BasicAuth{Username: cfg.Username, Password: cfg.Password}
		}
		return repository, nil
	case "redis":
		return NewRedisRepository(ctx, name, cfg.Prefix, RedisOptions{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
	case "badger":
		return OpenBadgerRepository(name, cfg.Path)
	case "sqlite":
		return OpenSQLiteRepository(ctx, name, cfg.Path)
	default:
		return nil, fmt.Errorf("unknown repository type %q", cfg.Type)
	}
}
