package source

import (
	"context"
	"errors"
	"io"
	"sync"

	"cloud.google.com/go/storage"
	"github.com/sardine-ai/go-widget-config/model"
	"google.golang.org/api/option"
)

// GcpStorageRepository is a struct that implements the Repository interface
// for configuration blobs stored as objects within a GCS bucket.
type GcpStorageRepository struct {
	Name          string                // Name of the configuration source
	BucketName    string                // Name of the GCS bucket
	Prefix        string                // Object name prefix, e.g. "widgets/"
	Client        *storage.Client       // GCS client instance
	ClientOptions []option.ClientOption // Options used when the client is created lazily
	clientOnce    sync.Once             // Ensures client is initialized only once
	clientInitErr error                 // Stores error from client initialization
}

// GetName returns the name of the configuration source.
func (g *GcpStorageRepository) GetName() string {
	return g.Name
}

func (g *GcpStorageRepository) object(ctx context.Context, channel model.Channel) (*storage.ObjectHandle, error) {
	// Thread-safe client initialization using sync.Once (only if client not pre-configured)
	g.clientOnce.Do(func() {
		if g.Client == nil {
			g.Client, g.clientInitErr = storage.NewClient(ctx, g.ClientOptions...)
		}
	})
	if g.clientInitErr != nil {
		return nil, g.clientInitErr
	}
	return g.Client.Bucket(g.BucketName).Object(objectName(g.Prefix, channel)), nil
}

func (g *GcpStorageRepository) Read(ctx context.Context, channel model.Channel) (string, error) {
	obj, err := g.object(ctx, channel)
	if err != nil {
		return "", err
	}
	reader, err := obj.NewReader(ctx)
	if errors.Is(err, storage.ErrObjectNotExist) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", err
	}
	defer reader.Close()

	// Read the object content from the reader.
	content, err := io.ReadAll(reader)
	if err != nil {
		return "", err
	}
	return string(content), nil
}

func (g *GcpStorageRepository) Write(ctx context.Context, channel model.Channel, blob string) error {
	obj, err := g.object(ctx, channel)
	if err != nil {
		return err
	}
	writer := obj.NewWriter(ctx)
	writer.ContentType = "application/json"
	if _, err := io.WriteString(writer, blob); err != nil {
		_ = writer.Close()
		return err
	}
	// Close flushes the upload; the object only exists once it succeeds.
	return writer.Close()
}

func (g *GcpStorageRepository) Delete(ctx context.Context, channel model.Channel) error {
	obj, err := g.object(ctx, channel)
	if err != nil {
		return err
	}
	err = obj.Delete(ctx)
	if err != nil && !errors.Is(err, storage.ErrObjectNotExist) {
		return err
	}
	return nil
}
