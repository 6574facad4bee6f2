package source

import (
	"context"
	"errors"

	"github.com/sardine-ai/go-widget-config/model"
)

// ErrNotFound is returned by Read when a channel has never been written or
// has been deleted.
var ErrNotFound = errors.New("configuration not found")

// Repository stores one serialized blob per channel.
type Repository interface {
	// GetName returns the name of the configuration source.
	GetName() string
	// Read returns the blob stored for channel, or ErrNotFound.
	Read(ctx context.Context, channel model.Channel) (string, error)
	// Write replaces the blob stored for channel.
	Write(ctx context.Context, channel model.Channel, blob string) error
	// Delete removes the blob stored for channel. Deleting an absent blob is
	// not an error.
	Delete(ctx context.Context, channel model.Channel) error
}

// objectName is the file, object or key name holding a channel's blob.
func objectName(prefix string, channel model.Channel) string {
	return prefix + channel.Key() + ".json"
}
