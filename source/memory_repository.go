package source

import (
	"context"
	"sync"

	"github.com/sardine-ai/go-widget-config/model"
)

// MemoryRepository keeps channel blobs in process memory. Contents are lost
// when the process exits.
type MemoryRepository struct {
	sync.RWMutex                          // RWMutex to synchronize access to data
	Name         string                   // Name of the configuration source
	data         map[model.Channel]string // Blob per channel
}

// NewMemoryRepository creates an empty MemoryRepository.
func NewMemoryRepository(name string) *MemoryRepository {
	return &MemoryRepository{Name: name, data: make(map[model.Channel]string)}
}

// GetName returns the name of the configuration source.
func (m *MemoryRepository) GetName() string {
	return m.Name
}

func (m *MemoryRepository) Read(_ context.Context, channel model.Channel) (string, error) {
	m.RLock()
	defer m.RUnlock()
	blob, ok := m.data[channel]
	if !ok {
		return "", ErrNotFound
	}
	return blob, nil
}

func (m *MemoryRepository) Write(_ context.Context, channel model.Channel, blob string) error {
	m.Lock()
	defer m.Unlock()
	if m.data == nil {
		m.data = make(map[model.Channel]string)
	}
	m.data[channel] = blob
	return nil
}

func (m *MemoryRepository) Delete(_ context.Context, channel model.Channel) error {
	m.Lock()
	defer m.Unlock()
	delete(m.data, channel)
	return nil
}
