package mocks

import (
	"context"
	"sync"
)

// ObjectStorage is an in-memory implementation of ports.ObjectStorage.
type ObjectStorage struct {
	mu      sync.Mutex
	objects map[string][]byte
	baseURL string

	// UploadFn allows overriding Upload behavior.
	UploadFn func(ctx context.Context, path string, data []byte) error
}

// NewObjectStorage creates a store whose public URLs start with baseURL.
func NewObjectStorage(baseURL string) *ObjectStorage {
	return &ObjectStorage{objects: make(map[string][]byte), baseURL: baseURL}
}

func (o *ObjectStorage) Upload(ctx context.Context, path string, data []byte) error {
	if o.UploadFn != nil {
		if err := o.UploadFn(ctx, path, data); err != nil {
			return err
		}
	}

	o.mu.Lock()
	defer o.mu.Unlock()

	o.objects[path] = append([]byte(nil), data...)

	return nil
}

func (o *ObjectStorage) PublicURL(path string) string {
	return o.baseURL + "/" + path
}

// Object returns a stored object.
func (o *ObjectStorage) Object(path string) ([]byte, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()

	data, ok := o.objects[path]

	return data, ok
}

// Len returns the number of stored objects.
func (o *ObjectStorage) Len() int {
	o.mu.Lock()
	defer o.mu.Unlock()

	return len(o.objects)
}
