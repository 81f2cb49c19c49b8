// Package storagetest provides in-memory Source and Destination fakes for
// exercising the transfer pipeline without a live object store.
package storagetest

import (
	"bytes"
	"context"
	"crypto/md5"
	"encoding/hex"
	"io"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/minio/minio-go/v7"

	"swift2s3/internal/storage"
)

// NotFoundErr is the wire-shaped error a real client returns for an absent
// object or bucket.
func NotFoundErr() error {
	return minio.ErrorResponse{Code: "NoSuchKey", StatusCode: 404, Message: "The specified key does not exist."}
}

func etagOf(data []byte) string {
	sum := md5.Sum(data)
	return hex.EncodeToString(sum[:])
}

// FakeSource is an in-memory storage.Source.
type FakeSource struct {
	mu       sync.Mutex
	objects  map[string][]byte
	getErrs  map[string][]error
	getCalls int
}

// NewFakeSource creates an empty fake source container.
func NewFakeSource() *FakeSource {
	return &FakeSource{
		objects: make(map[string][]byte),
		getErrs: make(map[string][]error),
	}
}

// Seed stores an object in the fake container.
func (s *FakeSource) Seed(key string, data []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[key] = data
}

// FailGet queues errors returned by successive GetObject calls for key
// before the fetch starts succeeding.
func (s *FakeSource) FailGet(key string, errs ...error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.getErrs[key] = append(s.getErrs[key], errs...)
}

// GetCalls reports how many GetObject calls were made.
func (s *FakeSource) GetCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.getCalls
}

func (s *FakeSource) ListObjects(ctx context.Context, container, prefix string) (<-chan storage.ObjectInfo, <-chan error) {
	objCh := make(chan storage.ObjectInfo)
	errCh := make(chan error, 1)

	s.mu.Lock()
	keys := make([]string, 0, len(s.objects))
	for k := range s.objects {
		keys = append(keys, k)
	}
	s.mu.Unlock()
	sort.Strings(keys)

	go func() {
		defer close(objCh)
		defer close(errCh)

		for _, key := range keys {
			if prefix != "" && !strings.HasPrefix(key, prefix) {
				continue
			}
			info, err := s.HeadObject(ctx, container, key)
			if err != nil {
				errCh <- err
				return
			}
			select {
			case objCh <- info:
			case <-ctx.Done():
				return
			}
		}
	}()

	return objCh, errCh
}

func (s *FakeSource) GetObject(ctx context.Context, container, key string) (io.ReadCloser, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.getCalls++
	if errs := s.getErrs[key]; len(errs) > 0 {
		err := errs[0]
		s.getErrs[key] = errs[1:]
		return nil, err
	}

	data, ok := s.objects[key]
	if !ok {
		return nil, NotFoundErr()
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (s *FakeSource) HeadObject(ctx context.Context, container, key string) (storage.ObjectInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, ok := s.objects[key]
	if !ok {
		return storage.ObjectInfo{}, NotFoundErr()
	}
	return storage.ObjectInfo{
		Key:          key,
		Size:         int64(len(data)),
		ETag:         etagOf(data),
		LastModified: time.Now(),
	}, nil
}

// FakeDestination is an in-memory storage.Destination.
type FakeDestination struct {
	mu       sync.Mutex
	missing  bool
	objects  map[string][]byte
	etags    map[string]string
	putErrs  map[string][]error
	putCalls int
}

// NewFakeDestination creates an empty fake destination bucket.
func NewFakeDestination() *FakeDestination {
	return &FakeDestination{
		objects: make(map[string][]byte),
		etags:   make(map[string]string),
		putErrs: make(map[string][]error),
	}
}

// SetMissing makes BucketExists report the bucket as absent.
func (d *FakeDestination) SetMissing(missing bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.missing = missing
}

// Seed stores an object as if it had been transferred earlier.
func (d *FakeDestination) Seed(key string, data []byte) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.objects[key] = data
	d.etags[key] = etagOf(data)
}

// FailPut queues errors returned by successive PutObject calls for key
// before the push starts succeeding.
func (d *FakeDestination) FailPut(key string, errs ...error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.putErrs[key] = append(d.putErrs[key], errs...)
}

// PutCalls reports how many PutObject calls were made.
func (d *FakeDestination) PutCalls() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.putCalls
}

// Object returns the stored content for key.
func (d *FakeDestination) Object(key string) ([]byte, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	data, ok := d.objects[key]
	return data, ok
}

func (d *FakeDestination) BucketExists(ctx context.Context, bucket string) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return !d.missing, nil
}

func (d *FakeDestination) HeadObject(ctx context.Context, bucket, key string) (storage.ObjectInfo, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	data, ok := d.objects[key]
	if !ok {
		return storage.ObjectInfo{}, NotFoundErr()
	}
	return storage.ObjectInfo{
		Key:          key,
		Size:         int64(len(data)),
		ETag:         d.etags[key],
		LastModified: time.Now(),
	}, nil
}

func (d *FakeDestination) PutObject(ctx context.Context, bucket, key string, reader io.Reader, size int64, opts storage.PutOptions) error {
	data, err := io.ReadAll(reader)
	if err != nil {
		return err
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	d.putCalls++
	if errs := d.putErrs[key]; len(errs) > 0 {
		err := errs[0]
		d.putErrs[key] = errs[1:]
		return err
	}

	d.objects[key] = data
	d.etags[key] = etagOf(data)
	return nil
}

func (d *FakeDestination) CountObjects(ctx context.Context, bucket string) (int64, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return int64(len(d.objects)), nil
}
