package app

import (
	"context"
	"fmt"
	"strings"

	"swift2s3/internal/storage"
	"swift2s3/internal/worker"

	"go.uber.org/zap"
)

// ObjectLister feeds the task queue from the source container listing.
type ObjectLister struct {
	client     storage.Source
	container  string
	prefix     string
	destPrefix string
	logger     *zap.Logger
}

// destKey derives the destination key from a source key, preserving the
// relative hierarchy under an optional destination prefix.
func (l *ObjectLister) destKey(key string) string {
	if l.destPrefix == "" {
		return key
	}
	return strings.TrimSuffix(l.destPrefix, "/") + "/" + key
}

// ListAndEnqueue lists objects and enqueues them as tasks
func (l *ObjectLister) ListAndEnqueue(ctx context.Context, objectKey string, tasks chan<- worker.Task, dryRun bool) error {
	if objectKey != "" {
		// Single object mode
		return l.enqueueSingleObject(ctx, objectKey, tasks, dryRun)
	}

	return l.enqueueObjects(ctx, tasks, dryRun)
}

// Count counts the total number of objects and bytes in the source
func (l *ObjectLister) Count(ctx context.Context, objectKey string) (int64, int64, error) {
	if objectKey != "" {
		info, err := l.client.HeadObject(ctx, l.container, objectKey)
		if err != nil {
			return 0, 0, fmt.Errorf("failed to get object info for %s: %w", objectKey, err)
		}
		return 1, info.Size, nil
	}

	objCh, errCh := l.client.ListObjects(ctx, l.container, l.prefix)

	var totalObjects int64
	var totalSize int64

	for {
		select {
		case obj, ok := <-objCh:
			if !ok {
				return totalObjects, totalSize, nil
			}

			totalObjects++
			totalSize += obj.Size

		case err := <-errCh:
			if err != nil {
				return totalObjects, totalSize, fmt.Errorf("error counting objects: %w", err)
			}

		case <-ctx.Done():
			return totalObjects, totalSize, ctx.Err()
		}
	}
}

func (l *ObjectLister) enqueueSingleObject(ctx context.Context, key string, tasks chan<- worker.Task, dryRun bool) error {
	info, err := l.client.HeadObject(ctx, l.container, key)
	if err != nil {
		return fmt.Errorf("failed to get object info for %s: %w", key, err)
	}
	info.Key = key

	return l.enqueue(ctx, info, tasks, dryRun)
}

func (l *ObjectLister) enqueueObjects(ctx context.Context, tasks chan<- worker.Task, dryRun bool) error {
	objCh, errCh := l.client.ListObjects(ctx, l.container, l.prefix)

	var totalObjects int64
	var totalSize int64

	for {
		select {
		case obj, ok := <-objCh:
			if !ok {
				l.logger.Info("Finished listing objects",
					zap.Int64("total_objects", totalObjects),
					zap.Int64("total_size_bytes", totalSize),
				)
				return nil
			}

			totalObjects++
			totalSize += obj.Size

			if err := l.enqueue(ctx, obj, tasks, dryRun); err != nil {
				return err
			}

		case err := <-errCh:
			if err != nil {
				return fmt.Errorf("error listing objects: %w", err)
			}

		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (l *ObjectLister) enqueue(ctx context.Context, obj storage.ObjectInfo, tasks chan<- worker.Task, dryRun bool) error {
	if dryRun {
		l.logger.Info("Would transfer object",
			zap.String("key", obj.Key),
			zap.Int64("size", obj.Size),
		)
		return nil
	}

	task := worker.Task{
		Object:  obj,
		DestKey: l.destKey(obj.Key),
		State:   worker.StatePending,
	}

	select {
	case tasks <- task:
		l.logger.Debug("Enqueued object", zap.String("key", obj.Key))
	case <-ctx.Done():
		return ctx.Err()
	}

	return nil
}
