package service

import (
	"context"
)

const defaultBatchSize = 100

// forEachBatch walks offset-addressed data in fixed-size batches.
// Batches are requested at offsets 0, size, 2*size, ... and the walk ends once
// the offset has moved past total, so the last batch visited is the one that
// starts at or before total (it may be partial or empty).
func forEachBatch[T any](
	ctx context.Context,
	total int,
	size int,
	fetch func(ctx context.Context, offset, limit int) ([]T, error),
	visit func(ctx context.Context, offset int, batch []T) error,
) error {
	if size <= 0 {
		size = defaultBatchSize
	}

	offset := 0
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		batch, err := fetch(ctx, offset, size)
		if err != nil {
			return err
		}

		if err := visit(ctx, offset, batch); err != nil {
			return err
		}

		offset += size
		if offset > total {
			break
		}
	}

	return nil
}
