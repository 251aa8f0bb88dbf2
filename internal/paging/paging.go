// Package paging drives offset/limit pagination against the remote service.
package paging

import (
	"context"
	"iter"

	"github.com/mmcdole/setlist/internal/domain"
)

const DefaultPageSize = 50

// Page is one page of results
type Page[T any] struct {
	Items      []T
	Offset     int // Offset the page was requested at
	TotalCount int // Total reported by the service, 0 if unknown
}

// Pages returns a lazy sequence of pages fetched with fetch, which returns (items, totalCount, error).
// Each range over it starts again from offset 0.
// The next offset is the previous one plus pageSize; the sequence ends after a short page
// or once the accumulated count reaches the reported total. A failed fetch is yielded
// once as the final element.
func Pages[T any](ctx context.Context, fetch func(ctx context.Context, offset, limit int) ([]T, int, error), pageSize int) iter.Seq2[Page[T], error] {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}

	return func(yield func(Page[T], error) bool) {
		offset, loaded := 0, 0
		for {
			if err := ctx.Err(); err != nil {
				yield(Page[T]{Offset: offset}, err)
				return
			}

			items, total, err := fetch(ctx, offset, pageSize)
			if err != nil {
				yield(Page[T]{Offset: offset}, err)
				return
			}
			loaded += len(items)

			if !yield(Page[T]{Items: items, Offset: offset, TotalCount: total}, nil) {
				return
			}

			if len(items) < pageSize || (total > 0 && loaded >= total) {
				return
			}
			offset += pageSize
		}
	}
}

// All collects every page. onProgress may be nil.
func All[T any](
	ctx context.Context,
	fetch func(ctx context.Context, offset, limit int) ([]T, int, error),
	pageSize int,
	onProgress domain.ProgressFunc,
) ([]T, error) {
	var all []T
	for page, err := range Pages(ctx, fetch, pageSize) {
		if err != nil {
			return nil, err
		}
		all = append(all, page.Items...)
		if onProgress != nil {
			onProgress(len(all), page.TotalCount)
		}
	}
	return all, nil
}
