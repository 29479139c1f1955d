package tagging

import (
	"context"
	"fmt"
	"math"

	"github.com/er587/wedding-gallery-application/internal/config"
	"github.com/er587/wedding-gallery-application/internal/database"
)

// QueuePage is one page of the moderation queue.
type QueuePage struct {
	Items      []database.FaceTag
	Page       int
	PageSize   int
	TotalCount int
	TotalPages int
}

// Queue lists pending tags in a stable (created_at, id) order.
type Queue struct {
	tags   database.FaceTagReader
	policy config.QueuePolicy
}

// NewQueue creates a moderation queue over tags.
func NewQueue(tags database.FaceTagReader, policy config.QueuePolicy) *Queue {
	return &Queue{tags: tags, policy: policy}
}

// DefaultPageSize is the page size used when a caller gives none.
func (q *Queue) DefaultPageSize() int {
	return q.policy.DefaultPageSize
}

// Page returns page pageNumber (1-based). A page past the end is empty but
// still reports the current totals.
func (q *Queue) Page(ctx context.Context, pageNumber, pageSize int) (*QueuePage, error) {
	if pageNumber < 1 {
		return nil, fmt.Errorf("%w: page must be at least 1", ErrValidation)
	}
	if pageSize < 1 || pageSize > q.policy.MaxPageSize {
		return nil, fmt.Errorf("%w: page size must be between 1 and %d", ErrValidation, q.policy.MaxPageSize)
	}

	items, total, err := q.tags.PendingPage(ctx, pageOffset(pageNumber, pageSize), pageSize)
	if err != nil {
		return nil, fmt.Errorf("load pending page: %w", err)
	}
	if items == nil {
		items = []database.FaceTag{}
	}
	return &QueuePage{
		Items:      items,
		Page:       pageNumber,
		PageSize:   pageSize,
		TotalCount: total,
		TotalPages: (total + pageSize - 1) / pageSize,
	}, nil
}

// pageOffset returns the offset of the first item of a page. Offsets that
// would overflow saturate at a position past any real queue.
func pageOffset(pageNumber, pageSize int) int {
	if pageNumber-1 > (math.MaxInt-pageSize)/pageSize {
		return math.MaxInt - pageSize
	}
	return (pageNumber - 1) * pageSize
}

// PageOrLast is Page, falling back to the last valid page when pageNumber is
// out of range because the queue shrank.
func (q *Queue) PageOrLast(ctx context.Context, pageNumber, pageSize int) (*QueuePage, error) {
	page, err := q.Page(ctx, pageNumber, pageSize)
	for attempt := 0; err == nil && attempt < 3; attempt++ {
		if len(page.Items) > 0 || page.TotalPages == 0 || page.Page <= page.TotalPages {
			return page, nil
		}
		page, err = q.Page(ctx, page.TotalPages, pageSize)
	}
	return page, err
}
