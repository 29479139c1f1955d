package tagging

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/er587/wedding-gallery-application/internal/config"
	"github.com/er587/wedding-gallery-application/internal/database"
	"github.com/er587/wedding-gallery-application/internal/database/mock"
)

// seedPending submits n pending tags on image 1, each for a different person.
func seedPending(t *testing.T, svc *Service, n int) []int64 {
	t.Helper()
	ids := make([]int64, n)
	for i := range n {
		x := float64(i%10) * 0.1
		y := float64(i/10%10) * 0.1
		tag := submitTag(t, svc, 1, "Guest "+string(rune('A'+i)), mustRegion(t, x, y, 0.05, 0.05))
		ids[i] = tag.ID
	}
	return ids
}

func newTestQueue(store *mock.Store) *Queue {
	return NewQueue(store, config.QueuePolicy{DefaultPageSize: 20, MaxPageSize: 100})
}

func TestQueue_PageStability(t *testing.T) {
	svc, store := newTestService(t)
	q := newTestQueue(store)
	ctx := context.Background()
	ids := seedPending(t, svc, 5)

	first, err := q.Page(ctx, 2, 2)
	if err != nil {
		t.Fatalf("Page: %v", err)
	}
	if !equalIDs(tagIDs(first.Items), ids[2:4]) {
		t.Errorf("page 2 = %v, want %v", tagIDs(first.Items), ids[2:4])
	}
	if first.TotalCount != 5 || first.TotalPages != 3 {
		t.Errorf("totals = %d/%d, want 5/3", first.TotalCount, first.TotalPages)
	}

	for range 5 {
		again, err := q.Page(ctx, 2, 2)
		if err != nil {
			t.Fatalf("Page: %v", err)
		}
		if !equalIDs(tagIDs(again.Items), tagIDs(first.Items)) {
			t.Fatalf("page 2 changed: %v then %v", tagIDs(first.Items), tagIDs(again.Items))
		}
	}
}

func TestQueue_TieBreakByID(t *testing.T) {
	store := mock.NewStore()
	fixed := time.Date(2025, 6, 14, 15, 0, 0, 0, time.UTC)
	store.Now = func() time.Time { return fixed }
	store.AddImage(database.Image{ID: 1, Width: 100, Height: 100})
	svc := NewService(NewRegistry(store), store, store, nil, config.DefaultPolicy())
	ids := seedPending(t, svc, 4)

	page, err := newTestQueue(store).Page(context.Background(), 1, 10)
	if err != nil {
		t.Fatalf("Page: %v", err)
	}
	if !equalIDs(tagIDs(page.Items), ids) {
		t.Errorf("order = %v, want ascending ids %v", tagIDs(page.Items), ids)
	}
}

func TestQueue_ClosesUpAfterResolving(t *testing.T) {
	svc, store := newTestService(t)
	q := newTestQueue(store)
	ctx := context.Background()
	ids := seedPending(t, svc, 5)

	page1, err := q.Page(ctx, 1, 2)
	if err != nil {
		t.Fatal(err)
	}
	page2, err := q.Page(ctx, 2, 2)
	if err != nil {
		t.Fatal(err)
	}

	if _, err := svc.BulkApprove(ctx, tagIDs(page1.Items), moderator); err != nil {
		t.Fatalf("BulkApprove: %v", err)
	}

	after, err := q.Page(ctx, 1, 2)
	if err != nil {
		t.Fatal(err)
	}
	if !equalIDs(tagIDs(after.Items), tagIDs(page2.Items)) {
		t.Errorf("page 1 after approval = %v, want former page 2 %v", tagIDs(after.Items), tagIDs(page2.Items))
	}
	if after.TotalCount != 3 || after.TotalPages != 2 {
		t.Errorf("totals = %d/%d, want 3/2", after.TotalCount, after.TotalPages)
	}
	for _, tag := range after.Items {
		if tag.ID == ids[0] || tag.ID == ids[1] {
			t.Errorf("resolved tag %d still queued", tag.ID)
		}
	}
}

func TestQueue_EmptyAndOutOfRange(t *testing.T) {
	svc, store := newTestService(t)
	q := newTestQueue(store)
	ctx := context.Background()

	empty, err := q.Page(ctx, 1, 20)
	if err != nil {
		t.Fatal(err)
	}
	if len(empty.Items) != 0 || empty.TotalCount != 0 || empty.TotalPages != 0 {
		t.Errorf("empty queue = %+v", empty)
	}

	ids := seedPending(t, svc, 3)
	beyond, err := q.Page(ctx, 3, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(beyond.Items) != 0 || beyond.TotalPages != 2 {
		t.Errorf("page beyond end = %+v", beyond)
	}

	clamped, err := q.PageOrLast(ctx, 3, 2)
	if err != nil {
		t.Fatal(err)
	}
	if clamped.Page != 2 || !equalIDs(tagIDs(clamped.Items), ids[2:]) {
		t.Errorf("PageOrLast = page %d %v, want page 2 %v", clamped.Page, tagIDs(clamped.Items), ids[2:])
	}

	for _, pageNumber := range []int{1 << 62, 1<<62 + 1, math.MaxInt} {
		huge, err := q.Page(ctx, pageNumber, 4)
		if err != nil {
			t.Fatalf("Page(%d): %v", pageNumber, err)
		}
		if len(huge.Items) != 0 || huge.TotalCount != 3 || huge.TotalPages != 1 {
			t.Errorf("Page(%d) = %d items, totals %d/%d", pageNumber, len(huge.Items), huge.TotalCount, huge.TotalPages)
		}

		last, err := q.PageOrLast(ctx, pageNumber, 4)
		if err != nil {
			t.Fatalf("PageOrLast(%d): %v", pageNumber, err)
		}
		if last.Page != 1 || !equalIDs(tagIDs(last.Items), ids) {
			t.Errorf("PageOrLast(%d) = page %d %v, want page 1 %v", pageNumber, last.Page, tagIDs(last.Items), ids)
		}
	}
}

func TestQueue_Validation(t *testing.T) {
	q := newTestQueue(mock.NewStore())
	tests := []struct {
		name       string
		page, size int
	}{
		{"page zero", 0, 10},
		{"negative page", -1, 10},
		{"size zero", 1, 0},
		{"size over max", 1, 101},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := q.Page(context.Background(), tt.page, tt.size); !errors.Is(err, ErrValidation) {
				t.Errorf("err = %v, want ErrValidation", err)
			}
		})
	}
}

func TestQueue_StoreError(t *testing.T) {
	store := mock.NewStore()
	store.PendingPageError = errors.New("connection reset")
	_, err := newTestQueue(store).Page(context.Background(), 1, 10)
	if err == nil || Kind(err) != KindInternal {
		t.Errorf("err = %v, want internal error", err)
	}
}
