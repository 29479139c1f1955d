package tagging

import (
	"context"
	"testing"
	"time"

	"github.com/er587/wedding-gallery-application/internal/config"
	"github.com/er587/wedding-gallery-application/internal/database"
	"github.com/er587/wedding-gallery-application/internal/database/mock"
	"github.com/er587/wedding-gallery-application/internal/facematch"
)

var (
	guest     = Actor{UserID: "guest-1"}
	otherUser = Actor{UserID: "guest-2"}
	moderator = Actor{UserID: "mod-1", IsModerator: true}
)

// newTestService returns a service over a mock store holding two images.
// Every stored record gets a distinct, increasing created_at.
func newTestService(t *testing.T) (*Service, *mock.Store) {
	t.Helper()
	store := mock.NewStore()
	base := time.Date(2025, 6, 14, 15, 0, 0, 0, time.UTC)
	tick := 0
	store.Now = func() time.Time {
		tick++
		return base.Add(time.Duration(tick) * time.Second)
	}
	store.AddImage(database.Image{ID: 1, Width: 1000, Height: 800, StorageRef: "ceremony/001.jpg"})
	store.AddImage(database.Image{ID: 2, Width: 640, Height: 480, StorageRef: "party/002.jpg"})

	svc := NewService(NewRegistry(store), store, store, store, config.DefaultPolicy())
	return svc, store
}

func mustRegion(t *testing.T, x, y, w, h float64) facematch.Region {
	t.Helper()
	r, err := facematch.NewRegion(x, y, w, h)
	if err != nil {
		t.Fatalf("NewRegion(%v, %v, %v, %v): %v", x, y, w, h, err)
	}
	return r
}

func submitTag(t *testing.T, svc *Service, imageID int64, name string, r facematch.Region) *database.FaceTag {
	t.Helper()
	tag, err := svc.Submit(context.Background(), SubmitRequest{ImageID: imageID, PersonName: name, Region: r}, guest)
	if err != nil {
		t.Fatalf("Submit(%q): %v", name, err)
	}
	return tag
}

func tagIDs(tags []database.FaceTag) []int64 {
	ids := make([]int64, len(tags))
	for i, tag := range tags {
		ids[i] = tag.ID
	}
	return ids
}

func equalIDs(a, b []int64) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
