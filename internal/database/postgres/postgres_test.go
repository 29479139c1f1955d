//go:build integration

package postgres

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/er587/wedding-gallery-application/internal/config"
	"github.com/er587/wedding-gallery-application/internal/database"
	"github.com/er587/wedding-gallery-application/internal/facematch"
)

func setupTestContainer(t *testing.T) (*Pool, func()) {
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "pgvector/pgvector:pg16",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "test",
			"POSTGRES_PASSWORD": "test",
			"POSTGRES_DB":       "testdb",
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(60 * time.Second),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Skipf("Docker not available or container failed to start, skipping integration test: %v", err)
		return nil, func() {}
	}
	if container == nil {
		t.Skip("Docker not available, skipping integration test")
		return nil, func() {}
	}

	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("Failed to get container host: %v", err)
	}

	port, err := container.MappedPort(ctx, "5432")
	if err != nil {
		t.Fatalf("Failed to get container port: %v", err)
	}

	dbURL := fmt.Sprintf("postgres://test:test@%s:%s/testdb?sslmode=disable", host, port.Port())

	cfg := &config.DatabaseConfig{
		URL:          dbURL,
		MaxOpenConns: 5,
		MaxIdleConns: 2,
	}

	pool, err := NewPool(cfg)
	if err != nil {
		container.Terminate(ctx)
		t.Fatalf("Failed to create pool: %v", err)
	}

	// Run migrations
	if err := pool.Migrate(ctx); err != nil {
		pool.Close()
		container.Terminate(ctx)
		t.Fatalf("Failed to run migrations: %v", err)
	}

	cleanup := func() {
		pool.Close()
		container.Terminate(ctx)
	}

	return pool, cleanup
}

func moderationEvent(moderator string) database.ModerationEvent {
	return database.ModerationEvent{ID: uuid.NewString(), ModeratorID: moderator, CreatedAt: time.Now().UTC()}
}

func noConflict(database.FaceTag, []database.FaceTag) bool { return false }

func overlapsApproved(candidate database.FaceTag, approved []database.FaceTag) bool {
	for _, a := range approved {
		if facematch.IsDuplicate(candidate.Region, a.Region, 0.5) {
			return true
		}
	}
	return false
}

func TestPersonRepository(t *testing.T) {
	pool, cleanup := setupTestContainer(t)
	if pool == nil {
		return
	}
	defer cleanup()

	ctx := context.Background()
	repo := NewPersonRepository(pool)

	t.Run("FindOrCreate", func(t *testing.T) {
		p, created, err := repo.FindOrCreatePerson(ctx, "Bob", facematch.PersonNameKey("Bob"), "guest-1")
		if err != nil {
			t.Fatalf("Failed to create person: %v", err)
		}
		if !created {
			t.Error("Expected a new person")
		}

		again, created, err := repo.FindOrCreatePerson(ctx, "bob", facematch.PersonNameKey("bob"), "guest-2")
		if err != nil {
			t.Fatalf("Failed to find person: %v", err)
		}
		if created || again.ID != p.ID || again.Name != "Bob" {
			t.Errorf("Expected existing person %d 'Bob', got %+v (created=%v)", p.ID, again, created)
		}
	})

	t.Run("ConcurrentCreate", func(t *testing.T) {
		var wg sync.WaitGroup
		ids := make([]int64, 10)
		for i := range ids {
			wg.Add(1)
			go func() {
				defer wg.Done()
				p, _, err := repo.FindOrCreatePerson(ctx, "Grace", facematch.PersonNameKey("Grace"), "guest-1")
				if err != nil {
					t.Errorf("FindOrCreatePerson: %v", err)
					return
				}
				ids[i] = p.ID
			}()
		}
		wg.Wait()
		for _, id := range ids {
			if id != ids[0] {
				t.Fatalf("Expected one person, got ids %v", ids)
			}
		}
	})

	t.Run("RenameClash", func(t *testing.T) {
		p, _, err := repo.FindOrCreatePerson(ctx, "Carol", facematch.PersonNameKey("Carol"), "guest-1")
		if err != nil {
			t.Fatal(err)
		}
		_, err = repo.RenamePerson(ctx, p.ID, "BOB", facematch.PersonNameKey("BOB"))
		if !errors.Is(err, database.ErrDuplicate) {
			t.Errorf("Expected ErrDuplicate, got %v", err)
		}
	})

	t.Run("ListOrder", func(t *testing.T) {
		people, err := repo.ListPeople(ctx)
		if err != nil {
			t.Fatal(err)
		}
		for i := 1; i < len(people); i++ {
			if facematch.PersonNameKey(people[i-1].Name) > facematch.PersonNameKey(people[i].Name) {
				t.Errorf("People not alphabetical: %q before %q", people[i-1].Name, people[i].Name)
			}
		}
	})
}

func TestFaceTagRepository(t *testing.T) {
	pool, cleanup := setupTestContainer(t)
	if pool == nil {
		return
	}
	defer cleanup()

	ctx := context.Background()
	repos := NewRepositories(pool)

	if err := repos.Images.UpsertImage(ctx, database.Image{ID: 1, Width: 1000, Height: 800, StorageRef: "a.jpg"}); err != nil {
		t.Fatalf("Failed to upsert image: %v", err)
	}
	alice, _, err := repos.People.FindOrCreatePerson(ctx, "Alice", "alice", "guest-1")
	if err != nil {
		t.Fatal(err)
	}

	newTag := func(t *testing.T, region facematch.Region, embedding []float32) *database.FaceTag {
		t.Helper()
		tag, err := repos.FaceTags.CreateFaceTag(ctx, database.FaceTag{
			ImageID: 1, PersonID: alice.ID, Region: region,
			Origin: database.OriginUserSubmitted, Status: database.StatusPending,
			SubmittedBy: "guest-1", Embedding: embedding,
		})
		if err != nil {
			t.Fatalf("Failed to create tag: %v", err)
		}
		return tag
	}

	t.Run("CreateRejectsUnknownImage", func(t *testing.T) {
		_, err := repos.FaceTags.CreateFaceTag(ctx, database.FaceTag{
			ImageID: 99, PersonID: alice.ID, Region: facematch.Region{Width: 0.1, Height: 0.1},
			Origin: database.OriginUserSubmitted, Status: database.StatusPending,
		})
		if !errors.Is(err, database.ErrNotFound) {
			t.Errorf("Expected ErrNotFound, got %v", err)
		}
	})

	t.Run("ApproveIsTerminal", func(t *testing.T) {
		tag := newTag(t, facematch.Region{X: 0.1, Y: 0.2, Width: 0.3, Height: 0.25}, []float32{1, 0, 0})
		if tag.PersonName != "Alice" || tag.Status != database.StatusPending {
			t.Fatalf("Unexpected tag: %+v", tag)
		}

		approved, err := repos.FaceTags.ApproveFaceTag(ctx, tag.ID, moderationEvent("mod-1"), overlapsApproved)
		if err != nil {
			t.Fatalf("Failed to approve: %v", err)
		}
		if approved.Status != database.StatusApproved || approved.ModeratedBy != "mod-1" || approved.ModeratedAt == nil {
			t.Errorf("Unexpected approved tag: %+v", approved)
		}
		if len(approved.Embedding) != 3 {
			t.Errorf("Embedding lost: %v", approved.Embedding)
		}

		if _, err := repos.FaceTags.ApproveFaceTag(ctx, tag.ID, moderationEvent("mod-2"), noConflict); !errors.Is(err, database.ErrStateConflict) {
			t.Errorf("Expected ErrStateConflict on second approve, got %v", err)
		}
		if _, err := repos.FaceTags.RejectFaceTag(ctx, tag.ID, moderationEvent("mod-2")); !errors.Is(err, database.ErrStateConflict) {
			t.Errorf("Expected ErrStateConflict on reject, got %v", err)
		}

		events, err := repos.FaceTags.ListModerationEvents(ctx, tag.ID)
		if err != nil {
			t.Fatal(err)
		}
		if len(events) != 1 || events[0].Action != database.StatusApproved || events[0].BatchID != "" {
			t.Errorf("Unexpected events: %+v", events)
		}
	})

	t.Run("DuplicateApproveStaysPending", func(t *testing.T) {
		dup := newTag(t, facematch.Region{X: 0.11, Y: 0.21, Width: 0.3, Height: 0.25}, nil)
		_, err := repos.FaceTags.ApproveFaceTag(ctx, dup.ID, moderationEvent("mod-1"), overlapsApproved)
		if !errors.Is(err, database.ErrDuplicate) {
			t.Fatalf("Expected ErrDuplicate, got %v", err)
		}
		current, err := repos.FaceTags.GetFaceTag(ctx, dup.ID)
		if err != nil {
			t.Fatal(err)
		}
		if current.Status != database.StatusPending {
			t.Errorf("Expected pending, got %s", current.Status)
		}
	})

	t.Run("RejectUnknown", func(t *testing.T) {
		if _, err := repos.FaceTags.RejectFaceTag(ctx, 424242, moderationEvent("mod-1")); !errors.Is(err, database.ErrNotFound) {
			t.Errorf("Expected ErrNotFound, got %v", err)
		}
	})

	t.Run("PendingPage", func(t *testing.T) {
		for i := range 4 {
			newTag(t, facematch.Region{X: 0.5 + float64(i)*0.1, Y: 0.8, Width: 0.05, Height: 0.05}, nil)
		}
		first, total, err := repos.FaceTags.PendingPage(ctx, 0, 2)
		if err != nil {
			t.Fatal(err)
		}
		if total != 5 || len(first) != 2 {
			t.Fatalf("Expected 2 of 5 pending, got %d of %d", len(first), total)
		}
		second, _, err := repos.FaceTags.PendingPage(ctx, 2, 2)
		if err != nil {
			t.Fatal(err)
		}
		if second[0].ID <= first[1].ID {
			t.Errorf("Pages overlap or are out of order: %d then %d", first[1].ID, second[0].ID)
		}
	})

	t.Run("FindSimilarFaces", func(t *testing.T) {
		results, err := repos.FaceTags.FindSimilarFaces(ctx, []float32{0.9, 0.1, 0}, 5)
		if err != nil {
			t.Fatalf("Postgres search failed: %v", err)
		}
		if len(results) != 1 || results[0].PersonID != alice.ID {
			t.Fatalf("Expected Alice's approved face, got %+v", results)
		}

		if err := repos.FaceTags.EnableHNSW(ctx, ""); err != nil {
			t.Fatalf("Failed to enable HNSW: %v", err)
		}
		if repos.FaceTags.HNSWCount() != 1 {
			t.Errorf("Expected 1 indexed face, got %d", repos.FaceTags.HNSWCount())
		}
		hnswResults, err := repos.FaceTags.FindSimilarFaces(ctx, []float32{0.9, 0.1, 0}, 5)
		if err != nil {
			t.Fatalf("HNSW search failed: %v", err)
		}
		if len(hnswResults) != 1 || hnswResults[0].TagID != results[0].TagID {
			t.Errorf("HNSW and Postgres disagree: %+v vs %+v", hnswResults, results)
		}
	})

	t.Run("DeleteImagesCascades", func(t *testing.T) {
		if err := repos.Detections.ReplaceDetections(ctx, 1, []database.StoredDetection{
			{FaceIndex: 0, Region: facematch.Region{X: 0.1, Y: 0.1, Width: 0.2, Height: 0.2}, Confidence: 0.9, Embedding: []float32{1, 0, 0}},
		}); err != nil {
			t.Fatal(err)
		}
		n, err := repos.Images.DeleteImages(ctx, []int64{1, 2})
		if err != nil {
			t.Fatal(err)
		}
		if n != 1 {
			t.Errorf("Expected 1 deleted image, got %d", n)
		}
		tags, err := repos.FaceTags.ListFaceTagsForImage(ctx, 1, "")
		if err != nil {
			t.Fatal(err)
		}
		if len(tags) != 0 {
			t.Errorf("Expected tags to cascade, %d remain", len(tags))
		}
		detections, err := repos.Detections.GetDetections(ctx, 1)
		if err != nil {
			t.Fatal(err)
		}
		if len(detections) != 0 {
			t.Errorf("Expected detections to cascade, %d remain", len(detections))
		}
		if err := repos.People.DeletePerson(ctx, alice.ID); err != nil {
			t.Errorf("Expected unreferenced person to be deletable: %v", err)
		}
	})
}

func TestMigrations(t *testing.T) {
	pool, cleanup := setupTestContainer(t)
	if pool == nil {
		return
	}
	defer cleanup()

	ctx := context.Background()

	// Running again must be a no-op.
	if err := pool.Migrate(ctx); err != nil {
		t.Fatalf("Second migrate failed: %v", err)
	}

	applied, err := pool.MigrationsApplied(ctx)
	if err != nil {
		t.Fatalf("Failed to get applied migrations: %v", err)
	}

	expectedMigrations := []string{"001_face_tags.sql"}
	if len(applied) != len(expectedMigrations) {
		t.Errorf("Expected %d migrations, got %d", len(expectedMigrations), len(applied))
	}
	for i, expected := range expectedMigrations {
		if i < len(applied) && applied[i] != expected {
			t.Errorf("Migration %d: expected '%s', got '%s'", i, expected, applied[i])
		}
	}
}

func TestGlobalPool(t *testing.T) {
	pool, cleanup := setupTestContainer(t)
	if pool == nil {
		return
	}
	defer cleanup()

	SetGlobalPool(nil)
	if IsAvailable() {
		t.Fatal("IsAvailable() = true without a global pool")
	}
	SetGlobalPool(pool)
	defer SetGlobalPool(nil)
	if !IsAvailable() || GetGlobalPool() != pool {
		t.Error("global pool was not stored")
	}
}
