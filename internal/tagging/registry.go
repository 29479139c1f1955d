package tagging

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/er587/wedding-gallery-application/internal/database"
	"github.com/er587/wedding-gallery-application/internal/facematch"
)

// MaxPersonNameLength is the longest accepted person name, in characters.
const MaxPersonNameLength = 100

// Registry manages the named identities that face tags reference.
type Registry struct {
	store database.PersonStore
}

// NewRegistry creates a person registry backed by store.
func NewRegistry(store database.PersonStore) *Registry {
	return &Registry{store: store}
}

func cleanName(name string) (string, error) {
	clean := facematch.CleanPersonName(name)
	if clean == "" {
		return "", fmt.Errorf("%w: person name must not be empty", ErrValidation)
	}
	if utf8.RuneCountInString(clean) > MaxPersonNameLength {
		return "", fmt.Errorf("%w: person name must be at most %d characters", ErrValidation, MaxPersonNameLength)
	}
	return clean, nil
}

// FindOrCreate returns the person whose name matches case-insensitively,
// creating one with the trimmed name if none exists.
func (r *Registry) FindOrCreate(ctx context.Context, name, createdBy string) (*database.Person, error) {
	clean, err := cleanName(name)
	if err != nil {
		return nil, err
	}
	p, _, err := r.store.FindOrCreatePerson(ctx, clean, facematch.PersonNameKey(clean), createdBy)
	if err != nil {
		return nil, fmt.Errorf("find or create person: %w", err)
	}
	return p, nil
}

// Get returns a person by id.
func (r *Registry) Get(ctx context.Context, id int64) (*database.Person, error) {
	p, err := r.store.GetPerson(ctx, id)
	if errors.Is(err, database.ErrNotFound) {
		return nil, fmt.Errorf("%w: person %d", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("get person: %w", err)
	}
	return p, nil
}

// List returns all people in alphabetical order.
func (r *Registry) List(ctx context.Context) ([]database.Person, error) {
	people, err := r.store.ListPeople(ctx)
	if err != nil {
		return nil, fmt.Errorf("list people: %w", err)
	}
	return people, nil
}

// Search returns people whose name contains query, ignoring case and diacritics.
// An empty query returns everyone.
func (r *Registry) Search(ctx context.Context, query string) ([]database.Person, error) {
	people, err := r.List(ctx)
	if err != nil {
		return nil, err
	}
	needle := facematch.NormalizePersonName(facematch.CleanPersonName(query))
	if needle == "" {
		return people, nil
	}

	matches := make([]database.Person, 0, len(people))
	for _, p := range people {
		if strings.Contains(facematch.NormalizePersonName(p.Name), needle) {
			matches = append(matches, p)
		}
	}
	return matches, nil
}

// Rename changes a person's display name. Only the creator or a moderator may rename.
func (r *Registry) Rename(ctx context.Context, id int64, name string, actor Actor) (*database.Person, error) {
	clean, err := cleanName(name)
	if err != nil {
		return nil, err
	}
	current, err := r.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !actor.canManage(current.CreatedBy) {
		return nil, fmt.Errorf("%w: only the creator or a moderator may rename person %d", ErrPermission, id)
	}

	p, err := r.store.RenamePerson(ctx, id, clean, facematch.PersonNameKey(clean))
	switch {
	case errors.Is(err, database.ErrNotFound):
		return nil, fmt.Errorf("%w: person %d", ErrNotFound, id)
	case errors.Is(err, database.ErrDuplicate):
		return nil, fmt.Errorf("%w: another person is already named %q", ErrValidation, clean)
	case err != nil:
		return nil, fmt.Errorf("rename person: %w", err)
	}
	return p, nil
}

// Delete removes a person that no face tag references.
// Only the creator or a moderator may delete.
func (r *Registry) Delete(ctx context.Context, id int64, actor Actor) error {
	current, err := r.Get(ctx, id)
	if err != nil {
		return err
	}
	if !actor.canManage(current.CreatedBy) {
		return fmt.Errorf("%w: only the creator or a moderator may delete person %d", ErrPermission, id)
	}

	err = r.store.DeletePerson(ctx, id)
	switch {
	case errors.Is(err, database.ErrNotFound):
		return fmt.Errorf("%w: person %d", ErrNotFound, id)
	case errors.Is(err, database.ErrInUse):
		return fmt.Errorf("%w: person %d is still referenced by face tags", ErrInvalidState, id)
	case err != nil:
		return fmt.Errorf("delete person: %w", err)
	}
	return nil
}
