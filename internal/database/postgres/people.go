package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/er587/wedding-gallery-application/internal/database"
)

// findOrCreateAttempts bounds the insert/select loop of FindOrCreatePerson.
// A second attempt is only needed when a concurrent rename or delete races
// with the lookup.
const findOrCreateAttempts = 3

// PersonRepository provides PostgreSQL-backed person storage
type PersonRepository struct {
	pool *Pool
}

// NewPersonRepository creates a new PostgreSQL person repository
func NewPersonRepository(pool *Pool) *PersonRepository {
	return &PersonRepository{pool: pool}
}

func scanPerson(scanner interface{ Scan(...any) error }) (*database.Person, error) {
	var p database.Person
	if err := scanner.Scan(&p.ID, &p.Name, &p.CreatedBy, &p.CreatedAt); err != nil {
		return nil, err
	}
	return &p, nil
}

// GetPerson returns a person by id
func (r *PersonRepository) GetPerson(ctx context.Context, id int64) (*database.Person, error) {
	row := r.pool.QueryRow(ctx, "SELECT id, name, created_by, created_at FROM people WHERE id = $1", id)
	p, err := scanPerson(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, database.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get person: %w", err)
	}
	return p, nil
}

// ListPeople returns all people ordered by case-folded name, then id
func (r *PersonRepository) ListPeople(ctx context.Context) ([]database.Person, error) {
	rows, err := r.pool.Query(ctx, "SELECT id, name, created_by, created_at FROM people ORDER BY name_key, id")
	if err != nil {
		return nil, fmt.Errorf("query people: %w", err)
	}
	defer rows.Close()

	people := []database.Person{}
	for rows.Next() {
		p, err := scanPerson(rows)
		if err != nil {
			return nil, fmt.Errorf("scan person: %w", err)
		}
		people = append(people, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate people: %w", err)
	}
	return people, nil
}

// FindOrCreatePerson returns the person owning key, inserting it when missing.
// The unique index on name_key makes concurrent creation of the same name
// collapse into one row: the losing insert does nothing and reads the winner.
func (r *PersonRepository) FindOrCreatePerson(
	ctx context.Context, name, key, createdBy string,
) (*database.Person, bool, error) {
	insert := `
		INSERT INTO people (name, name_key, created_by)
		VALUES ($1, $2, $3)
		ON CONFLICT (name_key) DO NOTHING
		RETURNING id, name, created_by, created_at
	`
	lookup := "SELECT id, name, created_by, created_at FROM people WHERE name_key = $1"

	for range findOrCreateAttempts {
		p, err := scanPerson(r.pool.QueryRow(ctx, insert, name, key, createdBy))
		if err == nil {
			return p, true, nil
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return nil, false, fmt.Errorf("insert person: %w", err)
		}

		p, err = scanPerson(r.pool.QueryRow(ctx, lookup, key))
		if err == nil {
			return p, false, nil
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return nil, false, fmt.Errorf("lookup person: %w", err)
		}
		// The conflicting row vanished between insert and lookup; try again.
	}
	return nil, false, fmt.Errorf("find or create person %q: gave up after %d attempts", name, findOrCreateAttempts)
}

// RenamePerson changes a person's display name and key
func (r *PersonRepository) RenamePerson(ctx context.Context, id int64, name, key string) (*database.Person, error) {
	query := `
		UPDATE people SET name = $2, name_key = $3
		WHERE id = $1
		RETURNING id, name, created_by, created_at
	`
	p, err := scanPerson(r.pool.QueryRow(ctx, query, id, name, key))
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return nil, database.ErrNotFound
	case isUniqueViolation(err):
		return nil, database.ErrDuplicate
	case err != nil:
		return nil, fmt.Errorf("rename person: %w", err)
	}
	return p, nil
}

// DeletePerson removes a person that no face tag references
func (r *PersonRepository) DeletePerson(ctx context.Context, id int64) error {
	result, err := r.pool.Exec(ctx, "DELETE FROM people WHERE id = $1", id)
	if isForeignKeyViolation(err) {
		return database.ErrInUse
	}
	if err != nil {
		return fmt.Errorf("delete person: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("getting rows affected: %w", err)
	}
	if n == 0 {
		return database.ErrNotFound
	}
	return nil
}
