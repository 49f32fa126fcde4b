// internal/repository/postgres/country.go
package postgres

import (
	"context"
	"database/sql"

	"recruitsync/internal/common/errors"
	"recruitsync/internal/models"
)

// CountryRepository reads local country reference data.
type CountryRepository struct {
	db *sql.DB
}

func NewCountryRepository(db *sql.DB) *CountryRepository {
	return &CountryRepository{db: db}
}

// FindByName returns (nil, nil) for an unknown name; unresolved countries are
// a data-quality signal handled upstream, not an error. The lookup ignores
// case: remote records carry inconsistent casing for the same country.
func (r *CountryRepository) FindByName(ctx context.Context, name string) (*models.Country, error) {
	var c models.Country
	err := r.db.QueryRowContext(ctx, `SELECT id, name FROM countries WHERE LOWER(name) = LOWER($1)`, name).
		Scan(&c.ID, &c.Name)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, errors.NewDatabaseError(err)
	}
	return &c, nil
}
