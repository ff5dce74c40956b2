package repositories

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/desertthunder/veechar/internal/models"
	"github.com/desertthunder/veechar/internal/shared"
)

// FavoriteRepository handles database operations for favorite folders.
type FavoriteRepository struct {
	db  *sql.DB
	now func() time.Time
}

// NewFavoriteRepository creates a new favorite repository.
func NewFavoriteRepository(db *sql.DB) *FavoriteRepository {
	return &FavoriteRepository{db: db, now: time.Now}
}

var _ models.FavoriteStore = (*FavoriteRepository)(nil)

// ListFavorites returns every favorite, newest first.
func (r *FavoriteRepository) ListFavorites() ([]*models.FavoriteFolder, error) {
	rows, err := r.db.Query(`SELECT id, path, name, added_at FROM favorites ORDER BY added_at DESC, name ASC`)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to list favorites: %v", shared.ErrPersistence, err)
	}
	defer rows.Close()

	var favorites []*models.FavoriteFolder
	for rows.Next() {
		var f models.FavoriteFolder
		if err := rows.Scan(&f.ID, &f.Path, &f.Name, &f.AddedAt); err != nil {
			return nil, fmt.Errorf("%w: failed to scan favorite: %v", shared.ErrPersistence, err)
		}
		favorites = append(favorites, &f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: error iterating favorites: %v", shared.ErrPersistence, err)
	}
	return favorites, nil
}

// IsFavorite reports whether the folder at path is starred.
func (r *FavoriteRepository) IsFavorite(path string) (bool, error) {
	var id string
	err := r.db.QueryRow(`SELECT id FROM favorites WHERE path = ?`, path).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("%w: %v", shared.ErrPersistence, err)
	}
	return true, nil
}

// ToggleFavorite stars an unstarred folder or unstars a starred one and returns the new state.
func (r *FavoriteRepository) ToggleFavorite(path, name string) (bool, error) {
	fav := &models.FavoriteFolder{Path: path, Name: name}
	if err := fav.Validate(); err != nil {
		return false, fmt.Errorf("%w: %v", shared.ErrInvalidInput, err)
	}

	tx, err := r.db.Begin()
	if err != nil {
		return false, fmt.Errorf("%w: failed to begin transaction: %v", shared.ErrPersistence, err)
	}
	defer tx.Rollback()

	result, err := tx.Exec(`DELETE FROM favorites WHERE path = ?`, path)
	if err != nil {
		return false, fmt.Errorf("%w: %v", shared.ErrPersistence, err)
	}
	removed, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("%w: failed to get rows affected: %v", shared.ErrPersistence, err)
	}

	if removed == 0 {
		fav.ID = shared.GenerateID()
		fav.AddedAt = r.now()
		if _, err := tx.Exec(`INSERT INTO favorites (id, path, name, added_at) VALUES (?, ?, ?, ?)`,
			fav.ID, fav.Path, fav.Name, fav.AddedAt); err != nil {
			return false, fmt.Errorf("%w: failed to add favorite: %v", shared.ErrPersistence, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("%w: failed to commit: %v", shared.ErrPersistence, err)
	}
	return removed == 0, nil
}
