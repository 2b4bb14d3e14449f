// Package users provides database operations for account records.
//
// # Usage
//
//	repo := users.NewRepository(db)
//	user, err := repo.GetByUsername("alice")
//
// Usernames are folded to lower case on every read and write, so
// lookups are case-insensitive regardless of what the caller sends.
package users

import (
	"errors"
	"strings"

	"gorm.io/gorm"

	"github.com/whispered/usersd/internal/entities"
)

// ErrNotFound is returned when no user matches the query.
var ErrNotFound = errors.New("user not found")

// Repository handles all user database operations.
type Repository struct {
	db *gorm.DB
}

// NewRepository creates a new users repository.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// Create inserts a new user. The username is stored lower-cased and the
// password must already be hashed by the caller.
func (r *Repository) Create(user *entities.User) error {
	user.Username = strings.ToLower(user.Username)
	return r.db.Create(user).Error
}

// GetByUsername retrieves a user by lower-cased username.
func (r *Repository) GetByUsername(username string) (*entities.User, error) {
	var user entities.User
	err := r.db.Where("username = ?", strings.ToLower(username)).First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &user, nil
}

// GetByID retrieves a user by ID.
func (r *Repository) GetByID(id uint) (*entities.User, error) {
	var user entities.User
	err := r.db.First(&user, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &user, nil
}

// Exists reports whether a user with the given username is already
// registered. This is the pre-insert check used by registration; it is
// not atomic with the subsequent insert.
func (r *Repository) Exists(username string) (bool, error) {
	var count int64
	err := r.db.Model(&entities.User{}).
		Where("username = ?", strings.ToLower(username)).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// Update persists changes to an existing user.
func (r *Repository) Update(user *entities.User) error {
	user.Username = strings.ToLower(user.Username)
	return r.db.Save(user).Error
}

// Delete removes a user by ID.
func (r *Repository) Delete(id uint) error {
	return r.db.Delete(&entities.User{}, id).Error
}

// Count returns the number of registered users.
func (r *Repository) Count() (int64, error) {
	var count int64
	err := r.db.Model(&entities.User{}).Count(&count).Error
	return count, err
}
