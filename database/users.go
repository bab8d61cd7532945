package database

import (
	"context"
	"strings"
	"time"

	"bastaku-campaign-api/logger"
	"bastaku-campaign-api/models"
)

func (c *Connection) CreateUser(ctx context.Context, u *models.User) (int64, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now().UTC()
	}
	result, err := c.db.ExecContext(ctx, `
		INSERT INTO users (first_name, last_name, email, phone, password_hash, is_wholesaler, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		u.FirstName, u.LastName, strings.ToLower(u.Email), u.Phone, u.PasswordHash, u.IsWholesaler, u.CreatedAt)
	if err != nil {
		return 0, translate(err, "failed to create user")
	}
	id, err := result.LastInsertId()
	if err != nil {
		return 0, translate(err, "failed to read user id")
	}
	u.ID = id
	return id, nil
}

func (c *Connection) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	var u models.User
	err := c.db.QueryRowContext(ctx, `
		SELECT id, first_name, last_name, email, phone, password_hash, is_wholesaler, created_at
		FROM users
		WHERE email = ?`, strings.ToLower(strings.TrimSpace(email))).Scan(
		&u.ID, &u.FirstName, &u.LastName, &u.Email, &u.Phone, &u.PasswordHash, &u.IsWholesaler, &u.CreatedAt)
	if err != nil {
		return nil, translate(err, "failed to get user")
	}
	return &u, nil
}

// GetUserProfile returns the user's contact details joined with the saved
// shipping address. Users who never saved an address get empty fields.
func (c *Connection) GetUserProfile(ctx context.Context, userID int64) (*models.Profile, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	var p models.Profile
	err := c.db.QueryRowContext(ctx, `
		SELECT u.first_name, u.last_name, u.email, u.phone,
		       COALESCE(a.street_address, ''), COALESCE(a.city, ''),
		       COALESCE(a.zipcode, ''), COALESCE(a.country, '')
		FROM users u
		LEFT JOIN user_addresses a ON a.user_id = u.id
		WHERE u.id = ?`, userID).Scan(
		&p.FirstName, &p.LastName, &p.Email, &p.PhoneNumber,
		&p.StreetAddress, &p.City, &p.Zipcode, &p.Country)
	if err != nil {
		return nil, translate(err, "failed to get user profile")
	}
	return &p, nil
}

// UpdateUserProfile saves the contact details and upserts the address in
// one transaction. An email already used by another account yields
// ErrDuplicate.
func (c *Connection) UpdateUserProfile(ctx context.Context, userID int64, p *models.Profile) error {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	err := c.withTransaction(ctx, func(tx *Transaction) error {
		_, err := tx.tx.ExecContext(ctx, `
			UPDATE users SET first_name = ?, last_name = ?, email = ?, phone = ?
			WHERE id = ?`,
			p.FirstName, p.LastName, strings.ToLower(p.Email), p.PhoneNumber, userID)
		if err != nil {
			return translate(err, "failed to update user")
		}

		_, err = tx.tx.ExecContext(ctx, `
			INSERT INTO user_addresses (user_id, street_address, city, zipcode, country, updated_at)
			VALUES (?, ?, ?, ?, ?, ?)
			ON DUPLICATE KEY UPDATE
				street_address = VALUES(street_address),
				city = VALUES(city),
				zipcode = VALUES(zipcode),
				country = VALUES(country),
				updated_at = VALUES(updated_at)`,
			userID, p.StreetAddress, p.City, p.Zipcode, p.Country, time.Now().UTC())
		return translate(err, "failed to save address")
	})
	if err != nil {
		return err
	}

	logger.Get().Infow("user profile updated", "user_id", userID)
	return nil
}
