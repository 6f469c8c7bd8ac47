package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"github.com/cliniccompass/cliniccompass-backend/internal/models"
)

const pqUniqueViolation = "23505"

// CredentialRepository stores sign-in credentials in PostgreSQL. Emails are
// stored normalized by the caller.
type CredentialRepository struct {
	db *sql.DB
}

func NewCredentialRepository(db *sql.DB) *CredentialRepository {
	return &CredentialRepository{db: db}
}

func (r *CredentialRepository) CreateCredential(ctx context.Context, c models.Credential) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO credentials (id, email, password_hash, display_name, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`, c.UserID, c.Email, c.PasswordHash, c.DisplayName, c.CreatedAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == pqUniqueViolation {
			return ErrDuplicateEmail
		}
		return fmt.Errorf("insert credential: %w", err)
	}
	return nil
}

func (r *CredentialRepository) CredentialByEmail(ctx context.Context, email string) (*models.Credential, error) {
	c := &models.Credential{}
	err := r.db.QueryRowContext(ctx, `
		SELECT id, email, password_hash, display_name, created_at
		FROM credentials WHERE email = $1
	`, email).Scan(&c.UserID, &c.Email, &c.PasswordHash, &c.DisplayName, &c.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select credential: %w", err)
	}
	return c, nil
}

func (r *CredentialRepository) CredentialByID(ctx context.Context, userID string) (*models.Credential, error) {
	c := &models.Credential{}
	err := r.db.QueryRowContext(ctx, `
		SELECT id, email, password_hash, display_name, created_at
		FROM credentials WHERE id = $1
	`, userID).Scan(&c.UserID, &c.Email, &c.PasswordHash, &c.DisplayName, &c.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select credential: %w", err)
	}
	return c, nil
}

// DeleteCredential removes the credential of userID. A missing row is not an
// error.
func (r *CredentialRepository) DeleteCredential(ctx context.Context, userID string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM credentials WHERE id = $1`, userID); err != nil {
		return fmt.Errorf("delete credential: %w", err)
	}
	return nil
}
