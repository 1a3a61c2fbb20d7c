package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/opsgrid/patchwin-api/internal/models"
)

// OperatorRepository persists ops API users.
type OperatorRepository struct {
	db *sqlx.DB
}

// NewOperatorRepository constructs an operator repository.
func NewOperatorRepository(db *sqlx.DB) *OperatorRepository {
	return &OperatorRepository{db: db}
}

// FindByEmail fetches an operator by email.
func (r *OperatorRepository) FindByEmail(ctx context.Context, email string) (*models.Operator, error) {
	const query = `SELECT id, email, password_hash, full_name, role, active, last_login, created_at, updated_at
FROM operators WHERE email = $1`
	var op models.Operator
	if err := r.db.GetContext(ctx, &op, query, email); err != nil {
		return nil, err
	}
	return &op, nil
}

// FindByID fetches an operator by id.
func (r *OperatorRepository) FindByID(ctx context.Context, id string) (*models.Operator, error) {
	const query = `SELECT id, email, password_hash, full_name, role, active, last_login, created_at, updated_at
FROM operators WHERE id = $1`
	var op models.Operator
	if err := r.db.GetContext(ctx, &op, query, id); err != nil {
		return nil, err
	}
	return &op, nil
}

// UpdateLastLogin stamps the operator's last successful login.
func (r *OperatorRepository) UpdateLastLogin(ctx context.Context, id string, ts time.Time) error {
	if _, err := r.db.ExecContext(ctx, "UPDATE operators SET last_login = $1 WHERE id = $2", ts, id); err != nil {
		return fmt.Errorf("update last login: %w", err)
	}
	return nil
}
