package models

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// OperatorRole represents the available roles for the ops API.
type OperatorRole string

const (
	RoleAdmin    OperatorRole = "ADMIN"
	RoleOperator OperatorRole = "OPERATOR"
)

// Operator is an ops API user stored in the operators table.
type Operator struct {
	ID           string       `db:"id" json:"id"`
	Email        string       `db:"email" json:"email"`
	PasswordHash string       `db:"password_hash" json:"-"`
	FullName     string       `db:"full_name" json:"full_name"`
	Role         OperatorRole `db:"role" json:"role"`
	Active       bool         `db:"active" json:"active"`
	LastLogin    *time.Time   `db:"last_login" json:"last_login,omitempty"`
	CreatedAt    time.Time    `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time    `db:"updated_at" json:"updated_at"`
}

// LoginRequest holds credentials for authenticating an operator.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// LoginResponse returns the issued token and operator info.
type LoginResponse struct {
	AccessToken string       `json:"access_token"`
	ExpiresIn   int64        `json:"expires_in"`
	IssuedAt    time.Time    `json:"issued_at"`
	Operator    OperatorInfo `json:"operator"`
}

// OperatorInfo describes the authenticated operator in responses.
type OperatorInfo struct {
	ID       string       `json:"id"`
	Email    string       `json:"email"`
	FullName string       `json:"full_name"`
	Role     OperatorRole `json:"role"`
}

// JWTClaims represents the JWT payload for access tokens.
type JWTClaims struct {
	OperatorID string       `json:"operator_id"`
	Role       OperatorRole `json:"role"`
	Email      string       `json:"email"`
	jwt.RegisteredClaims
}
