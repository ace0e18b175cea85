package models

import "github.com/golang-jwt/jwt/v5"

// UserRole represents the roles issued by the authentication provider.
type UserRole string

const (
	RoleAdmin   UserRole = "ADMIN"
	RoleTeacher UserRole = "TEACHER"
	RoleStudent UserRole = "STUDENT"
)

// JWTClaims describes the claims carried by access tokens.
type JWTClaims struct {
	UserID string   `json:"sub_id"`
	Email  string   `json:"email"`
	Role   UserRole `json:"role"`
	jwt.RegisteredClaims
}
