package models

import (
	"strings"

	"github.com/golang-jwt/jwt/v4"
)

const (
	RoleMember = "member"
	RoleAdmin  = "admin"
)

// Member is a Yellow Card member profile stored in Firestore under users/{uid}
type Member struct {
	UID       string `json:"uid" firestore:"-"`
	FirstName string `json:"firstName" firestore:"firstName"`
	LastName  string `json:"lastName" firestore:"lastName"`
	FullName  string `json:"fullName,omitempty" firestore:"fullName,omitempty"`
	MemberID  string `json:"memberId" firestore:"memberId"`
	Role      string `json:"role" firestore:"role"`
	Email     string `json:"email" firestore:"email"`
}

// DisplayName returns the stored full name, or first and last name joined.
func (m *Member) DisplayName() string {
	if m.FullName != "" {
		return m.FullName
	}
	return strings.TrimSpace(m.FirstName + " " + m.LastName)
}

type RegisterRequest struct {
	Email     string `json:"email" validate:"required,email"`
	Password  string `json:"password" validate:"required,min=6"`
	FirstName string `json:"firstName" validate:"required,min=1,max=50"`
	LastName  string `json:"lastName" validate:"required,min=1,max=50"`
	MemberID  string `json:"memberId,omitempty" validate:"omitempty,max=40"`
}

// ChangePasswordRequest carries a Firebase ID token from a fresh sign-in,
// which proves the member knows the current password.
type ChangePasswordRequest struct {
	IDToken     string `json:"idToken" validate:"required"`
	NewPassword string `json:"newPassword" validate:"required,min=6"`
}

// JwtCustomClaims are custom claims extending standard jwt.RegisteredClaims
type JwtCustomClaims struct {
	UID   string `json:"uid"`
	Email string `json:"email"`
	Role  string `json:"role"`
	jwt.RegisteredClaims
}
