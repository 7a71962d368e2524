package domain

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

type User struct {
	ID            int64     `json:"id"`
	Role          string    `json:"role"`
	Email         string    `json:"email"`
	PasswordHash  string    `json:"-"`
	Name          string    `json:"name"`
	Provider      string    `json:"provider"`
	IsVerified    bool      `json:"is_verified"`
	UseLimit      int       `json:"use_limit"`
	ExhaustedUses int       `json:"exhausted_uses"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// Guest is an unauthenticated identity tracked per client IP, with a smaller
// default allowance than a registered account.
type Guest struct {
	ID            int64     `json:"id"`
	IP            string    `json:"ip"`
	UseLimit      int       `json:"use_limit"`
	ExhaustedUses int       `json:"exhausted_uses"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

type CreateUserRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type LoginResponse struct {
	AccessToken string    `json:"access_token"`
	ExpiresIn   int64     `json:"expires_in"`
	User        *UserInfo `json:"user"`
}

type UserInfo struct {
	ID            int64  `json:"id"`
	Email         string `json:"email"`
	Name          string `json:"name"`
	Role          string `json:"role"`
	IsVerified    bool   `json:"is_verified"`
	UseLimit      int    `json:"use_limit"`
	ExhaustedUses int    `json:"exhausted_uses"`
}

// Valid user roles
const (
	RoleGuest = "guest"
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// Auth providers
const (
	ProviderLocal = "local"
)

var validRoles = map[string]bool{
	RoleGuest: true,
	RoleUser:  true,
	RoleAdmin: true,
}

func (r *CreateUserRequest) Validate() error {
	if r.Email == "" {
		return fmt.Errorf("email is required")
	}
	if !isValidEmail(r.Email) {
		return fmt.Errorf("invalid email format")
	}
	if r.Password == "" {
		return fmt.Errorf("password is required")
	}
	if len(r.Password) < 8 {
		return fmt.Errorf("password must be at least 8 characters")
	}
	if r.Name == "" {
		return fmt.Errorf("name is required")
	}
	return nil
}

func (r *LoginRequest) Validate() error {
	if r.Email == "" {
		return fmt.Errorf("email is required")
	}
	if !isValidEmail(r.Email) {
		return fmt.Errorf("invalid email format")
	}
	if r.Password == "" {
		return fmt.Errorf("password is required")
	}
	return nil
}

func IsValidRole(role string) bool {
	return validRoles[role]
}

func isValidEmail(email string) bool {
	emailRegex := regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)
	return emailRegex.MatchString(email)
}

func (r *CreateUserRequest) Normalize() {
	r.Email = strings.ToLower(strings.TrimSpace(r.Email))
	r.Name = strings.TrimSpace(r.Name)
}

func (r *LoginRequest) Normalize() {
	r.Email = strings.ToLower(strings.TrimSpace(r.Email))
}

// RemainingUses reports how many credit-consuming actions the user has left.
func (u *User) RemainingUses() int {
	if left := u.UseLimit - u.ExhaustedUses; left > 0 {
		return left
	}
	return 0
}

func (g *Guest) RemainingUses() int {
	if left := g.UseLimit - g.ExhaustedUses; left > 0 {
		return left
	}
	return 0
}

// ToUserInfo converts User to UserInfo (without sensitive data)
func (u *User) ToUserInfo() *UserInfo {
	return &UserInfo{
		ID:            u.ID,
		Email:         u.Email,
		Name:          u.Name,
		Role:          u.Role,
		IsVerified:    u.IsVerified,
		UseLimit:      u.UseLimit,
		ExhaustedUses: u.ExhaustedUses,
	}
}
