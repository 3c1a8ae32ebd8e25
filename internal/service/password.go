package service

import (
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// PasswordPolicy decides how passwords are stored in the registry and compared on login.
type PasswordPolicy interface {
	Seal(password string) (string, error)
	Matches(stored, password string) bool
}

// PlaintextPasswords stores passwords as submitted and compares them exactly.
type PlaintextPasswords struct{}

func (PlaintextPasswords) Seal(password string) (string, error) {
	return password, nil
}

func (PlaintextPasswords) Matches(stored, password string) bool {
	return stored == password
}

// BcryptPasswords stores bcrypt hashes.
type BcryptPasswords struct {
	Cost int
}

func (p BcryptPasswords) Seal(password string) (string, error) {
	cost := p.Cost
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}

func (BcryptPasswords) Matches(stored, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(stored), []byte(password)) == nil
}

// PasswordPolicyByName resolves the configured policy name.
func PasswordPolicyByName(name string) (PasswordPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "plaintext":
		return PlaintextPasswords{}, nil
	case "bcrypt":
		return BcryptPasswords{}, nil
	default:
		return nil, fmt.Errorf("unknown password policy %q", name)
	}
}
