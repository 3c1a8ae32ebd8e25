package domain

import "time"

type UserType string

const (
	UserTypeConsumer UserType = "consumer"
	UserTypeProvider UserType = "provider"
)

// Valid reports whether t is one of the known account types.
func (t UserType) Valid() bool {
	return t == UserTypeConsumer || t == UserTypeProvider
}

// User represents a registered marketplace account. The JSON layout is the
// persisted record format of the registry and of the session record.
type User struct {
	ID               string    `json:"id"`
	Type             UserType  `json:"type"`
	Name             string    `json:"name"`
	Email            string    `json:"email"`
	Phone            string    `json:"phone"`
	Password         string    `json:"password"`
	RegistrationDate time.Time `json:"registrationDate"`
	Category         string    `json:"category,omitempty"`
	Description      string    `json:"description,omitempty"`
}

// IsProvider reports whether the account offers services on the marketplace.
func (u *User) IsProvider() bool {
	return u != nil && u.Type == UserTypeProvider
}

// DisplayName falls back to a generic label for accounts registered without a name.
func (u *User) DisplayName() string {
	if u == nil || u.Name == "" {
		return "user"
	}
	return u.Name
}
