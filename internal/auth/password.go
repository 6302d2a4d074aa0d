// Package auth hashes and verifies room passwords. Participant
// credential issuance happens outside this server; the only secret the
// engine itself keeps is the optional per-room password.
package auth

import (
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// HashRoomPassword returns the bcrypt hash of a room password. An
// empty password hashes to an empty string, meaning the room is open.
func HashRoomPassword(password string) (string, error) {
	if password == "" {
		return "", nil
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hashing room password: %w", err)
	}
	return string(hash), nil
}

// CheckRoomPassword reports whether password matches hash. An empty
// hash means the room is open and any password is accepted.
func CheckRoomPassword(hash, password string) bool {
	if hash == "" {
		return true
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}
