package service

import (
	"crypto/subtle"
	"strings"

	"github.com/stemsi/labquiz/internal/repository"
	"golang.org/x/crypto/bcrypt"
)

// CredentialService verifies student logins against the roster.
type CredentialService struct {
	roster *repository.Roster
}

// NewCredentialService creates a new CredentialService.
func NewCredentialService(roster *repository.Roster) *CredentialService {
	return &CredentialService{roster: roster}
}

// Verify checks a roll number and password. The returned LoginError tells an
// unknown roll number apart from a wrong password.
func (s *CredentialService) Verify(rollNumber, password string) error {
	rec, ok := s.roster.Lookup(rollNumber)
	if !ok {
		return newLoginError(ReasonInvalidRollNumber)
	}
	if !VerifySecret(rec.Secret, password) {
		return newLoginError(ReasonIncorrectPassword)
	}
	return nil
}

// VerifySecret compares password against a stored secret, which is either a
// bcrypt hash or a plaintext value.
func VerifySecret(stored, password string) bool {
	if isBcryptHash(stored) {
		return bcrypt.CompareHashAndPassword([]byte(stored), []byte(password)) == nil
	}
	return subtle.ConstantTimeCompare([]byte(stored), []byte(password)) == 1
}

func isBcryptHash(s string) bool {
	return strings.HasPrefix(s, "$2a$") || strings.HasPrefix(s, "$2b$") || strings.HasPrefix(s, "$2y$")
}
