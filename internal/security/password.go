package security

import "golang.org/x/crypto/bcrypt"

// Cost is pinned rather than bcrypt.DefaultCost so existing hashes stay
// comparable if the library default ever moves.
const hashCost = 10

// HashPassword hashes a plain text password with bcrypt.
func HashPassword(plain string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(plain), hashCost)

	if err != nil {
		return "", err
	}

	return string(hash), nil
}

// CheckPassword compares a bcrypt hash with a plaintext password.
// Returns bcrypt.ErrMismatchedHashAndPassword on a wrong password, which
// callers must keep distinct from other (internal) failures.
func CheckPassword(hash, plain string) error {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plain))
}
