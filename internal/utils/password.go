package utils // package utils provides small helpers for hashing and random tokens

import "golang.org/x/crypto/bcrypt"

// CreatePasswordHash returns the bcrypt hash of a plain password using the
// given cost. The cost is taken from configuration so deployments can tune
// hashing time.
func CreatePasswordHash(plain string, cost int) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(plain), cost)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// ComparePasswordWithHash safely compares a plain password against a stored
// bcrypt hash.
func ComparePasswordWithHash(plain, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plain)) == nil
}
