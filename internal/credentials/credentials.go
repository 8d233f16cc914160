// Package credentials hashes and verifies user secrets with bcrypt.
package credentials

import "golang.org/x/crypto/bcrypt"

// Bcrypt hashes secrets with the bcrypt KDF. The zero value uses the
// library's default cost.
type Bcrypt struct {
	Cost int
}

// Hash derives a salted digest from the secret.
func (b Bcrypt) Hash(secret string) (string, error) {
	cost := b.Cost
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	digest, err := bcrypt.GenerateFromPassword([]byte(secret), cost)
	if err != nil {
		return "", err
	}
	return string(digest), nil
}

// Verify reports whether the secret matches the stored digest.
func (b Bcrypt) Verify(secret, digest string) bool {
	return bcrypt.CompareHashAndPassword([]byte(digest), []byte(secret)) == nil
}
