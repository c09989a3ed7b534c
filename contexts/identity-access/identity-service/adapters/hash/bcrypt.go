package hash

import "golang.org/x/crypto/bcrypt"

// BcryptHasher implements ports.PasswordHasher. Zero Cost uses the bcrypt
// default; tests lower it to MinCost to keep hashing cheap.
type BcryptHasher struct {
	Cost int
}

func (h BcryptHasher) Hash(password string) (string, error) {
	cost := h.Cost
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return "", err
	}
	return string(hashed), nil
}

func (h BcryptHasher) Compare(hashValue string, password string) error {
	return bcrypt.CompareHashAndPassword([]byte(hashValue), []byte(password))
}
