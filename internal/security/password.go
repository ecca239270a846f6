package security

import "github.com/matthewhartstonge/argon2"

var argon = argon2.DefaultConfig()

// HashPassword derives an encoded argon2id hash from a plaintext password.
// The encoded form embeds the salt and cost parameters.
func HashPassword(password string) (string, error) {
	encoded, err := argon.HashEncoded([]byte(password))
	if err != nil {
		return "", err
	}

	return string(encoded), nil
}

// VerifyPassword compares a plaintext password against an encoded argon2id hash
// in constant time.
func VerifyPassword(password, encodedHash string) (bool, error) {
	return argon2.VerifyEncoded([]byte(password), []byte(encodedHash))
}
