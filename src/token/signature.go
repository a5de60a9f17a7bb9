package token

import (
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

// Sign returns the base64url HMAC-SHA256 of message under secret.
func Sign(message string, secret []byte) (string, error) {
	sig, err := jwt.SigningMethodHS256.Sign(message, secret)
	if err != nil {
		return "", fmt.Errorf("sign message: %w", err)
	}
	return Encode(sig), nil
}

// Verify recomputes the signature of message and compares it with signature in
// constant time. Any mismatch, including an undecodable signature, is ErrBadSignature.
func Verify(message, signature string, secret []byte) error {
	sig, err := Decode(signature)
	if err != nil {
		return ErrBadSignature
	}
	if err := jwt.SigningMethodHS256.Verify(message, sig, secret); err != nil {
		return ErrBadSignature
	}
	return nil
}
