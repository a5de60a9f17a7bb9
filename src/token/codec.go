package token

import (
	"encoding/base64"
	"errors"
	"fmt"
	"unicode/utf8"
)

var ErrInvalidUTF8 = errors.New("decoded segment is not valid UTF-8")

// segmentEncoding is base64url without padding. Strict mode rejects non-zero
// trailing bits so every byte string has exactly one accepted encoding.
var segmentEncoding = base64.RawURLEncoding.Strict()

// Encode renders b in base64url without padding.
func Encode(b []byte) string {
	return segmentEncoding.EncodeToString(b)
}

// EncodeString encodes the UTF-8 bytes of s.
func EncodeString(s string) string {
	return Encode([]byte(s))
}

// Decode reverses Encode. Padded input is rejected so that each segment has
// exactly one accepted spelling.
func Decode(s string) ([]byte, error) {
	b, err := segmentEncoding.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("decode segment: %w", err)
	}
	return b, nil
}

// DecodeString decodes s and requires the result to be valid UTF-8.
func DecodeString(s string) (string, error) {
	b, err := Decode(s)
	if err != nil {
		return "", err
	}
	if !utf8.Valid(b) {
		return "", ErrInvalidUTF8
	}
	return string(b), nil
}
