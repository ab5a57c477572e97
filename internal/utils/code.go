package utils

import (
	"crypto/rand"

	"github.com/campfield/ticketoffice/internal/model"
)

// NewCheckinCode returns a random check-in code of the given length
// drawn from the safe-character alphabet. Codes are later embedded
// in receipt QR payloads and typed in by gate staff when scanning
// fails, hence the restricted alphabet.
func NewCheckinCode(length int) (string, error) {
	if length <= 0 || length > model.MaxCodeLength {
		length = model.MaxCodeLength
	}
	code := make([]byte, length)
	if _, err := rand.Read(code); err != nil {
		return "", err
	}
	for i := 0; i < length; i++ {
		code[i] = model.SafeChars[int(code[i])%len(model.SafeChars)]
	}
	return string(code), nil
}
