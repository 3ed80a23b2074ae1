package service

import (
	"crypto/rand"
	"fmt"
	"io"
)

// AccessCodeAlphabet excludes the look-alike symbols I, O, 1 and 0 so a
// code can be read over the phone.
const AccessCodeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

// AccessCodeLength is the number of symbols in a share code.
const AccessCodeLength = 6

// REJECTION SAMPLING:
// A random byte is uniform over 0..255. Taking it modulo n is uniform over
// 0..n-1 only when n divides 256; otherwise the first 256%n symbols come up
// once more often than the rest. With n = 30, say, bytes 240..255 would
// favour symbols 0..15. The fix is to throw away bytes at or above the
// largest multiple of n and draw again:
//
//	limit = 256 - 256%n          // n = 30 → 240
//	b < limit  → symbol b % n    // every symbol has exactly limit/n bytes
//	b >= limit → redraw
//
// The alphabet has 32 symbols, a divisor of 256, so limit is 256 and no
// byte is ever rejected. The loop stays so that editing the alphabet cannot
// quietly introduce bias.
const unbiasedLimit = 256 - 256%len(AccessCodeAlphabet)

// NewAccessCode draws AccessCodeLength symbols independently and uniformly
// from AccessCodeAlphabet. Repeats within one code are allowed.
// A nil source means crypto/rand.
func NewAccessCode(source io.Reader) (string, error) {
	if source == nil {
		source = rand.Reader
	}
	code := make([]byte, 0, AccessCodeLength)
	buf := make([]byte, AccessCodeLength)
	// each pass reads only as many bytes as symbols are still missing
	for len(code) < AccessCodeLength {
		if _, err := io.ReadFull(source, buf[:AccessCodeLength-len(code)]); err != nil {
			return "", fmt.Errorf("drawing access code: %w", err)
		}
		for _, b := range buf[:AccessCodeLength-len(code)] {
			if int(b) < unbiasedLimit {
				code = append(code, AccessCodeAlphabet[int(b)%len(AccessCodeAlphabet)])
			}
		}
	}
	return string(code), nil
}

// ShareKey is the storage key of the snapshot behind code.
func ShareKey(code string) string {
	return "shares/" + code
}
