package aescbc

import "fmt"

// pad appends PKCS#7 padding. A full block of padding is added when the input
// is already block aligned, so the result is never empty.
func pad(b []byte, blockSize int) []byte {
	n := blockSize - len(b)%blockSize
	out := make([]byte, len(b)+n)
	copy(out, b)
	for i := len(b); i < len(out); i++ {
		out[i] = byte(n)
	}
	return out
}

// unpad validates and strips PKCS#7 padding.
func unpad(b []byte, blockSize int) ([]byte, error) {
	if len(b) == 0 || len(b)%blockSize != 0 {
		return nil, fmt.Errorf("%w: length %d is not a positive multiple of %d", ErrPadding, len(b), blockSize)
	}

	n := int(b[len(b)-1])
	if n == 0 || n > blockSize {
		return nil, fmt.Errorf("%w: pad length %d out of range", ErrPadding, n)
	}

	for _, c := range b[len(b)-n:] {
		if int(c) != n {
			return nil, fmt.Errorf("%w: inconsistent pad bytes", ErrPadding)
		}
	}

	return b[:len(b)-n], nil
}
