package utils

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"math/big"
)

// RandomHex returns a hex-encoded string generated from n bytes of
// cryptographically secure random data. Refresh tokens are built from it.
func RandomHex(n int) (string, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}

// RandomDigits returns a string of n secure random decimal digits, used for
// verification codes sent by email.
func RandomDigits(n int) (string, error) {
	out := make([]byte, n)
	for i := range out {
		d, err := rand.Int(rand.Reader, big.NewInt(10))
		if err != nil {
			return "", err
		}
		out[i] = byte('0' + d.Int64())
	}
	return string(out), nil
}

// RandomCode combines digits and a hex tail into a single opaque
// verification code. The digits keep short manual entry possible while the
// tail makes guessing impractical.
func RandomCode() (string, error) {
	digits, err := RandomDigits(6)
	if err != nil {
		return "", err
	}
	tail, err := RandomHex(8)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s-%s", digits, tail), nil
}
