package generator

import (
	"crypto/rand"
	"math/big"
)

// InviteAlphabet has 32 symbols; I, O, 0 and 1 are left out because they are
// easy to misread.
const InviteAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

const InviteCodeLength = 8

// InviteCode returns a random invite code drawn uniformly from InviteAlphabet.
func InviteCode() (string, error) {
	return Code(InviteAlphabet, InviteCodeLength)
}

// Code returns a random string of the given length over alphabet.
func Code(alphabet string, length int) (string, error) {
	max := big.NewInt(int64(len(alphabet)))
	buf := make([]byte, length)
	for i := range buf {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		buf[i] = alphabet[n.Int64()]
	}
	return string(buf), nil
}
