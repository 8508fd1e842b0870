package repositories

import "crypto/rand"

// inviteCodeAlphabet avoids ambiguous characters (0/O, 1/l/I).
const inviteCodeAlphabet = "ABCDEFGHJKMNPQRSTUVWXYZabcdefghjkmnpqrstuvwxyz23456789"

const inviteCodeLength = 8

// newInviteCode draws a uniform random code. Bytes at or above the
// largest multiple of the alphabet size are rejected so no character
// is more likely than another.
func newInviteCode() (string, error) {
	const limit = byte(256 - 256%len(inviteCodeAlphabet))

	code := make([]byte, 0, inviteCodeLength)
	buf := make([]byte, inviteCodeLength*2)
	for len(code) < inviteCodeLength {
		if _, err := rand.Read(buf); err != nil {
			return "", err
		}
		for _, b := range buf {
			if b >= limit {
				continue
			}
			code = append(code, inviteCodeAlphabet[int(b)%len(inviteCodeAlphabet)])
			if len(code) == inviteCodeLength {
				break
			}
		}
	}
	return string(code), nil
}
