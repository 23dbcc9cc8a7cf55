package room

import (
	"crypto/rand"
	"math/big"
)

// codeAlphabet is A-Z 2-9 with the visually ambiguous glyphs (I, L, O,
// 0, 1) removed, so codes survive being read out loud over voice chat.
const codeAlphabet = "ABCDEFGHJKMNPQRSTUVWXYZ23456789"

const codeLength = 6

// NewCode generates a random 6-character room code.
func NewCode() string {
	max := big.NewInt(int64(len(codeAlphabet)))
	buf := make([]byte, codeLength)
	for i := range buf {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			// crypto/rand only fails when the OS entropy source is
			// broken; nothing sensible to do but give up.
			panic(err)
		}
		buf[i] = codeAlphabet[n.Int64()]
	}
	return string(buf)
}
