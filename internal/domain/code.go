package domain

import "crypto/rand"

// codeAlphabet drops 0, 1, I and O so codes survive being read aloud.
// 32 symbols keeps the byte-to-symbol mapping unbiased.
const codeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

const DefaultCodeLength = 6

// CodeGenerator mints candidate room codes. It carries no uniqueness
// duty; the session retries against the store until the code is free.
type CodeGenerator struct {
	length int
}

func NewCodeGenerator(length int) *CodeGenerator {
	if length <= 0 {
		length = DefaultCodeLength
	}
	return &CodeGenerator{length: length}
}

// Generate returns a fixed-length code from crypto/rand. Codes must be
// unguessable within a room's lifetime, so math/rand is not enough here.
func (g *CodeGenerator) Generate() (RoomCode, error) {
	buf := make([]byte, g.length)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	for i, b := range buf {
		buf[i] = codeAlphabet[int(b)%len(codeAlphabet)]
	}
	return RoomCode(buf), nil
}
