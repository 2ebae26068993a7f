package sigv4

import (
	"crypto/hmac"
	"crypto/sha256"
)

// Crypto supplies the two hashing primitives SigV4 needs. The signer
// never reaches for a global implementation; callers inject one (or use
// StdCrypto) so the dependency stays explicit and swappable.
type Crypto interface {
	// Sum256 returns the SHA-256 digest of data.
	Sum256(data []byte) []byte

	// HMACSHA256 returns the HMAC-SHA-256 of data under key.
	HMACSHA256(key, data []byte) []byte
}

type stdCrypto struct{}

func (stdCrypto) Sum256(data []byte) []byte {
	sum := sha256.Sum256(data)
	return sum[:]
}

func (stdCrypto) HMACSHA256(key, data []byte) []byte {
	mac := hmac.New(sha256.New, key)
	mac.Write(data)
	return mac.Sum(nil)
}

// StdCrypto returns the standard-library-backed Crypto implementation.
func StdCrypto() Crypto {
	return stdCrypto{}
}
