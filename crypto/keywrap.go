package crypto

import (
	"crypto/aes"
	"crypto/subtle"

	aeswrap "github.com/NickBall/go-aes-key-wrap"

	"github.com/oxcryptfs/oxcryptfs/oxerr"
)

// WrapKey wraps plaintext (a 32-byte MasterKey half) under kek using
// RFC-3394 AES key wrap.
func WrapKey(kek, plaintext []byte) ([]byte, error) {
	block, err := aes.NewCipher(kek)
	if err != nil {
		return nil, oxerr.Wrap(oxerr.KindKeyAccess, "keywrap.wrap", err)
	}
	wrapped, err := aeswrap.Wrap(block, plaintext)
	if err != nil {
		return nil, oxerr.Wrap(oxerr.KindKeyAccess, "keywrap.wrap", err)
	}
	return wrapped, nil
}

// UnwrapKey unwraps ciphertext under kek. Any failure — wrong KEK or
// tampered ciphertext — is reported uniformly as KindKeyWrapIntegrity; the
// two causes are indistinguishable to the caller by design, so a wrong
// passphrase never behaves differently from a corrupted masterkey file.
func UnwrapKey(kek, ciphertext []byte) ([]byte, error) {
	block, err := aes.NewCipher(kek)
	if err != nil {
		return nil, oxerr.Wrap(oxerr.KindKeyAccess, "keywrap.unwrap", err)
	}
	plaintext, err := aeswrap.Unwrap(block, ciphertext)
	if err != nil {
		return nil, oxerr.Wrap(oxerr.KindKeyWrapIntegrity, "keywrap.unwrap", err)
	}
	return plaintext, nil
}

// ConstantTimeEqual compares two byte slices without leaking timing
// information about where (or whether) they differ, for comparing
// secret-derived material outside of an AEAD's own tag check. No code in
// this module calls it.
func ConstantTimeEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare(a, b) == 1
}
