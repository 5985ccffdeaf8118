package crypto

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"pgregory.net/rapid"
)

func TestHeaderNew(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		cryptor := drawTestCryptor(t)
		h, err := cryptor.NewHeader()
		assert.NoError(t, err)

		assert.Len(t, h.Nonce, cryptor.NonceSize())
		assert.Len(t, h.ContentKey, ContentKeySize)
		assert.Len(t, h.Reserved, ReservedSize)

		assert.Equal(t, reservedValue, binary.BigEndian.Uint64(h.Reserved))
	})
}

func TestHeaderRoundTrip(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		buf := &bytes.Buffer{}
		cryptor := drawTestCryptor(t)

		h1, err := cryptor.NewHeader()
		assert.NoError(t, err)

		err = cryptor.MarshalHeader(buf, h1)
		assert.NoError(t, err)

		assert.Len(t, buf.Bytes(), cryptor.NonceSize()+PayloadSize+cryptor.TagSize())

		h2, err := cryptor.UnmarshalHeader(buf)
		assert.NoError(t, err)

		assert.Equal(t, h1, h2)
	})
}

func TestUnmarshalHeaderRejectsTamperedCiphertext(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		buf := &bytes.Buffer{}
		cryptor := drawTestCryptor(t)

		h1, err := cryptor.NewHeader()
		assert.NoError(t, err)

		err = cryptor.MarshalHeader(buf, h1)
		assert.NoError(t, err)

		encoded := buf.Bytes()
		encoded[len(encoded)-1] ^= 0xFF

		_, err = cryptor.UnmarshalHeader(bytes.NewReader(encoded))
		assert.Error(t, err)
	})
}
