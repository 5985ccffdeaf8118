package crypto

import (
	"github.com/stretchr/testify/assert"
	"pgregory.net/rapid"
)

var cipherCombos = []string{CipherComboSivCtrMac, CipherComboSivGcm}

func fixedSizeByteArray(n int) *rapid.Generator[[]byte] {
	return rapid.SliceOfN(rapid.Byte(), n, n)
}

func drawCipherCombo(t *rapid.T) string {
	return rapid.SampledFrom(cipherCombos).Draw(t, "cipherCombo")
}

func drawMasterKey(t *rapid.T) MasterKey {
	return MasterKey{
		encryptKey: fixedSizeByteArray(EncryptKeySize).Draw(t, "encKey"),
		macKey:     fixedSizeByteArray(MacKeySize).Draw(t, "macKey"),
	}
}

func drawTestCryptor(t *rapid.T) *Cryptor {
	c, err := NewCryptor(drawMasterKey(t), drawCipherCombo(t))
	assert.NoError(t, err, "creating cryptor")
	return c
}
