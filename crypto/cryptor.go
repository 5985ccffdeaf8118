package crypto

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/hmac"
	"crypto/sha1"
	"crypto/sha256"
	"encoding/base32"
	"encoding/base64"
	"encoding/binary"
	"fmt"
	"hash"

	"github.com/miscreant/miscreant.go"

	"github.com/oxcryptfs/oxcryptfs/oxerr"
)

// Cipher combo identifiers as written into vault.cryptomator's cipherCombo
// claim.
const (
	// CipherComboSivGcm is the current Cryptomator default: AES-SIV for
	// names, AES-GCM for content. The only combo CreateVault ever chooses.
	CipherComboSivGcm = "SIV_GCM"
	// CipherComboSivCtrMac is the legacy combo used before Cryptomator 1.7:
	// AES-SIV for names, AES-CTR + HMAC-SHA256 for content. Supported for
	// reading older vaults only.
	CipherComboSivCtrMac = "SIV_CTRMAC"
)

// contentCryptor abstracts the per-chunk AEAD used for file content,
// letting Cryptor support both the current GCM combo and the legacy
// CTR+MAC combo behind one interface.
type contentCryptor interface {
	EncryptChunk(plaintext, nonce, additionalData []byte) []byte
	DecryptChunk(chunk, additionalData []byte) ([]byte, error)
	FileAssociatedData(headerNonce []byte, chunkNr uint64) []byte

	NonceSize() int
	TagSize() int
}

// Cryptor implements every authenticated-encryption operation a vault needs:
// filename/directory-ID encryption via AES-SIV, and file content/header
// encryption via the vault's configured cipher combo.
type Cryptor struct {
	masterKey   MasterKey
	siv         *miscreant.Cipher
	cipherCombo string
	content     contentCryptor
}

// NewCryptor builds a Cryptor bound to key and the named cipher combo.
// cipherCombo must be CipherComboSivGcm or CipherComboSivCtrMac.
func NewCryptor(key MasterKey, cipherCombo string) (*Cryptor, error) {
	c := &Cryptor{masterKey: key, cipherCombo: cipherCombo}

	if err := key.WithRawKey(func(encryptKey, macKey []byte) error {
		sivKey := append(append([]byte(nil), macKey...), encryptKey...)
		siv, err := miscreant.NewAESCMACSIV(sivKey)
		zero(sivKey)
		if err != nil {
			return oxerr.Wrap(oxerr.KindKeyAccess, "cryptor.new", err)
		}
		c.siv = siv
		return nil
	}); err != nil {
		return nil, err
	}

	content, err := newContentCryptor(key, key, cipherCombo)
	if err != nil {
		return nil, err
	}
	c.content = content
	return c, nil
}

// newContentCryptor builds the content-chunk AEAD for cipherCombo.
// encKeySrc supplies the AES key (the vault master key when constructing
// the vault-level Cryptor, or a per-file content key when constructing the
// per-file cryptor used by Reader/Writer). macKeySrc supplies the HMAC key
// for the legacy CTRMAC combo, which Cryptomator always derives from the
// vault's own MAC master key, never from the per-file content key.
func newContentCryptor(encKeySrc, macKeySrc MasterKey, cipherCombo string) (contentCryptor, error) {
	var block cipher.Block
	if err := encKeySrc.WithEncryptKey(func(k []byte) error {
		b, err := aes.NewCipher(k)
		if err != nil {
			return err
		}
		block = b
		return nil
	}); err != nil {
		return nil, oxerr.Wrap(oxerr.KindKeyAccess, "cryptor.new", err)
	}

	switch cipherCombo {
	case CipherComboSivGcm:
		aead, err := cipher.NewGCM(block)
		if err != nil {
			return nil, oxerr.Wrap(oxerr.KindKeyAccess, "cryptor.new", err)
		}
		return &gcmCryptor{aead: aead}, nil
	case CipherComboSivCtrMac:
		var hmacKey []byte
		_ = macKeySrc.WithMacKey(func(k []byte) error {
			hmacKey = append([]byte(nil), k...)
			return nil
		})
		return &ctrMacCryptor{block: block, hmacKey: hmacKey}, nil
	default:
		return nil, oxerr.New(oxerr.KindInvalidVaultStructure, "cryptor.new", "", fmt.Errorf("unsupported cipher combo %q", cipherCombo))
	}
}

// EncryptionOverhead is the per-chunk nonce+tag overhead of the active
// content cryptor (28 bytes for SIV_GCM, 48 for SIV_CTRMAC).
func (c *Cryptor) EncryptionOverhead() int {
	return c.content.NonceSize() + c.content.TagSize()
}

// HeaderSize is the on-disk size of a marshaled header: nonce ‖ payload ‖ tag.
func (c *Cryptor) HeaderSize() int { return c.NonceSize() + PayloadSize + c.TagSize() }

// ChunkCipherSize is the on-disk size of one full content chunk.
func (c *Cryptor) ChunkCipherSize() int { return ChunkPayloadSize + c.EncryptionOverhead() }

// NonceSize returns the content cryptor's nonce length.
func (c *Cryptor) NonceSize() int { return c.content.NonceSize() }

// TagSize returns the content cryptor's authentication tag length.
func (c *Cryptor) TagSize() int { return c.content.TagSize() }

// EncryptChunk encrypts a single content chunk (or header payload) under
// nonce with additionalData bound to the result.
func (c *Cryptor) EncryptChunk(plaintext, nonce, additionalData []byte) []byte {
	return c.content.EncryptChunk(plaintext, nonce, additionalData)
}

// DecryptChunk authenticates and decrypts a single content chunk (or header
// payload). Returns *oxerr.Error with Kind AuthenticationFailure on tamper
// or wrong key.
func (c *Cryptor) DecryptChunk(chunk, additionalData []byte) ([]byte, error) {
	pt, err := c.content.DecryptChunk(chunk, additionalData)
	if err != nil {
		return nil, oxerr.Wrap(oxerr.KindAuthenticationFailure, "cryptor.decrypt_chunk", err)
	}
	return pt, nil
}

// FileAssociatedData builds the AAD for chunk chunkNr of a file whose
// header nonce is headerNonce.
func (c *Cryptor) FileAssociatedData(headerNonce []byte, chunkNr uint64) []byte {
	return c.content.FileAssociatedData(headerNonce, chunkNr)
}

// EncryptDirID encrypts a raw directory ID (its UUID string, or the empty
// string for root) and returns the directory-hash used to derive its
// storage-path shard: base32(sha1(AES-SIV(dirID))).
func (c *Cryptor) EncryptDirID(dirID string) (string, error) {
	ciphertext, err := c.siv.Seal(nil, []byte(dirID))
	if err != nil {
		return "", oxerr.Wrap(oxerr.KindFilenameCodec, "cryptor.encrypt_dir_id", err)
	}
	sum := sha1.Sum(ciphertext)
	return base32.StdEncoding.EncodeToString(sum[:]), nil
}

// EncryptFilename encrypts filename, bound to its parent dirID via AAD, and
// returns the base64url encoding used as the on-disk <name>.c9r component.
func (c *Cryptor) EncryptFilename(filename, dirID string) (string, error) {
	ciphertext, err := c.siv.Seal(nil, []byte(filename), []byte(dirID))
	if err != nil {
		return "", oxerr.Wrap(oxerr.KindFilenameCodec, "cryptor.encrypt_filename", err)
	}
	return base64.RawURLEncoding.EncodeToString(ciphertext), nil
}

// DecryptFilename reverses EncryptFilename. Fails (directory binding, §8
// invariant 3) if encrypted was not produced under dirID.
func (c *Cryptor) DecryptFilename(encrypted, dirID string) (string, error) {
	ciphertext, err := base64.RawURLEncoding.DecodeString(encrypted)
	if err != nil {
		return "", oxerr.Wrap(oxerr.KindFilenameCodec, "cryptor.decrypt_filename", err)
	}
	plaintext, err := c.siv.Open(nil, ciphertext, []byte(dirID))
	if err != nil {
		return "", oxerr.Wrap(oxerr.KindFilenameCodec, "cryptor.decrypt_filename", err)
	}
	return string(plaintext), nil
}

// ShortenedName returns the base64url(sha1(encryptedName)) used to name the
// .c9s directory when encryptedName would exceed the shortening threshold.
func ShortenedName(encryptedName string) string {
	sum := sha1.Sum([]byte(encryptedName))
	return base64.RawURLEncoding.EncodeToString(sum[:])
}

// gcmCryptor implements contentCryptor for CipherComboSivGcm.
type gcmCryptor struct {
	aead cipher.AEAD
}

func (*gcmCryptor) NonceSize() int { return 12 }
func (*gcmCryptor) TagSize() int   { return 16 }

func (c *gcmCryptor) EncryptChunk(plaintext, nonce, additionalData []byte) []byte {
	var buf bytes.Buffer
	buf.Write(nonce)
	buf.Write(c.aead.Seal(nil, nonce, plaintext, additionalData))
	return buf.Bytes()
}

func (c *gcmCryptor) DecryptChunk(chunk, additionalData []byte) ([]byte, error) {
	if len(chunk) < c.NonceSize() {
		return nil, fmt.Errorf("chunk shorter than nonce")
	}
	nonce := chunk[:c.NonceSize()]
	return c.aead.Open(nil, nonce, chunk[c.NonceSize():], additionalData)
}

func (c *gcmCryptor) FileAssociatedData(headerNonce []byte, chunkNr uint64) []byte {
	var buf bytes.Buffer
	_ = binary.Write(&buf, binary.BigEndian, chunkNr)
	buf.Write(headerNonce)
	return buf.Bytes()
}

// ctrMacCryptor implements contentCryptor for the legacy CipherComboSivCtrMac,
// retained for reading pre-1.7 vaults. CreateVault never selects it.
type ctrMacCryptor struct {
	block   cipher.Block
	hmacKey []byte
}

func (*ctrMacCryptor) NonceSize() int { return 16 }
func (*ctrMacCryptor) TagSize() int   { return 32 }

func (c *ctrMacCryptor) newCTR(nonce []byte) cipher.Stream { return cipher.NewCTR(c.block, nonce) }
func (c *ctrMacCryptor) newHMAC() hash.Hash                { return hmac.New(sha256.New, c.hmacKey) }

func (c *ctrMacCryptor) EncryptChunk(plaintext, nonce, additionalData []byte) []byte {
	out := append([]byte(nil), plaintext...)
	c.newCTR(nonce).XORKeyStream(out, out)

	var buf bytes.Buffer
	buf.Write(nonce)
	buf.Write(out)

	mac := c.newHMAC()
	mac.Write(additionalData)
	mac.Write(buf.Bytes())
	buf.Write(mac.Sum(nil))
	return buf.Bytes()
}

func (c *ctrMacCryptor) DecryptChunk(chunk, additionalData []byte) ([]byte, error) {
	if len(chunk) < c.NonceSize()+c.TagSize() {
		return nil, fmt.Errorf("chunk shorter than nonce+tag")
	}
	macStart := len(chunk) - c.TagSize()
	tag := chunk[macStart:]
	body := chunk[:macStart]

	mac := c.newHMAC()
	mac.Write(additionalData)
	mac.Write(body)
	if !hmac.Equal(tag, mac.Sum(nil)) {
		return nil, fmt.Errorf("hmac verification failed")
	}

	nonce := body[:c.NonceSize()]
	ciphertext := append([]byte(nil), body[c.NonceSize():]...)
	c.newCTR(nonce).XORKeyStream(ciphertext, ciphertext)
	return ciphertext, nil
}

func (c *ctrMacCryptor) FileAssociatedData(headerNonce []byte, chunkNr uint64) []byte {
	var buf bytes.Buffer
	buf.Write(headerNonce)
	_ = binary.Write(&buf, binary.BigEndian, chunkNr)
	return buf.Bytes()
}
