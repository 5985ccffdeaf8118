// Package crypto implements the authenticated-encryption primitives and key
// material handling for a Cryptomator v8 vault: master-key wrapping, AES-SIV
// filename/directory-ID encryption, and chunked AES-GCM content encryption.
package crypto

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"

	"golang.org/x/crypto/scrypt"

	"github.com/oxcryptfs/oxcryptfs/oxerr"
)

const (
	// EncryptKeySize is the size of MasterKey's AES encryption half.
	EncryptKeySize = 32
	// MacKeySize is the size of MasterKey's MAC half.
	MacKeySize = EncryptKeySize

	// DefaultVersion is the legacy version tag written to masterkey.cryptomator.
	// Format 8 vaults no longer check it at open time, but still write it for
	// compatibility with the reference implementation.
	DefaultVersion = 999
	// DefaultScryptCostParam is the scrypt N parameter used for newly created
	// vaults: 2^15, the open-question decision recorded for "modern hardware".
	DefaultScryptCostParam = 32 * 1024
	// DefaultScryptBlockSize is the scrypt r parameter for new vaults.
	DefaultScryptBlockSize = 8
	// DefaultScryptSaltSize is the random salt length for new vaults.
	DefaultScryptSaltSize = 32
	// scryptParallelism is the scrypt p parameter; Cryptomator always uses 1.
	scryptParallelism = 1
)

// MasterKey holds the two 256-bit secrets that protect a vault: an AES key
// used for header/content encryption and the SIV encryption half, and a MAC
// key used for SIV authentication and directory-ID hashing.
//
// MasterKey never exposes an owned copy of its key bytes. Callers that need
// the raw bytes (the SIV cipher construction, the key-wrap routines) must go
// through WithRawKey, which hands a scoped, zeroized-on-return copy to a
// closure. This mirrors the source's resource-owning secret wrapper without
// requiring a Drop/finalizer equivalent: Destroy is called explicitly by the
// vault's lock path.
type MasterKey struct {
	encryptKey []byte
	macKey     []byte
}

// zero overwrites b with zero bytes in place.
func zero(b []byte) {
	for i := range b {
		b[i] = 0
	}
}

// NewMasterKey allocates a fresh MasterKey from a CSPRNG, as used when
// creating a brand new vault.
func NewMasterKey() (MasterKey, error) {
	var m MasterKey
	m.encryptKey = make([]byte, EncryptKeySize)
	m.macKey = make([]byte, MacKeySize)

	if _, err := rand.Read(m.encryptKey); err != nil {
		return MasterKey{}, oxerr.Wrap(oxerr.KindIO, "master_key.random", err)
	}
	if _, err := rand.Read(m.macKey); err != nil {
		return MasterKey{}, oxerr.Wrap(oxerr.KindIO, "master_key.random", err)
	}
	return m, nil
}

// WithRawKey invokes fn with scoped copies of the encrypt and MAC key bytes.
// The copies are zeroized before WithRawKey returns; fn must not retain
// either slice beyond the call.
func (m MasterKey) WithRawKey(fn func(encryptKey, macKey []byte) error) error {
	encCopy := append([]byte(nil), m.encryptKey...)
	macCopy := append([]byte(nil), m.macKey...)
	defer zero(encCopy)
	defer zero(macCopy)
	return fn(encCopy, macCopy)
}

// WithEncryptKey invokes fn with a scoped, zeroized-on-return copy of the
// AES encryption key alone.
func (m MasterKey) WithEncryptKey(fn func(key []byte) error) error {
	cp := append([]byte(nil), m.encryptKey...)
	defer zero(cp)
	return fn(cp)
}

// WithMacKey invokes fn with a scoped, zeroized-on-return copy of the MAC
// key alone.
func (m MasterKey) WithMacKey(fn func(key []byte) error) error {
	cp := append([]byte(nil), m.macKey...)
	defer zero(cp)
	return fn(cp)
}

// Destroy zeroizes both key halves in place. The MasterKey must not be used
// afterward.
func (m MasterKey) Destroy() {
	zero(m.encryptKey)
	zero(m.macKey)
}

// jwtSigningKey returns the concatenation encryptKey‖macKey used as the HMAC
// key for the vault.cryptomator JWT signature.
func (m MasterKey) jwtSigningKey() []byte {
	return append(append([]byte(nil), m.encryptKey...), m.macKey...)
}

// sivKey returns the concatenation macKey‖encryptKey used to seed the
// AES-SIV cipher (miscreant expects MAC half first).
func (m MasterKey) sivKey() []byte {
	return append(append([]byte(nil), m.macKey...), m.encryptKey...)
}

// encryptedMasterKey is the on-disk JSON shape of masterkey.cryptomator.
type encryptedMasterKey struct {
	ScryptSalt       []byte `json:"scryptSalt"`
	ScryptCostParam  int    `json:"scryptCostParam"`
	ScryptBlockSize  int    `json:"scryptBlockSize"`
	PrimaryMasterKey []byte `json:"primaryMasterKey"`
	HmacMasterKey    []byte `json:"hmacMasterKey"`

	// Version and VersionMac are vestigial: format 8 vaults no longer
	// validate them, but Cryptomator Desktop still writes them for older
	// tooling that might inspect the file.
	Version    uint32 `json:"version"`
	VersionMac []byte `json:"versionMac"`
}

// DeriveKEK runs scrypt over passphrase with the given salt and cost
// parameters, returning a fresh 32-byte key-encryption-key.
func DeriveKEK(passphrase string, salt []byte, costParam, blockSize int) ([]byte, error) {
	kek, err := scrypt.Key([]byte(passphrase), salt, costParam, blockSize, scryptParallelism, EncryptKeySize)
	if err != nil {
		return nil, oxerr.Wrap(oxerr.KindKeyAccess, "kdf.scrypt", err)
	}
	return kek, nil
}

// Marshal encrypts m with a passphrase-derived KEK and writes the resulting
// masterkey.cryptomator JSON document to w.
func (m MasterKey) Marshal(w io.Writer, passphrase string, costParam int) error {
	enc := encryptedMasterKey{
		Version:         DefaultVersion,
		ScryptCostParam: costParam,
		ScryptBlockSize: DefaultScryptBlockSize,
		ScryptSalt:      make([]byte, DefaultScryptSaltSize),
	}

	if _, err := rand.Read(enc.ScryptSalt); err != nil {
		return oxerr.Wrap(oxerr.KindIO, "master_key.marshal", err)
	}

	kek, err := DeriveKEK(passphrase, enc.ScryptSalt, enc.ScryptCostParam, enc.ScryptBlockSize)
	if err != nil {
		return err
	}

	if err := m.WithRawKey(func(encryptKey, macKey []byte) error {
		wrapped, werr := WrapKey(kek, encryptKey)
		if werr != nil {
			return werr
		}
		enc.PrimaryMasterKey = wrapped

		wrapped, werr = WrapKey(kek, macKey)
		if werr != nil {
			return werr
		}
		enc.HmacMasterKey = wrapped
		return nil
	}); err != nil {
		return err
	}

	enc.VersionMac = hmacSum(m, enc.Version)

	if err := json.NewEncoder(w).Encode(enc); err != nil {
		return oxerr.Wrap(oxerr.KindIO, "master_key.marshal", err)
	}
	return nil
}

// hmacSum computes HMAC-SHA256(macKey, bigEndian(version)), matching the
// vestigial VersionMac field the reference implementation still writes.
func hmacSum(m MasterKey, version uint32) []byte {
	var out []byte
	_ = m.WithMacKey(func(macKey []byte) error {
		h := hmac.New(sha256.New, macKey)
		var buf [4]byte
		binary.BigEndian.PutUint32(buf[:], version)
		h.Write(buf[:])
		out = h.Sum(nil)
		return nil
	})
	return out
}

// UnmarshalMasterKey reads a masterkey.cryptomator JSON document from r and
// unwraps its key material using a passphrase-derived KEK. Returns
// *oxerr.Error with Kind KeyWrapIntegrity on wrong passphrase or tampering;
// the two cases are indistinguishable by design (no password oracle).
func UnmarshalMasterKey(r io.Reader, passphrase string) (MasterKey, error) {
	var enc encryptedMasterKey
	if err := json.NewDecoder(r).Decode(&enc); err != nil {
		return MasterKey{}, oxerr.Wrap(oxerr.KindIO, "master_key.unmarshal", fmt.Errorf("parse masterkey.cryptomator: %w", err))
	}

	kek, err := DeriveKEK(passphrase, enc.ScryptSalt, enc.ScryptCostParam, enc.ScryptBlockSize)
	if err != nil {
		return MasterKey{}, err
	}

	var m MasterKey
	m.encryptKey, err = UnwrapKey(kek, enc.PrimaryMasterKey)
	if err != nil {
		return MasterKey{}, err
	}
	m.macKey, err = UnwrapKey(kek, enc.HmacMasterKey)
	if err != nil {
		zero(m.encryptKey)
		return MasterKey{}, err
	}
	return m, nil
}
