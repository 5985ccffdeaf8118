package crypto

import (
	"bytes"
	"crypto/rand"
	"encoding/binary"
	"fmt"
	"io"
	"unsafe"

	"github.com/oxcryptfs/oxcryptfs/oxerr"
)

const (
	// ContentKeySize is the size of a file's per-file content key.
	ContentKeySize = 32
	// ReservedSize is the size of the header's reserved field.
	ReservedSize = 8
	// PayloadSize is the size of the header's encrypted payload
	// (reserved ‖ content key), before nonce/tag overhead.
	PayloadSize = ContentKeySize + ReservedSize
	// reservedValue is the fixed bit pattern Cryptomator writes into the
	// header's reserved field.
	reservedValue uint64 = 0xFFFFFFFFFFFFFFFF
)

// Header is a file's header: the nonce used to encrypt it (which also
// serves as AAD for every content chunk), and the per-file content key it
// protects.
type Header struct {
	Nonce      []byte
	Reserved   []byte
	ContentKey []byte
}

// NewHeader allocates a fresh Header with a random nonce and content key,
// as written when creating a new file.
func (c *Cryptor) NewHeader() (Header, error) {
	h := Header{
		Nonce:      make([]byte, c.NonceSize()),
		ContentKey: make([]byte, ContentKeySize),
		Reserved:   make([]byte, ReservedSize),
	}
	if _, err := rand.Read(h.Nonce); err != nil {
		return Header{}, oxerr.Wrap(oxerr.KindIO, "header.new", err)
	}
	if _, err := rand.Read(h.ContentKey); err != nil {
		return Header{}, oxerr.Wrap(oxerr.KindIO, "header.new", err)
	}
	binary.BigEndian.PutUint64(h.Reserved, reservedValue)
	return h, nil
}

// headerPayload is the fixed-layout struct encoded inside the header's
// encrypted payload.
type headerPayload struct {
	Reserved   [ReservedSize]byte
	ContentKey [ContentKeySize]byte
}

var _ [0]struct{} = [unsafe.Sizeof(headerPayload{}) - PayloadSize]struct{}{}

func copyExact(dst, src []byte, field string) error {
	if len(dst) != len(src) {
		return oxerr.New(oxerr.KindInvalidVaultStructure, "header", "",
			fmt.Errorf("incorrect length of %s: expected %d got %d", field, len(dst), len(src)))
	}
	copy(dst, src)
	return nil
}

// MarshalHeader encrypts h and writes it to w: nonce ‖ ciphertext ‖ tag.
func (c *Cryptor) MarshalHeader(w io.Writer, h Header) error {
	var payload headerPayload
	if err := copyExact(payload.Reserved[:], h.Reserved, "reserved"); err != nil {
		return err
	}
	if err := copyExact(payload.ContentKey[:], h.ContentKey, "content_key"); err != nil {
		return err
	}

	var buf bytes.Buffer
	if err := binary.Write(&buf, binary.BigEndian, &payload); err != nil {
		return oxerr.Wrap(oxerr.KindIO, "header.marshal", err)
	}

	encrypted := c.EncryptChunk(buf.Bytes(), h.Nonce, nil)
	if _, err := w.Write(encrypted); err != nil {
		return oxerr.Wrap(oxerr.KindIO, "header.marshal", err)
	}
	return nil
}

// UnmarshalHeader reads an encrypted header from r and authenticates and
// decrypts it.
func (c *Cryptor) UnmarshalHeader(r io.Reader) (Header, error) {
	encoded := make([]byte, c.NonceSize()+PayloadSize+c.TagSize())
	if _, err := io.ReadFull(r, encoded); err != nil {
		return Header{}, oxerr.Wrap(oxerr.KindIO, "header.unmarshal", err)
	}
	nonce := encoded[:c.NonceSize()]

	decrypted, err := c.DecryptChunk(encoded, nil)
	if err != nil {
		return Header{}, err
	}

	var payload headerPayload
	if err := binary.Read(bytes.NewReader(decrypted), binary.BigEndian, &payload); err != nil {
		return Header{}, oxerr.Wrap(oxerr.KindInvalidVaultStructure, "header.unmarshal", err)
	}

	return Header{
		Nonce:      append([]byte(nil), nonce...),
		Reserved:   append([]byte(nil), payload.Reserved[:]...),
		ContentKey: append([]byte(nil), payload.ContentKey[:]...),
	}, nil
}
