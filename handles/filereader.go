package handles

import (
	"io"
	"os"

	"github.com/oxcryptfs/oxcryptfs/crypto"
	"github.com/oxcryptfs/oxcryptfs/oxerr"
	"github.com/oxcryptfs/oxcryptfs/vault"
)

// VaultFileReader is a range-read service over one ciphertext file. It
// caches the decrypted header (and so the per-file content key) once at
// construction and maps an arbitrary plaintext byte range onto the
// ciphertext chunks that cover it, seeking directly to each chunk's offset
// (header_size + k*(nonce+payload+tag)) instead of decrypting the file
// from the start (§4.3). It is stateless past the cached header and
// ciphertext size, so Clone produces an independent reader safe for
// concurrent use from another goroutine.
type VaultFileReader struct {
	cryptor        *crypto.Cryptor // vault-level: header sizing only
	contentCryptor *crypto.Cryptor // per-file, derived from header.ContentKey
	absPath        string
	header         crypto.Header
	ciphertextSize int64
}

// Open builds a VaultFileReader for the file at p, reading and caching its
// header up front.
func Open(v *vault.Vault, p vault.Path) (*VaultFileReader, error) {
	absPath, err := v.PathForRead(p)
	if err != nil {
		return nil, err
	}
	return openAbs(v.Cryptor(), absPath)
}

func openAbs(cryptor *crypto.Cryptor, absPath string) (*VaultFileReader, error) {
	f, err := os.Open(absPath)
	if err != nil {
		return nil, oxerr.Wrap(oxerr.KindIO, "filereader.open", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, oxerr.Wrap(oxerr.KindIO, "filereader.open", err)
	}
	header, err := cryptor.UnmarshalHeader(f)
	if err != nil {
		return nil, err
	}
	contentCryptor, err := cryptor.ContentCryptorForHeader(header)
	if err != nil {
		return nil, err
	}

	return &VaultFileReader{
		cryptor:        cryptor,
		contentCryptor: contentCryptor,
		absPath:        absPath,
		header:         header,
		ciphertextSize: info.Size(),
	}, nil
}

// Clone returns an independent reader over the same file, sharing the
// cached header but opening its own file descriptor per read.
func (r *VaultFileReader) Clone() *VaultFileReader {
	clone := *r
	return &clone
}

// Close is a no-op: VaultFileReader holds no file descriptor between
// reads, only the cached header and size.
func (r *VaultFileReader) Close() error { return nil }

// PlaintextSize returns the file's decrypted length, derived from the
// cached ciphertext size.
func (r *VaultFileReader) PlaintextSize() int64 {
	return r.cryptor.DecryptedFileSize(r.ciphertextSize)
}

// ReadAt returns up to size plaintext bytes starting at offset, clamped to
// the file's length; reading at or past EOF returns an empty slice and a
// nil error, matching POSIX read() rather than io.Reader's EOF signalling.
func (r *VaultFileReader) ReadAt(offset int64, size int) ([]byte, error) {
	if offset < 0 || size <= 0 {
		return nil, nil
	}
	plainSize := r.PlaintextSize()
	if offset >= plainSize {
		return nil, nil
	}
	end := offset + int64(size)
	if end > plainSize {
		end = plainSize
	}

	f, err := os.Open(r.absPath)
	if err != nil {
		return nil, oxerr.Wrap(oxerr.KindIO, "filereader.read_at", err)
	}
	defer f.Close()

	chunkPayload := int64(crypto.ChunkPayloadSize)
	headerSize := int64(r.cryptor.HeaderSize())
	chunkCipherSize := int64(r.cryptor.ChunkCipherSize())

	firstChunk := offset / chunkPayload
	lastChunk := (end - 1) / chunkPayload

	out := make([]byte, 0, end-offset)
	for k := firstChunk; k <= lastChunk; k++ {
		chunkOffset := headerSize + k*chunkCipherSize
		remaining := r.ciphertextSize - chunkOffset
		readLen := chunkCipherSize
		if remaining < readLen {
			readLen = remaining
		}
		if readLen <= 0 {
			break
		}

		if _, err := f.Seek(chunkOffset, io.SeekStart); err != nil {
			return nil, oxerr.Wrap(oxerr.KindIO, "filereader.read_at", err)
		}
		buf := make([]byte, readLen)
		if _, err := io.ReadFull(f, buf); err != nil {
			return nil, oxerr.Wrap(oxerr.KindIO, "filereader.read_at", err)
		}

		ad := r.contentCryptor.FileAssociatedData(r.header.Nonce, uint64(k))
		plaintext, err := r.contentCryptor.DecryptChunk(buf, ad)
		if err != nil {
			return nil, err
		}

		chunkStart := k * chunkPayload
		lo := int64(0)
		if offset > chunkStart {
			lo = offset - chunkStart
		}
		hi := int64(len(plaintext))
		if chunkStart+hi > end {
			hi = end - chunkStart
		}
		if lo < hi {
			out = append(out, plaintext[lo:hi]...)
		}
	}
	return out, nil
}
