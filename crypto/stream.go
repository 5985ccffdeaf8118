package crypto

import (
	"crypto/rand"
	"errors"
	"io"

	"github.com/oxcryptfs/oxcryptfs/oxerr"
)

// ChunkPayloadSize is the maximum plaintext size of one content chunk.
// Every chunk but the last is exactly this size.
const ChunkPayloadSize = 32 * 1024

// EncryptedFileSize returns the ciphertext size of a file whose plaintext is
// plaintextSize bytes: header + ⌈n/chunk⌉ chunks, each with nonce+tag
// overhead, per §8 invariant 6. An empty file is header-only (no chunks).
func (c *Cryptor) EncryptedFileSize(plaintextSize int64) int64 {
	overhead := int64(c.EncryptionOverhead())
	headerSize := int64(c.HeaderSize())

	fullChunks := (plaintextSize / ChunkPayloadSize) * (ChunkPayloadSize + overhead)
	rest := plaintextSize % ChunkPayloadSize
	if rest > 0 {
		rest += overhead
	}

	return headerSize + fullChunks + rest
}

// DecryptedFileSize returns the plaintext size implied by a ciphertext of
// ciphertextSize bytes, the inverse of EncryptedFileSize.
func (c *Cryptor) DecryptedFileSize(ciphertextSize int64) int64 {
	overhead := int64(c.EncryptionOverhead())
	headerSize := int64(c.HeaderSize())

	body := ciphertextSize - headerSize
	if body <= 0 {
		return 0
	}

	fullChunkCipherSize := ChunkPayloadSize + overhead
	fullChunks := (body / fullChunkCipherSize) * ChunkPayloadSize
	rest := body % fullChunkCipherSize
	if rest > 0 {
		rest -= overhead
	}
	return fullChunks + rest
}

const (
	lastChunk    = true
	notLastChunk = false
)

// Reader decrypts a Cryptomator file's content chunk by chunk as it is read.
// It is stateless past the content key, so independent Readers over the
// same ciphertext source may run concurrently (§4.3).
type Reader struct {
	cryptor *Cryptor
	header  Header
	src     io.Reader

	unread []byte
	buf    []byte

	chunkNr uint64
	err     error
}

// NewContentReader wraps src (positioned right after the file header) with
// a Reader that decrypts chunks using header's content key.
func (c *Cryptor) NewContentReader(src io.Reader, header Header) (*Reader, error) {
	contentCryptor, err := newContentCryptorForKey(c, header.ContentKey)
	if err != nil {
		return nil, err
	}
	return &Reader{
		cryptor: contentCryptor,
		header:  header,
		src:     src,
		buf:     make([]byte, ChunkPayloadSize+contentCryptor.EncryptionOverhead()),
	}, nil
}

// NewReader reads the file header from src and returns a Reader positioned
// at the start of the content.
func (c *Cryptor) NewReader(src io.Reader) (*Reader, error) {
	header, err := c.UnmarshalHeader(src)
	if err != nil {
		return nil, err
	}
	return c.NewContentReader(src, header)
}

// Read implements io.Reader.
func (r *Reader) Read(p []byte) (int, error) {
	if len(r.unread) > 0 {
		n := copy(p, r.unread)
		r.unread = r.unread[n:]
		return n, nil
	}
	if r.err != nil {
		return 0, r.err
	}
	if len(p) == 0 {
		return 0, nil
	}

	last, err := r.readChunk()
	if err != nil {
		r.err = err
		return 0, err
	}

	n := copy(p, r.unread)
	r.unread = r.unread[n:]

	if last {
		if _, err := r.src.Read(make([]byte, 1)); err == nil {
			r.err = oxerr.New(oxerr.KindInvalidVaultStructure, "stream.read", "", errors.New("trailing data after end of encrypted file"))
		} else if err != io.EOF {
			r.err = oxerr.Wrap(oxerr.KindIO, "stream.read", err)
		} else {
			r.err = io.EOF
		}
	}

	return n, nil
}

func (r *Reader) readChunk() (last bool, err error) {
	if len(r.unread) != 0 {
		panic("crypto: internal error: readChunk called with dirty buffer")
	}

	n, err := io.ReadFull(r.src, r.buf)
	in := r.buf
	switch {
	case err == io.EOF:
		return true, nil
	case err == io.ErrUnexpectedEOF:
		last = true
		in = in[:n]
	case err != nil:
		return false, oxerr.Wrap(oxerr.KindIO, "stream.read_chunk", err)
	}

	ad := r.cryptor.FileAssociatedData(r.header.Nonce, r.chunkNr)
	payload, err := r.cryptor.DecryptChunk(in, ad)
	if err != nil {
		return false, err
	}

	r.chunkNr++
	r.unread = r.buf[:copy(r.buf, payload)]
	return last, nil
}

// Writer encrypts a Cryptomator file's content chunk by chunk as it is
// written.
type Writer struct {
	cryptor *Cryptor
	header  Header
	dst     io.Writer

	unwritten []byte
	buf       []byte
	chunkNr   uint64
	err       error
}

// NewContentWriter wraps dst (positioned right after an already-written
// file header) with a Writer that encrypts chunks using header's content
// key.
func (c *Cryptor) NewContentWriter(dst io.Writer, header Header) (*Writer, error) {
	contentCryptor, err := newContentCryptorForKey(c, header.ContentKey)
	if err != nil {
		return nil, err
	}
	w := &Writer{
		cryptor: contentCryptor,
		header:  header,
		dst:     dst,
		buf:     make([]byte, ChunkPayloadSize+contentCryptor.EncryptionOverhead()),
	}
	w.unwritten = w.buf[:0]
	return w, nil
}

// NewWriter writes a fresh random header to dst and returns a Writer for
// the content that follows.
func (c *Cryptor) NewWriter(dst io.Writer) (*Writer, error) {
	header, err := c.NewHeader()
	if err != nil {
		return nil, err
	}
	if err := c.MarshalHeader(dst, header); err != nil {
		return nil, err
	}
	return c.NewContentWriter(dst, header)
}

// Write implements io.Writer, buffering up to ChunkPayloadSize bytes before
// flushing a full chunk.
func (w *Writer) Write(p []byte) (int, error) {
	if w.err != nil {
		return 0, w.err
	}
	if len(p) == 0 {
		return 0, nil
	}

	total := len(p)
	for len(p) > 0 {
		free := w.buf[len(w.unwritten):ChunkPayloadSize]
		n := copy(free, p)
		p = p[n:]
		w.unwritten = w.unwritten[:len(w.unwritten)+n]

		if len(w.unwritten) == ChunkPayloadSize && len(p) > 0 {
			if err := w.flushChunk(notLastChunk); err != nil {
				w.err = err
				return 0, err
			}
		}
	}
	return total, nil
}

// Close flushes the final (possibly empty or partial) chunk. It does not
// close the underlying writer.
func (w *Writer) Close() error {
	if w.err != nil {
		return w.err
	}
	if err := w.flushChunk(lastChunk); err != nil {
		w.err = err
		return err
	}
	w.err = oxerr.New(oxerr.KindIO, "stream.close", "", errors.New("writer already closed"))
	return nil
}

func (w *Writer) flushChunk(last bool) error {
	if !last && len(w.unwritten) != ChunkPayloadSize {
		panic("crypto: internal error: flushChunk called with partial non-final chunk")
	}
	if len(w.unwritten) == 0 && !last {
		return nil
	}
	// An empty file must still produce zero chunks (header only); an empty
	// last chunk on a non-empty file is never produced because Write only
	// calls flushChunk(notLastChunk) on a full buffer.
	if len(w.unwritten) == 0 && w.chunkNr == 0 {
		return nil
	}

	nonce := make([]byte, w.cryptor.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return oxerr.Wrap(oxerr.KindIO, "stream.flush_chunk", err)
	}

	ad := w.cryptor.FileAssociatedData(w.header.Nonce, w.chunkNr)
	out := w.cryptor.EncryptChunk(w.unwritten, nonce, ad)

	if _, err := w.dst.Write(out); err != nil {
		return oxerr.Wrap(oxerr.KindIO, "stream.flush_chunk", err)
	}

	w.unwritten = w.buf[:0]
	w.chunkNr++
	return nil
}

// ContentCryptorForHeader derives the per-file content cryptor scoped to
// header's content key, the same derivation NewContentReader/Writer use
// internally. Callers that need random-access chunk decryption below the
// sequential Reader (the handle layer's range reads) use this directly.
func (c *Cryptor) ContentCryptorForHeader(header Header) (*Cryptor, error) {
	return newContentCryptorForKey(c, header.ContentKey)
}

// newContentCryptorForKey builds a Cryptor sharing c's cipher combo and
// filename SIV construction but scoped to a per-file content key for chunk
// encryption; the AES-SIV cipher is unused on this derived instance. The
// legacy CTRMAC combo still authenticates with the vault's own MAC master
// key (via c.masterKey), matching Cryptomator's per-vault (not per-file)
// HMAC key for that combo.
func newContentCryptorForKey(c *Cryptor, contentKey []byte) (*Cryptor, error) {
	derived := &Cryptor{cipherCombo: c.cipherCombo, siv: c.siv}
	var encKeySrc MasterKey
	encKeySrc.encryptKey = append([]byte(nil), contentKey...)

	content, err := newContentCryptor(encKeySrc, c.masterKey, c.cipherCombo)
	if err != nil {
		return nil, err
	}
	derived.content = content
	return derived, nil
}
