package vault

import (
	"path/filepath"
	"strings"

	"github.com/oxcryptfs/oxcryptfs/crypto"
)

// DefaultShorteningThreshold is the entry-name length (in characters,
// counting the .c9r suffix) past which an entry is stored using the .c9s
// shortened scheme instead of a plain "<name>.c9r".
const DefaultShorteningThreshold = 220

const (
	regularSuffix   = ".c9r"
	shortenedSuffix = ".c9s"
	dirIDFileName   = "dir.c9r"
	nameFileName    = "name.c9s"
	contentsFile    = "contents.c9r"
)

// DirectoryStoragePath returns the on-disk path, relative to the vault
// root, of the directory identified by dirID: "d/<hash[0:2]>/<hash[2:]>".
// The hash is base32(sha1(AES-SIV-seal(dirID))) via cryptor.EncryptDirID.
func DirectoryStoragePath(cryptor *crypto.Cryptor, dirID DirID) (string, error) {
	hash, err := cryptor.EncryptDirID(string(dirID))
	if err != nil {
		return "", err
	}
	hash = strings.TrimRight(hash, "=")
	if len(hash) < 2 {
		return "", errShortDirHash(hash)
	}
	return filepath.Join("d", hash[:2], hash[2:]), nil
}

// IsShortenedEntry reports whether filename is a .c9s shortened entry.
func IsShortenedEntry(filename string) bool {
	return strings.HasSuffix(filename, shortenedSuffix)
}

// IsRegularEntry reports whether filename is a plain .c9r entry.
func IsRegularEntry(filename string) bool {
	return strings.HasSuffix(filename, regularSuffix)
}

// NeedsShortening reports whether encryptedName (given without its .c9r
// suffix) plus that suffix would exceed threshold characters and must use
// the .c9s scheme instead.
func NeedsShortening(encryptedName string, threshold int) bool {
	return len(encryptedName)+len(regularSuffix) > threshold
}

// EntryName computes the on-disk entry name for encryptedName under
// threshold: either "<encryptedName>.c9r" or the shortened
// "<sha1-based-hash>.c9s" directory name.
func EntryName(encryptedName string, threshold int) string {
	if NeedsShortening(encryptedName, threshold) {
		return crypto.ShortenedName(encryptedName) + shortenedSuffix
	}
	return encryptedName + regularSuffix
}

func errShortDirHash(hash string) error {
	return &shortHashError{hash: hash}
}

type shortHashError struct{ hash string }

func (e *shortHashError) Error() string {
	return "directory id hash too short: " + e.hash
}
