package vault

import (
	"bytes"
	"io"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/oxcryptfs/oxcryptfs/crypto"
	"github.com/oxcryptfs/oxcryptfs/oxerr"
)

// EntryKind distinguishes the three kinds of vault entry.
type EntryKind int

const (
	EntryFile EntryKind = iota
	EntryDirectory
	EntrySymlink
)

// CreateOptions customizes Create. The zero value uses the defaults a fresh
// vault gets from the admin CLI's "create" subcommand.
type CreateOptions struct {
	ShorteningThreshold int
	ScryptCostParam     int
}

func (o CreateOptions) withDefaults() CreateOptions {
	if o.ShorteningThreshold == 0 {
		o.ShorteningThreshold = DefaultShorteningThreshold
	}
	if o.ScryptCostParam == 0 {
		o.ScryptCostParam = crypto.DefaultScryptCostParam
	}
	return o
}

// Vault is an open, unlocked Cryptomator vault rooted at a directory on the
// host filesystem. All operations are relative to that root.
type Vault struct {
	root    string
	config  Config
	master  crypto.MasterKey
	cryptor *crypto.Cryptor
}

// Create initializes a brand new vault at root (which must exist and be
// empty) protected by passphrase, and returns it already open.
func Create(root, passphrase string, opts CreateOptions) (*Vault, error) {
	opts = opts.withDefaults()

	master, err := crypto.NewMasterKey()
	if err != nil {
		return nil, err
	}

	var keyBuf bytes.Buffer
	if err := master.Marshal(&keyBuf, passphrase, opts.ScryptCostParam); err != nil {
		return nil, err
	}
	if err := writeFileAtomic(filepath.Join(root, masterKeyFileName), keyBuf.Bytes()); err != nil {
		return nil, err
	}

	config := NewConfig()
	config.ShorteningThreshold = opts.ShorteningThreshold

	configBytes, err := Marshal(config, master)
	if err != nil {
		return nil, err
	}
	if err := writeFileAtomic(filepath.Join(root, configFileName), configBytes); err != nil {
		return nil, err
	}

	cryptor, err := crypto.NewCryptor(master, config.CipherCombo)
	if err != nil {
		return nil, err
	}

	v := &Vault{root: root, config: config, master: master, cryptor: cryptor}
	rootStoragePath, err := v.directoryStoragePath(RootDirID)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Join(root, rootStoragePath), 0o700); err != nil {
		return nil, oxerr.Wrap(oxerr.KindIO, "vault.create", err)
	}

	return v, nil
}

// Open unlocks the vault at root with passphrase: reads vault.cryptomator's
// unverified "kid" header to locate the masterkey file, unwraps the master
// key, then verifies the JWT signature with the unwrapped key material.
func Open(root, passphrase string) (*Vault, error) {
	configData, err := os.ReadFile(filepath.Join(root, configFileName))
	if err != nil {
		return nil, oxerr.Wrap(oxerr.KindIO, "vault.open", err)
	}

	var master crypto.MasterKey
	config, err := Unmarshal(configData, func(masterKeyURI string) (crypto.MasterKey, error) {
		masterKeyData, err := os.ReadFile(filepath.Join(root, masterKeyURI))
		if err != nil {
			return crypto.MasterKey{}, oxerr.Wrap(oxerr.KindIO, "vault.open", err)
		}
		master, err = crypto.UnmarshalMasterKey(bytes.NewReader(masterKeyData), passphrase)
		return master, err
	})
	if err != nil {
		return nil, err
	}

	cryptor, err := crypto.NewCryptor(master, config.CipherCombo)
	if err != nil {
		return nil, err
	}

	return &Vault{root: root, config: config, master: master, cryptor: cryptor}, nil
}

// Close destroys the vault's in-memory master key. The Vault must not be
// used afterward.
func (v *Vault) Close() {
	v.master.Destroy()
}

// ChangePassphrase rewraps the already-open vault's master key under a new
// passphrase, rewriting masterkey.cryptomator with the newly wrapped keys
// while the master key itself and every encrypted entry stay unchanged.
// costParam of 0 keeps crypto.DefaultScryptCostParam.
func (v *Vault) ChangePassphrase(newPassphrase string, costParam int) error {
	if costParam == 0 {
		costParam = crypto.DefaultScryptCostParam
	}
	var keyBuf bytes.Buffer
	if err := v.master.Marshal(&keyBuf, newPassphrase, costParam); err != nil {
		return err
	}
	return writeFileAtomic(filepath.Join(v.root, masterKeyFileName), keyBuf.Bytes())
}

func (v *Vault) directoryStoragePath(id DirID) (string, error) {
	return DirectoryStoragePath(v.cryptor, id)
}

// Config returns the vault's parsed vault.cryptomator document.
func (v *Vault) Config() Config {
	return v.config
}

// Cryptor returns the vault's content/filename cryptor, for callers (the
// handle and scheduler layers) that need chunk-level access below the
// whole-file ReadFile/WriteFile API.
func (v *Vault) Cryptor() *crypto.Cryptor {
	return v.cryptor
}

// AbsPath joins a storage-relative path (as returned by the resolve*
// helpers below) with the vault root.
func (v *Vault) AbsPath(storagePath string) string {
	return filepath.Join(v.root, storagePath)
}

// PathForRead resolves p to the absolute ciphertext path of an existing
// file, for handle-level streaming reads that must not load the whole
// file into memory via ReadFile.
func (v *Vault) PathForRead(p Path) (string, error) {
	_, kind, storagePath, err := v.resolvePath(p)
	if err != nil {
		return "", err
	}
	if kind != EntryFile {
		return "", oxerr.New(oxerr.KindNotAFile, "vault.path_for_read", p.Display(), nil)
	}
	return v.AbsPath(storagePath), nil
}

// PathForWrite resolves p's parent directory and returns the absolute
// ciphertext path a new or replacing write to p should land at. It does
// not touch the filesystem; it mirrors WriteFile's own resolution so
// handle-level write buffers can compute the same destination before
// flushing.
func (v *Vault) PathForWrite(p Path) (string, error) {
	parent, name, ok := p.Split()
	if !ok {
		return "", oxerr.New(oxerr.KindNotAFile, "vault.path_for_write", p.Display(), nil)
	}
	dirID, kind, _, err := v.resolvePath(parent)
	if err != nil {
		return "", err
	}
	if kind != EntryDirectory {
		return "", oxerr.New(oxerr.KindNotADirectory, "vault.path_for_write", parent.Display(), nil)
	}

	dirStoragePath, err := v.directoryStoragePath(dirID)
	if err != nil {
		return "", err
	}
	encName, err := v.cryptor.EncryptFilename(name, string(dirID))
	if err != nil {
		return "", err
	}
	entryName := EntryName(encName, v.config.ShorteningThreshold)
	return filepath.Join(v.root, dirStoragePath, entryName), nil
}

// resolvedEntry is what resolvePath returns for one path component.
type resolvedEntry struct {
	dirID DirID // the DirId this entry's name is bound to (its parent's)
	kind  EntryKind
	// entryStoragePath is the filesystem path of the entry itself (the
	// "<enc>.c9r" file/dir, or the "<hash>.c9s" dir for a shortened entry).
	entryStoragePath string
}

// resolvePath walks p's components from the vault root, returning the
// DirID of p itself if it is a directory (or of its parent plus its kind
// and storage path otherwise).
func (v *Vault) resolvePath(p Path) (DirID, EntryKind, string, error) {
	currentDirID := RootDirID
	components := p.Components()

	if len(components) == 0 {
		storagePath, err := v.directoryStoragePath(RootDirID)
		if err != nil {
			return "", 0, "", err
		}
		return RootDirID, EntryDirectory, storagePath, nil
	}

	var entry resolvedEntry
	for i, name := range components {
		e, err := v.lookupEntry(currentDirID, name)
		if err != nil {
			return "", 0, "", err
		}
		entry = e

		if i == len(components)-1 {
			if entry.kind == EntryDirectory {
				dirID, err := v.readDirID(entry.entryStoragePath)
				if err != nil {
					return "", 0, "", err
				}
				return dirID, EntryDirectory, entry.entryStoragePath, nil
			}
			return entry.dirID, entry.kind, entry.entryStoragePath, nil
		}

		if entry.kind != EntryDirectory {
			return "", 0, "", oxerr.New(oxerr.KindNotADirectory, "vault.resolve_path", p.Display(), nil)
		}
		currentDirID, err = v.readDirID(entry.entryStoragePath)
		if err != nil {
			return "", 0, "", err
		}
	}
	return "", 0, "", oxerr.New(oxerr.KindPathNotFound, "vault.resolve_path", p.Display(), nil)
}

// lookupEntry finds the on-disk entry named name inside directory dirID,
// probing both the regular .c9r and shortened .c9s forms.
func (v *Vault) lookupEntry(dirID DirID, name string) (resolvedEntry, error) {
	dirStoragePath, err := v.directoryStoragePath(dirID)
	if err != nil {
		return resolvedEntry{}, err
	}

	encName, err := v.cryptor.EncryptFilename(name, string(dirID))
	if err != nil {
		return resolvedEntry{}, err
	}

	entryName := EntryName(encName, v.config.ShorteningThreshold)
	entryPath := filepath.Join(v.root, dirStoragePath, entryName)

	info, err := os.Lstat(entryPath)
	if err != nil {
		altName := encName + regularSuffix
		if altName == entryName {
			altName = crypto.ShortenedName(encName) + shortenedSuffix
		}
		altPath := filepath.Join(v.root, dirStoragePath, altName)
		altInfo, altErr := os.Lstat(altPath)
		if altErr != nil {
			return resolvedEntry{}, oxerr.New(oxerr.KindPathNotFound, "vault.lookup", name, err)
		}
		entryName, entryPath, info = altName, altPath, altInfo
	}

	relEntryPath := filepath.Join(dirStoragePath, entryName)
	kind, err := v.classifyEntry(entryPath, info)
	if err != nil {
		return resolvedEntry{}, err
	}
	return resolvedEntry{dirID: dirID, kind: kind, entryStoragePath: relEntryPath}, nil
}

// classifyEntry determines whether the on-disk entry at entryPath is a
// file, directory, or symlink, accounting for the .c9s shortened-directory
// wrapper (whose contents live at symlink.c9s or contents.c9r underneath).
// A directory entry holding none of dir.c9r, symlink.c9s or contents.c9r is
// reported as KindInvalidVaultStructure.
func (v *Vault) classifyEntry(entryPath string, info os.FileInfo) (EntryKind, error) {
	if !info.IsDir() {
		return EntryFile, nil
	}
	if _, err := os.Stat(filepath.Join(entryPath, dirIDFileName)); err == nil {
		return EntryDirectory, nil
	}
	if _, err := os.Stat(filepath.Join(entryPath, "symlink.c9s")); err == nil {
		return EntrySymlink, nil
	}
	if _, err := os.Stat(filepath.Join(entryPath, contentsFile)); err == nil {
		return EntryFile, nil
	}
	return 0, oxerr.New(oxerr.KindInvalidVaultStructure, "vault.classify_entry", entryPath, nil)
}

func (v *Vault) readDirID(entryStoragePath string) (DirID, error) {
	raw, err := os.ReadFile(filepath.Join(v.root, entryStoragePath, dirIDFileName))
	if err != nil {
		return "", oxerr.Wrap(oxerr.KindInvalidVaultStructure, "vault.read_dir_id", err)
	}
	return DirID(raw), nil
}

// ResolvePath locates p and reports its kind, or KindPathNotFound /
// KindNotADirectory if it cannot be resolved.
func (v *Vault) ResolvePath(p Path) (EntryKind, error) {
	_, kind, _, err := v.resolvePath(p)
	return kind, err
}

// ReadFile decrypts and returns the full contents of the file at p.
func (v *Vault) ReadFile(p Path) ([]byte, error) {
	_, kind, storagePath, err := v.resolvePath(p)
	if err != nil {
		return nil, err
	}
	if kind != EntryFile {
		return nil, oxerr.New(oxerr.KindNotAFile, "vault.read_file", p.Display(), nil)
	}

	f, err := os.Open(filepath.Join(v.root, storagePath))
	if err != nil {
		return nil, oxerr.Wrap(oxerr.KindIO, "vault.read_file", err)
	}
	defer f.Close()

	r, err := v.cryptor.NewReader(f)
	if err != nil {
		return nil, err
	}
	data, err := io.ReadAll(r)
	if err != nil && err != io.EOF {
		return nil, oxerr.Wrap(oxerr.KindIO, "vault.read_file", err)
	}
	return data, nil
}

// WriteFile encrypts data into the file at p, replacing any existing
// content. Parent directories must already exist.
func (v *Vault) WriteFile(p Path, data []byte) error {
	finalPath, err := v.PathForWrite(p)
	if err != nil {
		return err
	}

	var buf bytes.Buffer
	w, err := v.cryptor.NewWriter(&buf)
	if err != nil {
		return err
	}
	if _, err := w.Write(data); err != nil {
		return oxerr.Wrap(oxerr.KindIO, "vault.write_file", err)
	}
	if err := w.Close(); err != nil {
		return err
	}

	return writeFileAtomic(finalPath, buf.Bytes())
}

// CreateDirectory allocates a fresh DirId and creates the directory at p.
// The parent of p must already exist.
func (v *Vault) CreateDirectory(p Path) error {
	parent, name, ok := p.Split()
	if !ok {
		return oxerr.New(oxerr.KindDirectoryAlreadyExists, "vault.create_directory", p.Display(), nil)
	}
	parentDirID, kind, _, err := v.resolvePath(parent)
	if err != nil {
		return err
	}
	if kind != EntryDirectory {
		return oxerr.New(oxerr.KindNotADirectory, "vault.create_directory", parent.Display(), nil)
	}

	parentStoragePath, err := v.directoryStoragePath(parentDirID)
	if err != nil {
		return err
	}
	encName, err := v.cryptor.EncryptFilename(name, string(parentDirID))
	if err != nil {
		return err
	}
	entryPath := filepath.Join(v.root, parentStoragePath, EntryName(encName, v.config.ShorteningThreshold))

	// The new directory's DirId is recorded in exactly one place: dir.c9r
	// inside the entry folder within its parent (§3 invariant). The
	// directory's own storage-path subtree (where its children will live)
	// holds no dir.c9r of its own.
	newDirID := DirID(uuid.NewString())
	newStoragePath, err := v.directoryStoragePath(newDirID)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Join(v.root, newStoragePath), 0o700); err != nil {
		return oxerr.Wrap(oxerr.KindIO, "vault.create_directory", err)
	}

	if err := os.MkdirAll(entryPath, 0o700); err != nil {
		return oxerr.Wrap(oxerr.KindIO, "vault.create_directory", err)
	}
	return writeFileAtomic(filepath.Join(entryPath, dirIDFileName), []byte(newDirID))
}

// DeleteFile removes the file at p.
func (v *Vault) DeleteFile(p Path) error {
	_, kind, storagePath, err := v.resolvePath(p)
	if err != nil {
		return err
	}
	if kind != EntryFile {
		return oxerr.New(oxerr.KindNotAFile, "vault.delete_file", p.Display(), nil)
	}
	if err := os.Remove(filepath.Join(v.root, storagePath)); err != nil {
		return oxerr.Wrap(oxerr.KindIO, "vault.delete_file", err)
	}
	return nil
}

// DeleteDirectoryIfEmpty removes the directory at p, its storage-path
// subtree included, failing with KindDirectoryNotEmpty if it has entries.
func (v *Vault) DeleteDirectoryIfEmpty(p Path) error {
	dirID, kind, entryStoragePath, err := v.resolvePath(p)
	if err != nil {
		return err
	}
	if kind != EntryDirectory {
		return oxerr.New(oxerr.KindNotADirectory, "vault.delete_directory", p.Display(), nil)
	}

	dirStoragePath, err := v.directoryStoragePath(dirID)
	if err != nil {
		return err
	}
	entries, err := os.ReadDir(filepath.Join(v.root, dirStoragePath))
	if err != nil {
		return oxerr.Wrap(oxerr.KindIO, "vault.delete_directory", err)
	}
	if len(entries) > 0 {
		return oxerr.New(oxerr.KindDirectoryNotEmpty, "vault.delete_directory", p.Display(), nil)
	}

	if err := os.RemoveAll(filepath.Join(v.root, dirStoragePath)); err != nil {
		return oxerr.Wrap(oxerr.KindIO, "vault.delete_directory", err)
	}
	if err := os.RemoveAll(filepath.Join(v.root, entryStoragePath)); err != nil {
		return oxerr.Wrap(oxerr.KindIO, "vault.delete_directory", err)
	}
	return nil
}

// ListEntries returns the names and kinds of p's direct children. Malformed
// entries (undecryptable names, missing dir.c9r) are skipped rather than
// failing the whole listing.
func (v *Vault) ListEntries(p Path) (map[string]EntryKind, error) {
	dirID, kind, _, err := v.resolvePath(p)
	if err != nil {
		return nil, err
	}
	if kind != EntryDirectory {
		return nil, oxerr.New(oxerr.KindNotADirectory, "vault.list_entries", p.Display(), nil)
	}

	storagePath, err := v.directoryStoragePath(dirID)
	if err != nil {
		return nil, err
	}
	rawEntries, err := os.ReadDir(filepath.Join(v.root, storagePath))
	if err != nil {
		return nil, oxerr.Wrap(oxerr.KindIO, "vault.list_entries", err)
	}

	out := make(map[string]EntryKind, len(rawEntries))
	for _, raw := range rawEntries {
		filename := raw.Name()
		var encName string
		switch {
		case IsRegularEntry(filename):
			encName = filename[:len(filename)-len(regularSuffix)]
		case IsShortenedEntry(filename):
			nameFile := filepath.Join(v.root, storagePath, filename, nameFileName)
			nameBytes, err := os.ReadFile(nameFile)
			if err != nil {
				continue // malformed .c9s entry, skip
			}
			encName = string(nameBytes)
		default:
			continue
		}

		name, err := v.cryptor.DecryptFilename(encName, string(dirID))
		if err != nil {
			continue // undecryptable name, skip
		}

		entryPath := filepath.Join(v.root, storagePath, filename)
		info, err := os.Lstat(entryPath)
		if err != nil {
			continue
		}
		entryKind, err := v.classifyEntry(entryPath, info)
		if err != nil {
			continue
		}
		out[name] = entryKind
	}
	return out, nil
}

// Rename moves the entry at src to dst, which may be in a different
// directory. For directories, the DirId is preserved: only the encrypted
// entry moves, not the dir.c9r it contains, so existing storage-path
// mappings stay valid.
func (v *Vault) Rename(src, dst Path) error {
	srcParent, srcName, ok := src.Split()
	if !ok {
		return oxerr.New(oxerr.KindNotAFile, "vault.rename", src.Display(), nil)
	}
	srcParentDirID, kind, _, err := v.resolvePath(srcParent)
	if err != nil {
		return err
	}
	if kind != EntryDirectory {
		return oxerr.New(oxerr.KindNotADirectory, "vault.rename", srcParent.Display(), nil)
	}

	dstParent, dstName, ok := dst.Split()
	if !ok {
		return oxerr.New(oxerr.KindNotAFile, "vault.rename", dst.Display(), nil)
	}
	dstParentDirID, kind, _, err := v.resolvePath(dstParent)
	if err != nil {
		return err
	}
	if kind != EntryDirectory {
		return oxerr.New(oxerr.KindNotADirectory, "vault.rename", dstParent.Display(), nil)
	}

	srcEncName, err := v.cryptor.EncryptFilename(srcName, string(srcParentDirID))
	if err != nil {
		return err
	}
	dstEncName, err := v.cryptor.EncryptFilename(dstName, string(dstParentDirID))
	if err != nil {
		return err
	}

	srcDirStoragePath, err := v.directoryStoragePath(srcParentDirID)
	if err != nil {
		return err
	}
	dstDirStoragePath, err := v.directoryStoragePath(dstParentDirID)
	if err != nil {
		return err
	}

	srcEntryPath := filepath.Join(v.root, srcDirStoragePath, EntryName(srcEncName, v.config.ShorteningThreshold))
	dstEntryPath := filepath.Join(v.root, dstDirStoragePath, EntryName(dstEncName, v.config.ShorteningThreshold))

	if dstInfo, err := os.Lstat(dstEntryPath); err == nil {
		if dstKind, _ := v.classifyEntry(dstEntryPath, dstInfo); dstKind == EntryDirectory {
			dstDirID, err := v.readDirID(filepath.Join(dstDirStoragePath, filepath.Base(dstEntryPath)))
			if err != nil {
				return err
			}
			if dstStorage, serr := v.directoryStoragePath(dstDirID); serr == nil {
				if entries, rerr := os.ReadDir(v.AbsPath(dstStorage)); rerr == nil && len(entries) > 0 {
					return oxerr.New(oxerr.KindDirectoryNotEmpty, "vault.rename", dst.Display(), nil)
				}
			}
		}
		return oxerr.New(oxerr.KindFileAlreadyExists, "vault.rename", dst.Display(), nil)
	}

	if err := os.Rename(srcEntryPath, dstEntryPath); err != nil {
		return oxerr.Wrap(oxerr.KindIO, "vault.rename", err)
	}
	return nil
}

// writeFileAtomic encrypts-at-rest semantics aside, writes data to path via
// a sibling temp file, fsync, and atomic rename, so a crash mid-write never
// leaves a half-written file visible at path.
func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return oxerr.Wrap(oxerr.KindIO, "vault.write_atomic", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return oxerr.Wrap(oxerr.KindIO, "vault.write_atomic", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return oxerr.Wrap(oxerr.KindIO, "vault.write_atomic", err)
	}
	if err := tmp.Close(); err != nil {
		return oxerr.Wrap(oxerr.KindIO, "vault.write_atomic", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return oxerr.Wrap(oxerr.KindIO, "vault.write_atomic", err)
	}
	return nil
}
