package oxerr

import (
	"errors"
	"syscall"
)

// Errno maps a Kind to the POSIX errno a FUSE/FSKit bridge should return.
// Crypto and corruption errors are deliberately flattened to EIO: the core
// never tells a kernel caller which byte of a chunk or header failed to
// authenticate.
func (k Kind) Errno() syscall.Errno {
	switch k {
	case KindPathNotFound:
		return syscall.ENOENT
	case KindNotADirectory:
		return syscall.ENOTDIR
	case KindNotAFile:
		return syscall.EISDIR
	case KindEmptyPath:
		return syscall.ENOENT
	case KindFileAlreadyExists, KindDirectoryAlreadyExists:
		return syscall.EEXIST
	case KindDirectoryNotEmpty:
		return syscall.ENOTEMPTY
	case KindAuthenticationFailure, KindInvalidVaultStructure, KindFilenameCodec, KindKeyAccess, KindKeyWrapIntegrity, KindSymlinkError:
		return syscall.EIO
	case KindResourceBusy:
		return syscall.EBUSY
	case KindInterrupted:
		return syscall.EINTR
	case KindNotSupported:
		return syscall.ENOTSUP
	default:
		return syscall.EIO
	}
}

// ErrnoOf maps err straight to an errno, unwrapping *Error and falling back
// to the wrapped syscall.Errno (for KindIO) or EIO.
func ErrnoOf(err error) syscall.Errno {
	var e *Error
	if !errors.As(err, &e) {
		return syscall.EIO
	}
	if e.Kind == KindIO {
		var errno syscall.Errno
		if errors.As(e.Err, &errno) {
			return errno
		}
		return syscall.EIO
	}
	return e.Kind.Errno()
}
