package ring

import (
	"os"
	"strings"

	"golang.org/x/sys/unix"

	"github.com/griffinplus/logsink/internal/logging"
)

// shmDir is where POSIX shared-memory objects live on Linux; the service
// creator is expected to have shm_open'd the region here.
const shmDir = "/dev/shm"

// shmPath turns a region name (as built by constants.RegionNames, which
// may carry a "Global\" prefix borrowed from the Windows kernel-object
// namespace this protocol originated in) into a /dev/shm path.
func shmPath(name string) string {
	name = strings.ReplaceAll(name, `Global\`, "")
	name = strings.ReplaceAll(name, `\`, "_")
	name = strings.ReplaceAll(name, "/", "_")
	name = strings.ReplaceAll(name, " ", "_")
	return shmDir + "/" + name
}

// openExistingRegion opens (never creates) the shared-memory object
// backing the given region name and mmaps its full extent read/write.
// The region's size is whatever the service creator sized the backing
// file to, so it is read via fstat rather than assumed. Per spec.md
// §4.1/§9, this core is always an opener, never a creator.
func openExistingRegion(name string) ([]byte, error) {
	path := shmPath(name)
	f, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, newNotFoundError(name, err)
		}
		return nil, err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, err
	}
	size := int(info.Size())
	if size < headerStride {
		return nil, newInvalidFormatError(name)
	}

	logging.Default().Debugf("ring: mapping shared memory region %s (%d bytes)", path, size)
	data, err := unix.Mmap(int(f.Fd()), 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		return nil, err
	}
	return data, nil
}

func unmapRegion(data []byte) error {
	if data == nil {
		return nil
	}
	return unix.Munmap(data)
}
