package ld

import (
	"os"

	"github.com/cockroachdb/errors"
	"golang.org/x/sys/unix"
)

// MappedFile is a read-only view of an input file or of a member inside an
// archive.  Top-level files are memory mapped; members share the mapping of
// their parent.
type MappedFile struct {
	// Name is the path of a top-level file or the member name of an archive
	// member.
	Name string

	// Data is the contents of this file.
	Data []byte

	// Parent is the archive this file is a member of, or nil.
	Parent *MappedFile

	// offset is the absolute offset of Data within the outermost file.
	offset int64

	// mapping is the whole mapping of a top-level file; nil for members and
	// for in-memory files.
	mapping []byte
}

// OpenMappedFile maps the file at `path` into memory.
func OpenMappedFile(path string) (*MappedFile, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "cannot open %s", path)
	}
	defer f.Close()

	finfo, err := f.Stat()
	if err != nil {
		return nil, errors.Wrapf(err, "cannot stat %s", path)
	}

	if finfo.IsDir() {
		return nil, errors.Newf("cannot open %s: is a directory", path)
	}

	mf := &MappedFile{Name: path}
	if finfo.Size() == 0 {
		return mf, nil
	}

	data, err := unix.Mmap(int(f.Fd()), 0, int(finfo.Size()), unix.PROT_READ, unix.MAP_PRIVATE)
	if err != nil {
		return nil, errors.Wrapf(err, "cannot mmap %s", path)
	}

	mf.Data = data
	mf.mapping = data
	return mf, nil
}

// NewMappedFile wraps an in-memory buffer as a top-level file.
func NewMappedFile(name string, data []byte) *MappedFile {
	return &MappedFile{Name: name, Data: data}
}

// Slice creates a child file covering `size` bytes of `mf` starting at
// `start`.  Used for archive members.
func (mf *MappedFile) Slice(name string, start, size int64) *MappedFile {
	return &MappedFile{
		Name:   name,
		Data:   mf.Data[start : start+size],
		Parent: mf,
		offset: mf.offset + start,
	}
}

// Offset returns the absolute offset of this file within its outermost
// file: zero for top-level files.
func (mf *MappedFile) Offset() int64 {
	return mf.offset
}

// Size returns the length of this file in bytes.
func (mf *MappedFile) Size() int64 {
	return int64(len(mf.Data))
}

// Path returns the filesystem path backing this file: the path of the
// outermost archive for members.
func (mf *MappedFile) Path() string {
	for mf.Parent != nil {
		mf = mf.Parent
	}

	return mf.Name
}

// DisplayName returns the name used in diagnostics, eg. `libfoo.a(bar.o)`.
func (mf *MappedFile) DisplayName() string {
	if mf.Parent != nil {
		return mf.Parent.DisplayName() + "(" + mf.Name + ")"
	}

	return mf.Name
}

// Close unmaps a top-level file.  It is a no-op for members and in-memory
// files.
func (mf *MappedFile) Close() error {
	if mf.mapping == nil {
		return nil
	}

	err := unix.Munmap(mf.mapping)
	mf.mapping = nil
	mf.Data = nil
	return errors.Wrapf(err, "cannot unmap %s", mf.Name)
}
