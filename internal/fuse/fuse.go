//go:build linux
// +build linux

package fuse

import (
	"context"
	"io"
	"os"
	"sort"
	"sync"
	"time"

	"bazil.org/fuse"
	"bazil.org/fuse/fs"
)

// RegionFS is a flat, read-only file system whose files are regions of a
// single underlying file.
type RegionFS struct {
	r io.ReaderAt

	mtx     sync.RWMutex
	entries map[string]Region

	mountTime time.Time
}

func NewRegionFS(r io.ReaderAt, regions []Region) *RegionFS {
	entries := make(map[string]Region, len(regions))
	for _, e := range regions {
		entries[e.Name] = e
	}
	return &RegionFS{
		r:         r,
		entries:   entries,
		mountTime: time.Now(),
	}
}

func (fs *RegionFS) Root() (fs.Node, error) {
	return &Dir{
		fs: fs,
	}, nil
}

type Dir struct {
	fs *RegionFS
}

func (*Dir) Attr(ctx context.Context, a *fuse.Attr) error {
	a.Mode = os.ModeDir | 0555
	return nil
}

func (d *Dir) Lookup(ctx context.Context, name string) (fs.Node, error) {
	d.fs.mtx.RLock()
	e, ok := d.fs.entries[name]
	d.fs.mtx.RUnlock()

	if !ok {
		return nil, fuse.ENOENT
	}
	return File{
		r:     io.NewSectionReader(d.fs.r, int64(e.Offset), int64(e.Size)),
		size:  e.Size,
		mtime: d.fs.mountTime,
	}, nil
}

func (d *Dir) ReadDirAll(ctx context.Context) ([]fuse.Dirent, error) {
	d.fs.mtx.RLock()
	defer d.fs.mtx.RUnlock()

	dirEntries := make([]fuse.Dirent, 0, len(d.fs.entries))
	for _, e := range d.fs.entries {
		dirEntries = append(dirEntries, fuse.Dirent{
			Name: e.Name,
			Type: fuse.DT_File,
		})
	}
	sort.Slice(dirEntries, func(i, j int) bool {
		return dirEntries[i].Name < dirEntries[j].Name
	})
	for i := range dirEntries {
		dirEntries[i].Inode = uint64(i + 2)
	}
	return dirEntries, nil
}

type File struct {
	r     io.ReaderAt
	size  uint64
	mtime time.Time
}

func (f File) Attr(ctx context.Context, a *fuse.Attr) error {
	a.Mode = 0444
	a.Size = f.size
	a.Mtime = f.mtime
	return nil
}

func (f File) Read(ctx context.Context, req *fuse.ReadRequest, resp *fuse.ReadResponse) error {
	size := int(req.Size)
	offset := req.Offset

	if offset >= int64(f.size) {
		resp.Data = []byte{}
		return nil
	}

	// Clamp size if reading near EOF
	if offset+int64(size) > int64(f.size) {
		size = int(int64(f.size) - offset)
	}

	buf := make([]byte, size)

	n, err := f.r.ReadAt(buf, offset)
	if err != nil && err != io.EOF {
		return err
	}

	resp.Data = buf[:n]
	return nil
}
