package datanode

import (
	"archive/tar"
	"bytes"
	"errors"
	"io"
	"io/fs"
	"path"
	"sort"
	"strings"
	"sync"
	"time"
)

// DataNode is an in-memory filesystem compatible with io/fs. Slicer uses it
// for engine bundles, published blob resources and as the working memory of
// the mock engine. It is safe for concurrent use.
type DataNode struct {
	mu    sync.RWMutex
	files map[string]*dataFile
}

// New creates and returns a new, empty DataNode.
//
// Example:
//
//	dn := datanode.New()
func New() *DataNode {
	return &DataNode{files: make(map[string]*dataFile)}
}

// FromTar creates a new DataNode by reading a tar archive. Only regular
// files are kept; directories are implicit.
//
// Example:
//
//	dn, err := datanode.FromTar(tarData)
//	if err != nil {
//		// handle error
//	}
func FromTar(tarball []byte) (*DataNode, error) {
	dn := New()
	tarReader := tar.NewReader(bytes.NewReader(tarball))

	for {
		header, err := tarReader.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}

		if header.Typeflag == tar.TypeReg {
			data, err := io.ReadAll(tarReader)
			if err != nil {
				return nil, err
			}
			dn.AddData(header.Name, data)
		}
	}

	return dn, nil
}

// ToTar serializes the DataNode into a tar archive. Entries are written in
// lexical order so the same tree always produces the same archive.
func (d *DataNode) ToTar() ([]byte, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	names := make([]string, 0, len(d.files))
	for name := range d.files {
		names = append(names, name)
	}
	sort.Strings(names)

	buf := new(bytes.Buffer)
	tw := tar.NewWriter(buf)
	for _, name := range names {
		file := d.files[name]
		hdr := &tar.Header{
			Name:    file.name,
			Mode:    0600,
			Size:    int64(len(file.content)),
			ModTime: file.modTime,
		}
		if err := tw.WriteHeader(hdr); err != nil {
			return nil, err
		}
		if _, err := tw.Write(file.content); err != nil {
			return nil, err
		}
	}

	if err := tw.Close(); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}

// AddData adds a file with the given name and content, replacing any file
// already stored under that name. Parent directories are implicit.
//
// Example:
//
//	dn.AddData("engine/worker.js", script)
func (d *DataNode) AddData(name string, content []byte) {
	name = clean(name)
	if name == "" || strings.HasSuffix(name, "/") {
		return
	}
	d.mu.Lock()
	d.files[name] = &dataFile{
		name:    name,
		content: content,
		modTime: time.Now(),
	}
	d.mu.Unlock()
}

// Remove deletes the named file. Removing a name that does not exist
// returns an error wrapping fs.ErrNotExist.
func (d *DataNode) Remove(name string) error {
	name = clean(name)
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.files[name]; !ok {
		return &fs.PathError{Op: "remove", Path: name, Err: fs.ErrNotExist}
	}
	delete(d.files, name)
	return nil
}

// ReadFile returns the content of the named file. The returned slice is
// shared with the DataNode and must not be modified.
func (d *DataNode) ReadFile(name string) ([]byte, error) {
	name = clean(name)
	d.mu.RLock()
	defer d.mu.RUnlock()
	file, ok := d.files[name]
	if !ok {
		return nil, &fs.PathError{Op: "read", Path: name, Err: fs.ErrNotExist}
	}
	return file.content, nil
}

// Len reports the number of files stored.
func (d *DataNode) Len() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.files)
}

// Open opens a file from the DataNode for reading. It is part of the fs.FS
// implementation, which lets a DataNode back http.FS directly.
func (d *DataNode) Open(name string) (fs.File, error) {
	name = clean(name)
	d.mu.RLock()
	defer d.mu.RUnlock()
	if file, ok := d.files[name]; ok {
		return &dataFileReader{file: file}, nil
	}
	if d.hasDirLocked(name) {
		return &dirFile{path: name, modTime: time.Now()}, nil
	}
	return nil, &fs.PathError{Op: "open", Path: name, Err: fs.ErrNotExist}
}

// ReadDir reads the named directory and returns its entries sorted by name.
// This method is part of the fs.ReadDirFS implementation.
func (d *DataNode) ReadDir(name string) ([]fs.DirEntry, error) {
	name = clean(name)
	d.mu.RLock()
	defer d.mu.RUnlock()

	if _, ok := d.files[name]; ok {
		return nil, &fs.PathError{Op: "readdir", Path: name, Err: fs.ErrInvalid}
	}

	prefix := ""
	if name != "" {
		prefix = name + "/"
	}

	entries := []fs.DirEntry{}
	seen := make(map[string]bool)
	for p, file := range d.files {
		if !strings.HasPrefix(p, prefix) {
			continue
		}
		rel := strings.TrimPrefix(p, prefix)
		first, _, nested := strings.Cut(rel, "/")
		if seen[first] {
			continue
		}
		seen[first] = true
		if nested {
			entries = append(entries, fs.FileInfoToDirEntry(&dirInfo{name: first, modTime: time.Now()}))
			continue
		}
		entries = append(entries, fs.FileInfoToDirEntry(&dataFileInfo{file: file}))
	}

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Name() < entries[j].Name()
	})
	return entries, nil
}

// Stat returns the fs.FileInfo describing the named file or directory.
// This method is part of the fs.StatFS implementation.
func (d *DataNode) Stat(name string) (fs.FileInfo, error) {
	name = clean(name)
	d.mu.RLock()
	defer d.mu.RUnlock()
	if file, ok := d.files[name]; ok {
		return &dataFileInfo{file: file}, nil
	}
	if d.hasDirLocked(name) {
		return &dirInfo{name: path.Base(name), modTime: time.Now()}, nil
	}
	return nil, &fs.PathError{Op: "stat", Path: name, Err: fs.ErrNotExist}
}

// ExistsOptions customizes Exists.
type ExistsOptions struct {
	// WantType is fs.ModeDir to require a directory, anything else to
	// require a regular file.
	WantType fs.FileMode
}

// Exists checks if a file or directory exists at the given path.
//
// Example:
//
//	ok, err := dn.Exists("engine", datanode.ExistsOptions{WantType: fs.ModeDir})
func (d *DataNode) Exists(name string, opts ...ExistsOptions) (bool, error) {
	info, err := d.Stat(name)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, err
	}
	if len(opts) > 0 {
		if opts[0].WantType == fs.ModeDir && !info.IsDir() {
			return false, nil
		}
		if opts[0].WantType != fs.ModeDir && info.IsDir() {
			return false, nil
		}
	}
	return true, nil
}

// Walk walks the file tree rooted at root depth-first, calling fn for each
// file or directory, including root.
func (d *DataNode) Walk(root string, fn fs.WalkDirFunc) error {
	return fs.WalkDir(d, root, fn)
}

func (d *DataNode) hasDirLocked(name string) bool {
	if name == "" {
		return true
	}
	prefix := name + "/"
	for p := range d.files {
		if strings.HasPrefix(p, prefix) {
			return true
		}
	}
	return false
}

// clean maps "/a/b", "./a/b" and "." onto the DataNode's key space, where
// the root is "".
func clean(name string) string {
	name = strings.TrimPrefix(name, "/")
	if name == "" || name == "." {
		return ""
	}
	trailing := strings.HasSuffix(name, "/")
	name = path.Clean(name)
	if name == "." {
		return ""
	}
	if trailing {
		name += "/"
	}
	return name
}

// dataFile represents a file in the DataNode.
type dataFile struct {
	name    string
	content []byte
	modTime time.Time
}

// dataFileInfo implements fs.FileInfo for a dataFile.
type dataFileInfo struct{ file *dataFile }

func (d *dataFileInfo) Name() string       { return path.Base(d.file.name) }
func (d *dataFileInfo) Size() int64        { return int64(len(d.file.content)) }
func (d *dataFileInfo) Mode() fs.FileMode  { return 0444 }
func (d *dataFileInfo) ModTime() time.Time { return d.file.modTime }
func (d *dataFileInfo) IsDir() bool        { return false }
func (d *dataFileInfo) Sys() interface{}   { return nil }

// dataFileReader implements fs.File and io.Seeker for a dataFile, so that
// http.FileServer can serve ranges out of it.
type dataFileReader struct {
	file   *dataFile
	reader *bytes.Reader
}

func (d *dataFileReader) Stat() (fs.FileInfo, error) { return &dataFileInfo{file: d.file}, nil }
func (d *dataFileReader) Read(p []byte) (int, error) {
	return d.ensure().Read(p)
}
func (d *dataFileReader) Seek(offset int64, whence int) (int64, error) {
	return d.ensure().Seek(offset, whence)
}
func (d *dataFileReader) Close() error { return nil }

func (d *dataFileReader) ensure() *bytes.Reader {
	if d.reader == nil {
		d.reader = bytes.NewReader(d.file.content)
	}
	return d.reader
}

// dirInfo implements fs.FileInfo for an implicit directory.
type dirInfo struct {
	name    string
	modTime time.Time
}

func (d *dirInfo) Name() string       { return d.name }
func (d *dirInfo) Size() int64        { return 0 }
func (d *dirInfo) Mode() fs.FileMode  { return fs.ModeDir | 0555 }
func (d *dirInfo) ModTime() time.Time { return d.modTime }
func (d *dirInfo) IsDir() bool        { return true }
func (d *dirInfo) Sys() interface{}   { return nil }

// dirFile implements fs.File for a directory.
type dirFile struct {
	path    string
	modTime time.Time
}

func (d *dirFile) Stat() (fs.FileInfo, error) {
	return &dirInfo{name: path.Base(d.path), modTime: d.modTime}, nil
}
func (d *dirFile) Read([]byte) (int, error) {
	return 0, &fs.PathError{Op: "read", Path: d.path, Err: fs.ErrInvalid}
}
func (d *dirFile) Close() error { return nil }
