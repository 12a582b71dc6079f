package cluster

import (
	"io"
	"io/fs"
	"path"
	"sort"

	"github.com/pkg/sftp"
)

// SFTPFS exposes a directory on a remote node as a read-only fs.FS, so the
// resolver can read a seed node's cluster filesystem from off-cluster.
type SFTPFS struct {
	client *sftp.Client
	root   string
}

var (
	_ fs.ReadDirFS  = (*SFTPFS)(nil)
	_ fs.StatFS     = (*SFTPFS)(nil)
	_ fs.ReadFileFS = (*SFTPFS)(nil)
)

// NewSFTPFS returns an fs.FS rooted at root on the remote side.
func NewSFTPFS(client *sftp.Client, root string) *SFTPFS {
	if root == "" {
		root = DefaultRoot
	}
	return &SFTPFS{client: client, root: root}
}

func (f *SFTPFS) remote(op, name string) (string, error) {
	if !fs.ValidPath(name) {
		return "", &fs.PathError{Op: op, Path: name, Err: fs.ErrInvalid}
	}
	return path.Join(f.root, name), nil
}

// Open opens a remote file for reading.
func (f *SFTPFS) Open(name string) (fs.File, error) {
	p, err := f.remote("open", name)
	if err != nil {
		return nil, err
	}
	file, err := f.client.Open(p)
	if err != nil {
		return nil, &fs.PathError{Op: "open", Path: name, Err: err}
	}
	return file, nil
}

// ReadFile reads a whole remote file.
func (f *SFTPFS) ReadFile(name string) ([]byte, error) {
	file, err := f.Open(name)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	return io.ReadAll(file)
}

// Stat returns remote file info.
func (f *SFTPFS) Stat(name string) (fs.FileInfo, error) {
	p, err := f.remote("stat", name)
	if err != nil {
		return nil, err
	}
	info, err := f.client.Stat(p)
	if err != nil {
		return nil, &fs.PathError{Op: "stat", Path: name, Err: err}
	}
	return info, nil
}

// ReadDir lists a remote directory, sorted by name.
func (f *SFTPFS) ReadDir(name string) ([]fs.DirEntry, error) {
	p, err := f.remote("readdir", name)
	if err != nil {
		return nil, err
	}
	infos, err := f.client.ReadDir(p)
	if err != nil {
		return nil, &fs.PathError{Op: "readdir", Path: name, Err: err}
	}

	entries := make([]fs.DirEntry, len(infos))
	for i, info := range infos {
		entries[i] = fs.FileInfoToDirEntry(info)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })
	return entries, nil
}
