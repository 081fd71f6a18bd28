// Package transfer abstracts the remote file endpoints the pipeline reads
// from and publishes to. Sessions are scoped resources: callers must Close
// on every exit path.
package transfer

import (
	"context"
	"fmt"
	"time"
)

// FileInfo describes one remote file.
type FileInfo struct {
	Name     string
	FullPath string
	Size     int64
	ModTime  time.Time
}

// Session is an open connection to a remote endpoint.
type Session interface {
	// List enumerates the files directly inside folderPath.
	List(folderPath string) ([]FileInfo, error)

	// Download copies a remote file to a local path.
	Download(remotePath, localPath string) error

	// Upload copies a local file to a remote path.
	Upload(localPath, remotePath string) error

	// Close releases the connection. Safe to call once per session.
	Close() error
}

// Client opens sessions against one configured endpoint.
type Client interface {
	Connect(ctx context.Context) (Session, error)
}

// ConnError marks a failure to establish or keep a connection. Callers map
// it to the remote-connection retry category.
type ConnError struct {
	Endpoint string
	Err      error
}

func (e *ConnError) Error() string {
	return fmt.Sprintf("connect %s: %v", e.Endpoint, e.Err)
}

func (e *ConnError) Unwrap() error { return e.Err }

// FileError marks a failure of a single file operation on an established
// session. Callers map it to the remote-file-operation retry category.
type FileError struct {
	Op   string
	Path string
	Err  error
}

func (e *FileError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

func (e *FileError) Unwrap() error { return e.Err }
