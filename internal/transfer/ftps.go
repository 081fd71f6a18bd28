package transfer

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"os"
	"path"
	"time"

	"github.com/jlaffaye/ftp"
)

// FTPSConfig holds connection settings for an FTP-over-TLS endpoint.
type FTPSConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	Path     string `yaml:"path"`
	UseTLS   bool   `yaml:"use_tls"`
}

// FTPSClient opens explicit-TLS FTP sessions.
type FTPSClient struct {
	cfg     FTPSConfig
	timeout time.Duration
}

// NewFTPSClient creates a client for the configured endpoint.
func NewFTPSClient(cfg FTPSConfig) *FTPSClient {
	if cfg.Port == 0 {
		cfg.Port = 21
	}
	return &FTPSClient{cfg: cfg, timeout: 30 * time.Second}
}

// Connect dials and authenticates, returning a scoped session.
func (c *FTPSClient) Connect(ctx context.Context) (Session, error) {
	addr := fmt.Sprintf("%s:%d", c.cfg.Host, c.cfg.Port)

	opts := []ftp.DialOption{
		ftp.DialWithContext(ctx),
		ftp.DialWithTimeout(c.timeout),
	}
	if c.cfg.UseTLS {
		opts = append(opts, ftp.DialWithExplicitTLS(&tls.Config{ServerName: c.cfg.Host}))
	}

	conn, err := ftp.Dial(addr, opts...)
	if err != nil {
		return nil, &ConnError{Endpoint: addr, Err: err}
	}
	if err := conn.Login(c.cfg.Username, c.cfg.Password); err != nil {
		conn.Quit()
		return nil, &ConnError{Endpoint: addr, Err: fmt.Errorf("authentication failed: %w", err)}
	}
	return &ftpsSession{conn: conn}, nil
}

type ftpsSession struct {
	conn *ftp.ServerConn
}

func (s *ftpsSession) List(folderPath string) ([]FileInfo, error) {
	entries, err := s.conn.List(folderPath)
	if err != nil {
		return nil, &FileError{Op: "list", Path: folderPath, Err: err}
	}
	var files []FileInfo
	for _, e := range entries {
		if e.Type != ftp.EntryTypeFile {
			continue
		}
		files = append(files, FileInfo{
			Name:     e.Name,
			FullPath: path.Join(folderPath, e.Name),
			Size:     int64(e.Size),
			ModTime:  e.Time,
		})
	}
	return files, nil
}

func (s *ftpsSession) Download(remotePath, localPath string) error {
	resp, err := s.conn.Retr(remotePath)
	if err != nil {
		return &FileError{Op: "download", Path: remotePath, Err: err}
	}
	defer resp.Close()

	out, err := os.Create(localPath)
	if err != nil {
		return &FileError{Op: "download", Path: remotePath, Err: err}
	}
	defer out.Close()

	if _, err := io.Copy(out, resp); err != nil {
		return &FileError{Op: "download", Path: remotePath, Err: err}
	}
	return nil
}

func (s *ftpsSession) Upload(localPath, remotePath string) error {
	in, err := os.Open(localPath)
	if err != nil {
		return &FileError{Op: "upload", Path: remotePath, Err: err}
	}
	defer in.Close()

	if err := s.conn.Stor(remotePath, in); err != nil {
		return &FileError{Op: "upload", Path: remotePath, Err: err}
	}
	return nil
}

func (s *ftpsSession) Close() error {
	return s.conn.Quit()
}
