package transfer

import (
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"time"

	"github.com/pkg/sftp"
	"golang.org/x/crypto/ssh"
)

// SFTPConfig holds connection settings for an SFTP endpoint.
type SFTPConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	Path     string `yaml:"path"`
}

// SFTPClient opens SFTP sessions over SSH.
type SFTPClient struct {
	cfg     SFTPConfig
	timeout time.Duration
}

// NewSFTPClient creates a client for the configured endpoint.
func NewSFTPClient(cfg SFTPConfig) *SFTPClient {
	if cfg.Port == 0 {
		cfg.Port = 22
	}
	return &SFTPClient{cfg: cfg, timeout: 30 * time.Second}
}

// Connect dials and authenticates, returning a scoped session.
func (c *SFTPClient) Connect(ctx context.Context) (Session, error) {
	addr := fmt.Sprintf("%s:%d", c.cfg.Host, c.cfg.Port)

	sshCfg := &ssh.ClientConfig{
		User:            c.cfg.Username,
		Auth:            []ssh.AuthMethod{ssh.Password(c.cfg.Password)},
		HostKeyCallback: ssh.InsecureIgnoreHostKey(),
		Timeout:         c.timeout,
	}

	conn, err := ssh.Dial("tcp", addr, sshCfg)
	if err != nil {
		return nil, &ConnError{Endpoint: addr, Err: err}
	}
	client, err := sftp.NewClient(conn)
	if err != nil {
		conn.Close()
		return nil, &ConnError{Endpoint: addr, Err: err}
	}
	return &sftpSession{conn: conn, client: client}, nil
}

type sftpSession struct {
	conn   *ssh.Client
	client *sftp.Client
}

func (s *sftpSession) List(folderPath string) ([]FileInfo, error) {
	entries, err := s.client.ReadDir(folderPath)
	if err != nil {
		return nil, &FileError{Op: "list", Path: folderPath, Err: err}
	}
	var files []FileInfo
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		files = append(files, FileInfo{
			Name:     e.Name(),
			FullPath: path.Join(folderPath, e.Name()),
			Size:     e.Size(),
			ModTime:  e.ModTime(),
		})
	}
	return files, nil
}

func (s *sftpSession) Download(remotePath, localPath string) error {
	in, err := s.client.Open(remotePath)
	if err != nil {
		return &FileError{Op: "download", Path: remotePath, Err: err}
	}
	defer in.Close()

	out, err := os.Create(localPath)
	if err != nil {
		return &FileError{Op: "download", Path: remotePath, Err: err}
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return &FileError{Op: "download", Path: remotePath, Err: err}
	}
	return nil
}

func (s *sftpSession) Upload(localPath, remotePath string) error {
	in, err := os.Open(localPath)
	if err != nil {
		return &FileError{Op: "upload", Path: remotePath, Err: err}
	}
	defer in.Close()

	out, err := s.client.Create(remotePath)
	if err != nil {
		return &FileError{Op: "upload", Path: remotePath, Err: err}
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return &FileError{Op: "upload", Path: remotePath, Err: err}
	}
	return nil
}

func (s *sftpSession) Close() error {
	cerr := s.client.Close()
	if err := s.conn.Close(); err != nil && cerr == nil {
		cerr = err
	}
	return cerr
}
