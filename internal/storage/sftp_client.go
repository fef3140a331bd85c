package storage

import (
	"fmt"
	"io"
	"os"
	"path"
	"time"

	"github.com/pkg/sftp"
	"golang.org/x/crypto/ssh"

	"github.com/craftops/fleet/pkg/config"
	"github.com/craftops/fleet/pkg/logger"
)

// SFTPClient uploads backup archives to an offsite storage box
type SFTPClient struct {
	cfg         *config.Config
	sshClient   *ssh.Client
	sftpClient  *sftp.Client
	connected   bool
	lastUsed    time.Time
	idleTimeout time.Duration
}

// NewSFTPClient creates an SFTP client for offsite backups
func NewSFTPClient(cfg *config.Config) (*SFTPClient, error) {
	if !cfg.OffsiteEnabled {
		return nil, fmt.Errorf("offsite backup storage not enabled in configuration")
	}
	if cfg.OffsiteHost == "" || cfg.OffsiteUser == "" || cfg.OffsitePassword == "" {
		return nil, fmt.Errorf("offsite backup credentials missing in configuration")
	}

	return &SFTPClient{
		cfg:         cfg,
		idleTimeout: 5 * time.Minute,
	}, nil
}

// ensureConnected reconnects when the connection is missing or stale
func (c *SFTPClient) ensureConnected() error {
	if c.connected && time.Since(c.lastUsed) > c.idleTimeout {
		logger.Info("SFTP: connection idle too long, reconnecting", map[string]interface{}{
			"idle": time.Since(c.lastUsed).Round(time.Second),
		})
		c.Close()
	}

	if !c.connected {
		return c.connect()
	}

	c.lastUsed = time.Now()
	return nil
}

func (c *SFTPClient) connect() error {
	sshConfig := &ssh.ClientConfig{
		User: c.cfg.OffsiteUser,
		Auth: []ssh.AuthMethod{
			ssh.Password(c.cfg.OffsitePassword),
		},
		HostKeyCallback: ssh.InsecureIgnoreHostKey(),
		Timeout:         30 * time.Second,
	}

	address := fmt.Sprintf("%s:%d", c.cfg.OffsiteHost, c.cfg.OffsitePort)
	sshClient, err := ssh.Dial("tcp", address, sshConfig)
	if err != nil {
		return fmt.Errorf("failed to connect to SSH server: %w", err)
	}

	sftpClient, err := sftp.NewClient(sshClient)
	if err != nil {
		sshClient.Close()
		return fmt.Errorf("failed to create SFTP client: %w", err)
	}

	c.sshClient = sshClient
	c.sftpClient = sftpClient
	c.connected = true
	c.lastUsed = time.Now()

	if err := c.sftpClient.MkdirAll(c.cfg.OffsitePath); err != nil {
		logger.Warn("SFTP: failed to create base path", map[string]interface{}{
			"path":  c.cfg.OffsitePath,
			"error": err.Error(),
		})
	}

	logger.Info("SFTP: connected to offsite storage", map[string]interface{}{
		"host": c.cfg.OffsiteHost,
	})
	return nil
}

// Upload copies a local archive to the offsite store and returns the remote
// path.
func (c *SFTPClient) Upload(localPath, remoteName string) (string, error) {
	if err := c.ensureConnected(); err != nil {
		return "", fmt.Errorf("failed to ensure connection: %w", err)
	}

	localFile, err := os.Open(localPath)
	if err != nil {
		return "", fmt.Errorf("failed to open local file: %w", err)
	}
	defer localFile.Close()

	remotePath := path.Join(c.cfg.OffsitePath, remoteName)
	remoteFile, err := c.sftpClient.Create(remotePath)
	if err != nil {
		return "", fmt.Errorf("failed to create remote file: %w", err)
	}
	defer remoteFile.Close()

	start := time.Now()
	written, err := io.Copy(remoteFile, localFile)
	if err != nil {
		return "", fmt.Errorf("failed to upload file: %w", err)
	}

	logger.Info("SFTP: upload completed", map[string]interface{}{
		"remote_path": remotePath,
		"size_mb":     written / 1024 / 1024,
		"duration":    time.Since(start).Round(time.Second),
	})
	return remotePath, nil
}

// Delete removes a file from the offsite store
func (c *SFTPClient) Delete(remotePath string) error {
	if err := c.ensureConnected(); err != nil {
		return fmt.Errorf("failed to ensure connection: %w", err)
	}
	return c.sftpClient.Remove(remotePath)
}

// Close closes the SFTP and SSH connections
func (c *SFTPClient) Close() error {
	if !c.connected {
		return nil
	}
	if c.sftpClient != nil {
		c.sftpClient.Close()
	}
	if c.sshClient != nil {
		c.sshClient.Close()
	}
	c.connected = false
	return nil
}
