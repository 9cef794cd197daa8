// pkg/backend/sftp.go

package backend

import (
	"fmt"
	"io"
	"path"

	"github.com/pkg/errors"
	"github.com/pkg/sftp"
	"golang.org/x/crypto/ssh"
)

// SFTPTransport ships dump/backup snapshots to a remote directory over
// SSH, the transport a single-host deployment reaches for once it wants
// its snapshots off-box without standing up an object store.
type SFTPTransport struct {
	client *sftp.Client
	conn   *ssh.Client
	root   string
}

// DialSFTP opens an SSH connection to addr and an SFTP session over it.
// auth is typically ssh.PublicKeys(signer) or ssh.Password(pw).
func DialSFTP(addr, user string, auth ssh.AuthMethod, hostKey ssh.HostKeyCallback, root string) (*SFTPTransport, error) {
	if hostKey == nil {
		hostKey = ssh.InsecureIgnoreHostKey()
	}
	conn, err := ssh.Dial("tcp", addr, &ssh.ClientConfig{
		User:            user,
		Auth:            []ssh.AuthMethod{auth},
		HostKeyCallback: hostKey,
	})
	if err != nil {
		return nil, errors.Wrap(err, "backend: ssh dial")
	}
	client, err := sftp.NewClient(conn)
	if err != nil {
		conn.Close()
		return nil, errors.Wrap(err, "backend: sftp handshake")
	}
	return &SFTPTransport{client: client, conn: conn, root: root}, nil
}

func (t *SFTPTransport) String() string { return fmt.Sprintf("sftp://%s", t.root) }

func (t *SFTPTransport) path(key string) string { return path.Join(t.root, key) }

func (t *SFTPTransport) Get(key string, off, limit int64) (io.ReadCloser, error) {
	f, err := t.client.Open(t.path(key))
	if err != nil {
		return nil, errors.Wrap(err, "backend: sftp open")
	}
	if off > 0 {
		if _, err := f.Seek(off, io.SeekStart); err != nil {
			f.Close()
			return nil, err
		}
	}
	if limit < 0 {
		return f, nil
	}
	return &limitedReadCloser{io.LimitReader(f, limit), f}, nil
}

func (t *SFTPTransport) Put(key string, in io.Reader) error {
	if err := t.client.MkdirAll(t.root); err != nil {
		return errors.Wrap(err, "backend: sftp mkdir")
	}
	f, err := t.client.Create(t.path(key))
	if err != nil {
		return errors.Wrap(err, "backend: sftp create")
	}
	defer f.Close()
	if _, err := io.Copy(f, in); err != nil {
		return errors.Wrap(err, "backend: sftp write")
	}
	return nil
}

// Close releases the SFTP session and its underlying SSH connection.
func (t *SFTPTransport) Close() error {
	t.client.Close()
	return t.conn.Close()
}

var _ ObjectStorage = (*SFTPTransport)(nil)
