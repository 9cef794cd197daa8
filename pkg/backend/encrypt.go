// pkg/backend/encrypt.go

package backend

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"io"
	"os"

	"github.com/pkg/errors"
)

// Encryptor wraps/unwraps the symmetric key used to seal a snapshot.
// Ground: AveFS pkg/object/encrypt.go's Encryptor split between the key
// wrapper (RSA here) and the bulk cipher (AES-GCM), which lets a large
// snapshot be sealed with a fresh per-dump key while only the small
// wrapped key needs asymmetric crypto.
type Encryptor interface {
	Encrypt(plaintext []byte) ([]byte, error)
	Decrypt(ciphertext []byte) ([]byte, error)
}

type rsaEncryptor struct {
	privKey *rsa.PrivateKey
	label   []byte
}

// NewRSAEncryptor wraps per-dump AES keys with RSA-OAEP.
func NewRSAEncryptor(privKey *rsa.PrivateKey) Encryptor {
	return &rsaEncryptor{privKey: privKey, label: []byte("memkv-dump-key")}
}

func (e *rsaEncryptor) Encrypt(plaintext []byte) ([]byte, error) {
	return rsa.EncryptOAEP(sha256.New(), rand.Reader, &e.privKey.PublicKey, plaintext, e.label)
}

func (e *rsaEncryptor) Decrypt(ciphertext []byte) ([]byte, error) {
	return rsa.DecryptOAEP(sha256.New(), rand.Reader, e.privKey, ciphertext, e.label)
}

// LoadRSAPrivateKey reads a PKCS#8 PEM-encoded RSA private key from path.
func LoadRSAPrivateKey(path string) (*rsa.PrivateKey, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "backend: read key file")
	}
	block, _ := pem.Decode(b)
	if block == nil {
		return nil, errors.New("backend: no PEM block in key file")
	}
	key, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		return nil, errors.Wrap(err, "backend: parse private key")
	}
	rsaKey, ok := key.(*rsa.PrivateKey)
	if !ok {
		return nil, errors.New("backend: key is not RSA")
	}
	return rsaKey, nil
}

type aesEncryptor struct {
	keyWrap Encryptor
}

// NewAESEncryptor seals plaintext with a fresh AES-256-GCM key on every
// call, wraps that key with keyWrap, and prefixes the result with the
// wrapped-key length so Decrypt can find the boundary again.
func NewAESEncryptor(keyWrap Encryptor) Encryptor {
	return &aesEncryptor{keyWrap: keyWrap}
}

func (e *aesEncryptor) Encrypt(plaintext []byte) ([]byte, error) {
	key := make([]byte, 32)
	if _, err := io.ReadFull(rand.Reader, key); err != nil {
		return nil, err
	}
	wrappedKey, err := e.keyWrap.Encrypt(key)
	if err != nil {
		return nil, err
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, err
	}

	var out bytes.Buffer
	var lenPrefix [4]byte
	lenPrefix[0] = byte(len(wrappedKey) >> 24)
	lenPrefix[1] = byte(len(wrappedKey) >> 16)
	lenPrefix[2] = byte(len(wrappedKey) >> 8)
	lenPrefix[3] = byte(len(wrappedKey))
	out.Write(lenPrefix[:])
	out.Write(wrappedKey)
	out.Write(nonce)
	out.Write(gcm.Seal(nil, nonce, plaintext, nil))
	return out.Bytes(), nil
}

func (e *aesEncryptor) Decrypt(ciphertext []byte) ([]byte, error) {
	if len(ciphertext) < 4 {
		return nil, errors.New("backend: truncated ciphertext")
	}
	klen := int(ciphertext[0])<<24 | int(ciphertext[1])<<16 | int(ciphertext[2])<<8 | int(ciphertext[3])
	ciphertext = ciphertext[4:]
	if klen < 0 || klen > len(ciphertext) {
		return nil, errors.New("backend: malformed key length")
	}
	wrappedKey, rest := ciphertext[:klen], ciphertext[klen:]
	key, err := e.keyWrap.Decrypt(wrappedKey)
	if err != nil {
		return nil, errors.Wrap(err, "backend: unwrap key")
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	if len(rest) < gcm.NonceSize() {
		return nil, errors.New("backend: truncated ciphertext")
	}
	nonce, sealed := rest[:gcm.NonceSize()], rest[gcm.NonceSize():]
	return gcm.Open(nil, nonce, sealed, nil)
}

type encrypted struct {
	ObjectStorage
	enc Encryptor
}

// NewEncrypted wraps o so every Put is sealed and every Get is opened
// transparently.
func NewEncrypted(o ObjectStorage, enc Encryptor) ObjectStorage {
	return &encrypted{ObjectStorage: o, enc: enc}
}

func (e *encrypted) String() string { return fmt.Sprintf("%s(encrypted)", e.ObjectStorage) }

func (e *encrypted) Get(key string, off, limit int64) (io.ReadCloser, error) {
	r, err := e.ObjectStorage.Get(key, 0, -1)
	if err != nil {
		return nil, err
	}
	defer r.Close()
	ciphertext, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	plain, err := e.enc.Decrypt(ciphertext)
	if err != nil {
		return nil, errors.Wrap(err, "backend: decrypt snapshot")
	}
	l := int64(len(plain))
	if off > l {
		return nil, io.EOF
	}
	if limit < 0 || off+limit > l {
		limit = l - off
	}
	return io.NopCloser(bytes.NewReader(plain[off : off+limit])), nil
}

func (e *encrypted) Put(key string, in io.Reader) error {
	plain, err := io.ReadAll(in)
	if err != nil {
		return err
	}
	ciphertext, err := e.enc.Encrypt(plain)
	if err != nil {
		return err
	}
	return e.ObjectStorage.Put(key, bytes.NewReader(ciphertext))
}

var _ ObjectStorage = (*encrypted)(nil)
