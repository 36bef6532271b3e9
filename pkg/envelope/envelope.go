package envelope

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"strings"
)

// IVSize is the size of the initialization vector prefixed to every envelope.
const IVSize = aes.BlockSize

// Envelope errors.
var (
	// ErrCrypto is returned when the key does not fit the cipher or the
	// cipher cannot be set up.
	ErrCrypto = errors.New("crypto error")

	// ErrMalformed is returned when an encoded envelope cannot be parsed.
	ErrMalformed = errors.New("malformed envelope")
)

// Key is a raw AES key.
type Key []byte

// ParseKey decodes a hex encoded pre-shared key.
func ParseKey(s string) (Key, error) {
	raw, err := hex.DecodeString(strings.TrimSpace(s))
	if err != nil {
		return nil, fmt.Errorf("%w: key is not hex: %v", ErrCrypto, err)
	}
	k := Key(raw)
	if err := k.Validate(); err != nil {
		return nil, err
	}
	return k, nil
}

// Validate checks that the key length is a valid AES key size.
func (k Key) Validate() error {
	switch len(k) {
	case 16, 24, 32:
		return nil
	default:
		return fmt.Errorf("%w: key length %d, want 16, 24 or 32 bytes", ErrCrypto, len(k))
	}
}

// String hides the key material.
func (k Key) String() string {
	return fmt.Sprintf("Key(%d bytes)", len(k))
}

// Envelope is one encrypted outbound message.
type Envelope struct {
	IV         [IVSize]byte
	Ciphertext []byte
}

// Encrypt seals plaintext under key with a fresh random IV.
func Encrypt(plaintext []byte, key Key) (Envelope, error) {
	return encrypt(rand.Reader, plaintext, key)
}

func encrypt(random io.Reader, plaintext []byte, key Key) (Envelope, error) {
	var iv [IVSize]byte
	if _, err := io.ReadFull(random, iv[:]); err != nil {
		return Envelope{}, fmt.Errorf("%w: failed to generate IV: %v", ErrCrypto, err)
	}
	return EncryptWithIV(plaintext, key, iv)
}

// EncryptWithIV seals plaintext under key using the given IV. The result is
// fully determined by its inputs; callers must never reuse an IV with the
// same key.
func EncryptWithIV(plaintext []byte, key Key, iv [IVSize]byte) (Envelope, error) {
	stream, err := newStream(key, iv)
	if err != nil {
		return Envelope{}, err
	}
	ct := make([]byte, len(plaintext))
	stream.XORKeyStream(ct, plaintext)
	return Envelope{IV: iv, Ciphertext: ct}, nil
}

// Decrypt opens an envelope sealed under key.
func Decrypt(env Envelope, key Key) ([]byte, error) {
	stream, err := newStream(key, env.IV)
	if err != nil {
		return nil, err
	}
	pt := make([]byte, len(env.Ciphertext))
	stream.XORKeyStream(pt, env.Ciphertext)
	return pt, nil
}

func newStream(key Key, iv [IVSize]byte) (cipher.Stream, error) {
	if err := key.Validate(); err != nil {
		return nil, err
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCrypto, err)
	}
	return cipher.NewCTR(block, iv[:]), nil
}

// Len returns the size of the envelope on the wire before transport encoding.
func (e Envelope) Len() int {
	return IVSize + len(e.Ciphertext)
}

// Bytes returns IV || ciphertext.
func (e Envelope) Bytes() []byte {
	out := make([]byte, 0, e.Len())
	out = append(out, e.IV[:]...)
	return append(out, e.Ciphertext...)
}

// Encode returns the base64 transport encoding of the envelope.
func (e Envelope) Encode() string {
	return base64.StdEncoding.EncodeToString(e.Bytes())
}

// FromBytes splits raw IV || ciphertext bytes into an Envelope.
func FromBytes(raw []byte) (Envelope, error) {
	if len(raw) < IVSize {
		return Envelope{}, fmt.Errorf("%w: %d bytes, shorter than IV", ErrMalformed, len(raw))
	}
	var env Envelope
	copy(env.IV[:], raw[:IVSize])
	env.Ciphertext = append([]byte(nil), raw[IVSize:]...)
	return env, nil
}

// Decode parses the base64 transport encoding of an envelope.
func Decode(s string) (Envelope, error) {
	raw, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return Envelope{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return FromBytes(raw)
}

// FrameLen returns the number of bytes the device receives for a plaintext
// of n bytes: the IV followed by the ciphertext.
func FrameLen(n int) int {
	return IVSize + n
}

// Seal encrypts plaintext and returns the base64 frame handed to the link.
func Seal(plaintext []byte, key Key) ([]byte, error) {
	env, err := Encrypt(plaintext, key)
	if err != nil {
		return nil, err
	}
	return []byte(env.Encode()), nil
}

// Unframe strips the base64 transport encoding of a sealed frame and returns
// the raw IV || ciphertext the radio writes.
func Unframe(frame []byte) ([]byte, error) {
	raw := make([]byte, base64.StdEncoding.DecodedLen(len(frame)))
	n, err := base64.StdEncoding.Decode(raw, frame)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if n < IVSize {
		return nil, fmt.Errorf("%w: %d bytes, shorter than IV", ErrMalformed, n)
	}
	return raw[:n], nil
}

// Open reverses Seal.
func Open(frame []byte, key Key) ([]byte, error) {
	env, err := Decode(string(frame))
	if err != nil {
		return nil, err
	}
	return Decrypt(env, key)
}

// OpenRaw decrypts the raw IV || ciphertext bytes as the device receives
// them.
func OpenRaw(raw []byte, key Key) ([]byte, error) {
	env, err := FromBytes(raw)
	if err != nil {
		return nil, err
	}
	return Decrypt(env, key)
}
