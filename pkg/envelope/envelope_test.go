package envelope

import (
	"bytes"
	"encoding/hex"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testKeyHex = "2b7e151628aed2a6abf7158809cf4f3c"

func mustHex(t *testing.T, s string) []byte {
	t.Helper()
	b, err := hex.DecodeString(s)
	require.NoError(t, err)
	return b
}

func TestParseKey(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantLen int
		wantErr bool
	}{
		{"aes128", testKeyHex, 16, false},
		{"aes256", strings.Repeat("ab", 32), 32, false},
		{"whitespace", "  " + testKeyHex + "\n", 16, false},
		{"not hex", "zz7e151628aed2a6abf7158809cf4f3c", 0, true},
		{"odd length", "abc", 0, true},
		{"wrong size", strings.Repeat("ab", 15), 0, true},
		{"empty", "", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			k, err := ParseKey(tt.input)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrCrypto)
				return
			}
			require.NoError(t, err)
			assert.Len(t, k, tt.wantLen)
		})
	}
}

// NIST SP 800-38A, F.5.1 CTR-AES128.Encrypt, first block.
func TestEncryptWithIV_KnownAnswer(t *testing.T) {
	key := Key(mustHex(t, testKeyHex))
	var iv [IVSize]byte
	copy(iv[:], mustHex(t, "f0f1f2f3f4f5f6f7f8f9fafbfcfdfeff"))
	pt := mustHex(t, "6bc1bee22e409f96e93d7e117393172a")

	env, err := EncryptWithIV(pt, key, iv)
	require.NoError(t, err)
	assert.Equal(t, mustHex(t, "874d6191b620e3261bef6864990db6ce"), env.Ciphertext)
}

func TestEncryptDecryptRoundTrip(t *testing.T) {
	key := Key(mustHex(t, testKeyHex))
	inputs := [][]byte{
		{},
		[]byte("a"),
		[]byte(`{"type":"aws_root_ca","ready":0,"row":"-----BEGIN CERTIFICATE-----\n"}`),
		bytes.Repeat([]byte{0xff, 0x00, 0x7f}, 100),
	}

	for _, pt := range inputs {
		env, err := Encrypt(pt, key)
		require.NoError(t, err)
		assert.Len(t, env.Ciphertext, len(pt))
		assert.Equal(t, IVSize+len(pt), env.Len())

		got, err := Decrypt(env, key)
		require.NoError(t, err)
		assert.Equal(t, pt, got)
	}
}

func TestEncryptFreshIV(t *testing.T) {
	key := Key(mustHex(t, testKeyHex))
	pt := []byte("same plaintext every time")

	seen := make(map[[IVSize]byte]bool)
	var prev []byte
	for i := 0; i < 50; i++ {
		env, err := Encrypt(pt, key)
		require.NoError(t, err)
		assert.False(t, seen[env.IV], "IV repeated")
		seen[env.IV] = true
		assert.NotEqual(t, prev, env.Ciphertext)
		prev = env.Ciphertext
	}
}

func TestEncryptBadKey(t *testing.T) {
	_, err := Encrypt([]byte("x"), Key{1, 2, 3})
	assert.True(t, errors.Is(err, ErrCrypto))

	_, err = Decrypt(Envelope{}, Key(nil))
	assert.True(t, errors.Is(err, ErrCrypto))
}

func TestEncryptRandomFailure(t *testing.T) {
	key := Key(mustHex(t, testKeyHex))
	_, err := encrypt(bytes.NewReader([]byte{1, 2, 3}), []byte("x"), key)
	assert.ErrorIs(t, err, ErrCrypto)
}

func TestEncodeDecode(t *testing.T) {
	key := Key(mustHex(t, testKeyHex))
	env, err := Encrypt([]byte("hello device"), key)
	require.NoError(t, err)

	raw := env.Bytes()
	assert.Equal(t, env.IV[:], raw[:IVSize])

	parsed, err := Decode(env.Encode())
	require.NoError(t, err)
	assert.Equal(t, env, parsed)

	_, err = Decode("not base64!")
	assert.ErrorIs(t, err, ErrMalformed)

	_, err = FromBytes(make([]byte, IVSize-1))
	assert.ErrorIs(t, err, ErrMalformed)
}

func TestSealOpen(t *testing.T) {
	key := Key(mustHex(t, testKeyHex))
	frame, err := Seal([]byte("0123456789abcdef0123456789abcdef"), key)
	require.NoError(t, err)

	pt, err := Open(frame, key)
	require.NoError(t, err)
	assert.Equal(t, "0123456789abcdef0123456789abcdef", string(pt))
}

func TestUnframe(t *testing.T) {
	key := Key(mustHex(t, testKeyHex))
	pt := []byte("0123456789abcdef0123456789abcdef")
	iv := [IVSize]byte{0xf0, 0xf1, 0xf2, 0xf3, 0xf4, 0xf5, 0xf6, 0xf7, 0xf8, 0xf9, 0xfa, 0xfb, 0xfc, 0xfd, 0xfe, 0xff}
	env, err := EncryptWithIV(pt, key, iv)
	require.NoError(t, err)

	raw, err := Unframe([]byte(env.Encode()))
	require.NoError(t, err)
	assert.Len(t, raw, FrameLen(len(pt)))
	assert.Equal(t, 48, len(raw))
	assert.Equal(t, iv[:], raw[:IVSize])
	assert.Equal(t, env.Bytes(), raw)

	back, err := OpenRaw(raw, key)
	require.NoError(t, err)
	assert.Equal(t, pt, back)

	_, err = Unframe([]byte("not base64!"))
	assert.ErrorIs(t, err, ErrMalformed)
	_, err = Unframe([]byte("AAAA"))
	assert.ErrorIs(t, err, ErrMalformed)
	_, err = OpenRaw(make([]byte, IVSize-1), key)
	assert.ErrorIs(t, err, ErrMalformed)
}

func TestKeyStringHidesMaterial(t *testing.T) {
	key := Key(mustHex(t, testKeyHex))
	assert.Equal(t, "Key(16 bytes)", key.String())
}
