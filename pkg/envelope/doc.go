// Package envelope implements the encrypted wire unit used for every
// outbound provisioning write.
//
// # Construction
//
// Each message is encrypted with AES in counter mode under the device's
// pre-shared key. A fresh random 16-byte IV seeds the counter, so the
// ciphertext has exactly the length of the plaintext and no padding is
// involved:
//
//	envelope = IV[16] || AES-CTR(key, IV, plaintext)
//
// Sealed frames carry the envelope base64 encoded. The link layer strips that
// transport encoding, so the device receives the raw IV and ciphertext and
// its receive buffer bounds FrameLen, not the encoded size.
//
// The device decrypts with the same key by taking the first 16 bytes as the
// initial counter block. Only outbound traffic is enveloped; notifications
// from the device arrive as plain records.
package envelope
