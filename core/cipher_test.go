package core

import (
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/require"
)

func aesKey(t *testing.T, hexKey string) *Key {
	t.Helper()
	raw, err := hex.DecodeString(hexKey)
	require.NoError(t, err)
	k := &Key{typ: KeyTypeAES, aes: &KeyAES{Len: uint32(len(raw))}}
	copy(k.aes.Bytes[:], raw)
	return k
}

func TestCipherAESECBKnownAnswer(t *testing.T) {
	key := aesKey(t, "00112233445566778899aabbccddeeff")
	_, c, err := NewCipher(&Proxy{}, key, CipherAESECBEnc, nil)
	require.NoError(t, err)

	plaintext := make([]byte, CipherAESBlockSize)
	ct, err := c.Process(plaintext)
	require.NoError(t, err)
	require.Equal(t, "fde4fbae4a09e020eff722969f83832b", hex.EncodeToString(ct))
}

func TestCipherAESECBRoundTrip(t *testing.T) {
	key := aesKey(t, "00112233445566778899aabbccddeeff")
	plaintext := []byte("0123456789ABCDEF")

	_, enc, err := NewCipher(&Proxy{}, key, CipherAESECBEnc, nil)
	require.NoError(t, err)
	ct, err := enc.Process(plaintext)
	require.NoError(t, err)

	_, dec, err := NewCipher(&Proxy{}, key, CipherAESECBDec, nil)
	require.NoError(t, err)
	pt, err := dec.Process(ct)
	require.NoError(t, err)
	require.Equal(t, plaintext, pt)
}

func TestCipherAESECBBlockModeHasNoFinalize(t *testing.T) {
	key := aesKey(t, "00112233445566778899aabbccddeeff")
	_, c, err := NewCipher(&Proxy{}, key, CipherAESECBEnc, nil)
	require.NoError(t, err)
	_, _, err = c.Finalize(0, nil)
	require.Equal(t, ErrAborted, err)
}

func TestCipherAESGCMTagMismatchAborts(t *testing.T) {
	key := aesKey(t, "00000000000000000000000000000000")
	iv := make([]byte, CipherAESGCMIVSize)

	_, enc, err := NewCipher(&Proxy{}, key, CipherAESGCMEnc, iv)
	require.NoError(t, err)
	require.NoError(t, enc.Start(nil))
	_, err = enc.Process(nil)
	require.NoError(t, err)
	_, tag, err := enc.Finalize(CipherAESGCMTagMax, nil)
	require.NoError(t, err)

	flipped := append([]byte(nil), tag...)
	flipped[0] ^= 0xff

	_, dec, err := NewCipher(&Proxy{}, key, CipherAESGCMDec, iv)
	require.NoError(t, err)
	require.NoError(t, dec.Start(nil))
	_, err = dec.Process(nil)
	require.NoError(t, err)
	_, _, err = dec.Finalize(0, flipped)
	require.Equal(t, ErrAborted, err)
}
