package core

import (
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/require"
)

const sha256EmptyHex = "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855"

func newTestDigest(t *testing.T, alg DigestAlg) *Digest {
	t.Helper()
	ctx, err := NewCryptoContext(CryptoConfig{})
	require.NoError(t, err)
	_, d, err := ctx.NewDigest(alg, Attributes{})
	require.NoError(t, err)
	return d
}

func TestDigestDeterministic(t *testing.T) {
	d1 := newTestDigest(t, DigestSHA256)
	d2 := newTestDigest(t, DigestSHA256)

	require.NoError(t, d1.Process([]byte("trentos")))
	require.NoError(t, d2.Process([]byte("trentos")))

	sum1, err := d1.Finalize()
	require.NoError(t, err)
	sum2, err := d2.Finalize()
	require.NoError(t, err)
	require.Equal(t, sum1, sum2)
}

func TestDigestFinalizeWithoutProcessAborts(t *testing.T) {
	d := newTestDigest(t, DigestSHA256)
	_, err := d.Finalize()
	require.Equal(t, ErrAborted, err)
}

func TestDigestEmptyInput(t *testing.T) {
	d := newTestDigest(t, DigestSHA256)
	require.NoError(t, d.Process(nil))
	sum, err := d.Finalize()
	require.NoError(t, err)
	require.Equal(t, sha256EmptyHex, hex.EncodeToString(sum))
}

func TestDigestReusableAfterFinalize(t *testing.T) {
	d := newTestDigest(t, DigestSHA256)

	require.NoError(t, d.Process([]byte("a")))
	h1, err := d.Finalize()
	require.NoError(t, err)

	require.NoError(t, d.Process([]byte("b")))
	h2, err := d.Finalize()
	require.NoError(t, err)

	require.NotEqual(t, h1, h2)

	want := newTestDigest(t, DigestSHA256)
	require.NoError(t, want.Process([]byte("b")))
	wantSum, err := want.Finalize()
	require.NoError(t, err)
	require.Equal(t, wantSum, h2, "second finalize must hash only 'b', not 'ab'")
}

func TestDigestProcessAfterDoneAborts(t *testing.T) {
	d := &Digest{alg: DigestSHA256, state: DigestDone}
	err := d.Process([]byte("x"))
	require.Equal(t, ErrAborted, err)
}
