package core

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func newTestCryptoContext(t *testing.T, mode Mode) *CryptoContext {
	t.Helper()
	ctx, err := NewCryptoContext(CryptoConfig{Mode: mode})
	require.NoError(t, err)
	return ctx
}

func TestGenerateKeyAESRejectsBadBitSize(t *testing.T) {
	ctx := newTestCryptoContext(t, ModeLibrary)
	_, _, err := ctx.GenerateKey(KeySpec{Type: KeySpecBits, KeyTyp: KeyTypeAES, Bits: 100}, Attributes{})
	require.Equal(t, ErrInvalidParameter, err)
}

func TestGenerateKeyAESProducesRequestedLength(t *testing.T) {
	ctx := newTestCryptoContext(t, ModeLibrary)
	_, k, err := ctx.GenerateKey(KeySpec{Type: KeySpecBits, KeyTyp: KeyTypeAES, Bits: 256}, Attributes{})
	require.NoError(t, err)
	require.Equal(t, uint32(32), k.aes.Len)
}

func TestGenerateKeyUnknownTypeNotSupported(t *testing.T) {
	ctx := newTestCryptoContext(t, ModeLibrary)
	_, _, err := ctx.GenerateKey(KeySpec{Type: KeySpecBits, KeyTyp: KeyType(999), Bits: 128}, Attributes{})
	require.Equal(t, ErrNotSupported, err)
}

func TestExportLibraryBackendAlwaysAllowed(t *testing.T) {
	ctx := newTestCryptoContext(t, ModeLibrary)
	p, k, err := ctx.GenerateKey(KeySpec{Type: KeySpecBits, KeyTyp: KeyTypeAES, Bits: 128}, Attributes{})
	require.NoError(t, err)

	cp, err := Export(p, k)
	require.NoError(t, err)
	require.Equal(t, k.aes.Bytes, cp.aes.Bytes)
}

func TestExportRemoteNonExportableDenied(t *testing.T) {
	ctx := newTestCryptoContext(t, ModeClient)
	p, k, err := ctx.GenerateKey(KeySpec{Type: KeySpecBits, KeyTyp: KeyTypeAES, Bits: 128}, Attributes{Exportable: false})
	require.NoError(t, err)

	_, err = Export(p, k)
	require.Equal(t, ErrOperationDenied, err)
}

func TestExportRemoteExportableRoundTrips(t *testing.T) {
	ctx := newTestCryptoContext(t, ModeClient)
	p, k, err := ctx.GenerateKey(KeySpec{Type: KeySpecBits, KeyTyp: KeyTypeAES, Bits: 128}, Attributes{Exportable: true})
	require.NoError(t, err)

	exported, err := Export(p, k)
	require.NoError(t, err)

	imported, _, err := ctx.ImportKey(exported, Attributes{Exportable: true})
	require.NoError(t, err)
	require.Equal(t, k.aes.Bytes, imported.aes.Bytes)
	require.Equal(t, k.aes.Len, imported.aes.Len)
}

func TestImportKeyAESRejectsMissingData(t *testing.T) {
	ctx := newTestCryptoContext(t, ModeLibrary)
	_, _, err := ctx.ImportKey(&Key{typ: KeyTypeAES}, Attributes{})
	require.Equal(t, ErrInvalidParameter, err)
}

func TestImportKeyRSAPrvRejectsMissingFactors(t *testing.T) {
	ctx := newTestCryptoContext(t, ModeLibrary)
	_, _, err := ctx.ImportKey(&Key{typ: KeyTypeRSAPrv, rsaPrv: &KeyRSAPrv{}}, Attributes{})
	require.Equal(t, ErrInvalidParameter, err)
}

func TestImportKeyUnknownTypeInvalidParameter(t *testing.T) {
	ctx := newTestCryptoContext(t, ModeLibrary)
	_, _, err := ctx.ImportKey(&Key{typ: KeyType(999)}, Attributes{})
	require.Equal(t, ErrInvalidParameter, err)
}

func TestGetParamsDHPublicReturnsPrimeAndBase(t *testing.T) {
	params, err := LoadParams("dh2048")
	require.NoError(t, err)
	ctx := newTestCryptoContext(t, ModeLibrary)
	_, prv, err := ctx.GenerateKey(KeySpec{Type: KeySpecParams, KeyTyp: KeyTypeDHPrv, Bits: 2048, Params: params}, Attributes{})
	require.NoError(t, err)

	got, err := prv.GetParams()
	require.NoError(t, err)
	require.Equal(t, params.DHPrime, got.DHPrime)
	require.Equal(t, params.DHBase, got.DHBase)
}

func TestGetParamsECCReturnsCurve(t *testing.T) {
	ctx := newTestCryptoContext(t, ModeLibrary)
	_, prv, err := ctx.GenerateKey(KeySpec{Type: KeySpecBits, KeyTyp: KeyTypeSECP256R1Prv}, Attributes{})
	require.NoError(t, err)

	got, err := prv.GetParams()
	require.NoError(t, err)
	require.NotNil(t, got.Curve)
}

func TestGetParamsUnsupportedKeyTypeNotSupported(t *testing.T) {
	k := &Key{typ: KeyTypeAES}
	_, err := k.GetParams()
	require.Equal(t, ErrNotSupported, err)
}

func TestLoadParamsUnknownNameNotSupported(t *testing.T) {
	_, err := LoadParams("does-not-exist")
	require.Equal(t, ErrNotSupported, err)
}

func TestMakePublicRSADerivesConsistentModulus(t *testing.T) {
	ctx := newTestCryptoContext(t, ModeLibrary)
	p, prv, err := ctx.GenerateKey(KeySpec{Type: KeySpecBits, KeyTyp: KeyTypeRSAPrv, Bits: 1024}, Attributes{})
	require.NoError(t, err)

	_, pub, err := ctx.MakePublic(p, prv, Attributes{})
	require.NoError(t, err)
	require.Equal(t, KeyTypeRSAPub, pub.typ)
	require.Equal(t, prv.rsaPrv.ELen, pub.rsaPub.ELen)
}

func TestMakePublicWrongKeyTypeNotSupported(t *testing.T) {
	ctx := newTestCryptoContext(t, ModeLibrary)
	p, k, err := ctx.GenerateKey(KeySpec{Type: KeySpecBits, KeyTyp: KeyTypeAES, Bits: 128}, Attributes{})
	require.NoError(t, err)

	_, _, err = ctx.MakePublic(p, k, Attributes{})
	require.Equal(t, ErrNotSupported, err)
}

func TestKeyZeroizeWipesSecretMaterialOnly(t *testing.T) {
	ctx := newTestCryptoContext(t, ModeLibrary)
	_, k, err := ctx.GenerateKey(KeySpec{Type: KeySpecBits, KeyTyp: KeyTypeAES, Bits: 128}, Attributes{})
	require.NoError(t, err)

	k.Zeroize()
	for _, b := range k.aes.Bytes {
		require.Equal(t, byte(0), b)
	}
}
