package core

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAgreementDHSymmetric(t *testing.T) {
	ctx, err := NewCryptoContext(CryptoConfig{})
	require.NoError(t, err)

	params, err := LoadParams("dh2048")
	require.NoError(t, err)

	_, kA, err := ctx.GenerateKey(KeySpec{Type: KeySpecBits, KeyTyp: KeyTypeDHPrv, Bits: 2048, Params: params}, Attributes{})
	require.NoError(t, err)
	_, kB, err := ctx.GenerateKey(KeySpec{Type: KeySpecBits, KeyTyp: KeyTypeDHPrv, Bits: 2048, Params: params}, Attributes{})
	require.NoError(t, err)

	_, pubA, err := ctx.MakePublic(&Proxy{}, kA, Attributes{})
	require.NoError(t, err)
	_, pubB, err := ctx.MakePublic(&Proxy{}, kB, Attributes{})
	require.NoError(t, err)

	_, agreeA, err := NewAgreement(&Proxy{}, kA)
	require.NoError(t, err)
	_, agreeB, err := NewAgreement(&Proxy{}, kB)
	require.NoError(t, err)

	secretA, err := agreeA.Agree(pubB)
	require.NoError(t, err)
	secretB, err := agreeB.Agree(pubA)
	require.NoError(t, err)

	require.Equal(t, secretA, secretB)
}

func TestAgreementECDHSymmetric(t *testing.T) {
	ctx, err := NewCryptoContext(CryptoConfig{})
	require.NoError(t, err)

	_, kA, err := ctx.GenerateKey(KeySpec{Type: KeySpecBits, KeyTyp: KeyTypeSECP256R1Prv}, Attributes{})
	require.NoError(t, err)
	_, kB, err := ctx.GenerateKey(KeySpec{Type: KeySpecBits, KeyTyp: KeyTypeSECP256R1Prv}, Attributes{})
	require.NoError(t, err)

	_, pubA, err := ctx.MakePublic(&Proxy{}, kA, Attributes{})
	require.NoError(t, err)
	_, pubB, err := ctx.MakePublic(&Proxy{}, kB, Attributes{})
	require.NoError(t, err)

	_, agreeA, err := NewAgreement(&Proxy{}, kA)
	require.NoError(t, err)
	_, agreeB, err := NewAgreement(&Proxy{}, kB)
	require.NoError(t, err)

	secretA, err := agreeA.Agree(pubB)
	require.NoError(t, err)
	secretB, err := agreeB.Agree(pubA)
	require.NoError(t, err)

	require.Equal(t, secretA, secretB)
}
