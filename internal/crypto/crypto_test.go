package crypto

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// A well-known throwaway key (hardhat account #0), safe to embed in tests.
const testKey = "ac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80"

func TestNewSignerDerivesAddress(t *testing.T) {
	s, err := NewSigner(testKey, 137)
	require.NoError(t, err)
	assert.Equal(t, "0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266", s.Address().Hex())

	// 0x prefix is accepted too.
	s2, err := NewSigner("0x"+testKey, 137)
	require.NoError(t, err)
	assert.Equal(t, s.Address(), s2.Address())
}

func TestNewSignerRejectsBadKey(t *testing.T) {
	_, err := NewSigner("not-hex", 137)
	assert.Error(t, err)
}

func TestSignAuthMessageDeterministic(t *testing.T) {
	s, err := NewSigner(testKey, 137)
	require.NoError(t, err)

	sig1, err := s.SignAuthMessage(1700000000, 0)
	require.NoError(t, err)
	sig2, err := s.SignAuthMessage(1700000000, 0)
	require.NoError(t, err)

	assert.Equal(t, sig1, sig2)
	assert.True(t, strings.HasPrefix(sig1, "0x"))
	assert.Len(t, sig1, 2+130) // 65 bytes hex-encoded

	// v must be normalized to 27/28.
	v := sig1[len(sig1)-2:]
	assert.Contains(t, []string{"1b", "1c"}, v)
}

func TestSignOrder(t *testing.T) {
	s, err := NewSigner(testKey, 137)
	require.NoError(t, err)

	order := OrderPayload{
		Salt:        "12345",
		Maker:       s.Address().Hex(),
		Signer:      s.Address().Hex(),
		Taker:       "0x0000000000000000000000000000000000000000",
		TokenID:     "7128376124",
		MakerAmount: "4100000",
		TakerAmount: "10000000",
		Expiration:  "0",
		Nonce:       "0",
		FeeRateBps:  "0",
		Side:        0,
	}
	sig, err := s.SignOrder(order)
	require.NoError(t, err)
	assert.Len(t, sig, 2+130)

	// A different token must produce a different signature.
	order.TokenID = "7128376125"
	sig2, err := s.SignOrder(order)
	require.NoError(t, err)
	assert.NotEqual(t, sig, sig2)
}

func TestSignOrderRejectsBadNumbers(t *testing.T) {
	s, err := NewSigner(testKey, 137)
	require.NoError(t, err)

	_, err = s.SignOrder(OrderPayload{Salt: "xyz"})
	assert.Error(t, err)
}

func TestL2HeadersShape(t *testing.T) {
	auth := &HMACAuth{Key: "key", Secret: "c2VjcmV0", Passphrase: "pass"}
	hdrs := auth.L2Headers("0xabc", "GET", "/data/orders", "")

	assert.Equal(t, "0xabc", hdrs["POLY_ADDRESS"])
	assert.Equal(t, "key", hdrs["POLY_API_KEY"])
	assert.Equal(t, "pass", hdrs["POLY_PASSPHRASE"])
	assert.NotEmpty(t, hdrs["POLY_TIMESTAMP"])
	assert.NotEmpty(t, hdrs["POLY_SIGNATURE"])
}

func TestEncryptDecryptRoundTrip(t *testing.T) {
	blob, err := EncryptKey(testKey, "hunter2")
	require.NoError(t, err)

	got, err := DecryptKey(blob, "hunter2")
	require.NoError(t, err)
	assert.Equal(t, testKey, got)

	_, err = DecryptKey(blob, "wrong")
	assert.Error(t, err)
}

func TestLoadKeyPrecedence(t *testing.T) {
	got, err := LoadKey(KeyConfig{RawPrivateKey: "0x" + testKey})
	require.NoError(t, err)
	assert.Equal(t, testKey, got)

	_, err = LoadKey(KeyConfig{})
	assert.Error(t, err)
}
