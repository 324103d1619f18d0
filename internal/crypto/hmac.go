package crypto

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"strconv"
	"time"
)

// HMACAuth holds the API credentials for L2-authenticated requests against
// the order-book venue, obtained by deriving an API key from the signer.
type HMACAuth struct {
	Key        string
	Secret     string // base64-encoded
	Passphrase string
}

// L2Headers returns the headers for one authenticated request. The signature
// is HMAC-SHA256(base64-decoded secret, timestamp+method+path+body), base64
// encoded.
func (h *HMACAuth) L2Headers(address, method, path, body string) map[string]string {
	ts := strconv.FormatInt(time.Now().Unix(), 10)

	secretBytes, err := base64.StdEncoding.DecodeString(h.Secret)
	if err != nil {
		// An undecodable secret produces an obviously-wrong signature, which
		// the venue rejects loudly; better than panicking mid-request.
		secretBytes = []byte(h.Secret)
	}

	mac := hmac.New(sha256.New, secretBytes)
	mac.Write([]byte(ts + method + path + body))
	sig := base64.StdEncoding.EncodeToString(mac.Sum(nil))

	return map[string]string{
		"POLY_ADDRESS":    address,
		"POLY_API_KEY":    h.Key,
		"POLY_TIMESTAMP":  ts,
		"POLY_PASSPHRASE": h.Passphrase,
		"POLY_SIGNATURE":  sig,
	}
}
