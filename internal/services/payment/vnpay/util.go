package vnpay

import (
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"net/url"
	"sort"
	"strings"
)

// signParams produces the vnp_SecureHash value: parameters sorted by key,
// encoded as key=value pairs joined with '&' (values url-encoded), then
// HMAC-SHA512 over the result, hex encoded.
func signParams(secret string, params url.Values) string {
	keys := make([]string, 0, len(params))
	for key := range params {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	var b strings.Builder
	for i, key := range keys {
		if i > 0 {
			b.WriteByte('&')
		}
		b.WriteString(key)
		b.WriteByte('=')
		b.WriteString(url.QueryEscape(params.Get(key)))
	}

	return hex.EncodeToString(hmac512([]byte(secret), []byte(b.String())))
}

func hmac512(key, data []byte) []byte {
	h := hmac.New(sha512.New, key)
	h.Write(data)
	return h.Sum(nil)
}

// signatureEqual compares two hex signatures in constant time,
// case-insensitively: VNPay uppercases hashes in some callbacks.
func signatureEqual(a, b string) bool {
	return hmac.Equal([]byte(strings.ToLower(a)), []byte(strings.ToLower(b)))
}
