package awsclient

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"time"
)

const (
	sigAlgorithm  = "AWS4-HMAC-SHA256"
	amzDateLayout = "20060102T150405Z"
)

type signer struct {
	service      string
	region       string
	accessKey    string
	secretKey    string
	sessionToken string
}

func (s signer) configured() bool {
	return s.region != "" && s.accessKey != "" && s.secretKey != ""
}

// sign adds SigV4 headers for a request whose path is "/" and has no query.
func (s signer) sign(req *http.Request, payload []byte, now time.Time) error {
	host := req.URL.Host
	if host == "" {
		return errors.New("aws host missing")
	}
	req.Header.Set("Host", host)
	amzDate := now.Format(amzDateLayout)
	req.Header.Set("X-Amz-Date", amzDate)
	if s.sessionToken != "" {
		req.Header.Set("X-Amz-Security-Token", s.sessionToken)
	}

	canonicalHeaders, signedHeaders := canonicalizeHeaders(req.Header)
	canonicalRequest := strings.Join([]string{
		req.Method,
		"/",
		"",
		canonicalHeaders,
		signedHeaders,
		sha256Hex(payload),
	}, "\n")

	date := amzDate[:8]
	scope := strings.Join([]string{date, s.region, s.service, "aws4_request"}, "/")
	stringToSign := strings.Join([]string{
		sigAlgorithm,
		amzDate,
		scope,
		sha256Hex([]byte(canonicalRequest)),
	}, "\n")

	signature := hex.EncodeToString(hmacSHA256(s.signingKey(date), []byte(stringToSign)))
	req.Header.Set("Authorization", fmt.Sprintf(
		"%s Credential=%s/%s, SignedHeaders=%s, Signature=%s",
		sigAlgorithm,
		s.accessKey,
		scope,
		signedHeaders,
		signature,
	))
	return nil
}

func (s signer) signingKey(date string) []byte {
	key := hmacSHA256([]byte("AWS4"+s.secretKey), []byte(date))
	for _, part := range []string{s.region, s.service, "aws4_request"} {
		key = hmacSHA256(key, []byte(part))
	}
	return key
}

func canonicalizeHeaders(headers http.Header) (string, string) {
	names := make([]string, 0, len(headers))
	for name := range headers {
		names = append(names, strings.ToLower(name))
	}
	sort.Strings(names)
	var b strings.Builder
	for _, name := range names {
		values := headers.Values(name)
		trimmed := make([]string, len(values))
		for i, v := range values {
			trimmed[i] = strings.TrimSpace(v)
		}
		b.WriteString(name)
		b.WriteString(":")
		b.WriteString(strings.Join(trimmed, ","))
		b.WriteString("\n")
	}
	return b.String(), strings.Join(names, ";")
}

func hmacSHA256(key, data []byte) []byte {
	mac := hmac.New(sha256.New, key)
	mac.Write(data)
	return mac.Sum(nil)
}

func sha256Hex(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
