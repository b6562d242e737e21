// Package signer derives presigned websocket URLs for the live stats
// channel. The receiving gateway verifies a SigV4-style query signature, so
// the canonical request and parameter order here are a bit-exact contract.
package signer

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"net/url"
	"strings"
	"time"
)

const (
	algorithm     = "AWS4-HMAC-SHA256"
	scopeSuffix   = "aws4_request"
	secretPrefix  = "AWS4"
	method        = "GET"
	signedHeaders = "host"

	amzTimeLayout = "20060102T150405Z"
)

// Credentials are the temporary keys minted by the identity provider.
type Credentials struct {
	AccessKeyID     string
	SecretAccessKey string
	SessionToken    string
}

// Signer produces signed connection URLs for one gateway service. The clock
// is injectable so signing stays deterministic under test; both the
// credential scope date and the query timestamp are drawn from a single
// snapshot of it.
type Signer struct {
	service string
	path    string
	now     func() time.Time
}

// Option configures a Signer.
type Option func(*Signer)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Signer) { s.now = now }
}

// WithPath overrides the canonical request path (default "/mqtt").
func WithPath(path string) Option {
	return func(s *Signer) { s.path = path }
}

// New creates a Signer for the given service identifier.
func New(service string, opts ...Option) (*Signer, error) {
	if strings.TrimSpace(service) == "" {
		return nil, errors.New("signer: service must not be empty")
	}
	s := &Signer{
		service: service,
		path:    "/mqtt",
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// SignURL builds a fully signed wss:// URL for a single connection attempt.
// The result is ephemeral: it embeds the current timestamp and must not be
// reused beyond the credential's validity window.
func (s *Signer) SignURL(endpoint, region string, creds Credentials) (string, error) {
	host := strings.TrimPrefix(strings.TrimPrefix(endpoint, "wss://"), "ws://")
	host = strings.TrimSuffix(host, "/")
	if host == "" {
		return "", errors.New("signer: endpoint must not be empty")
	}
	if strings.TrimSpace(region) == "" {
		return "", errors.New("signer: region must not be empty")
	}
	if creds.AccessKeyID == "" || creds.SecretAccessKey == "" {
		return "", errors.New("signer: credentials are missing")
	}

	now := s.now().UTC()
	amzDate := now.Format(amzTimeLayout)
	dateStamp := amzDate[:8]
	credentialScope := dateStamp + "/" + region + "/" + s.service + "/" + scopeSuffix

	// Parameter order is fixed by the receiver; do not sort or reorder.
	queryParams := []string{
		"X-Amz-Algorithm=" + algorithm,
		"X-Amz-Credential=" + uriEscape(creds.AccessKeyID+"/"+credentialScope),
		"X-Amz-Date=" + amzDate,
		"X-Amz-SignedHeaders=" + signedHeaders,
		"X-Amz-Security-Token=" + uriEscape(creds.SessionToken),
	}
	canonicalQuery := strings.Join(queryParams, "&")

	canonicalRequest := strings.Join([]string{
		method,
		s.path,
		canonicalQuery,
		"host:" + host + "\n",
		signedHeaders,
		hashHex(""),
	}, "\n")

	stringToSign := strings.Join([]string{
		algorithm,
		amzDate,
		credentialScope,
		hashHex(canonicalRequest),
	}, "\n")

	key := signingKey(creds.SecretAccessKey, dateStamp, region, s.service)
	signature := hex.EncodeToString(hmacSHA256(key, stringToSign))

	return "wss://" + host + s.path + "?" + canonicalQuery + "&X-Amz-Signature=" + signature, nil
}

// signingKey chains keyed hashes over the scope components; each digest
// keys the next step.
func signingKey(secret, dateStamp, region, service string) []byte {
	kDate := hmacSHA256([]byte(secretPrefix+secret), dateStamp)
	kRegion := hmacSHA256(kDate, region)
	kService := hmacSHA256(kRegion, service)
	return hmacSHA256(kService, scopeSuffix)
}

func hmacSHA256(key []byte, msg string) []byte {
	mac := hmac.New(sha256.New, key)
	mac.Write([]byte(msg))
	return mac.Sum(nil)
}

func hashHex(payload string) string {
	sum := sha256.Sum256([]byte(payload))
	return hex.EncodeToString(sum[:])
}

// uriEscape percent-encodes everything except RFC 3986 unreserved
// characters. url.QueryEscape is close but uses '+' for spaces.
func uriEscape(s string) string {
	return strings.ReplaceAll(url.QueryEscape(s), "+", "%20")
}
