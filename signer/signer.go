package signer

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
)

// Canonical request constants. The cluster validates signatures against
// the service host, never against the endpoint actually dialed.
const (
	serviceName   = "dax"
	canonicalHost = "dax.amazonaws.com"
	contentType   = "application/x-amz-cbor-1.1"

	timeFormat = "20060102T150405Z"
	dateFormat = "20060102"
)

// emptyPayloadHash is the SHA-256 of the empty string.
var emptyPayloadHash = hex.EncodeToString(func() []byte {
	h := sha256.Sum256(nil)
	return h[:]
}())

// Material is the signature output consumed by the authorization frame.
type Material struct {
	AccessKeyID  string
	Signature    string // hex encoded
	StringToSign []byte
	SessionToken string // empty when the credentials carry no token
}

// Signer produces fresh signature material for one authorization frame.
type Signer interface {
	Sign(ctx context.Context, now time.Time) (Material, error)
}

// sigV4 derives Signature V4 material from an AWS credentials provider.
type sigV4 struct {
	region string
	creds  aws.CredentialsProvider
}

// NewSigV4 creates a signer for the given region backed by the provider.
func NewSigV4(region string, creds aws.CredentialsProvider) Signer {
	return &sigV4{region: region, creds: creds}
}

func (s *sigV4) Sign(ctx context.Context, now time.Time) (Material, error) {
	if s.creds == nil {
		return Material{}, fmt.Errorf("signer: no credentials provider")
	}
	creds, err := s.creds.Retrieve(ctx)
	if err != nil {
		return Material{}, fmt.Errorf("signer: retrieve credentials: %w", err)
	}

	ts := now.UTC().Format(timeFormat)
	date := now.UTC().Format(dateFormat)

	canonical := canonicalRequest(ts, creds.SessionToken)
	scope := date + "/" + s.region + "/" + serviceName + "/aws4_request"

	crHash := sha256.Sum256([]byte(canonical))
	stringToSign := strings.Join([]string{
		"AWS4-HMAC-SHA256",
		ts,
		scope,
		hex.EncodeToString(crHash[:]),
	}, "\n")

	key := signingKey(creds.SecretAccessKey, date, s.region)
	sig := hmacSHA256(key, []byte(stringToSign))

	return Material{
		AccessKeyID:  creds.AccessKeyID,
		Signature:    hex.EncodeToString(sig),
		StringToSign: []byte(stringToSign),
		SessionToken: creds.SessionToken,
	}, nil
}

// canonicalRequest builds the fixed POST-to-root request with the signed
// headers lowercased and alphabetically sorted.
func canonicalRequest(ts, token string) string {
	headers := []string{
		"content-type:" + contentType,
		"host:" + canonicalHost,
		"x-amz-date:" + ts,
	}
	signed := "content-type;host;x-amz-date"
	if token != "" {
		headers = append(headers, "x-amz-security-token:"+token)
		signed += ";x-amz-security-token"
	}

	return strings.Join([]string{
		"POST",
		"/",
		"", // no query string
		strings.Join(headers, "\n") + "\n",
		signed,
		emptyPayloadHash,
	}, "\n")
}

// signingKey runs the V4 key derivation chain.
func signingKey(secret, date, region string) []byte {
	k := hmacSHA256([]byte("AWS4"+secret), []byte(date))
	k = hmacSHA256(k, []byte(region))
	k = hmacSHA256(k, []byte(serviceName))
	return hmacSHA256(k, []byte("aws4_request"))
}

func hmacSHA256(key, data []byte) []byte {
	h := hmac.New(sha256.New, key)
	h.Write(data)
	return h.Sum(nil)
}
