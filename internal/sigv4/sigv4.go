package sigv4

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"
)

const (
	// Algorithm is the fixed algorithm token used in the Authorization header.
	Algorithm = "AWS4-HMAC-SHA256"

	// UnsignedPayload is the sentinel payload hash used for requests whose
	// body is not hashed (GET/HEAD).
	UnsignedPayload = "UNSIGNED-PAYLOAD"

	amzDateFormat = "20060102T150405Z"
)

// ErrMissingCredentials is returned by Sign when the access key or secret is
// empty. Signing fails before any network call is made.
var ErrMissingCredentials = errors.New("sigv4: access key and secret must be configured")

// Signer computes AWS Signature Version 4 authorization headers.
type Signer struct {
	AccessKeyID     string
	SecretAccessKey string
	Region          string
	Service         string
}

// NewSigner creates a Signer for the given credentials and region, with the
// service fixed to "s3".
func NewSigner(accessKeyID, secretAccessKey, region string) *Signer {
	return &Signer{
		AccessKeyID:     accessKeyID,
		SecretAccessKey: secretAccessKey,
		Region:          region,
		Service:         "s3",
	}
}

// Sign computes the SigV4 signature for req at the given time and sets the
// Host, X-Amz-Date, X-Amz-Content-Sha256 and Authorization headers in place.
// payloadHash is the lowercase hex SHA-256 of the request body, or
// UnsignedPayload for requests signed without a body hash.
func (s *Signer) Sign(req *http.Request, payloadHash string, now time.Time) error {
	if s.AccessKeyID == "" || s.SecretAccessKey == "" {
		return ErrMissingCredentials
	}

	amzDate := now.UTC().Format(amzDateFormat)
	dateStamp := amzDate[:8]

	host := req.Host
	if host == "" {
		host = req.URL.Host
	}
	req.Header.Set("Host", host)
	req.Header.Set("X-Amz-Date", amzDate)
	req.Header.Set("X-Amz-Content-Sha256", payloadHash)

	signedHeaderNames := []string{"host", "x-amz-content-sha256", "x-amz-date"}
	canonicalReq := BuildCanonicalRequest(req, signedHeaderNames, payloadHash)
	crHash := sha256.Sum256([]byte(canonicalReq))

	credentialScope := strings.Join([]string{dateStamp, s.Region, s.Service, "aws4_request"}, "/")

	var sts strings.Builder
	sts.WriteString(Algorithm)
	sts.WriteString("\n")
	sts.WriteString(amzDate)
	sts.WriteString("\n")
	sts.WriteString(credentialScope)
	sts.WriteString("\n")
	sts.WriteString(hex.EncodeToString(crHash[:]))

	kSecret := []byte("AWS4" + s.SecretAccessKey)
	kDate := hmacSHA256(kSecret, dateStamp)
	kRegion := hmacSHA256(kDate, s.Region)
	kService := hmacSHA256(kRegion, s.Service)
	kSigning := hmacSHA256(kService, "aws4_request")
	signature := hex.EncodeToString(hmacSHA256(kSigning, sts.String()))

	var auth strings.Builder
	auth.WriteString(Algorithm)
	auth.WriteString(" Credential=")
	auth.WriteString(s.AccessKeyID)
	auth.WriteString("/")
	auth.WriteString(credentialScope)
	auth.WriteString(", SignedHeaders=")
	auth.WriteString(strings.Join(signedHeaderNames, ";"))
	auth.WriteString(", Signature=")
	auth.WriteString(signature)

	req.Header.Set("Authorization", auth.String())
	return nil
}

func awsURLEncode(s string, encodeSlash bool) string {
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		c := s[i]
		if (c >= 'A' && c <= 'Z') || (c >= 'a' && c <= 'z') || (c >= '0' && c <= '9') || c == '-' || c == '_' || c == '.' || c == '~' {
			b.WriteByte(c)
			continue
		}
		if c == '/' && !encodeSlash {
			b.WriteByte(c)
			continue
		}
		b.WriteString("%")
		b.WriteString(strings.ToUpper(hex.EncodeToString([]byte{c})))
	}
	return b.String()
}

func canonicalQueryString(u *url.URL) string {
	if u.RawQuery == "" {
		return ""
	}

	values := u.Query()
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var parts []string
	for _, k := range keys {
		vs := values[k]
		sort.Strings(vs)
		for _, v := range vs {
			encodedKey := awsURLEncode(k, true)
			encodedVal := awsURLEncode(v, true)
			parts = append(parts, encodedKey+"="+encodedVal)
		}
	}

	return strings.Join(parts, "&")
}

func canonicalHeaderValue(v string) string {
	v = strings.TrimSpace(v)
	if v == "" {
		return ""
	}
	fields := strings.Fields(v)
	return strings.Join(fields, " ")
}

// BuildCanonicalRequest assembles the SigV4 canonical request string for r.
// Header names in signedHeaderNames must be provided in the order they are to
// appear (lowercased and sorted by the caller).
func BuildCanonicalRequest(r *http.Request, signedHeaderNames []string, payloadHash string) string {
	canonicalURI := awsURLEncode(r.URL.EscapedPath(), false)
	canonicalQS := canonicalQueryString(r.URL)

	lowerNames := make([]string, len(signedHeaderNames))
	for i, h := range signedHeaderNames {
		lowerNames[i] = strings.ToLower(strings.TrimSpace(h))
	}

	var hdrBuilder strings.Builder
	for _, name := range lowerNames {
		if name == "" {
			continue
		}
		var value string
		if name == "host" {
			value = r.Host
			if value == "" {
				value = r.URL.Host
			}
		} else {
			value = r.Header.Get(name)
		}
		value = canonicalHeaderValue(value)
		hdrBuilder.WriteString(name)
		hdrBuilder.WriteString(":")
		hdrBuilder.WriteString(value)
		hdrBuilder.WriteString("\n")
	}
	canonicalHeaders := hdrBuilder.String()
	canonicalSignedHeaders := strings.Join(lowerNames, ";")

	var b strings.Builder
	b.WriteString(r.Method)
	b.WriteString("\n")
	b.WriteString(canonicalURI)
	b.WriteString("\n")
	b.WriteString(canonicalQS)
	b.WriteString("\n")
	b.WriteString(canonicalHeaders)
	b.WriteString("\n")
	b.WriteString(canonicalSignedHeaders)
	b.WriteString("\n")
	b.WriteString(payloadHash)

	return b.String()
}

// PayloadHash returns the lowercase hex SHA-256 digest of data, suitable for
// the X-Amz-Content-Sha256 header.
func PayloadHash(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

func hmacSHA256(key []byte, data string) []byte {
	h := hmac.New(sha256.New, key)
	h.Write([]byte(data))
	return h.Sum(nil)
}
