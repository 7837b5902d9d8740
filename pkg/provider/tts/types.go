package tts

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"strings"
)

// Kind classifies a provider failure.
type Kind string

const (
	// KindTransient covers network failures, timeouts, 5xx and any other
	// non-success response. The same request may succeed later.
	KindTransient Kind = "transient"

	// KindCredential means the provider rejected the configured credential.
	// It will keep failing until the credential changes.
	KindCredential Kind = "credential"

	// KindQuota means the account ran out of quota or hit a rate limit.
	KindQuota Kind = "quota"
)

// CredentialSignature is the marker an HTTP 401 body must contain to be
// classified as [KindCredential].
const CredentialSignature = "invalid_api_key"

// QuotaCode is the error code edge functions use for quota failures.
const QuotaCode = "quota_exceeded"

var quotaPattern = regexp.MustCompile(`(?i)quota[_ ]exceeded|resource_exhausted|too_many_concurrent_requests`)

// Error is a classified provider failure.
type Error struct {
	// Provider is the name of the failing provider.
	Provider string

	// Kind classifies the failure.
	Kind Kind

	// Status is the HTTP status code, or 0 for failures without a response.
	Status int

	// Body is a prefix of the error response body, for logs.
	Body string

	// Err is the underlying cause, if any.
	Err error
}

// Error implements error.
func (e *Error) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s: %s failure", e.Provider, e.Kind)
	if e.Status != 0 {
		fmt.Fprintf(&b, " (status %d)", e.Status)
	}
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	} else if e.Body != "" {
		fmt.Fprintf(&b, ": %s", e.Body)
	}
	return b.String()
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error { return e.Err }

// KindOf returns the [Kind] of err, or [KindTransient] when err carries no
// classification.
func KindOf(err error) Kind {
	var te *Error
	if errors.As(err, &te) {
		return te.Kind
	}
	return KindTransient
}

// IsCredential reports whether err is a credential failure.
func IsCredential(err error) bool { return err != nil && KindOf(err) == KindCredential }

// ClassifyOptions tunes [Classify].
type ClassifyOptions struct {
	// MatchCredential enables the 401 credential-signature rule. Only
	// providers whose 401 means a dead account key enable it.
	MatchCredential bool
}

// Classify turns a failed HTTP exchange into an [*Error]. status is the
// response status (0 when no response arrived) and body the response body.
func Classify(provider string, status int, body []byte, cause error, opts ClassifyOptions) *Error {
	e := &Error{
		Provider: provider,
		Kind:     KindTransient,
		Status:   status,
		Body:     truncateBody(body),
		Err:      cause,
	}
	switch {
	case status == 0:
		// Network error, timeout, or cancelled context.
	case status == http.StatusUnauthorized && opts.MatchCredential && strings.Contains(string(body), CredentialSignature):
		e.Kind = KindCredential
	case status == http.StatusTooManyRequests || quotaPattern.Match(body):
		e.Kind = KindQuota
	}
	return e
}

// ClassifyTransport wraps a transport-level error (no HTTP response). Context
// deadline and timeout errors are transient like any other network failure.
func ClassifyTransport(provider string, err error) *Error {
	if errors.Is(err, context.DeadlineExceeded) {
		err = fmt.Errorf("timeout: %w", err)
	}
	return Classify(provider, 0, nil, err, ClassifyOptions{})
}

const maxBodyInError = 512

func truncateBody(body []byte) string {
	s := strings.TrimSpace(string(body))
	if len(s) > maxBodyInError {
		s = s[:maxBodyInError]
	}
	return s
}

// IsAudioType reports whether contentType declares an audio payload.
func IsAudioType(contentType string) bool {
	return strings.HasPrefix(strings.ToLower(strings.TrimSpace(contentType)), "audio/")
}
