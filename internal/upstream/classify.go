package upstream

import (
	"net/http"
	"strconv"
	"time"

	"github.com/samber/mo"

	"github.com/pollenlabs/pollen-relay/internal/keypool"
)

// Classify maps an upstream HTTP status to the outcome taxonomy:
//
//	2xx      -> success
//	429      -> rate_limited (with Retry-After when present)
//	401/403  -> auth_error (the credential is bad, not the upstream)
//	anything else -> transient_error
//
// Non-auth 4xx responses land in transient_error: the taxonomy has no
// caller-fault class, and cooling the key briefly is the safe default.
func Classify(statusCode int, headers http.Header) keypool.Outcome {
	switch {
	case statusCode >= 200 && statusCode < 300:
		return keypool.Outcome{Class: keypool.ClassSuccess, RetryAfter: mo.None[time.Duration]()}
	case statusCode == http.StatusTooManyRequests:
		return keypool.Outcome{Class: keypool.ClassRateLimited, RetryAfter: ParseRetryAfter(headers)}
	case statusCode == http.StatusUnauthorized || statusCode == http.StatusForbidden:
		return keypool.Outcome{Class: keypool.ClassAuthError, RetryAfter: mo.None[time.Duration]()}
	default:
		return transientOutcome()
	}
}

func transientOutcome() keypool.Outcome {
	return keypool.Outcome{Class: keypool.ClassTransientError, RetryAfter: mo.None[time.Duration]()}
}

// ParseRetryAfter extracts the Retry-After header as a duration.
// Accepts both delay-seconds and HTTP-date forms (RFC 9110). Returns None
// when absent or unparsable, or when a date is already in the past.
func ParseRetryAfter(headers http.Header) mo.Option[time.Duration] {
	value := headers.Get("Retry-After")
	if value == "" {
		return mo.None[time.Duration]()
	}

	if seconds, err := strconv.Atoi(value); err == nil {
		if seconds < 0 {
			return mo.None[time.Duration]()
		}
		return mo.Some(time.Duration(seconds) * time.Second)
	}

	if at, err := http.ParseTime(value); err == nil {
		delay := time.Until(at)
		if delay > 0 {
			return mo.Some(delay)
		}
	}

	return mo.None[time.Duration]()
}
