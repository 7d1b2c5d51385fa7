package ubibot

import (
	"errors"
	"fmt"
	"net/url"
)

var ErrMissingAccountKey = errors.New("ubibot: account key is required")

// UpstreamError reports a failed call against the UbiBot API. StatusCode is
// zero when the request never got a response (transport error, timeout).
type UpstreamError struct {
	Op         string
	URL        string
	StatusCode int
	Err        error
}

func (e *UpstreamError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("ubibot %s %s: unexpected status %d", e.Op, e.URL, e.StatusCode)
	}
	return fmt.Sprintf("ubibot %s %s: %v", e.Op, e.URL, e.Err)
}

func (e *UpstreamError) Unwrap() error {
	return e.Err
}

// redact strips the account key so it never ends up in errors or logs.
func redact(u *url.URL) string {
	c := *u
	q := c.Query()
	if q.Has("account_key") {
		q.Set("account_key", "REDACTED")
		c.RawQuery = q.Encode()
	}
	return c.String()
}
