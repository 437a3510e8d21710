package sender

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
)

// classifyHTTPStatus maps a provider HTTP status to an outcome kind.
// 2xx is accepted. 408 and 429 are retry hints despite being 4xx; every
// other 4xx means the request itself is bad and retrying cannot help.
// 5xx is the provider's problem and worth retrying.
func classifyHTTPStatus(status int) OutcomeKind {
	switch {
	case status >= 200 && status < 300:
		return Accepted
	case status == http.StatusRequestTimeout, status == http.StatusTooManyRequests:
		return TransientFailure
	case status >= 400 && status < 500:
		return PermanentFailure
	default:
		return TransientFailure
	}
}

// classifyTransportError turns a failed HTTP round trip into an outcome.
// Network-level failures never prove the recipient is bad, so they are
// always transient.
func classifyTransportError(provider string, err error) Outcome {
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return transient(fmt.Sprintf("%s request timed out", provider), err.Error())
	}
	return transient(fmt.Sprintf("%s request failed: %v", provider, err), err.Error())
}
