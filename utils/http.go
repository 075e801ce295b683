// utils/http.go
package utils

import (
	"net/http"
	"time"
)

// HTTPClient is the shared client for external gateway calls. The timeout
// keeps payout calls off the critical path from hanging the scheduler.
var HTTPClient = &http.Client{
	Timeout: 15 * time.Second,
}
