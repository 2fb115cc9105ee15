// Package instance names the running process for logs and Pub/Sub receivers.
package instance

import (
	"os"

	"github.com/stmary/giftshop-backend/pkg/env"
)

// GetID returns GIFTSHOP_WORKER_ID, falling back to the hostname and then to
// a fixed default.
func GetID() string {
	if id := env.Get("GIFTSHOP_WORKER_ID", ""); id != "" {
		return id
	}
	if host, err := os.Hostname(); err == nil && host != "" {
		return host
	}
	return "worker-0"
}
