// Package publisher declares the outbound message contract for extracted records.
package publisher

import "context"

// Publisher sends one payload, tagged with attributes, and returns the server-assigned id.
type Publisher interface {
	Publish(ctx context.Context, attrs map[string]string, payload any) (string, error)
}
