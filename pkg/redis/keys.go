package redis

import "strings"

// Keys are colon separated under the pm namespace, for example
// pm:lock:purge:<place id>.
const (
	keyNamespace      = "pm"
	idempotencyPrefix = "idempotency"
	lockPrefix        = "lock"
)

func (c *Client) IdempotencyKey(scope, id string) string {
	return joinKey(idempotencyPrefix, scope, id)
}

func (c *Client) LockKey(scope, id string) string {
	return joinKey(lockPrefix, scope, id)
}

func joinKey(parts ...string) string {
	var b strings.Builder
	b.WriteString(keyNamespace)
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		b.WriteByte(':')
		b.WriteString(part)
	}
	return b.String()
}
