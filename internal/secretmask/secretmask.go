// Package secretmask masks connection strings and credentials before they
// reach a log line.
package secretmask

// Mask shows the first and last 4 characters of secret and elides the rest,
// so a KV/broker URL with embedded credentials can still be logged for
// troubleshooting without leaking the credential itself.
func Mask(secret string) string {
	if secret == "" {
		return "<not set>"
	}
	if len(secret) <= 8 {
		return "***"
	}
	return secret[:4] + "..." + secret[len(secret)-4:]
}
