package mailer

import "context"

// Gateway sends a single HTML email to a set of recipients. Implementations
// own transport concerns (provider APIs, retries); callers treat failures as
// non-fatal and only log them.
type Gateway interface {
	Send(ctx context.Context, to []string, subject, htmlBody string) error
}
