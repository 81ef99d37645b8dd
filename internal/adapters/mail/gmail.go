// Package mail implements the outbound mail gateway.
package mail

import (
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/codeGROOVE-dev/retry"
	"google.golang.org/api/gmail/v1"
)

// GmailGateway sends mail through the Gmail API on behalf of the carpool
// account.
type GmailGateway struct {
	service *gmail.Service
	logger  *slog.Logger
	from    string
}

func NewGmailGateway(service *gmail.Service, logger *slog.Logger, from string) *GmailGateway {
	return &GmailGateway{
		service: service,
		logger:  logger,
		from:    from,
	}
}

func (g *GmailGateway) Send(ctx context.Context, to []string, subject, htmlBody string) error {
	if len(to) == 0 {
		return nil
	}

	var msg strings.Builder
	msg.WriteString("MIME-Version: 1.0\r\n")
	fmt.Fprintf(&msg, "From: %s\r\n", g.from)
	fmt.Fprintf(&msg, "To: %s\r\n", strings.Join(to, ", "))
	fmt.Fprintf(&msg, "Subject: %s\r\n", subject)
	msg.WriteString("Content-Type: text/html; charset=utf-8\r\n\r\n")
	msg.WriteString(htmlBody)
	encoded := base64.URLEncoding.EncodeToString([]byte(msg.String()))

	return retry.Do(
		func() error {
			start := time.Now()
			_, err := g.service.Users.Messages.Send("me", &gmail.Message{
				Raw: encoded,
			}).Context(ctx).Do()
			if err != nil {
				g.logger.Warn("Gmail API send failed, will retry",
					"recipients", len(to),
					"duration_ms", time.Since(start).Milliseconds(),
					"error", err)
				return err
			}
			g.logger.Info("mail sent",
				"recipients", len(to),
				"subject", subject,
				"duration_ms", time.Since(start).Milliseconds())
			return nil
		},
		retry.Attempts(5),
		retry.Delay(time.Second),
		retry.MaxDelay(30*time.Second),
		retry.DelayType(retry.BackOffDelay),
		retry.Context(ctx),
	)
}
