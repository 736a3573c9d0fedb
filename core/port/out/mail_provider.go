// Package out defines outbound ports (driven ports) for the application.
package out

import (
	"context"
	"time"

	"jobscout/core/domain"
)

// =============================================================================
// Mail Provider Port
// =============================================================================

// MailProvider is the outbound port for the mailbox. Implementations must
// tolerate transient auth failures; the token guardian wraps each call with
// a single refresh-and-retry.
type MailProvider interface {
	// ListUnread returns unread messages received within the window.
	ListUnread(ctx context.Context, window time.Duration) ([]domain.InboundMessage, error)

	MarkRead(ctx context.Context, messageID string) error
	Archive(ctx context.Context, messageID string) error

	// MarkReadAndArchive combines both mailbox side effects for a finished
	// message.
	MarkReadAndArchive(ctx context.Context, messageID string) error
}
