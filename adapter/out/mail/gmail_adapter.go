// Package mail implements the mail provider port over the Gmail API.
package mail

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"time"

	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"

	"jobscout/core/domain"
	"jobscout/core/port/out"
	"jobscout/core/service/auth"
	"jobscout/pkg/logger"
)

// GmailAdapter implements out.MailProvider for a single Gmail mailbox. Every
// API call goes through the token guardian, which refreshes the access token
// once and retries on auth-class failures.
type GmailAdapter struct {
	guardian *auth.Guardian
	account  string
	newSvc   func(ctx context.Context, accessToken string) (*gmail.Service, error)
}

var _ out.MailProvider = (*GmailAdapter)(nil)

// NewGmailAdapter creates the Gmail-backed mail provider. account is the
// mailbox user id, normally "me".
func NewGmailAdapter(guardian *auth.Guardian, account string) *GmailAdapter {
	if account == "" {
		account = "me"
	}
	return &GmailAdapter{
		guardian: guardian,
		account:  account,
		newSvc: func(ctx context.Context, accessToken string) (*gmail.Service, error) {
			return gmail.NewService(ctx, option.WithHTTPClient(&http.Client{
				Transport: &staticTokenTransport{token: accessToken},
				Timeout:   30 * time.Second,
			}))
		},
	}
}

// staticTokenTransport injects the guardian-supplied access token per
// request. Token lifecycle stays with the guardian, not oauth2.TokenSource,
// so the single-refresh-and-retry policy holds.
type staticTokenTransport struct {
	token string
}

func (t *staticTokenTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	clone := req.Clone(req.Context())
	clone.Header.Set("Authorization", "Bearer "+t.token)
	return http.DefaultTransport.RoundTrip(clone)
}

// ListUnread returns unread inbox messages received within the window.
func (g *GmailAdapter) ListUnread(ctx context.Context, window time.Duration) ([]domain.InboundMessage, error) {
	var msgs []domain.InboundMessage
	err := g.guardian.WrapCall(ctx, func(accessToken string) error {
		svc, err := g.newSvc(ctx, accessToken)
		if err != nil {
			return fmt.Errorf("gmail service: %w", err)
		}

		after := time.Now().Add(-window).Unix()
		query := fmt.Sprintf("is:unread in:inbox after:%d", after)

		var ids []string
		pageToken := ""
		for {
			req := svc.Users.Messages.List(g.account).Q(query).MaxResults(100)
			if pageToken != "" {
				req = req.PageToken(pageToken)
			}
			resp, err := req.Context(ctx).Do()
			if err != nil {
				return fmt.Errorf("list messages: %w", err)
			}
			for _, m := range resp.Messages {
				ids = append(ids, m.Id)
			}
			if resp.NextPageToken == "" {
				break
			}
			pageToken = resp.NextPageToken
		}

		msgs = make([]domain.InboundMessage, 0, len(ids))
		for _, id := range ids {
			full, err := svc.Users.Messages.Get(g.account, id).Format("full").Context(ctx).Do()
			if err != nil {
				// One unreadable message should not sink the whole fetch.
				logger.WithMessage(id).WithError(err).Warn("failed to fetch message, skipping")
				continue
			}
			msgs = append(msgs, parseMessage(full))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return msgs, nil
}

// MarkRead removes the UNREAD label.
func (g *GmailAdapter) MarkRead(ctx context.Context, messageID string) error {
	return g.modify(ctx, messageID, &gmail.ModifyMessageRequest{
		RemoveLabelIds: []string{"UNREAD"},
	})
}

// Archive removes the INBOX label.
func (g *GmailAdapter) Archive(ctx context.Context, messageID string) error {
	return g.modify(ctx, messageID, &gmail.ModifyMessageRequest{
		RemoveLabelIds: []string{"INBOX"},
	})
}

// MarkReadAndArchive removes both labels in one call.
func (g *GmailAdapter) MarkReadAndArchive(ctx context.Context, messageID string) error {
	return g.modify(ctx, messageID, &gmail.ModifyMessageRequest{
		RemoveLabelIds: []string{"UNREAD", "INBOX"},
	})
}

func (g *GmailAdapter) modify(ctx context.Context, messageID string, req *gmail.ModifyMessageRequest) error {
	return g.guardian.WrapCall(ctx, func(accessToken string) error {
		svc, err := g.newSvc(ctx, accessToken)
		if err != nil {
			return fmt.Errorf("gmail service: %w", err)
		}
		_, err = svc.Users.Messages.Modify(g.account, messageID, req).Context(ctx).Do()
		return err
	})
}

func parseMessage(msg *gmail.Message) domain.InboundMessage {
	m := domain.InboundMessage{
		ID:         msg.Id,
		ReceivedAt: time.Unix(msg.InternalDate/1000, 0),
	}
	if msg.Payload == nil {
		m.Body = msg.Snippet
		return m
	}

	for _, header := range msg.Payload.Headers {
		switch header.Name {
		case "From":
			m.From = header.Value
		case "Subject":
			m.Subject = header.Value
		}
	}

	text, html := parseBody(msg.Payload)
	switch {
	case text != "":
		m.Body = text
	case html != "":
		m.Body = html
	default:
		m.Body = msg.Snippet
	}
	return m
}

// parseBody walks the MIME tree and returns the first text/plain and
// text/html parts found.
func parseBody(payload *gmail.MessagePart) (text, html string) {
	if payload == nil {
		return "", ""
	}

	if payload.Body != nil && payload.Body.Data != "" {
		// Gmail encodes bodies as unpadded base64url.
		data, err := base64.RawURLEncoding.DecodeString(payload.Body.Data)
		if err != nil {
			data, err = base64.URLEncoding.DecodeString(payload.Body.Data)
		}
		if err == nil {
			switch payload.MimeType {
			case "text/plain":
				text = string(data)
			case "text/html":
				html = string(data)
			}
		}
	}

	for _, part := range payload.Parts {
		t, h := parseBody(part)
		if text == "" {
			text = t
		}
		if html == "" {
			html = h
		}
	}
	return text, html
}
