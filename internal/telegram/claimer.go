package telegram

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/flemzord/claimd/internal/claim"
)

const (
	defaultPollInterval = 2 * time.Second
	defaultPollAttempts = 5
	replyFetchLimit     = 5
)

// Config holds the claim interaction parameters.
type Config struct {
	// TargetPeer is the bonus bot, e.g. "@BonusBot".
	TargetPeer string

	// ClaimCommand is the message that makes the bot offer the claim,
	// e.g. "/claim".
	ClaimCommand string

	// ButtonLabel is matched (case-insensitive substring) against inline
	// button texts in the bot's reply.
	ButtonLabel string

	// PollInterval and PollAttempts bound the wait for the bot's reply.
	PollInterval time.Duration
	PollAttempts int
}

func (c Config) withDefaults() Config {
	if c.PollInterval <= 0 {
		c.PollInterval = defaultPollInterval
	}
	if c.PollAttempts <= 0 {
		c.PollAttempts = defaultPollAttempts
	}
	return c
}

// Claimer implements claim.Claimer on top of the bridge client.
type Claimer struct {
	client *Client
	cfg    Config
	logger *slog.Logger
}

var _ claim.Claimer = (*Claimer)(nil)

// NewClaimer creates a Claimer.
func NewClaimer(client *Client, cfg Config, logger *slog.Logger) *Claimer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Claimer{client: client, cfg: cfg.withDefaults(), logger: logger}
}

// Establish connects the stored credential on the bridge.
func (c *Claimer) Establish(ctx context.Context, credential string) (claim.RemoteSession, error) {
	sessionID, err := c.client.Connect(ctx, credential)
	if err != nil {
		return nil, mapErr(err)
	}
	return &remoteSession{claimer: c, sessionID: sessionID}, nil
}

// remoteSession is one connected account on the bridge.
type remoteSession struct {
	claimer   *Claimer
	sessionID string
}

var _ claim.RemoteSession = (*remoteSession)(nil)

// Claim sends the claim command to the target bot, waits for a reply
// carrying an inline keyboard, and clicks the button matching the
// configured label. A reply without the button, or no reply at all within
// the poll window, is claim.ErrUnavailable.
func (s *remoteSession) Claim(ctx context.Context) error {
	c := s.claimer
	cfg := c.cfg

	sent, err := c.client.SendMessage(ctx, s.sessionID, cfg.TargetPeer, cfg.ClaimCommand)
	if err != nil {
		return mapErr(err)
	}

	for attempt := 0; attempt < cfg.PollAttempts; attempt++ {
		timer := time.NewTimer(cfg.PollInterval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}

		msgs, err := c.client.GetMessages(ctx, s.sessionID, cfg.TargetPeer, replyFetchLimit)
		if err != nil {
			return mapErr(err)
		}

		for _, msg := range msgs {
			if msg.Out || msg.ID <= sent.ID {
				continue
			}
			btn, ok := findButton(msg, cfg.ButtonLabel)
			if !ok {
				continue
			}
			if err := c.client.ClickButton(ctx, s.sessionID, cfg.TargetPeer, msg.ID, btn.CallbackData); err != nil {
				return mapErr(err)
			}
			return nil
		}
	}

	return claim.ErrUnavailable
}

// Close disconnects the bridge session. Runs under its own short deadline
// because the caller's context may already be expired.
func (s *remoteSession) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.claimer.client.Disconnect(ctx, s.sessionID)
}

// findButton scans the message's inline keyboard for a button whose text
// contains label, case-insensitive.
func findButton(msg Message, label string) (InlineKeyboardButton, bool) {
	if msg.ReplyMarkup == nil {
		return InlineKeyboardButton{}, false
	}
	want := strings.ToLower(label)
	for _, row := range msg.ReplyMarkup.InlineKeyboard {
		for _, btn := range row {
			if strings.Contains(strings.ToLower(btn.Text), want) {
				return btn, true
			}
		}
	}
	return InlineKeyboardButton{}, false
}

// mapErr converts bridge API errors into the claim package's taxonomy:
// rate limiting becomes a typed flood wait, everything else passes through
// for the processor to classify.
func mapErr(err error) error {
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return err
	}

	if apiErr.RetryAfter > 0 {
		return &claim.FloodWaitError{Wait: time.Duration(apiErr.RetryAfter) * time.Second}
	}
	if wait, ok := claim.ParseFloodWait(apiErr.Description); ok {
		return &claim.FloodWaitError{Wait: wait}
	}

	return fmt.Errorf("telegram: %s (code %d)", apiErr.Description, apiErr.Code)
}
