package alert

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/slack-go/slack"
)

// Slack posts alerts to a Slack channel via a webhook URL, retrying
// transient delivery failures the same way the teacher's webhook
// channel driver retries outbound notifications: a few attempts with
// linear backoff, logged and swallowed on final failure since alerting
// is fire-and-forget.
type Slack struct {
	webhookURL string
	channel    string
}

// NewSlack creates a Slack alerter posting to webhookURL.
func NewSlack(webhookURL, channel string) *Slack {
	return &Slack{webhookURL: webhookURL, channel: channel}
}

const (
	slackMaxAttempts = 3
	slackRetryDelay  = 2 * time.Second
)

func (s *Slack) Alert(ctx context.Context, title, message string) {
	msg := &slack.WebhookMessage{
		Channel: s.channel,
		Text:    fmt.Sprintf("*%s*\n%s", title, message),
	}

	var lastErr error
	for attempt := 1; attempt <= slackMaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return
		}
		if err := slack.PostWebhookContext(ctx, s.webhookURL, msg); err != nil {
			lastErr = err
			log.Warn().Err(err).Int("attempt", attempt).Msg("slack alert delivery failed, retrying")
			time.Sleep(time.Duration(attempt) * slackRetryDelay)
			continue
		}
		return
	}
	log.Error().Err(lastErr).Str("title", title).Msg("slack alert delivery failed after retries, dropped")
}
