package slack

import (
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/slack-go/slack"
)

// Client posts watering notifications to a Slack channel. A nil *Client is
// valid and sends nothing, so notifications stay optional.
type Client struct {
	api              *slack.Client
	channelID        string
	rateLimitBackoff time.Duration
}

// NewClient creates a notifier client. Returns nil when not configured.
func NewClient(token, channelID string) *Client {
	if token == "" || channelID == "" {
		log.Println("Slack token or channel ID is not configured. Slack notifications will be disabled.")
		return nil
	}
	return &Client{
		api:       slack.New(token),
		channelID: channelID,
	}
}

// NotifySession posts one line about a session transition, e.g.
// "Watering started: Water Only for 10 min (auto_schedule)".
func (c *Client) NotifySession(event, modeLabel string, durationMinutes int, trigger string) {
	if c == nil {
		return
	}
	c.SendMessage(fmt.Sprintf("Watering %s: %s for %d min (%s)", event, modeLabel, durationMinutes, trigger))
}

// NotifyDailySummary posts the end-of-day statistics line.
func (c *Client) NotifyDailySummary(sessions int, totalWaterLiters, avgMinutes float64) {
	if c == nil {
		return
	}
	c.SendMessage(fmt.Sprintf("Daily summary: %d sessions, %.1f L water, avg %.1f min",
		sessions, totalWaterLiters, avgMinutes))
}

// SendMessage sends a plain text message with rate limit handling.
func (c *Client) SendMessage(message string) {
	if c == nil || c.api == nil {
		return
	}
	if c.rateLimitBackoff > 0 {
		log.Printf("Skipping Slack message due to rate limit backoff (%v)", c.rateLimitBackoff)
		return
	}
	_, _, err := c.api.PostMessage(c.channelID, slack.MsgOptionText(message, false))
	if err != nil {
		if c.isRateLimitError(err) {
			c.handleRateLimit(err)
		} else {
			log.Printf("Failed to send Slack message: %v", err)
		}
	}
}

// isRateLimitError checks if the error is related to rate limiting.
func (c *Client) isRateLimitError(err error) bool {
	errStr := strings.ToLower(err.Error())
	return strings.Contains(errStr, "rate_limited") ||
		strings.Contains(errStr, "message_limit_exceeded") ||
		strings.Contains(errStr, "too_many_requests")
}

// handleRateLimit suppresses messages for a backoff period.
func (c *Client) handleRateLimit(err error) {
	backoffDuration := 1 * time.Minute
	if strings.Contains(strings.ToLower(err.Error()), "message_limit_exceeded") {
		backoffDuration = 5 * time.Minute
	}

	c.rateLimitBackoff = backoffDuration
	log.Printf("Slack rate limit detected (%v). Messages will be suppressed for %v", err, backoffDuration)

	go func() {
		time.Sleep(backoffDuration)
		c.rateLimitBackoff = 0
		log.Println("Slack rate limit backoff period ended. Messages will resume.")
	}()
}

// IsRateLimited reports whether the client is in a backoff period.
func (c *Client) IsRateLimited() bool {
	if c == nil {
		return false
	}
	return c.rateLimitBackoff > 0
}
