// Package slack implements a send-only notify Adapter posting compliance
// alerts to a Slack channel.
package slack

import (
	"context"
	"fmt"

	slackapi "github.com/slack-go/slack"

	"github.com/itc-hub/sitecontrol/internal/models"
)

// slackClient abstracts the Slack API methods we use, enabling test mocks.
type slackClient interface {
	PostMessageContext(ctx context.Context, channelID string, options ...slackapi.MsgOption) (string, string, error)
}

// Adapter posts each notification as an attachment message to one channel.
type Adapter struct {
	client    slackClient
	channelID string
}

// AdapterOpts holds parameters for creating a Slack Adapter.
type AdapterOpts struct {
	BotToken  string // xoxb-... Slack bot token
	ChannelID string // channel to post to
	// For testing: inject a mock client instead of the real Slack API.
	Client slackClient
}

// New creates a Slack Adapter.
func New(opts AdapterOpts) (*Adapter, error) {
	if opts.Client == nil && opts.BotToken == "" {
		return nil, fmt.Errorf("slack: bot token is required")
	}
	if opts.ChannelID == "" {
		return nil, fmt.Errorf("slack: channel ID is required")
	}
	client := opts.Client
	if client == nil {
		client = slackapi.New(opts.BotToken)
	}
	return &Adapter{client: client, channelID: opts.ChannelID}, nil
}

// Name implements notify.Adapter.
func (a *Adapter) Name() string { return "slack" }

// Send implements notify.Adapter.
func (a *Adapter) Send(ctx context.Context, n *models.Notification) error {
	att := slackapi.Attachment{
		Title: n.Subject,
		Text:  n.Message,
		Color: "#439fe0",
	}
	if n.Email != "" {
		att.Fields = append(att.Fields, slackapi.AttachmentField{
			Title: "Recipient",
			Value: n.Email,
			Short: true,
		})
	}

	_, _, err := a.client.PostMessageContext(ctx, a.channelID, slackapi.MsgOptionAttachments(att))
	if err != nil {
		return fmt.Errorf("slack: post message: %w", err)
	}
	return nil
}
