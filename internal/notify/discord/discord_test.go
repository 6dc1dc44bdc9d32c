package discord

import (
	"context"
	"errors"
	"testing"

	"github.com/bwmarrin/discordgo"

	"github.com/itc-hub/sitecontrol/internal/models"
)

type mockSession struct {
	embeds []*discordgo.MessageEmbed
	err    error
}

func (m *mockSession) ChannelMessageSendEmbed(channelID string, embed *discordgo.MessageEmbed, options ...discordgo.RequestOption) (*discordgo.Message, error) {
	m.embeds = append(m.embeds, embed)
	return &discordgo.Message{}, m.err
}

func TestNew_Validation(t *testing.T) {
	if _, err := New(AdapterOpts{ChannelID: "123"}); err == nil {
		t.Error("expected error without token or session")
	}
	if _, err := New(AdapterOpts{BotToken: "t"}); err == nil {
		t.Error("expected error without channel")
	}
}

func TestSend_Embed(t *testing.T) {
	mock := &mockSession{}
	a, err := New(AdapterOpts{Session: mock, ChannelID: "123"})
	if err != nil {
		t.Fatalf("new: %v", err)
	}

	err = a.Send(context.Background(), &models.Notification{
		Email:   "iko@example.com",
		Subject: "Activation requested",
		Message: "Pick a date",
	})
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if len(mock.embeds) != 1 {
		t.Fatalf("embeds = %d, want 1", len(mock.embeds))
	}
	if mock.embeds[0].Title != "Activation requested" {
		t.Errorf("title = %q", mock.embeds[0].Title)
	}
	if len(mock.embeds[0].Fields) != 1 || mock.embeds[0].Fields[0].Value != "iko@example.com" {
		t.Error("recipient field missing")
	}
}

func TestSend_Error(t *testing.T) {
	mock := &mockSession{err: errors.New("missing access")}
	a, _ := New(AdapterOpts{Session: mock, ChannelID: "123"})
	if err := a.Send(context.Background(), &models.Notification{}); err == nil {
		t.Fatal("expected error")
	}
}
