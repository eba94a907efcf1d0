package dingtalk

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"

	"github.com/open-dingtalk/dingtalk-stream-sdk-go/chatbot"
	"github.com/open-dingtalk/dingtalk-stream-sdk-go/client"

	"github.com/kayz/sqlpal/internal/bridge"
)

// Platform implements bridge.Platform for DingTalk
type Platform struct {
	cli            *client.StreamClient
	messageHandler func(msg bridge.Message)
	webhooks       map[string]string // conversationID -> sessionWebhook
	mu             sync.RWMutex
	ctx            context.Context
	cancel         context.CancelFunc
}

// Config holds DingTalk configuration
type Config struct {
	ClientID     string // AppKey from DingTalk Developer Console
	ClientSecret string // AppSecret from DingTalk Developer Console
}

// New creates a new DingTalk platform
func New(cfg Config) (*Platform, error) {
	if cfg.ClientID == "" || cfg.ClientSecret == "" {
		return nil, fmt.Errorf("both ClientID (AppKey) and ClientSecret (AppSecret) are required")
	}

	p := &Platform{
		webhooks: make(map[string]string),
	}

	cli := client.NewStreamClient(
		client.WithAppCredential(client.NewAppCredentialConfig(cfg.ClientID, cfg.ClientSecret)),
	)
	cli.RegisterChatBotCallbackRouter(p.onChatBotMessageReceived)

	p.cli = cli
	return p, nil
}

// Name returns the platform name
func (p *Platform) Name() string {
	return "dingtalk"
}

// SetMessageHandler sets the callback for incoming messages
func (p *Platform) SetMessageHandler(handler func(msg bridge.Message)) {
	p.messageHandler = handler
}

// Start begins listening for DingTalk events
func (p *Platform) Start(ctx context.Context) error {
	p.ctx, p.cancel = context.WithCancel(ctx)

	if err := p.cli.Start(p.ctx); err != nil {
		return fmt.Errorf("failed to start DingTalk stream client: %w", err)
	}

	log.Printf("[DingTalk] Stream client connected")
	return nil
}

// Stop shuts down the DingTalk connection
func (p *Platform) Stop() error {
	if p.cancel != nil {
		p.cancel()
	}
	if p.cli != nil {
		p.cli.Close()
	}
	return nil
}

// Send sends a message to a DingTalk conversation. Replies go through the
// session webhook captured from the incoming message.
func (p *Platform) Send(ctx context.Context, channelID string, resp bridge.Response) error {
	sessionWebhook := ""
	if resp.Metadata != nil {
		sessionWebhook = resp.Metadata["session_webhook"]
	}

	if sessionWebhook == "" {
		p.mu.RLock()
		sessionWebhook = p.webhooks[channelID]
		p.mu.RUnlock()
	}

	if sessionWebhook == "" {
		return fmt.Errorf("no session webhook available for conversation %s", channelID)
	}

	replier := chatbot.NewChatbotReplier()
	return replier.SimpleReplyText(ctx, sessionWebhook, []byte(resp.Text))
}

func (p *Platform) onChatBotMessageReceived(ctx context.Context, data *chatbot.BotCallbackDataModel) ([]byte, error) {
	if data == nil {
		return []byte(""), nil
	}

	text := strings.TrimSpace(data.Text.Content)
	if text == "" {
		return []byte(""), nil
	}

	if !p.shouldRespond(data) {
		return []byte(""), nil
	}

	// Webhooks expire, so always keep the freshest one per conversation.
	p.mu.Lock()
	p.webhooks[data.ConversationId] = data.SessionWebhook
	p.mu.Unlock()

	if p.messageHandler != nil {
		p.messageHandler(bridge.Message{
			ID:        data.MsgId,
			Platform:  "dingtalk",
			ChannelID: data.ConversationId,
			UserID:    data.SenderId,
			Username:  data.SenderNick,
			Text:      text,
			ThreadID:  "",
			Metadata: map[string]string{
				"conversation_type": data.ConversationType, // "1" = private, "2" = group
				"session_webhook":   data.SessionWebhook,
			},
		})
	}

	return []byte(""), nil
}

// shouldRespond allows private chats always and group chats only when the bot
// is in the at-list
func (p *Platform) shouldRespond(data *chatbot.BotCallbackDataModel) bool {
	if data.ConversationType == "1" {
		return true
	}
	return data.IsInAtList
}
