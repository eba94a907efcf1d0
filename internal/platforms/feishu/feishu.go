package feishu

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"

	lark "github.com/larksuite/oapi-sdk-go/v3"
	larkcore "github.com/larksuite/oapi-sdk-go/v3/core"
	"github.com/larksuite/oapi-sdk-go/v3/event/dispatcher"
	larkcontact "github.com/larksuite/oapi-sdk-go/v3/service/contact/v3"
	larkim "github.com/larksuite/oapi-sdk-go/v3/service/im/v1"
	larkws "github.com/larksuite/oapi-sdk-go/v3/ws"

	"github.com/kayz/sqlpal/internal/bridge"
)

// Platform implements bridge.Platform for Feishu/Lark
type Platform struct {
	client         *lark.Client
	wsClient       *larkws.Client
	botOpenID      string
	messageHandler func(msg bridge.Message)
	ctx            context.Context
	cancel         context.CancelFunc
}

// Config holds Feishu configuration
type Config struct {
	AppID     string // from Feishu Developer Console
	AppSecret string // from Feishu Developer Console
}

// New creates a new Feishu platform
func New(cfg Config) (*Platform, error) {
	if cfg.AppID == "" || cfg.AppSecret == "" {
		return nil, fmt.Errorf("both AppID and AppSecret are required")
	}

	client := lark.NewClient(cfg.AppID, cfg.AppSecret)

	botOpenID, err := verifyCredentials(client)
	if err != nil {
		return nil, fmt.Errorf("failed to get bot info: %w", err)
	}

	p := &Platform{
		client:    client,
		botOpenID: botOpenID,
	}

	p.wsClient = larkws.NewClient(cfg.AppID, cfg.AppSecret,
		larkws.WithEventHandler(p.buildEventHandler()),
		larkws.WithLogLevel(larkcore.LogLevelInfo),
	)

	return p, nil
}

// Name returns the platform name
func (p *Platform) Name() string {
	return "feishu"
}

// SetMessageHandler sets the callback for incoming messages
func (p *Platform) SetMessageHandler(handler func(msg bridge.Message)) {
	p.messageHandler = handler
}

// Start begins listening for Feishu events
func (p *Platform) Start(ctx context.Context) error {
	p.ctx, p.cancel = context.WithCancel(ctx)

	go func() {
		if err := p.wsClient.Start(p.ctx); err != nil {
			log.Printf("[Feishu] WebSocket error: %v", err)
		}
	}()

	log.Printf("[Feishu] Connected")
	return nil
}

// Stop shuts down the Feishu connection
func (p *Platform) Stop() error {
	if p.cancel != nil {
		p.cancel()
	}
	return nil
}

// Send sends a text message to a Feishu chat
func (p *Platform) Send(ctx context.Context, chatID string, resp bridge.Response) error {
	content, err := json.Marshal(map[string]string{"text": resp.Text})
	if err != nil {
		return fmt.Errorf("failed to marshal message content: %w", err)
	}

	req := larkim.NewCreateMessageReqBuilder().
		ReceiveIdType(larkim.ReceiveIdTypeChatId).
		Body(larkim.NewCreateMessageReqBodyBuilder().
			ReceiveId(chatID).
			MsgType(larkim.MsgTypeText).
			Content(string(content)).
			Build()).
		Build()

	result, err := p.client.Im.Message.Create(ctx, req)
	if err != nil {
		return fmt.Errorf("failed to send message: %w", err)
	}

	if !result.Success() {
		return fmt.Errorf("failed to send message: code=%d, msg=%s", result.Code, result.Msg)
	}

	return nil
}

func (p *Platform) buildEventHandler() *dispatcher.EventDispatcher {
	handler := dispatcher.NewEventDispatcher("", "")
	handler.OnP2MessageReceiveV1(p.handleMessageEvent)
	return handler
}

func (p *Platform) handleMessageEvent(ctx context.Context, event *larkim.P2MessageReceiveV1) error {
	if event == nil || event.Event == nil || event.Event.Message == nil {
		return nil
	}

	msg := event.Event.Message
	sender := event.Event.Sender

	// Ignore the bot's own messages
	if sender != nil && sender.SenderId != nil && p.botOpenID != "" && *sender.SenderId.OpenId == p.botOpenID {
		return nil
	}

	if !p.shouldRespond(event) {
		return nil
	}

	text, err := p.extractText(msg)
	if err != nil {
		log.Printf("[Feishu] Failed to extract text: %v", err)
		return nil
	}

	text = p.cleanMention(text)

	if p.messageHandler == nil || text == "" {
		return nil
	}

	userID := ""
	username := ""
	if sender != nil && sender.SenderId != nil {
		userID = *sender.SenderId.OpenId
		username = p.getUsername(ctx, userID)
	}

	chatID := ""
	chatType := ""
	if msg.ChatId != nil {
		chatID = *msg.ChatId
	}
	if msg.ChatType != nil {
		chatType = *msg.ChatType
	}

	msgID := ""
	if msg.MessageId != nil {
		msgID = *msg.MessageId
	}

	p.messageHandler(bridge.Message{
		ID:        msgID,
		Platform:  "feishu",
		ChannelID: chatID,
		UserID:    userID,
		Username:  username,
		Text:      text,
		ThreadID:  "", // Feishu has no Slack-style threading
		Metadata: map[string]string{
			"chat_type": chatType,
		},
	})

	return nil
}

// shouldRespond allows DMs always and group messages only when the bot is mentioned
func (p *Platform) shouldRespond(event *larkim.P2MessageReceiveV1) bool {
	msg := event.Event.Message

	if msg.ChatType != nil && *msg.ChatType == "p2p" {
		return true
	}

	if msg.Mentions != nil {
		if p.botOpenID == "" {
			// Bot open_id is unknown until the contact API resolves it, so
			// treat any mention in a group as addressed to us.
			return len(msg.Mentions) > 0
		}
		for _, mention := range msg.Mentions {
			if mention.Id != nil && mention.Id.OpenId != nil && *mention.Id.OpenId == p.botOpenID {
				return true
			}
		}
	}

	return false
}

func (p *Platform) extractText(msg *larkim.EventMessage) (string, error) {
	if msg.Content == nil {
		return "", nil
	}

	var content struct {
		Text string `json:"text"`
	}

	if err := json.Unmarshal([]byte(*msg.Content), &content); err != nil {
		return "", fmt.Errorf("failed to unmarshal content: %w", err)
	}

	return content.Text, nil
}

// cleanMention strips the @_user_N placeholders Feishu injects for mentions
func (p *Platform) cleanMention(text string) string {
	for {
		start := strings.Index(text, "@_user_")
		if start == -1 {
			break
		}
		end := start + 8
		for end < len(text) && text[end] >= '0' && text[end] <= '9' {
			end++
		}
		text = text[:start] + text[end:]
	}
	return strings.TrimSpace(text)
}

// getUsername resolves an open_id to a display name, falling back to the id
func (p *Platform) getUsername(ctx context.Context, openID string) string {
	req := larkcontact.NewGetUserReqBuilder().
		UserId(openID).
		UserIdType(larkcontact.UserIdTypeOpenId).
		Build()

	result, err := p.client.Contact.User.Get(ctx, req)
	if err != nil || !result.Success() {
		return openID
	}

	if result.Data != nil && result.Data.User != nil && result.Data.User.Name != nil {
		return *result.Data.User.Name
	}

	return openID
}

// verifyCredentials makes a cheap API call so bad credentials fail at startup
func verifyCredentials(client *lark.Client) (string, error) {
	ctx := context.Background()

	req := larkim.NewListChatReqBuilder().
		PageSize(1).
		Build()

	result, err := client.Im.Chat.List(ctx, req)
	if err != nil {
		return "", fmt.Errorf("failed to verify credentials: %w", err)
	}

	if !result.Success() {
		return "", fmt.Errorf("failed to verify credentials: code=%d, msg=%s", result.Code, result.Msg)
	}

	// The SDK does not expose the bot's own open_id; it is learned lazily.
	return "", nil
}
