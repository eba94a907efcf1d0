package slack

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/slack-go/slack"
	"github.com/slack-go/slack/slackevents"
	"github.com/slack-go/slack/socketmode"

	"github.com/kayz/sqlpal/internal/bridge"
)

// Platform implements bridge.Platform for Slack using Socket Mode
type Platform struct {
	api            *slack.Client
	socket         *socketmode.Client
	botUserID      string
	messageHandler func(msg bridge.Message)
	ctx            context.Context
	cancel         context.CancelFunc
}

// Config holds Slack configuration
type Config struct {
	BotToken string // xoxb- token
	AppToken string // xapp- token with connections:write
}

// New creates a new Slack platform
func New(cfg Config) (*Platform, error) {
	if cfg.BotToken == "" || cfg.AppToken == "" {
		return nil, fmt.Errorf("both BotToken and AppToken are required")
	}

	api := slack.New(cfg.BotToken, slack.OptionAppLevelToken(cfg.AppToken))

	auth, err := api.AuthTest()
	if err != nil {
		return nil, fmt.Errorf("Slack auth failed: %w", err)
	}

	return &Platform{
		api:       api,
		socket:    socketmode.New(api),
		botUserID: auth.UserID,
	}, nil
}

// Name returns the platform name
func (p *Platform) Name() string {
	return "slack"
}

// SetMessageHandler sets the callback for incoming messages
func (p *Platform) SetMessageHandler(handler func(msg bridge.Message)) {
	p.messageHandler = handler
}

// Start begins listening for Slack events over Socket Mode
func (p *Platform) Start(ctx context.Context) error {
	p.ctx, p.cancel = context.WithCancel(ctx)

	go p.handleEvents()
	go func() {
		if err := p.socket.RunContext(p.ctx); err != nil && p.ctx.Err() == nil {
			log.Printf("[Slack] Socket Mode stopped: %v", err)
		}
	}()

	log.Printf("[Slack] Connected as bot: %s", p.botUserID)
	return nil
}

// Stop shuts down the Slack connection
func (p *Platform) Stop() error {
	if p.cancel != nil {
		p.cancel()
	}
	return nil
}

// Send sends a message to a Slack channel
func (p *Platform) Send(ctx context.Context, channelID string, resp bridge.Response) error {
	opts := []slack.MsgOption{slack.MsgOptionText(resp.Text, false)}
	if resp.ThreadID != "" {
		opts = append(opts, slack.MsgOptionTS(resp.ThreadID))
	}

	_, _, err := p.api.PostMessageContext(ctx, channelID, opts...)
	return err
}

func (p *Platform) handleEvents() {
	for {
		select {
		case <-p.ctx.Done():
			return
		case evt, ok := <-p.socket.Events:
			if !ok {
				return
			}
			if evt.Type != socketmode.EventTypeEventsAPI {
				continue
			}

			apiEvent, ok := evt.Data.(slackevents.EventsAPIEvent)
			if !ok {
				continue
			}
			p.socket.Ack(*evt.Request)

			if apiEvent.Type != slackevents.CallbackEvent {
				continue
			}

			switch ev := apiEvent.InnerEvent.Data.(type) {
			case *slackevents.AppMentionEvent:
				p.deliver(ev.Channel, ev.User, ev.TimeStamp, ev.ThreadTimeStamp, ev.Text, "channel")
			case *slackevents.MessageEvent:
				// Mentions arrive twice; only the DM copy is handled here.
				if ev.ChannelType != "im" || ev.BotID != "" || ev.User == p.botUserID {
					continue
				}
				p.deliver(ev.Channel, ev.User, ev.TimeStamp, ev.ThreadTimeStamp, ev.Text, "im")
			}
		}
	}
}

func (p *Platform) deliver(channel, user, ts, threadTS, text, chatType string) {
	text = p.cleanMention(text)
	if text == "" || p.messageHandler == nil {
		return
	}

	p.messageHandler(bridge.Message{
		ID:        ts,
		Platform:  "slack",
		ChannelID: channel,
		UserID:    user,
		Username:  user,
		Text:      text,
		ThreadID:  threadTS,
		Metadata: map[string]string{
			"chat_type": chatType,
		},
	})
}

// cleanMention removes the bot mention from the message
func (p *Platform) cleanMention(text string) string {
	text = strings.ReplaceAll(text, "<@"+p.botUserID+">", "")
	return strings.TrimSpace(text)
}
