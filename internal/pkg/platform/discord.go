package platform

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// DiscordOptions configures the discord adapter.
type DiscordOptions struct {
	Token             string
	GuildID           string
	SendRatePerSecond float64
	SendBurst         int
}

// Discord implements Client on top of a discordgo session.
type Discord struct {
	session *discordgo.Session
	guildID string
	limiter *rate.Limiter
	logger  *zap.Logger

	mu     sync.RWMutex
	selfID string
}

// NewDiscord builds the session without connecting. Call Open to log in.
func NewDiscord(opts DiscordOptions, logger *zap.Logger) (*Discord, error) {
	if opts.Token == "" {
		return nil, errors.New("discord token is empty")
	}
	if opts.GuildID == "" {
		return nil, errors.New("discord guild id is empty")
	}
	session, err := discordgo.New("Bot " + opts.Token)
	if err != nil {
		return nil, fmt.Errorf("create discord session: %w", err)
	}
	session.Identify.Intents = discordgo.IntentsGuilds |
		discordgo.IntentsGuildMessages |
		discordgo.IntentsMessageContent

	return &Discord{
		session: session,
		guildID: opts.GuildID,
		limiter: rate.NewLimiter(rate.Limit(opts.SendRatePerSecond), opts.SendBurst),
		logger:  logger.Named("Discord"),
	}, nil
}

// Open connects the gateway session and records the bot's own user id.
func (d *Discord) Open(ctx context.Context) error {
	if err := d.session.Open(); err != nil {
		return fmt.Errorf("open discord session: %w", err)
	}

	var selfID string
	if d.session.State != nil && d.session.State.User != nil {
		selfID = d.session.State.User.ID
	} else {
		me, err := d.session.User("@me", discordgo.WithContext(ctx))
		if err != nil {
			_ = d.session.Close()
			return fmt.Errorf("resolve bot user: %w", err)
		}
		selfID = me.ID
	}

	d.mu.Lock()
	d.selfID = selfID
	d.mu.Unlock()
	d.logger.Info("logged in", zap.String("self_id", selfID), zap.String("guild_id", d.guildID))
	return nil
}

// Close shuts down the gateway session.
func (d *Discord) Close() error {
	return d.session.Close()
}

func (d *Discord) SelfID() string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.selfID
}

func (d *Discord) FetchChannel(ctx context.Context, channelID string) error {
	if _, err := d.session.Channel(channelID, discordgo.WithContext(ctx)); err != nil {
		return wrapChannelErr("fetch channel", channelID, err)
	}
	return nil
}

func (d *Discord) CreatePrivateChannel(ctx context.Context, name, topic string) (string, error) {
	if err := d.limiter.Wait(ctx); err != nil {
		return "", err
	}
	ch, err := d.session.GuildChannelCreateComplex(d.guildID, discordgo.GuildChannelCreateData{
		Name:  name,
		Type:  discordgo.ChannelTypeGuildText,
		Topic: topic,
		PermissionOverwrites: []*discordgo.PermissionOverwrite{
			{
				// the @everyone role shares the guild's id
				ID:   d.guildID,
				Type: discordgo.PermissionOverwriteTypeRole,
				Deny: discordgo.PermissionViewChannel,
			},
		},
	}, discordgo.WithContext(ctx))
	if err != nil {
		return "", fmt.Errorf("create channel %q: %w", name, err)
	}
	return ch.ID, nil
}

func (d *Discord) DeleteChannel(ctx context.Context, channelID, reason string) error {
	if err := d.limiter.Wait(ctx); err != nil {
		return err
	}
	opts := []discordgo.RequestOption{discordgo.WithContext(ctx)}
	if reason != "" {
		opts = append(opts, discordgo.WithAuditLogReason(reason))
	}
	if _, err := d.session.ChannelDelete(channelID, opts...); err != nil {
		return wrapChannelErr("delete channel", channelID, err)
	}
	return nil
}

func (d *Discord) Send(ctx context.Context, channelID, content string) error {
	if err := d.limiter.Wait(ctx); err != nil {
		return err
	}
	if _, err := d.session.ChannelMessageSend(channelID, content, discordgo.WithContext(ctx)); err != nil {
		return wrapChannelErr("send message", channelID, err)
	}
	return nil
}

func (d *Discord) RecentMessages(ctx context.Context, channelID string, limit int) ([]Message, error) {
	if limit <= 0 {
		return nil, nil
	}
	msgs, err := d.session.ChannelMessages(channelID, limit, "", "", "", discordgo.WithContext(ctx))
	if err != nil {
		return nil, wrapChannelErr("fetch messages", channelID, err)
	}
	out := make([]Message, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, convertMessage(m))
	}
	return out, nil
}

func (d *Discord) OnMessage(handler func(Message)) {
	d.session.AddHandler(func(_ *discordgo.Session, m *discordgo.MessageCreate) {
		if m == nil || m.Message == nil {
			return
		}
		handler(convertMessage(m.Message))
	})
}

func convertMessage(m *discordgo.Message) Message {
	msg := Message{
		ID:        m.ID,
		ChannelID: m.ChannelID,
		WebhookID: m.WebhookID,
		Content:   m.Content,
		CreatedAt: m.Timestamp,
	}
	if m.Author != nil {
		msg.Author = Author{ID: m.Author.ID, Username: m.Author.Username, Bot: m.Author.Bot}
	}
	for _, e := range m.Embeds {
		if e == nil {
			continue
		}
		embed := Embed{Title: e.Title}
		for _, f := range e.Fields {
			if f != nil {
				embed.Fields = append(embed.Fields, EmbedField{Name: f.Name, Value: f.Value})
			}
		}
		msg.Embeds = append(msg.Embeds, embed)
	}
	return msg
}

func wrapChannelErr(op, channelID string, err error) error {
	if isUnknownChannel(err) {
		return fmt.Errorf("%s %s: %w", op, channelID, ErrChannelNotFound)
	}
	return fmt.Errorf("%s %s: %w", op, channelID, err)
}

func isUnknownChannel(err error) bool {
	var restErr *discordgo.RESTError
	if !errors.As(err, &restErr) {
		return false
	}
	if restErr.Message != nil && restErr.Message.Code == discordgo.ErrCodeUnknownChannel {
		return true
	}
	return restErr.Response != nil && restErr.Response.StatusCode == http.StatusNotFound
}
