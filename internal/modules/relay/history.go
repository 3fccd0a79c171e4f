package relay

import (
	"context"
	"regexp"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/Varietyz/banes-lab-bot/internal/pkg/platform"
)

// SelfLabel replaces the author of messages the relay posted.
const SelfLabel = "You"

var outboundPrefix = regexp.MustCompile("^\\*\\*`🌐\\s[^`]+`\\*\\*\\s*")

// FormatOutbound prefixes content with the sender's address.
func FormatOutbound(address, content string) string {
	return "**`🌐 " + address + "`** " + content
}

// StripPrefix removes the address prefix added by FormatOutbound. Content
// without the prefix is returned unchanged.
func StripPrefix(content string) string {
	loc := outboundPrefix.FindStringIndex(content)
	if loc == nil {
		return content
	}
	return content[loc[1]:]
}

// Replayer projects recent channel history into wire messages.
type Replayer struct {
	platform platform.Client
	limit    int
	layout   string
	loc      *time.Location
	logger   *zap.Logger
}

// NewReplayer returns a Replayer fetching up to limit messages.
func NewReplayer(client platform.Client, limit int, layout string, loc *time.Location, logger *zap.Logger) *Replayer {
	if loc == nil {
		loc = time.Local
	}
	return &Replayer{
		platform: client,
		limit:    limit,
		layout:   layout,
		loc:      loc,
		logger:   logger.Named("History"),
	}
}

// Replay returns up to limit recent messages of channelID, oldest first.
// Fetch errors are logged and yield an empty slice.
func (r *Replayer) Replay(ctx context.Context, channelID string) []Message {
	out := []Message{}
	if r.limit <= 0 {
		return out
	}
	fetched, err := r.platform.RecentMessages(ctx, channelID, r.limit)
	if err != nil {
		r.logger.Error("failed to fetch message history", zap.String("channel_id", channelID), zap.Error(err))
		return out
	}

	// platform order is newest first
	msgs := make([]platform.Message, len(fetched))
	for i, m := range fetched {
		msgs[len(fetched)-1-i] = m
	}
	sort.SliceStable(msgs, func(i, j int) bool { return msgs[i].CreatedAt.Before(msgs[j].CreatedAt) })

	selfID := r.platform.SelfID()
	for _, m := range msgs {
		out = append(out, r.project(m, channelID, selfID))
	}
	return out
}

func (r *Replayer) project(m platform.Message, channelID, selfID string) Message {
	msg := Message{
		Author:    m.Author.Username,
		Content:   m.Content,
		Timestamp: FormatTimestamp(m.CreatedAt, r.layout, r.loc),
		ChannelID: channelID,
	}
	if selfID != "" && m.Author.ID == selfID {
		msg.Author = SelfLabel
		msg.Content = StripPrefix(m.Content)
	}
	return msg
}

// FormatTimestamp renders t for display in loc.
func FormatTimestamp(t time.Time, layout string, loc *time.Location) string {
	if loc == nil {
		loc = time.Local
	}
	return t.In(loc).Format(layout)
}
