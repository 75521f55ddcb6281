// Package domain holds the entities shared by the ingestion, clustering and
// ranking stages.
package domain

import "time"

// Entity kinds stored in the ranking table.
const (
	EntityMessage = "message"
	EntityTopic   = "topic"
)

// Message type tags.
const (
	MessageTypeText  = "text"
	MessageTypeMedia = "media"
)

// TopicTitleMaxLen is the maximum number of characters kept in a topic title.
const TopicTitleMaxLen = 255

// Account is a credentialed identity used to read channels.
type Account struct {
	ID            int64
	SessionCipher string
	KeyVersion    int
	Phone         string
	IsActive      bool
	CreatedAt     time.Time
}

// Channel is a remote message source.
type Channel struct {
	ID           int64
	Username     string
	Title        string
	IsActive     bool
	LastParsedAt time.Time
}

// ChannelCursor is the last ingested source message id for an account/channel pair.
type ChannelCursor struct {
	AccountID int64
	Channel   Channel
	LastMsgID int64
}

// Message is a normalized, persisted channel message.
type Message struct {
	ID           int64
	ChannelID    int64
	MsgID        int64
	Date         time.Time
	Text         string
	Author       string
	Views        *int64
	Reactions    *int64
	Forwards     *int64
	Comments     *int64
	Type         string
	Hashtags     []string
	Links        []string
	MediaPresent bool
}

// Popularity is the sum of engagement counters, missing counters count as zero.
func (m Message) Popularity() int64 {
	return valueOrZero(m.Views) + valueOrZero(m.Reactions) + valueOrZero(m.Forwards) + valueOrZero(m.Comments)
}

func valueOrZero(v *int64) int64 {
	if v == nil {
		return 0
	}

	return *v
}

// MediaAsset references stored media owned by exactly one message.
type MediaAsset struct {
	ID        int64
	MessageID int64
	Kind      string
	URL       string
	Size      int64
	Format    string
	Hash      string
}

// Topic groups similar messages. Immutable after creation.
type Topic struct {
	ID        int64
	Title     string
	CreatedAt time.Time
}

// TopicMember is a message linked to a topic.
type TopicMember struct {
	TopicID int64
	Message Message
}

// RankingEntry is a computed score for one entity in one window.
type RankingEntry struct {
	EntityKind string
	EntityID   int64
	Window     string
	Score      float64
	Indexed    time.Time
}

// Window is a trailing time range used for ranking.
type Window struct {
	Name string
	Span time.Duration
}

// Start returns the beginning of the window ending at now.
func (w Window) Start(now time.Time) time.Time {
	return now.Add(-w.Span)
}

// RemoteMessage is a message as returned by the remote source, before normalization.
type RemoteMessage struct {
	ID        int64
	Date      time.Time
	Text      string
	SenderID  int64
	Views     *int64
	Reactions *int64
	Forwards  *int64
	Replies   *int64
	Media     *RemoteMedia
}

// RemoteMedia describes an attachment that can be downloaded through the session.
type RemoteMedia struct {
	Kind   string
	Format string
	// Handle is the source-specific locator passed back to DownloadMedia.
	Handle any
}
