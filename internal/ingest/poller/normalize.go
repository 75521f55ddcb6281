package poller

import (
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"

	"github.com/lueurxax/feedpulse/internal/core/domain"
)

var (
	urlRegex     = regexp.MustCompile(`https?://[^\s<>"{}|\\^\x60\[\]]+`)
	hashtagRegex = regexp.MustCompile(`#[\p{L}\p{N}_]+`)
)

const urlTrailingPunct = ".,;:!?)"

// normalize converts a remote message into the stored representation.
func normalize(channelID int64, rm domain.RemoteMessage) domain.Message {
	text := normalizeText(rm.Text)

	msg := domain.Message{
		ChannelID:    channelID,
		MsgID:        rm.ID,
		Date:         rm.Date.UTC(),
		Text:         text,
		Views:        rm.Views,
		Reactions:    rm.Reactions,
		Forwards:     rm.Forwards,
		Comments:     rm.Replies,
		Type:         domain.MessageTypeText,
		Hashtags:     extractHashtags(text),
		Links:        extractLinks(text),
		MediaPresent: rm.Media != nil,
	}

	if rm.SenderID != 0 {
		msg.Author = strconv.FormatInt(rm.SenderID, 10)
	}

	if msg.MediaPresent {
		msg.Type = domain.MessageTypeMedia
	}

	return msg
}

// normalizeText drops invalid UTF-8 and NUL bytes and applies NFC.
func normalizeText(s string) string {
	if s == "" {
		return s
	}

	if !utf8.ValidString(s) {
		s = strings.ToValidUTF8(s, "")
	}

	s = strings.ReplaceAll(s, "\x00", "")

	return norm.NFC.String(s)
}

func extractHashtags(text string) []string {
	return uniqueMatches(hashtagRegex.FindAllString(text, -1), strings.ToLower)
}

func extractLinks(text string) []string {
	return uniqueMatches(urlRegex.FindAllString(text, -1), func(s string) string {
		return strings.TrimRight(s, urlTrailingPunct)
	})
}

func uniqueMatches(matches []string, clean func(string) string) []string {
	out := make([]string, 0, len(matches))
	seen := make(map[string]struct{}, len(matches))

	for _, m := range matches {
		m = clean(m)
		if _, ok := seen[m]; ok || m == "" {
			continue
		}

		seen[m] = struct{}{}
		out = append(out, m)
	}

	return out
}
