package telegram

import (
	"sort"
	"strings"
	"time"

	"github.com/gotd/td/tg"

	"github.com/lueurxax/feedpulse/internal/core/domain"
)

const mimeJPEG = "image/jpeg"

// historyPage is one history response reduced to its plain messages. Raw
// size and highest id cover every entry, service messages included.
type historyPage struct {
	messages []*tg.Message
	rawLen   int
	maxID    int64
}

func historyMessages(history tg.MessagesMessagesClass) historyPage {
	var raw []tg.MessageClass

	switch h := history.(type) {
	case *tg.MessagesMessages:
		raw = h.Messages
	case *tg.MessagesMessagesSlice:
		raw = h.Messages
	case *tg.MessagesChannelMessages:
		raw = h.Messages
	}

	page := historyPage{messages: make([]*tg.Message, 0, len(raw)), rawLen: len(raw)}

	for _, m := range raw {
		if id := int64(m.GetID()); id > page.maxID {
			page.maxID = id
		}

		if msg, ok := m.(*tg.Message); ok {
			page.messages = append(page.messages, msg)
		}
	}

	return page
}

// newerThan keeps messages with id > cursor in ascending id order.
func newerThan(msgs []*tg.Message, cursor int64, maxMediaSize int64) []domain.RemoteMessage {
	out := make([]domain.RemoteMessage, 0, len(msgs))

	for _, m := range msgs {
		if int64(m.ID) <= cursor {
			continue
		}

		out = append(out, toRemote(m, maxMediaSize))
	}

	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })

	return out
}

func toRemote(m *tg.Message, maxMediaSize int64) domain.RemoteMessage {
	rm := domain.RemoteMessage{
		ID:   int64(m.ID),
		Date: time.Unix(int64(m.Date), 0).UTC(),
		Text: m.Message,
	}

	if from, ok := m.GetFromID(); ok {
		rm.SenderID = peerID(from)
	}

	if v, ok := m.GetViews(); ok {
		rm.Views = counter(v)
	}

	if v, ok := m.GetForwards(); ok {
		rm.Forwards = counter(v)
	}

	if r, ok := m.GetReplies(); ok {
		rm.Replies = counter(r.Replies)
	}

	if r, ok := m.GetReactions(); ok {
		total := 0
		for _, rc := range r.Results {
			total += rc.Count
		}

		rm.Reactions = counter(total)
	}

	if media, ok := m.GetMedia(); ok {
		rm.Media = remoteMedia(media, maxMediaSize)
	}

	return rm
}

func counter(v int) *int64 {
	n := int64(v)

	return &n
}

func peerID(p tg.PeerClass) int64 {
	switch v := p.(type) {
	case *tg.PeerUser:
		return v.UserID
	case *tg.PeerChannel:
		return v.ChannelID
	case *tg.PeerChat:
		return v.ChatID
	default:
		return 0
	}
}

// remoteMedia describes an attachment. Handle is the file location to download,
// nil when the media kind has no downloadable file or exceeds maxSize.
func remoteMedia(media tg.MessageMediaClass, maxSize int64) *domain.RemoteMedia {
	if _, empty := media.(*tg.MessageMediaEmpty); empty {
		return nil
	}

	rm := &domain.RemoteMedia{Kind: media.TypeName()}

	switch m := media.(type) {
	case *tg.MessageMediaPhoto:
		photo, ok := m.Photo.(*tg.Photo)
		if !ok {
			return rm
		}

		thumb, size := largestPhotoSize(photo.Sizes)
		if thumb == "" || (maxSize > 0 && size > maxSize) {
			return rm
		}

		rm.Format = mimeJPEG
		rm.Handle = &tg.InputPhotoFileLocation{
			ID:            photo.ID,
			AccessHash:    photo.AccessHash,
			FileReference: photo.FileReference,
			ThumbSize:     thumb,
		}

	case *tg.MessageMediaDocument:
		doc, ok := m.Document.(*tg.Document)
		if !ok {
			return rm
		}

		rm.Format = strings.ToLower(doc.MimeType)

		if maxSize > 0 && int64(doc.Size) > maxSize {
			return rm
		}

		rm.Handle = &tg.InputDocumentFileLocation{
			ID:            doc.ID,
			AccessHash:    doc.AccessHash,
			FileReference: doc.FileReference,
		}
	}

	return rm
}

// largestPhotoSize picks the size with the most pixels and returns its type
// tag and byte size.
func largestPhotoSize(sizes []tg.PhotoSizeClass) (string, int64) {
	var (
		best     string
		bestArea int
		bestSize int64
	)

	for _, size := range sizes {
		switch s := size.(type) {
		case *tg.PhotoSize:
			if s.W*s.H > bestArea {
				best, bestArea, bestSize = s.Type, s.W*s.H, int64(s.Size)
			}
		case *tg.PhotoSizeProgressive:
			if s.W*s.H > bestArea {
				var n int64
				if len(s.Sizes) > 0 {
					n = int64(s.Sizes[len(s.Sizes)-1])
				}

				best, bestArea, bestSize = s.Type, s.W*s.H, n
			}
		}
	}

	return best, bestSize
}
