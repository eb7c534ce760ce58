// Package models defines the persisted record shapes: user records, the
// per-user conversation summary list, the per-conversation message log and
// the flat user directory.
package models

import (
	"errors"
	"strconv"
	"strings"
	"time"
)

// Kind identifies what a message's content field carries. Only text, photo,
// video and location have payload semantics; the remaining kinds exist so a
// log entry written by a richer client still round-trips.
type Kind string

const (
	KindText           Kind = "text"
	KindAttributedText Kind = "attributed_text"
	KindPhoto          Kind = "photo"
	KindVideo          Kind = "video"
	KindLocation       Kind = "location"
	KindEmoji          Kind = "emoji"
	KindAudio          Kind = "audio"
	KindContact        Kind = "contact"
	KindLinkPreview    Kind = "link_preview"
	KindCustom         Kind = "custom"
)

// UserRecord is the top-level aggregate keyed by safe email. The summary
// list lives next to it in storage but is read and written as its own unit.
type UserRecord struct {
	SafeEmail string `json:"-"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

// DisplayName is the name directory entries and summaries carry.
func (u UserRecord) DisplayName() string {
	return u.FirstName + " " + u.LastName
}

// LatestMessage is the preview snapshot embedded in a conversation summary.
type LatestMessage struct {
	Date    string `json:"date"`
	Message string `json:"message"`
	IsRead  bool   `json:"is_read"`
}

// ConversationSummary is one entry in a user's conversation list. Each of
// the two participants holds its own copy with OtherUserEmail pointing at
// the other party; the copies converge on the same LatestMessage only after
// all pending writes land.
type ConversationSummary struct {
	ID             string        `json:"id"`
	OtherUserEmail string        `json:"other_user_email"`
	Name           string        `json:"name"`
	LatestMessage  LatestMessage `json:"latest_message"`
}

// MessageRecord is one entry in a conversation's append-only message log.
// Dates are RFC3339 in UTC. Content depends on Type: literal text, a media
// URL, or a "longitude,latitude" pair.
type MessageRecord struct {
	ID          string `json:"id"`
	Type        Kind   `json:"type"`
	Content     string `json:"content"`
	Date        string `json:"date"`
	SenderEmail string `json:"sender_email"`
	IsRead      bool   `json:"is_read"`
	Name        string `json:"name"`
}

// Validate reports whether the record is complete enough to hand to a
// reader. Readers drop invalid entries rather than failing the whole log.
func (m MessageRecord) Validate() error {
	if m.ID == "" {
		return errors.New("missing id")
	}
	if m.Type == "" {
		return errors.New("missing type")
	}
	if m.SenderEmail == "" {
		return errors.New("missing sender_email")
	}
	if _, err := time.Parse(time.RFC3339, m.Date); err != nil {
		return errors.New("unparseable date: " + m.Date)
	}
	if m.Type == KindLocation {
		if _, _, err := ParseLocation(m.Content); err != nil {
			return err
		}
	}
	return nil
}

// SentAt parses the record's date. Call Validate first; on a malformed date
// this returns the zero time.
func (m MessageRecord) SentAt() time.Time {
	t, _ := time.Parse(time.RFC3339, m.Date)
	return t
}

// DirectoryEntry is one row of the flat registered-user list.
type DirectoryEntry struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

// Draft is an outgoing message before rendering. Exactly one payload group
// is meaningful for a given Kind.
type Draft struct {
	ID        string
	Kind      Kind
	Text      string
	MediaURL  string
	Longitude float64
	Latitude  float64
	SentAt    time.Time
}

// RenderContent flattens the draft's payload into the single content string
// the log stores. Kinds without payload semantics render empty.
func (d Draft) RenderContent() string {
	switch d.Kind {
	case KindText:
		return d.Text
	case KindPhoto, KindVideo:
		return d.MediaURL
	case KindLocation:
		return FormatLocation(d.Longitude, d.Latitude)
	default:
		return ""
	}
}

// FormatLocation encodes coordinates as "longitude,latitude" with the
// shortest representation that round-trips exactly through ParseLocation.
func FormatLocation(longitude, latitude float64) string {
	return strconv.FormatFloat(longitude, 'f', -1, 64) + "," + strconv.FormatFloat(latitude, 'f', -1, 64)
}

// ParseLocation decodes a "longitude,latitude" content string.
func ParseLocation(content string) (longitude, latitude float64, err error) {
	parts := strings.Split(content, ",")
	if len(parts) != 2 {
		return 0, 0, errors.New("malformed location payload: " + content)
	}
	longitude, err = strconv.ParseFloat(parts[0], 64)
	if err != nil {
		return 0, 0, errors.New("malformed longitude: " + parts[0])
	}
	latitude, err = strconv.ParseFloat(parts[1], 64)
	if err != nil {
		return 0, 0, errors.New("malformed latitude: " + parts[1])
	}
	return longitude, latitude, nil
}

// Timestamp renders a time the way every persisted date field stores it.
func Timestamp(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}
