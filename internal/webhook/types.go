package webhook

import "encoding/json"

// Event types sent by the platform.
const (
	EventTypeMessage  = "message"
	EventTypeFollow   = "follow"
	EventTypeUnfollow = "unfollow"
	EventTypeJoin     = "join"
	EventTypeLeave    = "leave"
	EventTypePostback = "postback"
	EventTypeUnknown  = "unknown"
)

// Message types carried by message events.
const (
	MessageTypeText     = "text"
	MessageTypeImage    = "image"
	MessageTypeVideo    = "video"
	MessageTypeAudio    = "audio"
	MessageTypeFile     = "file"
	MessageTypeLocation = "location"
	MessageTypeSticker  = "sticker"
)

// Content provider types for image, video, and audio messages.
const (
	ProviderLine     = "line"
	ProviderExternal = "external"
)

// Source identifies who sent an event.
type Source struct {
	Type    string `json:"type"`
	UserID  string `json:"userId,omitempty"`
	GroupID string `json:"groupId,omitempty"`
	RoomID  string `json:"roomId,omitempty"`
}

type DeliveryContext struct {
	IsRedelivery bool `json:"isRedelivery"`
}

// EventBase holds the fields shared by every event.
type EventBase struct {
	Type            string          `json:"type"`
	Mode            string          `json:"mode,omitempty"`
	Timestamp       int64           `json:"timestamp"`
	Source          Source          `json:"source"`
	WebhookEventID  string          `json:"webhookEventId,omitempty"`
	DeliveryContext DeliveryContext `json:"deliveryContext"`
	ReplyToken      string          `json:"replyToken,omitempty"`
}

// Base returns the shared event fields.
func (b EventBase) Base() EventBase { return b }

// Event is one inbound webhook event. The set of implementations is closed.
type Event interface {
	Base() EventBase
	isEvent()
}

type MessageEvent struct {
	EventBase
	Message Message
}

type FollowEvent struct{ EventBase }

type UnfollowEvent struct{ EventBase }

type JoinEvent struct{ EventBase }

type LeaveEvent struct{ EventBase }

type Postback struct {
	Data   string            `json:"data"`
	Params map[string]string `json:"params,omitempty"`
}

type PostbackEvent struct {
	EventBase
	Postback Postback
}

// UnknownEvent is an event of an unrecognized type, or one that could not be
// decoded. Err is set in the latter case.
type UnknownEvent struct {
	EventBase
	Raw json.RawMessage
	Err error
}

func (MessageEvent) isEvent()  {}
func (FollowEvent) isEvent()   {}
func (UnfollowEvent) isEvent() {}
func (JoinEvent) isEvent()     {}
func (LeaveEvent) isEvent()    {}
func (PostbackEvent) isEvent() {}
func (UnknownEvent) isEvent()  {}

// EventType returns the type of ev as sent, or EventTypeUnknown when absent.
func EventType(ev Event) string {
	if t := ev.Base().Type; t != "" {
		return t
	}
	return EventTypeUnknown
}

type ContentProvider struct {
	Type               string `json:"type"`
	OriginalContentURL string `json:"originalContentUrl,omitempty"`
	PreviewImageURL    string `json:"previewImageUrl,omitempty"`
}

// Message is the payload of a message event. The set of implementations is closed.
type Message interface {
	MessageID() string
	isMessage()
}

type TextMessage struct {
	ID         string `json:"id"`
	Text       string `json:"text"`
	QuoteToken string `json:"quoteToken,omitempty"`
}

type ImageMessage struct {
	ID              string          `json:"id"`
	QuoteToken      string          `json:"quoteToken,omitempty"`
	ContentProvider ContentProvider `json:"contentProvider"`
}

type VideoMessage struct {
	ID              string          `json:"id"`
	Duration        int64           `json:"duration"`
	QuoteToken      string          `json:"quoteToken,omitempty"`
	ContentProvider ContentProvider `json:"contentProvider"`
}

type AudioMessage struct {
	ID              string          `json:"id"`
	Duration        int64           `json:"duration"`
	ContentProvider ContentProvider `json:"contentProvider"`
}

type FileMessage struct {
	ID       string `json:"id"`
	FileName string `json:"fileName"`
	FileSize int64  `json:"fileSize"`
}

type LocationMessage struct {
	ID        string  `json:"id"`
	Title     string  `json:"title,omitempty"`
	Address   string  `json:"address,omitempty"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

type StickerMessage struct {
	ID                  string   `json:"id"`
	PackageID           string   `json:"packageId"`
	StickerID           string   `json:"stickerId"`
	StickerResourceType string   `json:"stickerResourceType,omitempty"`
	Keywords            []string `json:"keywords,omitempty"`
	QuoteToken          string   `json:"quoteToken,omitempty"`
}

// UnknownMessage is a message of an unrecognized type, or one that could not
// be decoded.
type UnknownMessage struct {
	ID   string
	Type string
	Raw  json.RawMessage
	Err  error
}

func (m TextMessage) MessageID() string     { return m.ID }
func (m ImageMessage) MessageID() string    { return m.ID }
func (m VideoMessage) MessageID() string    { return m.ID }
func (m AudioMessage) MessageID() string    { return m.ID }
func (m FileMessage) MessageID() string     { return m.ID }
func (m LocationMessage) MessageID() string { return m.ID }
func (m StickerMessage) MessageID() string  { return m.ID }
func (m UnknownMessage) MessageID() string  { return m.ID }

func (TextMessage) isMessage()     {}
func (ImageMessage) isMessage()    {}
func (VideoMessage) isMessage()    {}
func (AudioMessage) isMessage()    {}
func (FileMessage) isMessage()     {}
func (LocationMessage) isMessage() {}
func (StickerMessage) isMessage()  {}
func (UnknownMessage) isMessage()  {}

// Payload is a decoded webhook request body.
type Payload struct {
	Destination string
	Events      []Event
}
