// Package webhook decodes inbound LINE webhook payloads and dispatches their
// events to the analysis workflows.
package webhook

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// ErrInvalidPayload indicates the request body is not a webhook payload.
var ErrInvalidPayload = errors.New("invalid webhook payload")

type envelope struct {
	Destination string          `json:"destination"`
	Events      json.RawMessage `json:"events"`
}

// ParsePayload decodes a webhook body. The body must be a JSON object with an
// array-valued events field; anything else fails with ErrInvalidPayload.
// Individual events that cannot be decoded become UnknownEvent values.
func ParsePayload(body []byte) (Payload, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return Payload{}, fmt.Errorf("%w: body is not a JSON object", ErrInvalidPayload)
	}
	var env envelope
	if err := json.Unmarshal(trimmed, &env); err != nil {
		return Payload{}, fmt.Errorf("%w: %w", ErrInvalidPayload, err)
	}
	rawEvents := bytes.TrimSpace(env.Events)
	if len(rawEvents) == 0 || rawEvents[0] != '[' {
		return Payload{}, fmt.Errorf("%w: events must be an array", ErrInvalidPayload)
	}
	var items []json.RawMessage
	if err := json.Unmarshal(rawEvents, &items); err != nil {
		return Payload{}, fmt.Errorf("%w: %w", ErrInvalidPayload, err)
	}

	events := make([]Event, 0, len(items))
	for _, item := range items {
		events = append(events, decodeEvent(item))
	}
	return Payload{Destination: env.Destination, Events: events}, nil
}

func decodeEvent(raw json.RawMessage) Event {
	var base EventBase
	if err := json.Unmarshal(raw, &base); err != nil {
		return UnknownEvent{Raw: raw, Err: err}
	}

	switch base.Type {
	case EventTypeMessage:
		var body struct {
			Message json.RawMessage `json:"message"`
		}
		if err := json.Unmarshal(raw, &body); err != nil {
			return UnknownEvent{EventBase: base, Raw: raw, Err: err}
		}
		return MessageEvent{EventBase: base, Message: decodeMessage(body.Message)}
	case EventTypeFollow:
		return FollowEvent{EventBase: base}
	case EventTypeUnfollow:
		return UnfollowEvent{EventBase: base}
	case EventTypeJoin:
		return JoinEvent{EventBase: base}
	case EventTypeLeave:
		return LeaveEvent{EventBase: base}
	case EventTypePostback:
		var body struct {
			Postback Postback `json:"postback"`
		}
		if err := json.Unmarshal(raw, &body); err != nil {
			return UnknownEvent{EventBase: base, Raw: raw, Err: err}
		}
		return PostbackEvent{EventBase: base, Postback: body.Postback}
	default:
		return UnknownEvent{EventBase: base, Raw: raw}
	}
}

func decodeMessage(raw json.RawMessage) Message {
	var head struct {
		ID   string `json:"id"`
		Type string `json:"type"`
	}
	if err := json.Unmarshal(raw, &head); err != nil {
		return UnknownMessage{Raw: raw, Err: err}
	}

	var (
		msg Message
		err error
	)
	switch head.Type {
	case MessageTypeText:
		msg, err = decodeAs[TextMessage](raw)
	case MessageTypeImage:
		msg, err = decodeAs[ImageMessage](raw)
	case MessageTypeVideo:
		msg, err = decodeAs[VideoMessage](raw)
	case MessageTypeAudio:
		msg, err = decodeAs[AudioMessage](raw)
	case MessageTypeFile:
		msg, err = decodeAs[FileMessage](raw)
	case MessageTypeLocation:
		msg, err = decodeAs[LocationMessage](raw)
	case MessageTypeSticker:
		msg, err = decodeAs[StickerMessage](raw)
	default:
		return UnknownMessage{ID: head.ID, Type: head.Type, Raw: raw}
	}
	if err != nil {
		return UnknownMessage{ID: head.ID, Type: head.Type, Raw: raw, Err: err}
	}
	return msg
}

func decodeAs[T Message](raw json.RawMessage) (Message, error) {
	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, err
	}
	return v, nil
}
