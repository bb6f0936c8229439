package domain

import (
	"encoding/json"
	"time"
)

// User is an actor payload as carried by upstream events and user lookups.
type User struct {
	ID          string `json:"id_str"`
	ScreenName  string `json:"screen_name"`
	DisplayName string `json:"name"`
}

// Status is a content item payload as carried by upstream events and post
// lookups. Reshared and Quoted nest one further status each; deeper nesting
// is rejected at ingestion time.
type Status struct {
	ID        string    `json:"id_str"`
	User      *User     `json:"user"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"created_at"`

	ReplyToID string   `json:"in_reply_to_status_id_str,omitempty"`
	Reshared  *Status  `json:"retweeted_status,omitempty"`
	Quoted    *Status  `json:"quoted_status,omitempty"`
	Mentions  []User   `json:"user_mentions,omitempty"`
	LinkedIDs []string `json:"linked_status_ids,omitempty"`
}

// Event is the decoded form of one stream frame. Frames are decoded exactly
// once at the stream boundary into one of the variants below; anything that
// does not match a known shape becomes UnknownEvent and takes the
// dead-letter path.
type Event interface {
	isEvent()
}

// UserEvent carries an embedded user object (profile updates, interaction
// notices). Resolved inline, no network call needed.
type UserEvent struct {
	User User
}

// DeleteEvent is an upstream deletion notice for a post.
type DeleteEvent struct {
	PostID string
}

// StatusEvent carries a full content item.
type StatusEvent struct {
	Status Status
}

// FriendsEvent is a following snapshot: a list of native user ids.
type FriendsEvent struct {
	UserIDs []string
}

// UnknownEvent wraps a frame that matched no known shape.
type UnknownEvent struct {
	Raw json.RawMessage
}

func (UserEvent) isEvent()    {}
func (DeleteEvent) isEvent()  {}
func (StatusEvent) isEvent()  {}
func (FriendsEvent) isEvent() {}
func (UnknownEvent) isEvent() {}

type rawEvent struct {
	Delete *struct {
		Status struct {
			ID string `json:"id_str"`
		} `json:"status"`
	} `json:"delete"`
	Friends []json.Number `json:"friends"`
	Event   string        `json:"event"`
	Source  *User         `json:"source"`
	ID      string        `json:"id_str"`
	User    *User         `json:"user"`
}

// DecodeEvent decodes one stream frame. It never fails: undecodable or
// unrecognized input is returned as UnknownEvent.
func DecodeEvent(raw []byte) Event {
	var probe rawEvent
	if err := json.Unmarshal(raw, &probe); err != nil {
		return UnknownEvent{Raw: raw}
	}

	switch {
	case probe.Delete != nil && probe.Delete.Status.ID != "":
		return DeleteEvent{PostID: probe.Delete.Status.ID}

	case probe.Friends != nil:
		ids := make([]string, 0, len(probe.Friends))
		for _, id := range probe.Friends {
			ids = append(ids, id.String())
		}
		return FriendsEvent{UserIDs: ids}

	case probe.Event != "" && probe.Source != nil:
		return UserEvent{User: *probe.Source}

	case probe.ID != "" && probe.User != nil:
		var status Status
		if err := json.Unmarshal(raw, &status); err != nil {
			return UnknownEvent{Raw: raw}
		}
		return StatusEvent{Status: status}

	default:
		return UnknownEvent{Raw: raw}
	}
}
