package domain

import "time"

// Post is one unit of content. A post is created either fully hydrated from
// a resolved event, or as a placeholder referenced by another post before
// its own content was fetched. Later hydration fills poster/timestamp/text
// onto the existing row; ExternalID is the stable dedup key.
type Post struct {
	ID         string     `json:"id"`
	ServiceID  string     `json:"serviceID"`
	ExternalID string     `json:"externalID"`
	PosterID   *string    `json:"posterID,omitempty"`
	When       *time.Time `json:"when,omitempty"`
	Text       *string    `json:"text,omitempty"`
	Tombstone  bool       `json:"tombstone"`
	More       *string    `json:"more,omitempty"`
}

// Placeholder reports whether the post is an unhydrated stub.
func (p Post) Placeholder() bool {
	return p.PosterID == nil && !p.Tombstone
}

// PostRelKind tags an edge between two posts.
type PostRelKind string

const (
	PostRelReplyTo PostRelKind = "reply-to"
	PostRelQuotes  PostRelKind = "quotes"
)

// PostRelationship is a directed edge between two posts.
type PostRelationship struct {
	ID      string      `json:"id"`
	LeftID  string      `json:"leftID"`
	RightID string      `json:"rightID"`
	Rel     PostRelKind `json:"rel"`
}

// Distribution describes how a post reached a recipient.
type Distribution string

const (
	DistBroadcast Distribution = "broadcast"
	DistTo        Distribution = "to"
	DistCC        Distribution = "cc"
	DistBCC       Distribution = "bcc"
)

// PostDistribution records that a post reached a recipient account.
type PostDistribution struct {
	ID          string       `json:"id"`
	PostID      string       `json:"postID"`
	RecipientID string       `json:"recipientID"`
	Dist        Distribution `json:"dist"`
}
