package domain

import (
	"fmt"
	"strings"
	"time"
)

// Persona is a deduplicated identity node. A persona owns zero or more
// accounts and zero or more directly linked names. A persona with neither is
// an orphan: valid, but meaningless.
type Persona struct {
	ID string `json:"id"`
}

// Account is a presence on one external service, uniquely keyed by
// (service, external id). An account always has exactly one owning persona;
// ownership changes only through a merge.
type Account struct {
	ID         string  `json:"id"`
	ServiceID  string  `json:"serviceID"`
	ExternalID string  `json:"externalID"`
	PersonaID  string  `json:"personaID"`
	More       *string `json:"more,omitempty"`
}

// Name is a string alias attached to an account (a screen/display name
// observed at some time, history preserving) or directly to a persona (a
// manually linked alias). At least one of AccountID/PersonaID is set.
type Name struct {
	ID        string     `json:"id"`
	Text      string     `json:"name"`
	AccountID *string    `json:"accountID,omitempty"`
	PersonaID *string    `json:"personaID,omitempty"`
	When      *time.Time `json:"when,omitempty"`
}

// Service is a named external system. Service rows are created once and
// memoized in a read-only registry for the process lifetime.
type Service struct {
	ID   string   `json:"id"`
	Name string   `json:"name"`
	URLs []string `json:"urls,omitempty"`
}

// RelKind labels a directed account-to-account edge.
type RelKind string

const (
	RelFollows RelKind = "follows"
	RelIgnores RelKind = "ignores"
	RelBlocks  RelKind = "blocks"
)

// AccountRelationship is a directed social-graph edge between two accounts.
// It never touches persona identity.
type AccountRelationship struct {
	ID      string    `json:"id"`
	LeftID  string    `json:"leftID"`
	RightID string    `json:"rightID"`
	Rel     RelKind   `json:"rel"`
	When    time.Time `json:"when"`
}

// ExternalID composes the globally unique account/post key for a native id
// on a service.
func ExternalID(service, nativeID string) string {
	return fmt.Sprintf("%s:%s", strings.ToLower(service), nativeID)
}

// NativeID strips the service prefix from an external id. Returns the input
// unchanged if it carries no prefix.
func NativeID(externalID string) string {
	if _, native, ok := strings.Cut(externalID, ":"); ok {
		return native
	}
	return externalID
}
