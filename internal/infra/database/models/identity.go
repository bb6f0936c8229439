package models

import (
	"time"

	"github.com/lib/pq"
)

type Persona struct {
	ID    string    `json:"id" gorm:"primaryKey;type:uuid"`
	More  *string   `json:"more,omitempty" gorm:"type:jsonb"`
	CDate time.Time `json:"cdate" gorm:"->;<-:create;type:timestamp with time zone;not null;default:clock_timestamp()"`
}

type Service struct {
	ID   string         `json:"id" gorm:"primaryKey;type:uuid"`
	Name string         `json:"name" gorm:"type:text;uniqueIndex;not null"`
	URLs pq.StringArray `json:"urls" gorm:"type:text[]"`
	More *string        `json:"more,omitempty" gorm:"type:jsonb"`
}

type Account struct {
	ID         string  `json:"id" gorm:"primaryKey;type:uuid"`
	ServiceID  string  `json:"serviceID" gorm:"type:uuid;uniqueIndex:uniq_account_extid;not null"`
	Service    Service `json:"-" gorm:"foreignKey:ServiceID"`
	ExternalID string  `json:"externalID" gorm:"type:text;uniqueIndex:uniq_account_extid;not null"`
	PersonaID  string  `json:"personaID" gorm:"type:uuid;index;not null"`
	Persona    Persona `json:"-" gorm:"foreignKey:PersonaID"`
	More       *string `json:"more,omitempty" gorm:"type:jsonb"`
}

// Name must reference at least one of {account, persona}. The check
// constraint backs the store-level invariant; writers are expected to
// enforce it first.
type Name struct {
	ID        string     `json:"id" gorm:"primaryKey;type:uuid"`
	Text      string     `json:"name" gorm:"type:text;index;not null"`
	AccountID *string    `json:"accountID,omitempty" gorm:"type:uuid;index"`
	Account   *Account   `json:"-" gorm:"foreignKey:AccountID"`
	PersonaID *string    `json:"personaID,omitempty" gorm:"type:uuid;index"`
	Persona   *Persona   `json:"-" gorm:"foreignKey:PersonaID"`
	When      *time.Time `json:"when,omitempty" gorm:"type:timestamp with time zone"`
	More      *string    `json:"more,omitempty" gorm:"type:jsonb"`
}

func (Name) TableName() string { return "names" }

type AccountRelationship struct {
	ID      string    `json:"id" gorm:"primaryKey;type:uuid"`
	LeftID  string    `json:"leftID" gorm:"type:uuid;uniqueIndex:uniq_account_rel;not null"`
	Left    Account   `json:"-" gorm:"foreignKey:LeftID"`
	RightID string    `json:"rightID" gorm:"type:uuid;uniqueIndex:uniq_account_rel;not null"`
	Right   Account   `json:"-" gorm:"foreignKey:RightID"`
	Rel     string    `json:"rel" gorm:"type:text;uniqueIndex:uniq_account_rel;not null"`
	When    time.Time `json:"when" gorm:"type:timestamp with time zone;not null"`
}
