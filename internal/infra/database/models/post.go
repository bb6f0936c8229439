package models

import (
	"time"
)

type Post struct {
	ID         string     `json:"id" gorm:"primaryKey;type:uuid"`
	ServiceID  string     `json:"serviceID" gorm:"type:uuid;uniqueIndex:uniq_post_extid;not null"`
	Service    Service    `json:"-" gorm:"foreignKey:ServiceID"`
	ExternalID string     `json:"externalID" gorm:"type:text;uniqueIndex:uniq_post_extid;not null"`
	PosterID   *string    `json:"posterID,omitempty" gorm:"type:uuid;index"`
	Poster     *Account   `json:"-" gorm:"foreignKey:PosterID"`
	When       *time.Time `json:"when,omitempty" gorm:"type:timestamp with time zone"`
	Text       *string    `json:"text,omitempty" gorm:"type:text"`
	Tombstone  bool       `json:"tombstone" gorm:"type:boolean;not null;default:false;index"`
	More       *string    `json:"more,omitempty" gorm:"type:jsonb"`
	CDate      time.Time  `json:"cdate" gorm:"->;<-:create;type:timestamp with time zone;not null;default:clock_timestamp()"`
}

type PostRelationship struct {
	ID      string `json:"id" gorm:"primaryKey;type:uuid"`
	LeftID  string `json:"leftID" gorm:"type:uuid;uniqueIndex:uniq_post_rel;not null"`
	Left    Post   `json:"-" gorm:"foreignKey:LeftID"`
	RightID string `json:"rightID" gorm:"type:uuid;uniqueIndex:uniq_post_rel;not null"`
	Right   Post   `json:"-" gorm:"foreignKey:RightID"`
	Rel     string `json:"rel" gorm:"type:text;uniqueIndex:uniq_post_rel;not null"`
}

type PostDistribution struct {
	ID          string  `json:"id" gorm:"primaryKey;type:uuid"`
	PostID      string  `json:"postID" gorm:"type:uuid;index;not null"`
	Post        Post    `json:"-" gorm:"foreignKey:PostID"`
	RecipientID string  `json:"recipientID" gorm:"type:uuid;index;not null"`
	Recipient   Account `json:"-" gorm:"foreignKey:RecipientID"`
	Dist        string  `json:"dist" gorm:"type:text;not null"`
}
