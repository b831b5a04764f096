package tags

import (
	"errors"
	"time"
)

var (
	// ErrInvalidBearer indicates a missing or empty bearer parameter.
	ErrInvalidBearer = errors.New("tags: invalid bearer")
	// ErrInvalidTime indicates a missing or non-positive tag timestamp.
	ErrInvalidTime = errors.New("tags: invalid time")
	// ErrInvalidClientID indicates the tag is not attributable to a device.
	ErrInvalidClientID = errors.New("tags: invalid client id")
)

// Tag records a radio service tagged by a device at a point in time. Bearer
// holds the broadcast parameters identifying the service, per the RadioTAG
// specification.
type Tag struct {
	ID         string    `gorm:"column:id;primaryKey;size:36;not null"`
	ClientID   string    `gorm:"column:client_id;size:190;not null;index"`
	Bearer     string    `gorm:"column:bearer;size:320;not null"`
	Time       time.Time `gorm:"column:time;not null"`
	TimeSource string    `gorm:"column:time_source;size:32"`
	CreatedAt  time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt  time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

// TableName exposes the table backing tags.
func (Tag) TableName() string {
	return "tags"
}
