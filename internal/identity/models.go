package identity

import "time"

// Client is a registered device or application instance, keyed by the
// identifier the authorization provider issued for it. A client may act
// anonymously; UserID is set once the provider reports an owning user and is
// only ever replaced by a newer provider-reported value, never cleared.
type Client struct {
	ID         string    `gorm:"column:id;primaryKey;size:190;not null"`
	UserID     *string   `gorm:"column:user_id;size:190;index"`
	LastSeenAt time.Time `gorm:"column:last_seen_at;autoUpdateTime"`
	CreatedAt  time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt  time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

// TableName exposes the table backing clients.
func (Client) TableName() string {
	return "clients"
}

// User is an end user known to the authorization provider. The display name
// tracks the provider's most recent value.
type User struct {
	ID          string    `gorm:"column:id;primaryKey;size:190;not null"`
	DisplayName string    `gorm:"column:display_name;size:320"`
	CreatedAt   time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

// TableName exposes the table backing users.
func (User) TableName() string {
	return "users"
}
