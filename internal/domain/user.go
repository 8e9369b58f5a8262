package domain

import "time"

// User is the profile projection attached to messages and returned by the
// users listing. Credentials live with the auth service, not here.
type User struct {
	ID         string     `json:"id" bson:"_id"`
	Username   string     `json:"username" bson:"username"`
	Email      string     `json:"email" bson:"email"`
	AvatarURL  string     `json:"avatarUrl,omitempty" bson:"avatar_url,omitempty"`
	IsOnline   bool       `json:"isOnline" bson:"is_online"`
	LastSeenAt *time.Time `json:"lastSeenAt,omitempty" bson:"last_seen_at,omitempty"`
}
