package pushsubscription

import (
	"time"

	"github.com/oklog/ulid/v2"
)

// Subscription is a browser push endpoint registered from the dashboard.
type Subscription struct {
	ID        string    `yaml:"id"`
	Endpoint  string    `yaml:"endpoint"`
	P256dhKey string    `yaml:"p256dh_key"`
	AuthKey   string    `yaml:"auth_key"`
	UserAgent string    `yaml:"user_agent,omitempty"`
	CreatedAt time.Time `yaml:"created_at"`
}

func New(endpoint, p256dh, auth, userAgent string) *Subscription {
	return &Subscription{
		ID:        ulid.Make().String(),
		Endpoint:  endpoint,
		P256dhKey: p256dh,
		AuthKey:   auth,
		UserAgent: userAgent,
		CreatedAt: time.Now(),
	}
}
