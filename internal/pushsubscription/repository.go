package pushsubscription

import "context"

type Repository interface {
	// Save stores the subscription, replacing any existing one with the
	// same endpoint. Browsers re-subscribe with fresh keys, so the
	// endpoint is the identity that matters.
	Save(ctx context.Context, s *Subscription) error
	Get(ctx context.Context, id string) (*Subscription, error)
	List(ctx context.Context) ([]*Subscription, error)
	Delete(ctx context.Context, id string) error
	DeleteByEndpoint(ctx context.Context, endpoint string) error
}
