package notification

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	webpush "github.com/SherClockHolmes/webpush-go"
	"github.com/sourcegraph/conc"

	"github.com/stagetrack/stagetrack/internal/config"
	"github.com/stagetrack/stagetrack/internal/pushsubscription"
)

// Payload is the JSON document delivered to the browser service worker.
type Payload struct {
	Title string `json:"title"`
	Body  string `json:"body"`
	URL   string `json:"url,omitempty"`
	Tag   string `json:"tag,omitempty"`
}

// PushSender delivers web push notifications to every registered
// subscription, pruning the ones the push service reports as gone.
type PushSender struct {
	vapidEnv *config.VAPIDEnv
	repo     pushsubscription.Repository
}

func NewPushSender(vapidEnv *config.VAPIDEnv, repo pushsubscription.Repository) *PushSender {
	return &PushSender{
		vapidEnv: vapidEnv,
		repo:     repo,
	}
}

// Configured reports whether VAPID keys are present.
func (s *PushSender) Configured() bool {
	return s.vapidEnv.VAPIDPrivateKey != "" && s.vapidEnv.VAPIDPublicKey != ""
}

func (s *PushSender) SendToAll(ctx context.Context, payload *Payload) {
	if !s.Configured() {
		slog.Warn("push: VAPID keys not configured, skipping")
		return
	}

	subs, err := s.repo.List(ctx)
	if err != nil {
		slog.Error("push: failed to list subscriptions", "error", err)
		return
	}
	if len(subs) == 0 {
		return
	}

	data, err := json.Marshal(payload)
	if err != nil {
		slog.Error("push: failed to marshal payload", "error", err)
		return
	}

	var wg conc.WaitGroup
	for _, sub := range subs {
		wg.Go(func() {
			s.sendToSubscription(ctx, sub, data)
		})
	}
	wg.Wait()
}

func (s *PushSender) sendToSubscription(ctx context.Context, sub *pushsubscription.Subscription, data []byte) {
	wpSub := &webpush.Subscription{
		Endpoint: sub.Endpoint,
		Keys: webpush.Keys{
			P256dh: sub.P256dhKey,
			Auth:   sub.AuthKey,
		},
	}

	resp, err := webpush.SendNotification(data, wpSub, &webpush.Options{
		VAPIDPublicKey:  s.vapidEnv.VAPIDPublicKey,
		VAPIDPrivateKey: s.vapidEnv.VAPIDPrivateKey,
		Subscriber:      s.vapidEnv.VAPIDContact,
		TTL:             86400,
	})
	if err != nil {
		slog.Error("push: failed to send", "endpoint", sub.Endpoint, "error", err)
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusGone {
		slog.Info("push: subscription expired, removing", "endpoint", sub.Endpoint)
		if err := s.repo.Delete(ctx, sub.ID); err != nil {
			slog.Error("push: failed to delete expired subscription", "id", sub.ID, "error", err)
		}
		return
	}

	if resp.StatusCode >= 400 {
		slog.Warn("push: unexpected status", "endpoint", sub.Endpoint, "status", resp.StatusCode)
	}
}
