package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"

	webpush "github.com/SherClockHolmes/webpush-go"

	"taskping/internal/models"
	"taskping/internal/scheduler"
)

// SubscriptionDeleter removes a push subscription whose endpoint the
// provider reports as permanently gone.
type SubscriptionDeleter interface {
	DeleteSubscription(ctx context.Context, id uint) error
}

// PushService delivers reminders as web push notifications, one send per
// registered subscription. It implements scheduler.Channel.
type PushService struct {
	subscriptions SubscriptionDeleter
	vapidPublic   string
	vapidPrivate  string
	subscriber    string
}

func NewPushService(subscriptions SubscriptionDeleter) *PushService {
	return &PushService{
		subscriptions: subscriptions,
		vapidPublic:   os.Getenv("VAPID_PUBLIC_KEY"),
		vapidPrivate:  os.Getenv("VAPID_PRIVATE_KEY"),
		subscriber:    os.Getenv("VAPID_SUBJECT"),
	}
}

// Name implements scheduler.Channel
func (s *PushService) Name() string { return "push" }

type pushPayload struct {
	Title string `json:"title"`
	Body  string `json:"body"`
}

// Send pushes the message to every subscription the recipient has. The
// attempt succeeds when at least one device accepted the payload.
func (s *PushService) Send(ctx context.Context, rcpt scheduler.Recipient, msg scheduler.Message) error {
	if len(rcpt.Subscriptions) == 0 {
		return scheduler.ErrNoRecipient
	}

	payload, err := json.Marshal(pushPayload{Title: msg.Title, Body: msg.Body})
	if err != nil {
		return err
	}

	delivered := 0
	var lastErr error
	for _, sub := range rcpt.Subscriptions {
		if err := s.sendOne(ctx, sub, payload); err != nil {
			lastErr = err
			log.Printf("Error: push to subscription %d failed: %v", sub.ID, err)
			continue
		}
		delivered++
	}

	if delivered == 0 {
		return fmt.Errorf("push delivery failed for all %d subscriptions: %w", len(rcpt.Subscriptions), lastErr)
	}
	return nil
}

func (s *PushService) sendOne(ctx context.Context, sub models.Subscription, payload []byte) error {
	response, err := webpush.SendNotificationWithContext(ctx, payload, &webpush.Subscription{
		Endpoint: sub.Endpoint,
		Keys: webpush.Keys{
			Auth:   sub.KeysAuth,
			P256dh: sub.KeysP256dh,
		},
	}, &webpush.Options{
		Subscriber:      s.subscriber,
		VAPIDPublicKey:  s.vapidPublic,
		VAPIDPrivateKey: s.vapidPrivate,
		TTL:             60,
	})
	if err != nil {
		return err
	}
	defer response.Body.Close()

	switch {
	case response.StatusCode == http.StatusNotFound || response.StatusCode == http.StatusGone:
		// Endpoint permanently expired; drop the subscription so future
		// dispatches stop trying it.
		if err := s.subscriptions.DeleteSubscription(ctx, sub.ID); err != nil {
			log.Printf("Error: deleting expired subscription %d: %v", sub.ID, err)
		} else {
			log.Printf("Deleted expired push subscription %d for user %s", sub.ID, sub.UserID)
		}
		return fmt.Errorf("subscription endpoint gone (%d)", response.StatusCode)
	case response.StatusCode >= 400:
		return fmt.Errorf("push provider returned %d", response.StatusCode)
	}
	return nil
}
