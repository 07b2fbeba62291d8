// Package automation manages the backend's outbound webhook subscriptions
// from the operator surface.
package automation

import (
	"context"
	"fmt"
	"net/http"

	"github.com/tidwall/gjson"

	"github.com/dinehall/boardlink/internal/api"
	"github.com/dinehall/boardlink/internal/domain"
	"github.com/dinehall/boardlink/internal/forms"
	"github.com/dinehall/boardlink/internal/normalize"
	"github.com/dinehall/boardlink/pkg/logger"
)

const basePath = "/webhook-subscriptions"

var targetURLRule = forms.URL("target URL must be an absolute http(s) URL")

// Service is a typed resource client over the api client.
type Service struct {
	client *api.Client
	log    *logger.Logger
}

// New creates the webhook subscription service.
func New(client *api.Client, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("automation")
	}
	return &Service{client: client, log: log}
}

// List returns all registered subscriptions.
func (s *Service) List(ctx context.Context) ([]domain.WebhookSubscription, error) {
	resp, err := s.client.DoRaw(ctx, http.MethodGet, basePath, nil)
	if err != nil {
		return nil, err
	}
	subs := []domain.WebhookSubscription{}
	for _, item := range normalize.Items(resp.Body, "subscriptions") {
		subs = append(subs, normalize.Webhook(item))
	}
	return subs, nil
}

// Create registers a subscription. The target URL is validated locally
// before the backend sees it.
func (s *Service) Create(ctx context.Context, sub domain.WebhookSubscription) (domain.WebhookSubscription, error) {
	if sub.TargetURL == "" || !targetURLRule.Check(sub.TargetURL) {
		return domain.WebhookSubscription{}, fmt.Errorf("automation: %s", targetURLRule.Message)
	}
	if len(sub.Events) == 0 {
		return domain.WebhookSubscription{}, fmt.Errorf("automation: at least one event is required")
	}

	resp, err := s.client.DoRaw(ctx, http.MethodPost, basePath, map[string]any{
		"target_url": sub.TargetURL,
		"events":     sub.Events,
		"secret":     sub.Secret,
		"active":     sub.Active,
	})
	if err != nil {
		return domain.WebhookSubscription{}, err
	}
	created := normalize.Webhook(gjson.ParseBytes(resp.Body))
	if created.ID == "" {
		created = sub
	}
	s.log.WithField("target", sub.TargetURL).Info("webhook subscription created")
	return created, nil
}

// Delete removes a subscription.
func (s *Service) Delete(ctx context.Context, id string) error {
	if id == "" {
		return fmt.Errorf("automation: subscription id is required")
	}
	return s.client.Delete(ctx, basePath+"/"+id, nil)
}

// TestFire asks the backend to send a test event to the subscription.
func (s *Service) TestFire(ctx context.Context, id string) error {
	if id == "" {
		return fmt.Errorf("automation: subscription id is required")
	}
	return s.client.Post(ctx, basePath+"/"+id+"/test", nil, nil)
}
