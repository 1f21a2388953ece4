package webhook

import (
	"context"

	"taskbridge/internal/config"
	"taskbridge/internal/logger"
	"taskbridge/internal/taskapi"
)

// Registry owns the webhook signup lifecycle against the task API:
//
//  1. Login: authenticate with admin credentials, obtain a token.
//  2. Cleanup: delete stale registrations pointing at our callback.
//  3. Register: create a fresh registration, capture the HMAC secret.
//
// The ordering is load-bearing. Without cleanup, registrations
// accumulate without bound across restarts; without login, the other
// two steps are rejected as unauthorized.
type Registry struct {
	api     *taskapi.Client
	taskAPI config.TaskAPIConfig
	webhook config.WebhookConfig
	logger  logger.Logger
}

func NewRegistry(api *taskapi.Client, taskAPI config.TaskAPIConfig, webhook config.WebhookConfig, log logger.Logger) *Registry {
	return &Registry{
		api:     api,
		taskAPI: taskAPI,
		webhook: webhook,
		logger:  log,
	}
}

// Signup runs the full handshake and returns the registration holding
// the signing secret. Repeating it leaves exactly one active
// registration for our callback URL.
func (r *Registry) Signup(ctx context.Context) (taskapi.WebhookRegistration, error) {
	if err := r.login(ctx); err != nil {
		return taskapi.WebhookRegistration{}, err
	}

	r.cleanupStale(ctx)

	return r.register(ctx)
}

func (r *Registry) login(ctx context.Context) error {
	r.logger.InfowCtx(ctx, "Logging in to task API", "email", r.taskAPI.AdminEmail)

	return r.api.Login(ctx, r.taskAPI.AdminEmail, r.taskAPI.AdminPassword)
}

// cleanupStale deletes every registration whose callback URL matches
// ours. Failure is non-fatal: a duplicate registration is preferable
// to blocking startup on a flaky listing endpoint.
func (r *Registry) cleanupStale(ctx context.Context) {
	callback := r.webhook.CallbackURL
	r.logger.InfowCtx(ctx, "Cleaning up stale webhook registrations", "callback_url", callback)

	registrations, err := r.api.ListWebhooks(ctx)
	if err != nil {
		r.logger.WarnwCtx(ctx, "Could not list existing webhook registrations, proceeding",
			"error", err,
		)
		return
	}

	for _, reg := range registrations {
		if reg.URL != callback {
			continue
		}
		r.logger.InfowCtx(ctx, "Deleting stale webhook registration", "registration_id", reg.ID)
		if err := r.api.DeleteWebhook(ctx, reg.ID); err != nil {
			r.logger.WarnwCtx(ctx, "Could not delete stale webhook registration, proceeding",
				"registration_id", reg.ID,
				"error", err,
			)
		}
	}
}

func (r *Registry) register(ctx context.Context) (taskapi.WebhookRegistration, error) {
	callback := r.webhook.CallbackURL
	r.logger.InfowCtx(ctx, "Registering webhook",
		"callback_url", callback,
		"events", r.webhook.Events,
	)

	reg, err := r.api.CreateWebhook(ctx, callback, r.webhook.Events)
	if err != nil {
		return taskapi.WebhookRegistration{}, err
	}

	r.logger.InfowCtx(ctx, "Webhook registered", "registration_id", reg.ID)
	return reg, nil
}
