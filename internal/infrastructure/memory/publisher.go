package memory

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/baechuer/community-service/internal/application/identity"
)

// NoopPublisher logs events instead of sending them. Used in dev when no broker is reachable.
type NoopPublisher struct{}

func NewNoopPublisher() *NoopPublisher { return &NoopPublisher{} }

func (p *NoopPublisher) PublishVerifyEmail(ctx context.Context, evt identity.VerifyEmailEvent) error {
	log.Info().
		Str("component", "noop-pub").
		Int64("user_id", evt.UserID).
		Str("url", evt.URL).
		Msg("verify email")
	return nil
}

func (p *NoopPublisher) PublishAccountsSuperseded(ctx context.Context, evt identity.AccountsSupersededEvent) error {
	log.Info().
		Str("component", "noop-pub").
		Int64("winner_id", evt.WinnerID).
		Ints64("removed_ids", evt.RemovedIDs).
		Msg("accounts superseded")
	return nil
}
