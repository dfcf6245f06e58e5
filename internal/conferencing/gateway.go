package conferencing

import (
	"context"
	"errors"
	"fmt"

	confErrors "meetly/internal/conferencing/errors"
	"meetly/internal/conferencing/repository"
	"meetly/pkg/logger"
	"meetly/pkg/model"
)

// Gateway is the provider client plus the local session mirror. Mirror writes
// use the caller's context, so they join an open transaction.
type Gateway struct {
	client   *Client
	sessions repository.SessionRepository
	log      *logger.Logger
}

func NewGateway(client *Client, sessions repository.SessionRepository, log *logger.Logger) *Gateway {
	return &Gateway{
		client:   client,
		sessions: sessions,
		log:      log.WithComponent("conferencing"),
	}
}

func (g *Gateway) Timezone() string {
	return g.client.Timezone()
}

func (g *Gateway) Authenticate(ctx context.Context, account *model.ConferencingAccount) error {
	return g.client.Authenticate(ctx, account)
}

// CreateSession creates a remote session on account and mirrors it locally,
// tagged with the meeting and the account.
func (g *Gateway) CreateSession(ctx context.Context, account *model.ConferencingAccount, params SessionParams, meetingID string) (*model.ConferencingSession, error) {
	remote, err := g.client.CreateSession(ctx, account, params)
	if err != nil {
		return nil, err
	}

	session := remote.ToModel(meetingID, account.ID)
	if err := g.sessions.Upsert(ctx, session); err != nil {
		return nil, fmt.Errorf("failed to mirror created session: %w", err)
	}

	g.log.Info("Conferencing session created",
		"meeting_id", meetingID,
		"account_id", account.ID,
		"provider_id", session.ProviderID,
	)
	return session, nil
}

// UpdateSession patches the remote session, then re-reads it and refreshes
// the mirror. A failed re-read leaves the mirror stale but is not an error.
func (g *Gateway) UpdateSession(ctx context.Context, account *model.ConferencingAccount, remoteID string, params SessionParams) error {
	if err := g.client.UpdateSession(ctx, account, remoteID, params); err != nil {
		return err
	}

	remote, err := g.client.GetSession(ctx, account, remoteID)
	if err != nil {
		g.log.Warn("Failed to re-read updated session", "provider_id", remoteID, "error", err)
		return nil
	}
	if _, err := g.mirror(ctx, remote); err != nil {
		g.log.Warn("Failed to mirror updated session", "provider_id", remoteID, "error", err)
	}
	return nil
}

// DeleteSession deletes the remote session and its mirror row.
func (g *Gateway) DeleteSession(ctx context.Context, account *model.ConferencingAccount, remoteID string) error {
	if err := g.client.DeleteSession(ctx, account, remoteID); err != nil {
		return err
	}
	if err := g.sessions.DeleteByProviderID(ctx, remoteID); err != nil && !errors.Is(err, confErrors.ErrNotFound) {
		return fmt.Errorf("failed to delete session mirror: %w", err)
	}
	return nil
}

// RefreshSession re-reads the remote session together with its recordings and
// summary and stores them on the mirror. Recordings and summary are optional.
func (g *Gateway) RefreshSession(ctx context.Context, account *model.ConferencingAccount, existing *model.ConferencingSession) (*model.ConferencingSession, error) {
	remote, err := g.client.GetSession(ctx, account, existing.ProviderID)
	if err != nil {
		return nil, err
	}

	session := *existing
	remote.ApplyTo(&session)

	if recordings, err := g.client.GetRecordings(ctx, account, existing.ProviderID); err == nil {
		session.RecordingPlayURL = recordings.PlayURL()
		session.RecordingPasscode = recordings.Passcode()
	} else if !confErrors.IsNotFound(err) {
		g.log.Warn("Failed to fetch recordings", "provider_id", existing.ProviderID, "error", err)
	}

	if session.ProviderUUID != "" {
		if summary, err := g.client.GetSessionSummary(ctx, account, session.ProviderUUID); err == nil {
			session.SummaryContent = summary.Content()
		} else if !confErrors.IsNotFound(err) {
			g.log.Warn("Failed to fetch session summary", "provider_id", existing.ProviderID, "error", err)
		}
	}

	if err := g.sessions.Upsert(ctx, &session); err != nil {
		return nil, fmt.Errorf("failed to mirror refreshed session: %w", err)
	}
	return &session, nil
}

func (g *Gateway) mirror(ctx context.Context, remote *RemoteSession) (*model.ConferencingSession, error) {
	session, err := g.sessions.FindByProviderID(ctx, remote.ID.String())
	if err != nil {
		if !errors.Is(err, confErrors.ErrNotFound) {
			return nil, err
		}
		session = &model.ConferencingSession{}
	}
	remote.ApplyTo(session)
	if err := g.sessions.Upsert(ctx, session); err != nil {
		return nil, err
	}
	return session, nil
}

func (g *Gateway) GetSession(ctx context.Context, account *model.ConferencingAccount, remoteID string) (*RemoteSession, error) {
	return g.client.GetSession(ctx, account, remoteID)
}

func (g *Gateway) ListSessions(ctx context.Context, account *model.ConferencingAccount) (*SessionList, error) {
	return g.client.ListSessions(ctx, account)
}

func (g *Gateway) GetSessionSummary(ctx context.Context, account *model.ConferencingAccount, sessionUUID string) (*SessionSummary, error) {
	return g.client.GetSessionSummary(ctx, account, sessionUUID)
}

func (g *Gateway) GetPastSessionDetails(ctx context.Context, account *model.ConferencingAccount, remoteID string) (*PastSessionDetails, error) {
	return g.client.GetPastSessionDetails(ctx, account, remoteID)
}

func (g *Gateway) GetRecordings(ctx context.Context, account *model.ConferencingAccount, remoteID string) (*Recordings, error) {
	return g.client.GetRecordings(ctx, account, remoteID)
}
