package sqlc

import (
	"context"
	"net"

	"github.com/sqlc-dev/pqtype"
)

// AnalyticsManager counts games per server address. A manager without
// queries records nothing, which is how the server runs without a database.
type AnalyticsManager struct {
	queries  Querier
	serverIp pqtype.Inet
}

func NewAnalyticsManager(queries Querier, serverIpNet net.IPNet) *AnalyticsManager {
	return &AnalyticsManager{
		queries:  queries,
		serverIp: pqtype.Inet{IPNet: serverIpNet, Valid: serverIpNet.IP != nil},
	}
}

func (a *AnalyticsManager) Enabled() bool {
	return a != nil && a.queries != nil
}

func (a *AnalyticsManager) ServerIp() pqtype.Inet {
	return a.serverIp
}

func (a *AnalyticsManager) IncrementGamesCreatedCount(ctx context.Context) error {
	if !a.Enabled() {
		return nil
	}
	return a.queries.IncrementGamesCreatedCount(ctx, a.serverIp)
}

// IncrementGamesFinishedCount counts a finished game and, when it ended by
// forfeit, the forfeit as well.
func (a *AnalyticsManager) IncrementGamesFinishedCount(ctx context.Context, forfeit bool) error {
	if !a.Enabled() {
		return nil
	}
	if err := a.queries.IncrementGamesFinishedCount(ctx, a.serverIp); err != nil {
		return err
	}
	if forfeit {
		return a.queries.IncrementGamesForfeitedCount(ctx, a.serverIp)
	}
	return nil
}

func (a *AnalyticsManager) GetGamesCreatedCount(ctx context.Context) (int64, error) {
	if !a.Enabled() {
		return 0, nil
	}
	return a.queries.GetGamesCreatedCount(ctx, a.serverIp)
}

func (a *AnalyticsManager) GetServerAnalytics(ctx context.Context) (GameServerAnalytic, error) {
	if !a.Enabled() {
		return GameServerAnalytic{ServerIp: a.serverIp}, nil
	}
	return a.queries.GetServerAnalytics(ctx, a.serverIp)
}
