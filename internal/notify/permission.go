package notify

import (
	"context"
	"strconv"

	"github.com/offloadhq/offload-client/internal/logctx"
	"github.com/offloadhq/offload-client/internal/state"
)

// SettingsPermission backs the notification gate with a persisted flag. There
// is no OS prompt in a terminal client, so the first request opts the user in
// and persists the flag; setting it to false afterwards revokes delivery.
type SettingsPermission struct {
	Settings state.SettingsRepository
}

func (p *SettingsPermission) Granted(context.Context) bool {
	raw, ok, err := p.Settings.Get(state.KeyNotificationsEnabled)
	if err != nil || !ok {
		return false
	}

	enabled, _ := strconv.ParseBool(raw)

	return enabled
}

func (p *SettingsPermission) Request(ctx context.Context) bool {
	raw, ok, err := p.Settings.Get(state.KeyNotificationsEnabled)
	if err == nil && ok {
		// An explicit choice, either way, is final.
		enabled, _ := strconv.ParseBool(raw)

		return enabled
	}

	if err := p.Settings.Set(state.KeyNotificationsEnabled, "true"); err != nil {
		logctx.LoggerFromContext(ctx).Warn("failed to persist notification opt-in", "err", err)

		return false
	}

	return true
}
