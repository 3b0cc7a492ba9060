package actions

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/stake-plus/base-buddies/src/actions/announce"
	"github.com/stake-plus/base-buddies/src/actions/refresh"
	"github.com/stake-plus/base-buddies/src/bus"
	"github.com/stake-plus/base-buddies/src/chain"
	"github.com/stake-plus/base-buddies/src/config"
	"github.com/stake-plus/base-buddies/src/service"
)

// Deps are the shared components modules are built from.
type Deps struct {
	Config  config.Config
	Service *service.Service
	Bus     *bus.Bus
	Chain   *chain.Client
	Log     *zap.Logger
}

// StartAll wires up enabled action modules and starts the manager. The
// refresh module is returned so the HTTP layer can serve from it.
func StartAll(ctx context.Context, d Deps) (*Manager, *refresh.Module, error) {
	if d.Log == nil {
		d.Log = zap.NewNop()
	}
	mgr := NewManager(d.Log)

	var heads refresh.Heads
	if d.Chain != nil {
		heads = d.Chain.Heads(d.Config.Chain.HeadInterval)
	}
	refreshMod := refresh.NewModule(d.Service, heads, d.Bus, d.Config.PollInterval, d.Log)
	if err := mgr.Add(refreshMod); err != nil {
		return nil, nil, fmt.Errorf("actions: add refresh module: %w", err)
	}

	if d.Config.Discord.Enabled {
		mod, err := announce.NewModule(d.Config.Discord.Token, d.Config.Discord.ChannelID, d.Config.PublicURL, d.Service, d.Bus, d.Log)
		if err != nil {
			return nil, nil, fmt.Errorf("actions: init announce module: %w", err)
		}
		if err := mgr.Add(mod); err != nil {
			return nil, nil, fmt.Errorf("actions: add announce module: %w", err)
		}
	} else {
		d.Log.Info("announce module disabled via configuration")
	}

	if err := mgr.Start(ctx); err != nil {
		return nil, nil, err
	}
	return mgr, refreshMod, nil
}
