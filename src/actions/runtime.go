package actions

import (
	"go.uber.org/zap"

	"github.com/stake-plus/base-buddies/src/actions/core"
)

type (
	Manager = core.Manager
	Module  = core.Module
)

func NewManager(log *zap.Logger, mods ...Module) *Manager {
	return core.NewManager(log, mods...)
}
