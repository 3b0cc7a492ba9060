package webserver

import (
	"context"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/stake-plus/base-buddies/src/bus"
	"github.com/stake-plus/base-buddies/src/challenge"
	"github.com/stake-plus/base-buddies/src/config"
	"github.com/stake-plus/base-buddies/src/data"
	"github.com/stake-plus/base-buddies/src/service"
)

// Catalog lists challenge views. The refresh module serves from its
// snapshot; the service reads through to the contract.
type Catalog interface {
	List(ctx context.Context, q challenge.Query) ([]challenge.View, error)
}

// Challenges is the per-challenge read and write flow.
type Challenges interface {
	Get(ctx context.Context, id uint64) (challenge.View, error)
	Dashboard(ctx context.Context, address string) (challenge.Dashboard, error)
	PrepareCreate(ctx context.Context, creator string, form challenge.CreateForm) (challenge.CreatePlan, error)
	Prepare(ctx context.Context, action service.Action, id uint64, edit challenge.EditForm) (challenge.Call, error)
	Confirm(ctx context.Context, action service.Action, id uint64, hash, from string) (challenge.Receipt, error)
}

type Events interface {
	Subscribe(h bus.Handler) (cancel func())
}

type Deps struct {
	Config     config.Config
	Catalog    Catalog
	Challenges Challenges
	Events     Events
	Nonces     data.Nonces
	DB         *gorm.DB
	Contract   common.Address
	Log        *zap.Logger
}

// New builds the router. Background helpers stop with ctx.
func New(ctx context.Context, d Deps) *gin.Engine {
	if d.Log == nil {
		d.Log = zap.NewNop()
	}
	g := gin.New()
	g.Use(requestLogger(d.Log.Named("http")), gin.Recovery())
	attachRoutes(ctx, g, d)
	return g
}

func requestLogger(log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.Debug("request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("took", time.Since(start)),
			zap.String("ip", c.ClientIP()),
		)
	}
}
