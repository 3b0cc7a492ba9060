package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/stake-plus/base-buddies/src/app"
	"github.com/stake-plus/base-buddies/src/bus"
	"github.com/stake-plus/base-buddies/src/challenge"
	"github.com/stake-plus/base-buddies/src/config"
	"github.com/stake-plus/base-buddies/src/data"
	"github.com/stake-plus/base-buddies/src/logging"
)

// challenges is what the commands drive. *service.Service satisfies it.
type challenges interface {
	List(ctx context.Context, q challenge.Query) ([]challenge.View, error)
	Get(ctx context.Context, id uint64) (challenge.View, error)
	Dashboard(ctx context.Context, address string) (challenge.Dashboard, error)
	Create(ctx context.Context, creator string, form challenge.CreateForm) (challenge.Receipt, error)
	Edit(ctx context.Context, id uint64, form challenge.EditForm) (challenge.Receipt, error)
	Delete(ctx context.Context, id uint64) (challenge.Receipt, error)
	Complete(ctx context.Context, id uint64) (challenge.Receipt, error)
	Refund(ctx context.Context, id uint64) (challenge.Receipt, error)
}

type events interface {
	Subscribe(h bus.Handler) (cancel func())
}

// cli holds what the commands share. Tests fill svc and events directly.
type cli struct {
	svc    challenges
	events events
	sender string

	jsonOut  bool
	timeout  time.Duration
	logLevel string

	logger *zap.Logger
	closer io.Closer
}

func newRootCmd(c *cli) *cobra.Command {
	root := &cobra.Command{
		Use:           "buddies",
		Short:         "Browse and manage Base Buddies challenges",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if c.svc != nil {
				return nil
			}
			return c.open(cmd.Context())
		},
		PersistentPostRun: func(*cobra.Command, []string) {
			if c.closer != nil {
				_ = c.closer.Close()
			}
			if c.logger != nil {
				_ = c.logger.Sync()
			}
		},
	}
	root.PersistentFlags().BoolVar(&c.jsonOut, "json", false, "Print JSON instead of tables")
	root.PersistentFlags().DurationVar(&c.timeout, "timeout", 3*time.Minute, "How long to wait for a read or a mined transaction")
	root.PersistentFlags().StringVar(&c.logLevel, "log-level", "", "Override LOG_LEVEL")

	root.AddCommand(
		c.listCmd(),
		c.showCmd(),
		c.dashboardCmd(),
		c.createCmd(),
		c.editCmd(),
		c.actionCmd("delete", "Delete a challenge you created", challenges.Delete),
		c.actionCmd("complete", "Mark a challenge as completed", challenges.Complete),
		c.actionCmd("refund", "Refund the unclaimed reward of an expired challenge", challenges.Refund),
		c.watchCmd(),
	)
	return root
}

func (c *cli) open(ctx context.Context) error {
	var db *gorm.DB
	if dsn := strings.TrimSpace(os.Getenv("MYSQL_DSN")); dsn != "" {
		var err error
		if db, err = data.ConnectMySQL(dsn); err != nil {
			return err
		}
		if err := data.LoadSettings(db); err != nil {
			return fmt.Errorf("load settings: %w", err)
		}
	}
	cfg := config.Load(db)
	if c.logLevel != "" {
		cfg.LogLevel = c.logLevel
	} else if os.Getenv("LOG_LEVEL") == "" {
		cfg.LogLevel = "warn"
	}
	logger, err := logging.New(cfg.LogLevel)
	if err != nil {
		return err
	}
	c.logger = logger

	a, err := app.Open(ctx, cfg, db, logger)
	if err != nil {
		return err
	}
	c.svc, c.events, c.closer = a.Service, a.Bus, a
	if addr, ok := a.Chain.Sender(); ok {
		c.sender = strings.ToLower(addr.Hex())
	}
	return nil
}

func main() {
	ctx, cancel := signalContext()
	defer cancel()
	if err := newRootCmd(&cli{}).ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
