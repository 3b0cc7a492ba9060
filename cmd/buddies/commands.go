package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/stake-plus/base-buddies/src/bus"
	"github.com/stake-plus/base-buddies/src/challenge"
	"github.com/stake-plus/base-buddies/src/logging"
	"github.com/stake-plus/base-buddies/src/service"
)

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func parseID(s string) (uint64, error) {
	id, err := strconv.ParseUint(s, 10, 64)
	if err != nil || id == 0 {
		return 0, fmt.Errorf("invalid challenge id %q", s)
	}
	return id, nil
}

func (c *cli) bounded(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	return context.WithTimeout(cmd.Context(), c.timeout)
}

func (c *cli) listCmd() *cobra.Command {
	var q challenge.Query
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List challenges",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := c.bounded(cmd)
			defer cancel()
			views, err := c.svc.List(ctx, q)
			if err != nil {
				return err
			}
			if c.jsonOut {
				return writeJSON(cmd.OutOrStdout(), views)
			}
			return writeTable(cmd.OutOrStdout(), views)
		},
	}
	cmd.Flags().StringVar(&q.Search, "search", "", "Match title or description")
	cmd.Flags().StringVar(&q.Category, "category", challenge.CategoryAll, "Only this category")
	cmd.Flags().StringVar(&q.Sort, "sort", challenge.SortNewest, "newest, reward, participants or ending")
	return cmd
}

func (c *cli) showCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show ID",
		Short: "Show one challenge",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			ctx, cancel := c.bounded(cmd)
			defer cancel()
			v, err := c.svc.Get(ctx, id)
			if err != nil {
				return err
			}
			if c.jsonOut {
				return writeJSON(cmd.OutOrStdout(), v)
			}
			return writeDetail(cmd.OutOrStdout(), v)
		},
	}
}

func (c *cli) dashboardCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "dashboard ADDRESS",
		Short: "Summarise what an address created and completed",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := c.bounded(cmd)
			defer cancel()
			d, err := c.svc.Dashboard(ctx, args[0])
			if err != nil {
				return err
			}
			if c.jsonOut {
				return writeJSON(cmd.OutOrStdout(), d)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Address:       %s\n", d.Address)
			fmt.Fprintf(out, "Created:       %d (%d active, %d refundable)\n", d.CreatedCount, d.ActiveCreated, d.RefundableCreated)
			fmt.Fprintf(out, "Completed:     %d\n", d.CompletedCount)
			fmt.Fprintf(out, "Participants:  %d\n", d.TotalParticipants)
			fmt.Fprintf(out, "Rewards:       %s\n", d.TotalRewardsDisplay)
			if len(d.Created) > 0 {
				fmt.Fprintln(out, "\nCreated challenges:")
				if err := writeTable(out, d.Created); err != nil {
					return err
				}
			}
			if len(d.Completed) > 0 {
				fmt.Fprintln(out, "\nCompleted challenges:")
				return writeTable(out, d.Completed)
			}
			return nil
		},
	}
}

func (c *cli) createCmd() *cobra.Command {
	var form challenge.CreateForm
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a challenge, funding reward x participants",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if c.sender == "" {
				return service.ErrReadOnly
			}
			ctx, cancel := c.bounded(cmd)
			defer cancel()
			rcpt, err := c.svc.Create(ctx, c.sender, form)
			return c.report(cmd.OutOrStdout(), "create", rcpt, err)
		},
	}
	f := cmd.Flags()
	f.StringVar(&form.Title, "title", "", "Challenge title")
	f.StringVar(&form.Description, "description", "", "What participants must do")
	f.StringVar(&form.Nickname, "nickname", "", "Name shown as the creator")
	f.StringVar(&form.Category, "category", "Social", "Social, Education, Lifestyle, Creative or Tech")
	f.StringVar(&form.ProofType, "proof", "image", "image, video, link or text")
	f.StringVar(&form.Requirements, "requirements", "", "Proof requirements")
	f.StringVar(&form.Reward, "reward", "", "Reward per participant in ETH")
	f.IntVar(&form.DurationDays, "days", 7, "Days until the deadline")
	f.Uint64Var(&form.MaxParticipants, "max", 10, "Maximum participants")
	return cmd
}

func (c *cli) editCmd() *cobra.Command {
	var (
		form challenge.EditForm
		days int
	)
	cmd := &cobra.Command{
		Use:   "edit ID",
		Short: "Edit a challenge you created",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			ctx, cancel := c.bounded(cmd)
			defer cancel()
			cur, err := c.svc.Get(ctx, id)
			if err != nil {
				return err
			}
			if !cmd.Flags().Changed("title") {
				form.Title = cur.Title
			}
			if !cmd.Flags().Changed("description") {
				form.Description = cur.Description
			}
			if !cmd.Flags().Changed("reward") && cur.Reward != nil {
				form.Reward = decimal.NewFromBigInt(cur.Reward, -challenge.WeiDecimals).String()
			}
			form.Deadline = cur.Deadline
			if days > 0 {
				form.Deadline = time.Now().Unix() + int64(days)*86400
			}
			rcpt, err := c.svc.Edit(ctx, id, form)
			return c.report(cmd.OutOrStdout(), "edit", rcpt, err)
		},
	}
	cmd.Flags().StringVar(&form.Title, "title", "", "New title")
	cmd.Flags().StringVar(&form.Description, "description", "", "New description")
	cmd.Flags().StringVar(&form.Reward, "reward", "", "New reward per participant in ETH")
	cmd.Flags().IntVar(&days, "days", 0, "Move the deadline to this many days from now")
	return cmd
}

func (c *cli) actionCmd(name, short string, do func(challenges, context.Context, uint64) (challenge.Receipt, error)) *cobra.Command {
	return &cobra.Command{
		Use:   name + " ID",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			ctx, cancel := c.bounded(cmd)
			defer cancel()
			rcpt, err := do(c.svc, ctx, id)
			return c.report(cmd.OutOrStdout(), name, rcpt, err)
		},
	}
}

func (c *cli) watchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Print challenge changes as other clients make them",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			out := cmd.OutOrStdout()
			ch := make(chan bus.Event, 16)
			cancel := c.events.Subscribe(func(ev bus.Event) {
				select {
				case ch <- ev:
				default:
				}
			})
			defer cancel()
			for {
				select {
				case <-cmd.Context().Done():
					return nil
				case ev := <-ch:
					if c.jsonOut {
						if err := writeJSON(out, ev); err != nil {
							return err
						}
						continue
					}
					fmt.Fprintf(out, "%s  challenge %d %s\n", ev.At.Format(time.RFC3339), ev.ChallengeID, ev.Kind)
				}
			}
		},
	}
}

// report prints a mined write, or turns a failure into readable text.
func (c *cli) report(out io.Writer, action string, rcpt challenge.Receipt, err error) error {
	if err != nil {
		if challenge.IsValidation(err) || errors.Is(err, service.ErrReadOnly) || errors.Is(err, service.ErrNotFound) {
			return err
		}
		return errors.New(logging.Explain(err))
	}
	if c.jsonOut {
		return writeJSON(out, rcpt)
	}
	fmt.Fprintf(out, "%s: challenge %d, tx %s (block %d)\n", action, rcpt.ChallengeID, rcpt.TxHash, rcpt.Block)
	return nil
}

func writeJSON(out io.Writer, v any) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func writeTable(out io.Writer, views []challenge.View) error {
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tTITLE\tCATEGORY\tSTATUS\tREWARD\tJOINED\tTIME LEFT")
	for _, v := range views {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%d/%d\t%s\n",
			v.ID, v.Title, v.Category, v.Status, v.RewardDisplay,
			v.CurrentParticipants, v.MaxParticipants, v.TimeLeft)
	}
	return tw.Flush()
}

func writeDetail(out io.Writer, v challenge.View) error {
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	rows := [][2]string{
		{"ID", strconv.FormatUint(v.ID, 10)},
		{"Title", v.Title},
		{"Description", v.Description},
		{"Creator", v.CreatorDisplay},
		{"Category", v.Category},
		{"Proof", string(v.ProofType)},
		{"Requirements", v.Requirements},
		{"Status", string(v.Status)},
		{"Reward", v.RewardDisplay},
		{"Pool", v.TotalPoolDisplay},
		{"Participants", fmt.Sprintf("%d/%d", v.CurrentParticipants, v.MaxParticipants)},
		{"Time left", v.TimeLeft},
	}
	for _, r := range rows {
		if r[1] == "" {
			continue
		}
		fmt.Fprintf(tw, "%s:\t%s\n", r[0], r[1])
	}
	return tw.Flush()
}
