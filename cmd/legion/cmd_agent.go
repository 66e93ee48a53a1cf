package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"legion-prm/pkg/errutil"
	"legion-prm/pkg/refresh"
	"legion-prm/services/batch"
	"legion-prm/services/progress"

	"github.com/spf13/cobra"
)

func newAgentCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "agent",
		Short: "Report progress, download batches and join campaigns",
	}

	cmd.AddCommand(
		agentDashboardCmd(c),
		agentReportCmd(c),
		agentBatchesCmd(c),
		agentDownloadCmd(c),
		agentCampaignsCmd(c),
		agentJoinCmd(c),
		agentLeaderboardCmd(c),
	)
	return cmd
}

func (c *cli) agentRefresher(p *printer) *refresh.Refresher {
	return refresh.NewRefresher().
		On(refresh.AgentCampaigns, func(ctx context.Context) error {
			list, err := c.svc.Campaigns.Available(ctx)
			if err != nil {
				return err
			}
			p.line("")
			p.agentCampaigns(list)
			return nil
		})
}

func agentDashboardCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "dashboard",
		Short: "Show score, today's progress and assigned batches",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			d, err := c.svc.Agents.Dashboard(ctx)
			if err != nil {
				return err
			}
			today, err := c.svc.Progress.Today(ctx)
			if err != nil {
				return err
			}
			batches, err := c.svc.Batches.MyBatches(ctx)
			if err != nil {
				return err
			}

			p := c.printer()
			p.title(fmt.Sprintf("Hi %s", d.User.Name))
			p.line("XP: %d  balance: $%.2f  open tasks: %d", d.User.Score, d.User.Balance, len(d.Tasks))
			p.line("")
			p.today(today)
			p.line("")
			if active, ok := batch.Active(batches); ok {
				first, last := active.Serials()
				p.line("Active batch: %s (%s-%s) %s", active.FileName, first, last, p.batchStatus(active.Status))
			} else {
				p.line("No active batch.")
			}
			return nil
		},
	}
}

func agentReportCmd(c *cli) *cobra.Command {
	var notes string
	cmd := &cobra.Command{
		Use:   "report morning|evening COUNT",
		Short: "Report contacts added in a session",
		Long: `Report how many contacts were added in the morning or evening session.

Each session is reported once a day against the active batch. COUNT is
clamped to 0..50.`,
		Args:      cobra.ExactArgs(2),
		ValidArgs: []string{string(progress.SessionMorning), string(progress.SessionEvening)},
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			session, err := progress.ParseSession(args[0])
			if err != nil {
				return errutil.Wrap(progress.ErrInvalidSession, err)
			}
			count, err := strconv.Atoi(args[1])
			if err != nil {
				return errutil.ValidationFailed("count must be a number", err)
			}

			tracker := c.svc.Progress.Tracker()
			if _, err := tracker.Load(ctx); err != nil {
				return err
			}

			receipt, err := tracker.ReportSession(ctx, session, count, notes)
			if err != nil {
				return err
			}

			p := c.printer()
			p.ok("%s session reported: +%d XP (total %d, streak x%.1f)", session.Label(), receipt.XPEarned, receipt.TotalXP, receipt.StreakMultiplier)
			p.line("")
			p.today(tracker.Today())
			return nil
		},
	}
	cmd.Flags().StringVar(&notes, "notes", "", "Optional notes")
	return cmd
}

func agentBatchesCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "batches",
		Short: "List batches assigned to you",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			list, err := c.svc.Batches.MyBatches(cmd.Context())
			if err != nil {
				return err
			}
			c.printer().batches(list)
			return nil
		},
	}
}

func agentDownloadCmd(c *cli) *cobra.Command {
	var dir string
	cmd := &cobra.Command{
		Use:   "download BATCH_ID",
		Short: "Download the VCF file of a batch",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			list, err := c.svc.Batches.MyBatches(ctx)
			if err != nil {
				return err
			}

			var b batch.Batch
			for _, candidate := range list {
				if candidate.ID == args[0] {
					b = candidate
				}
			}
			if b.ID == "" {
				return errutil.NotFound("batch not found", nil)
			}

			if err := os.MkdirAll(dir, 0o755); err != nil {
				return err
			}
			tmp, err := os.CreateTemp(dir, ".legion-*.vcf")
			if err != nil {
				return err
			}
			defer os.Remove(tmp.Name())

			name, err := c.svc.Batches.Download(ctx, b, tmp)
			if closeErr := tmp.Close(); err == nil {
				err = closeErr
			}
			if err != nil {
				return err
			}

			dst := filepath.Join(dir, filepath.Base(name))
			if err := os.Rename(tmp.Name(), dst); err != nil {
				return err
			}
			c.printer().ok("Saved %s", dst)
			return nil
		},
	}
	cmd.Flags().StringVarP(&dir, "output", "o", ".", "Directory to save the file in")
	return cmd
}

func agentCampaignsCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "campaigns",
		Short: "List active campaigns and your links",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			list, err := c.svc.Campaigns.Available(cmd.Context())
			if err != nil {
				return err
			}
			c.printer().agentCampaigns(list)
			return nil
		},
	}
}

func agentJoinCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "join CAMPAIGN_ID",
		Short: "Join a campaign and get your tracking link",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := c.svc.Campaigns.Join(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			p := c.printer()
			p.ok("Joined %s: %s", res.Value.CampaignName, res.Value.TrackingURL)
			c.reload(cmd.Context(), c.agentRefresher(p), res.Refresh)
			return nil
		},
	}
}

func agentLeaderboardCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "leaderboard",
		Short: "Show the top agents by XP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			board, err := c.svc.Agents.Leaderboard(cmd.Context())
			if err != nil {
				return err
			}

			var me string
			if st, ok, err := c.svc.Agents.Me(cmd.Context(), board); err == nil && ok {
				me = st.Agent.ID
			}
			c.printer().leaderboard(board, me)
			return nil
		},
	}
}
