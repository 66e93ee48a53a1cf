package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"legion-prm/pkg/refresh"
	"legion-prm/services/assignment"
	"legion-prm/services/batch"
	"legion-prm/services/campaign"
	"legion-prm/services/monitoring"

	"github.com/spf13/cobra"
)

func newAdminCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "admin",
		Short: "Manage contacts, batches, campaigns and agents",
	}

	cmd.AddCommand(
		adminOverviewCmd(c),
		adminPoolCmd(c),
		adminUploadCmd(c),
		adminGenerateCmd(c),
		adminBatchesCmd(c),
		adminAssignCmd(c),
		adminAgentsCmd(c),
		adminCampaignCmd(c),
		adminAssignmentsCmd(c),
		adminReviewCmd(c),
		adminMonitorCmd(c),
		adminInactiveCmd(c),
		adminExportCmd(c),
	)
	return cmd
}

// adminRefresher reloads and prints the admin views a mutation invalidated.
func (c *cli) adminRefresher(p *printer) *refresh.Refresher {
	return refresh.NewRefresher().
		On(refresh.PoolStats, func(ctx context.Context) error {
			stats, err := c.svc.Batches.PoolStats(ctx)
			if err != nil {
				return err
			}
			p.line("")
			p.pool(stats)
			return nil
		}).
		On(refresh.Batches, func(ctx context.Context) error {
			list, err := c.svc.Batches.List(ctx, batch.StatusPending)
			if err != nil {
				return err
			}
			p.line("")
			p.title("Pending batches")
			p.batches(list)
			return nil
		}).
		On(refresh.Campaigns, func(ctx context.Context) error {
			list, err := c.svc.Campaigns.List(ctx, "")
			if err != nil {
				return err
			}
			p.line("")
			p.campaigns(list)
			return nil
		}).
		On(refresh.Assignments, func(ctx context.Context) error {
			list, err := c.svc.Assignments.List(ctx, assignment.StatusPending)
			if err != nil {
				return err
			}
			p.line("")
			p.title("Waiting for review")
			p.assignments(list)
			return nil
		})
}

// reload applies collections and reports a failed reload without failing the
// command; the mutation itself already succeeded.
func (c *cli) reload(ctx context.Context, r *refresh.Refresher, collections []refresh.Collection) {
	if err := r.Apply(ctx, collections); err != nil {
		fmt.Fprintf(c.errOut, "warning: %v\n", err)
	}
}

func adminOverviewCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "overview",
		Short: "Show headline numbers, pool state and agent health",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			o, err := c.svc.Agents.Overview(cmd.Context())
			if err != nil {
				return err
			}
			c.printer().overview(o)
			return nil
		},
	}
}

func adminPoolCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "pool",
		Short: "Show contact pool statistics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			stats, err := c.svc.Batches.PoolStats(cmd.Context())
			if err != nil {
				return err
			}
			c.printer().pool(stats)
			return nil
		},
	}
}

func adminUploadCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "upload FILE",
		Short: "Import an Excel contact list into the pool",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := args[0]
			if err := batch.CheckUploadName(path); err != nil {
				return err
			}

			f, err := os.Open(path)
			if err != nil {
				return err
			}
			defer f.Close()

			res, err := c.svc.Batches.Upload(cmd.Context(), filepath.Base(path), f)
			if err != nil {
				return err
			}

			p := c.printer()
			s := res.Value
			p.ok("Uploaded! %d new contacts added.", s.NewContacts)
			p.line("Rows: %d  valid: %d  duplicates: %d  invalid: %d", s.TotalRows, s.ValidPhones, s.Duplicates, s.InvalidEntries)
			if len(s.InvalidSamples) > 0 {
				p.line("Invalid samples: %s", strings.Join(s.InvalidSamples, ", "))
			}
			c.reload(cmd.Context(), c.adminRefresher(p), res.Refresh)
			return nil
		},
	}
}

func adminGenerateCmd(c *cli) *cobra.Command {
	var req batch.GenerateRequest
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate a VCF batch from unassigned contacts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			pool, err := c.svc.Batches.PoolStats(cmd.Context())
			if err != nil {
				return err
			}

			res, err := c.svc.Batches.Generate(cmd.Context(), pool, req)
			if err != nil {
				return err
			}

			p := c.printer()
			for _, b := range res.Value {
				first, last := b.Serials()
				p.ok("Generated %s with %d contacts (%s-%s)", b.FileName, b.ContactCount, first, last)
			}
			c.reload(cmd.Context(), c.adminRefresher(p), res.Refresh)
			return nil
		},
	}
	cmd.Flags().StringVar(&req.Prefix, "prefix", batch.DefaultPrefix, "Contact name prefix")
	cmd.Flags().IntVar(&req.BatchSize, "size", batch.DefaultBatchSize, "Contacts per batch")
	return cmd
}

func adminBatchesCmd(c *cli) *cobra.Command {
	var status string
	cmd := &cobra.Command{
		Use:   "batches",
		Short: "List VCF batches",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var st batch.Status
			if status != "" {
				parsed, err := batch.ParseStatus(status)
				if err != nil {
					return err
				}
				st = parsed
			}

			list, err := c.svc.Batches.List(cmd.Context(), st)
			if err != nil {
				return err
			}
			c.printer().batches(list)
			return nil
		},
	}
	cmd.Flags().StringVar(&status, "status", "", "Only batches with status PENDING, ASSIGNED, IN_PROGRESS or COMPLETED")
	return cmd
}

func adminAssignCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "assign BATCH_ID AGENT_ID",
		Short: "Assign a pending batch to an agent",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			var agentID string
			if len(args) == 2 {
				agentID = args[1]
			}
			if strings.TrimSpace(agentID) == "" {
				return batch.ErrAgentRequired
			}

			b, err := c.svc.Batches.Find(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			res, err := c.svc.Batches.Assign(cmd.Context(), b, agentID)
			if err != nil {
				return err
			}

			p := c.printer()
			name := res.Value.AgentName
			if name == "" {
				name = agentID
			}
			p.ok("Batch %s assigned to %s", res.Value.FileName, name)
			c.reload(cmd.Context(), c.adminRefresher(p), res.Refresh)
			return nil
		},
	}
}

func adminAgentsCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "agents",
		Short: "List agents",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			list, err := c.svc.Agents.Directory(cmd.Context())
			if err != nil {
				return err
			}
			c.printer().agents(list)
			return nil
		},
	}
}

func adminCampaignCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "campaigns",
		Aliases: []string{"campaign"},
		Short:   "List and manage campaigns",
		Args:    cobra.NoArgs,
	}

	var status string
	cmd.Flags().StringVar(&status, "status", "", "Only campaigns with this status")
	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		var st campaign.CampaignStatus
		if status != "" {
			parsed, err := campaign.ParseStatus(status)
			if err != nil {
				return err
			}
			st = parsed
		}
		list, err := c.svc.Campaigns.List(cmd.Context(), st)
		if err != nil {
			return err
		}
		c.printer().campaigns(list)
		return nil
	}

	var req campaign.CreateRequest
	create := &cobra.Command{
		Use:   "create",
		Short: "Create a campaign",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := c.svc.Campaigns.Create(cmd.Context(), req)
			if err != nil {
				return err
			}
			p := c.printer()
			p.ok("Campaign created: %s (ID: %s)", res.Value.Name, res.Value.ID)
			c.reload(cmd.Context(), c.adminRefresher(p), res.Refresh)
			return nil
		},
	}
	create.Flags().StringVar(&req.Name, "name", "", "Campaign name")
	create.Flags().StringVar(&req.TargetURL, "url", "", "Target URL")
	create.Flags().StringVar(&req.Description, "description", "", "Description")
	create.Flags().Float64Var(&req.PayoutPerView, "payout", campaign.DefaultPayoutPerView, "Payout per view")
	create.Flags().IntVar(&req.PointsPerView, "points", campaign.DefaultPointsPerView, "XP per view")
	create.Flags().Float64Var(&req.BudgetCap, "budget", campaign.DefaultBudgetCap, "Budget cap")

	setStatus := func(use, short string, target campaign.CampaignStatus) *cobra.Command {
		return &cobra.Command{
			Use:   use + " CAMPAIGN_ID",
			Short: short,
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				res, err := c.svc.Campaigns.SetStatus(cmd.Context(), args[0], target)
				if err != nil {
					return err
				}
				p := c.printer()
				p.ok("Campaign %s is now %s", args[0], p.campaignStatus(res.Value))
				c.reload(cmd.Context(), c.adminRefresher(p), res.Refresh)
				return nil
			},
		}
	}

	toggle := &cobra.Command{
		Use:   "toggle CAMPAIGN_ID",
		Short: "Pause an active campaign or resume a paused one",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			list, err := c.svc.Campaigns.List(cmd.Context(), "")
			if err != nil {
				return err
			}
			found, ok := campaign.Find(list, args[0])
			if !ok {
				return fmt.Errorf("campaign %s not found", args[0])
			}
			res, err := c.svc.Campaigns.Toggle(cmd.Context(), found)
			if err != nil {
				return err
			}
			p := c.printer()
			p.ok("Campaign %s is now %s", found.Name, p.campaignStatus(res.Value))
			c.reload(cmd.Context(), c.adminRefresher(p), res.Refresh)
			return nil
		},
	}

	stats := &cobra.Command{
		Use:   "stats CAMPAIGN_ID",
		Short: "Show budget use and per agent performance",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := c.svc.Campaigns.Stats(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			c.printer().campaignStats(s)
			return nil
		},
	}

	cmd.AddCommand(
		create,
		setStatus("pause", "Pause a campaign", campaign.CampaignStatusPaused),
		setStatus("resume", "Resume a paused campaign", campaign.CampaignStatusActive),
		toggle,
		stats,
	)
	return cmd
}

func adminAssignmentsCmd(c *cli) *cobra.Command {
	var status string
	cmd := &cobra.Command{
		Use:   "assignments",
		Short: "List submitted campaign proofs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var st assignment.Status
			if status != "" {
				parsed, err := assignment.ParseStatus(status)
				if err != nil {
					return err
				}
				st = parsed
			}
			list, err := c.svc.Assignments.List(cmd.Context(), st)
			if err != nil {
				return err
			}
			c.printer().assignments(list)
			return nil
		},
	}
	cmd.Flags().StringVar(&status, "status", "", "Only assignments with status PENDING, VERIFIED or REJECTED")
	return cmd
}

func adminReviewCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:       "review ASSIGNMENT_ID verify|reject",
		Short:     "Verify or reject a pending assignment",
		Args:      cobra.ExactArgs(2),
		ValidArgs: []string{"verify", "reject"},
		RunE: func(cmd *cobra.Command, args []string) error {
			var decision assignment.Status
			switch strings.ToLower(args[1]) {
			case "verify", "verified":
				decision = assignment.StatusVerified
			case "reject", "rejected":
				decision = assignment.StatusRejected
			default:
				return assignment.ErrInvalidDecision
			}

			list, err := c.svc.Assignments.List(cmd.Context(), "")
			if err != nil {
				return err
			}
			a, ok := assignment.Find(list, args[0])
			if !ok {
				return fmt.Errorf("assignment %s not found", args[0])
			}

			res, err := c.svc.Assignments.Review(cmd.Context(), a, decision)
			if err != nil {
				return err
			}
			p := c.printer()
			p.ok("Assignment %s by %s is %s", a.ID, a.Agent.Name, p.assignmentStatus(res.Value.Status))
			c.reload(cmd.Context(), c.adminRefresher(p), res.Refresh)
			return nil
		},
	}
}

func adminMonitorCmd(c *cli) *cobra.Command {
	var (
		health string
		filter string
		sorted bool
	)
	cmd := &cobra.Command{
		Use:   "monitor",
		Short: "Show agent activity and health",
		Long: `Show agent activity as classified by the API.

--filter takes a CEL expression over the agent fields, for example
  legion admin monitor --filter 'inactive_days > 1 && today_total < 25'`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var h monitoring.AgentHealth
			if health != "" {
				parsed, err := monitoring.ParseHealth(health)
				if err != nil {
					return err
				}
				h = parsed
			}
			if err := monitoring.ValidateFilter(filter); err != nil {
				return err
			}

			list, err := c.svc.Monitoring.Statuses(cmd.Context())
			if err != nil {
				return err
			}

			p := c.printer()
			p.summary(monitoring.Summarize(list))
			p.line("")

			list = monitoring.Filter(list, h)
			list, err = monitoring.Select(list, filter)
			if err != nil {
				return err
			}
			if sorted {
				list = monitoring.SortByHealth(list)
			}
			p.statuses(list)
			return nil
		},
	}
	cmd.Flags().StringVar(&health, "health", "", "Only agents with health ACTIVE, WARNING or INACTIVE")
	cmd.Flags().StringVar(&filter, "filter", "", "CEL filter expression")
	cmd.Flags().BoolVar(&sorted, "sort", false, "Order by health")
	return cmd
}

func adminInactiveCmd(c *cli) *cobra.Command {
	var days int
	cmd := &cobra.Command{
		Use:   "inactive",
		Short: "List agents without activity for some days",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			list, err := c.svc.Monitoring.Inactive(cmd.Context(), days)
			if err != nil {
				return err
			}
			c.printer().statuses(list)
			return nil
		},
	}
	cmd.Flags().IntVar(&days, "days", 2, "Minimum idle days")
	return cmd
}

func adminExportCmd(c *cli) *cobra.Command {
	var (
		output  string
		archive bool
	)
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Print the plain text status report",
		Long: `Fetch the plain text status report. It is printed unless --output is given;
--archive also uploads it to the configured bucket.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			report, err := c.svc.Monitoring.ExportText(ctx)
			if err != nil {
				return err
			}

			p := c.printer()
			if output == "" {
				fmt.Fprintln(c.out, report)
			} else {
				if err := os.WriteFile(output, []byte(report), 0o644); err != nil {
					return err
				}
				p.ok("Saved %s", output)
			}

			if archive {
				key, err := c.svc.Monitoring.ArchiveReport(ctx, report, time.Now())
				if err != nil {
					return err
				}
				p.ok("Archived as %s", key)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "Write the report to a file")
	cmd.Flags().BoolVar(&archive, "archive", false, "Upload the report to the archive bucket")
	return cmd
}
