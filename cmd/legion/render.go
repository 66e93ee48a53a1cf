package main

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"legion-prm/services/agent"
	"legion-prm/services/assignment"
	"legion-prm/services/batch"
	"legion-prm/services/campaign"
	"legion-prm/services/monitoring"
	"legion-prm/services/progress"

	"github.com/charmbracelet/lipgloss"
)

var (
	colorGreen  = lipgloss.Color("10")
	colorYellow = lipgloss.Color("11")
	colorRed    = lipgloss.Color("9")
	colorBlue   = lipgloss.Color("39")
	colorPurple = lipgloss.Color("170")
	colorGray   = lipgloss.Color("240")
)

// printer writes command output. Styles are rendered for out, so colors are
// dropped when out is not a terminal.
type printer struct {
	out io.Writer
	r   *lipgloss.Renderer
}

func newPrinter(out io.Writer) *printer {
	return &printer{out: out, r: lipgloss.NewRenderer(out)}
}

func (p *printer) style(c lipgloss.Color) lipgloss.Style {
	return p.r.NewStyle().Foreground(c)
}

func (p *printer) title(s string) {
	fmt.Fprintln(p.out, p.r.NewStyle().Bold(true).Foreground(colorPurple).Render(s))
}

func (p *printer) ok(format string, args ...any) {
	fmt.Fprintln(p.out, p.style(colorGreen).Render("✓")+" "+fmt.Sprintf(format, args...))
}

func (p *printer) line(format string, args ...any) {
	fmt.Fprintf(p.out, format+"\n", args...)
}

func (p *printer) table(header string, rows func(w io.Writer)) {
	w := tabwriter.NewWriter(p.out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, header)
	rows(w)
	_ = w.Flush()
}

func (p *printer) bar(percent, width int) string {
	filled := percent * width / 100
	return p.style(colorGreen).Render(strings.Repeat("█", filled)) +
		p.style(colorGray).Render(strings.Repeat("░", width-filled))
}

// ========================================================
// Status badges
// ========================================================

func (p *printer) batchStatus(s batch.Status) string {
	switch s {
	case batch.StatusPending:
		return p.style(colorYellow).Render(string(s))
	case batch.StatusAssigned:
		return p.style(colorBlue).Render(string(s))
	case batch.StatusInProgress:
		return p.style(colorPurple).Render(string(s))
	case batch.StatusCompleted:
		return p.style(colorGreen).Render(string(s))
	}
	return p.style(colorRed).Render("?" + string(s))
}

func (p *printer) campaignStatus(s campaign.CampaignStatus) string {
	switch s.Kind() {
	case campaign.CampaignStatusDraft:
		return p.style(colorGray).Render(string(s))
	case campaign.CampaignStatusActive:
		return p.style(colorGreen).Render(string(s))
	case campaign.CampaignStatusPaused:
		return p.style(colorYellow).Render(string(s))
	case campaign.CampaignStatusCompleted:
		return p.style(colorBlue).Render(string(s))
	case campaign.CampaignStatusArchived, campaign.CampaignStatusOther:
		return p.style(colorGray).Render(string(s))
	}
	return p.style(colorRed).Render("?" + string(s))
}

func (p *printer) assignmentStatus(s assignment.Status) string {
	switch s {
	case assignment.StatusPending:
		return p.style(colorYellow).Render(string(s))
	case assignment.StatusVerified:
		return p.style(colorGreen).Render(string(s))
	case assignment.StatusRejected:
		return p.style(colorRed).Render(string(s))
	}
	return p.style(colorRed).Render("?" + string(s))
}

func (p *printer) health(h monitoring.AgentHealth) string {
	switch h {
	case monitoring.HealthActive:
		return p.style(colorGreen).Render("● " + string(h))
	case monitoring.HealthWarning:
		return p.style(colorYellow).Render("● " + string(h))
	case monitoring.HealthInactive:
		return p.style(colorRed).Render("● " + string(h))
	}
	return p.style(colorRed).Render("?" + string(h))
}

// ========================================================
// Views
// ========================================================

func (p *printer) pool(s batch.PoolStats) {
	p.title("Contact pool")
	p.line("Total contacts:  %d", s.TotalContacts)
	p.line("Assigned:        %d", s.Assigned)
	p.line("Unassigned:      %d", s.Unassigned)
	p.line("Assignment rate: %.1f%%", s.AssignmentRate)
	if len(s.Sources) > 0 {
		p.table("SOURCE\tCONTACTS", func(w io.Writer) {
			for _, src := range s.Sources {
				fmt.Fprintf(w, "%s\t%d\n", src.File, src.Count)
			}
		})
	}
}

func (p *printer) batches(list []batch.Batch) {
	if len(list) == 0 {
		p.line("No batches.")
		return
	}
	p.table("ID\tFILE\tCONTACTS\tSERIALS\tAGENT\tSTATUS", func(w io.Writer) {
		for _, b := range list {
			first, last := b.Serials()
			agentName := b.AgentName
			if agentName == "" {
				agentName = "-"
			}
			fmt.Fprintf(w, "%s\t%s\t%d\t%s-%s\t%s\t%s\n",
				b.ID, b.FileName, b.ContactCount, first, last, agentName, p.batchStatus(b.Status))
		}
	})
	p.line("\nOpen: %d of %d", batch.OpenCount(list), len(list))
}

func (p *printer) today(t progress.Today) {
	p.title("Today")
	p.line("%s %d%%  %d/%d", p.bar(t.ProgressPercent, 20), t.ProgressPercent, t.Total, t.Goal)
	for _, s := range progress.Sessions {
		state := p.style(colorGreen).Render("reported")
		if t.CanReport(s) {
			state = p.style(colorYellow).Render("open")
		}
		p.line("%-8s %2d/%d  %s", s.Label(), t.Count(s), progress.GoalPerSession, state)
	}
	if r := t.Remaining(); r > 0 {
		p.line("%d contacts to go.", r)
	}
}

func (p *printer) campaigns(list []campaign.Campaign) {
	if len(list) == 0 {
		p.line("No campaigns.")
		return
	}
	p.table("ID\tNAME\tVIEWS\tUNIQUE\tSPENT\tBUDGET\tSTATUS", func(w io.Writer) {
		for _, c := range list {
			fmt.Fprintf(w, "%s\t%s\t%d\t%d\t$%.2f / $%.2f\t%d%%\t%s\n",
				c.ID, c.Name, c.TotalViews, c.TotalUniqueViews, c.Spent, c.BudgetCap, c.BudgetPercent(), p.campaignStatus(c.Status))
		}
	})
}

func (p *printer) campaignStats(s campaign.Stats) {
	c := s.Campaign
	p.title(c.Name)
	p.line("Status:  %s", p.campaignStatus(c.Status))
	p.line("Budget:  %s %d%%  $%.2f of $%.2f", p.bar(c.BudgetPercent(), 20), c.BudgetPercent(), c.Spent, c.BudgetCap)
	p.line("Views:   %d (%d unique)", c.TotalViews, c.TotalUniqueViews)
	if len(s.Agents) == 0 {
		p.line("No agent has joined yet.")
		return
	}
	p.table("AGENT\tCODE\tVIEWS\tUNIQUE\tEARNINGS", func(w io.Writer) {
		for _, a := range s.Agents {
			fmt.Fprintf(w, "%s\t%s\t%d\t%d\t$%.2f\n", a.AgentName, a.ShortCode, a.Views, a.UniqueViews, a.Earnings)
		}
	})
}

func (p *printer) agentCampaigns(list []campaign.AgentCampaign) {
	if len(list) == 0 {
		p.line("No active campaigns.")
		return
	}
	for _, ac := range list {
		c := ac.Campaign
		p.title(c.Name)
		if c.Description != "" {
			p.line("%s", c.Description)
		}
		p.line("$%.4f and %d XP per view", c.PayoutPerView, c.PointsPerView)
		switch ac.LinkState() {
		case campaign.LinkMissing:
			p.line("%s  legion agent join %s", p.style(colorYellow).Render(ac.LinkState().String()), c.ID)
		case campaign.LinkIssued:
			p.line("Link:     %s", p.style(colorBlue).Render(ac.MyLink.FullURL))
			p.line("Views:    %d (%d unique)", ac.MyLink.ViewCount, ac.MyLink.UniqueViewCount)
			p.line("Earnings: $%.2f", ac.MyLink.Earnings)
		}
		p.line("")
	}
	t := campaign.AgentTotals(list)
	p.line("Total: $%.2f from %d views over %d links", t.Earnings, t.Views, t.Links)
}

func (p *printer) assignments(list []assignment.Assignment) {
	if len(list) == 0 {
		p.line("No assignments.")
		return
	}
	p.table("ID\tAGENT\tCAMPAIGN\tPROOF\tSTATUS", func(w io.Writer) {
		for _, a := range list {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", a.ID, a.Agent.Name, a.Campaign.Name, a.ProofSummary(), p.assignmentStatus(a.Status))
		}
	})
}

func (p *printer) statuses(list []monitoring.AgentStatus) {
	if len(list) == 0 {
		p.line("No agents.")
		return
	}
	p.table("NAME\tPHONE\tIDLE DAYS\tTODAY\tTOTAL\tSTATUS", func(w io.Writer) {
		for _, s := range list {
			idle := fmt.Sprintf("%d", s.InactiveDays)
			if monitoring.NeedsAttention(s) {
				idle += "!"
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%d (%d%%)\t%d\t%s\n", s.Name, s.Phone, idle, s.TodayTotal, s.TodayPercent(), s.TotalAdded, p.health(s.Status))
		}
	})
}

func (p *printer) summary(s monitoring.Summary) {
	p.line("Agents: %d  active today: %d  need attention: %d", s.Agents, s.ActiveToday, s.NeedsAttention)
	parts := make([]string, 0, len(monitoring.Healths))
	for _, h := range monitoring.Healths {
		parts = append(parts, fmt.Sprintf("%s %d", p.health(h), s.ByHealth[h]))
	}
	p.line("%s", strings.Join(parts, "  "))
	p.line("Contacts added today: %d  all time: %d", s.TodayTotal, s.TotalAdded)
}

func (p *printer) overview(o agent.Overview) {
	p.title("Overview")
	p.line("Agents: %d  campaigns: %d  clicks: %d", o.Stats.TotalAgents, o.Stats.TotalCampaigns, o.Stats.TotalClicks)
	p.line("Pool: %d unassigned of %d", o.Pool.Unassigned, o.Pool.TotalContacts)
	p.summary(o.Monitoring)
	if len(o.Stats.TopAgents) > 0 {
		p.line("")
		p.table("TOP AGENT\tXP\tBALANCE", func(w io.Writer) {
			for _, a := range o.Stats.TopAgents {
				fmt.Fprintf(w, "%s\t%d\t$%.2f\n", a.Name, a.Score, a.Balance)
			}
		})
	}
}

func (p *printer) agents(list []agent.Agent) {
	if len(list) == 0 {
		p.line("No agents.")
		return
	}
	p.table("ID\tNAME\tPHONE\tXP\tBALANCE", func(w io.Writer) {
		for _, a := range list {
			fmt.Fprintf(w, "%s\t%s\t%s\t%d\t$%.2f\n", a.ID, a.Name, a.Phone, a.CurrentScore, a.WalletBalance)
		}
	})
}

// leaderboard highlights the caller's row when me is not empty.
func (p *printer) leaderboard(list []agent.Standing, me string) {
	if len(list) == 0 {
		p.line("Leaderboard is empty.")
		return
	}
	p.table("#\tNAME\tXP", func(w io.Writer) {
		for _, st := range list {
			name := st.Agent.Name
			if me != "" && st.Agent.ID == me {
				name = p.r.NewStyle().Bold(true).Render(name + " (you)")
			}
			fmt.Fprintf(w, "%d\t%s\t%d\n", st.Rank, name, st.Agent.CurrentScore)
		}
	})
}
