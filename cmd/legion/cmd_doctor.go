package main

import (
	"fmt"
	"io"

	"legion-prm/pkg/errutil"
	"legion-prm/pkg/health"

	"github.com/spf13/cobra"
)

func newDoctorCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Check the API, the session store and the archive",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			h := c.svc.Health.Check(cmd.Context())
			c.printer().doctor(h)
			if !h.Healthy() {
				return errutil.BadGateway("some dependencies are unhealthy", nil)
			}
			return nil
		},
	}
}

func (p *printer) doctor(h health.Health) {
	p.table("CHECK\tSTATUS\tDETAIL", func(w io.Writer) {
		for _, dep := range h.Deps {
			status := p.style(colorGreen).Render(dep.Status)
			switch dep.Status {
			case health.StatusUnhealthy:
				status = p.style(colorRed).Render(dep.Status)
			case health.StatusSkipped:
				status = p.style(colorGray).Render(dep.Status)
			}
			fmt.Fprintf(w, "%s\t%s\t%s\n", dep.Name, status, dep.Message)
		}
	})
}
