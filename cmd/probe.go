package cmd

import (
	"context"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/maastricht-university/interview-coach/clients"
	"github.com/maastricht-university/interview-coach/config"
)

func newProbeCmd(o *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "probe",
		Short: "Check that the configured model services are reachable",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			conf, _, err := config.Load(o.configFile, cmd.Flags())
			if err != nil {
				return err
			}

			services := []struct {
				name string
				svc  config.Service
			}{
				{"body", conf.Models.Body},
				{"sentiment", conf.Models.Sentiment},
				{"asr", conf.Models.ASR},
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			down := 0
			for _, s := range services {
				state := "ok"
				if s.svc.URL == "" {
					state = "not configured"
				} else if err := probeOnce(cmd.Context(), conf, s.svc); err != nil {
					state = "unavailable: " + err.Error()
					down++
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\n", s.name, s.svc.URL, state)
			}
			if err := tw.Flush(); err != nil {
				return err
			}
			if down > 0 {
				return fmt.Errorf("%d model service(s) unavailable", down)
			}
			return nil
		},
	}
}

func probeOnce(ctx context.Context, conf *config.Root, svc config.Service) error {
	ctx, cancel := context.WithTimeout(ctx, conf.Models.ProbeTimeout)
	defer cancel()
	return clients.NewHTTP(svc.Timeout).Probe(ctx, svc.URL)
}
