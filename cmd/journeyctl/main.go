// journeyctl runs scripted journeys from the terminal, without the server.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/ashureev/finagent/internal/grpcserver"
	"github.com/ashureev/finagent/internal/journey"
	"github.com/spf13/cobra"
)

type options struct {
	kyc         string
	pace        float64
	catalogPath string
	asJSON      bool
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &options{}
	root := &cobra.Command{
		Use:           "journeyctl",
		Short:         "Drive FinAgent journeys from the command line",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	root.PersistentFlags().StringVar(&opts.catalogPath, "catalog", "", "journey catalog YAML (default: built-in)")

	root.AddCommand(newCatalogCmd(opts), newMatchCmd(opts), newRunCmd(opts), newProbeCmd())
	return root
}

func (o *options) catalog() (*journey.Catalog, error) {
	if o.catalogPath == "" {
		return journey.DefaultCatalog(), nil
	}
	data, err := os.ReadFile(o.catalogPath)
	if err != nil {
		return nil, err
	}
	return journey.LoadCatalog(data)
}

func newCatalogCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "catalog",
		Short: "List the journeys",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := opts.catalog()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, j := range c.List() {
				fmt.Fprintf(out, "%-14s %s (%d steps)\n", j.ID, j.Title, len(j.Steps))
			}
			return nil
		},
	}
}

func newMatchCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "match <text>",
		Short: "Show which journey a chat message starts",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := opts.catalog()
			if err != nil {
				return err
			}
			if id, ok := journey.NewMatcher(c).Match(strings.Join(args, " ")); ok {
				fmt.Fprintln(cmd.OutOrStdout(), id)
				return nil
			}
			fmt.Fprintln(cmd.OutOrStdout(), "no match")
			return nil
		},
	}
}

func newRunCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run <journey|\"chat text\"> [action[=value]...]",
		Short: "Run a journey and press the given buttons in order",
		Example: `  journeyctl run bank-account verify-mobile-otp=123456 verify-pan
  journeyctl run "I need a personal loan" --kyc full`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runJourney(cmd.Context(), cmd.OutOrStdout(), opts, args)
		},
	}
	cmd.Flags().StringVar(&opts.kyc, "kyc", string(journey.KYCPartial), "KYC status: full, partial or none")
	cmd.Flags().Float64Var(&opts.pace, "pace", 0, "scale of the scripted delays (1 = real time)")
	cmd.Flags().BoolVar(&opts.asJSON, "json", false, "print the final session snapshot as JSON")
	return cmd
}

func runJourney(ctx context.Context, out io.Writer, opts *options, args []string) error {
	if ctx == nil {
		ctx = context.Background()
	}
	c, err := opts.catalog()
	if err != nil {
		return err
	}
	kyc, err := journey.ParseKYCStatus(opts.kyc)
	if err != nil {
		return err
	}
	var pacer journey.Pacer = journey.NoDelay{}
	if opts.pace > 0 {
		pacer = journey.TimerPacer{Scale: opts.pace}
	}

	sess := journey.NewSession("cli", journey.Options{
		Catalog: c,
		KYC:     journey.StaticKYC(kyc),
		Refs:    &journey.SequenceRefs{},
		Pacer:   pacer,
	})
	defer sess.Close()

	p := &printer{out: out, quiet: opts.asJSON}
	if id, perr := journey.ParseID(args[0]); perr == nil {
		err = sess.Start(ctx, id)
	} else {
		err = sess.Send(ctx, args[0])
	}
	if err != nil {
		return err
	}
	p.flush(sess.Snapshot())

	for _, arg := range args[1:] {
		name, value, _ := strings.Cut(arg, "=")
		action, err := journey.ParseAction(name)
		if err != nil {
			return err
		}
		if err := sess.Do(ctx, journey.Request{Action: action, Value: value}); err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
		p.flush(sess.Snapshot())
	}

	snap := sess.Snapshot()
	if opts.asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(snap)
	}
	p.steps(snap.Steps)
	return nil
}

// printer writes timeline entries it has not printed yet.
type printer struct {
	out     io.Writer
	quiet   bool
	printed int64
}

func (p *printer) flush(snap journey.Snapshot) {
	for _, m := range snap.Messages {
		if m.Seq <= p.printed {
			continue
		}
		p.printed = m.Seq
		if p.quiet || m.Kind == journey.KindThinking {
			continue
		}
		text := m.Text
		if text == "" && m.Payload != nil {
			data, _ := json.Marshal(m.Payload)
			text = string(data)
		}
		fmt.Fprintf(p.out, "[%s] %s\n", m.Kind, text)
		for _, a := range m.Actions {
			fmt.Fprintf(p.out, "    -> %s (%s)\n", a.Label, a.ID)
		}
	}
}

func (p *printer) steps(steps []journey.Step) {
	if len(steps) == 0 {
		return
	}
	fmt.Fprintln(p.out, "steps:")
	for _, s := range steps {
		mark := " "
		switch s.Status {
		case journey.StepCompleted:
			mark = "x"
		case journey.StepInProgress:
			mark = ">"
		}
		fmt.Fprintf(p.out, "  [%s] %s\n", mark, s.Label)
	}
}

func newProbeCmd() *cobra.Command {
	var (
		addr    string
		timeout time.Duration
	)
	cmd := &cobra.Command{
		Use:   "probe",
		Short: "Check a running server's gRPC health",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := grpcserver.DefaultClientConfig(addr)
			cfg.ConnectTimeout = timeout
			client, err := grpcserver.Dial(cfg, nil)
			if err != nil {
				return err
			}
			defer client.Close()

			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()
			status, err := client.Check(ctx, grpcserver.ServiceName)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), status)
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "localhost:9090", "gRPC health address")
	cmd.Flags().DurationVar(&timeout, "timeout", 5*time.Second, "connect and check timeout")
	return cmd
}
