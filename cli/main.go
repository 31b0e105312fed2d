package main

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/daniellawrence/graphitesend"
	"github.com/daniellawrence/graphitesend/sender"
	"github.com/hnakamur/ltsvlog"
	"github.com/spf13/cobra"
)

type cliFlags struct {
	configFile string
	endpoint   string
	protocol   string
	prefix     string
	systemName string
	group      string
	suffix     string
	timeout    time.Duration
	dryRun     bool
	debug      bool
}

func newRootCmd() *cobra.Command {
	var f cliFlags
	cmd := &cobra.Command{
		Use:   "graphitesend [flags] <metric> <value>",
		Short: "Send one metric to graphite",
		Long: `Sends a metric with an integer value to a carbon daemon, using the
current time as the timestamp.`,
		Args:         cobra.ExactArgs(2),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			ltsvlog.Logger = ltsvlog.NewLTSVLogger(os.Stderr, f.debug)
			cfg, err := f.config(cmd)
			if err != nil {
				return err
			}
			return run(cmd, cfg, args[0], args[1])
		},
	}
	fs := cmd.Flags()
	fs.StringVar(&f.configFile, "config", "", "TOML config file")
	fs.StringVar(&f.endpoint, "endpoint", "", "carbon address in host:port form")
	fs.StringVar(&f.protocol, "protocol", "", "one of plaintext_tcp, plaintext, plain, pickle_tcp, pickle")
	fs.StringVar(&f.prefix, "prefix", "", "first path segment, empty to omit")
	fs.StringVar(&f.systemName, "system-name", "", "system name segment, empty to omit")
	fs.StringVar(&f.group, "group", "", "group segment")
	fs.StringVar(&f.suffix, "suffix", "", "string appended to the metric name")
	fs.DurationVar(&f.timeout, "timeout", sender.DefaultTimeout, "connect and write timeout")
	fs.BoolVar(&f.dryRun, "dryrun", false, "print the message instead of sending it")
	fs.BoolVar(&f.debug, "debug", false, "enable debug log")
	return cmd
}

func (f *cliFlags) config(cmd *cobra.Command) (graphitesend.Config, error) {
	cfg := graphitesend.DefaultConfig()
	if f.configFile != "" {
		var err error
		cfg, err = graphitesend.LoadConfigFile(f.configFile)
		if err != nil {
			return cfg, err
		}
	}
	fs := cmd.Flags()
	if fs.Changed("endpoint") {
		ep, err := sender.ParseEndpoint(f.endpoint, f.timeout)
		if err != nil {
			return cfg, ltsvlog.WrapErr(err, func(err error) error {
				return fmt.Errorf("invalid endpoint, err=%v", err)
			}).String("endpoint", f.endpoint).Stack("")
		}
		cfg.Host = ep.Host
		cfg.Port = ep.Port
	}
	if fs.Changed("protocol") {
		cfg.Protocol = f.protocol
	}
	if fs.Changed("timeout") {
		cfg.Timeout.Duration = f.timeout
	}
	if fs.Changed("prefix") {
		cfg.Naming.Prefix = graphitesend.String(f.prefix)
	}
	if fs.Changed("system-name") {
		cfg.Naming.SystemName = graphitesend.String(f.systemName)
	}
	if fs.Changed("group") {
		cfg.Naming.Group = graphitesend.String(f.group)
	}
	if fs.Changed("suffix") {
		cfg.Naming.Suffix = f.suffix
	}
	if fs.Changed("dryrun") {
		cfg.DryRun = f.dryRun
	}
	cfg.Dispatch = graphitesend.DispatchBlocking
	return cfg, nil
}

func run(cmd *cobra.Command, cfg graphitesend.Config, metric, value string) error {
	v, err := strconv.Atoi(value)
	if err != nil {
		return fmt.Errorf("value must be an integer, got %q", value)
	}
	c, err := graphitesend.New(cfg)
	if err != nil {
		return err
	}
	defer c.Close()

	ack, err := c.Send(metric, v, time.Time{})
	if err != nil {
		return err
	}
	if ltsvlog.Logger.DebugEnabled() {
		ltsvlog.Logger.Debug().String("msg", "sent").String("ack", ack).Log()
	}
	if cfg.DryRun {
		fmt.Fprint(cmd.OutOrStdout(), ack)
	}
	return nil
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
