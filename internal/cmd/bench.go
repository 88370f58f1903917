package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/Iron-Ham/magicbus/internal/bus"
	"github.com/Iron-Ham/magicbus/internal/config"
	"github.com/Iron-Ham/magicbus/internal/loadgen"
	"github.com/Iron-Ham/magicbus/internal/logging"
	"github.com/Iron-Ham/magicbus/internal/metrics"
)

var benchCmd = &cobra.Command{
	Use:   "bench",
	Short: "Drive the bus with a synthetic concurrent workload",
	Long: `Run a synthetic workload through a fresh bus and report what happened to
every message.

Mailboxes subscribe at four levels of an event hierarchy (Event,
InstanceEvent, InstanceStarted, InstanceStopped). Publishers cycle through
started, stopped, notice and heartbeat messages. Heartbeats have no
subscribers and come back as returned messages.

Settings default to the bench section of the config file; flags override
them for a single run.`,
	RunE: runBench,
}

var (
	benchJSON        bool // Output as JSON
	benchMessages    int
	benchPublishers  int
	benchMailboxes   int
	benchFailEvery   int
	benchLogDelivery bool
)

func init() {
	benchCmd.Flags().BoolVar(&benchJSON, "json", false, "Output the report as JSON")
	benchCmd.Flags().IntVarP(&benchMessages, "messages", "n", 0, "Messages per publisher (overrides bench.messages)")
	benchCmd.Flags().IntVarP(&benchPublishers, "publishers", "p", 0, "Concurrent publishers (overrides bench.publishers)")
	benchCmd.Flags().IntVar(&benchMailboxes, "mailboxes", 0, "Mailboxes per subscription type (overrides bench.mailboxes_per_type)")
	benchCmd.Flags().IntVar(&benchFailEvery, "fail-every", 0, "Fail every Nth delivery per mailbox (overrides bench.failure_every)")
	benchCmd.Flags().BoolVar(&benchLogDelivery, "log-deliveries", false, "Log every failed and returned message")
	rootCmd.AddCommand(benchCmd)
}

func runBench(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	opts := benchOptions(cmd, cfg)

	logger, err := logging.NewLogger(cfg.Logging.Dir, cfg.Logging.Level)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer func() { _ = logger.Close() }()

	var hooks loadgen.Hooks
	registry := prometheus.NewRegistry()
	if cfg.Metrics.Enabled {
		collector := metrics.NewCollector(registry, cfg.Metrics.Namespace)
		hooks = loadgen.Hooks{
			Returned: collector.Returned,
			Failed:   collector.Failed,
			Observed: collector.Observe,
		}
	}
	if benchLogDelivery {
		hooks.Returned = bus.Chain(hooks.Returned, bus.LogReturned(logger))
		hooks.Failed = bus.Chain(hooks.Failed, bus.LogFailed(logger))
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	logger.Info("bench started",
		"messages", opts.Messages,
		"publishers", opts.Publishers,
		"mailboxes_per_type", opts.MailboxesPerType,
		"failure_every", opts.FailureEvery)

	report, runErr := loadgen.Run(ctx, opts, hooks, bus.WithName(cfg.Bus.Name), bus.WithLogger(logger))
	if report == nil {
		return runErr
	}
	logger.Info("bench finished",
		"posted", report.Posted,
		"delivered", report.Delivered,
		"failed", report.Failed,
		"returned", report.Returned,
		"elapsed_ms", report.Elapsed.Milliseconds())

	var families []*dto.MetricFamily
	if cfg.Metrics.Enabled {
		if families, err = registry.Gather(); err != nil {
			return fmt.Errorf("failed to gather metrics: %w", err)
		}
	}

	out := cmd.OutOrStdout()
	if benchJSON {
		err = printBenchJSON(out, report, families)
	} else {
		printBenchText(out, report, families, isTerminal(out))
	}
	if err != nil {
		return err
	}
	return runErr
}

// benchOptions merges explicitly set flags over the configured bench section.
func benchOptions(cmd *cobra.Command, cfg *config.Config) loadgen.Options {
	opts := loadgen.Options{
		Messages:         cfg.Bench.Messages,
		Publishers:       cfg.Bench.Publishers,
		MailboxesPerType: cfg.Bench.MailboxesPerType,
		FailureEvery:     cfg.Bench.FailureEvery,
	}
	flags := cmd.Flags()
	if flags.Changed("messages") {
		opts.Messages = benchMessages
	}
	if flags.Changed("publishers") {
		opts.Publishers = benchPublishers
	}
	if flags.Changed("mailboxes") {
		opts.MailboxesPerType = benchMailboxes
	}
	if flags.Changed("fail-every") {
		opts.FailureEvery = benchFailEvery
	}
	return opts
}

// isTerminal reports whether w is an interactive terminal. Styled output is
// only used when it is.
func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// ruleWidth returns the width of section separators.
func ruleWidth(w io.Writer) int {
	const fallback = 50
	f, ok := w.(*os.File)
	if !ok {
		return fallback
	}
	if width, _, err := term.GetSize(int(f.Fd())); err == nil && width > 0 && width < fallback {
		return width
	}
	return fallback
}

func printBenchText(w io.Writer, report *loadgen.Report, families []*dto.MetricFamily, styled bool) {
	style := func(s lipgloss.Style, text string) string {
		if !styled {
			return text
		}
		return s.Render(text)
	}
	rule := strings.Repeat("─", ruleWidth(w))
	row := func(label, value string) {
		if styled {
			fmt.Fprintf(w, "%s %s\n", labelStyle.Render(label+":"), value)
			return
		}
		fmt.Fprintf(w, "%-12s %s\n", label+":", value)
	}

	fmt.Fprintln(w)
	fmt.Fprintln(w, style(titleStyle, "BENCH SUMMARY"))
	fmt.Fprintln(w, style(mutedStyle, rule))
	row("Bus", report.BusName)
	row("Elapsed", report.Elapsed.Round(time.Microsecond).String())
	row("Throughput", fmt.Sprintf("%s msg/s", FormatCount(int64(report.Throughput()))))
	fmt.Fprintln(w)

	fmt.Fprintln(w, style(titleStyle, "MESSAGES"))
	fmt.Fprintln(w, style(mutedStyle, rule))
	row("Posted", FormatCount(report.Posted))
	row("Delivered", style(okStyle, FormatCount(report.Delivered)))
	failed := FormatCount(report.Failed)
	if report.Failed > 0 {
		failed = style(errorStyle, failed)
	}
	row("Failed", failed)
	returned := FormatCount(report.Returned)
	if report.Returned > 0 {
		returned = style(warningStyle, returned)
	}
	row("Returned", returned)
	fmt.Fprintln(w)

	fmt.Fprintln(w, style(titleStyle, "SUBSCRIPTIONS"))
	fmt.Fprintln(w, style(mutedStyle, rule))
	if len(report.Subscriptions) == 0 {
		fmt.Fprintln(w, "No mailboxes subscribed. Every message was returned.")
	}
	for i, sub := range report.Subscriptions {
		fmt.Fprintf(w, "%d. %s (%d mailboxes)\n", i+1, sub.Type, sub.Mailboxes)
	}

	if len(families) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, style(titleStyle, "METRICS"))
		fmt.Fprintln(w, style(mutedStyle, rule))
		for _, sample := range counterSamples(families) {
			fmt.Fprintf(w, "%s{type=%q} %s\n", sample.name, sample.label, FormatCount(int64(sample.value)))
		}
	}
	fmt.Fprintln(w)
}

type counterSample struct {
	name  string
	label string
	value float64
}

// counterSamples flattens gathered counter families into rows sorted by
// metric name and then label.
func counterSamples(families []*dto.MetricFamily) []counterSample {
	var samples []counterSample
	for _, family := range families {
		if family.GetType() != dto.MetricType_COUNTER {
			continue
		}
		for _, m := range family.GetMetric() {
			sample := counterSample{name: family.GetName(), value: m.GetCounter().GetValue()}
			for _, label := range m.GetLabel() {
				if label.GetName() == "type" {
					sample.label = label.GetValue()
				}
			}
			samples = append(samples, sample)
		}
	}
	sort.Slice(samples, func(i, j int) bool {
		if samples[i].name != samples[j].name {
			return samples[i].name < samples[j].name
		}
		return samples[i].label < samples[j].label
	})
	return samples
}

type benchJSONReport struct {
	Bus           string                 `json:"bus"`
	ElapsedMs     int64                  `json:"elapsed_ms"`
	Throughput    float64                `json:"throughput"`
	Posted        int64                  `json:"posted"`
	Delivered     int64                  `json:"delivered"`
	Failed        int64                  `json:"failed"`
	Returned      int64                  `json:"returned"`
	Subscriptions []loadgen.Subscription `json:"subscriptions"`
	Metrics       map[string]float64     `json:"metrics,omitempty"`
}

func printBenchJSON(w io.Writer, report *loadgen.Report, families []*dto.MetricFamily) error {
	out := benchJSONReport{
		Bus:           report.BusName,
		ElapsedMs:     report.Elapsed.Milliseconds(),
		Throughput:    report.Throughput(),
		Posted:        report.Posted,
		Delivered:     report.Delivered,
		Failed:        report.Failed,
		Returned:      report.Returned,
		Subscriptions: report.Subscriptions,
	}
	if samples := counterSamples(families); len(samples) > 0 {
		out.Metrics = make(map[string]float64, len(samples))
		for _, sample := range samples {
			out.Metrics[fmt.Sprintf("%s{type=%q}", sample.name, sample.label)] = sample.value
		}
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

// FormatCount renders n with thousands separators.
func FormatCount(n int64) string {
	sign := ""
	magnitude := uint64(n)
	if n < 0 {
		sign = "-"
		magnitude = uint64(-(n + 1)) + 1
	}
	s := strconv.FormatUint(magnitude, 10)
	if len(s) <= 3 {
		return sign + s
	}

	var b strings.Builder
	b.WriteString(sign)
	lead := len(s) % 3
	if lead > 0 {
		b.WriteString(s[:lead])
	}
	for i := lead; i < len(s); i += 3 {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(s[i : i+3])
	}
	return b.String()
}
