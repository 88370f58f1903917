package cmd

import (
	"bytes"
	"encoding/json"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/Iron-Ham/magicbus/internal/config"
	"github.com/Iron-Ham/magicbus/internal/loadgen"
	"github.com/Iron-Ham/magicbus/internal/metrics"
)

// executeCommand runs a cobra command with args and returns captured output
func executeCommand(root *cobra.Command, args ...string) (output string, err error) {
	buf := new(bytes.Buffer)
	root.SetOut(buf)
	root.SetErr(buf)
	root.SetArgs(args)
	err = root.Execute()
	return buf.String(), err
}

// setupTestEnvironment isolates viper and the config directory
func setupTestEnvironment(t *testing.T) {
	t.Helper()

	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	viper.Reset()
	t.Cleanup(viper.Reset)
	benchJSON = false
	benchLogDelivery = false
	resetFlags(benchCmd.Flags())
}

// resetFlags restores every flag to its default and clears its Changed
// state, which otherwise survives between Execute calls on rootCmd.
func resetFlags(flags *pflag.FlagSet) {
	flags.VisitAll(func(f *pflag.Flag) {
		_ = f.Value.Set(f.DefValue)
		f.Changed = false
	})
}

func TestRootCommand(t *testing.T) {
	if rootCmd.Use != "magicbus" {
		t.Errorf("rootCmd.Use = %q, want %q", rootCmd.Use, "magicbus")
	}

	expectedCmds := []string{"bench", "config"}
	cmdMap := make(map[string]bool)
	for _, cmd := range rootCmd.Commands() {
		cmdMap[cmd.Name()] = true
	}

	for _, expected := range expectedCmds {
		if !cmdMap[expected] {
			t.Errorf("expected subcommand %q not found", expected)
		}
	}
}

func TestBenchCommand(t *testing.T) {
	setupTestEnvironment(t)
	t.Setenv("MAGICBUS_LOGGING_LEVEL", "error")

	output, err := executeCommand(rootCmd, "bench", "-n", "8", "-p", "2", "--mailboxes", "1", "--fail-every", "0")
	if err != nil {
		t.Fatalf("bench failed: %v\n%s", err, output)
	}

	for _, want := range []string{
		"BENCH SUMMARY",
		"Posted:      16",
		"Delivered:   28",
		"Returned:    4",
		"loadgen.InstanceEvent (1 mailboxes)",
		`magicbus_returned_total{type="loadgen.Heartbeat"} 4`,
	} {
		if !strings.Contains(output, want) {
			t.Errorf("output missing %q:\n%s", want, output)
		}
	}
}

func TestBenchCommand_JSON(t *testing.T) {
	setupTestEnvironment(t)
	t.Setenv("MAGICBUS_LOGGING_LEVEL", "error")
	t.Setenv("MAGICBUS_METRICS_ENABLED", "false")

	output, err := executeCommand(rootCmd, "bench", "--json", "-n", "4", "-p", "1", "--mailboxes", "2", "--fail-every", "1")
	if err != nil {
		t.Fatalf("bench --json failed: %v\n%s", err, output)
	}

	var got benchJSONReport
	if err := json.Unmarshal([]byte(output), &got); err != nil {
		t.Fatalf("output is not JSON: %v\n%s", err, output)
	}
	if got.Posted != 4 || got.Delivered != 14 || got.Returned != 1 {
		t.Errorf("totals = posted %d, delivered %d, returned %d; want 4, 14, 1",
			got.Posted, got.Delivered, got.Returned)
	}
	if got.Failed != got.Delivered {
		t.Errorf("Failed = %d, want every delivery (%d) to fail", got.Failed, got.Delivered)
	}
	if got.Metrics != nil {
		t.Errorf("metrics disabled but report has %d samples", len(got.Metrics))
	}
}

func TestBenchCommand_FlagsDoNotLeakBetweenRuns(t *testing.T) {
	setupTestEnvironment(t)
	t.Setenv("MAGICBUS_LOGGING_LEVEL", "error")

	if _, err := executeCommand(rootCmd, "bench", "-n", "4", "-p", "3", "--mailboxes", "0", "--fail-every", "2"); err != nil {
		t.Fatalf("bench failed: %v", err)
	}

	setupTestEnvironment(t)
	cfg := config.Default()
	opts := benchOptions(benchCmd, cfg)
	want := loadgen.Options{
		Messages:         cfg.Bench.Messages,
		Publishers:       cfg.Bench.Publishers,
		MailboxesPerType: cfg.Bench.MailboxesPerType,
		FailureEvery:     cfg.Bench.FailureEvery,
	}
	if opts != want {
		t.Errorf("benchOptions() after reset = %+v, want config values %+v", opts, want)
	}
}

func TestBenchCommand_InvalidConfig(t *testing.T) {
	setupTestEnvironment(t)
	t.Setenv("MAGICBUS_BENCH_PUBLISHERS", "0")

	if _, err := executeCommand(rootCmd, "bench"); err == nil {
		t.Error("bench should refuse an invalid configuration")
	}
}

func TestBenchOptions_FlagsOverrideConfig(t *testing.T) {
	cfg := config.Default()
	cmd := &cobra.Command{}
	cmd.Flags().IntVar(&benchPublishers, "publishers", 0, "")
	cmd.Flags().IntVar(&benchMessages, "messages", 0, "")
	cmd.Flags().IntVar(&benchMailboxes, "mailboxes", 0, "")
	cmd.Flags().IntVar(&benchFailEvery, "fail-every", 0, "")
	if err := cmd.Flags().Parse([]string{"--publishers", "9"}); err != nil {
		t.Fatal(err)
	}

	opts := benchOptions(cmd, cfg)
	want := loadgen.Options{
		Messages:         cfg.Bench.Messages,
		Publishers:       9,
		MailboxesPerType: cfg.Bench.MailboxesPerType,
		FailureEvery:     cfg.Bench.FailureEvery,
	}
	if opts != want {
		t.Errorf("benchOptions() = %+v, want %+v", opts, want)
	}
}

func TestPrintBenchText_Plain(t *testing.T) {
	report := &loadgen.Report{
		BusName:   "orders",
		Posted:    1200,
		Delivered: 3000,
		Failed:    2,
		Returned:  0,
		Elapsed:   time.Second,
	}

	var buf bytes.Buffer
	printBenchText(&buf, report, nil, false)
	output := buf.String()

	for _, want := range []string{"Bus:         orders", "Posted:      1,200", "Throughput:  1,200 msg/s", "Every message was returned"} {
		if !strings.Contains(output, want) {
			t.Errorf("output missing %q:\n%s", want, output)
		}
	}
	if strings.Contains(output, "\x1b[") {
		t.Error("plain output should not contain escape sequences")
	}
	if strings.Contains(output, "METRICS") {
		t.Error("metrics section should be omitted without samples")
	}
}

func TestCounterSamples(t *testing.T) {
	reg := prometheus.NewRegistry()
	collector := metrics.NewCollector(reg, "test")
	collector.Observe(nil, loadgen.Notice{})
	collector.Observe(nil, loadgen.InstanceStarted{})
	collector.Observe(nil, loadgen.InstanceStarted{})

	families, err := reg.Gather()
	if err != nil {
		t.Fatal(err)
	}

	samples := counterSamples(families)
	if len(samples) != 2 {
		t.Fatalf("got %d samples, want 2: %+v", len(samples), samples)
	}
	if samples[0].label != "loadgen.InstanceStarted" || samples[0].value != 2 {
		t.Errorf("samples[0] = %+v", samples[0])
	}
	if samples[1].label != "loadgen.Notice" || samples[1].value != 1 {
		t.Errorf("samples[1] = %+v", samples[1])
	}
}

func TestFormatCount(t *testing.T) {
	tests := []struct {
		in   int64
		want string
	}{
		{0, "0"},
		{999, "999"},
		{1000, "1,000"},
		{12345, "12,345"},
		{1234567, "1,234,567"},
		{-4500, "-4,500"},
		{-999, "-999"},
		{math.MaxInt64, "9,223,372,036,854,775,807"},
		{math.MinInt64, "-9,223,372,036,854,775,808"},
	}

	for _, tt := range tests {
		if got := FormatCount(tt.in); got != tt.want {
			t.Errorf("FormatCount(%d) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
