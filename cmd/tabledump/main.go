package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sort"
	"strconv"
	"syscall"
	"text/tabwriter"
	"time"

	"apiregistry/internal/infra/awsclient"

	"github.com/fatih/color"
)

const (
	defaultInterval = 10
	defaultPort     = 8000
	localRegion     = "sa-east-1"
	clearScreen     = "\033[H\033[2J"
)

// Tables is the part of the DynamoDB client the dumper reads through.
type Tables interface {
	ListTables(ctx context.Context) ([]string, error)
	ScanAll(ctx context.Context, table string) ([]awsclient.Item, error)
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("tabledump", flag.ContinueOnError)
	fs.SetOutput(stderr)
	interval := fs.Int("time", defaultInterval, "refresh interval in seconds; the dump repeats only when set")
	port := fs.Int("port", defaultPort, "port of the local DynamoDB")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	watch := false
	fs.Visit(func(f *flag.Flag) {
		if f.Name == "time" {
			watch = true
		}
	})
	if *interval <= 0 {
		*interval = defaultInterval
	}

	endpoint := "http://localhost:" + strconv.Itoa(*port)
	client := awsclient.New(endpoint, localRegion, "local", "local", "")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	for {
		if watch {
			fmt.Fprint(stdout, clearScreen)
		}
		fmt.Fprintf(stdout, "Endpoint: %s\n", endpoint)
		if err := dump(ctx, client, stdout); err != nil {
			fmt.Fprintf(stderr, "dump failed: %v\n", err)
			return 1
		}
		if !watch {
			return 0
		}
		select {
		case <-ctx.Done():
			return 0
		case <-time.After(time.Duration(*interval) * time.Second):
		}
	}
}

func dump(ctx context.Context, tables Tables, w io.Writer) error {
	names, err := tables.ListTables(ctx)
	if err != nil {
		return fmt.Errorf("list tables: %w", err)
	}
	header := color.New(color.FgCyan, color.Bold)
	for i, name := range names {
		items, err := tables.ScanAll(ctx, name)
		if err != nil {
			return fmt.Errorf("scan %s: %w", name, err)
		}
		header.Fprintf(w, "\n++++++++++++++++++++ [%d] %s ++++++++++++++++++++\n", i, name)
		writeItems(w, items)
	}
	return nil
}

func writeItems(w io.Writer, items []awsclient.Item) {
	if len(items) == 0 {
		fmt.Fprintln(w, "(empty)")
		return
	}
	columns := columnsOf(items)
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprint(tw, "#")
	for _, col := range columns {
		fmt.Fprintf(tw, "\t%s", col)
	}
	fmt.Fprintln(tw)
	for i, item := range items {
		fmt.Fprintf(tw, "%d", i)
		for _, col := range columns {
			value := ""
			if attr, ok := item[col]; ok {
				value = attr.Text()
			}
			fmt.Fprintf(tw, "\t%s", value)
		}
		fmt.Fprintln(tw)
	}
	_ = tw.Flush()
}

func columnsOf(items []awsclient.Item) []string {
	seen := make(map[string]struct{})
	for _, item := range items {
		for name := range item {
			seen[name] = struct{}{}
		}
	}
	columns := make([]string, 0, len(seen))
	for name := range seen {
		columns = append(columns, name)
	}
	sort.Strings(columns)
	return columns
}
