// Command gaussctl is a minimal diagnostic CLI: it parses a connection
// string, opens one connector, runs a single statement, and prints the
// result or a colorized failure. It exists to exercise the library
// end-to-end from a terminal, not as a full client.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/rs/zerolog"

	"github.com/opengauss-go/gaussconn/connstring"
	"github.com/opengauss-go/gaussconn/gaussconn"
	"github.com/opengauss-go/gaussconn/gausslog"
	"github.com/opengauss-go/gaussconn/gaussmetrics"
	"github.com/opengauss-go/gaussconn/gausspool"
	zerologadapter "github.com/opengauss-go/gaussconn/log/zerologadapter"
)

func main() {
	connString := flag.String("conn", os.Getenv("GAUSSCONN_CONNECTION_STRING"), "connection string (DSN or postgres:// URL)")
	sql := flag.String("sql", "SELECT version()", "statement to execute")
	timeout := flag.Duration("timeout", 10*time.Second, "overall command timeout")
	verbose := flag.Bool("log", false, "trace Connect/Execute events to stderr")
	metricsAddr := flag.String("metrics-addr", "", "if set, serve Prometheus metrics on this address while the command runs")
	flag.Parse()

	if *connString == "" {
		color.Red("gaussctl: -conn or GAUSSCONN_CONNECTION_STRING is required")
		os.Exit(2)
	}

	if err := run(*connString, *sql, *timeout, *verbose, *metricsAddr); err != nil {
		color.Red("gaussctl: %v", err)
		os.Exit(1)
	}
}

func run(connString, sql string, timeout time.Duration, verbose bool, metricsAddr string) error {
	cs, err := connstring.Parse(connString)
	if err != nil {
		return fmt.Errorf("parse connection string: %w", err)
	}

	cfg, err := gaussconn.NewConfig(cs)
	if err != nil {
		return fmt.Errorf("build config: %w", err)
	}

	if verbose {
		logger := zerolog.New(os.Stderr).With().Timestamp().Logger()
		cfg.Tracer = &gausslog.TraceLog{Logger: zerologadapter.NewLogger(logger), LogLevel: gausslog.LogLevelInfo}
	}

	var collector *gaussmetrics.Collector
	if metricsAddr != "" {
		collector = gaussmetrics.New()
		cfg.Metrics = collector
		// gaussctl drives a single bare Connector, not a gausspool.Pool, so
		// there is nothing to list under /pools -- only /metrics is useful here.
		server := gaussmetrics.NewServer(collector, func() map[string]*gausspool.Pool { return nil })
		server.Start(metricsAddr)
		defer server.Stop(context.Background())
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	conn, err := gaussconn.Open(ctx, cfg, 0)
	if err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	defer conn.Terminate()

	color.Green("connected: pid=%d state=%s", conn.PID(), conn.State())

	stream, err := conn.Execute(ctx, sql, nil)
	if err != nil {
		return fmt.Errorf("execute: %w", err)
	}

	var fields []string
	rowCount := 0
	for stream.Next() {
		if fields == nil {
			for _, f := range stream.Fields() {
				fields = append(fields, string(f.Name))
			}
			fmt.Println(strings.Join(fields, "\t"))
		}
		cells := make([]string, len(stream.Values()))
		for i, v := range stream.Values() {
			if v == nil {
				cells[i] = "NULL"
			} else {
				cells[i] = string(v)
			}
		}
		fmt.Println(strings.Join(cells, "\t"))
		rowCount++
	}
	if err := stream.Err(); err != nil {
		return fmt.Errorf("query failed: %w", err)
	}

	color.Cyan("%s (%d rows)", stream.CommandTag(), rowCount)
	return nil
}
