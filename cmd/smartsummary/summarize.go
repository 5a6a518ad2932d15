package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/localrivet/smartsummary"
)

func newSummarizeCmd(opts *options) *cobra.Command {
	var (
		maxLength int
		stream    bool
		apiKey    string
		quiet     bool
	)

	cmd := &cobra.Command{
		Use:   "summarize [file|-]",
		Short: "Summarize a file or stdin",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			text, err := readInput(cmd.InOrStdin(), args)
			if err != nil {
				return err
			}

			cfg, log, err := opts.load()
			if err != nil {
				return err
			}
			srv, err := smartsummary.NewServer(smartsummary.ServerOptions{Config: cfg, Logger: log})
			if err != nil {
				return err
			}
			defer srv.Stop(context.Background())

			req := smartsummary.Request{Text: text, MaxLength: maxLength, APIKey: apiKey}
			out := cmd.OutOrStdout()

			if stream {
				return streamSummary(cmd.Context(), srv, req, out)
			}

			result, err := srv.Summarize(cmd.Context(), req)
			if err != nil {
				return err
			}
			fmt.Fprintln(out, result.Summary)

			if !quiet {
				printMeta(cmd.ErrOrStderr(), result)
			}
			return nil
		},
	}

	cmd.Flags().IntVarP(&maxLength, "max-length", "n", 200, "maximum summary length in words")
	cmd.Flags().BoolVar(&stream, "stream", false, "print the summary as it is generated")
	cmd.Flags().StringVar(&apiKey, "api-key", "", "provider API key for this request")
	cmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "omit the metadata line")
	return cmd
}

func readInput(stdin io.Reader, args []string) (string, error) {
	if len(args) == 0 || args[0] == "-" {
		data, err := io.ReadAll(stdin)
		if err != nil {
			return "", fmt.Errorf("failed to read stdin: %w", err)
		}
		return string(data), nil
	}

	data, err := os.ReadFile(args[0])
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", args[0], err)
	}
	return string(data), nil
}

func streamSummary(ctx context.Context, srv *smartsummary.Server, req smartsummary.Request, out io.Writer) error {
	fragments, err := srv.SummarizeStream(ctx, req)
	if err != nil {
		return err
	}

	var streamErr error
	for f := range fragments {
		switch {
		case f.Err != nil:
			streamErr = f.Err
		case f.Done:
		default:
			fmt.Fprint(out, f.Text)
		}
	}
	fmt.Fprintln(out)
	return streamErr
}

func printMeta(w io.Writer, r *smartsummary.SummaryResult) {
	parts := []string{
		"strategy " + string(r.Strategy),
		"domain " + string(r.Domain),
		fmt.Sprintf("%s -> %s words", humanize.Comma(int64(r.OriginalLength)), humanize.Comma(int64(r.SummaryLength))),
	}
	if r.CacheHit {
		parts = append(parts, "cache hit")
	} else {
		if r.Model != "" {
			parts = append(parts, "model "+r.Model)
		}
		parts = append(parts, fmt.Sprintf("$%.6f", r.Cost))
	}
	parts = append(parts, r.Duration.Round(time.Millisecond).String())

	color.New(color.Faint).Fprintln(w, strings.Join(parts, " | "))
}
