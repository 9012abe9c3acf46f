// Command inspect runs the validator and normalizer over a saved DataHub
// payload, such as the CACHE_FILE written by metoffice2influx, without
// touching the provider or the database.
//
// Usage:
//
//	go run ./cmd/inspect --file output.json
package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/jonboulle/clockwork"
	"github.com/spf13/cobra"
	"github.com/stuartgraham/metoffice2influx/internal/adapter/influx"
	"github.com/stuartgraham/metoffice2influx/internal/domain"
)

// errInvalidPayload is returned when the payload is neither a forecast nor a
// throttle notice.
var errInvalidPayload = errors.New("invalid payload")

func main() {
	if err := rootCmd(clockwork.NewRealClock()).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "inspect:", err)
		os.Exit(1)
	}
}

func rootCmd(clock clockwork.Clock) *cobra.Command {
	var path string
	cmd := &cobra.Command{
		Use:           "inspect",
		Short:         "Validate a saved forecast payload and print the points it would write.",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			data, err := os.ReadFile(path)
			if err != nil {
				return err
			}
			return inspect(cmd.OutOrStdout(), data, clock)
		},
	}
	cmd.Flags().StringVarP(&path, "file", "f", "", "path to a saved payload")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func inspect(w io.Writer, data []byte, clock clockwork.Clock) error {
	raw, err := domain.DecodePayload(data)
	if err != nil {
		return err
	}

	out := domain.Validate(raw)
	fmt.Fprintf(w, "verdict: %s\n", out.Verdict)

	switch out.Verdict {
	case domain.Invalid:
		fmt.Fprintf(w, "reason: %s\n", out.Reason)
		return fmt.Errorf("%w: %s", errInvalidPayload, out.Reason)
	case domain.Throttled:
		fmt.Fprintf(w, "next access: %q\n", out.RetryAt)
		fmt.Fprintf(w, "delay: %s\n", domain.ComputeDelay(out.RetryAt, clock.Now()))
		return nil
	}

	batch, skipped := domain.Normalize(out.TimeSeries).WithFields()
	fmt.Fprintf(w, "records: %d\npoints: %d\nskipped: %d\n\n", len(out.TimeSeries), len(batch), skipped)
	_, err = io.WriteString(w, influx.LineProtocol(batch))
	return err
}
