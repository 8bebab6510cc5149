package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/telhawk-systems/sportsagg/cli/pkg/output"
	"github.com/telhawk-systems/sportsagg/common/config"
	"github.com/telhawk-systems/sportsagg/common/messaging"
	natsclient "github.com/telhawk-systems/sportsagg/common/messaging/nats"
	"github.com/telhawk-systems/sportsagg/common/middleware"
	"github.com/telhawk-systems/sportsagg/common/models"
	"github.com/telhawk-systems/sportsagg/ingestion/pkg/publisher"
)

// cliSource tags reports published by hand.
const cliSource = "sportsctl"

// PublishResult is what the publish command prints.
type PublishResult struct {
	Subject  string `json:"subject" yaml:"subject"`
	Sequence uint64 `json:"sequence" yaml:"sequence"`
}

// connectGames connects to NATS and makes sure the games stream exists.
func connectGames(ctx context.Context, cfg *config.Config, opts *globalOptions, cmd *cobra.Command) (*natsclient.JetStreamClient, error) {
	js, err := natsclient.NewJetStreamClient(natsclient.ConfigFrom(cfg.NATS, "sportsctl", opts.logger(cmd)))
	if err != nil {
		return nil, fmt.Errorf("connect to NATS at %s: %w", cfg.NATS.URL, err)
	}

	streamCfg := natsclient.GamesStream
	streamCfg.Name = cfg.NATS.Stream
	if _, err := js.CreateOrUpdateStream(ctx, streamCfg); err != nil {
		_ = js.Close()
		return nil, fmt.Errorf("ensure games stream: %w", err)
	}
	return js, nil
}

func newPublishCmd(opts *globalOptions) *cobra.Command {
	var (
		file  string
		raw   bool
		at    string
		event = models.IngestedEvent{Source: cliSource}
	)

	cmd := &cobra.Command{
		Use:   "publish",
		Short: "Publish one game report",
		Long: `Publish a single game report to games.ingested.<sport>. The report is
read from --file (use - for stdin) or built from flags. With --raw the file
is sent unmodified, which is how malformed reports reach the dead-letter
queue.`,
		Example: `  sportsctl publish --sport football --competition "Serie A" --home Inter --away Milan --at 2025-06-01T18:00:00Z
  sportsctl publish --file game.json
  echo '{"sportType":"football"' | sportsctl publish --file - --raw`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			cfg, err := opts.loadConfig()
			if err != nil {
				return err
			}

			var data []byte
			subject := ""
			switch {
			case raw && file == "":
				return fmt.Errorf("--raw requires --file")
			case raw:
				if data, err = readInput(cmd, file); err != nil {
					return err
				}
				subject = messaging.GamesIngestedSubject(models.UnknownSource)
			case file != "":
				if data, err = readInput(cmd, file); err != nil {
					return err
				}
				decoded, err := models.DecodeIngestedEvent(data)
				if err != nil {
					return err
				}
				if decoded.Source == "" {
					decoded.Source = event.Source
				}
				event = *decoded
			default:
				if at != "" {
					scheduled, err := time.Parse(time.RFC3339, at)
					if err != nil {
						return fmt.Errorf("--at must be RFC 3339: %w", err)
					}
					event.ScheduledAtUTC = scheduled.UTC()
				}
			}

			js, err := connectGames(ctx, cfg, opts, cmd)
			if err != nil {
				return err
			}
			defer js.Close()

			var result PublishResult
			if raw {
				ack, err := js.PublishSync(ctx, subject, data,
					messaging.WithHeader(messaging.HeaderRequestID, middleware.NewRequestID()),
					messaging.WithHeader(messaging.HeaderSource, cliSource))
				if err != nil {
					return fmt.Errorf("publish: %w", err)
				}
				result = PublishResult{Subject: subject, Sequence: ack.Sequence}
			} else {
				if err := event.Validate(); err != nil {
					return err
				}
				seq, err := publisher.New(js, opts.logger(cmd)).PublishOne(ctx, &event)
				if err != nil {
					return fmt.Errorf("publish: %w", err)
				}
				result = PublishResult{Subject: messaging.GamesIngestedSubject(event.SportType), Sequence: seq}
			}

			return output.Render(cmd.OutOrStdout(), opts.output, result, func() *output.Table {
				table := output.NewTable("SUBJECT", "SEQUENCE")
				table.AddRow(result.Subject, fmt.Sprint(result.Sequence))
				return table
			})
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&file, "file", "f", "", "JSON report to publish (- for stdin)")
	flags.BoolVar(&raw, "raw", false, "send --file as-is without validation")
	flags.StringVar(&event.SportType, "sport", "", "sport type")
	flags.StringVar(&event.CompetitionName, "competition", "", "competition name")
	flags.StringVar(&event.HomeTeam, "home", "", "home team")
	flags.StringVar(&event.AwayTeam, "away", "", "away team")
	flags.StringVar(&at, "at", "", "scheduled start in RFC 3339")
	flags.StringVar(&event.Source, "source", cliSource, "source name stamped on the report")
	return cmd
}

func readInput(cmd *cobra.Command, path string) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(cmd.InOrStdin())
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read report: %w", err)
	}
	return data, nil
}
