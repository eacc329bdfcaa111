// Package campaign holds the commands that send the entry question to a recipient list.
package campaign

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"

	"github.com/myrjola/flowcast/cmd/cli/clienv"
	"github.com/myrjola/flowcast/internal/campaign"
	"github.com/myrjola/flowcast/internal/compose"
	"github.com/myrjola/flowcast/internal/errors"
	"github.com/myrjola/flowcast/internal/recipients"
	"github.com/myrjola/flowcast/internal/repositories"
	"github.com/myrjola/flowcast/internal/whatsapp"
	"github.com/spf13/cobra"
)

var Group = &cobra.Group{
	ID:    "campaign",
	Title: "Campaigns",
}

// Commands returns new instances of the campaign commands.
func Commands() []*cobra.Command {
	return []*cobra.Command{sample(), run()}
}

func sample() *cobra.Command {
	return &cobra.Command{
		Use:     "sample",
		GroupID: Group.ID,
		Short:   "Write a sample recipient list to stdout",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return recipients.WriteSampleCSV(cmd.OutOrStdout()) //nolint:wrapcheck // already annotated.
		},
	}
}

func run() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "run FILE",
		GroupID: Group.ID,
		Short:   "Send the entry question to the recipients in a CSV file",
		Long: `Creates the missing recipient records and sends the entry question to every recipient in the CSV file.
The run report is written to stdout as JSON. With --dry-run the messages are logged instead of sent and
no pacing applies. Recipient records are created either way.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dryRun, _ := cmd.Flags().GetBool("dry-run")
			rows, err := readRows(args[0])
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			env, err := clienv.Open(ctx, cmd)
			if err != nil {
				return err
			}
			defer env.Close()

			sender, err := newSender(env, dryRun)
			if err != nil {
				return err
			}
			questions := repositories.NewQuestionRepository(env.DB, env.Logger)
			entry, err := campaign.EntryQuestion(ctx, questions)
			if err != nil {
				return errors.Wrap(err, "find entry question")
			}
			dispatcher := campaign.NewDispatcher(env.Logger, repositories.NewRecipientRepository(env.DB, env.Logger),
				sender, campaign.Options{SendTimeout: env.Config.SendTimeout, Pacer: newPacer(env, dryRun), Observer: nil})

			report, err := dispatcher.Dispatch(ctx, rows, entry, env.Config.Workers)
			if err != nil {
				return errors.Wrap(err, "dispatch")
			}
			encoder := json.NewEncoder(cmd.OutOrStdout())
			encoder.SetIndent("", "  ")
			if err = encoder.Encode(report); err != nil {
				return errors.Wrap(err, "write report")
			}
			return nil
		},
	}
	cmd.Flags().Bool("dry-run", false, "log the messages instead of sending them")
	return cmd
}

func readRows(path string) ([]recipients.Row, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "open recipient list", slog.String("path", path))
	}
	defer func() {
		_ = f.Close()
	}()
	raw, err := recipients.ReadCSV(f)
	if err != nil {
		return nil, errors.Wrap(err, "read recipient list", slog.String("path", path))
	}
	rows := recipients.Normalize(raw)
	if len(rows) == 0 {
		return nil, errors.Wrap(recipients.ErrNoRecipients, "normalize recipient list", slog.String("path", path))
	}
	return rows, nil
}

// newSender returns nil when the channel is not configured so that the run fails with campaign.ErrNoSender.
func newSender(env *clienv.Env, dryRun bool) (campaign.Sender, error) {
	if dryRun {
		logger := env.Logger.With(slog.String("source", "dry-run"))
		return campaign.SenderFunc(func(ctx context.Context, to string, msg compose.Message) error {
			payload, err := whatsapp.Payload(to, msg)
			if err != nil {
				return errors.Wrap(err, "encode payload")
			}
			logger.LogAttrs(ctx, slog.LevelInfo, "would send", slog.Any("payload", payload))
			return nil
		}), nil
	}
	if !env.Config.ChannelConfigured() {
		return nil, nil //nolint:nilnil // a missing sender is reported by the dispatcher.
	}
	client, err := whatsapp.NewClient(whatsapp.Config{
		BaseURL:       env.Config.WhatsAppBaseURL,
		PhoneNumberID: env.Config.WhatsAppPhoneNumberID,
		Token:         env.Config.WhatsAppToken,
		Timeout:       env.Config.SendTimeout,
	}, env.Logger)
	if err != nil {
		return nil, errors.Wrap(err, "new whatsapp client")
	}
	return client, nil
}

func newPacer(env *clienv.Env, dryRun bool) campaign.Pacer {
	switch {
	case dryRun:
		return campaign.NoPacing{}
	case env.Config.Workers > 1:
		return campaign.NewRatePacer(env.Config.RatePerSecond, env.Config.RateBurst)
	default:
		return campaign.DelayPacer{AfterSuccess: env.Config.DelayAfterSuccess, AfterFailure: env.Config.DelayAfterFailure}
	}
}
