package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"chat-timeline/internal/adapters/snapshot"
	"chat-timeline/internal/domain"
	"chat-timeline/internal/usecase/grouping"
)

type rootOptions struct {
	chatType    string
	replyMode   string
	tz          string
	inputFormat string
	output      string
	pretty      bool
}

func newRootCmd(logger zerolog.Logger) *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:   "sectionize [file]",
		Short: "Group chat messages into date sections",
		Long: `Reads a chat snapshot (YAML or JSON, a list of messages or an object with
chat_type, reply_mode and messages) and prints the date sections with the
position of every row. Reads stdin when no file or "-" is given.`,
		Args:         cobra.MaximumNArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			path := "-"
			if len(args) == 1 {
				path = args[0]
			}
			return run(cmd.InOrStdin(), cmd.OutOrStdout(), path, opts, logger)
		},
	}
	cmd.Flags().StringVar(&opts.chatType, "chat-type", "", "conversation or comments (overrides the file)")
	cmd.Flags().StringVar(&opts.replyMode, "reply-mode", "", "quote or answer (overrides the file)")
	cmd.Flags().StringVar(&opts.tz, "tz", "Local", "timezone used to split messages into days")
	cmd.Flags().StringVar(&opts.inputFormat, "input-format", "", "yaml or json, detected from the file extension by default")
	cmd.Flags().StringVarP(&opts.output, "output", "o", "json", "json or text")
	cmd.Flags().BoolVar(&opts.pretty, "pretty", false, "indent JSON output")
	return cmd
}

func run(stdin io.Reader, stdout io.Writer, path string, opts *rootOptions, logger zerolog.Logger) error {
	snap, err := readSnapshot(stdin, path, opts.inputFormat)
	if err != nil {
		return err
	}

	variant, err := snap.Variant(domain.Variant{ChatType: domain.ChatTypeConversation, ReplyMode: domain.ReplyModeQuote})
	if err != nil {
		return err
	}
	if opts.chatType != "" {
		if variant.ChatType, err = domain.ParseChatType(opts.chatType); err != nil {
			return err
		}
	}
	if opts.replyMode != "" {
		if variant.ReplyMode, err = domain.ParseReplyMode(opts.replyMode); err != nil {
			return err
		}
	}

	loc, err := time.LoadLocation(opts.tz)
	if err != nil {
		return fmt.Errorf("load timezone %q: %w", opts.tz, err)
	}

	sections, err := grouping.Build(snap.Messages, grouping.OptionsFor(variant, loc))
	if err != nil {
		return err
	}
	if variant.ReplyMode == domain.ReplyModeAnswer {
		if dropped := grouping.DroppedReplies(snap.Messages); len(dropped) > 0 {
			logger.Warn().Strs("message_ids", grouping.IDs(dropped)).Msg("replies without a first-level post are hidden")
		}
	}

	switch opts.output {
	case "json":
		enc := json.NewEncoder(stdout)
		if opts.pretty {
			enc.SetIndent("", "  ")
		}
		if sections == nil {
			sections = []domain.DateSection{}
		}
		return enc.Encode(sections)
	case "text":
		return writeText(stdout, sections, loc)
	default:
		return fmt.Errorf("unknown output %q", opts.output)
	}
}

func readSnapshot(stdin io.Reader, path, format string) (snapshot.Snapshot, error) {
	f := snapshot.Format(strings.ToLower(format))
	if path == "-" {
		if f == "" {
			f = snapshot.FormatYAML
		}
		return snapshot.Decode(stdin, f)
	}
	if f == "" {
		f = snapshot.FormatFromPath(path)
	}
	file, err := os.Open(path)
	if err != nil {
		return snapshot.Snapshot{}, err
	}
	defer file.Close()
	return snapshot.Decode(file, f)
}

func writeText(w io.Writer, sections []domain.DateSection, loc *time.Location) error {
	for _, s := range sections {
		if _, err := fmt.Fprintf(w, "== %s\n", s.Date.In(loc).Format("2006-01-02")); err != nil {
			return err
		}
		for _, row := range s.Rows {
			line := fmt.Sprintf("  %s\t%s\t%s\t%s", row.Message.CreatedAt.In(loc).Format("15:04"), row.Message.ID, row.Message.UserID(), row.PositionInGroup)
			if row.PositionInCommentsGroup != nil {
				line += "\t" + string(*row.PositionInCommentsGroup)
			}
			if _, err := fmt.Fprintln(w, line); err != nil {
				return err
			}
		}
	}
	return nil
}
