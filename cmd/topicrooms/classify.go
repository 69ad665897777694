package main

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/vovakirdan/topicrooms/internal/app"
	"github.com/vovakirdan/topicrooms/internal/core"
)

func newClassifyCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "classify [text...]",
		Short: "Print the rooms a text would be routed to (reads stdin lines when no text is given)",
		RunE: func(cmd *cobra.Command, args []string) error {
			reg, err := loadRegistry(opts)
			if err != nil {
				return err
			}
			if len(args) > 0 {
				printClassification(cmd.OutOrStdout(), reg, strings.Join(args, " "))
				return nil
			}
			return classifyLines(cmd.InOrStdin(), cmd.OutOrStdout(), reg)
		},
	}
}

func newRoomsCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "rooms",
		Short: "List configured rooms and their topics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			reg, err := loadRegistry(opts)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, room := range reg.Rooms() {
				fmt.Fprintf(out, "%s\t%s\t%d topics\n", room.ID, room.Label, len(room.Topics))
				for _, topic := range room.Topics {
					fmt.Fprintf(out, "  %s\n", topic)
				}
			}
			return nil
		},
	}
}

func loadRegistry(opts *rootOptions) (*core.Registry, error) {
	cfg, baseDir, logger, err := loadConfig(opts)
	if err != nil {
		return nil, err
	}
	reg, err := app.LoadRegistry(cfg, baseDir)
	if err != nil {
		logger.Error().Err(err).Msg("invalid configuration")
		return nil, err
	}
	return reg, nil
}

func classifyLines(in io.Reader, out io.Writer, reg *core.Registry) error {
	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		line := scanner.Text()
		if strings.TrimSpace(line) == "" {
			continue
		}
		printClassification(out, reg, line)
	}
	return scanner.Err()
}

func printClassification(out io.Writer, reg *core.Registry, text string) {
	rooms := core.Classify(core.Event{Text: text}, reg)
	if len(rooms) == 0 {
		fmt.Fprintln(out, "-")
		return
	}
	fmt.Fprintln(out, strings.Join(rooms, ","))
}
