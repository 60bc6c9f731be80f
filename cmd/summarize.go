package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ziadkadry99/workmate/internal/chat"
	"github.com/ziadkadry99/workmate/internal/progress"
)

var (
	summarizeAll bool
	summarizeMin int
)

var summarizeCmd = &cobra.Command{
	Use:   "summarize",
	Short: "Backfill conversation summaries",
	Long: `Summarizes every stored conversation that has at least --min messages and no
summary yet. With --all, existing summaries are regenerated too.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		log, err := newLogger(cfg)
		if err != nil {
			return err
		}
		defer log.Sync()

		database, err := openDatabase(cfg)
		if err != nil {
			return err
		}
		defer database.Close()

		gw, err := createGateway(cfg, log)
		if err != nil {
			return err
		}

		ctx := context.Background()
		store := chat.NewStore(database)
		summarizer := chat.NewSummarizer(store, gw, log)

		minMessages := summarizeMin
		if !cmd.Flags().Changed("min") {
			minMessages = cfg.Chat.SummarizeEvery
		}

		convs, err := store.AllConversations(ctx)
		if err != nil {
			return err
		}
		var todo []chat.Conversation
		for _, c := range convs {
			if c.Metadata.Summary != "" && !summarizeAll {
				continue
			}
			n, err := store.CountMessages(ctx, c.ID)
			if err != nil {
				return err
			}
			if n >= minMessages {
				todo = append(todo, c)
			}
		}
		if len(todo) == 0 {
			fmt.Fprintln(os.Stderr, "Nothing to summarize.")
			return nil
		}

		reporter := progress.NewReporter("Summarizing conversations")
		reporter.Start(len(todo))
		failed := 0
		for i, c := range todo {
			if _, err := summarizer.Summarize(ctx, c.ID); err != nil {
				failed++
				log.Warn("summary failed", "conversation_id", c.ID, "error", err)
			}
			reporter.Update(i+1, c.Title)
		}
		reporter.Finish()

		fmt.Fprintf(os.Stderr, "Summarized %d of %d conversations.\n", len(todo)-failed, len(todo))
		if failed > 0 {
			return fmt.Errorf("%d summaries failed", failed)
		}
		return nil
	},
}

func init() {
	summarizeCmd.Flags().BoolVar(&summarizeAll, "all", false, "regenerate existing summaries")
	summarizeCmd.Flags().IntVar(&summarizeMin, "min", 20, "minimum messages before a conversation is summarized (default chat.summarize_every)")
	rootCmd.AddCommand(summarizeCmd)
}
