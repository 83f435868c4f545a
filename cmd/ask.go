package main

import (
	"encoding/json"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/fintora/counsel/internal/engine"
)

var askThreadID string

var askCmd = &cobra.Command{
	Use:   "ask [question]",
	Short: "Run one question through the pipeline and print the result",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initPipeline(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		question := strings.Join(args, " ")

		result, err := env.Pipeline.Submit(ctx, askThreadID, question)
		if err != nil {
			return err
		}

		zap.L().Info("question processed",
			zap.String("inquiry_id", result.InquiryID),
			zap.Int("providers", len(result.ProviderResults)),
		)

		trail, err := env.Pipeline.Trail(ctx, result.ThreadID)
		if err != nil {
			return err
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(struct {
			Result *engine.SubmitResult `json:"result"`
			Trail  any                  `json:"trail"`
		}{Result: result, Trail: trail})
	},
}

func init() {
	askCmd.Flags().StringVar(&askThreadID, "thread", "", "thread id to append to (default: new thread)")
	rootCmd.AddCommand(askCmd)
}
