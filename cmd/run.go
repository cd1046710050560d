package cmd

import (
	"log"

	"github.com/DavidCBradleyJr/matchmaker-bot/matchmaker"
	"github.com/spf13/cobra"
)

var runCmd = &cobra.Command{
	Use:   "run [flags]",
	Short: "Starts the Matchmaker bot and health API",
	Run: func(cmd *cobra.Command, _ []string) {
		ctx := cmd.Context()
		mm, err := matchmaker.New(cfg)
		if err != nil {
			log.Fatalf("error creating matchmaker: %s", err.Error())
		}

		if err = mm.Run(ctx); err != nil {
			log.Fatalf("error running matchmaker: %s", err.Error())
		}
	},
}

//nolint:gochecknoinits
func init() {
	rootCmd.AddCommand(runCmd)
}
