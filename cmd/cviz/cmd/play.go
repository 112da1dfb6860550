package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cviz/relay/internal/bus"
	"github.com/cviz/relay/internal/recorder"
)

var (
	playSpeed  float64
	playRepeat bool
)

var playCmd = &cobra.Command{
	Use:   "play <recording>",
	Short: "Replay a recording onto the bus",
	Long:  "Republish a recorded session in capture order, preserving inter-message timing scaled by --speed.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := recorder.Open(args[0])
		if err != nil {
			return err
		}
		defer store.Close()

		meta, err := store.Meta()
		if err != nil {
			return err
		}
		fmt.Printf("Playing %s: %d messages recorded %s (speed %.1fx, repeat %v)\n",
			args[0], meta.MessageCount, meta.StartedAt.Format("2006-01-02 15:04:05"),
			playSpeed, playRepeat)

		pub, err := bus.NewPublisher(cmd.Context(), endpoint)
		if err != nil {
			return err
		}
		defer pub.Close()

		player := recorder.NewPlayer(store, pub, playSpeed, playRepeat)
		return player.Run(cmd.Context())
	},
}

func init() {
	playCmd.Flags().Float64VarP(&playSpeed, "speed", "s", 1.0, "playback speed multiplier")
	playCmd.Flags().BoolVarP(&playRepeat, "repeat", "r", false, "repeat playback continuously")
	rootCmd.AddCommand(playCmd)
}
