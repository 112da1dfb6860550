package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"github.com/cviz/relay/internal/bus"
)

var listDuration time.Duration

type topicStats struct {
	count    int
	dataType string
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "Discover active topics",
	Long:  "Subscribe to all topics for a scan duration and report every topic name seen, with message counts and data_type.",
	RunE: func(cmd *cobra.Command, args []string) error {
		fmt.Printf("Scanning %s for topics for %s...\n", endpoint, listDuration)

		ctx, cancel := context.WithTimeout(cmd.Context(), listDuration)
		defer cancel()

		envs := make(chan bus.Envelope, 64)
		go tail(ctx, "", envs)

		stats := make(map[string]*topicStats)
		for {
			select {
			case <-ctx.Done():
				printStats(stats)
				return nil
			case env := <-envs:
				s, ok := stats[env.Topic]
				if !ok {
					s = &topicStats{dataType: "unknown"}
					stats[env.Topic] = s
				}
				s.count++
				var probe struct {
					DataType string `json:"data_type"`
				}
				if err := json.Unmarshal(env.Payload, &probe); err == nil && probe.DataType != "" {
					s.dataType = probe.DataType
				}
			}
		}
	},
}

func init() {
	listCmd.Flags().DurationVarP(&listDuration, "duration", "d", 3*time.Second, "how long to scan")
	rootCmd.AddCommand(listCmd)
}

func printStats(stats map[string]*topicStats) {
	names := make([]string, 0, len(stats))
	for name := range stats {
		names = append(names, name)
	}
	sort.Strings(names)

	fmt.Printf("\n%-30s %-20s %s\n", "Topic", "Data Type", "Count")
	for _, name := range names {
		s := stats[name]
		fmt.Printf("%-30s %-20s %d\n", name, s.dataType, s.count)
	}
	fmt.Printf("\nTotal: %d topics\n", len(names))
}
