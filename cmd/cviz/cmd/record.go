package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/cviz/relay/internal/bus"
	"github.com/cviz/relay/internal/recorder"
)

var (
	recordTopics string
	recordOutDir string
)

var recordCmd = &cobra.Command{
	Use:   "record",
	Short: "Record bus traffic to a file",
	Long:  "Subscribe to the given topics (or all topics) and record every message until interrupted.",
	RunE: func(cmd *cobra.Command, args []string) error {
		topics := splitTopics(recordTopics)

		if err := os.MkdirAll(recordOutDir, 0o755); err != nil {
			return fmt.Errorf("create output dir: %w", err)
		}
		path := filepath.Join(recordOutDir, recordingFilename(topics))

		store, err := recorder.Create(path, endpoint, topics)
		if err != nil {
			return err
		}
		defer store.Close()

		label := "all"
		if len(topics) > 0 {
			label = strings.Join(topics, ", ")
		}
		fmt.Printf("Recording topics [%s] from %s into %s (Ctrl+C to stop)\n", label, endpoint, path)

		rec := recorder.New(bus.Dialer{Endpoint: endpoint}, store, topics)
		count, err := rec.Run(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Printf("Recorded %d messages to %s\n", count, path)
		return nil
	},
}

func init() {
	recordCmd.Flags().StringVarP(&recordTopics, "topics", "t", "",
		"comma-separated topics to record (default: all)")
	recordCmd.Flags().StringVarP(&recordOutDir, "output-dir", "o", "recordings",
		"directory to save recordings")
	rootCmd.AddCommand(recordCmd)
}

func recordingFilename(topics []string) string {
	name := "all_topics"
	if len(topics) > 0 {
		name = strings.Join(topics, "_")
		if len(name) > 100 {
			name = name[:100]
		}
	}
	stamp := time.Now().Format("20060102_150405")
	return fmt.Sprintf("cviz_recording_%s_%s.db", stamp, name)
}

func splitTopics(s string) []string {
	if s == "" {
		return nil
	}
	var out []string
	for _, t := range strings.Split(s, ",") {
		t = strings.TrimSpace(t)
		if t != "" {
			out = append(out, t)
		}
	}
	return out
}
