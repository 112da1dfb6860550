package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"github.com/cviz/relay/internal/bus"
)

var echoVerbose bool

var echoCmd = &cobra.Command{
	Use:   "echo [topics...]",
	Short: "Print bus messages as they arrive",
	Long:  "Subscribe to the given topics (or all topics) and print each message until interrupted.",
	RunE: func(cmd *cobra.Command, args []string) error {
		filters := args
		if len(filters) == 0 {
			filters = []string{""}
			fmt.Printf("Monitoring all topics on %s\n", endpoint)
		} else {
			fmt.Printf("Monitoring topics %v on %s\n", filters, endpoint)
		}

		envs := make(chan bus.Envelope, 64)
		var wg sync.WaitGroup
		for _, filter := range filters {
			wg.Add(1)
			go func(filter string) {
				defer wg.Done()
				tail(cmd.Context(), filter, envs)
			}(filter)
		}

		count := 0
		for {
			select {
			case <-cmd.Context().Done():
				wg.Wait()
				fmt.Printf("\n%d messages seen\n", count)
				return nil
			case env := <-envs:
				count++
				fmt.Printf("--- %s [%s] ---\n", env.Topic, time.Now().Format("15:04:05.000"))
				fmt.Println(formatPayload(env.Payload))
			}
		}
	},
}

func init() {
	echoCmd.Flags().BoolVarP(&echoVerbose, "verbose", "v", false, "pretty-print full message content")
	rootCmd.AddCommand(echoCmd)
}

func tail(ctx context.Context, filter string, envs chan<- bus.Envelope) {
	dialer := bus.Dialer{Endpoint: endpoint}
	for {
		sub, err := dialer.Subscribe(ctx, filter)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			select {
			case <-ctx.Done():
				return
			case <-time.After(time.Second):
			}
			continue
		}
		for {
			env, err := sub.Recv(ctx)
			if err != nil {
				break
			}
			select {
			case envs <- env:
			case <-ctx.Done():
				sub.Close()
				return
			}
		}
		sub.Close()
		if ctx.Err() != nil {
			return
		}
	}
}

func formatPayload(payload []byte) string {
	if echoVerbose {
		var pretty bytes.Buffer
		if err := json.Indent(&pretty, payload, "", "  "); err == nil {
			return pretty.String()
		}
	}
	var compact bytes.Buffer
	if err := json.Compact(&compact, payload); err == nil {
		return compact.String()
	}
	return string(payload)
}
