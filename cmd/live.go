package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/sw33tLie/creatorlive/pkg/creator"
)

// liveCmd implements: creatorlive live
var liveCmd = &cobra.Command{
	Use:   "live",
	Short: "Print the ranked list of live creators",
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(args) > 0 {
			return fmt.Errorf("unknown command: '%s'. See 'creatorlive live --help'", args[0])
		}

		output, _ := cmd.Flags().GetString("output")
		delimiter, _ := cmd.Flags().GetString("delimiter")
		liveOnly, _ := cmd.Flags().GetBool("live-only")

		e, err := newEngine(cmd.Context())
		if err != nil {
			return err
		}
		defer e.Close()

		statuses := e.Aggregator.GetLiveStreams(cmd.Context())

		if output == "json" {
			if liveOnly {
				statuses = onlyLive(statuses)
			}
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(statuses)
		}
		return creator.PrintLiveStatuses(os.Stdout, statuses, output, delimiter, liveOnly)
	},
}

func onlyLive(statuses []creator.LiveStatus) []creator.LiveStatus {
	out := []creator.LiveStatus{}
	for _, s := range statuses {
		if s.IsLive {
			out = append(out, s)
		}
	}
	return out
}

func init() {
	rootCmd.AddCommand(liveCmd)
	liveCmd.Flags().StringP("output", "o", "npvu", "Output flags (n: name, p: platform, t: title, v: viewers, u: url, l: live/featured) or 'json'")
	liveCmd.Flags().StringP("delimiter", "d", " ", "Delimiter character to use for txt output format")
	liveCmd.Flags().Bool("live-only", false, "Only print creators that are live")
}
