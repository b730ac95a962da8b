package cmd

import (
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/sw33tLie/creatorlive/internal/server"
	"github.com/sw33tLie/creatorlive/internal/utils"
	"github.com/sw33tLie/creatorlive/pkg/polling"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the live-streams API",
	RunE: func(cmd *cobra.Command, args []string) error {
		listenAddr, _ := cmd.Flags().GetString("listen")
		warmCron, _ := cmd.Flags().GetString("warm-cron")

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		e, err := newEngine(ctx)
		if err != nil {
			return err
		}
		defer e.Close()

		go e.Memory.RunJanitor(ctx, time.Minute)

		if warmCron != "" {
			warmer, err := polling.NewWarmer(e.Aggregator, warmCron, viper.GetDuration("aggregator.path_timeout")*2, utils.Log)
			if err != nil {
				return err
			}
			go warmer.Run()
			warmer.Start()
			defer warmer.Stop()
			utils.Log.Infof("Warming caches on schedule %q", warmCron)
		}

		srv := server.New(e.Aggregator, e.Profiles, viper.GetString("server.username"), viper.GetString("server.password"))
		srv.WriteLock = e.WriteLock
		return srv.Start(ctx, listenAddr)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().String("listen", ":8080", "HTTP listen address")
	serveCmd.Flags().String("user", "", "Basic auth username for the admin endpoints")
	serveCmd.Flags().String("pass", "", "Basic auth password for the admin endpoints")
	serveCmd.Flags().String("warm-cron", "@every 2m", "Cron schedule for cache warm-up (empty disables)")
	_ = viper.BindPFlag("server.username", serveCmd.Flags().Lookup("user"))
	_ = viper.BindPFlag("server.password", serveCmd.Flags().Lookup("pass"))
}

