package cmd

import (
	"context"
	"fmt"
	"os"
	"strings"

	homedir "github.com/mitchellh/go-homedir"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/sw33tLie/creatorlive/internal/utils"
	"github.com/sw33tLie/creatorlive/pkg/platforms/twitch"
	"github.com/sw33tLie/creatorlive/pkg/platforms/twitter"
	"github.com/sw33tLie/creatorlive/pkg/polling"
	"github.com/sw33tLie/creatorlive/pkg/whttp"
)

var cfgFile string

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "creatorlive",
	Short: "Shows which creators are live right now.",
	Long: `creatorlive checks a list of creator profiles against Twitch streams and X Spaces
and ranks whoever is live, falling back to featured channel links for everyone else.`,
	CompletionOptions: cobra.CompletionOptions{
		DisableDefaultCmd: true,
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.creatorlive.yaml)")

	// Global flags
	rootCmd.PersistentFlags().StringP("proxy", "", "", "HTTP Proxy (Useful for debugging. Example: http://127.0.0.1:8080)")
	rootCmd.PersistentFlags().StringP("loglevel", "l", "info", "Set log level. Available: debug, info, warn, error, fatal")
	rootCmd.PersistentFlags().String("logformat", "text", "Log format: text or json")
	rootCmd.PersistentFlags().String("dbpath", "", "Path to SQLite profile DB (default is $HOME/.config/creatorlive/profiles.sqlite)")
	_ = viper.BindPFlag("db.path", rootCmd.PersistentFlags().Lookup("dbpath"))
	_ = viper.BindPFlag("http.proxy", rootCmd.PersistentFlags().Lookup("proxy"))
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := homedir.Dir()
		if err != nil {
			fmt.Println(err)
			os.Exit(1)
		}
		viper.AddConfigPath(home)
		viper.SetConfigName(".creatorlive")
		viper.SetConfigType("yaml")
	}

	// TWITCH_CLIENT_ID overrides twitch.client_id, and so on.
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			fmt.Printf("Error reading config file: %s\n", err)
		}
	}

	// Init log library
	levelString, _ := rootCmd.PersistentFlags().GetString("loglevel")
	utils.SetLogLevel(levelString)
	formatString, _ := rootCmd.PersistentFlags().GetString("logformat")
	utils.SetLogFormat(formatString)
}

func setDefaults() {
	viper.SetDefault("twitch.client_id", "")
	viper.SetDefault("twitch.client_secret", "")
	viper.SetDefault("twitch.api_url", twitch.DefaultAPIURL)
	viper.SetDefault("twitch.token_url", twitch.DefaultTokenURL)
	viper.SetDefault("twitch.site_url", twitch.DefaultSiteURL)

	viper.SetDefault("x.bearer_token", "")
	viper.SetDefault("x.api_url", twitter.DefaultAPIURL)
	viper.SetDefault("x.site_url", twitter.DefaultSiteURL)
	viper.SetDefault("x.requests_per_second", 0)

	viper.SetDefault("http.timeout", whttp.DefaultTimeout)
	// Retries after the first attempt; 0 disables them.
	viper.SetDefault("http.retry_max", whttp.DefaultRetryMax)

	viper.SetDefault("cache.redis_url", "")
	viper.SetDefault("cache.max_entries", 10000)

	viper.SetDefault("aggregator.profile_limit", polling.DefaultProfileLimit)
	viper.SetDefault("aggregator.path_timeout", polling.DefaultPathTimeout)

	viper.SetDefault("server.username", "")
	viper.SetDefault("server.password", "")
}
