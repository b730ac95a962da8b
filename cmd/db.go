package cmd

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/sw33tLie/creatorlive/internal/utils"
	"github.com/sw33tLie/creatorlive/pkg/creator"
	"github.com/sw33tLie/creatorlive/pkg/storage"
)

// dbCmd represents the db command
var dbCmd = &cobra.Command{
	Use:   "db",
	Short: "Manage the creator profile database",
}

// withLockedDB opens the profile DB under the cross-process write lock.
func withLockedDB(fn func(db *storage.DB) error) error {
	lock, err := dbLock()
	if err != nil {
		return err
	}
	if err := lock.Lock(); err != nil {
		return err
	}
	defer func() {
		if err := lock.Unlock(); err != nil {
			utils.Log.Warnf("%v", err)
		}
	}()

	db, err := openDB()
	if err != nil {
		return err
	}
	defer db.Close()
	return fn(db)
}

var dbAddCmd = &cobra.Command{
	Use:   "add <name>",
	Short: "Add or update a creator profile",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		p := creator.Profile{Name: args[0]}
		p.Path, _ = cmd.Flags().GetString("path")
		p.Description, _ = cmd.Flags().GetString("description")
		p.LogoURL, _ = cmd.Flags().GetString("logo")
		p.TwitchUsername, _ = cmd.Flags().GetString("twitch")
		p.TwitchChannel, _ = cmd.Flags().GetString("twitch-channel")
		p.XUsername, _ = cmd.Flags().GetString("x")
		p.SearchTerms, _ = cmd.Flags().GetString("tags")

		return withLockedDB(func(db *storage.DB) error {
			saved, change, err := db.UpsertProfile(cmd.Context(), p)
			if err != nil {
				return err
			}
			if change.ChangeType == "" {
				utils.Log.Infof("Profile %s unchanged", saved.Path)
			} else {
				utils.Log.Infof("Profile %s %s (id %s)", saved.Path, change.ChangeType, saved.ID)
			}
			return nil
		})
	},
}

var dbListCmd = &cobra.Command{
	Use:   "list",
	Short: "List creator profiles",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		profiles, err := db.ListProfiles(cmd.Context(), 0)
		if err != nil {
			return err
		}
		if len(profiles) == 0 {
			fmt.Println("No profiles in the database.")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', 0)
		fmt.Fprintln(w, "PATH\tNAME\tTWITCH\tX\tTAGS\tID")
		for _, p := range profiles {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n", p.Path, p.Name, dash(p.VideoHandle()), dash(p.SpaceHandle()), dash(p.SearchTerms), p.ID)
		}
		return w.Flush()
	},
}

var dbRemoveCmd = &cobra.Command{
	Use:   "remove <id-or-path>",
	Short: "Remove a creator profile",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withLockedDB(func(db *storage.DB) error {
			change, err := db.DeleteProfile(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			utils.Log.Infof("Profile %s removed", change.Path)
			return nil
		})
	},
}

var dbChangesCmd = &cobra.Command{
	Use:   "changes",
	Short: "Print the most recent profile changes",
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")

		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		changes, err := db.ListRecentChanges(cmd.Context(), limit)
		if err != nil {
			return err
		}
		for _, c := range changes {
			fmt.Printf("%s %-7s %s (%s)\n", c.OccurredAt.Format("2006-01-02 15:04:05"), c.ChangeType, c.Path, c.ProfileID)
		}
		return nil
	},
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func init() {
	rootCmd.AddCommand(dbCmd)
	dbCmd.AddCommand(dbAddCmd, dbListCmd, dbRemoveCmd, dbChangesCmd)

	dbAddCmd.Flags().String("path", "", "URL path of the profile (default derived from name)")
	dbAddCmd.Flags().String("description", "", "Profile description")
	dbAddCmd.Flags().String("logo", "", "Logo URL")
	dbAddCmd.Flags().String("twitch", "", "Twitch username")
	dbAddCmd.Flags().String("twitch-channel", "", "Legacy Twitch channel name")
	dbAddCmd.Flags().String("x", "", "X username")
	dbAddCmd.Flags().String("tags", "", "Comma-separated search terms")

	dbChangesCmd.Flags().Int("limit", 50, "Number of changes to print")
}
