package cmd

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/conneroisu/omnigrid/internal/config"
)

// rootCmd serves static files; it is the whole program apart from version.
var rootCmd = &cobra.Command{
	Use:   "omnigrid [port]",
	Short: "Serve a single-page application bundle over HTTP/1.1",
	Long: `omnigrid serves the static files of a pre-built frontend bundle.

It serves ./dist when that directory exists and the working directory
otherwise. Requests for extension-less paths that do not exist fall back
to index.html so client-side routes resolve.

Only GET is supported and every response closes the connection.

Examples:
  omnigrid                 # serve on PORT or 1234
  omnigrid 8080            # serve on 8080
  omnigrid --watch -l debug`,
	Args:         cobra.MaximumNArgs(1),
	SilenceUsage: true,
	RunE:         runServe,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	v := viper.GetViper()
	config.SetDefaults(v)

	bindFlags(v, rootCmd.Flags(), addServerFlags(rootCmd.Flags()))
	bindFlags(v, rootCmd.PersistentFlags(), addLogFlags(rootCmd.PersistentFlags()))
}
