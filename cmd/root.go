package cmd

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "gallery-faces",
	Short: "Face tagging and moderation for the wedding photo gallery",
	Long: `gallery-faces serves the face tagging API of the wedding photo gallery.
Guests mark faces on photos and name the people in them, moderators approve
or reject the tags, and a face detector suggests identities for untagged
faces based on the approved corpus.`,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
}

func initConfig() {
	// .env file is optional, don't fail if not found
	_ = godotenv.Load()
}
