package main

import (
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/mintnchocochip/Image-Compression-and-Encryption-Pipeline/internal/config"
)

// Global flags
var (
	verbose    bool
	quiet      bool
	configPath string
)

// cfg holds defaults resolved from the config file and IMGCRYPT_* variables.
var cfg = config.Default()

var rootCmd = &cobra.Command{
	Use:   "imgcrypt",
	Short: "Encrypt images with a permutation, substitution and chaotic stream cipher",
	Long: `imgcrypt scrambles an image with an Arnold cat map, an AES S-box and a
logistic-map keystream, hides the parameters needed to undo it in the
carrier's least significant bits, and writes a compressed artifact plus its
SHA-256 digest.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
		if verbose {
			zerolog.SetGlobalLevel(zerolog.DebugLevel)
		} else {
			zerolog.SetGlobalLevel(zerolog.InfoLevel)
		}

		loaded, err := config.Load(configPath)
		if err != nil {
			return err
		}
		cfg = loaded
		log.Debug().Str("config", configPath).Interface("defaults", cfg).Msg("Configuration loaded")
		return nil
	},
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "Hide the progress bar")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to a config file of \"key value\" lines (keys as in IMGCRYPT_* without the prefix, lower-case with dashes)")
}
