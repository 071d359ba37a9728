package main

import (
	"encoding/hex"
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/mintnchocochip/Image-Compression-and-Encryption-Pipeline/pkg/imgcrypt"
)

var (
	deriveFlags struct {
		Pass       string
		Salt       string
		Iterations uint
	}
)

var deriveCmd = &cobra.Command{
	Use:   "derive",
	Short: "Derive cipher parameters from a passphrase",
	Long:  `Runs PBKDF2 over the passphrase and salt and prints the resulting parameters as config file lines, ready for --config.`,
	Run: func(cmd *cobra.Command, args []string) {
		if !cmd.Flags().Changed("iterations") {
			deriveFlags.Iterations = cfg.Iterations
		}

		rounds, err := acmRounds(deriveFlags.Iterations)
		if err != nil {
			log.Fatal().Err(err).Msg("Invalid iterations")
		}

		var salt []byte
		if deriveFlags.Salt != "" {
			salt, err = hex.DecodeString(deriveFlags.Salt)
			if err != nil {
				log.Fatal().Err(err).Msg("Salt must be hex encoded")
			}
		} else if salt, err = imgcrypt.NewSalt(); err != nil {
			log.Fatal().Err(err).Msg("Failed to generate salt")
		}

		p, err := imgcrypt.DeriveParams(deriveFlags.Pass, salt, rounds)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to derive parameters")
		}

		fmt.Printf("# salt %s\n", hex.EncodeToString(salt))
		fmt.Printf("acm-iterations %d\n", p.Iterations)
		fmt.Printf("acm-a %d\n", p.A)
		fmt.Printf("acm-b %d\n", p.B)
		fmt.Printf("logistic-x0 %v\n", p.X0)
		fmt.Printf("logistic-r %v\n", p.R)
	},
}

func init() {
	rootCmd.AddCommand(deriveCmd)

	deriveCmd.Flags().StringVarP(&deriveFlags.Pass, "passphrase", "p", "", "Passphrase (required)")
	deriveCmd.MarkFlagRequired("passphrase")
	deriveCmd.Flags().StringVar(&deriveFlags.Salt, "salt", "", "Hex salt (default random)")
	deriveCmd.Flags().UintVarP(&deriveFlags.Iterations, "iterations", "k", uint(imgcrypt.DefaultParams().Iterations), "Arnold cat map rounds")
}
