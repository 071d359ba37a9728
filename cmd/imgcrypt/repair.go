package main

import (
	"fmt"
	"os"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/mintnchocochip/Image-Compression-and-Encryption-Pipeline/pkg/imgcrypt"
)

var (
	repairFlags struct {
		Artifact string
		Parity   string
		Out      string
	}
)

var repairCmd = &cobra.Command{
	Use:   "repair",
	Short: "Rebuild a damaged artifact from its parity sidecar",
	Run: func(cmd *cobra.Command, args []string) {
		if repairFlags.Parity == "" {
			repairFlags.Parity = repairFlags.Artifact + parityExt
		}
		if repairFlags.Out == "" {
			repairFlags.Out = repairFlags.Artifact + ".repaired"
		}

		artifact, err := os.ReadFile(repairFlags.Artifact)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to read artifact")
		}
		sidecar, err := os.ReadFile(repairFlags.Parity)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to read parity sidecar")
		}

		repaired, damaged, err := imgcrypt.RepairArtifact(artifact, sidecar)
		if err != nil {
			log.Fatal().Err(err).Int("damaged", damaged).Msg("Repair failed")
		}
		if err := writeFile(repairFlags.Out, repaired); err != nil {
			log.Fatal().Err(err).Msg("Failed to write repaired artifact")
		}

		fmt.Println("✅ Repair complete")
		fmt.Printf("Damaged shards:   %d\n", damaged)
		fmt.Printf("Repaired file:    %s\n", repairFlags.Out)
		fmt.Printf("SHA-256:          %s\n", imgcrypt.Digest(repaired))
	},
}

func init() {
	rootCmd.AddCommand(repairCmd)

	repairCmd.Flags().StringVarP(&repairFlags.Artifact, "input", "i", "", "Path to the damaged artifact (required)")
	repairCmd.MarkFlagRequired("input")
	repairCmd.Flags().StringVar(&repairFlags.Parity, "parity", "", "Parity sidecar (default <input>.par)")
	repairCmd.Flags().StringVarP(&repairFlags.Out, "output", "o", "", "Output path (default <input>.repaired)")
}
