package main

import (
	"fmt"
	"os"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/mintnchocochip/Image-Compression-and-Encryption-Pipeline/pkg/imgcrypt"
)

var (
	verifyFlags struct {
		Artifact string
		Hash     string
		HashFile string
		Parity   string
	}
)

var verifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Verify the integrity of an artifact",
	Long:  `Checks the artifact against its SHA-256 digest without decrypting it. When a parity sidecar is present, also reports how many shards are damaged and whether they can be repaired.`,
	Run: func(cmd *cobra.Command, args []string) {
		if verifyFlags.HashFile == "" {
			verifyFlags.HashFile = verifyFlags.Artifact + digestExt
		}
		if verifyFlags.Parity == "" {
			verifyFlags.Parity = verifyFlags.Artifact + parityExt
		}

		artifact, err := os.ReadFile(verifyFlags.Artifact)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to read artifact")
		}
		digest, err := resolveDigest(verifyFlags.Hash, verifyFlags.HashFile)
		if err != nil {
			log.Fatal().Err(err).Msg("Missing digest")
		}

		digestErr := imgcrypt.VerifyDigest(artifact, digest)
		if digestErr == nil {
			fmt.Println("✅ Artifact verification successful!")
			fmt.Printf("SHA-256:          %s\n", imgcrypt.Digest(artifact))
		} else {
			fmt.Println("❌ Artifact does not match its digest")
			fmt.Printf("Expected:         %s\n", digest)
			fmt.Printf("Actual:           %s\n", imgcrypt.Digest(artifact))
		}

		sidecar, err := os.ReadFile(verifyFlags.Parity)
		if err == nil {
			info, err := imgcrypt.InspectParity(sidecar)
			if err != nil {
				log.Fatal().Err(err).Msg("Invalid parity sidecar")
			}
			_, damaged, repairErr := imgcrypt.RepairArtifact(artifact, sidecar)
			fmt.Printf("Parity:           %d data + %d parity shards of %d bytes\n", info.DataShards, info.ParityShards, info.ShardSize)
			fmt.Printf("Damaged shards:   %d\n", damaged)
			fmt.Printf("Repairable:       %t\n", repairErr == nil)
		} else if !os.IsNotExist(err) {
			log.Warn().Err(err).Msg("Failed to read parity sidecar")
		}

		if digestErr != nil {
			os.Exit(1)
		}
	},
}

func init() {
	rootCmd.AddCommand(verifyCmd)

	verifyCmd.Flags().StringVarP(&verifyFlags.Artifact, "input", "i", "", "Path to the encrypted artifact (required)")
	verifyCmd.MarkFlagRequired("input")
	verifyCmd.Flags().StringVar(&verifyFlags.Hash, "hash", "", "Expected SHA-256 digest in hex")
	verifyCmd.Flags().StringVar(&verifyFlags.HashFile, "hash-file", "", "File holding the digest (default <input>.sha256)")
	verifyCmd.Flags().StringVar(&verifyFlags.Parity, "parity", "", "Parity sidecar to check (default <input>.par)")
}
