package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/mintnchocochip/Image-Compression-and-Encryption-Pipeline/pkg/imgcrypt"
	"github.com/mintnchocochip/Image-Compression-and-Encryption-Pipeline/pkg/imgprep"
)

var (
	decryptFlags struct {
		Artifact string
		Hash     string
		HashFile string
		Out      string
	}
)

var decryptCmd = &cobra.Command{
	Use:   "decrypt",
	Short: "Verify an artifact and decrypt it back into an image",
	Long:  `Checks the artifact against its SHA-256 digest, recovers the cipher parameters hidden in the carrier and reverses every stage. The output format follows the file extension (png, jpg, bmp, tiff, gif).`,
	Run: func(cmd *cobra.Command, args []string) {
		if decryptFlags.HashFile == "" {
			decryptFlags.HashFile = decryptFlags.Artifact + digestExt
		}
		if decryptFlags.Out == "" {
			decryptFlags.Out = filepath.Join("output", "decrypted.png")
		}

		digest, err := resolveDigest(decryptFlags.Hash, decryptFlags.HashFile)
		if err != nil {
			log.Fatal().Err(err).Msg("Missing digest")
		}
		artifact, err := os.ReadFile(decryptFlags.Artifact)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to read artifact")
		}

		pipeline := newPipeline(imgcrypt.CodecZlib, imgcrypt.DefaultCompressionLevel, "🔓", imgcrypt.DecryptStages)
		opened, err := pipeline.Decrypt(artifact, digest)
		if err != nil {
			if errors.Is(err, imgcrypt.ErrIntegrityMismatch) {
				if _, statErr := os.Stat(decryptFlags.Artifact + parityExt); statErr == nil {
					log.Warn().Msg("A parity sidecar exists; try `imgcrypt repair` before decrypting")
				}
			}
			log.Fatal().Err(err).Msg("Decryption failed")
		}

		img, err := imgprep.ToImage(opened.Buffer)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to convert decrypted buffer")
		}
		if err := os.MkdirAll(filepath.Dir(decryptFlags.Out), 0755); err != nil {
			log.Fatal().Err(err).Msg("Failed to create output directory")
		}
		if err := imgprep.Save(decryptFlags.Out, img); err != nil {
			log.Fatal().Err(err).Msg("Failed to save decrypted image")
		}

		meta := opened.Metadata
		fmt.Println("✅ Decryption complete")
		fmt.Printf("Image:         %s (%dx%d, %d channels)\n", decryptFlags.Out, opened.Buffer.Width, opened.Buffer.Height, opened.Buffer.Channels)
		fmt.Printf("Encrypted by:  %s at %s\n", meta.EncryptedBy, meta.Timestamp)
	},
}

func init() {
	rootCmd.AddCommand(decryptCmd)

	decryptCmd.Flags().StringVarP(&decryptFlags.Artifact, "input", "i", "", "Path to the encrypted artifact (required)")
	decryptCmd.MarkFlagRequired("input")
	decryptCmd.Flags().StringVar(&decryptFlags.Hash, "hash", "", "Expected SHA-256 digest in hex")
	decryptCmd.Flags().StringVar(&decryptFlags.HashFile, "hash-file", "", "File holding the digest (default <input>.sha256)")
	decryptCmd.Flags().StringVarP(&decryptFlags.Out, "output", "o", "", "Output path for the image (default output/decrypted.png)")
}
