package main

import (
	"fmt"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/mintnchocochip/Image-Compression-and-Encryption-Pipeline/pkg/imgcrypt"
)

var infoHash string

var infoCmd = &cobra.Command{
	Use:   "info [artifact]",
	Short: "Inspect an artifact and display its embedded metadata",
	Long:  `Reads the artifact header and extracts the metadata hidden in the carrier without decrypting the image. Pass --hash to verify the artifact first.`,
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := args[0]

		artifact, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		info, err := imgcrypt.New().Inspect(artifact, infoHash)
		if err != nil {
			return fmt.Errorf("failed to get info from %s: %w", path, err)
		}

		p := info.Metadata.Params
		w, h := p.Unpadded()
		fmt.Println("Artifact Information:")
		fmt.Println("---------------------")
		fmt.Printf("Format Version:   %d\n", info.Header.Version)
		fmt.Printf("Codec:            %s\n", info.Header.Codec)
		fmt.Printf("Compressed Size:  %s\n", humanize.Bytes(uint64(info.CompressedSize)))
		fmt.Printf("Carrier Shape:    %s\n", info.Header.Shape)
		fmt.Printf("Digest Verified:  %t\n", info.Verified)
		fmt.Printf("Encrypted By:     %s\n", info.Metadata.EncryptedBy)
		fmt.Printf("Description:      %s\n", info.Metadata.Description)
		fmt.Printf("Timestamp:        %s\n", info.Metadata.Timestamp)
		fmt.Printf("Original Size:    %dx%d\n", w, h)
		fmt.Printf("Padded:           %t\n", p.Padded)
		fmt.Printf("Grayscale:        %t\n", p.Grayscale)
		fmt.Printf("ACM:              a=%d b=%d rounds=%d\n", p.ACMA, p.ACMB, p.ACMIterations)
		fmt.Printf("Logistic Map:     x0=%v r=%v\n", p.LogisticX0, p.LogisticR)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(infoCmd)

	infoCmd.Flags().StringVar(&infoHash, "hash", "", "Verify the artifact against this SHA-256 digest first")
}
