package main

import (
	"encoding/hex"
	"fmt"
	"path/filepath"

	"github.com/dustin/go-humanize"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/mintnchocochip/Image-Compression-and-Encryption-Pipeline/internal/config"
	"github.com/mintnchocochip/Image-Compression-and-Encryption-Pipeline/pkg/imgcrypt"
	"github.com/mintnchocochip/Image-Compression-and-Encryption-Pipeline/pkg/imgprep"
)

var (
	encryptFlags struct {
		Image      string
		Out        string
		HashOut    string
		Iterations uint
		A          int64
		B          int64
		X0         float64
		R          float64
		Pass       string
		Salt       string
		Grayscale  bool
		Codec      string
		Level      int
		MaxSide    int
		MinSide    int
		Parity     bool
	}
)

var encryptCmd = &cobra.Command{
	Use:   "encrypt",
	Short: "Encrypt an image into a compressed artifact",
	Run: func(cmd *cobra.Command, args []string) {
		applyEncryptDefaults(cmd)

		codec, err := imgcrypt.ParseCodec(encryptFlags.Codec)
		if err != nil {
			log.Fatal().Err(err).Msg("Invalid codec")
		}
		if encryptFlags.Level < 1 || encryptFlags.Level > 9 {
			log.Fatal().Int("level", encryptFlags.Level).Msg("compression level must be between 1 and 9")
		}
		rounds, err := acmRounds(encryptFlags.Iterations)
		if err != nil {
			log.Fatal().Err(err).Msg("Invalid iterations")
		}

		params := imgcrypt.Params{
			Iterations: rounds,
			A:          encryptFlags.A,
			B:          encryptFlags.B,
			X0:         encryptFlags.X0,
			R:          encryptFlags.R,
		}
		if encryptFlags.Pass != "" {
			params = deriveFromPassphrase(encryptFlags.Pass, encryptFlags.Salt, params.Iterations)
		}

		if encryptFlags.Out == "" {
			encryptFlags.Out = filepath.Join("output", "encrypted.icep")
		}
		if encryptFlags.HashOut == "" {
			encryptFlags.HashOut = encryptFlags.Out + digestExt
		}

		img, format, err := imgprep.Load(encryptFlags.Image)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to load image")
		}
		prep, err := imgprep.Prepare(img, imgprep.Options{
			Grayscale: encryptFlags.Grayscale,
			MaxSide:   encryptFlags.MaxSide,
			MinSide:   encryptFlags.MinSide,
		})
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to prepare image")
		}
		log.Debug().Str("format", format).
			Int("width", prep.OriginalWidth).Int("height", prep.OriginalHeight).
			Int("side", prep.Buffer.Width).Bool("padded", prep.Padded).Msg("Image prepared")

		pipeline := newPipeline(codec, encryptFlags.Level, "🔐", imgcrypt.EncryptStages)
		sealed, err := pipeline.Encrypt(prep, params)
		if err != nil {
			log.Fatal().Err(err).Msg("Encryption failed")
		}

		if err := writeFile(encryptFlags.Out, sealed.Artifact); err != nil {
			log.Fatal().Err(err).Msg("Failed to write artifact")
		}
		if err := writeDigest(encryptFlags.HashOut, sealed.Digest, encryptFlags.Out); err != nil {
			log.Fatal().Err(err).Msg("Failed to write digest")
		}
		if encryptFlags.Parity {
			sidecar, err := imgcrypt.BuildParity(sealed.Artifact, cfg.ParityData, cfg.ParityShards)
			if err != nil {
				log.Fatal().Err(err).Msg("Failed to build parity sidecar")
			}
			if err := writeFile(encryptFlags.Out+parityExt, sidecar); err != nil {
				log.Fatal().Err(err).Msg("Failed to write parity sidecar")
			}
			log.Info().Str("path", encryptFlags.Out+parityExt).Int("data", cfg.ParityData).Int("parity", cfg.ParityShards).Msg("Parity sidecar written")
		}

		raw := uint64(sealed.Header.Shape.Len())
		fmt.Println("✅ Encryption complete")
		fmt.Printf("Artifact:      %s\n", encryptFlags.Out)
		fmt.Printf("SHA-256:       %s\n", sealed.Digest)
		fmt.Printf("Digest file:   %s\n", encryptFlags.HashOut)
		fmt.Printf("Carrier:       %s (%s raw)\n", sealed.Header.Shape, humanize.Bytes(raw))
		fmt.Printf("Artifact size: %s (%s)\n", humanize.Bytes(uint64(len(sealed.Artifact))), sealed.Header.Codec)
	},
}

func applyEncryptDefaults(cmd *cobra.Command) {
	flags := cmd.Flags()
	if !flags.Changed("iterations") {
		encryptFlags.Iterations = cfg.Iterations
	}
	if !flags.Changed("acm-a") {
		encryptFlags.A = cfg.A
	}
	if !flags.Changed("acm-b") {
		encryptFlags.B = cfg.B
	}
	if !flags.Changed("x0") {
		encryptFlags.X0 = cfg.X0
	}
	if !flags.Changed("r") {
		encryptFlags.R = cfg.R
	}
	if !flags.Changed("codec") {
		encryptFlags.Codec = cfg.Codec
	}
	if !flags.Changed("level") {
		encryptFlags.Level = cfg.Level
	}
	if !flags.Changed("min-side") {
		encryptFlags.MinSide = cfg.MinSide
	}
}

func deriveFromPassphrase(pass, saltHex string, iterations uint32) imgcrypt.Params {
	var salt []byte
	var err error
	if saltHex != "" {
		salt, err = hex.DecodeString(saltHex)
		if err != nil {
			log.Fatal().Err(err).Msg("Salt must be hex encoded")
		}
	} else {
		salt, err = imgcrypt.NewSalt()
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to generate salt")
		}
	}
	params, err := imgcrypt.DeriveParams(pass, salt, iterations)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to derive parameters")
	}
	log.Info().Str("salt", hex.EncodeToString(salt)).Msg("Parameters derived from passphrase")
	return params
}

func init() {
	rootCmd.AddCommand(encryptCmd)

	d := imgcrypt.DefaultParams()
	encryptCmd.Flags().StringVarP(&encryptFlags.Image, "image-path", "i", "", "Path to image (required)")
	encryptCmd.MarkFlagRequired("image-path")
	encryptCmd.Flags().StringVarP(&encryptFlags.Out, "output", "o", "", "Output path for the artifact (default output/encrypted.icep)")
	encryptCmd.Flags().StringVar(&encryptFlags.HashOut, "hash-out", "", "Output path for the SHA-256 digest (default <output>.sha256)")
	encryptCmd.Flags().UintVarP(&encryptFlags.Iterations, "iterations", "k", uint(d.Iterations), "Arnold cat map rounds")
	encryptCmd.Flags().Int64Var(&encryptFlags.A, "acm-a", d.A, "Cat map coefficient a")
	encryptCmd.Flags().Int64Var(&encryptFlags.B, "acm-b", d.B, "Cat map coefficient b")
	encryptCmd.Flags().Float64Var(&encryptFlags.X0, "x0", d.X0, "Logistic map seed in (0, 1)")
	encryptCmd.Flags().Float64Var(&encryptFlags.R, "r", d.R, "Logistic map parameter, chaotic in [3.57, 4.0]")
	encryptCmd.Flags().StringVarP(&encryptFlags.Pass, "passphrase", "p", "", "Derive a, b, x0 and r from a passphrase instead")
	encryptCmd.Flags().StringVar(&encryptFlags.Salt, "salt", "", "Hex salt for --passphrase (default random)")
	encryptCmd.Flags().BoolVarP(&encryptFlags.Grayscale, "grayscale", "g", false, "Convert the image to grayscale first")
	encryptCmd.Flags().StringVarP(&encryptFlags.Codec, "codec", "c", "zlib", "Artifact compression: zlib or zstd")
	encryptCmd.Flags().IntVarP(&encryptFlags.Level, "level", "l", imgcrypt.DefaultCompressionLevel, "Compression level 1-9")
	encryptCmd.Flags().IntVar(&encryptFlags.MaxSide, "max-side", 0, "Downscale so the longer side is at most this many pixels")
	encryptCmd.Flags().IntVar(&encryptFlags.MinSide, "min-side", config.DefaultMinSide, "Pad the carrier to at least this side so the metadata fits")
	encryptCmd.Flags().BoolVar(&encryptFlags.Parity, "parity", false, "Also write a Reed-Solomon parity sidecar (<output>.par)")
}
