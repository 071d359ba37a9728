package main

import (
	"fmt"
	"image"
	"os"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/mintnchocochip/Image-Compression-and-Encryption-Pipeline/pkg/imgcrypt"
	"github.com/mintnchocochip/Image-Compression-and-Encryption-Pipeline/pkg/imgprep"
)

var capacityFlags struct {
	MaxSide int
}

var capacityCmd = &cobra.Command{
	Use:   "capacity [image-path]",
	Short: "Show the carrier each color mode would produce and whether the metadata fits",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		img, _, err := imgprep.Load(args[0])
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to load image")
		}

		pipeline := imgcrypt.New()
		params := cfg.Params()

		wtr := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(wtr, "Mode\tMin Side\tCarrier\tCapacity (Bits)\tCapacity\tMetadata (Bits)\tFits")
		fmt.Fprintln(wtr, "----\t--------\t-------\t---------------\t--------\t---------------\t----")

		minSides := []int{0}
		if cfg.MinSide > 0 {
			minSides = append(minSides, cfg.MinSide)
		}
		for _, gray := range []bool{false, true} {
			for _, minSide := range minSides {
				printCap(wtr, pipeline, params, img, imgprep.Options{Grayscale: gray, MaxSide: capacityFlags.MaxSide, MinSide: minSide})
			}
		}
		wtr.Flush()
	},
}

func printCap(wtr *tabwriter.Writer, pipeline *imgcrypt.Pipeline, params imgcrypt.Params, img image.Image, opts imgprep.Options) {
	mode := "rgb"
	if opts.Grayscale {
		mode = "grayscale"
	}
	prep, err := imgprep.Prepare(img, opts)
	if err != nil {
		fmt.Fprintf(wtr, "%s\t%d\t-\t-\t-\t-\t%v\n", mode, opts.MinSide, err)
		return
	}
	need, err := pipeline.RequiredCapacity(prep, params)
	if err != nil {
		fmt.Fprintf(wtr, "%s\t%d\t%s\t-\t-\t-\t%v\n", mode, opts.MinSide, prep.Buffer.Shape(), err)
		return
	}
	bits := imgcrypt.Capacity(prep.Buffer.Shape())
	fmt.Fprintf(wtr, "%s\t%d\t%s\t%d\t%s\t%d\t%t\n",
		mode, opts.MinSide, prep.Buffer.Shape(), bits, humanize.Bytes(uint64(bits/8)), need, need <= bits)
}

func init() {
	rootCmd.AddCommand(capacityCmd)

	capacityCmd.Flags().IntVar(&capacityFlags.MaxSide, "max-side", 0, "Downscale so the longer side is at most this many pixels")
}
