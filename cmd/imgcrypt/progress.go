package main

import (
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/schollz/progressbar/v3"

	"github.com/mintnchocochip/Image-Compression-and-Encryption-Pipeline/pkg/imgcrypt"
)

// barObserver advances a progress bar by one step per finished stage.
type barObserver struct {
	bar *progressbar.ProgressBar
}

func newBarObserver(icon string, stages []imgcrypt.Stage) *barObserver {
	bar := progressbar.NewOptions(
		len(stages),
		progressbar.OptionSetDescription(" "+icon+" Starting"),
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionSetWidth(15),
		progressbar.OptionThrottle(65*time.Millisecond),
		progressbar.OptionShowCount(),
		progressbar.OptionOnCompletion(func() {
			fmt.Fprint(os.Stderr, "\n")
		}),
		progressbar.OptionSetRenderBlankState(true),
	)
	return &barObserver{bar: bar}
}

func (b *barObserver) StageStarted(stage imgcrypt.Stage) {
	b.bar.Describe(fmt.Sprintf(" %-16s", stage))
}

func (b *barObserver) StageFinished(_ imgcrypt.Stage, _ time.Duration, err error) {
	if err != nil {
		b.bar.Exit()
		fmt.Fprint(os.Stderr, "\n")
		return
	}
	b.bar.Add(1)
}

// newPipeline builds a pipeline that draws a progress bar, or logs stage
// timings instead when --quiet or --verbose is set.
func newPipeline(codec imgcrypt.Codec, level int, icon string, stages []imgcrypt.Stage) *imgcrypt.Pipeline {
	var observers []imgcrypt.Observer
	if quiet || verbose {
		observers = append(observers, imgcrypt.LogObserver{Logger: log.Logger})
	}
	if !quiet {
		observers = append(observers, newBarObserver(icon, stages))
	}
	return imgcrypt.New(
		imgcrypt.WithCodec(codec, level),
		imgcrypt.WithLogger(log.Logger),
		imgcrypt.WithObserver(imgcrypt.Observers(observers...)),
	)
}
