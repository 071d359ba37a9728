package imgcrypt

import (
	"time"

	"github.com/rs/zerolog"
)

// Stage names a step of the encryption or decryption state machine.
type Stage int

const (
	StageNone Stage = iota

	// Encryption.
	StagePreprocessed
	StagePermute
	StageSubstitute
	StageStreamCipher
	StageEmbed
	StageCompress
	StageHash

	// Decryption.
	StageLoad
	StageVerifyIntegrity
	StageDecompress
	StageResolveShape
	StageExtract
	StageRestore
	StageStreamDecrypt
	StageUnsubstitute
	StageUnpermute
	StageUnpad
)

var stageNames = map[Stage]string{
	StageNone:            "none",
	StagePreprocessed:    "preprocess",
	StagePermute:         "permute",
	StageSubstitute:      "substitute",
	StageStreamCipher:    "stream cipher",
	StageEmbed:           "embed metadata",
	StageCompress:        "compress",
	StageHash:            "hash",
	StageLoad:            "load",
	StageVerifyIntegrity: "verify integrity",
	StageDecompress:      "decompress",
	StageResolveShape:    "resolve shape",
	StageExtract:         "extract metadata",
	StageRestore:         "restore carrier",
	StageStreamDecrypt:   "stream decrypt",
	StageUnsubstitute:    "unsubstitute",
	StageUnpermute:       "unpermute",
	StageUnpad:           "unpad",
}

func (s Stage) String() string {
	if name, ok := stageNames[s]; ok {
		return name
	}
	return "unknown"
}

// EncryptStages and DecryptStages list the stages each run reports, in order.
var (
	EncryptStages = []Stage{StagePreprocessed, StagePermute, StageSubstitute, StageStreamCipher, StageEmbed, StageCompress, StageHash}
	DecryptStages = []Stage{StageLoad, StageVerifyIntegrity, StageDecompress, StageResolveShape, StageExtract, StageRestore, StageStreamDecrypt, StageUnsubstitute, StageUnpermute, StageUnpad}
)

// Observer is told when each stage of a run starts and finishes. It replaces
// console progress output so the pipeline can run headless.
type Observer interface {
	StageStarted(stage Stage)
	StageFinished(stage Stage, elapsed time.Duration, err error)
}

// NopObserver ignores every event.
type NopObserver struct{}

func (NopObserver) StageStarted(Stage)                        {}
func (NopObserver) StageFinished(Stage, time.Duration, error) {}

// LogObserver reports stage timings through a zerolog logger.
type LogObserver struct {
	Logger zerolog.Logger
}

func (o LogObserver) StageStarted(stage Stage) {
	o.Logger.Debug().Str("stage", stage.String()).Msg("Stage started")
}

func (o LogObserver) StageFinished(stage Stage, elapsed time.Duration, err error) {
	if err != nil {
		o.Logger.Error().Err(err).Str("stage", stage.String()).Dur("elapsed", elapsed).Msg("Stage failed")
		return
	}
	o.Logger.Info().Str("stage", stage.String()).Dur("elapsed", elapsed).Msg("Stage complete")
}

// multiObserver fans events out to several observers.
type multiObserver []Observer

func (m multiObserver) StageStarted(stage Stage) {
	for _, o := range m {
		o.StageStarted(stage)
	}
}

func (m multiObserver) StageFinished(stage Stage, elapsed time.Duration, err error) {
	for _, o := range m {
		o.StageFinished(stage, elapsed, err)
	}
}

// Observers combines observers into one.
func Observers(obs ...Observer) Observer {
	return multiObserver(obs)
}
