// Package config resolves pipeline defaults from environment variables and an
// optional config file.
package config

import (
	"flag"
	"fmt"

	"github.com/peterbourgon/ff/v3"

	"github.com/mintnchocochip/Image-Compression-and-Encryption-Pipeline/pkg/imgcrypt"
)

// EnvPrefix is prepended to every environment variable, e.g. IMGCRYPT_ACM_ITERATIONS.
const EnvPrefix = "IMGCRYPT"

// DefaultMinSide is the smallest carrier side that holds the embedded
// metadata for a grayscale image.
const DefaultMinSide = 64

type Config struct {
	Iterations   uint
	A            int64
	B            int64
	X0           float64
	R            float64
	Codec        string
	Level        int
	ParityData   int
	ParityShards int
	MinSide      int
}

// Default returns the built-in configuration.
func Default() *Config {
	p := imgcrypt.DefaultParams()
	return &Config{
		Iterations:   uint(p.Iterations),
		A:            p.A,
		B:            p.B,
		X0:           p.X0,
		R:            p.R,
		Codec:        imgcrypt.CodecZlib.String(),
		Level:        imgcrypt.DefaultCompressionLevel,
		ParityData:   imgcrypt.DefaultParityDataShards,
		ParityShards: imgcrypt.DefaultParityShards,
		MinSide:      DefaultMinSide,
	}
}

func (c *Config) flagSet() *flag.FlagSet {
	fs := flag.NewFlagSet("imgcrypt", flag.ContinueOnError)
	fs.UintVar(&c.Iterations, "acm-iterations", c.Iterations, "Arnold cat map rounds")
	fs.Int64Var(&c.A, "acm-a", c.A, "cat map coefficient a")
	fs.Int64Var(&c.B, "acm-b", c.B, "cat map coefficient b")
	fs.Float64Var(&c.X0, "logistic-x0", c.X0, "logistic map seed")
	fs.Float64Var(&c.R, "logistic-r", c.R, "logistic map parameter")
	fs.StringVar(&c.Codec, "codec", c.Codec, "artifact compression codec (zlib or zstd)")
	fs.IntVar(&c.Level, "level", c.Level, "compression level 1-9")
	fs.IntVar(&c.ParityData, "parity-data", c.ParityData, "Reed-Solomon data shards")
	fs.IntVar(&c.ParityShards, "parity-shards", c.ParityShards, "Reed-Solomon parity shards")
	fs.IntVar(&c.MinSide, "min-side", c.MinSide, "smallest carrier side in pixels")
	return fs
}

// Load starts from Default and applies, in increasing priority, the plain
// config file at path ("key value" per line, keys named like the flags) and
// IMGCRYPT_* environment variables. An empty or missing path is not an error.
func Load(path string) (*Config, error) {
	c := Default()
	fs := c.flagSet()

	opts := []ff.Option{ff.WithEnvVarPrefix(EnvPrefix)}
	if path != "" {
		opts = append(opts,
			ff.WithConfigFile(path),
			ff.WithConfigFileParser(ff.PlainParser),
			ff.WithAllowMissingConfigFile(true),
		)
	}
	if err := ff.Parse(fs, nil, opts...); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// Validate checks ranges that the flag types cannot express.
func (c *Config) Validate() error {
	if _, err := imgcrypt.ParseCodec(c.Codec); err != nil {
		return err
	}
	if c.Level < 1 || c.Level > 9 {
		return fmt.Errorf("compression level %d out of range 1-9", c.Level)
	}
	if c.Iterations > 1<<32-1 {
		return fmt.Errorf("acm iterations %d exceed 32 bits", c.Iterations)
	}
	if c.ParityData < 1 || c.ParityShards < 1 {
		return fmt.Errorf("parity shard counts must be positive (got %d+%d)", c.ParityData, c.ParityShards)
	}
	if c.ParityData+c.ParityShards > 255 {
		return fmt.Errorf("data and parity shards must be less than 255 in total (got %d)", c.ParityData+c.ParityShards)
	}
	if c.MinSide < 0 {
		return fmt.Errorf("min side %d cannot be negative", c.MinSide)
	}
	return nil
}

// Params returns the cipher parameters.
func (c *Config) Params() imgcrypt.Params {
	return imgcrypt.Params{
		Iterations: uint32(c.Iterations),
		A:          c.A,
		B:          c.B,
		X0:         c.X0,
		R:          c.R,
	}
}

// CodecValue returns the parsed codec. Call Validate first.
func (c *Config) CodecValue() imgcrypt.Codec {
	codec, _ := imgcrypt.ParseCodec(c.Codec)
	return codec
}
