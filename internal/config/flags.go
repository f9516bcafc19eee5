package config

// This file binds Config to a pflag set and layers a config file and
// REELCAT_* environment variables underneath it with viper. Every flag name
// doubles as a config file key ("frame-rate: 25") and an environment
// variable (REELCAT_FRAME_RATE=25). Precedence: flags > env > file > defaults.

import (
	"errors"
	"fmt"
	"strings"

	"github.com/adrg/xdg"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Version is shown by --version; override at build time with
// -ldflags "-X github.com/backmassage/reelcat/internal/config.Version=...".
var Version = "0.1.0-dev"

const envPrefix = "REELCAT"

// configName is looked up under each XDG config directory.
const configName = "reelcat/config.yaml"

// BindFlags registers every setting on fs, using cfg's current values as
// the defaults. Parsed values are written straight into cfg.
func BindFlags(fs *pflag.FlagSet, cfg *Config) {
	defineOutputFlags(fs, cfg)
	defineVideoFlags(fs, cfg)
	defineAudioFlags(fs, cfg)
	defineDisplayFlags(fs, cfg)
}

// defineOutputFlags registers -o/--output, --config, --metadata, probing and --dry-run.
func defineOutputFlags(fs *pflag.FlagSet, cfg *Config) {
	fs.StringVarP(&cfg.Output, "output", "o", cfg.Output, "Output movie path (container from extension)")
	fs.StringVar(&cfg.ConfigFile, "config", cfg.ConfigFile, "Config file (default $XDG_CONFIG_HOME/"+configName+")")
	fs.StringSliceVarP(&cfg.Metadata, "metadata", "M", cfg.Metadata, "Container metadata key=value (repeatable)")
	fs.IntVar(&cfg.ProbeConcurrency, "probe-concurrency", cfg.ProbeConcurrency, "Maximum concurrent ffprobe processes")
	fs.StringVar(&cfg.FFprobePath, "ffprobe", cfg.FFprobePath, "ffprobe binary")
	fs.BoolVarP(&cfg.DryRun, "dry-run", "d", cfg.DryRun, "Probe and print the plan; write nothing")
}

// defineVideoFlags registers the target video format and encoder settings.
func defineVideoFlags(fs *pflag.FlagSet, cfg *Config) {
	fs.IntVar(&cfg.Width, "width", cfg.Width, "Output width (default: first source)")
	fs.IntVar(&cfg.Height, "height", cfg.Height, "Output height (default: first source)")
	fs.StringVar(&cfg.PixelFormat, "pix-fmt", cfg.PixelFormat, "Output pixel format")
	fs.StringVarP(&cfg.FrameRate, "frame-rate", "r", cfg.FrameRate, "Output frame rate, e.g. 25 or 30000/1001 (default: first source)")
	fs.StringVar(&cfg.VideoCodec, "video-codec", cfg.VideoCodec, "Video encoder")
	fs.StringSliceVar(&cfg.VideoOptions, "video-opt", cfg.VideoOptions, "Video encoder option key=value (repeatable)")
	fs.IntVarP(&cfg.GOPSize, "gop", "g", cfg.GOPSize, "Keyframe interval in frames (0: encoder default)")
	fs.IntVar(&cfg.DecoderThreads, "decoder-threads", cfg.DecoderThreads, "Decoder threads per source (0: auto)")
}

// defineAudioFlags registers the target audio format and encoder settings.
func defineAudioFlags(fs *pflag.FlagSet, cfg *Config) {
	fs.IntVar(&cfg.AudioSampleRate, "sample-rate", cfg.AudioSampleRate, "Output sample rate (default: first source with audio)")
	fs.StringVar(&cfg.AudioLayout, "channel-layout", cfg.AudioLayout, "Output channel layout, e.g. stereo or 5.1")
	fs.StringVar(&cfg.AudioSampleFormat, "sample-fmt", cfg.AudioSampleFormat, "Output sample format, e.g. fltp or s16")
	fs.StringVar(&cfg.AudioCodec, "audio-codec", cfg.AudioCodec, "Audio encoder")
	fs.StringVarP(&cfg.AudioBitrate, "audio-bitrate", "b", cfg.AudioBitrate, "Audio bitrate in Kbps, e.g. 192k")
	fs.StringSliceVar(&cfg.AudioOptions, "audio-opt", cfg.AudioOptions, "Audio encoder option key=value (repeatable)")
	fs.IntVar(&cfg.AudioChunkSize, "audio-chunk", cfg.AudioChunkSize, "Samples per audio frame sent to the encoder")
}

// defineDisplayFlags registers --color, --no-color, verbose, --check, --log.
func defineDisplayFlags(fs *pflag.FlagSet, cfg *Config) {
	fs.Var(&colorModeValue{&cfg.ColorMode}, "color", "Colored logs: auto | always | never")
	fs.Bool("no-color", false, "Same as --color=never")
	fs.BoolVarP(&cfg.Verbose, "verbose", "v", cfg.Verbose, "Verbose output")
	fs.BoolVarP(&cfg.CheckOnly, "check", "c", cfg.CheckOnly, "Run system diagnostics and exit")
	fs.StringVarP(&cfg.LogFile, "log", "l", cfg.LogFile, "Append logs to file")
	fs.Var(&logFormatValue{&cfg.LogFormat}, "log-format", "Log file format: text | json")
}

// Load fills the settings that were not given on the command line from the
// environment and the config file, then takes the inputs from args. fs must
// already be parsed.
func Load(fs *pflag.FlagSet, cfg *Config, args []string) error {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	if err := v.BindPFlags(fs); err != nil {
		return err
	}
	if err := readConfigFile(v, v.GetString("config")); err != nil {
		return err
	}

	var errs []error
	fs.VisitAll(func(f *pflag.Flag) {
		if f.Changed || f.Name == "config" || !v.IsSet(f.Name) {
			return
		}
		if err := setFromViper(f, v); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", f.Name, err))
		}
	})
	if err := errors.Join(errs...); err != nil {
		return err
	}

	if noColor, _ := fs.GetBool("no-color"); noColor {
		cfg.ColorMode = ColorNever
	}

	cfg.Inputs = cfg.Inputs[:0]
	for _, a := range args {
		cfg.Inputs = append(cfg.Inputs, NormalizeDirArg(a))
	}
	return nil
}

// readConfigFile loads path, or the first reelcat/config.yaml found in the
// XDG config directories when path is empty. A missing default file is not
// an error.
func readConfigFile(v *viper.Viper, path string) error {
	if path == "" {
		found, err := xdg.SearchConfigFile(configName)
		if err != nil {
			return nil
		}
		path = found
	}
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}
	return nil
}

func setFromViper(f *pflag.Flag, v *viper.Viper) error {
	if sv, ok := f.Value.(pflag.SliceValue); ok {
		return sv.Replace(v.GetStringSlice(f.Name))
	}
	return f.Value.Set(v.GetString(f.Name))
}

// pflag.Value adapters so we can use enum types (ColorMode, LogFormat) with fs.Var.

type colorModeValue struct{ p *ColorMode }

func (c *colorModeValue) String() string { return string(*c.p) }
func (c *colorModeValue) Type() string   { return "mode" }
func (c *colorModeValue) Set(s string) error {
	switch ColorMode(strings.ToLower(s)) {
	case ColorAuto:
		*c.p = ColorAuto
	case ColorAlways:
		*c.p = ColorAlways
	case ColorNever:
		*c.p = ColorNever
	default:
		return fmt.Errorf("invalid color mode %q (use 'auto', 'always' or 'never')", s)
	}
	return nil
}

type logFormatValue struct{ p *LogFormat }

func (l *logFormatValue) String() string { return string(*l.p) }
func (l *logFormatValue) Type() string   { return "format" }
func (l *logFormatValue) Set(s string) error {
	switch LogFormat(strings.ToLower(s)) {
	case LogText:
		*l.p = LogText
	case LogJSON:
		*l.p = LogJSON
	default:
		return fmt.Errorf("invalid log format %q (use 'text' or 'json')", s)
	}
	return nil
}
