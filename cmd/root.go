package cmd

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"runtime"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var version = "0.1.0"

// rootOptions holds the persistent flags shared by every subcommand.
type rootOptions struct {
	verbose bool
	envFile string
	stderr  io.Writer
}

// Execute runs the command line with os.Args.
func Execute() error {
	return NewRootCmd().Execute()
}

// NewRootCmd builds the command tree. Each call returns fresh flag state.
func NewRootCmd() *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:   "magick-tile",
		Short: "Static IIIF Level-0 tile pyramids from a single image",
		Long: `magick-tile cuts one source image into the directory layout of a
IIIF Image API 3.0 Level-0 service: tiles at every power-of-two scale factor,
reduced full-image versions, and the info.json that describes them.

The pixel work is done by ImageMagick (convert/identify or magick), or by the
built-in engine with --engine native. Serve the output directory from any
static file host.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(c *cobra.Command, _ []string) error {
			opts.stderr = c.ErrOrStderr()
			return opts.loadEnv()
		},
	}
	root.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "verbose output")
	root.PersistentFlags().StringVar(&opts.envFile, "env-file", ".env", "dotenv file with MAGICK_TILE_* settings (skipped if missing)")
	root.SetVersionTemplate(fmt.Sprintf(
		"magick-tile %s (%s/%s, %s)\n",
		version, runtime.GOOS, runtime.GOARCH, runtime.Version(),
	))
	root.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return &ArgError{Err: err}
	})

	root.AddCommand(
		newConvertCmd(opts),
		newValidateCmd(opts),
		newStatsCmd(opts),
	)
	return root
}

// loadEnv reads the dotenv file. Variables already set in the environment
// win over the file.
func (o *rootOptions) loadEnv() error {
	if o.envFile == "" {
		return nil
	}
	if err := godotenv.Load(o.envFile); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return &ArgError{Err: fmt.Errorf("env file %s: %w", o.envFile, err)}
	}
	o.logVerbose("loaded %s", o.envFile)
	return nil
}

// logVerbose prints a message only when --verbose is set.
func (o *rootOptions) logVerbose(format string, args ...any) {
	if o.verbose && o.stderr != nil {
		fmt.Fprintf(o.stderr, "[magick-tile] "+format+"\n", args...)
	}
}
