package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/mdlincoln/magick-tile/internal/hasher"
	"github.com/mdlincoln/magick-tile/internal/manifest"
)

func newValidateCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "validate OUTPUT",
		Short: "Validate an info.json and check every file it implies exists",
		Args:  exactArgs(1),
		RunE: func(c *cobra.Command, args []string) error {
			return runValidate(c, root, args[0])
		},
	}
}

func runValidate(c *cobra.Command, root *rootOptions, path string) error {
	m, err := manifest.Read(path)
	if err != nil {
		return &ArgError{Err: err}
	}
	baseDir := path
	if info, err := os.Stat(path); err == nil && !info.IsDir() {
		baseDir = filepath.Dir(path)
	}

	errs := manifest.Check(m)
	files, err := manifest.ExpectedFiles(m, baseDir)
	if err != nil {
		errs = append(errs, err.Error())
	}
	rel := make([]string, 0, len(files))
	for _, f := range files {
		if _, err := os.Stat(f); err != nil {
			r, _ := filepath.Rel(baseDir, f)
			errs = append(errs, fmt.Sprintf("file not found: %s", filepath.ToSlash(r)))
			continue
		}
		r, err := filepath.Rel(baseDir, f)
		if err != nil {
			return err
		}
		rel = append(rel, filepath.ToSlash(r))
	}
	root.logVerbose("checked %d files under %s", len(files), baseDir)

	w := c.OutOrStdout()
	if len(errs) == 0 {
		fmt.Fprintln(w, "  ✓ info.json is valid")
		fmt.Fprintf(w, "  ✓ %d files present (fingerprint %s)\n", len(files), hasher.Fingerprint(rel, 16))
		return nil
	}

	fmt.Fprintf(w, "  ✗ %s has %d error(s):\n", manifest.FileName, len(errs))
	for _, e := range errs {
		fmt.Fprintf(w, "    • %s\n", e)
	}
	return fmt.Errorf("validation failed with %d errors", len(errs))
}
