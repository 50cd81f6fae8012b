package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/couchcryptid/spaceapi-explorer/internal/domain"
)

// fileCheck tracks pass/fail for one validated document.
type fileCheck struct {
	path   string
	status domain.SpaceStatus
	err    error
}

func (f fileCheck) passed() bool { return f.err == nil }

// detail describes why a check failed, naming the offending field when there is one.
func (f fileCheck) detail() string {
	var verr *domain.ValidationError
	if errors.As(f.err, &verr) {
		return fmt.Sprintf("%s: %s", verr.Field, verr.Reason)
	}
	return f.err.Error()
}

func newCmdValidate(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "validate FILE...",
		Short: "Normalize local status documents and report which ones are valid",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			pass := color.New(color.FgGreen).Sprint("PASS")
			fail := color.New(color.FgRed).Sprint("FAIL")

			checks := make([]fileCheck, 0, len(args))
			for _, path := range args {
				c := fileCheck{path: path}
				raw, err := os.ReadFile(path)
				if err != nil {
					c.err = fmt.Errorf("read file: %w", err)
				} else {
					c.status, c.err = domain.ParseStatus(raw)
				}
				checks = append(checks, c)
			}

			failed := 0
			for _, c := range checks {
				if c.passed() {
					fmt.Fprintf(out, "  %s  %s (%s, schema %s)\n", pass, c.path, c.status.Space, c.status.Version)
					continue
				}
				failed++
				a.logger.Debug("validation failed", "path", c.path, "error", c.err)
				fmt.Fprintf(out, "  %s  %s: %s\n", fail, c.path, c.detail())
			}

			if failed > 0 {
				return fmt.Errorf("%d of %d files failed validation", failed, len(checks))
			}
			fmt.Fprintf(out, "\nAll %d files passed.\n", len(checks))
			return nil
		},
	}
}
