package main

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/Lllllllleong/pdftoolkit/internal/failure"
	"github.com/Lllllllleong/pdftoolkit/internal/models"
	"github.com/Lllllllleong/pdftoolkit/internal/services"
	"github.com/spf13/cobra"
)

// processFunc runs one operation request.
type processFunc func(ctx context.Context, req *models.OperationRequest) (*models.OperationResult, error)

type options struct {
	operation      string
	inputs         []string
	output         string
	pages          string
	angle          int
	userPassword   string
	ownerPassword  string
	password       string
	overlay        string
	overlayPage    int
	duplicateCount int
}

// newRootCommand builds the pdftool command. process is only called once
// flags parsed cleanly; the output path is written to stdout without a
// trailing newline.
func newRootCommand(stdout io.Writer, process processFunc) *cobra.Command {
	var opts options
	cmd := &cobra.Command{
		Use:   "pdftool --operation <op> --input <path>... --output <path> [flags]",
		Short: "pdftool performs page operations on PDF documents",
		Long: `pdftool performs structural page operations on PDF documents.

Operations: ` + strings.Join(services.Operations, ", ") + `

Pages are selected with a 1-indexed specification such as "1,3-5,8-" or "all".
Inputs, overlay and output may be local paths or gs://bucket/object URIs.`,
		Args:          cobra.ArbitraryArgs,
		SilenceErrors: true,
		SilenceUsage:  true,
		RunE: func(cmd *cobra.Command, args []string) error {
			req := opts.request(args)
			if cmd.Flags().Changed("angle") {
				angle := opts.angle
				req.Angle = &angle
			}
			res, err := process(cmd.Context(), req)
			if err != nil {
				return err
			}
			fmt.Fprint(stdout, res.Output)
			return nil
		},
	}

	f := cmd.Flags()
	f.StringVar(&opts.operation, "operation", "", "the PDF operation to perform ("+strings.Join(services.Operations, "|")+")")
	f.StringArrayVar(&opts.inputs, "input", nil, "input file; repeat the flag or list further inputs after it (only merge accepts more than one)")
	f.StringVar(&opts.output, "output", "", "output PDF or text file")
	f.StringVar(&opts.pages, "pages", "", `page specification, e.g. "1,3-5,all" (default "all" where applicable)`)
	f.IntVar(&opts.angle, "angle", 0, "rotation angle for rotate: 0, 90, 180 or 270")
	f.StringVar(&opts.userPassword, "user-password", "", "user password for encrypt")
	f.StringVar(&opts.ownerPassword, "owner-password", "", "owner password for encrypt (defaults to the user password)")
	f.StringVar(&opts.password, "password", "", "password for decrypt")
	f.StringVar(&opts.overlay, "overlay-pdf", "", "PDF or image to draw underneath pages for overlay")
	f.IntVar(&opts.overlayPage, "overlay-page-number", 1, "1-indexed page of the overlay source to use")
	f.IntVar(&opts.duplicateCount, "duplicate-count", 1, "number of additional copies for duplicate_pages")
	for _, name := range []string{"operation", "input", "output"} {
		_ = cmd.MarkFlagRequired(name)
	}

	cmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return failure.Wrap(failure.InvalidArgument, err, "Invalid arguments")
	})
	return cmd
}

func (o *options) request(args []string) *models.OperationRequest {
	overlayPage := o.overlayPage
	duplicateCount := o.duplicateCount
	return &models.OperationRequest{
		Operation:      o.operation,
		Inputs:         append(append([]string(nil), o.inputs...), args...),
		Output:         o.output,
		Pages:          o.pages,
		UserPassword:   o.userPassword,
		OwnerPassword:  o.ownerPassword,
		Password:       o.password,
		OverlaySource:  o.overlay,
		OverlayPage:    &overlayPage,
		DuplicateCount: &duplicateCount,
	}
}
