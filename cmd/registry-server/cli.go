package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/ehr/registry/internal/barcode"
	"github.com/ehr/registry/internal/config"
	"github.com/ehr/registry/internal/domain/patient"
	"github.com/ehr/registry/internal/label"
	"github.com/ehr/registry/internal/phn"
	"github.com/ehr/registry/internal/platform/db"
	"github.com/ehr/registry/internal/printout"
)

func printStatus(w io.Writer, statuses []db.MigrationStatus) {
	fmt.Fprintf(w, "%-10s %-40s %-10s %s\n", "VERSION", "NAME", "STATUS", "APPLIED AT")
	fmt.Fprintf(w, "%-10s %-40s %-10s %s\n", "-------", "----", "------", "----------")
	for _, s := range statuses {
		status := "pending"
		appliedAt := ""
		if s.Applied {
			status = "applied"
			if s.AppliedAt != nil {
				appliedAt = s.AppliedAt.Format(time.RFC3339)
			}
		}
		fmt.Fprintf(w, "%-10d %-40s %-10s %s\n", s.Version, s.Name, status, appliedAt)
	}
}

func phnCmd() *cobra.Command {
	var nic, facility string

	cmd := &cobra.Command{
		Use:   "phn",
		Short: "Generate a personal health number",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := phn.ValidateFacility(facility); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), phn.NewGenerator(facility).Generate(strings.TrimSpace(nic)))
			return nil
		},
	}
	cmd.Flags().StringVar(&nic, "nic", "", "national identity card number; its last four characters become the suffix")
	cmd.Flags().StringVar(&facility, "facility-code", phn.DefaultFacilityCode, "numeric facility code")
	return cmd
}

// labelOptions carries the flags of the label command.
type labelOptions struct {
	PHN         string
	NIC         string
	FacilityID  string
	Facility    string
	Title       string
	Name        string
	Address     string
	Contact     string
	Out         string
	Format      string
	FontBold    string
	FontRegular string
}

func labelCmd() *cobra.Command {
	var opts labelOptions

	cmd := &cobra.Command{
		Use:   "label",
		Short: "Render a registration label without a database",
		RunE: func(cmd *cobra.Command, args []string) error {
			path, warnings, err := renderLabelFile(opts)
			for _, w := range warnings {
				fmt.Fprintln(cmd.ErrOrStderr(), "warning:", w)
			}
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), path)
			return nil
		},
	}

	f := cmd.Flags()
	f.StringVar(&opts.PHN, "phn", "", "PHN to encode; generated when empty")
	f.StringVar(&opts.NIC, "nic", "", "NIC used for a generated PHN")
	f.StringVar(&opts.FacilityID, "facility-code", phn.DefaultFacilityCode, "facility code used for a generated PHN")
	f.StringVar(&opts.Facility, "facility", label.DefaultFacility, "facility name printed at the top")
	f.StringVar(&opts.Title, "title", "", "patient title")
	f.StringVar(&opts.Name, "name", "", "patient full name")
	f.StringVar(&opts.Address, "address", "", "address line 1")
	f.StringVar(&opts.Contact, "contact", "", "contact numbers")
	f.StringVar(&opts.Out, "out", "", "output file (default derived from the PHN)")
	f.StringVar(&opts.Format, "format", "png", "output format: png, pdf or html")
	f.StringVar(&opts.FontBold, "font-bold", "", "TrueType file for bold text")
	f.StringVar(&opts.FontRegular, "font-regular", "", "TrueType file for regular text")
	return cmd
}

// renderLabelFile composes the label and writes it in the requested format.
// It returns the written path and any font or barcode substitutions.
func renderLabelFile(opts labelOptions) (string, []string, error) {
	format := strings.ToLower(opts.Format)
	if !validFormat(format) {
		return "", nil, fmt.Errorf("unknown format %q (want png, pdf or html)", opts.Format)
	}

	number := strings.TrimSpace(opts.PHN)
	if number == "" {
		if err := phn.ValidateFacility(opts.FacilityID); err != nil {
			return "", nil, err
		}
		number = phn.NewGenerator(opts.FacilityID).Generate(strings.TrimSpace(opts.NIC))
	}
	p := &patient.Patient{
		Title:          opts.Title,
		FullName:       opts.Name,
		AddressLine1:   opts.Address,
		ContactNumbers: opts.Contact,
		PHN:            number,
	}
	p.Normalize()

	comp := label.NewCompositor(
		label.WithFacility(opts.Facility),
		label.WithFontFiles(opts.FontBold, opts.FontRegular),
	)
	res, err := comp.Compose(p.LabelRecord())
	if err != nil {
		return "", nil, err
	}
	png, err := printout.EncodePNG(res.Image, barcode.DefaultDPI)
	if err != nil {
		return "", res.Warnings, err
	}

	path := opts.Out
	if path == "" {
		path = outputName(number, format)
	}
	f, err := os.Create(path)
	if err != nil {
		return "", res.Warnings, err
	}
	if err := writeLabel(f, format, number, png); err != nil {
		f.Close()
		return "", res.Warnings, err
	}
	return path, res.Warnings, f.Close()
}

func validFormat(format string) bool {
	switch format {
	case "png", "pdf", "html":
		return true
	}
	return false
}

// outputName swaps the extension of the PNG download name for format.
func outputName(number, format string) string {
	return strings.TrimSuffix(printout.FileName(number), ".png") + "." + format
}

func writeLabel(w io.Writer, format, number string, png []byte) error {
	switch format {
	case "png":
		_, err := w.Write(png)
		return err
	case "pdf":
		return printout.WritePDF(w, png, printout.LabelWidthMM, printout.LabelHeightMM)
	case "html":
		return printout.WritePrintHTML(w, number, png)
	}
	return fmt.Errorf("unknown format %q", format)
}

func tokenCmd() *cobra.Command {
	var (
		subject string
		roles   []string
		ttl     time.Duration
	)

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue a signed bearer token for the API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			jwtCfg, err := jwtConfig(cfg)
			if err != nil {
				return err
			}
			token, err := jwtCfg.IssueToken(subject, roles, ttl, time.Now())
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	cmd.Flags().StringVar(&subject, "sub", "", "token subject (user id)")
	cmd.Flags().StringSliceVar(&roles, "roles", []string{"registrar"}, "comma-separated roles")
	cmd.Flags().DurationVar(&ttl, "ttl", 8*time.Hour, "token lifetime")
	_ = cmd.MarkFlagRequired("sub")
	return cmd
}
