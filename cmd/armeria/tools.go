package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/erazemk/armeria/internal/api"
	"github.com/erazemk/armeria/internal/backup"
	"github.com/erazemk/armeria/internal/codicefiscale"
	"github.com/erazemk/armeria/internal/comuni"
	"github.com/erazemk/armeria/internal/db"
	"github.com/erazemk/armeria/internal/legacy"
	"github.com/erazemk/armeria/internal/report"
	"github.com/erazemk/armeria/internal/store"
)

func newMigrateCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending schema migrations",
		Args:  cobra.NoArgs,
		RunE: func(*cobra.Command, []string) error {
			database, err := a.openDB()
			if err != nil {
				return err
			}
			defer database.Close()

			version, dirty, err := db.SchemaVersion(database)
			if err != nil {
				return err
			}
			fmt.Printf("Schema version: %d", version)
			if dirty {
				fmt.Print(" (dirty)")
			}
			fmt.Println()
			return nil
		},
	}
}

func newImportComuniCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "import-comuni <file.csv>",
		Short: "Replace the municipality table with the ISTAT list",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			table, err := comuni.ParseFile(args[0])
			if err != nil {
				return err
			}
			database, err := a.openDB()
			if err != nil {
				return err
			}
			defer database.Close()

			n, err := store.ReplaceMunicipalities(cmd.Context(), database, table.Municipalities, table.Provinces)
			if err != nil {
				return err
			}
			fmt.Printf("Imported %d municipalities in %d provinces.\n", n, len(table.Provinces))
			return nil
		},
	}
}

func newImportLegacyCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "import-legacy <gestione_armi.db>",
		Short: "Import holders, weapons and movements from the old desktop registry",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if filepath.Clean(args[0]) == filepath.Clean(a.cfg.DBPath) {
				return errors.New("source and destination database are the same file")
			}
			src, err := db.OpenReadOnly(args[0])
			if err != nil {
				return err
			}
			defer src.Close()

			dst, err := a.openDB()
			if err != nil {
				return err
			}
			defer dst.Close()

			res, err := legacy.Import(cmd.Context(), src, dst)
			if err != nil {
				return err
			}
			fmt.Printf("Municipalities: %d\n", res.Municipalities)
			fmt.Printf("Holders:        %d\n", res.Holders)
			fmt.Printf("Weapons:        %d (%d removed)\n", res.Weapons, res.RemovedWeapons)
			fmt.Printf("Movements:      %d\n", res.Movements)
			if len(res.Skipped) > 0 {
				fmt.Printf("\nSkipped %d records:\n", len(res.Skipped))
				for _, s := range res.Skipped {
					fmt.Printf("  %s\n", s)
				}
			}
			return nil
		},
	}
}

func newFiscalCodeCmd(a *app) *cobra.Command {
	var p codicefiscale.Person
	var check string

	cmd := &cobra.Command{
		Use:   "cf",
		Short: "Compute or validate a fiscal code",
		Example: `  armeria cf --last-name Rossi --first-name Mario --sex M --birth-date 10/12/1985 --birth-place "San Giuliano Terme"
  armeria cf --check RSSMRA85T10A562S`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if check != "" {
				if err := codicefiscale.Validate(check); err != nil {
					return err
				}
				fmt.Println("valid")
				return nil
			}

			database, err := a.openDB()
			if err != nil {
				return err
			}
			defer database.Close()

			code, err := codicefiscale.Compute(cmd.Context(), store.CadastralLookup(database), p)
			if err != nil {
				return err
			}
			fmt.Println(code)
			return nil
		},
	}
	f := cmd.Flags()
	f.StringVar(&p.LastName, "last-name", "", "surname")
	f.StringVar(&p.FirstName, "first-name", "", "first name")
	f.StringVar(&p.Sex, "sex", "", "M or F")
	f.StringVar(&p.BirthDate, "birth-date", "", "birth date, dd/mm/yyyy")
	f.StringVar(&p.BirthPlace, "birth-place", "", "birth municipality")
	f.StringVar(&check, "check", "", "validate this code instead of computing one")
	cmd.MarkFlagsMutuallyExclusive("check", "last-name")
	return cmd
}

func newExportCmd(a *app) *cobra.Command {
	var out string

	cmd := &cobra.Command{
		Use:       "export <holders|weapons|movements>",
		Short:     "Write a registry table as CSV",
		Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		ValidArgs: []string{"holders", "weapons", "movements"},
		RunE: func(cmd *cobra.Command, args []string) error {
			database, err := a.openDB()
			if err != nil {
				return err
			}
			defer database.Close()

			return writeOutput(out, func(w io.Writer) error {
				return api.ExportCSV(cmd.Context(), database, args[0], w)
			})
		},
	}
	cmd.Flags().StringVarP(&out, "output", "o", "", "output file (default: stdout)")
	return cmd
}

func newDenunciaCmd(a *app) *cobra.Command {
	var format, out string

	cmd := &cobra.Command{
		Use:   "denuncia <holder-id>",
		Short: "Generate the weapons declaration of a holder",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid holder id %q", args[0])
			}

			render, ext := report.RenderDOCX, ".docx"
			switch format {
			case "docx":
			case "html":
				render, ext = report.RenderHTML, ".html"
			default:
				return fmt.Errorf("unknown format %q, expected docx or html", format)
			}

			database, err := a.openDB()
			if err != nil {
				return err
			}
			defer database.Close()

			ctx := cmd.Context()
			holder, err := store.GetHolder(ctx, database, id)
			if err != nil {
				return err
			}
			if holder == nil {
				return fmt.Errorf("holder %d not found", id)
			}
			d, err := api.BuildDenuncia(ctx, database, holder, a.cfg.Report.Station)
			if err != nil {
				return err
			}

			if out == "" {
				out = report.FileName(holder, time.Now(), ext)
			}
			if err := writeOutput(out, func(w io.Writer) error { return render(w, d) }); err != nil {
				return err
			}
			fmt.Printf("Declaration written: %s (%d weapons)\n", out, d.WeaponCount())
			return nil
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", "docx", "docx or html")
	cmd.Flags().StringVarP(&out, "output", "o", "", "output file (default: Denuncia_Armi_<name>_<date>)")
	return cmd
}

func newBackupCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "backup",
		Short: "Write a snapshot of the database to the backup directory",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			database, err := a.openDB()
			if err != nil {
				return err
			}
			defer database.Close()

			res, err := backup.Snapshot(cmd.Context(), database, a.cfg.Backup.Dir, a.cfg.Backup.Keep)
			if err != nil {
				return err
			}
			fmt.Printf("Backup written: %s (%s)\n", res.Path, res.HumanSize())
			for _, p := range res.Pruned {
				fmt.Printf("Removed old backup: %s\n", p)
			}
			return nil
		},
	}
}

// writeOutput runs write against path, or stdout when path is empty.
func writeOutput(path string, write func(io.Writer) error) error {
	if path == "" {
		return write(os.Stdout)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}
	if err := write(f); err != nil {
		f.Close()
		os.Remove(path)
		return err
	}
	return f.Close()
}
