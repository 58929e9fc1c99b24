package main

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/impa/website/internal/content"
	"github.com/impa/website/internal/export"
	"github.com/mattn/go-isatty"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
	"golang.org/x/crypto/bcrypt"
)

var (
	exportOut  string
	exportXLSX bool
	resetYes   bool
)

var infoCmd = &cobra.Command{
	Use:   "info",
	Short: "Show storage usage",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		store, closeStore, err := openStore(cmd.Context(), true)
		if err != nil {
			return err
		}
		defer closeStore()
		info := store.Info()
		table := tablewriter.NewWriter(os.Stdout)
		table.SetAutoWrapText(false)
		table.SetHeader([]string{"", "News", "Projects", "Total"})
		table.Append([]string{"Items", strconv.Itoa(info.NewsCount), strconv.Itoa(info.ProjectsCount), strconv.Itoa(info.NewsCount + info.ProjectsCount)})
		table.Append([]string{"Size", info.NewsSize, info.ProjectsSize, info.TotalSize})
		table.Append([]string{"Average", info.AvgNewsSize, info.AvgProjectSize, ""})
		table.Render()
		fmt.Printf("Storage: %s, version %s\n", color.New(color.Bold).Sprint(info.StorageType), info.Version)
		return nil
	},
}

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Check storage and data integrity",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		store, closeStore, err := openStore(cmd.Context(), true)
		if err != nil {
			return err
		}
		defer closeStore()
		r := store.Health(cmd.Context())
		c := color.New(color.FgGreen, color.Bold)
		if r.Status != content.HealthHealthy {
			c = color.New(color.FgRed, color.Bold)
		}
		fmt.Printf("Status: %s\n", c.Sprint(r.Status))
		fmt.Printf("  Storage:   %s available=%t\n", r.Checks.Storage.Type, r.Checks.Storage.Available)
		fmt.Printf("  Integrity: valid=%t news=%d projects=%d\n", r.Checks.DataIntegrity.Valid, r.Checks.DataIntegrity.NewsCount, r.Checks.DataIntegrity.ProjectsCount)
		for _, issue := range r.Issues {
			fmt.Printf("  - %s\n", issue)
		}
		if r.Status != content.HealthHealthy {
			return errors.New("storage is not healthy")
		}
		return nil
	},
}

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export news and projects as JSON or a spreadsheet",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		store, closeStore, err := openStore(cmd.Context(), true)
		if err != nil {
			return err
		}
		defer closeStore()
		out := exportOut
		if out == "" {
			ext := "json"
			if exportXLSX {
				ext = "xlsx"
			}
			out = fmt.Sprintf("impa-data-%s.%s", time.Now().Format(time.DateOnly), ext)
		}
		var w io.Writer = os.Stdout
		if out != "-" {
			f, err := os.Create(out) //nolint:gosec // G304: path is given by the operator
			if err != nil {
				return err
			}
			defer func() { _ = f.Close() }()
			w = f
		}
		if exportXLSX {
			err = export.WriteXLSX(w, store.AdminNews(), store.AdminProjects())
		} else {
			var data []byte
			if data, err = store.Export(); err == nil {
				_, err = w.Write(data)
			}
		}
		if err != nil {
			return fmt.Errorf("failed to export: %w", err)
		}
		if out != "-" {
			fmt.Fprintf(os.Stderr, "Exported to %s\n", out)
		}
		return nil
	},
}

var importCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Replace all news and projects with an exported document",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var data []byte
		var err error
		if args[0] == "-" {
			data, err = io.ReadAll(os.Stdin)
		} else {
			data, err = os.ReadFile(args[0])
		}
		if err != nil {
			return err
		}
		if !json.Valid(data) {
			return fmt.Errorf("%s is not valid JSON", args[0])
		}
		store, closeStore, err := openStore(cmd.Context(), false)
		if err != nil {
			return err
		}
		defer closeStore()
		if err := store.Import(cmd.Context(), data); err != nil {
			return err
		}
		info := store.Info()
		fmt.Printf("Imported %d news items and %d projects\n", info.NewsCount, info.ProjectsCount)
		return nil
	},
}

var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Replace all content with the built-in defaults",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if !resetYes {
			if !isatty.IsTerminal(os.Stdin.Fd()) {
				return errors.New("refusing to reset without --yes")
			}
			fmt.Print("This deletes all news and projects. Type \"reset\" to continue: ")
			line, err := bufio.NewReader(os.Stdin).ReadString('\n')
			if err != nil {
				return err
			}
			if strings.TrimSpace(line) != "reset" {
				return errors.New("aborted")
			}
		}
		store, closeStore, err := openStore(cmd.Context(), false)
		if err != nil {
			return err
		}
		defer closeStore()
		if err := store.Reset(cmd.Context()); err != nil {
			return err
		}
		fmt.Println(color.New(color.FgGreen).Sprint("Content reset to defaults"))
		return nil
	},
}

var hashPasswordCmd = &cobra.Command{
	Use:   "hash-password",
	Short: "Read a password from stdin and print its bcrypt hash for admin.password_hash",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if isatty.IsTerminal(os.Stdin.Fd()) {
			fmt.Fprint(os.Stderr, "Password: ")
		}
		line, err := bufio.NewReader(os.Stdin).ReadString('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return err
		}
		pw := strings.TrimRight(line, "\r\n")
		if pw == "" {
			return errors.New("empty password")
		}
		hash, err := bcrypt.GenerateFromPassword([]byte(pw), bcrypt.DefaultCost)
		if err != nil {
			return err
		}
		fmt.Println(string(hash))
		return nil
	},
}

func init() {
	exportCmd.Flags().StringVarP(&exportOut, "output", "o", "", "Output file, - for stdout (default impa-data-DATE.json)")
	exportCmd.Flags().BoolVar(&exportXLSX, "xlsx", false, "Write an Excel workbook")
	resetCmd.Flags().BoolVarP(&resetYes, "yes", "y", false, "Do not ask for confirmation")
	rootCmd.AddCommand(infoCmd, healthCmd, exportCmd, importCmd, resetCmd, hashPasswordCmd)
}
