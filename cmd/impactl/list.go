package main

import (
	"fmt"
	"os"
	"strconv"

	"github.com/fatih/color"
	"github.com/impa/website/internal/content"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
)

var (
	listAll   bool
	listQuery string
)

var newsCmd = &cobra.Command{
	Use:   "news",
	Short: "List news items",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		store, closeStore, err := openStore(cmd.Context(), true)
		if err != nil {
			return err
		}
		defer closeStore()
		var items []content.NewsItem
		switch {
		case listQuery != "":
			items = store.SearchNews(listQuery, content.NewsFilter{Fuzzy: true})
		case listAll:
			items = store.AdminNews()
		default:
			items = store.AllNews()
		}
		renderNews(items)
		return nil
	},
}

var projectsCmd = &cobra.Command{
	Use:   "projects",
	Short: "List projects",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		store, closeStore, err := openStore(cmd.Context(), true)
		if err != nil {
			return err
		}
		defer closeStore()
		var items []content.ProjectItem
		if listQuery != "" {
			items = store.SearchProjects(listQuery, content.ProjectFilter{Fuzzy: true})
		} else {
			items = store.AdminProjects()
		}
		renderProjects(items)
		return nil
	},
}

func init() {
	newsCmd.Flags().BoolVarP(&listAll, "all", "a", false, "Include drafts")
	newsCmd.Flags().StringVarP(&listQuery, "query", "q", "", "Search title, summary and content")
	projectsCmd.Flags().StringVarP(&listQuery, "query", "q", "", "Search name and description")
	rootCmd.AddCommand(newsCmd, projectsCmd)
}

func renderNews(items []content.NewsItem) {
	if len(items) == 0 {
		fmt.Println("No news.")
		return
	}
	table := tablewriter.NewWriter(os.Stdout)
	table.SetAutoWrapText(false)
	table.SetHeader([]string{"ID", "Date", "Category", "Status", "Title"})
	for _, n := range items {
		row := []string{strconv.FormatInt(n.ID, 10), n.Date, n.Category, n.Status, truncate(n.Title, 60)}
		if n.Published() {
			table.Append(row)
		} else {
			table.Rich(row, []tablewriter.Colors{{}, {}, {}, {tablewriter.FgYellowColor}, {}})
		}
	}
	table.Render()
}

func renderProjects(items []content.ProjectItem) {
	if len(items) == 0 {
		fmt.Println("No projects.")
		return
	}
	table := tablewriter.NewWriter(os.Stdout)
	table.SetAutoWrapText(false)
	table.SetHeader([]string{"ID", "Start", "Type", "Status", "Progress", "Name"})
	for _, p := range items {
		progress := strconv.Itoa(p.Progress) + "%"
		if p.Progress == 100 {
			progress = color.New(color.FgGreen).Sprint(progress)
		}
		table.Append([]string{p.ID, p.StartDate, p.Type, p.Status, progress, truncate(p.Name, 60)})
	}
	table.Render()
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
