// Package mcp exposes the published content as read-only Model Context
// Protocol tools.
package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/impa/website/internal/content"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// Reader is the part of the content store the tools use.
type Reader interface {
	AllNews() []content.NewsItem
	NewsByID(id int64) (content.NewsItem, error)
	SearchNews(query string, f content.NewsFilter) []content.NewsItem
	AllProjects() []content.ProjectItem
	ProjectByID(id string) (content.ProjectItem, error)
	SearchProjects(query string, f content.ProjectFilter) []content.ProjectItem
}

// NewServer returns an MCP server over r.
func NewServer(r Reader, version string) *server.MCPServer {
	s := server.NewMCPServer("IMPA", version, server.WithToolCapabilities(false))

	s.AddTool(
		mcp.NewTool("list_news",
			mcp.WithDescription("List published news articles, newest first."),
			mcp.WithNumber("limit", mcp.Description("Maximum number of articles (default 20)")),
		),
		handleListNews(r),
	)
	s.AddTool(
		mcp.NewTool("get_news",
			mcp.WithDescription("Get one published news article by its numeric ID."),
			mcp.WithString("id", mcp.Required(), mcp.Description("News ID")),
		),
		handleGetNews(r),
	)
	s.AddTool(
		mcp.NewTool("search_news",
			mcp.WithDescription("Search published news by title, summary, content or category, with optional filters."),
			mcp.WithString("query", mcp.Description("Text to search; empty matches everything")),
			mcp.WithString("category", mcp.Description("Only this category")),
			mcp.WithString("dateFrom", mcp.Description("Earliest date, YYYY-MM-DD")),
			mcp.WithString("dateTo", mcp.Description("Latest date, YYYY-MM-DD")),
			mcp.WithBoolean("fuzzy", mcp.Description("Match the query as a fuzzy subsequence")),
		),
		handleSearchNews(r),
	)
	s.AddTool(
		mcp.NewTool("list_projects",
			mcp.WithDescription("List the authority's projects with their status and progress."),
		),
		handleListProjects(r),
	)
	s.AddTool(
		mcp.NewTool("get_project",
			mcp.WithDescription("Get one project by its ID, e.g. PRJ-001."),
			mcp.WithString("id", mcp.Required(), mcp.Description("Project ID")),
		),
		handleGetProject(r),
	)
	s.AddTool(
		mcp.NewTool("search_projects",
			mcp.WithDescription("Search projects by name, description, type or status, with optional filters."),
			mcp.WithString("query", mcp.Description("Text to search; empty matches everything")),
			mcp.WithString("status", mcp.Description("Only this status")),
			mcp.WithString("type", mcp.Description("Only this type")),
			mcp.WithNumber("minProgress", mcp.Description("Minimum progress, 0 to 100")),
			mcp.WithNumber("maxProgress", mcp.Description("Maximum progress, 0 to 100")),
			mcp.WithBoolean("fuzzy", mcp.Description("Match the query as a fuzzy subsequence")),
		),
		handleSearchProjects(r),
	)
	return s
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, err
	}
	return mcp.NewToolResultText(string(data)), nil
}

func handleListNews(r Reader) server.ToolHandlerFunc {
	return func(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		items := r.AllNews()
		if limit := req.GetInt("limit", 20); limit > 0 && len(items) > limit {
			items = items[:limit]
		}
		return jsonResult(items)
	}
}

func handleGetNews(r Reader) server.ToolHandlerFunc {
	return func(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		raw, err := req.RequireString("id")
		if err != nil {
			return mcp.NewToolResultError("id is required"), nil
		}
		id, err := content.ParseNewsID(raw)
		if err != nil {
			return mcp.NewToolResultError("news item not found"), nil
		}
		item, err := r.NewsByID(id)
		if errors.Is(err, content.ErrNotFound) || (err == nil && !item.Published()) {
			return mcp.NewToolResultError("news item not found"), nil
		}
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to get news: %v", err)), nil
		}
		return jsonResult(item)
	}
}

func handleSearchNews(r Reader) server.ToolHandlerFunc {
	return func(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		items := r.SearchNews(req.GetString("query", ""), content.NewsFilter{
			Category: req.GetString("category", ""),
			DateFrom: req.GetString("dateFrom", ""),
			DateTo:   req.GetString("dateTo", ""),
			Fuzzy:    req.GetBool("fuzzy", false),
		})
		return jsonResult(items)
	}
}

func handleListProjects(r Reader) server.ToolHandlerFunc {
	return func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return jsonResult(r.AllProjects())
	}
}

func handleGetProject(r Reader) server.ToolHandlerFunc {
	return func(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		id, err := req.RequireString("id")
		if err != nil {
			return mcp.NewToolResultError("id is required"), nil
		}
		p, err := r.ProjectByID(id)
		if errors.Is(err, content.ErrNotFound) {
			return mcp.NewToolResultError("project not found"), nil
		}
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to get project: %v", err)), nil
		}
		return jsonResult(p)
	}
}

func handleSearchProjects(r Reader) server.ToolHandlerFunc {
	return func(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		f := content.ProjectFilter{
			Status: req.GetString("status", ""),
			Type:   req.GetString("type", ""),
			Fuzzy:  req.GetBool("fuzzy", false),
		}
		if v := req.GetInt("minProgress", -1); v >= 0 {
			f.MinProgress = &v
		}
		if v := req.GetInt("maxProgress", -1); v >= 0 {
			f.MaxProgress = &v
		}
		return jsonResult(r.SearchProjects(req.GetString("query", ""), f))
	}
}

// Handler serves the tools over streamable HTTP.
func Handler(s *server.MCPServer) *server.StreamableHTTPServer {
	return server.NewStreamableHTTPServer(s, server.WithStateLess(true))
}
