// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes numeral tools for LLM integration via stdio transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/numeral/internal/chartservice"
)

// ChartFormatURI is the resource URI of the chart format contract.
const ChartFormatURI = "numeral://chart-format"

// Server wraps the MCP server with numeral tools.
type Server struct {
	mcp *server.MCPServer
	svc *chartservice.Service
}

// New creates a new MCP server with all numeral tools registered.
func New(svc *chartservice.Service, version string) *Server {
	s := &Server{svc: svc}

	s.mcp = server.NewMCPServer(
		"numeral",
		version,
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("analyze_progression",
		mcp.WithDescription("Label a chord progression with Roman numerals relative to a key. "+
			"Returns one label per chord, e.g. [\"ii\", \"V7\", \"I\"] for Dm7 G7 Cmaj7 in C."),
		mcp.WithArray("chords", mcp.Required(), mcp.WithStringItems(),
			mcp.Description("Chord symbols in order, e.g. [\"Dm7\", \"G7\", \"Cmaj7\"]")),
		mcp.WithString("key", mcp.Description("Tonic such as C, Bb or F# (default: server key)")),
		mcp.WithBoolean("functions", mcp.Description("Functional labels such as V7/ii (default true)")),
		mcp.WithBoolean("top", mcp.Description("Append the runner-up function in parentheses")),
	), s.analyzeProgression)

	s.mcp.AddTool(mcp.NewTool("explain_progression",
		mcp.WithDescription("Show every candidate function of every chord with its final weight, heaviest first."),
		mcp.WithArray("chords", mcp.Required(), mcp.WithStringItems(), mcp.Description("Chord symbols in order")),
		mcp.WithString("key", mcp.Description("Tonic (default: server key)")),
		mcp.WithBoolean("top", mcp.Description("Append the runner-up function to each chord label")),
	), s.explainProgression)

	s.mcp.AddTool(mcp.NewTool("read_chart",
		mcp.WithDescription("Read a chart and its bar-by-bar analysis."),
		mcp.WithString("path", mcp.Required(), mcp.Description("Relative path to the chart (e.g. standards/blues.chart)")),
	), s.readChart)

	s.mcp.AddTool(mcp.NewTool("list_charts",
		mcp.WithDescription("List charts in the library, optionally filtered by tag."),
		mcp.WithString("tag", mcp.Description("Optional tag filter")),
	), s.listCharts)

	s.mcp.AddTool(mcp.NewTool("search_charts",
		mcp.WithDescription("Full-text search through chart titles, composers, chords and tags."),
		mcp.WithString("query", mcp.Required(), mcp.Description("Search query string")),
	), s.searchCharts)

	s.mcp.AddTool(mcp.NewTool("create_chart",
		mcp.WithDescription("Create a new chart at the specified path. "+
			"Content MUST follow the chart format. Read it first via the get_chart_contract "+
			"tool or the "+ChartFormatURI+" resource."),
		mcp.WithString("path", mcp.Required(), mcp.Description("Relative path for the new chart (must end with .chart)")),
		mcp.WithString("content", mcp.Required(), mcp.Description("Chart content following the format contract")),
	), s.createChart)

	s.mcp.AddTool(mcp.NewTool("charts_in_key",
		mcp.WithDescription("Find charts whose analysis visits a local key, such as ii, IV or bVI."),
		mcp.WithString("key", mcp.Required(), mcp.Description("Local key as a Roman numeral")),
	), s.chartsInKey)

	s.mcp.AddTool(mcp.NewTool("get_chart_contract",
		mcp.WithDescription("Returns the chart format contract. "+
			"Call this before creating charts to ensure correct structure."),
	), s.getChartContract)

	s.mcp.AddResource(
		mcp.NewResource(ChartFormatURI, "Chart Format Contract",
			mcp.WithResourceDescription("Chart file format that all charts must follow."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readChartFormatResource,
	)

	return s
}

// ServeStdio starts the MCP server on stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

// MCPServer returns the underlying server for testing.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) analyzeProgression(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	chords, err := req.RequireStringSlice("chords")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	d := s.svc.Display()
	d.ShowFunctions = req.GetBool("functions", d.ShowFunctions)
	d.AllHarmonicFunctions = req.GetBool("top", d.AllHarmonicFunctions)

	labels, err := s.svc.Analyze(ctx, chords, req.GetString("key", ""), d)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(labels)
}

func (s *Server) explainProgression(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	chords, err := req.RequireStringSlice("chords")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	d := s.svc.Display()
	d.AllHarmonicFunctions = req.GetBool("top", d.AllHarmonicFunctions)
	reports, err := s.svc.Explain(ctx, chords, req.GetString("key", ""), d)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(reports)
}

func (s *Server) readChart(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := req.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	c, err := s.svc.GetChart(ctx, path)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("not found: %s", path)), nil
	}

	var b strings.Builder
	b.WriteString(c.Content)
	if !strings.HasSuffix(c.Content, "\n") {
		b.WriteByte('\n')
	}
	res, err := s.svc.AnalyzeChart(ctx, path, s.svc.Display())
	if err != nil {
		fmt.Fprintf(&b, "\nanalysis unavailable: %v\n", err)
	} else {
		fmt.Fprintf(&b, "\nanalysis in %s:\n%s", res.Key, res.Bars)
	}
	return mcp.NewToolResultText(b.String()), nil
}

func (s *Server) listCharts(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	items, _, err := s.svc.ListCharts(ctx, 500, 0, req.GetString("tag", ""), "path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	lines := make([]string, len(items))
	for i, it := range items {
		lines[i] = fmt.Sprintf("%s\t%s\t%s", it.Path, it.Key, it.Title)
	}
	return mcp.NewToolResultText(strings.Join(lines, "\n")), nil
}

func (s *Server) searchCharts(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := req.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	results, err := s.svc.Search(ctx, query, 20)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(results)
}

func (s *Server) createChart(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := req.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	content, err := req.RequireString("content")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	c, err := s.svc.CreateChart(ctx, path, []byte(content))
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("create %s: %v", path, err)), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("created: %s (%d bars in %s)", c.Path, c.Bars, c.Key)), nil
}

func (s *Server) chartsInKey(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	key, err := req.RequireString("key")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	paths, err := s.svc.ChartsInKey(ctx, key)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if len(paths) == 0 {
		return mcp.NewToolResultText("no charts visit "+key), nil
	}
	return mcp.NewToolResultText(strings.Join(paths, "\n")), nil
}

func (s *Server) getChartContract(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(ChartFormatContract), nil
}

func (s *Server) readChartFormatResource(_ context.Context, _ mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      ChartFormatURI,
			MIMEType: "text/markdown",
			Text:     ChartFormatContract,
		},
	}, nil
}
