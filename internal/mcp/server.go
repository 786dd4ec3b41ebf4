// Package mcp exposes analysis runs, progress and reports as MCP tools over
// stdio.
package mcp

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/rs/zerolog/log"

	"analisis-mcp/internal/analysis"
	"analisis-mcp/internal/progress"
	"analisis-mcp/internal/report"
)

// Analyzer is the part of analysis.Pipeline the tools drive.
type Analyzer interface {
	AnalyzeProject(ctx context.Context, projectID int64, mode string) (*analysis.Run, error)
	Prepare(ctx context.Context, projectID int64, mode string) (*analysis.Job, error)
	Execute(ctx context.Context, job *analysis.Job) (*analysis.Run, error)
}

// Deps are the collaborators behind the tools.
type Deps struct {
	Analyzer    Analyzer
	Progress    progress.Store
	Reports     *report.Service
	DefaultMode string
	Version     string
}

// Server holds the state for the MCP server.
type Server struct {
	analyzer    Analyzer
	progress    progress.Store
	reports     *report.Service
	defaultMode string
	version     string

	// background tracks runs started with async=true.
	background sync.WaitGroup
}

// NewServer creates a new MCP server.
func NewServer(deps Deps) *Server {
	version := deps.Version
	if version == "" {
		version = "dev"
	}
	return &Server{
		analyzer:    deps.Analyzer,
		progress:    deps.Progress,
		reports:     deps.Reports,
		defaultMode: deps.DefaultMode,
		version:     version,
	}
}

// MCPServer builds the SDK server with every tool registered.
func (s *Server) MCPServer() *mcp.Server {
	server := mcp.NewServer(&mcp.Implementation{Name: "analisis-mcp", Version: s.version}, nil)
	s.registerTools(server)
	return server
}

// Serve runs the stdio loop until the client disconnects or ctx ends, then
// waits for background runs to close.
func (s *Server) Serve(ctx context.Context) error {
	log.Info().Str("version", s.version).Msg("MCP server listening on stdio")
	err := s.MCPServer().Run(ctx, &mcp.StdioTransport{})
	s.Wait()
	return err
}

// Wait blocks until all background runs have finished.
func (s *Server) Wait() {
	s.background.Wait()
}

// ResponseEnvelope is the JSON body of every tool result.
type ResponseEnvelope struct {
	Data     any      `json:"data"`
	Guidance []string `json:"guidance,omitempty"`
}

// WrapResponse packs data and follow-up hints into one text result.
func WrapResponse(data any, guidance ...string) (*mcp.CallToolResult, any, error) {
	out, err := json.MarshalIndent(ResponseEnvelope{Data: data, Guidance: guidance}, "", "  ")
	if err != nil {
		return nil, nil, err
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: string(out)}},
	}, nil, nil
}
