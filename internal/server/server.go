// Package server exposes a tools.Dispatcher over MCP on newline-delimited
// JSON-RPC streams (stdio in production).
package server

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/hyperifyio/toolgate/internal/tools"
)

// maxMessageBytes bounds one JSON-RPC line; prompts can embed whole files.
const maxMessageBytes = 16 << 20

// Server routes MCP traffic. Protocol handling (initialize, ping, tools/call
// decoding) is done by mcp-go; Serve owns the stream so that every request
// runs on its own goroutine and a slow tool never blocks the others.
type Server struct {
	mcp        *mcpserver.MCPServer
	dispatcher *tools.Dispatcher
	tools      []mcp.Tool
	known      map[string]struct{}
	logger     *slog.Logger
}

// New registers every tool of d with a fresh MCP server.
func New(name, version string, d *tools.Dispatcher, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		mcp:        mcpserver.NewMCPServer(name, version, mcpserver.WithToolCapabilities(false), mcpserver.WithRecovery()),
		dispatcher: d,
		known:      make(map[string]struct{}),
		logger:     logger,
	}
	for _, desc := range d.Tools() {
		tool := mcp.NewToolWithRawSchema(desc.Name, desc.Description, desc.InputSchema)
		s.mcp.AddTool(tool, s.callHandler(desc.Name))
		s.tools = append(s.tools, tool)
		s.known[desc.Name] = struct{}{}
	}
	return s
}

func (s *Server) callHandler(name string) mcpserver.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		res := s.dispatcher.Dispatch(ctx, tools.ToolCallRequest{Name: name, Arguments: req.GetArguments()})
		return toCallResult(res), nil
	}
}

func toCallResult(res tools.ToolCallResult) *mcp.CallToolResult {
	if res.IsError {
		return mcp.NewToolResultError(res.Content)
	}
	return mcp.NewToolResultText(res.Content)
}

type envelope struct {
	ID     json.RawMessage `json:"id,omitempty"`
	Method string          `json:"method"`
	Params struct {
		Name string `json:"name"`
	} `json:"params"`
}

type response struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Result  any             `json:"result,omitempty"`
	Error   *rpcError       `json:"error,omitempty"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// Serve reads one JSON-RPC message per line from in and writes responses to
// out until in is exhausted or ctx is canceled. In-flight calls are awaited
// before Serve returns.
func (s *Server) Serve(ctx context.Context, in io.Reader, out io.Writer) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	w := &lineWriter{w: out}
	var wg sync.WaitGroup
	defer wg.Wait()

	lines := make(chan []byte)
	readErr := make(chan error, 1)
	go func() {
		defer close(lines)
		sc := bufio.NewScanner(in)
		sc.Buffer(make([]byte, 0, 64<<10), maxMessageBytes)
		for sc.Scan() {
			line := append([]byte(nil), sc.Bytes()...)
			select {
			case lines <- line:
			case <-ctx.Done():
				return
			}
		}
		readErr <- sc.Err()
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case line, ok := <-lines:
			if !ok {
				select {
				case err := <-readErr:
					if err != nil {
						return fmt.Errorf("read request: %w", err)
					}
				default:
				}
				return nil
			}
			if len(line) == 0 {
				continue
			}
			wg.Add(1)
			go func() {
				defer wg.Done()
				if resp := s.handle(ctx, line); resp != nil {
					if err := w.write(resp); err != nil {
						s.logger.Error("write response", "error", err)
					}
				}
			}()
		}
	}
}

// handle answers one message. tools/list is served here to keep registration
// order, and calls to unknown tools become error results rather than
// protocol errors; everything else goes to mcp-go.
func (s *Server) handle(ctx context.Context, raw []byte) any {
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return response{JSONRPC: mcp.JSONRPC_VERSION, ID: json.RawMessage("null"), Error: &rpcError{Code: mcp.PARSE_ERROR, Message: "parse error"}}
	}
	switch env.Method {
	case string(mcp.MethodToolsList):
		if len(env.ID) == 0 {
			return nil
		}
		return response{JSONRPC: mcp.JSONRPC_VERSION, ID: env.ID, Result: mcp.ListToolsResult{Tools: s.tools}}
	case string(mcp.MethodToolsCall):
		if _, ok := s.known[env.Params.Name]; !ok && len(env.ID) > 0 {
			res := s.dispatcher.Dispatch(ctx, tools.ToolCallRequest{Name: env.Params.Name})
			return response{JSONRPC: mcp.JSONRPC_VERSION, ID: env.ID, Result: toCallResult(res)}
		}
	}
	msg := s.mcp.HandleMessage(ctx, json.RawMessage(raw))
	if msg == nil {
		return nil
	}
	return msg
}

// lineWriter serializes whole responses onto one stream.
type lineWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (l *lineWriter) write(v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode response: %w", err)
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, err := l.w.Write(append(b, '\n')); err != nil {
		if errors.Is(err, io.ErrClosedPipe) {
			return nil
		}
		return err
	}
	return nil
}
