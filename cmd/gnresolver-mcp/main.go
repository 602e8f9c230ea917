package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// resolveRequest mirrors the resolver API request model.
type resolveRequest struct {
	GoogleNewsURL string `json:"google_news_url"`
}

// resolveResponse mirrors the resolver API response models (success and error).
type resolveResponse struct {
	OK            bool    `json:"ok"`
	GoogleNewsURL string  `json:"google_news_url"`
	Blocked       bool    `json:"blocked"`
	ResolvedURL   *string `json:"resolved_url"`
	Method        string  `json:"method"`
	HTTPStatus    *int    `json:"http_status"`
	FinalURL      *string `json:"final_url"`
	Attempt       int     `json:"attempt"`
	TargetURL     string  `json:"target_url"`
	Error         string  `json:"error"`
}

func main() {
	apiURL := os.Getenv("GNRESOLVER_API_URL")
	if apiURL == "" {
		apiURL = "http://127.0.0.1:3000"
	}
	apiURL = strings.TrimRight(apiURL, "/")

	s := server.NewMCPServer(
		"gnresolver",
		"1.0.0",
		server.WithToolCapabilities(false),
	)

	resolveTool := mcp.NewTool("resolve_google_news_url",
		mcp.WithDescription("Resolve a Google News article link (news.google.com/rss/articles/... or /articles/...) to the publisher's URL. Uses a headless browser and may take tens of seconds when Google rate limits."),
		mcp.WithString("google_news_url",
			mcp.Required(),
			mcp.Description("The Google News article URL to resolve"),
		),
	)

	s.AddTool(resolveTool, handleResolve(apiURL, &http.Client{Timeout: 5 * time.Minute}))

	if err := server.ServeStdio(s); err != nil {
		fmt.Fprintf(os.Stderr, "MCP server error: %v\n", err)
		os.Exit(1)
	}
}

func handleResolve(apiURL string, client *http.Client) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		link, err := request.RequireString("google_news_url")
		if err != nil {
			return mcp.NewToolResultError("google_news_url is required"), nil
		}

		body, err := json.Marshal(resolveRequest{GoogleNewsURL: link})
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to marshal request: %v", err)), nil
		}

		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, apiURL+"/resolve", bytes.NewReader(body))
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to create request: %v", err)), nil
		}
		httpReq.Header.Set("Content-Type", "application/json")

		resp, err := client.Do(httpReq)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("API request failed: %v", err)), nil
		}
		defer resp.Body.Close()

		respBody, err := io.ReadAll(resp.Body)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to read response: %v", err)), nil
		}

		var rr resolveResponse
		if err := json.Unmarshal(respBody, &rr); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to parse response (HTTP %d): %v", resp.StatusCode, err)), nil
		}

		if !rr.OK {
			msg := rr.Error
			if msg == "" {
				msg = fmt.Sprintf("resolve failed with HTTP %d", resp.StatusCode)
			}
			return mcp.NewToolResultError(msg), nil
		}

		return mcp.NewToolResultText(formatResult(&rr)), nil
	}
}

// formatResult renders the resolution for a model to read: the publisher URL
// first, followed by the diagnostics.
func formatResult(rr *resolveResponse) string {
	var b strings.Builder
	if rr.ResolvedURL != nil {
		fmt.Fprintf(&b, "Resolved URL: %s\n", *rr.ResolvedURL)
	} else {
		b.WriteString("Resolved URL: (not found)\n")
	}
	fmt.Fprintf(&b, "Method: %s\n", rr.Method)
	fmt.Fprintf(&b, "Attempts: %d\n", rr.Attempt)
	if rr.HTTPStatus != nil {
		fmt.Fprintf(&b, "Upstream status: %d\n", *rr.HTTPStatus)
	}
	if rr.FinalURL != nil {
		fmt.Fprintf(&b, "Final URL: %s\n", *rr.FinalURL)
	}
	if rr.Blocked {
		b.WriteString("\nGoogle News rate limited every attempt; try again later.")
	}
	return strings.TrimRight(b.String(), "\n")
}
