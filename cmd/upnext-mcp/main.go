package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// recsResponse mirrors the upnext API response model.
type recsResponse struct {
	Items []struct {
		ID            string `json:"id"`
		Title         string `json:"title"`
		ThumbnailURL  string `json:"thumbnailUrl"`
		DurationLabel string `json:"durationLabel"`
	} `json:"items"`
	Cached bool   `json:"cached"`
	Error  string `json:"error"`
}

func main() {
	apiURL := os.Getenv("UPNEXT_API_URL")
	if apiURL == "" {
		apiURL = "http://127.0.0.1:3000"
	}

	s := server.NewMCPServer(
		"upnext",
		"1.0.0",
		server.WithToolCapabilities(false),
	)

	relatedTool := mcp.NewTool("related_videos",
		mcp.WithDescription("List up to 12 videos recommended alongside a given video. Renders the watch page upstream, so a cold lookup can take several seconds; repeat lookups within 5 minutes are served from cache."),
		mcp.WithString("video_id",
			mcp.Required(),
			mcp.Description("The video id, e.g. the value of the v= parameter of a watch URL"),
		),
	)
	s.AddTool(relatedTool, handleRelatedVideos(apiURL))

	if err := server.ServeStdio(s); err != nil {
		fmt.Fprintf(os.Stderr, "server error: %v\n", err)
		os.Exit(1)
	}
}

func handleRelatedVideos(apiURL string) server.ToolHandlerFunc {
	client := &http.Client{Timeout: 60 * time.Second}

	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		videoID, err := request.RequireString("video_id")
		if err != nil {
			return mcp.NewToolResultError("video_id is required"), nil
		}

		resp, err := fetchRecs(ctx, client, apiURL, videoID)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		if resp.Error != "" {
			return mcp.NewToolResultError(fmt.Sprintf("lookup failed: %s", resp.Error)), nil
		}

		return mcp.NewToolResultText(formatRecs(videoID, resp)), nil
	}
}

// fetchRecs calls GET /api/recs and decodes the body regardless of status,
// since error responses carry the same shape.
func fetchRecs(ctx context.Context, client *http.Client, apiURL, videoID string) (*recsResponse, error) {
	endpoint := strings.TrimRight(apiURL, "/") + "/api/recs?" + url.Values{"v": {videoID}}.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	httpResp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("API request failed: %w", err)
	}
	defer httpResp.Body.Close()

	body, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	var resp recsResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("parse response (status %d): %w", httpResp.StatusCode, err)
	}
	return &resp, nil
}

func formatRecs(videoID string, resp *recsResponse) string {
	if len(resp.Items) == 0 {
		return fmt.Sprintf("No related videos found for %s.", videoID)
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Related to %s (%d videos", videoID, len(resp.Items))
	if resp.Cached {
		sb.WriteString(", cached")
	}
	sb.WriteString("):\n\n")

	for i, it := range resp.Items {
		fmt.Fprintf(&sb, "%d. %s", i+1, it.Title)
		if it.DurationLabel != "" {
			fmt.Fprintf(&sb, " [%s]", it.DurationLabel)
		}
		fmt.Fprintf(&sb, "\n   https://www.youtube.com/watch?v=%s\n", it.ID)
	}
	return sb.String()
}
