package mcpserver

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
)

type uploadResult struct {
	URL           string `json:"url"`
	Filename      string `json:"filename"`
	MarkdownImage string `json:"markdownImage"`
}

func (s *Server) uploadImage(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	uri, err := req.RequireString("data")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	data, err := decodeDataURI(uri)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if int64(len(data)) > s.deps.Media.MaxBytes() {
		return mcp.NewToolResultError(fmt.Sprintf("file too large: %d bytes (max %d)", len(data), s.deps.Media.MaxBytes())), nil
	}

	res, err := s.deps.Media.Upload(ctx, bytes.NewReader(data))
	if err != nil {
		return errorResult(err)
	}
	alt := req.GetString("alt", "")
	if alt == "" {
		alt = res.Filename
	}
	out, _ := json.Marshal(uploadResult{
		URL:           res.URL,
		Filename:      res.Filename,
		MarkdownImage: fmt.Sprintf("![%s](%s)", alt, res.URL),
	})
	return mcp.NewToolResultText(string(out)), nil
}

// decodeDataURI parses a data:<mediatype>;base64,<data> URI. The media type
// is not trusted; the upload service sniffs the bytes itself.
func decodeDataURI(uri string) ([]byte, error) {
	rest, ok := strings.CutPrefix(uri, "data:")
	if !ok {
		return nil, fmt.Errorf("expected a data URI")
	}
	meta, encoded, found := strings.Cut(rest, ",")
	if !found {
		return nil, fmt.Errorf("invalid data URI: missing comma separator")
	}
	if !strings.HasSuffix(meta, ";base64") {
		return nil, fmt.Errorf("only base64 data URIs are supported")
	}
	if mime := strings.TrimSuffix(meta, ";base64"); !strings.HasPrefix(mime, "image/") {
		return nil, fmt.Errorf("unsupported MIME type in data URI: %s", mime)
	}

	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		data, err = base64.RawStdEncoding.DecodeString(encoded)
		if err != nil {
			return nil, fmt.Errorf("invalid base64 data: %w", err)
		}
	}
	return data, nil
}
