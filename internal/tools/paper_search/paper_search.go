// Package paper_search provides the arXiv search tool for the research agent.
package paper_search //nolint:revive // var-naming: using underscores for domain clarity

import (
	"context"
	"encoding/json"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/mkantor-dev/research_agent/internal/agents"
	"github.com/mkantor-dev/research_agent/internal/conversation"
	"github.com/mkantor-dev/research_agent/internal/models"
)

const (
	defaultMaxResults    = 5
	defaultMaxResultsCap = 25
)

var extraneousWhitespace = regexp.MustCompile(`\s+`)

// Config holds configuration for the paper search tool.
type Config struct {
	BaseURL string
	Timeout time.Duration

	// MaxResultsCap bounds the model-supplied max_results argument.
	MaxResultsCap int
}

// Args represents the arguments for the paper search tool.
type Args struct {
	Query      string `json:"query"`
	MaxResults int    `json:"max_results,omitempty"`
}

// foundPaper is the per-result shape returned to the model.
type foundPaper struct {
	Index    int    `json:"index"`
	ID       string `json:"id"`
	Title    string `json:"title"`
	Authors  string `json:"authors"`
	Abstract string `json:"abstract"`
}

// Tool queries the arXiv Atom API and appends results to the session's
// paper roster.
type Tool struct {
	baseURL    string
	client     *http.Client
	resultsCap int
}

func New(cfg Config) *Tool {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://export.arxiv.org"
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.MaxResultsCap <= 0 {
		cfg.MaxResultsCap = defaultMaxResultsCap
	}
	return &Tool{
		baseURL:    cfg.BaseURL,
		client:     &http.Client{Timeout: cfg.Timeout},
		resultsCap: cfg.MaxResultsCap,
	}
}

func (t *Tool) Definition() models.ToolDefinition {
	return models.ToolDefinition{
		Name:        "search_papers",
		Description: "Search arXiv for academic papers matching a query. Results are added to the session's paper roster and can be analyzed or annotated by index.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"query": map[string]any{
					"type":        "string",
					"description": "Search terms, e.g. 'attention mechanisms for long documents'",
				},
				"max_results": map[string]any{
					"type":        "integer",
					"description": fmt.Sprintf("Number of results to return (default %d, max %d)", defaultMaxResults, t.resultsCap),
				},
			},
			"required": []string{"query"},
		},
	}
}

func (t *Tool) Execute(ctx context.Context, args json.RawMessage, agentCtx *conversation.AgentContext) (*agents.Execution, error) {
	var a Args
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, fmt.Errorf("parsing arguments: %w", err)
	}
	if strings.TrimSpace(a.Query) == "" {
		return nil, fmt.Errorf("query must not be empty")
	}

	papers, err := t.search(ctx, a.Query, t.clampMaxResults(a.MaxResults))
	if err != nil {
		return nil, err
	}

	// Project the roster indices the loop will assign: known papers keep
	// their index, new ones append in result order.
	ids := make([]string, len(agentCtx.Papers))
	for i, p := range agentCtx.Papers {
		ids[i] = p.ID
	}
	found := make([]foundPaper, len(papers))
	for i, p := range papers {
		idx := indexOf(ids, p.ID)
		if idx < 0 {
			idx = len(ids)
			ids = append(ids, p.ID)
		}
		found[i] = foundPaper{
			Index:    idx,
			ID:       p.ID,
			Title:    p.Title,
			Authors:  strings.Join(p.Authors, ", "),
			Abstract: truncate(p.Abstract, 300),
		}
	}

	return &agents.Execution{
		Result: agents.ToolResult{
			Success: true,
			Data: map[string]any{
				"query":  a.Query,
				"count":  len(found),
				"papers": found,
			},
		},
		Papers:   papers,
		Searches: 1,
	}, nil
}

func (t *Tool) clampMaxResults(n int) int {
	if n <= 0 {
		return defaultMaxResults
	}
	if n > t.resultsCap {
		return t.resultsCap
	}
	return n
}

func indexOf(ids []string, id string) int {
	for i, existing := range ids {
		if existing == id {
			return i
		}
	}
	return -1
}

func (t *Tool) search(ctx context.Context, query string, maxResults int) ([]conversation.Paper, error) {
	reqURL := fmt.Sprintf("%s/api/query?search_query=%s&start=0&max_results=%s",
		t.baseURL,
		url.QueryEscape("all:"+query),
		strconv.Itoa(maxResults))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := t.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("arxiv request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("arxiv API error: %s (%s)", resp.Status, string(body))
	}

	return decodeFeed(resp.Body)
}

type atomFeed struct {
	Entries []atomEntry `xml:"entry"`
}

type atomEntry struct {
	ID        string       `xml:"id"`
	Title     string       `xml:"title"`
	Summary   string       `xml:"summary"`
	Published string       `xml:"published"`
	Authors   []atomAuthor `xml:"author"`
	Links     []atomLink   `xml:"link"`
}

type atomAuthor struct {
	Name string `xml:"name"`
}

type atomLink struct {
	Href  string `xml:"href,attr"`
	Title string `xml:"title,attr"`
}

func decodeFeed(reader io.Reader) ([]conversation.Paper, error) {
	var feed atomFeed
	if err := xml.NewDecoder(reader).Decode(&feed); err != nil {
		return nil, fmt.Errorf("failed to decode arxiv response: %w", err)
	}

	papers := make([]conversation.Paper, 0, len(feed.Entries))
	for _, entry := range feed.Entries {
		id := extractIdentifier(entry.ID)
		if id == "" {
			continue
		}

		authors := make([]string, 0, len(entry.Authors))
		for _, a := range entry.Authors {
			authors = append(authors, strings.TrimSpace(a.Name))
		}

		pdfURL := ""
		for _, link := range entry.Links {
			if link.Title == "pdf" {
				pdfURL = link.Href
				break
			}
		}
		if pdfURL == "" {
			pdfURL = fmt.Sprintf("https://arxiv.org/pdf/%s.pdf", id)
		}

		published, _ := time.Parse(time.RFC3339, entry.Published)

		papers = append(papers, conversation.Paper{
			ID:        id,
			Title:     normalizeWhitespace(entry.Title),
			Authors:   authors,
			Abstract:  normalizeWhitespace(entry.Summary),
			URL:       fmt.Sprintf("https://arxiv.org/abs/%s", id),
			PDFURL:    pdfURL,
			Published: published,
		})
	}
	return papers, nil
}

var idRegexp = regexp.MustCompile(`(?i)arxiv\.org/(?:abs|pdf)/([0-9a-z.\-/]+?)(?:v\d+)?(?:\.pdf)?$`)

func extractIdentifier(entryID string) string {
	if matches := idRegexp.FindStringSubmatch(strings.TrimSpace(entryID)); len(matches) > 1 {
		return matches[1]
	}
	return ""
}

func normalizeWhitespace(s string) string {
	return extraneousWhitespace.ReplaceAllString(strings.TrimSpace(s), " ")
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
