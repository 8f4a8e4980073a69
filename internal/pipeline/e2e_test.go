package pipeline

import (
	"context"
	"encoding/json"
	"net/http"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/enrich-cli/internal/features"
	"github.com/sells-group/enrich-cli/internal/homepage"
	"github.com/sells-group/enrich-cli/internal/model"
	"github.com/sells-group/enrich-cli/internal/profile"
	"github.com/sells-group/enrich-cli/pkg/anthropic"
	"github.com/sells-group/enrich-cli/pkg/bigpicture"
	"github.com/sells-group/enrich-cli/pkg/jina"
)

type searchFunc func(query string) []model.SearchResult

func (f searchFunc) Search(_ context.Context, query string, _ int) ([]model.SearchResult, error) {
	return f(query), nil
}

type findFunc func(domain string) *bigpicture.Response

func (f findFunc) Find(_ context.Context, domain string) (*bigpicture.Response, error) {
	return f(domain), nil
}

type readerFunc func(target string) string

func (f readerFunc) Read(_ context.Context, target string) (*jina.ReadResponse, error) {
	return &jina.ReadResponse{Code: 200, Data: jina.ReadData{Content: f(target)}}, nil
}

func (f readerFunc) Search(context.Context, string, ...jina.SearchOption) (*jina.SearchResponse, error) {
	return &jina.SearchResponse{}, nil
}

type llmFunc func(req anthropic.MessageRequest) *anthropic.MessageResponse

func (f llmFunc) CreateMessage(_ context.Context, req anthropic.MessageRequest) (*anthropic.MessageResponse, error) {
	return f(req), nil
}

func TestEndToEnd_UnresolvableHomepageLeavesBlanks(t *testing.T) {
	dir := t.TempDir()
	companies := writeInput(t, "Company Name\nSierra\nNowhere\nEtched\nGrand Total\n")
	homepages := filepath.Join(dir, "company_list_with_homepages.csv")
	profiles := filepath.Join(dir, "company_info_results.csv")
	final := filepath.Join(dir, "company_features_results.csv")

	searcher := searchFunc(func(query string) []model.SearchResult {
		switch query {
		case "Sierra AI company official website":
			return []model.SearchResult{{Link: "https://sierra.ai/", Title: "Sierra"}}
		case "Etched AI company official website":
			return []model.SearchResult{
				{Link: "https://www.linkedin.com/company/etched", Title: "Etched | LinkedIn"},
				{Link: "https://www.etched.com/?utm=1", Title: "Etched"},
			}
		}
		return nil
	})
	finder := findFunc(func(domain string) *bigpicture.Response {
		if domain == "etched.com" {
			return &bigpicture.Response{StatusCode: http.StatusOK, Body: []byte(`{"domain":"etched.com","foundedYear":2022,"geo":{"city":"San Jose"}}`)}
		}
		return &bigpicture.Response{StatusCode: http.StatusNotFound}
	})
	reader := readerFunc(func(target string) string { return "site of " + target })
	llm := llmFunc(func(req anthropic.MessageRequest) *anthropic.MessageResponse {
		content := req.Prompt
		target := content[strings.LastIndex(content, " ")+1:]
		input, _ := json.Marshal(map[string][]string{
			"key_ai_features":   {"Feature for " + target},
			"notable_use_cases": {"Support", "Sales"},
		})
		return &anthropic.MessageResponse{Content: []anthropic.ContentBlock{
			{Type: "tool_use", Name: features.ToolName, Input: input},
		}}
	})

	r := NewRunner(WithSleeper(noSleep))
	ctx := context.Background()

	_, err := r.Run(ctx, homepage.NewStage(homepage.NewResolver(searcher), 0), companies, homepages)
	require.NoError(t, err)
	_, err = r.Run(ctx, profile.NewStage(profile.NewEnricher(finder), 0), homepages, profiles)
	require.NoError(t, err)
	sum, err := r.Run(ctx, features.NewStage(features.NewExtractor(reader, llm), 0), profiles, final)
	require.NoError(t, err)
	assert.Equal(t, 3, sum.Written)
	assert.Equal(t, 1, sum.Failed)

	records := readOutput(t, final)
	require.Len(t, records, 4)
	header := records[0]
	assert.Len(t, header, 1+1+len(profile.Attributes)+2)
	for _, rec := range records[1:] {
		assert.Len(t, rec, len(header))
	}

	byName := map[string]map[string]string{}
	for _, rec := range records[1:] {
		m := map[string]string{}
		for i, col := range header {
			m[col] = rec[i]
		}
		byName[m["Company Name"]] = m
	}

	sierra := byName["Sierra"]
	assert.Equal(t, "https://sierra.ai", sierra["Homepage"])
	assert.Equal(t, "2022", sierra["foundedYear"])
	assert.Equal(t, "Artificial Intelligence", sierra["category.industry"])
	assert.Equal(t, "Support; Sales", sierra["Notable use cases"])

	etched := byName["Etched"]
	assert.Equal(t, "https://www.etched.com", etched["Homepage"])
	assert.Equal(t, "etched.com", etched["domain"])
	assert.Equal(t, "San Jose", etched["Location"])
	assert.Equal(t, "Feature for etched.com", etched["Key AI features"])

	nowhere := byName["Nowhere"]
	assert.Equal(t, "N/A", nowhere["Homepage"])
	for _, col := range header[2:] {
		assert.Equal(t, "", nowhere[col], col)
	}
}
