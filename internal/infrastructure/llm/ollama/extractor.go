package ollama

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/kirillkom/casefile/internal/core/domain"
	"github.com/kirillkom/casefile/internal/core/ports"
	"github.com/kirillkom/casefile/internal/infrastructure/llm/jsonrepair"
)

const extractMaxTokens = 2000

type Extractor struct {
	client *Client
}

func NewExtractor(client *Client) *Extractor {
	return &Extractor{client: client}
}

// Extract never fails. Whatever the model produces goes through repair,
// schema validation and a typed decode; if any step still cannot make sense
// of it, the document gets the fallback extraction and processing moves on.
func (e *Extractor) Extract(ctx context.Context, in ports.ExtractInput) *domain.Extraction {
	req := generateRequest{
		prompt:    buildExtractPrompt(in.Filename, in.Category, in.Language, in.Text),
		maxTokens: extractMaxTokens,
	}
	if in.Text == "" && len(in.Raw) > 0 {
		req.attachments = [][]byte{in.Raw}
	}

	response, err := e.client.generate(ctx, req)
	if err != nil {
		slog.Warn("extraction_fallback", "filename", in.Filename, "stage", "generate", "error", err)
		return domain.FallbackExtraction(in.Filename)
	}

	repaired := []byte(jsonrepair.Extract(response))
	if err := validateExtractionJSON(repaired); err != nil {
		slog.Warn("extraction_fallback", "filename", in.Filename, "stage", "validate", "error", err)
		return domain.FallbackExtraction(in.Filename)
	}

	var extraction domain.Extraction
	if err := json.Unmarshal(repaired, &extraction); err != nil {
		slog.Warn("extraction_fallback", "filename", in.Filename, "stage", "decode", "error", err)
		return domain.FallbackExtraction(in.Filename)
	}

	if extraction.KeyInsights == nil {
		extraction.KeyInsights = []string{}
	}
	if extraction.OneTimeCosts == nil {
		extraction.OneTimeCosts = []domain.CostItem{}
	}
	return &extraction
}
