package ollama

import (
	"context"
	"log/slog"

	"github.com/kirillkom/casefile/internal/core/domain"
	"github.com/kirillkom/casefile/internal/core/ports"
)

const classifyMaxTokens = 50

type Classifier struct {
	client *Client
}

func NewClassifier(client *Client) *Classifier {
	return &Classifier{client: client}
}

// Classify returns exactly one category from the closed set. Labels the model
// invents collapse to other; transport failures return other alongside the
// error so the caller can decide whether to record it.
func (c *Classifier) Classify(ctx context.Context, in ports.ClassifyInput) (domain.Category, error) {
	req := generateRequest{
		prompt:    buildClassifyPrompt(in.Filename, in.Text),
		maxTokens: classifyMaxTokens,
	}
	if in.Text == "" && len(in.Raw) > 0 {
		req.attachments = [][]byte{in.Raw}
	}

	label, err := c.client.generate(ctx, req)
	if err != nil {
		return domain.CategoryOther, err
	}

	category := domain.ParseCategory(label)
	if string(category) != label {
		slog.Debug("classifier_label_normalized", "filename", in.Filename, "raw", label, "category", category)
	}
	return category, nil
}
