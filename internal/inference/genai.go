package inference

import (
	"context"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"go.uber.org/zap"
	"google.golang.org/api/option"

	"mcqsolver/mcq"
)

// GenAI talks to Gemini through the generative-ai-go SDK.
type GenAI struct {
	client *genai.Client
	model  *genai.GenerativeModel
	name   string
	log    *zap.Logger
}

func NewGenAI(ctx context.Context, cfg Config, log *zap.Logger, extra ...option.ClientOption) (*GenAI, error) {
	opts := []option.ClientOption{option.WithAPIKey(strings.TrimSpace(cfg.APIKey))}
	if ep := strings.TrimSpace(cfg.Endpoint); ep != "" && ep != DefaultEndpoint {
		opts = append(opts, option.WithEndpoint(ep))
	}
	opts = append(opts, extra...)
	cl, err := genai.NewClient(ctx, opts...)
	if err != nil {
		return nil, classifyError(err)
	}
	m := cl.GenerativeModel(cfg.Model)
	m.SetTemperature(0)
	m.SetCandidateCount(1)
	return &GenAI{
		client: cl,
		model:  m,
		name:   cfg.Model,
		log:    log.With(zap.String("component", "inference"), zap.String("backend", BackendGenAI)),
	}, nil
}

func (g *GenAI) Name() string { return BackendGenAI + ":" + g.name }

func (g *GenAI) Close() error { return g.client.Close() }

func (g *GenAI) Generate(ctx context.Context, req Request) (string, error) {
	parts := []genai.Part{
		genai.Text(req.Prompt),
		genai.Blob{MIMEType: req.MIMEType, Data: req.Image},
	}
	resp, err := g.model.GenerateContent(ctx, parts...)
	if err != nil {
		return "", classifyError(err)
	}
	txt := strings.TrimSpace(firstText(resp))
	if txt == "" {
		return "", &mcq.InferenceError{Kind: mcq.KindParse, Message: "empty response"}
	}
	g.log.Debug("model reply", zap.String("text", txt))
	return txt, nil
}

func firstText(resp *genai.GenerateContentResponse) string {
	if resp == nil {
		return ""
	}
	for _, c := range resp.Candidates {
		if c == nil || c.Content == nil {
			continue
		}
		for _, p := range c.Content.Parts {
			if t, ok := p.(genai.Text); ok {
				return string(t)
			}
		}
	}
	return ""
}
