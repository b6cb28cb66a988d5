package inference

import (
	"context"
	"encoding/base64"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"mcqsolver/mcq"
)

// REST calls the generateContent endpoint directly with JSON.
type REST struct {
	http   *resty.Client
	model  string
	apiKey string
	log    *zap.Logger
}

type restPart struct {
	Text       string          `json:"text,omitempty"`
	InlineData *restInlineData `json:"inline_data,omitempty"`
}

type restInlineData struct {
	MIMEType string `json:"mime_type"`
	Data     string `json:"data"`
}

type restContent struct {
	Parts []restPart `json:"parts"`
}

type restRequest struct {
	Contents         []restContent      `json:"contents"`
	GenerationConfig restGenerationConf `json:"generationConfig"`
}

type restGenerationConf struct {
	Temperature    float32 `json:"temperature"`
	CandidateCount int     `json:"candidateCount"`
}

type restResponse struct {
	Candidates []struct {
		Content struct {
			Parts []struct {
				Text string `json:"text"`
			} `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
}

type restError struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error"`
}

func NewREST(cfg Config, log *zap.Logger) *REST {
	endpoint := strings.TrimRight(strings.TrimSpace(cfg.Endpoint), "/")
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	c := resty.New().
		SetBaseURL(endpoint).
		SetTimeout(timeout).
		SetHeader("Content-Type", "application/json")
	return &REST{
		http:   c,
		model:  cfg.Model,
		apiKey: strings.TrimSpace(cfg.APIKey),
		log:    log.With(zap.String("component", "inference"), zap.String("backend", BackendREST)),
	}
}

func (r *REST) Name() string { return BackendREST + ":" + r.model }

func (r *REST) Close() error { return nil }

func (r *REST) Generate(ctx context.Context, req Request) (string, error) {
	body := restRequest{
		Contents: []restContent{{Parts: []restPart{
			{Text: req.Prompt},
			{InlineData: &restInlineData{MIMEType: req.MIMEType, Data: base64.StdEncoding.EncodeToString(req.Image)}},
		}}},
		GenerationConfig: restGenerationConf{Temperature: 0, CandidateCount: 1},
	}
	var out restResponse
	var apiErr restError
	resp, err := r.http.R().
		SetContext(ctx).
		SetPathParam("model", r.model).
		SetHeader("x-goog-api-key", r.apiKey).
		SetBody(body).
		SetResult(&out).
		SetError(&apiErr).
		Post("/v1beta/models/{model}:generateContent")
	if err != nil {
		return "", classifyError(err)
	}
	if resp.IsError() {
		msg := strings.TrimSpace(apiErr.Error.Message)
		if msg == "" {
			msg = strings.TrimSpace(resp.String())
		}
		if apiErr.Error.Status != "" {
			msg = apiErr.Error.Status + ": " + msg
		}
		status := resp.StatusCode()
		return "", &mcq.InferenceError{Kind: mcq.ClassifyStatus(status, msg), Status: status, Message: msg}
	}
	for _, c := range out.Candidates {
		for _, p := range c.Content.Parts {
			if t := strings.TrimSpace(p.Text); t != "" {
				r.log.Debug("model reply", zap.String("text", t))
				return t, nil
			}
		}
	}
	return "", &mcq.InferenceError{Kind: mcq.KindParse, Message: "empty response"}
}
