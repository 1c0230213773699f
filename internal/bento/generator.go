package bento

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	openai "github.com/sashabaranov/go-openai"

	"github.com/hyperifyio/ptsnap/internal/cache"
	"github.com/hyperifyio/ptsnap/internal/llm"
	"github.com/hyperifyio/ptsnap/internal/summarize"
)

// Stage is one step of a generation job.
type Stage string

const (
	StageWaiting   Stage = "waiting"
	StagePreparing Stage = "preparing"
	StageChecking  Stage = "checking"
	StagePrompting Stage = "prompting"
	StageRendering Stage = "rendering"
	StageComplete  Stage = "complete"
)

// Stages lists every stage in order.
var Stages = []Stage{StageWaiting, StagePreparing, StageChecking, StagePrompting, StageRendering, StageComplete}

// Progress is reported on every stage change.
type Progress struct {
	JobID    uuid.UUID
	Stage    Stage
	Fraction float64
	Detail   string
}

// ProgressFunc receives progress updates on the generating goroutine.
type ProgressFunc func(Progress)

// Job is one request for a digest.
type Job struct {
	ID      uuid.UUID         `json:"id"`
	Article summarize.Article `json:"article"`
	Bundle  summarize.Bundle  `json:"summary"`
	Created time.Time         `json:"createdAt"`
}

// NewJob starts a job with a fresh id.
func NewJob(article summarize.Article, bundle summarize.Bundle) Job {
	return Job{ID: uuid.New(), Article: article, Bundle: bundle, Created: time.Now().UTC()}
}

// Result is a finished job.
type Result struct {
	JobID       uuid.UUID         `json:"jobId"`
	Layout      Layout            `json:"data"`
	Article     summarize.Article `json:"article"`
	Bundle      summarize.Bundle  `json:"summary"`
	GeneratedAt time.Time         `json:"generatedAt"`
}

// Generator asks a chat model for a layout.
type Generator struct {
	Client llm.Client
	Model  string
	Cache  *cache.LLMCache
}

const (
	temperature     = 0.2
	maxOutputTokens = 2048
)

// Generate walks the job through its stages and returns the validated,
// tidied layout. A model that a ModelLister client does not list fails the
// checking stage before any prompt is sent.
func (g *Generator) Generate(ctx context.Context, job Job, progress ProgressFunc) (Result, error) {
	report := func(stage Stage, fraction float64, detail string) {
		log.Debug().Str("job", job.ID.String()).Str("stage", string(stage)).Msg(detail)
		if progress != nil {
			progress(Progress{JobID: job.ID, Stage: stage, Fraction: fraction, Detail: detail})
		}
	}
	if g == nil || g.Client == nil || strings.TrimSpace(g.Model) == "" {
		return Result{}, errors.New("bento generator not configured")
	}

	report(StagePreparing, 0.15, "Packaging summary payload")
	prompt := BuildPrompt(job.Article, job.Bundle)

	report(StageChecking, 0.25, "Checking model availability")
	if err := g.checkModel(ctx); err != nil {
		return Result{}, err
	}

	report(StagePrompting, 0.6, "Generating bento cards")
	key := cache.KeyFrom(g.Model, "bento", prompt.String())
	var layout Layout
	if !g.Cache.GetJSON(ctx, key, &layout) || layout.Validate() != nil {
		var err error
		layout, err = g.prompt(ctx, prompt)
		if err != nil {
			return Result{}, err
		}
		if err := g.Cache.SaveJSON(ctx, key, layout); err != nil {
			log.Warn().Err(err).Msg("bento cache save failed")
		}
	}

	report(StageRendering, 0.85, "Rendering bento layout")
	layout = layout.Tidy(job.Article.URL)

	report(StageComplete, 1, "Bento grid ready")
	return Result{
		JobID:       job.ID,
		Layout:      layout,
		Article:     job.Article,
		Bundle:      job.Bundle,
		GeneratedAt: time.Now().UTC(),
	}, nil
}

func (g *Generator) checkModel(ctx context.Context) error {
	lister, ok := g.Client.(llm.ModelLister)
	if !ok {
		return nil
	}
	models, err := lister.ListModels(ctx)
	if err != nil {
		return fmt.Errorf("unable to check model availability: %w", err)
	}
	for _, m := range models.Models {
		if m.ID == g.Model {
			return nil
		}
	}
	return fmt.Errorf("model %q is not available", g.Model)
}

func (g *Generator) prompt(ctx context.Context, p Prompt) (Layout, error) {
	resp, err := g.Client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: g.Model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: p.System},
			{Role: openai.ChatMessageRoleUser, Content: p.User},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{Type: openai.ChatCompletionResponseFormatTypeJSONObject},
		Temperature:    temperature,
		MaxTokens:      maxOutputTokens,
		N:              1,
	})
	if err != nil {
		return Layout{}, fmt.Errorf("bento call: %w", err)
	}
	layout, err := Normalize([]byte(llm.FirstContent(resp)))
	if err != nil {
		return Layout{}, err
	}
	if err := layout.Validate(); err != nil {
		return Layout{}, err
	}
	return layout, nil
}
