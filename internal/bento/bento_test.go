package bento

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	openai "github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hyperifyio/ptsnap/internal/cache"
	"github.com/hyperifyio/ptsnap/internal/summarize"
)

func pct(v float64) *float64 { return &v }

func sampleLayout() Layout {
	return Layout{
		Header: Header{Title: "Solar output climbs", Subtitle: "Storage kept pace with new panels"},
		Cards: []Card{
			{Kind: KindLead, Title: "Big idea", Body: "Output rose 20%.", Size: SizeL, Emphasis: EmphasisAccent},
			{Kind: KindTakeaway, Title: "Storage", Body: "Batteries <b>kept</b> pace.", Size: SizeM},
			{Kind: KindStat, Title: "Mix", Size: SizeS, ProgressLabelLeft: "Solar", ProgressLeftPct: pct(140), ProgressRightPct: pct(-3)},
			{Kind: KindList, Title: "Next", Size: SizeS, Emphasis: EmphasisDark,
				Bullets:       []string{"1", "2", "3", "4", "5", "6", "7"},
				SourceAnchors: []string{"https://a.example/1", "javascript:alert(1)", "https://a.example/2", "https://a.example/3", "https://a.example/4"}},
		},
	}
}

type fakeModel struct {
	reply   string
	models  []string
	listErr error
	reqs    []openai.ChatCompletionRequest
}

func (f *fakeModel) CreateChatCompletion(_ context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	f.reqs = append(f.reqs, req)
	return openai.ChatCompletionResponse{Choices: []openai.ChatCompletionChoice{{
		Message: openai.ChatCompletionMessage{Role: openai.ChatMessageRoleAssistant, Content: f.reply},
	}}}, nil
}

func (f *fakeModel) ListModels(context.Context) (openai.ModelsList, error) {
	if f.listErr != nil {
		return openai.ModelsList{}, f.listErr
	}
	var out openai.ModelsList
	for _, id := range f.models {
		out.Models = append(out.Models, openai.Model{ID: id})
	}
	return out, nil
}

func layoutJSON(t *testing.T, l Layout) string {
	t.Helper()
	b, err := json.Marshal(l)
	require.NoError(t, err)
	return string(b)
}

func TestNormalize_AcceptsEveryShape(t *testing.T) {
	obj := layoutJSON(t, sampleLayout())
	quoted, _ := json.Marshal(obj)
	shapes := map[string]string{
		"object":        obj,
		"string":        string(quoted),
		"output string": `{"output":` + string(quoted) + `}`,
		"output object": `{"output":` + obj + `}`,
		"fenced":        "```json\n" + obj + "\n```",
	}
	for name, raw := range shapes {
		t.Run(name, func(t *testing.T) {
			l, err := Normalize([]byte(raw))
			require.NoError(t, err)
			assert.Equal(t, "Solar output climbs", l.Header.Title)
			assert.Len(t, l.Cards, 4)
		})
	}
}

func TestNormalize_Rejects(t *testing.T) {
	for _, raw := range []string{"", "  ", "[1,2]", `{"output":null}`, `"not json`} {
		_, err := Normalize([]byte(raw))
		assert.Error(t, err, "raw %q", raw)
	}
}

func TestValidate(t *testing.T) {
	l := sampleLayout()
	require.NoError(t, l.Validate())

	noHeader := l
	noHeader.Header.Title = " "
	assert.ErrorIs(t, noHeader.Validate(), ErrIncomplete)

	few := l
	few.Cards = l.Cards[:3]
	assert.ErrorIs(t, few.Validate(), ErrIncomplete)

	many := l
	for len(many.Cards) <= MaxCards {
		many.Cards = append(many.Cards, Card{Title: "x", Size: SizeS})
	}
	assert.ErrorIs(t, many.Validate(), ErrIncomplete)
}

func TestTidy(t *testing.T) {
	l := sampleLayout()
	l.Cards[1].Size = "xl"
	l.Cards[1].Kind = "opinion"
	got := l.Tidy("https://example.com/solar")

	require.NotNil(t, got.Header.CTA)
	assert.Equal(t, "https://example.com/solar", got.Header.CTA.URL)
	assert.Equal(t, SizeS, got.Cards[1].Size)
	assert.Equal(t, KindTakeaway, got.Cards[1].Kind)
	assert.Equal(t, EmphasisDefault, got.Cards[1].Emphasis)
	assert.Equal(t, 100.0, *got.Cards[2].ProgressLeftPct)
	assert.Equal(t, 0.0, *got.Cards[2].ProgressRightPct)
	assert.Equal(t, 140.0, *l.Cards[2].ProgressLeftPct, "input is not modified")
}

func TestBuildPrompt(t *testing.T) {
	p := BuildPrompt(
		summarize.Article{Title: "Solar", URL: "https://www.example.com/solar"},
		summarize.Bundle{Headline: "Solar climbs", Bullets: []string{"a"}},
	)
	assert.Contains(t, p.System, "valid JSON")
	assert.Contains(t, p.User, "- Title: Solar")
	assert.Contains(t, p.User, "- Domain: example.com")
	assert.Contains(t, p.User, `- Key bullets (at most 8): ["a"]`)
	assert.Contains(t, p.User, "- Notable quotes (speaker + quote): []")
	assert.Contains(t, p.User, `url = https://www.example.com/solar`)
	assert.Contains(t, p.User, `"minItems": 4`)

	empty := BuildPrompt(summarize.Article{}, summarize.Bundle{})
	assert.Contains(t, empty.User, "- URL: Unknown")
}

func TestGenerate_StagesAndRequest(t *testing.T) {
	m := &fakeModel{reply: layoutJSON(t, sampleLayout()), models: []string{"nano"}}
	g := &Generator{Client: m, Model: "nano", Cache: &cache.LLMCache{Dir: t.TempDir()}}
	job := NewJob(summarize.Article{Title: "Solar", URL: "https://example.com/solar"}, summarize.Bundle{Headline: "h"})

	var stages []Stage
	res, err := g.Generate(context.Background(), job, func(p Progress) {
		assert.Equal(t, job.ID, p.JobID)
		stages = append(stages, p.Stage)
	})
	require.NoError(t, err)
	assert.Equal(t, []Stage{StagePreparing, StageChecking, StagePrompting, StageRendering, StageComplete}, stages)
	assert.Equal(t, job.ID, res.JobID)
	assert.Equal(t, "https://example.com/solar", res.Layout.Header.CTA.URL)

	require.Len(t, m.reqs, 1)
	req := m.reqs[0]
	assert.InDelta(t, 0.2, req.Temperature, 1e-6)
	assert.Equal(t, 2048, req.MaxTokens)
	require.NotNil(t, req.ResponseFormat)
	assert.Equal(t, openai.ChatCompletionResponseFormatTypeJSONObject, req.ResponseFormat.Type)

	_, err = g.Generate(context.Background(), job, nil)
	require.NoError(t, err)
	assert.Len(t, m.reqs, 1, "second run is served from cache")
}

func TestGenerate_ModelChecks(t *testing.T) {
	job := NewJob(summarize.Article{}, summarize.Bundle{})

	missing := &fakeModel{models: []string{"other"}}
	_, err := (&Generator{Client: missing, Model: "nano"}).Generate(context.Background(), job, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not available")
	assert.Empty(t, missing.reqs)

	broken := &fakeModel{listErr: errors.New("boom")}
	_, err = (&Generator{Client: broken, Model: "nano"}).Generate(context.Background(), job, nil)
	assert.ErrorContains(t, err, "unable to check model availability")
}

func TestGenerate_IncompleteAnswer(t *testing.T) {
	m := &fakeModel{reply: `{"header":{"title":"t","subtitle":"s"},"cards":[{"kind":"lead","title":"x","size":"l"}]}`, models: []string{"nano"}}
	_, err := (&Generator{Client: m, Model: "nano"}).Generate(context.Background(), NewJob(summarize.Article{}, summarize.Bundle{}), nil)
	assert.ErrorIs(t, err, ErrIncomplete)
}

func TestNewJobIDsAreUnique(t *testing.T) {
	a := NewJob(summarize.Article{}, summarize.Bundle{})
	b := NewJob(summarize.Article{}, summarize.Bundle{})
	assert.NotEqual(t, a.ID, b.ID)
}

func TestExportHTML(t *testing.T) {
	l := sampleLayout()
	l.Header.Title = `Solar <script>alert("x")</script>& more`
	out, err := ExportHTML(l, summarize.Article{Title: "Solar & Storage", URL: "https://example.com/solar"})
	require.NoError(t, err)
	html := string(out)

	assert.Contains(t, html, "<title>Solar &amp; Storage | Bento Digest</title>")
	assert.NotContains(t, html, "<script>")
	assert.NotContains(t, html, "alert")
	assert.Contains(t, html, "Solar &amp; more")
	assert.Contains(t, html, "Batteries kept pace.")
	assert.Contains(t, html, `href="https://example.com/solar"`)
	assert.Contains(t, html, `style="width:100%"`)
	assert.Contains(t, html, `style="width:0%"`)
	assert.Equal(t, MaxBullets, strings.Count(html, "<li>"))
	assert.Contains(t, html, `href="https://a.example/3"`)
	assert.NotContains(t, html, "https://a.example/4")
	assert.NotContains(t, html, "javascript:")
	assert.Contains(t, html, "card darkcard card-span-s")
	assert.Contains(t, html, "card-title grad-text")
}

func TestExportPDF(t *testing.T) {
	out, err := ExportPDF(sampleLayout(), summarize.Article{Title: "Solar", URL: "https://example.com/solar"})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(out), "%PDF-"))
}

func TestFilename(t *testing.T) {
	assert.Equal(t, "solar-output-climbs-in-2024", Filename("  Solar output climbs (in 2024)!  "))
	assert.Equal(t, "a_b-c", Filename("A_b--c"))
	assert.Equal(t, DefaultFilename, Filename("???"))
	assert.Equal(t, DefaultFilename, Filename(""))
}
