package llm

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/google/generative-ai-go/genai"
	openai "github.com/sashabaranov/go-openai"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
)

// GeminiProvider serves chat requests with Google's Gemini models behind the
// same interfaces as OpenAIProvider.
type GeminiProvider struct {
	client *genai.Client
	// TopK is applied when positive.
	TopK int32
}

// NewGemini connects with apiKey.
func NewGemini(ctx context.Context, apiKey string) (*GeminiProvider, error) {
	cl, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("gemini client: %w", err)
	}
	return &GeminiProvider{client: cl}, nil
}

// Close releases the underlying connection.
func (g *GeminiProvider) Close() error {
	if g.client != nil {
		return g.client.Close()
	}
	return nil
}

// session maps an OpenAI-shaped request onto a chat session and the final
// user turn.
func (g *GeminiProvider) session(req openai.ChatCompletionRequest) (*genai.ChatSession, []genai.Part, error) {
	m := g.client.GenerativeModel(req.Model)
	if req.Temperature > 0 {
		m.SetTemperature(req.Temperature)
	}
	if req.MaxTokens > 0 {
		m.SetMaxOutputTokens(int32(req.MaxTokens))
	}
	if g.TopK > 0 {
		m.SetTopK(g.TopK)
	}
	if req.ResponseFormat != nil && req.ResponseFormat.Type == openai.ChatCompletionResponseFormatTypeJSONObject {
		m.ResponseMIMEType = "application/json"
	}

	var system []genai.Part
	var turns []*genai.Content
	for _, msg := range req.Messages {
		switch msg.Role {
		case openai.ChatMessageRoleSystem:
			system = append(system, genai.Text(msg.Content))
		case openai.ChatMessageRoleAssistant:
			turns = append(turns, &genai.Content{Role: "model", Parts: []genai.Part{genai.Text(msg.Content)}})
		default:
			turns = append(turns, &genai.Content{Role: "user", Parts: []genai.Part{genai.Text(msg.Content)}})
		}
	}
	if len(system) > 0 {
		m.SystemInstruction = &genai.Content{Parts: system}
	}
	if len(turns) == 0 || turns[len(turns)-1].Role != "user" {
		return nil, nil, errors.New("gemini: request must end with a user message")
	}
	cs := m.StartChat()
	cs.History = turns[:len(turns)-1]
	return cs, turns[len(turns)-1].Parts, nil
}

func (g *GeminiProvider) CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	cs, last, err := g.session(req)
	if err != nil {
		return openai.ChatCompletionResponse{}, err
	}
	resp, err := cs.SendMessage(ctx, last...)
	if err != nil {
		return openai.ChatCompletionResponse{}, fmt.Errorf("gemini generate: %w", err)
	}
	out := openai.ChatCompletionResponse{Object: "chat.completion", Model: req.Model}
	for i, c := range resp.Candidates {
		out.Choices = append(out.Choices, openai.ChatCompletionChoice{
			Index:        i,
			Message:      openai.ChatCompletionMessage{Role: openai.ChatMessageRoleAssistant, Content: contentText(c.Content)},
			FinishReason: openai.FinishReasonStop,
		})
	}
	if u := resp.UsageMetadata; u != nil {
		out.Usage = openai.Usage{
			PromptTokens:     int(u.PromptTokenCount),
			CompletionTokens: int(u.CandidatesTokenCount),
			TotalTokens:      int(u.TotalTokenCount),
		}
	}
	return out, nil
}

func (g *GeminiProvider) CreateChatStream(ctx context.Context, req openai.ChatCompletionRequest) (ChunkStream, error) {
	cs, last, err := g.session(req)
	if err != nil {
		return nil, err
	}
	return &geminiStream{it: cs.SendMessageStream(ctx, last...)}, nil
}

// ListModels reports model ids without the "models/" prefix.
func (g *GeminiProvider) ListModels(ctx context.Context) (openai.ModelsList, error) {
	var out openai.ModelsList
	it := g.client.ListModels(ctx)
	for {
		info, err := it.Next()
		if errors.Is(err, iterator.Done) {
			return out, nil
		}
		if err != nil {
			return out, fmt.Errorf("gemini list models: %w", err)
		}
		out.Models = append(out.Models, openai.Model{ID: strings.TrimPrefix(info.Name, "models/"), OwnedBy: "google"})
	}
}

type geminiStream struct {
	it *genai.GenerateContentResponseIterator
}

func (s *geminiStream) Recv() (string, error) {
	for {
		resp, err := s.it.Next()
		if errors.Is(err, iterator.Done) {
			return "", io.EOF
		}
		if err != nil {
			return "", err
		}
		if len(resp.Candidates) == 0 {
			continue
		}
		if text := contentText(resp.Candidates[0].Content); text != "" {
			return text, nil
		}
	}
}

func (s *geminiStream) Close() error { return nil }

func contentText(c *genai.Content) string {
	if c == nil {
		return ""
	}
	var b strings.Builder
	for _, p := range c.Parts {
		if t, ok := p.(genai.Text); ok {
			b.WriteString(string(t))
		}
	}
	return b.String()
}
