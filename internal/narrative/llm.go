package narrative

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"strings"
	"time"

	anthropic "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	json "github.com/goccy/go-json"
)

const systemPrompt = "You are a pension fund eligibility reviewer. You receive an anonymized description of a pension case and assess, strictly from the stated facts, how well supported the claim is. Respond with strict JSON only."

const analysisSchema = `{"analysis": "<plain-text assessment, 2-5 paragraphs>", "confidence": <number between 0 and 1>}`

type failureClass int

const (
	failureTimeout failureClass = iota
	failureRateLimit
	failureServer
	failureClient
)

// Caller produces raw model output for a prompt. LLMAnalyzer layers the
// retry and parsing discipline on top of it.
type Caller interface {
	GenerateJSON(ctx context.Context, prompt string) (string, error)
}

// Messager is the slice of the Anthropic SDK the caller needs; tests
// substitute their own.
type Messager interface {
	New(ctx context.Context, params anthropic.MessageNewParams, opts ...option.RequestOption) (*anthropic.Message, error)
}

type clientCreator func(apiKey string) Messager

func defaultCreator(apiKey string) Messager {
	c := anthropic.NewClient(option.WithAPIKey(apiKey))
	return &c.Messages
}

var newMessager clientCreator = defaultCreator

// AnthropicCaller sends prompts to the Anthropic API.
type AnthropicCaller struct {
	messages Messager
}

func (a *AnthropicCaller) GenerateJSON(ctx context.Context, prompt string) (string, error) {
	resp, err := a.messages.New(ctx, anthropic.MessageNewParams{
		Model:       anthropic.ModelClaudeSonnet4_20250514,
		MaxTokens:   2048,
		System:      []anthropic.TextBlockParam{{Text: systemPrompt}},
		Messages:    []anthropic.MessageParam{anthropic.NewUserMessage(anthropic.NewTextBlock(prompt))},
		Temperature: anthropic.Float(0),
	})
	if err != nil {
		return "", err
	}
	var sb strings.Builder
	for _, b := range resp.Content {
		if b.Type == "text" {
			sb.WriteString(b.Text)
		}
	}
	return sb.String(), nil
}

// CallMetrics counts what one analysis cost: total model calls and how many
// were retries forced by unusable content.
type CallMetrics struct {
	Attempts       int
	ContentRetries int
}

// LLMAnalyzer runs the eligibility assessment against the model directly,
// with retry-and-feedback handling for malformed responses.
type LLMAnalyzer struct {
	caller      Caller
	LastMetrics CallMetrics
}

func NewLLMAnalyzer(caller Caller) *LLMAnalyzer {
	return &LLMAnalyzer{caller: caller}
}

// NewLLMAnalyzerFromEnv wires the analyzer from ANTHROPIC_API_KEY. The
// INTAKE_NO_LLM switch forces the error path so deployments without model
// access fail loudly at startup rather than per request.
func NewLLMAnalyzerFromEnv() (*LLMAnalyzer, error) {
	if envEnabled("INTAKE_NO_LLM") {
		return nil, errors.New("LLM analysis disabled by INTAKE_NO_LLM")
	}
	apiKey := strings.TrimSpace(os.Getenv("ANTHROPIC_API_KEY"))
	if apiKey == "" {
		return nil, errors.New("ANTHROPIC_API_KEY not configured")
	}
	return NewLLMAnalyzer(&AnthropicCaller{messages: newMessager(apiKey)}), nil
}

// Analyze sends the case description and parses the JSON verdict. Transient
// transport failures and unusable content each get up to three attempts;
// content retries feed the model a corrective note along with the original
// prompt.
func (a *LLMAnalyzer) Analyze(ctx context.Context, description string) (Result, error) {
	prompt := "Case description:\n\n" + description +
		"\n\nAssess the claim's eligibility support. Required JSON schema:\n" + analysisSchema

	var res Result
	metrics := CallMetrics{}
	feedback := ""
	for attempt := 1; attempt <= 3; attempt++ {
		metrics.Attempts = attempt
		fullPrompt := prompt + "\n\nRespond with only valid JSON matching the schema."
		if feedback != "" {
			fullPrompt += "\n\n" + feedback
		}

		raw, err := a.caller.GenerateJSON(ctx, fullPrompt)
		if err != nil {
			class := classifyTransportError(err)
			if class == failureTimeout || class == failureRateLimit || class == failureServer {
				if attempt < 3 {
					time.Sleep(backoffDelay(attempt))
					continue
				}
			}
			a.LastMetrics = metrics
			return Result{}, fmt.Errorf("eligibility analysis transport failure: %w", err)
		}

		raw = strings.TrimSpace(raw)
		if raw == "" {
			if attempt < 3 {
				metrics.ContentRetries++
				feedback = "Your previous response was empty. Respond with valid JSON."
				continue
			}
			a.LastMetrics = metrics
			return Result{}, errors.New("eligibility analysis failed: empty response")
		}

		clean := stripCodeFences(raw)
		if err := json.Unmarshal([]byte(clean), &res); err != nil {
			if attempt < 3 {
				metrics.ContentRetries++
				feedback = "Your previous response was not valid JSON. Respond with only valid JSON."
				continue
			}
			a.LastMetrics = metrics
			return Result{}, fmt.Errorf("eligibility analysis failed json parse: %w", err)
		}
		if err := validateResult(res); err != nil {
			if attempt < 3 {
				metrics.ContentRetries++
				feedback = fmt.Sprintf("Your response failed validation: %s. Fix these issues.", err)
				continue
			}
			a.LastMetrics = metrics
			return Result{}, fmt.Errorf("eligibility analysis failed validation: %w", err)
		}
		a.LastMetrics = metrics
		return res, nil
	}
	a.LastMetrics = metrics
	return Result{}, errors.New("eligibility analysis failed after retries")
}

func stripCodeFences(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```") {
		parts := strings.SplitN(s, "\n", 2)
		if len(parts) == 2 {
			s = parts[1]
		}
		s = strings.TrimPrefix(s, "json")
		s = strings.TrimSpace(strings.TrimSuffix(s, "```"))
	}
	return s
}

func classifyTransportError(err error) failureClass {
	msg := strings.ToLower(err.Error())
	if errors.Is(err, context.DeadlineExceeded) {
		return failureTimeout
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return failureTimeout
	}
	switch {
	case strings.Contains(msg, "429"):
		return failureRateLimit
	case strings.Contains(msg, "status code: 5"):
		return failureServer
	case strings.Contains(msg, "status code: 4"):
		return failureClient
	default:
		return failureServer
	}
}

func backoffDelay(attempt int) time.Duration {
	if attempt <= 1 {
		return 1 * time.Second
	}
	return 2 * time.Second
}

func envEnabled(name string) bool {
	switch strings.ToLower(strings.TrimSpace(os.Getenv(name))) {
	case "1", "true", "yes", "on":
		return true
	}
	return false
}
