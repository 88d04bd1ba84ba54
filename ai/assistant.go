// Package ai wraps an OpenAI chat model behind two study-helper
// operations: structured assignment analysis and per-question-type
// guidance.
package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/eduassist/portalsync/records"
	pkgerrors "github.com/pkg/errors"
	"github.com/rs/zerolog"
	openai "github.com/sashabaranov/go-openai"
)

const defaultModel = openai.GPT4oMini

// ChatCompleter is the slice of the OpenAI client the assistant uses.
type ChatCompleter interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// Assistant answers study questions about scraped coursework.
type Assistant struct {
	client ChatCompleter
	model  string
	logger zerolog.Logger
}

// Option configures an Assistant.
type Option func(*Assistant)

// WithModel overrides the chat model.
func WithModel(model string) Option {
	return func(a *Assistant) { a.model = model }
}

// NewAssistant wires the helper around a chat client.
func NewAssistant(client ChatCompleter, logger zerolog.Logger, options ...Option) (*Assistant, error) {
	if client == nil {
		return nil, pkgerrors.New("[NewAssistant] chat client is required")
	}

	a := &Assistant{client: client, model: defaultModel, logger: logger}
	for _, opt := range options {
		opt(a)
	}
	return a, nil
}

// Analysis is the structured breakdown of one assignment.
type Analysis struct {
	KeyConcepts      []string `json:"key_concepts"`
	Objectives       []string `json:"objectives"`
	SuggestedSteps   []string `json:"suggested_steps"`
	Pitfalls         []string `json:"pitfalls"`
	EstimatedMinutes int      `json:"estimated_minutes"`
}

const analysisSystemPrompt = `You are a study assistant for a student.
Given an assignment, respond with a JSON object containing exactly these
keys: "key_concepts" (array of strings), "objectives" (array of
strings), "suggested_steps" (array of strings, in order), "pitfalls"
(array of strings) and "estimated_minutes" (integer). Respond with JSON
only.`

// AnalyzeAssignment asks the model for a structured study plan for one
// assignment.
func (a *Assistant) AnalyzeAssignment(ctx context.Context, assignment records.Assignment) (Analysis, error) {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Platform: %s\nTitle: %s\n", assignment.SourcePlatform, assignment.Title)
	if assignment.CourseRef != "" {
		fmt.Fprintf(&sb, "Course: %s\n", assignment.CourseRef)
	}
	if assignment.DueAt != nil {
		fmt.Fprintf(&sb, "Due: %s\n", assignment.DueAt.Format("2006-01-02 15:04"))
	}
	if assignment.Description != "" {
		fmt.Fprintf(&sb, "Description: %s\n", assignment.Description)
	}

	resp, err := a.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: a.model,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: analysisSystemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: sb.String()},
		},
	})
	if err != nil {
		return Analysis{}, pkgerrors.Wrap(err, "[Assistant.AnalyzeAssignment] chat completion")
	}
	if len(resp.Choices) == 0 {
		return Analysis{}, pkgerrors.New("[Assistant.AnalyzeAssignment] empty completion")
	}

	var analysis Analysis
	if err := json.Unmarshal([]byte(resp.Choices[0].Message.Content), &analysis); err != nil {
		a.logger.Warn().Err(err).Msg("assignment analysis was not valid JSON")
		return Analysis{}, pkgerrors.Wrap(err, "[Assistant.AnalyzeAssignment] decode analysis")
	}
	return analysis, nil
}

// QuestionType selects the guidance style for HelpWithQuestion.
type QuestionType string

const (
	MultipleChoice QuestionType = "multiple_choice"
	TrueFalse      QuestionType = "true_false"
	ShortAnswer    QuestionType = "short_answer"
	Essay          QuestionType = "essay"
	Math           QuestionType = "math"
	General        QuestionType = "general"
)

var questionPrompts = map[QuestionType]string{
	MultipleChoice: "Walk through eliminating wrong options before naming the best one, and explain the reasoning for each elimination.",
	TrueFalse:      "State whether the claim is true or false, then explain exactly which part makes it so.",
	ShortAnswer:    "Give a concise model answer, then list the facts it rests on.",
	Essay:          "Do not write the essay. Outline a thesis, supporting arguments and evidence the student should develop themselves.",
	Math:           "Solve step by step, stating the rule used at each step, and box the final answer on its own line.",
	General:        "Explain the underlying concept first, then answer the question.",
}

// HelpWithQuestion answers one coursework question with guidance suited
// to its type. Unknown types fall back to the general style.
func (a *Assistant) HelpWithQuestion(ctx context.Context, question string, qt QuestionType) (string, error) {
	if strings.TrimSpace(question) == "" {
		return "", pkgerrors.New("[Assistant.HelpWithQuestion] empty question")
	}

	style, ok := questionPrompts[qt]
	if !ok {
		a.logger.Debug().Str("question_type", string(qt)).Msg("unknown question type, using general guidance")
		style = questionPrompts[General]
	}

	resp, err := a.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: a.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: "You are a patient tutor helping a student understand their coursework. " + style},
			{Role: openai.ChatMessageRoleUser, Content: question},
		},
	})
	if err != nil {
		return "", pkgerrors.Wrap(err, "[Assistant.HelpWithQuestion] chat completion")
	}
	if len(resp.Choices) == 0 {
		return "", pkgerrors.New("[Assistant.HelpWithQuestion] empty completion")
	}
	return resp.Choices[0].Message.Content, nil
}
