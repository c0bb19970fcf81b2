package classify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/westonopentrain/capsule-match/internal/apperr"
	"github.com/westonopentrain/capsule-match/pkg/models"
)

// LLM calls an OpenAI-compatible chat completion endpoint to classify
// jobs and users, per §4.2's contractual rules. It never fails the
// pipeline directly: WithFallback wraps it so timeouts or malformed
// output fall through to Heuristic.
type LLM struct {
	apiKey   string
	model    string
	endpoint string
	client   *http.Client
}

// NewLLM creates an LLM-backed classifier.
func NewLLM(apiKey, model string) *LLM {
	return &LLM{
		apiKey:   apiKey,
		model:    model,
		endpoint: "https://api.openai.com/v1/chat/completions",
		client:   &http.Client{Timeout: 20 * time.Second},
	}
}

const jobClassifierSystemPrompt = `You classify freelance job postings for a talent marketplace into "specialized" or "generic".
Specialized: requires a professional credential (MD, PhD, JD, PE, CPA, RN, NP, PharmD, DDS, DMD) or a regulated professional title (radiologist, surgeon, attorney, physician, etc).
Generic: pure annotation/labeling/transcription/data-entry work, especially non-English tasks with no credential requirement.
Generic jobs MUST have empty subjectMatterCodes and empty acceptableSubjectCodes.
Respond with strict JSON matching the given schema only.`

type llmJobResponse struct {
	JobClass   string                 `json:"job_class"`
	Confidence float64                `json:"confidence"`
	Reasoning  string                 `json:"reasoning"`
	Requirements llmJobRequirements   `json:"requirements"`
}

type llmJobRequirements struct {
	Credentials             []string `json:"credentials"`
	MinimumExperienceYears  int      `json:"minimum_experience_years"`
	SubjectMatterCodes      []string `json:"subject_matter_codes"`
	AcceptableSubjectCodes  []string `json:"acceptable_subject_codes"`
	SubjectMatterStrictness string   `json:"subject_matter_strictness"`
	ExpertiseTier           string   `json:"expertise_tier"`
	Countries               []string `json:"countries"`
	Languages               []string `json:"languages"`
}

func (l *LLM) ClassifyJob(ctx context.Context, job NormalizedJobPosting) (models.JobClassification, error) {
	prompt := fmt.Sprintf("Title: %s\nDescription: %s\nCredentials listed: %v\nLanguages: %v\nCountries: %v",
		job.Title, job.Description, job.Credentials, job.Languages, job.Countries)

	body, err := l.chatJSON(ctx, jobClassifierSystemPrompt, prompt)
	if err != nil {
		return models.JobClassification{}, apperr.Wrap(apperr.CodeLLMFailure, err, "job classification call failed")
	}

	var parsed llmJobResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return models.JobClassification{}, apperr.Wrap(apperr.CodeLLMFailure, err, "malformed job classification output")
	}

	class := models.JobClass(parsed.JobClass)
	if class != models.JobClassSpecialized && class != models.JobClassGeneric {
		return models.JobClassification{}, apperr.New(apperr.CodeLLMFailure, "unrecognized job_class in LLM output")
	}

	req := models.JobRequirements{
		Credentials:             parsed.Requirements.Credentials,
		MinimumExperienceYears:  parsed.Requirements.MinimumExperienceYears,
		SubjectMatterCodes:      parsed.Requirements.SubjectMatterCodes,
		AcceptableSubjectCodes:  parsed.Requirements.AcceptableSubjectCodes,
		SubjectMatterStrictness: models.Strictness(parsed.Requirements.SubjectMatterStrictness),
		ExpertiseTier:           models.ExpertiseTier(parsed.Requirements.ExpertiseTier),
		Countries:               parsed.Requirements.Countries,
		Languages:               parsed.Requirements.Languages,
	}
	if class == models.JobClassGeneric {
		req.SubjectMatterCodes = nil
		req.AcceptableSubjectCodes = nil
	}
	if req.SubjectMatterStrictness == "" {
		req.SubjectMatterStrictness = models.StrictnessModerate
	}

	return models.JobClassification{
		JobClass:     class,
		Confidence:   parsed.Confidence,
		Requirements: req,
		Reasoning:    parsed.Reasoning,
		Source:       models.SourceLLM,
	}, nil
}

const userClassifierSystemPrompt = `You extract structured facts from a freelancer profile for a talent marketplace.
Respond with strict JSON matching the given schema only.`

type llmUserResponse struct {
	ExpertiseTier         string   `json:"expertise_tier"`
	Credentials           []string `json:"credentials"`
	SubjectMatterCodes    []string `json:"subject_matter_codes"`
	YearsExperience       int      `json:"years_experience"`
	HasLabelingExperience bool     `json:"has_labeling_experience"`
	Confidence            float64  `json:"confidence"`
}

func (l *LLM) ClassifyUser(ctx context.Context, profile NormalizedUserProfile) (models.UserClassification, error) {
	prompt := fmt.Sprintf("Bio: %s\nCredentials listed: %v\nYears experience: %d\nHas labeling experience: %v",
		profile.Bio, profile.Credentials, profile.YearsExperience, profile.HasLabelingExperience)

	body, err := l.chatJSON(ctx, userClassifierSystemPrompt, prompt)
	if err != nil {
		return models.UserClassification{}, apperr.Wrap(apperr.CodeLLMFailure, err, "user classification call failed")
	}

	var parsed llmUserResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return models.UserClassification{}, apperr.Wrap(apperr.CodeLLMFailure, err, "malformed user classification output")
	}

	return models.UserClassification{
		ExpertiseTier:         models.ExpertiseTier(parsed.ExpertiseTier),
		Credentials:           parsed.Credentials,
		SubjectMatterCodes:    parsed.SubjectMatterCodes,
		YearsExperience:       parsed.YearsExperience,
		HasLabelingExperience: parsed.HasLabelingExperience,
		Confidence:            parsed.Confidence,
		Source:                models.SourceLLM,
	}, nil
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model          string                 `json:"model"`
	Messages       []chatMessage          `json:"messages"`
	ResponseFormat map[string]interface{} `json:"response_format,omitempty"`
}

type chatChoice struct {
	Message chatMessage `json:"message"`
}

type chatResponse struct {
	Choices []chatChoice `json:"choices"`
	Error   *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

func (l *LLM) chatJSON(ctx context.Context, system, user string) ([]byte, error) {
	reqBody := chatRequest{
		Model: l.model,
		Messages: []chatMessage{
			{Role: "system", Content: system},
			{Role: "user", Content: user},
		},
		ResponseFormat: map[string]interface{}{"type": "json_object"},
	}

	payload, err := json.Marshal(reqBody)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, l.endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+l.apiKey)

	resp, err := l.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("chat completions API returned %d: %s", resp.StatusCode, string(respBody))
	}

	var result chatResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, fmt.Errorf("unmarshal chat response: %w", err)
	}
	if result.Error != nil {
		return nil, fmt.Errorf("chat completions error: %s", result.Error.Message)
	}
	if len(result.Choices) == 0 {
		return nil, fmt.Errorf("chat completions returned no choices")
	}

	log.Debug().Str("model", l.model).Msg("classifier LLM call completed")
	return []byte(result.Choices[0].Message.Content), nil
}
