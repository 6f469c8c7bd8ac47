package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/cliniccompass/cliniccompass-backend/internal/i18n"
	"github.com/cliniccompass/cliniccompass-backend/internal/llm"
	"github.com/cliniccompass/cliniccompass-backend/internal/models"
	"github.com/cliniccompass/cliniccompass-backend/pkg/utils"
)

const maxChecklistQuestions = 3

// TriageService classifies free-text symptoms into home, clinic or
// emergency care.
type TriageService struct {
	provider llm.Provider
	catalog  *i18n.Catalog
	logger   zerolog.Logger
}

func NewTriageService(provider llm.Provider, catalog *i18n.Catalog, logger zerolog.Logger) *TriageService {
	return &TriageService{provider: provider, catalog: catalog, logger: logger}
}

type triageReply struct {
	Severity    string `json:"severity"`
	Explanation string `json:"explanation"`
	Advice      string `json:"advice"`
}

// Analyze asks the model for a severity. When the provider is out of quota
// it falls back to keyword matching and marks the result as a demo.
// Emergency keywords always win over the model's answer.
func (s *TriageService) Analyze(ctx context.Context, symptoms string, lang i18n.Lang) (*models.TriageResult, error) {
	symptoms = strings.TrimSpace(symptoms)
	if symptoms == "" {
		return nil, &utils.ValidationError{Field: "symptoms", Key: "error.describe_symptoms"}
	}

	res := s.provider.Complete(ctx, llm.Request{
		System:      s.catalog.T(lang, "triage.system_prompt"),
		User:        symptoms,
		Temperature: 0.3,
		MaxTokens:   400,
	})

	switch res.Kind {
	case llm.QuotaExceeded:
		s.logger.Warn().Err(res.Err).Msg("llm quota exceeded; using keyword triage")
		return s.Fallback(symptoms, lang), nil
	case llm.Failed:
		s.logger.Error().Err(res.Err).Msg("triage request failed")
		return nil, fmt.Errorf("%w: %v", ErrTriageUnavailable, res.Err)
	}

	result := s.parse(res.Text, lang)
	if IsEmergency(symptoms) && result.Severity != models.SeverityEmergency {
		s.logger.Info().Str("model_severity", string(result.Severity)).Msg("emergency keywords override model severity")
		result.Severity = models.SeverityEmergency
		result.Explanation = s.catalog.T(lang, "triage.emergency.explanation")
		result.Advice = s.catalog.T(lang, "triage.emergency.advice")
	}
	result.Disclaimer = s.catalog.T(lang, "triage.disclaimer")
	return result, nil
}

// parse reads the model's JSON reply, tolerating Markdown fences and prose
// around the object. Missing fields come from the catalog for the parsed
// severity. A reply that is not JSON becomes a clinic recommendation with
// the raw reply as the explanation.
func (s *TriageService) parse(text string, lang i18n.Lang) *models.TriageResult {
	var reply triageReply
	obj, ok := extractJSONObject(text)
	if !ok || json.Unmarshal([]byte(obj), &reply) != nil {
		return &models.TriageResult{
			Severity:    models.SeverityClinic,
			Explanation: strings.TrimSpace(text),
			Advice:      s.catalog.T(lang, "triage.consult_doctor"),
		}
	}

	severity := models.ParseSeverity(strings.ToLower(strings.TrimSpace(reply.Severity)))
	explanation := strings.TrimSpace(reply.Explanation)
	if explanation == "" {
		explanation = s.catalog.T(lang, "triage."+string(severity)+".explanation")
	}
	advice := strings.TrimSpace(reply.Advice)
	if advice == "" {
		advice = s.catalog.T(lang, "triage.consult_doctor")
	}
	return &models.TriageResult{
		Severity:    severity,
		Explanation: explanation,
		Advice:      advice,
	}
}

func extractJSONObject(text string) (string, bool) {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end <= start {
		return "", false
	}
	return text[start : end+1], true
}

// Fallback is the keyword triage used in demo mode. It is deterministic for
// a given text and language.
func (s *TriageService) Fallback(symptoms string, lang i18n.Lang) *models.TriageResult {
	severity := ClassifySymptoms(symptoms)
	return &models.TriageResult{
		Severity:    severity,
		Explanation: s.catalog.T(lang, "triage."+string(severity)+".explanation"),
		Advice:      s.catalog.T(lang, "triage."+string(severity)+".advice"),
		Disclaimer:  s.catalog.T(lang, "triage.demo_disclaimer"),
		Demo:        true,
	}
}

// GenerateChecklist returns what to bring to a visit. Home care needs no
// checklist. Up to three model-suggested questions follow the fixed items;
// if the model fails only the fixed items are returned.
func (s *TriageService) GenerateChecklist(ctx context.Context, symptoms string, severity models.Severity, lang i18n.Lang) []string {
	if severity == models.SeverityHome {
		return nil
	}
	checklist := s.catalog.List(lang, "checklist.base")

	res := s.provider.Complete(ctx, llm.Request{
		User:        s.catalog.Format(lang, "checklist.prompt", map[string]string{"symptoms": strings.TrimSpace(symptoms)}),
		Temperature: 0.7,
		MaxTokens:   200,
	})
	if res.Kind != llm.OK {
		s.logger.Debug().Err(res.Err).Str("kind", res.Kind.String()).Msg("checklist questions unavailable")
		return checklist
	}

	added := 0
	for _, line := range strings.Split(res.Text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		checklist = append(checklist, line)
		added++
		if added == maxChecklistQuestions {
			break
		}
	}
	return checklist
}
