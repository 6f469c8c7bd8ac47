package services

import (
	"context"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/cliniccompass/cliniccompass-backend/internal/i18n"
	"github.com/cliniccompass/cliniccompass-backend/internal/llm"
	"github.com/cliniccompass/cliniccompass-backend/internal/models"
)

// AssistantService answers free-form questions about the user's
// medications and visits. It always produces a message.
type AssistantService struct {
	provider llm.Provider
	catalog  *i18n.Catalog
	logger   zerolog.Logger
}

func NewAssistantService(provider llm.Provider, catalog *i18n.Catalog, logger zerolog.Logger) *AssistantService {
	return &AssistantService{provider: provider, catalog: catalog, logger: logger}
}

// Reply answers message. Only the latest message and a summary of hc reach
// the model; earlier turns of the conversation are not sent.
func (s *AssistantService) Reply(ctx context.Context, message string, hc *HealthContext, lang i18n.Lang) models.ChatMessage {
	if hc == nil {
		hc = &HealthContext{}
	}

	system := s.catalog.Format(lang, "chat.system_prompt", map[string]string{
		"context": s.contextSummary(hc, lang),
	})
	res := s.provider.Complete(ctx, llm.Request{
		System:      system,
		User:        strings.TrimSpace(message),
		Temperature: 0.7,
		MaxTokens:   300,
	})

	var content string
	switch res.Kind {
	case llm.OK:
		content = res.Text
	case llm.QuotaExceeded:
		s.logger.Warn().Err(res.Err).Msg("llm quota exceeded; using demo chat reply")
		content = s.DemoReply(message, hc, lang)
	default:
		s.logger.Error().Err(res.Err).Msg("chat request failed")
		content = s.catalog.T(lang, "chat.apology")
	}
	return models.ChatMessage{Role: models.RoleAssistant, Content: content}
}

func (s *AssistantService) contextSummary(hc *HealthContext, lang i18n.Lang) string {
	var b strings.Builder
	if len(hc.Medications) > 0 {
		items := make([]string, len(hc.Medications))
		for i, m := range hc.Medications {
			items[i] = m.Name + " (" + m.Dosage + ", " + string(m.Frequency) + ")"
		}
		b.WriteString("\n\n")
		b.WriteString(s.catalog.Format(lang, "chat.context.medications", map[string]string{
			"medications": strings.Join(items, ", "),
		}))
	}
	if next := hc.Visits.Next(); next != nil {
		b.WriteString("\n\n")
		b.WriteString(s.catalog.Format(lang, "chat.context.next_visit", visitArgs(next, lang)))
	}
	return b.String()
}

// DemoReply picks a canned answer by looking for a few phrases in message.
func (s *AssistantService) DemoReply(message string, hc *HealthContext, lang i18n.Lang) string {
	lower := strings.ToLower(message)

	if containsAny(lower, []string{"side effect", "efecto", "secundario"}) && len(hc.Medications) > 0 {
		return s.catalog.Format(lang, "chat.demo.side_effects", map[string]string{
			"medication": hc.Medications[0].Name,
		})
	}
	if containsAny(lower, []string{"next visit", "appointment", "próxima", "cita"}) {
		if next := hc.Visits.Next(); next != nil {
			return s.catalog.Format(lang, "chat.demo.next_visit", visitArgs(next, lang))
		}
		return s.catalog.T(lang, "chat.demo.no_visits")
	}
	if containsAny(lower, []string{"together", "interact", "juntas", "interacción"}) {
		return s.catalog.T(lang, "chat.demo.interactions")
	}
	return s.catalog.T(lang, "chat.demo.default")
}

// QuickQuestions are suggested openers shown before the first message.
func (s *AssistantService) QuickQuestions(lang i18n.Lang) []string {
	return s.catalog.List(lang, "chat.quick_questions")
}

func visitArgs(v *models.Visit, lang i18n.Lang) map[string]string {
	return map[string]string{
		"doctor":   v.DoctorName,
		"hospital": v.Hospital,
		"date":     formatVisitDate(v.Date, lang),
	}
}

func formatVisitDate(t time.Time, lang i18n.Lang) string {
	if lang == i18n.Spanish {
		return t.Format("02/01/2006 15:04")
	}
	return t.Format("Jan 2, 2006 3:04 PM")
}
