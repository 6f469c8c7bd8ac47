package services

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cliniccompass/cliniccompass-backend/internal/i18n"
	"github.com/cliniccompass/cliniccompass-backend/internal/llm"
	"github.com/cliniccompass/cliniccompass-backend/internal/models"
)

func sampleContext() *HealthContext {
	next := models.Visit{DoctorName: "Dr. Ruiz", Hospital: "General", Date: time.Date(2026, 10, 20, 15, 30, 0, 0, time.UTC)}
	return &HealthContext{
		Medications: []models.Medication{{Name: "Aspirin", Dosage: "100mg", Frequency: models.FrequencyDaily}},
		Visits:      models.VisitList{Upcoming: []models.Visit{next}, All: []models.Visit{next}},
	}
}

func TestReply_SendsContextInSystemPrompt(t *testing.T) {
	provider := &llm.Static{Result: llm.Success("Take it with water.")}
	svc := NewAssistantService(provider, i18n.Default(), zerolog.Nop())

	msg := svc.Reply(context.Background(), "  how do I take it?  ", sampleContext(), i18n.English)
	assert.Equal(t, models.RoleAssistant, msg.Role)
	assert.Equal(t, "Take it with water.", msg.Content)

	calls := provider.Calls()
	require.Len(t, calls, 1)
	req := calls[0]
	assert.Equal(t, "how do I take it?", req.User)
	assert.Equal(t, float32(0.7), req.Temperature)
	assert.EqualValues(t, 300, req.MaxTokens)
	assert.Contains(t, req.System, "User's current medications: Aspirin (100mg, daily)")
	assert.Contains(t, req.System, "Next visit: Dr. Ruiz at General on Oct 20, 2026 3:30 PM")
	assert.NotContains(t, req.System, "{context}")
}

func TestReply_SpanishPromptWithoutContext(t *testing.T) {
	provider := &llm.Static{Result: llm.Success("ok")}
	svc := NewAssistantService(provider, i18n.Default(), zerolog.Nop())

	svc.Reply(context.Background(), "hola", nil, i18n.Spanish)

	req := provider.Calls()[0]
	assert.True(t, strings.HasPrefix(req.System, "Eres un asistente médico"))
	assert.NotContains(t, req.System, "Medicinas actuales")
}

func TestReply_Fallbacks(t *testing.T) {
	cat := i18n.Default()

	quota := NewAssistantService(&llm.Static{Result: llm.Quota(errors.New("429"))}, cat, zerolog.Nop())
	msg := quota.Reply(context.Background(), "hello", sampleContext(), i18n.English)
	assert.Equal(t, cat.T(i18n.English, "chat.demo.default"), msg.Content)

	failed := NewAssistantService(&llm.Static{Result: llm.Failure(errors.New("boom"))}, cat, zerolog.Nop())
	msg = failed.Reply(context.Background(), "hello", sampleContext(), i18n.Spanish)
	assert.Equal(t, models.RoleAssistant, msg.Role)
	assert.Equal(t, cat.T(i18n.Spanish, "chat.apology"), msg.Content)
}

func TestDemoReply(t *testing.T) {
	cat := i18n.Default()
	svc := NewAssistantService(&llm.Static{}, cat, zerolog.Nop())
	hc := sampleContext()
	empty := &HealthContext{}

	tests := []struct {
		name    string
		message string
		hc      *HealthContext
		lang    i18n.Lang
		want    string
	}{
		{"side effects", "Any side effects?", hc, i18n.English,
			cat.Format(i18n.English, "chat.demo.side_effects", map[string]string{"medication": "Aspirin"})},
		{"side effects without medications", "Any side effects?", empty, i18n.English,
			cat.T(i18n.English, "chat.demo.default")},
		{"next visit", "When is my next visit?", hc, i18n.English,
			cat.Format(i18n.English, "chat.demo.next_visit", map[string]string{"doctor": "Dr. Ruiz", "hospital": "General", "date": "Oct 20, 2026 3:30 PM"})},
		{"next visit in spanish", "¿Cuándo es mi cita?", hc, i18n.Spanish,
			cat.Format(i18n.Spanish, "chat.demo.next_visit", map[string]string{"doctor": "Dr. Ruiz", "hospital": "General", "date": "20/10/2026 15:30"})},
		{"no visits", "my next appointment?", empty, i18n.English,
			cat.T(i18n.English, "chat.demo.no_visits")},
		{"interactions", "Can I take these together?", hc, i18n.English,
			cat.T(i18n.English, "chat.demo.interactions")},
		{"default", "hello", hc, i18n.Spanish,
			cat.T(i18n.Spanish, "chat.demo.default")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, svc.DemoReply(tt.message, tt.hc, tt.lang))
		})
	}
}

func TestQuickQuestions(t *testing.T) {
	svc := NewAssistantService(&llm.Static{}, i18n.Default(), zerolog.Nop())
	assert.NotEmpty(t, svc.QuickQuestions(i18n.English))
	assert.Len(t, svc.QuickQuestions(i18n.Spanish), len(svc.QuickQuestions(i18n.English)))
}
