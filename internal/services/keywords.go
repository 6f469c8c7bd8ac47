package services

import (
	"strings"

	"github.com/cliniccompass/cliniccompass-backend/internal/models"
)

// Placeholder safety net used when no model is available. Not a medical
// vocabulary.
var (
	emergencyKeywords = []string{
		"chest pain", "can't breathe", "breathing", "unconscious", "severe bleeding",
		"stroke", "heart attack", "dolor de pecho", "no puedo respirar", "sangrado severo",
	}
	clinicKeywords = []string{
		"fever", "pain", "infection", "cough", "vomit",
		"fiebre", "dolor", "infección", "tos", "vómito",
	}
)

func containsAny(text string, keywords []string) bool {
	for _, k := range keywords {
		if strings.Contains(text, k) {
			return true
		}
	}
	return false
}

// IsEmergency reports whether text mentions an emergency symptom.
func IsEmergency(text string) bool {
	return containsAny(strings.ToLower(text), emergencyKeywords)
}

// ClassifySymptoms is the keyword triage: emergency beats clinic, and
// anything else is home care.
func ClassifySymptoms(text string) models.Severity {
	lower := strings.ToLower(text)
	switch {
	case containsAny(lower, emergencyKeywords):
		return models.SeverityEmergency
	case containsAny(lower, clinicKeywords):
		return models.SeverityClinic
	}
	return models.SeverityHome
}
