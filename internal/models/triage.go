package models

type Severity string

const (
	SeverityHome      Severity = "home"
	SeverityClinic    Severity = "clinic"
	SeverityEmergency Severity = "emergency"
)

// ParseSeverity maps a model-supplied value to a Severity. Anything outside
// the three known values is treated as clinic.
func ParseSeverity(s string) Severity {
	switch Severity(s) {
	case SeverityHome, SeverityClinic, SeverityEmergency:
		return Severity(s)
	}
	return SeverityClinic
}

type TriageResult struct {
	Severity    Severity `json:"severity"`
	Explanation string   `json:"explanation"`
	Advice      string   `json:"advice"`
	Disclaimer  string   `json:"disclaimer"`
	Demo        bool     `json:"isDemo"`
}
