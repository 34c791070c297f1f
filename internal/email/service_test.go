package email

import (
	"strings"
	"testing"
)

func TestServiceIsConfigured(t *testing.T) {
	tests := []struct {
		name     string
		config   Config
		expected bool
	}{
		{
			name:     "empty config",
			config:   Config{},
			expected: false,
		},
		{
			name: "missing host",
			config: Config{
				Port: "587",
				From: "noreply@upatras.gr",
			},
			expected: false,
		},
		{
			name: "missing port",
			config: Config{
				Host: "smtp.upatras.gr",
				From: "noreply@upatras.gr",
			},
			expected: false,
		},
		{
			name: "missing from",
			config: Config{
				Host: "smtp.upatras.gr",
				Port: "587",
			},
			expected: false,
		},
		{
			name: "fully configured",
			config: Config{
				Host: "smtp.upatras.gr",
				Port: "587",
				From: "noreply@upatras.gr",
			},
			expected: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := NewService(tt.config)
			if svc.IsConfigured() != tt.expected {
				t.Errorf("IsConfigured() = %v, want %v", svc.IsConfigured(), tt.expected)
			}
		})
	}
}

func TestRenderInvitationTemplate(t *testing.T) {
	data := InvitationData{
		AppName:        "ThesisDesk",
		ProfessorName:  "Nikos Ioannou",
		SupervisorName: "Eleni Papadaki",
		ThesisTitle:    "Stream processing for sensor networks",
	}

	html, err := renderTemplate(invitationEmailTemplate, data)
	if err != nil {
		t.Fatalf("renderTemplate failed: %v", err)
	}

	if !strings.Contains(html, "ThesisDesk") {
		t.Error("template should contain app name")
	}
	if !strings.Contains(html, "Nikos Ioannou") {
		t.Error("template should contain the invited professor")
	}
	if !strings.Contains(html, "Eleni Papadaki") {
		t.Error("template should contain the supervisor")
	}
	if !strings.Contains(html, "Stream processing for sensor networks") {
		t.Error("template should contain the thesis title")
	}
}

func TestRenderInvitationResponseTemplate(t *testing.T) {
	t.Run("accepted", func(t *testing.T) {
		html, err := renderTemplate(invitationResponseEmailTemplate, InvitationResponseData{
			AppName:        "ThesisDesk",
			SupervisorName: "Eleni Papadaki",
			ProfessorName:  "Nikos Ioannou",
			ThesisTitle:    "Stream processing for sensor networks",
			Accepted:       true,
		})
		if err != nil {
			t.Fatalf("renderTemplate failed: %v", err)
		}
		if !strings.Contains(html, "accepted") {
			t.Error("template should mention acceptance")
		}
	})

	t.Run("declined", func(t *testing.T) {
		html, err := renderTemplate(invitationResponseEmailTemplate, InvitationResponseData{
			AppName:        "ThesisDesk",
			SupervisorName: "Eleni Papadaki",
			ProfessorName:  "Nikos Ioannou",
			ThesisTitle:    "Stream processing for sensor networks",
			Accepted:       false,
		})
		if err != nil {
			t.Fatalf("renderTemplate failed: %v", err)
		}
		if !strings.Contains(html, "declined") {
			t.Error("template should mention the decline")
		}
	})
}
