package ollama

import (
	"testing"
)

func TestParseAnalysisResult(t *testing.T) {
	raw := "```json\n{\n  // subject\n  \"primary\": {\"label\": \"bear\", \"confidence\": 0.9, \"box\": {\"x\": 0.1, \"y\": 0.2, \"w\": 0.3, \"h\": 0.4},},\n  \"tags\": [\"animal\",],\n}\n```"

	result := parseAnalysisResult(raw)
	if result.Primary.Label != "bear" {
		t.Errorf("Expected label bear, got %q", result.Primary.Label)
	}
	if result.Primary.Confidence != 0.9 {
		t.Errorf("Expected confidence 0.9, got %f", result.Primary.Confidence)
	}
	if result.Primary.Box.W != 0.3 || result.Primary.Box.H != 0.4 {
		t.Errorf("Unexpected box %+v", result.Primary.Box)
	}
}

func TestParseAnalysisResultWithProse(t *testing.T) {
	result := parseAnalysisResult(`Sure! {"primary": {"label": "osprey", "confidence": 0.7}} Hope that helps.`)
	if result.Primary.Label != "osprey" {
		t.Errorf("Expected label osprey, got %q", result.Primary.Label)
	}
}

func TestParseAnalysisResultFallback(t *testing.T) {
	for _, raw := range []string{"I cannot see an image.", `{"primary": {"label": }}`} {
		result := parseAnalysisResult(raw)
		if result.Primary.Label != "none" {
			t.Errorf("Expected fallback for %q, got %q", raw, result.Primary.Label)
		}
		if result.Primary.Confidence != 0 {
			t.Errorf("Expected zero confidence for %q", raw)
		}
	}
}

func TestSanitizeModelJSON(t *testing.T) {
	got := sanitizeModelJSON("/* note */ {\"a\": [1, 2,], }")
	if got != `{"a": [1, 2] }` {
		t.Errorf("Unexpected sanitized JSON %q", got)
	}
}

func TestNewClient(t *testing.T) {
	if _, err := NewClient("http://localhost:11434/api/chat"); err != nil {
		t.Errorf("Expected valid URL, got %v", err)
	}
	if _, err := NewClient("localhost"); err == nil {
		t.Error("Expected error for URL without scheme")
	}
}
