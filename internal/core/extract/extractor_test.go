package extract

import (
	"errors"
	"testing"
)

// fakeResolver maps tokens to session ids in memory.
type fakeResolver struct {
	tokens map[string]string
}

func (f *fakeResolver) ResolveToken(token string) (string, error) {
	if id, ok := f.tokens[token]; ok {
		return id, nil
	}
	return "", errors.New("session not found")
}

func testExtractor() *Extractor {
	return New(&fakeResolver{tokens: map[string]string{
		"AB12CD34": "sess-1",
		"ZZ99XX11": "sess-2",
	}})
}

func TestExtractTokenReference(t *testing.T) {
	e := testExtractor()

	tests := []struct {
		name        string
		text        string
		wantSession string
		wantCommand string
	}{
		{"hash marker", "session #AB12CD34 list files", "sess-1", "list files"},
		{"keyword colon", "session: AB12CD34 git status", "sess-1", "git status"},
		{"keyword only", "session AB12CD34 make test", "sess-1", "make test"},
		{"bare hash", "#AB12CD34 go vet ./...", "sess-1", "go vet ./..."},
		{"lowercase token", "session #ab12cd34 ls", "sess-1", "ls"},
		{"reference at the end", "run the linter session #AB12CD34", "sess-1", "the linter"},
		{"localized keyword", "会话 ZZ99XX11 运行测试", "sess-2", "测试"},
		{"surrounding lines", "session #AB12CD34\nplease re-run the failing tests", "sess-1", "re-run the failing tests"},
		{"lead-in stripped", "please run session #AB12CD34 npm install", "sess-1", "npm install"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := e.Extract(tt.text)
			if !ok {
				t.Fatalf("Extract(%q) found nothing", tt.text)
			}
			if got.SessionID != tt.wantSession {
				t.Errorf("session = %q, want %q", got.SessionID, tt.wantSession)
			}
			if got.Command != tt.wantCommand {
				t.Errorf("command = %q, want %q", got.Command, tt.wantCommand)
			}
		})
	}
}

func TestExtractUUIDReference(t *testing.T) {
	e := testExtractor()

	got, ok := e.Extract("please run ls in 2f1e4a6c-8b0d-4f3a-9c5e-7d2b1a0f9e8d")
	if !ok {
		t.Fatal("Extract found nothing")
	}
	if got.SessionID != "2f1e4a6c-8b0d-4f3a-9c5e-7d2b1a0f9e8d" {
		t.Errorf("session = %q", got.SessionID)
	}
	if got.Command != "ls in" {
		t.Errorf("command = %q, want %q", got.Command, "ls in")
	}
}

func TestExtractDrops(t *testing.T) {
	e := testExtractor()

	tests := []struct {
		name string
		text string
	}{
		{"no reference at all", "thanks, looks good!"},
		{"unknown token", "session #QQQQQQQQ ls"},
		{"reference but no command", "session #AB12CD34"},
		{"reference with only lead-ins", "please run session #AB12CD34"},
		{"empty text", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got, ok := e.Extract(tt.text); ok {
				t.Errorf("Extract(%q) = %+v, want drop", tt.text, got)
			}
		})
	}
}
