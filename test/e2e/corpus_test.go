package e2e

import (
	"testing"

	"github.com/hyperjump/iasistente/internal/knowledge"
)

func TestBuildCorpus_domainsAreValidAndDistinct(t *testing.T) {
	c := BuildCorpus()
	if len(c.Documents) == 0 || len(c.TestCases) != len(c.Documents) {
		t.Fatalf("documents=%d test cases=%d", len(c.Documents), len(c.TestCases))
	}
	seen := make(map[string]bool)
	exts := make(map[string]bool)
	for _, d := range c.Documents {
		if err := knowledge.ValidateDomain(d.Domain); err != nil {
			t.Errorf("domain %q: %v", d.Domain, err)
		}
		if seen[d.Domain] {
			t.Errorf("duplicate domain %q", d.Domain)
		}
		seen[d.Domain] = true
		exts[d.Ext] = true
	}
	for _, ext := range SupportedFileExtensions {
		if !exts[ext] {
			t.Errorf("no corpus document uses %s", ext)
		}
	}
}

func TestBuildCorpus_signaturesAreUnique(t *testing.T) {
	c := BuildCorpus()
	for _, d := range c.Documents {
		if !containsPhrase(d, d.Signature) {
			t.Errorf("%s does not contain its signature", d.Domain)
		}
		for _, other := range c.Signatures(d.Domain) {
			if containsPhrase(d, other) {
				t.Errorf("%s contains another document's signature %q", d.Domain, other)
			}
		}
	}
}

func TestContainsPhrase(t *testing.T) {
	tests := []struct {
		doc     E2EDocument
		phrase  string
		contain bool
	}{
		{E2EDocument{Content: "la mitocondria produce energia"}, "mitocondria", true},
		{E2EDocument{Content: "la mitocondria produce energia"}, "ribosoma", false},
	}
	for i, tt := range tests {
		if got := containsPhrase(tt.doc, tt.phrase); got != tt.contain {
			t.Errorf("test %d: containsPhrase(%q) = %v, want %v", i, tt.phrase, got, tt.contain)
		}
	}
}
