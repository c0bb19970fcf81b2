package capsule_test

import (
	"sort"
	"strings"
	"testing"

	"github.com/westonopentrain/capsule-match/internal/capsule"
	"github.com/westonopentrain/capsule-match/internal/classify"
)

func TestForJob_EmptyPostingFails(t *testing.T) {
	_, err := capsule.ForJob(classify.NormalizedJobPosting{}, capsule.RequirementsView{})
	if err == nil {
		t.Fatal("ForJob() error = nil, want error for empty title and description")
	}
}

func TestForJob_BuildsDomainAndTaskText(t *testing.T) {
	job := classify.NormalizedJobPosting{
		Title:       "Contract Attorney",
		Description: "Review vendor agreements",
		Credentials: []string{"JD", "Bar admission"},
		Languages:   []string{"English"},
		Countries:   []string{"US"},
	}
	req := capsule.RequirementsView{
		SubjectMatterCodes: []string{"legal:contracts"},
		ExpertiseTier:      "specialist",
	}

	c, err := capsule.ForJob(job, req)
	if err != nil {
		t.Fatalf("ForJob() error = %v", err)
	}
	if !strings.Contains(c.DomainText, "Contract Attorney") {
		t.Errorf("DomainText = %q, want it to contain the job title", c.DomainText)
	}
	if !strings.Contains(c.DomainText, "legal:contracts") {
		t.Errorf("DomainText = %q, want it to contain the subject matter code", c.DomainText)
	}
	if !strings.Contains(c.TaskText, "expertise tier: specialist") {
		t.Errorf("TaskText = %q, want it to contain the expertise tier", c.TaskText)
	}
	if !strings.Contains(c.TaskText, "English") {
		t.Errorf("TaskText = %q, want it to contain languages", c.TaskText)
	}
}

func TestForJob_OmitsEmptyParts(t *testing.T) {
	job := classify.NormalizedJobPosting{Title: "Generic task"}
	c, err := capsule.ForJob(job, capsule.RequirementsView{})
	if err != nil {
		t.Fatalf("ForJob() error = %v", err)
	}
	if strings.Contains(c.DomainText, "subject matter") {
		t.Errorf("DomainText = %q, want no 'subject matter' label when codes are empty", c.DomainText)
	}
	if strings.Contains(c.DomainText, "credentials required") {
		t.Errorf("DomainText = %q, want no 'credentials required' label when empty", c.DomainText)
	}
}

func TestForUser_EmptyProfileFails(t *testing.T) {
	_, err := capsule.ForUser(classify.NormalizedUserProfile{}, nil, "")
	if err == nil {
		t.Fatal("ForUser() error = nil, want error for empty bio and credentials")
	}
}

func TestForUser_BuildsDomainAndTaskText(t *testing.T) {
	profile := classify.NormalizedUserProfile{
		Bio:                   "Experienced immigration paralegal",
		Credentials:           []string{"Paralegal certificate"},
		Languages:             []string{"English", "Spanish"},
		YearsExperience:       6,
		HasLabelingExperience: true,
	}

	c, err := capsule.ForUser(profile, []string{"legal:immigration"}, "expert")
	if err != nil {
		t.Fatalf("ForUser() error = %v", err)
	}
	if !strings.Contains(c.DomainText, "immigration paralegal") {
		t.Errorf("DomainText = %q, want it to contain the bio", c.DomainText)
	}
	if !strings.Contains(c.DomainText, "legal:immigration") {
		t.Errorf("DomainText = %q, want it to contain the subject matter code", c.DomainText)
	}
	if !strings.Contains(c.TaskText, "years experience: 6") {
		t.Errorf("TaskText = %q, want it to contain years experience", c.TaskText)
	}
	if !strings.Contains(c.TaskText, "labeling experience: true") {
		t.Errorf("TaskText = %q, want it to contain labeling experience", c.TaskText)
	}
}

func TestForUser_CredentialsOnlyIsValid(t *testing.T) {
	profile := classify.NormalizedUserProfile{Credentials: []string{"MD"}}
	_, err := capsule.ForUser(profile, nil, "specialist")
	if err != nil {
		t.Fatalf("ForUser() error = %v, want nil when credentials alone are present", err)
	}
}

func TestKeywords_AreLowercaseDedupedAndSorted(t *testing.T) {
	job := classify.NormalizedJobPosting{Title: "Legal Legal Review", Description: "contract contract analysis"}
	c, err := capsule.ForJob(job, capsule.RequirementsView{})
	if err != nil {
		t.Fatalf("ForJob() error = %v", err)
	}

	seen := make(map[string]bool)
	for _, k := range c.Keywords {
		if k != strings.ToLower(k) {
			t.Errorf("Keywords contains %q, want lowercase", k)
		}
		if seen[k] {
			t.Errorf("Keywords contains duplicate %q", k)
		}
		seen[k] = true
	}
	if !sort.StringsAreSorted(c.Keywords) {
		t.Errorf("Keywords = %v, want sorted order", c.Keywords)
	}
}
