// Package capsule builds the domain and task capsule texts embedded and
// indexed for each job or user (C3). It is pure: stable output for
// stable input, no external calls.
package capsule

import (
	"fmt"
	"sort"
	"strings"

	"github.com/westonopentrain/capsule-match/internal/apperr"
	"github.com/westonopentrain/capsule-match/internal/classify"
)

// Capsule is the pair of short texts built for one entity, plus the
// keywords extracted for downstream diagnostics/logging.
type Capsule struct {
	DomainText string
	TaskText   string
	Keywords   []string
}

// ForJob builds the domain/task capsule for a job posting. Fails with
// CodeValidation if the posting is effectively empty.
func ForJob(job classify.NormalizedJobPosting, req RequirementsView) (Capsule, error) {
	if strings.TrimSpace(job.Title) == "" && strings.TrimSpace(job.Description) == "" {
		return Capsule{}, apperr.New(apperr.CodeValidation, "job posting has no title or description")
	}

	domain := joinNonEmpty(
		job.Title,
		job.Description,
		labeledList("subject matter", req.SubjectMatterCodes),
		labeledList("credentials required", job.Credentials),
	)

	task := joinNonEmpty(
		fmt.Sprintf("expertise tier: %s", req.ExpertiseTier),
		labeledList("languages", job.Languages),
		labeledList("countries", job.Countries),
	)

	return Capsule{
		DomainText: domain,
		TaskText:   task,
		Keywords:   extractKeywords(job.Title + " " + job.Description),
	}, nil
}

// RequirementsView is the subset of a job's classification requirements
// the capsule builder needs, kept separate from models.JobRequirements so
// callers can pass partially-built data (e.g. before classification runs).
type RequirementsView struct {
	SubjectMatterCodes []string
	ExpertiseTier       string
}

// ForUser builds the domain/task capsule for a freelancer profile. Fails
// with CodeValidation if the profile has no content.
func ForUser(profile classify.NormalizedUserProfile, subjectMatterCodes []string, expertiseTier string) (Capsule, error) {
	if strings.TrimSpace(profile.Bio) == "" && len(profile.Credentials) == 0 {
		return Capsule{}, apperr.New(apperr.CodeValidation, "user profile has no bio or credentials")
	}

	domain := joinNonEmpty(
		profile.Bio,
		labeledList("subject matter", subjectMatterCodes),
		labeledList("credentials", profile.Credentials),
	)

	task := joinNonEmpty(
		fmt.Sprintf("expertise tier: %s", expertiseTier),
		fmt.Sprintf("years experience: %d", profile.YearsExperience),
		fmt.Sprintf("labeling experience: %v", profile.HasLabelingExperience),
		labeledList("languages", profile.Languages),
	)

	return Capsule{
		DomainText: domain,
		TaskText:   task,
		Keywords:   extractKeywords(profile.Bio),
	}, nil
}

func joinNonEmpty(parts ...string) string {
	var out []string
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return strings.Join(out, ". ")
}

func labeledList(label string, items []string) string {
	if len(items) == 0 {
		return ""
	}
	return fmt.Sprintf("%s: %s", label, strings.Join(items, ", "))
}

// extractKeywords does a minimal, deterministic lowercase-token split for
// diagnostics; it is not used for scoring, only for audit/log context.
func extractKeywords(text string) []string {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !('a' <= r && r <= 'z') && !('0' <= r && r <= '9')
	})
	seen := make(map[string]bool)
	var out []string
	for _, f := range fields {
		if len(f) < 3 || seen[f] {
			continue
		}
		seen[f] = true
		out = append(out, f)
	}
	sort.Strings(out)
	if len(out) > 20 {
		out = out[:20]
	}
	return out
}
