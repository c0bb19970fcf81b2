package classify

import (
	"context"
	"strings"

	"github.com/westonopentrain/capsule-match/pkg/models"
)

// professionalCredentials are title abbreviations whose presence alone
// marks a job or profile as specialized (§4.2).
var professionalCredentials = []string{
	"md", "phd", "jd", "pe", "cpa", "rn", "np", "pharmd", "dds", "dmd",
}

// regulatedTitles are professional role words that imply specialization
// even without a credential abbreviation present.
var regulatedTitles = []string{
	"radiologist", "surgeon", "attorney", "physician", "psychiatrist",
	"pharmacist", "dentist", "cardiologist", "oncologist", "nurse practitioner",
}

// genericTaskVocabulary are phrases that mark a task as generic/annotation work.
var genericTaskVocabulary = []string{
	"bounding box", "tagging", "data entry", "entry-level", "entry level",
	"annotation", "labeling", "transcription",
}

// Heuristic is the deterministic fallback classifier (§4.2): it encodes
// the same contractual rules an LLM classifier must honor, with a fixed
// confidence of 0.5. It never fails and never blocks.
type Heuristic struct{}

// NewHeuristic creates a deterministic heuristic classifier.
func NewHeuristic() *Heuristic { return &Heuristic{} }

const heuristicConfidence = 0.5

func (h *Heuristic) ClassifyJob(_ context.Context, job NormalizedJobPosting) (models.JobClassification, error) {
	text := strings.ToLower(job.Title + " " + job.Description)
	hasCredential := hasAny(job.Credentials, professionalCredentials) || containsAny(text, professionalCredentials)
	hasRegulatedTitle := containsAny(text, regulatedTitles)

	nonEnglish := isNonEnglishOnly(job.Languages)
	genericVocab := containsAny(text, genericTaskVocabulary)

	specialized := hasCredential || hasRegulatedTitle
	if !specialized && nonEnglish && genericVocab && !hasCredential {
		specialized = false
	}
	if !hasCredential && !hasRegulatedTitle && genericVocab {
		specialized = false
	}

	class := models.JobClassGeneric
	if specialized {
		class = models.JobClassSpecialized
	}

	req := models.JobRequirements{
		Credentials:             job.Credentials,
		MinimumExperienceYears:  0,
		SubjectMatterStrictness: models.StrictnessModerate,
		ExpertiseTier:           models.TierIntermediate,
		Countries:               job.Countries,
		Languages:               job.Languages,
	}
	if class == models.JobClassGeneric {
		// Generic jobs MUST carry no subject-matter codes (§4.2).
		req.SubjectMatterCodes = nil
		req.AcceptableSubjectCodes = nil
	}

	return models.JobClassification{
		JobClass:     class,
		Confidence:   heuristicConfidence,
		Requirements: req,
		Reasoning:    "heuristic fallback classification",
		Source:       models.SourceFallback,
	}, nil
}

func (h *Heuristic) ClassifyUser(_ context.Context, profile NormalizedUserProfile) (models.UserClassification, error) {
	tier := models.TierIntermediate
	switch {
	case hasAny(profile.Credentials, professionalCredentials):
		tier = models.TierSpecialist
	case profile.YearsExperience >= 8:
		tier = models.TierExpert
	case profile.YearsExperience <= 1:
		tier = models.TierEntry
	}

	return models.UserClassification{
		ExpertiseTier:         tier,
		Credentials:           profile.Credentials,
		SubjectMatterCodes:    nil,
		YearsExperience:       profile.YearsExperience,
		HasLabelingExperience: profile.HasLabelingExperience,
		Confidence:            heuristicConfidence,
		Source:                models.SourceFallback,
	}, nil
}

func hasAny(haystack []string, needles []string) bool {
	for _, h := range haystack {
		hl := strings.ToLower(strings.TrimSpace(h))
		for _, n := range needles {
			if hl == n {
				return true
			}
		}
	}
	return false
}

func containsAny(text string, needles []string) bool {
	for _, n := range needles {
		if strings.Contains(text, n) {
			return true
		}
	}
	return false
}

func isNonEnglishOnly(languages []string) bool {
	if len(languages) == 0 {
		return false
	}
	for _, l := range languages {
		if strings.EqualFold(strings.TrimSpace(l), "english") {
			return false
		}
	}
	return true
}
