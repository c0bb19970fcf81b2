// Package classify produces JobClassification and UserClassification
// records from normalized job postings and freelancer profiles (C2). The
// pipeline never blocks on a classifier failure: callers should use
// Heuristic directly or compose WithFallback around an LLM-backed one.
package classify

import (
	"context"

	"github.com/westonopentrain/capsule-match/pkg/models"
)

// NormalizedJobPosting is the canonicalized job input the gateway hands
// to the classifier and capsule builder.
type NormalizedJobPosting struct {
	JobID       string
	Title       string
	Description string
	Credentials []string
	Languages   []string
	Countries   []string
}

// NormalizedUserProfile is the canonicalized freelancer input.
type NormalizedUserProfile struct {
	UserID                string
	Bio                   string
	Credentials           []string
	Languages             []string
	Country               string
	YearsExperience       int
	HasLabelingExperience bool
}

// Classifier produces classification records for jobs and users.
type Classifier interface {
	ClassifyJob(ctx context.Context, job NormalizedJobPosting) (models.JobClassification, error)
	ClassifyUser(ctx context.Context, profile NormalizedUserProfile) (models.UserClassification, error)
}

// WeightsForClass returns the pure weight profile for a job class (§4.2):
// specialized jobs weight domain similarity heavily, generic jobs weight
// task similarity heavily.
func WeightsForClass(class models.JobClass) (wDomain, wTask float64) {
	if class == models.JobClassSpecialized {
		return 0.85, 0.15
	}
	return 0.30, 0.70
}
