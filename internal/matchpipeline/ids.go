package matchpipeline

import "github.com/westonopentrain/capsule-match/pkg/models"

// Vector identifiers are canonical and bit-stable (spec.md §6):
// job_{id}::domain, job_{id}::task, usr_{id}::domain, usr_{id}::task.

func jobVectorID(jobID string, section models.Section) string {
	return "job_" + jobID + "::" + string(section)
}

func userVectorID(userID string, section models.Section) string {
	return "usr_" + userID + "::" + string(section)
}
