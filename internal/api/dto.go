package api

// upsertUserRequest is the body of POST /v1/users/upsert.
type upsertUserRequest struct {
	UserID                string   `json:"userId"`
	Bio                   string   `json:"bio"`
	Credentials           []string `json:"credentials"`
	Languages             []string `json:"languages"`
	Country               string   `json:"country"`
	YearsExperience       int      `json:"yearsExperience"`
	HasLabelingExperience bool     `json:"hasLabelingExperience"`
}

// upsertJobRequest is the body of POST /v1/jobs/upsert and (embedded) of
// POST /v1/jobs/notify.
type upsertJobRequest struct {
	JobID       string   `json:"jobId"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Credentials []string `json:"credentials"`
	Languages   []string `json:"languages"`
	Countries   []string `json:"countries"`
	IsActive    *bool    `json:"isActive"`
}

// notifyRequest is the body of POST /v1/jobs/notify: an upsertJobRequest
// plus the notify-only fields of §4.6.
type notifyRequest struct {
	upsertJobRequest
	AvailableCountries []string `json:"availableCountries"`
	AvailableLanguages []string `json:"availableLanguages"`
	MaxNotifications   int      `json:"maxNotifications"`
}

// reNotifyRequest is the body of POST /v1/jobs/{jobId}/re-notify.
type reNotifyRequest struct {
	Countries        []string `json:"countries"`
	Languages        []string `json:"languages"`
	MaxNotifications int      `json:"maxNotifications"`
}

// evaluateRequest is the body of POST /v1/jobs/{jobId}/evaluate.
type evaluateRequest struct {
	Countries []string `json:"countries"`
	Languages []string `json:"languages"`
}

// updateMetadataRequest is the body of PATCH /v1/jobs/{jobId}/metadata.
type updateMetadataRequest struct {
	Countries []string `json:"countries"`
	Languages []string `json:"languages"`
}

// updateStatusRequest is the body of PATCH /v1/jobs/{jobId}/status.
type updateStatusRequest struct {
	IsActive bool `json:"isActive"`
}

// markNotifiedRequest is the body of POST /v1/jobs/{jobId}/mark-notified.
type markNotifiedRequest struct {
	UserIDs     []string `json:"userIds"`
	NotifiedVia string   `json:"notifiedVia"`
}

// scoreUsersForJobRequest is the body of POST /v1/match/score_users_for_job.
type scoreUsersForJobRequest struct {
	JobID            string   `json:"jobId"`
	CandidateUserIDs []string `json:"candidateUserIds"`
	WDomain          float64  `json:"wDomain"`
	WTask            float64  `json:"wTask"`
	AutoWeights      bool     `json:"autoWeights"`
	TopK             int      `json:"topK"`
	Threshold        *float64 `json:"threshold"`
}

// scoreJobsForUserRequest is the body of POST /v1/match/score_jobs_for_user.
type scoreJobsForUserRequest struct {
	UserID string   `json:"userId"`
	JobIDs []string `json:"jobIds"`
	TopK   int      `json:"topK"`
}
