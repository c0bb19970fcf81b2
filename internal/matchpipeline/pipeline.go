// Package matchpipeline orchestrates the notify, re-notify, and
// synchronous scoring pipelines (C6, C7, C8): capsule classification and
// indexing, candidate retrieval, blended scoring, the subject-matter
// gate, qualification persistence, and audit/alerting.
package matchpipeline

import (
	"github.com/westonopentrain/capsule-match/internal/alert"
	"github.com/westonopentrain/capsule-match/internal/audit"
	"github.com/westonopentrain/capsule-match/internal/classify"
	"github.com/westonopentrain/capsule-match/internal/embed"
	"github.com/westonopentrain/capsule-match/internal/gate"
	"github.com/westonopentrain/capsule-match/internal/qualstore"
	"github.com/westonopentrain/capsule-match/internal/vectorstore"
)

// Namespaces configures the (optional) Pinecone namespaces for each entity.
type Namespaces struct {
	Users string
	Jobs  string
}

// Pipeline wires C1-C5, C9, C11, C12 into the notify/re-notify/score
// operations. One Pipeline serves the whole process; it holds no
// request-scoped state beyond what's passed into each call.
type Pipeline struct {
	Store      vectorstore.Store
	Classifier classify.Classifier
	Embedder   embed.Embedder
	Gate       *gate.Cache
	Qual       qualstore.Store
	Audit      *audit.Sink
	Alerter    alert.Alerter

	Namespaces Namespaces
	Dimension  int

	// MaxNotificationsDefault is used when a caller omits maxNotifications.
	MaxNotificationsDefault int
}

// New creates a Pipeline from its component dependencies.
func New(store vectorstore.Store, classifier classify.Classifier, embedder embed.Embedder, gateCache *gate.Cache, qual qualstore.Store, auditSink *audit.Sink, alerter alert.Alerter, ns Namespaces, dimension int) *Pipeline {
	return &Pipeline{
		Store:                   store,
		Classifier:              classifier,
		Embedder:                embedder,
		Gate:                    gateCache,
		Qual:                    qual,
		Audit:                   auditSink,
		Alerter:                 alerter,
		Namespaces:              ns,
		Dimension:               dimension,
		MaxNotificationsDefault: 500,
	}
}
