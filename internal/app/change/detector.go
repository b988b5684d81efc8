// Package change computes the four-way partition between a freshly loaded
// document set and the metadata ledger.
package change

import (
	"github.com/mafzaal/letstalk-index/internal/app/domain/change"
	"github.com/mafzaal/letstalk-index/internal/app/domain/document"
	"github.com/mafzaal/letstalk-index/internal/app/domain/ledgerrow"
	"github.com/mafzaal/letstalk-index/pkg/logger"
)

// Detector diffs a load against a ledger snapshot.
type Detector struct {
	log *logger.Logger
}

// New returns a Detector.
func New(log *logger.Logger) *Detector {
	if log == nil {
		log = logger.NewDefault("change")
	}
	return &Detector{log: log}
}

// Detect partitions docs against ledger into new/modified/unchanged, plus
// the ledger sources absent from docs (deleted). When a source repeats in
// docs, the last occurrence wins and a warning is logged.
func (d *Detector) Detect(docs []document.Document, ledger map[string]ledgerrow.Row) change.Set {
	latest := make(map[string]document.Document, len(docs))
	for _, doc := range docs {
		if _, dup := latest[doc.Source]; dup {
			d.log.WithField("source", doc.Source).Warn("duplicate source in load, keeping last occurrence")
		}
		latest[doc.Source] = doc
	}

	var set change.Set
	for source, doc := range latest {
		row, existed := ledger[source]
		switch {
		case !existed:
			set.New = append(set.New, source)
		case row.ContentChecksum != doc.ContentChecksum:
			set.Modified = append(set.Modified, source)
		default:
			set.Unchanged = append(set.Unchanged, source)
		}
	}

	for source := range ledger {
		if _, stillPresent := latest[source]; !stillPresent {
			set.DeletedSource = append(set.DeletedSource, source)
		}
	}

	return set
}
