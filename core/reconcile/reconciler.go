// Package reconcile merges locally produced predictions with snapshots
// arriving from the store's change feed into the view shown to one session.
// The merge never blanks a record the session has already seen.
package reconcile

import (
	"sort"
	"time"

	"vigil-triage/core/risk"
	"vigil-triage/core/store"
)

type Provenance string

const (
	ProvenancePendingLocal    Provenance = "pending-local"
	ProvenanceConfirmedRemote Provenance = "confirmed-remote"
)

// ViewModel is the reconciled state for one report as one session sees it.
type ViewModel struct {
	ReportID   string                  `json:"report_id"`
	Record     *store.PredictionRecord `json:"record,omitempty"`
	Provenance Provenance              `json:"provenance,omitempty"`
	UpdatedAt  time.Time               `json:"updated_at"`
}

// Reconciler holds per-report views for a single session. All methods are
// called from that session's event loop, so no locking happens here.
type Reconciler struct {
	views map[string]*ViewModel
}

func NewReconciler() *Reconciler {
	return &Reconciler{views: make(map[string]*ViewModel)}
}

// ApplyLocal records a freshly computed prediction as pending-local. A
// local record only replaces another when it originates a newer generation,
// or the same generation more recently.
func (r *Reconciler) ApplyLocal(rec *store.PredictionRecord) *ViewModel {
	if rec == nil {
		return nil
	}
	view := r.views[rec.ReportID]
	if view == nil || view.Record == nil {
		return r.set(rec.ReportID, rec, ProvenancePendingLocal)
	}
	if !wins(rec, view.Record) {
		return view
	}
	if blocked(rec, view.Record) {
		return view
	}
	return r.set(rec.ReportID, rec, ProvenancePendingLocal)
}

// ApplySnapshot merges one change-feed snapshot. Applying the same snapshot
// twice leaves the view unchanged.
func (r *Reconciler) ApplySnapshot(snap store.Snapshot) *ViewModel {
	view := r.views[snap.ReportID]

	// A fieldless snapshot carries no prediction. Adopt nothing into an
	// empty view, and never blank a record the session already holds.
	if snap.Prediction == nil {
		if view == nil {
			return nil
		}
		return view
	}

	if view == nil || view.Record == nil {
		return r.set(snap.ReportID, snap.Prediction, confirmation(snap.Prediction))
	}

	incoming := snap.Prediction
	held := view.Record
	switch {
	case incoming.Generation > held.Generation:
		// Higher generation supersedes regardless of provenance.
	case incoming.Generation < held.Generation:
		return view
	default:
		// Same generation: the snapshot is the store's echo of the record
		// already shown. Adopt it for the server-resolved time, but an
		// immune tier may not come down.
		if blocked(incoming, held) {
			return view
		}
		if view.Provenance == ProvenanceConfirmedRemote && held.ServerTime != nil && incoming.ServerTime == nil {
			// Already confirmed; an unresolved echo adds nothing.
			return view
		}
	}
	return r.set(snap.ReportID, incoming, confirmation(incoming))
}

// View returns the reconciled view for one report, or nil.
func (r *Reconciler) View(reportID string) *ViewModel {
	return r.views[reportID]
}

// Recent returns up to n views ordered newest first plus the count of
// older views that did not fit.
func (r *Reconciler) Recent(n int) ([]ViewModel, int) {
	all := r.sorted(nil)
	if n <= 0 || n >= len(all) {
		return all, 0
	}
	return all[:n], len(all) - n
}

// All returns every view, optionally filtered by tier, newest first.
func (r *Reconciler) All(tier *risk.Tier) []ViewModel {
	return r.sorted(tier)
}

func (r *Reconciler) sorted(tier *risk.Tier) []ViewModel {
	out := make([]ViewModel, 0, len(r.views))
	for _, v := range r.views {
		if v.Record == nil {
			continue
		}
		if tier != nil && v.Record.Tier != *tier {
			continue
		}
		out = append(out, *v)
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i].Record, out[j].Record
		if !a.OriginatedAt.Equal(b.OriginatedAt) {
			return a.OriginatedAt.After(b.OriginatedAt)
		}
		return out[i].ReportID < out[j].ReportID
	})
	return out
}

func (r *Reconciler) set(reportID string, rec *store.PredictionRecord, prov Provenance) *ViewModel {
	cp := *rec
	view := &ViewModel{
		ReportID:   reportID,
		Record:     &cp,
		Provenance: prov,
		UpdatedAt:  time.Now().UTC(),
	}
	r.views[reportID] = view
	return view
}

// wins reports whether incoming supersedes held: higher generation first,
// then most recent origination.
func wins(incoming, held *store.PredictionRecord) bool {
	if incoming.Generation != held.Generation {
		return incoming.Generation > held.Generation
	}
	return !incoming.OriginatedAt.Before(held.OriginatedAt)
}

// blocked reports whether the held record's immunity pins its tier against
// a same-generation candidate with a lower one.
func blocked(incoming, held *store.PredictionRecord) bool {
	return held.OverrideImmune &&
		incoming.Generation == held.Generation &&
		incoming.Tier < held.Tier
}

func confirmation(rec *store.PredictionRecord) Provenance {
	if rec.ServerTime != nil {
		return ProvenanceConfirmedRemote
	}
	return ProvenancePendingLocal
}
