package catalogsync

import "time"

// Decision is the outcome of the conflict guard
type Decision string

const (
	// DecisionApply means the change should be propagated to the target store
	DecisionApply Decision = "apply"
	// DecisionSkip means the change is an echo or a replay and must be ignored
	DecisionSkip Decision = "skip"
	// DecisionTreatAsCreate means the target product is unknown and must be created
	DecisionTreatAsCreate Decision = "treat_as_create"
)

// Decide classifies an inbound change from source with the event's declared
// modification time against the stored record.
//
// Rules, in order:
//   - no record, or no product ID on the target store: TreatAsCreate
//   - the record already reflects source at a time not older than the event: Skip (replay)
//   - the record reflects the other store and this engine has already observed
//     source at a time not older than the event: Skip (echo of our own write)
//   - otherwise: Apply
//
// Platform clocks are trusted. This is a heuristic, not a causal ordering.
func Decide(record *SyncRecord, source Store, eventUpdatedAt time.Time) Decision {
	if record == nil || !record.HasStoreID(source.Other()) {
		return DecisionTreatAsCreate
	}
	if record.LastUpdatedByStore == source && !record.UpdatedAt.Before(eventUpdatedAt) {
		return DecisionSkip
	}
	if record.LastUpdatedByStore == source.Other() {
		observed := record.ObservedUpdatedAt(source)
		if !observed.IsZero() && !observed.Before(eventUpdatedAt) {
			return DecisionSkip
		}
	}
	return DecisionApply
}
