package roster

import (
	"sync"

	"github.com/google/uuid"
)

// Directory merges participant records into one consistent player list,
// whether they arrive from a local optimistic update, a roster snapshot
// fetch, or a live change event. Merging is field-wise: a record can only
// gain information, so out-of-order or duplicate deliveries are harmless.
type Directory struct {
	mu    sync.RWMutex
	order []uuid.UUID
	byID  map[uuid.UUID]Participant
}

// NewDirectory returns an empty directory.
func NewDirectory() *Directory {
	return &Directory{byID: make(map[uuid.UUID]Participant)}
}

// ApplyRecord merges one full participant record, as delivered by a roster
// snapshot fetch or a live join/update event.
func (d *Directory) ApplyRecord(p Participant) Participant {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.mergeLocked(p)
}

// ApplySnapshot merges a whole roster fetch. Participants missing from the
// snapshot are kept: the directory never hard-deletes during a session.
func (d *Directory) ApplySnapshot(ps []Participant) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, p := range ps {
		d.mergeLocked(p)
	}
}

// ApplyUpdate merges a partial update for one participant, creating the
// record if this is the first time the participant is seen.
func (d *Directory) ApplyUpdate(id uuid.UUID, u Update) Participant {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.mergeLocked(u.Apply(Participant{ID: id}))
}

func (d *Directory) mergeLocked(p Participant) Participant {
	cur, ok := d.byID[p.ID]
	if !ok {
		d.order = append(d.order, p.ID)
		d.byID[p.ID] = p
		return p
	}
	merged := Merge(cur, p)
	d.byID[p.ID] = merged
	return merged
}

// Merge folds incoming into base field-wise. Non-zero incoming fields win;
// zero incoming fields leave whatever base already knows.
func Merge(base, incoming Participant) Participant {
	if incoming.Handle != "" {
		base.Handle = incoming.Handle
	}
	if incoming.Avatar != "" {
		base.Avatar = incoming.Avatar
	}
	if incoming.Phase != "" {
		base.Phase = incoming.Phase
	}
	if base.JoinedAt.IsZero() {
		base.JoinedAt = incoming.JoinedAt
	}
	return base
}

// Get returns a participant by id.
func (d *Directory) Get(id uuid.UUID) (Participant, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	p, ok := d.byID[id]
	return p, ok
}

// List returns all participants in join order.
func (d *Directory) List() []Participant {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]Participant, 0, len(d.order))
	for _, id := range d.order {
		out = append(out, d.byID[id])
	}
	return out
}

// IDs returns all participant ids in join order.
func (d *Directory) IDs() []uuid.UUID {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return append([]uuid.UUID(nil), d.order...)
}

// Len returns the number of known participants.
func (d *Directory) Len() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.byID)
}
