// Package presence tracks the live participants of each room.
//
// The Directory is deliberately unlocked: every mutation happens on the
// collab hub's single dispatch goroutine, run-to-completion, so handlers
// are atomic with respect to each other. It must never be shared with
// another goroutine.
package presence

import (
	"sort"

	"github.com/devcollab/server/internal/domain"
)

type record struct {
	entry *domain.PresenceEntry
	seq   uint64
}

// Directory is the process-local connection -> presence map. It is
// constructed at startup and injected into the hub; there is no
// package-level instance.
type Directory struct {
	byConn map[domain.ConnectionID]*record
	seq    uint64
}

func NewDirectory() *Directory {
	return &Directory{byConn: make(map[domain.ConnectionID]*record)}
}

// Join inserts the entry, first evicting any existing entry for the same
// (user, room) pair. A reconnecting client therefore never appends a
// duplicate: whichever join lands last owns the pair. Returns the evicted
// connection id, if any.
func (d *Directory) Join(entry *domain.PresenceEntry) (domain.ConnectionID, bool) {
	var evicted domain.ConnectionID
	var found bool
	for connID, rec := range d.byConn {
		if rec.entry.UserID == entry.UserID && rec.entry.Room == entry.Room {
			delete(d.byConn, connID)
			evicted, found = connID, true
			break
		}
	}
	d.seq++
	d.byConn[entry.ConnectionID] = &record{entry: entry, seq: d.seq}
	return evicted, found
}

// Leave removes the connection's entry and reports which room it was in.
// Absence is a benign no-op: disconnect races are expected.
func (d *Directory) Leave(connID domain.ConnectionID) (domain.RoomID, bool) {
	rec, ok := d.byConn[connID]
	if !ok {
		return "", false
	}
	delete(d.byConn, connID)
	return rec.entry.Room, true
}

// Apply mutates the entry in place. Unknown connections are ignored.
// Role checks belong to the caller; the directory applies whatever it is
// handed.
func (d *Directory) Apply(connID domain.ConnectionID, patch domain.PresencePatch) bool {
	rec, ok := d.byConn[connID]
	if !ok {
		return false
	}
	e := rec.entry
	if patch.CursorPosition != nil {
		e.CursorPosition = *patch.CursorPosition
	}
	if patch.SelectionStart != nil {
		e.SelectionStart = patch.SelectionStart
	}
	if patch.SelectionEnd != nil {
		e.SelectionEnd = patch.SelectionEnd
	}
	if patch.Typing != nil {
		e.Typing = *patch.Typing
	}
	if patch.Status != nil {
		e.Status = *patch.Status
	}
	return true
}

// Get returns the live entry for the connection, or nil.
func (d *Directory) Get(connID domain.ConnectionID) *domain.PresenceEntry {
	if rec, ok := d.byConn[connID]; ok {
		return rec.entry
	}
	return nil
}

func (d *Directory) RoomOf(connID domain.ConnectionID) (domain.RoomID, bool) {
	if rec, ok := d.byConn[connID]; ok {
		return rec.entry.Room, true
	}
	return "", false
}

// Roster returns one entry per user in the room. Should duplicates exist
// transiently, the most recently inserted entry wins. Ordered by
// insertion so rosters are stable across calls.
func (d *Directory) Roster(room domain.RoomID) []domain.PresenceEntry {
	latest := make(map[domain.UserID]*record)
	for _, rec := range d.byConn {
		if rec.entry.Room != room {
			continue
		}
		if cur, ok := latest[rec.entry.UserID]; !ok || rec.seq > cur.seq {
			latest[rec.entry.UserID] = rec
		}
	}

	recs := make([]*record, 0, len(latest))
	for _, rec := range latest {
		recs = append(recs, rec)
	}
	sort.Slice(recs, func(i, j int) bool { return recs[i].seq < recs[j].seq })

	out := make([]domain.PresenceEntry, 0, len(recs))
	for _, rec := range recs {
		out = append(out, *rec.entry)
	}
	return out
}

// Connections lists every connection currently in the room.
func (d *Directory) Connections(room domain.RoomID) []domain.ConnectionID {
	var out []domain.ConnectionID
	for connID, rec := range d.byConn {
		if rec.entry.Room == room {
			out = append(out, connID)
		}
	}
	return out
}

// DisplayNameTaken reports whether another user already holds the name
// in the room.
func (d *Directory) DisplayNameTaken(room domain.RoomID, name string, except domain.UserID) bool {
	for _, rec := range d.byConn {
		if rec.entry.Room == room && rec.entry.DisplayName == name && rec.entry.UserID != except {
			return true
		}
	}
	return false
}

// Len reports the number of live entries across all rooms.
func (d *Directory) Len() int { return len(d.byConn) }
