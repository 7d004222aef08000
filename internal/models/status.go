package models

type EntryStatus string

const (
	EntryStatusActive    EntryStatus = "active"
	EntryStatusPaused    EntryStatus = "paused"
	EntryStatusOffered   EntryStatus = "offered"
	EntryStatusAccepted  EntryStatus = "accepted"
	EntryStatusDeclined  EntryStatus = "declined"
	EntryStatusExpired   EntryStatus = "expired"
	EntryStatusCancelled EntryStatus = "cancelled"
)

// OpenStatuses are the statuses that take part in partition ordering.
var OpenStatuses = []EntryStatus{EntryStatusActive, EntryStatusPaused, EntryStatusOffered}

var AllStatuses = []EntryStatus{
	EntryStatusActive,
	EntryStatusPaused,
	EntryStatusOffered,
	EntryStatusAccepted,
	EntryStatusDeclined,
	EntryStatusExpired,
	EntryStatusCancelled,
}

func (s EntryStatus) IsValid() bool {
	for _, v := range AllStatuses {
		if s == v {
			return true
		}
	}
	return false
}

// IsOpen reports whether an entry in this status still holds a place in the
// queue.
func (s EntryStatus) IsOpen() bool {
	return s == EntryStatusActive || s == EntryStatusPaused || s == EntryStatusOffered
}

// IsClosed reports whether no further transition is possible.
func (s EntryStatus) IsClosed() bool {
	return s.IsValid() && !s.IsOpen()
}

// IsMovable reports whether the entry may be repositioned by staff.
func (s EntryStatus) IsMovable() bool {
	return s == EntryStatusActive || s == EntryStatusPaused
}

func ParseEntryStatus(s string) (EntryStatus, bool) {
	st := EntryStatus(s)
	return st, st.IsValid()
}
