// Package mutation implements the timeline mutation bucket of §4.6: a
// per-command, per-sequence collection of insert/update/delete/bulk_shift
// entries that the dispatcher flushes to the UI timeline cache on commit.
package mutation

// Insert carries the full payload for a newly created clip.
type Insert struct {
	ID                string
	ClipKind          string
	Name              string
	TrackID           string
	TrackSequenceID   string
	OwnerSequenceID   string
	StartValue        int64
	Duration          int64
	SourceIn          int64
	SourceOut         int64
	Enabled           bool
	Offline           bool
	ProjectID         string
	Label             string
	MediaID           string
	SourceSequenceID  string
	ParentClipID      string
}

// Update carries the fields of an existing clip that changed.
type Update struct {
	ClipID          string
	TrackID         string
	TrackSequenceID string
	StartValue      int64
	Duration        int64
	SourceIn        int64
	SourceOut       int64
	Enabled         bool
}

// Delete names a removed clip.
type Delete struct {
	ClipID string
}

// BulkShift encodes "on this track, every clip whose timeline_start.frames
// >= StartFrames moves by ShiftFrames" without enumerating each clip.
type BulkShift struct {
	TrackID         string
	FirstClipID     string
	AnchorStartFrame int64
	ShiftFrames     int64
	StartFrames     int64
	ClipIDs         []string // optional, when the UI wants the explicit set
}

// SequenceMeta is an out-of-band notice about a sequence-level event, e.g.
// {action: "created"} from CreateSequence.
type SequenceMeta struct {
	Action     string
	SequenceID string
	Fields     map[string]any
}

// Bucket is the per-command collection of mutations, keyed by sequence id.
type Bucket struct {
	perSequence map[string]*streams
	metas       []SequenceMeta
}

type streams struct {
	inserts    []Insert
	updates    []Update
	deletes    []Delete
	bulkShifts []BulkShift
}

// New returns an empty bucket.
func New() *Bucket {
	return &Bucket{perSequence: make(map[string]*streams)}
}

func (b *Bucket) streamsFor(sequenceID string) *streams {
	s, ok := b.perSequence[sequenceID]
	if !ok {
		s = &streams{}
		b.perSequence[sequenceID] = s
	}
	return s
}

// AddInsert appends an insert to sequenceID's stream.
func (b *Bucket) AddInsert(sequenceID string, ins Insert) {
	s := b.streamsFor(sequenceID)
	s.inserts = append(s.inserts, ins)
}

// AddUpdate appends an update to sequenceID's stream.
func (b *Bucket) AddUpdate(sequenceID string, upd Update) {
	s := b.streamsFor(sequenceID)
	s.updates = append(s.updates, upd)
}

// AddDelete appends a delete to sequenceID's stream.
func (b *Bucket) AddDelete(sequenceID string, del Delete) {
	s := b.streamsFor(sequenceID)
	s.deletes = append(s.deletes, del)
}

// AddBulkShift appends a bulk shift to sequenceID's stream.
func (b *Bucket) AddBulkShift(sequenceID string, shift BulkShift) {
	s := b.streamsFor(sequenceID)
	s.bulkShifts = append(s.bulkShifts, shift)
}

// AddSequenceMeta records an out-of-band sequence event.
func (b *Bucket) AddSequenceMeta(meta SequenceMeta) {
	b.metas = append(b.metas, meta)
}

// Sequences returns every sequence id this bucket has entries for, in the
// order first touched is not guaranteed (the UI keys off sequence id).
func (b *Bucket) Sequences() []string {
	out := make([]string, 0, len(b.perSequence))
	for id := range b.perSequence {
		out = append(out, id)
	}
	return out
}

// Inserts returns the insert stream for sequenceID, preserving emission
// order.
func (b *Bucket) Inserts(sequenceID string) []Insert { return b.streamsFor(sequenceID).inserts }

// Updates returns the update stream for sequenceID, preserving emission
// order.
func (b *Bucket) Updates(sequenceID string) []Update { return b.streamsFor(sequenceID).updates }

// Deletes returns the delete stream for sequenceID, preserving emission
// order.
func (b *Bucket) Deletes(sequenceID string) []Delete { return b.streamsFor(sequenceID).deletes }

// BulkShifts returns the bulk-shift stream for sequenceID, preserving
// emission order.
func (b *Bucket) BulkShifts(sequenceID string) []BulkShift {
	return b.streamsFor(sequenceID).bulkShifts
}

// SequenceMetas returns every sequence_meta event recorded in this bucket.
func (b *Bucket) SequenceMetas() []SequenceMeta { return b.metas }

// IsEmpty reports whether nothing has been recorded.
func (b *Bucket) IsEmpty() bool {
	if len(b.metas) > 0 {
		return false
	}
	for _, s := range b.perSequence {
		if len(s.inserts)+len(s.updates)+len(s.deletes)+len(s.bulkShifts) > 0 {
			return false
		}
	}
	return true
}
