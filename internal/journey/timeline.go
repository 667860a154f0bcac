package journey

import "time"

// Timeline is the ordered chat history of one session. Entries are only ever
// appended; the single exception is the transient thinking entry, which is
// replaced while a thinking sequence runs and dropped before the result lands.
//
// Timeline is not safe for concurrent use; Session serializes access.
type Timeline struct {
	msgs []Message
	last int64
}

// Append assigns the next sequence number to m and adds it to the end.
func (t *Timeline) Append(m Message) Message {
	t.last++
	m.Seq = t.last
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now()
	}
	t.msgs = append(t.msgs, m)
	return m
}

// SetTransient replaces any transient entry with a thinking entry holding the
// given steps. It returns the new entry and the sequence numbers it replaced.
func (t *Timeline) SetTransient(steps []string, at time.Time) (Message, []int64) {
	removed := t.DropTransient()
	m := t.Append(Message{
		Kind:      KindThinking,
		Steps:     append([]string(nil), steps...),
		CreatedAt: at,
	})
	return m, removed
}

// DropTransient removes every thinking entry and returns their sequence
// numbers in order.
func (t *Timeline) DropTransient() []int64 {
	var removed []int64
	kept := t.msgs[:0]
	for _, m := range t.msgs {
		if m.Kind == KindThinking {
			removed = append(removed, m.Seq)
			continue
		}
		kept = append(kept, m)
	}
	// Clear the tail so dropped payloads can be collected.
	for i := len(kept); i < len(t.msgs); i++ {
		t.msgs[i] = Message{}
	}
	t.msgs = kept
	return removed
}

// Messages returns a copy of the timeline. The returned entries share no
// slices with it.
func (t *Timeline) Messages() []Message {
	out := make([]Message, len(t.msgs))
	for i, m := range t.msgs {
		out[i] = m.clone()
	}
	return out
}

// Since returns the entries whose sequence number is greater than seq.
func (t *Timeline) Since(seq int64) []Message {
	var out []Message
	for _, m := range t.msgs {
		if m.Seq > seq {
			out = append(out, m.clone())
		}
	}
	return out
}

// Len reports the number of entries.
func (t *Timeline) Len() int { return len(t.msgs) }

// LastSeq reports the highest sequence number ever assigned.
func (t *Timeline) LastSeq() int64 { return t.last }

// restoreTimeline rebuilds a timeline from persisted entries. Transient
// entries are not restored.
func restoreTimeline(msgs []Message) Timeline {
	var t Timeline
	for _, m := range msgs {
		if m.Seq > t.last {
			t.last = m.Seq
		}
		if m.Kind == KindThinking {
			continue
		}
		t.msgs = append(t.msgs, m)
	}
	return t
}
