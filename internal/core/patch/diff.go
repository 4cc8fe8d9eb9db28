package patch

// Diff returns a minimal line edit script turning from into to. Hunks cover
// both texts completely and in order. Among minimal scripts the one that
// matches earlier lines first is chosen, and a delete precedes an insert
// when both are equally good, so the result is deterministic.
func Diff(from, to string) []Hunk {
	a, b := Lines(from), Lines(to)

	// A shared prefix is always matched first by the earliest-match rule,
	// so it can be peeled off before building the table.
	p := 0
	for p < len(a) && p < len(b) && a[p] == b[p] {
		p++
	}

	var e editor
	for i := 0; i < p; i++ {
		e.add(KindEqual, a[i])
	}

	ra, rb := a[p:], b[p:]
	n, m := len(ra), len(rb)
	w := m + 1

	// lcs[i*w+j] is the LCS length of ra[i:] and rb[j:].
	lcs := make([]int32, (n+1)*w)
	for i := n - 1; i >= 0; i-- {
		for j := m - 1; j >= 0; j-- {
			switch {
			case ra[i] == rb[j]:
				lcs[i*w+j] = lcs[(i+1)*w+j+1] + 1
			case lcs[(i+1)*w+j] >= lcs[i*w+j+1]:
				lcs[i*w+j] = lcs[(i+1)*w+j]
			default:
				lcs[i*w+j] = lcs[i*w+j+1]
			}
		}
	}

	i, j := 0, 0
	for i < n || j < m {
		switch {
		case i < n && j < m && ra[i] == rb[j]:
			e.add(KindEqual, ra[i])
			i++
			j++
		case j == m || (i < n && lcs[(i+1)*w+j] >= lcs[i*w+j+1]):
			e.add(KindDelete, ra[i])
			i++
		default:
			e.add(KindInsert, rb[j])
			j++
		}
	}

	return e.hunks
}

// editor accumulates single-line operations, coalescing runs of the same
// kind into one hunk and tracking positions in both texts.
type editor struct {
	hunks    []Hunk
	old, new int
}

func (e *editor) add(kind Kind, line string) {
	if n := len(e.hunks); n > 0 && e.hunks[n-1].Kind == kind {
		h := &e.hunks[n-1]
		h.Lines = append(h.Lines, line)
		e.advance(h)
		return
	}

	e.hunks = append(e.hunks, Hunk{
		Kind:  kind,
		Old:   Range{Start: e.old},
		New:   Range{Start: e.new},
		Lines: []string{line},
	})
	e.advance(&e.hunks[len(e.hunks)-1])
}

func (e *editor) advance(h *Hunk) {
	switch h.Kind {
	case KindEqual:
		h.Old.Count++
		h.New.Count++
		e.old++
		e.new++
	case KindDelete:
		h.Old.Count++
		e.old++
	case KindInsert:
		h.New.Count++
		e.new++
	}
}
