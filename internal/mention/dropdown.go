package mention

// Dropdown is the keyboard state of the mention picker shown under the
// compose input.
type Dropdown struct {
	Open    bool
	Query   Query
	Index   int
	Matches []Candidate

	lastText   string
	lastCursor int
	dismissed  bool
}

// Refresh re-derives the dropdown after the input changed. The dropdown
// closes when there is no @-query at the cursor or nothing matches it.
func (d *Dropdown) Refresh(text string, cursor int, roster []Candidate) {
	if d.dismissed && text == d.lastText && cursor == d.lastCursor {
		return
	}
	d.dismissed = false
	d.lastText, d.lastCursor = text, cursor

	query, ok := ActiveQuery(text, cursor)
	if !ok {
		d.close()
		return
	}
	matches := Filter(roster, query.Text)
	if len(matches) == 0 {
		d.close()
		return
	}
	if !d.Open || query != d.Query {
		d.Index = 0
	}
	d.Open = true
	d.Query = query
	d.Matches = matches
	if d.Index >= len(matches) {
		d.Index = 0
	}
}

func (d *Dropdown) Next() {
	if !d.Open || len(d.Matches) == 0 {
		return
	}
	d.Index = (d.Index + 1) % len(d.Matches)
}

func (d *Dropdown) Prev() {
	if !d.Open || len(d.Matches) == 0 {
		return
	}
	d.Index = (d.Index - 1 + len(d.Matches)) % len(d.Matches)
}

// Selected is the highlighted candidate.
func (d *Dropdown) Selected() (Candidate, bool) {
	if !d.Open || d.Index < 0 || d.Index >= len(d.Matches) {
		return Candidate{}, false
	}
	return d.Matches[d.Index], true
}

// Commit splices the highlighted candidate into text and closes the
// dropdown. ok is false when nothing was open.
func (d *Dropdown) Commit(text string, cursor int) (string, int, bool) {
	c, ok := d.Selected()
	if !ok {
		return text, cursor, false
	}
	newText, newCursor := Insert(text, d.Query.Start, cursor, c)
	d.close()
	d.lastText, d.lastCursor = newText, newCursor
	return newText, newCursor, true
}

// Dismiss closes without touching the text. The dropdown stays closed until
// the text or cursor moves.
func (d *Dropdown) Dismiss() {
	d.close()
	d.dismissed = true
}

// Reset forgets everything, e.g. after the input was cleared.
func (d *Dropdown) Reset() {
	*d = Dropdown{}
}

func (d *Dropdown) close() {
	d.Open = false
	d.Query = Query{}
	d.Index = 0
	d.Matches = nil
}
