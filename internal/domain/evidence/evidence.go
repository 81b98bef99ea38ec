package evidence

// Item is one retrieved passage cited in a validation verdict.
type Item struct {
	ChunkID  string  `json:"chunk_id"`
	Source   string  `json:"source"`
	Page     int     `json:"page"`
	Score    float64 `json:"score"`
	Excerpt  string  `json:"excerpt"`
	DrugName string  `json:"drug_name,omitempty"`
}

// Truncate returns the excerpt shortened to at most max bytes, cut on a
// rune boundary.
func (i Item) Truncate(max int) string {
	if max <= 0 || len(i.Excerpt) <= max {
		return i.Excerpt
	}
	b := []byte(i.Excerpt[:max])
	for len(b) > 0 && b[len(b)-1]&0xC0 == 0x80 {
		b = b[:len(b)-1]
	}
	return string(b)
}
