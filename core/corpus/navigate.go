package corpus

// Previous returns the verse before key. At the first verse of a chapter it
// steps to the last verse of the preceding chapter. It reports false at the
// first verse of the corpus.
func (c *Corpus) Previous(key VerseKey) (VerseKey, bool) {
	if key.Verse > 1 {
		return VerseKey{Chapter: key.Chapter, Verse: key.Verse - 1}, true
	}
	for ch := key.Chapter - 1; ch >= FirstChapter; ch-- {
		if n := c.verseCounts[ch]; n > 0 {
			return VerseKey{Chapter: ch, Verse: n}, true
		}
	}
	return VerseKey{}, false
}

// Next returns the verse after key. At the last verse of a chapter it steps
// to the first verse of the following chapter. It reports false at the last
// verse of the corpus.
func (c *Corpus) Next(key VerseKey) (VerseKey, bool) {
	if key.Verse < c.verseCounts[key.Chapter] {
		return VerseKey{Chapter: key.Chapter, Verse: key.Verse + 1}, true
	}
	for ch := key.Chapter + 1; ch <= LastChapter; ch++ {
		if c.verseCounts[ch] > 0 {
			return VerseKey{Chapter: ch, Verse: 1}, true
		}
	}
	return VerseKey{}, false
}
