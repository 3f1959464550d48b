// Package features extracts entities, hashtags, and keywords from cleaned
// post text. Extraction is deterministic: the same text always yields the
// same sorted entity list.
package features

import (
	"regexp"
	"sort"
	"strings"
	"unicode"
)

var (
	hashtagPattern = regexp.MustCompile(`(?i)#[a-z0-9_]+`)
	mentionPattern = regexp.MustCompile(`(?i)@[a-z0-9_]+`)
	wordPattern    = regexp.MustCompile(`(?i)\b[a-z][a-z0-9_'-]+[a-z0-9_]\b`)
	htmlPattern    = regexp.MustCompile(`<[^>]+>`)
)

// stopWords is the token blocklist. It includes web markup vocabulary so
// that badly stripped HTML never surfaces as a trending entity.
var stopWords = map[string]bool{}

func init() {
	for _, w := range []string{
		"i", "me", "my", "myself", "we", "our", "ours", "ourselves", "you", "you're",
		"you've", "you'll", "you'd", "your", "yours", "yourself", "yourselves",
		"he", "him", "his", "himself", "she", "she's", "her", "hers", "herself",
		"it", "it's", "its", "itself", "they", "them", "their", "theirs", "themselves",
		"what", "which", "who", "whom", "this", "that", "that'll", "these", "those",
		"am", "is", "are", "was", "were", "be", "been", "being", "have", "has", "had",
		"having", "do", "does", "did", "doing", "a", "an", "the", "and", "but", "if",
		"or", "because", "as", "until", "while", "of", "at", "by", "for", "with",
		"about", "against", "between", "into", "through", "during", "before", "after",
		"above", "below", "to", "from", "up", "down", "in", "out", "on", "off", "over",
		"under", "again", "further", "then", "once", "here", "there", "when", "where",
		"why", "how", "all", "any", "both", "each", "few", "more", "most", "other",
		"some", "such", "no", "nor", "not", "only", "own", "same", "so", "than", "too",
		"very", "s", "t", "can", "will", "just", "don", "don't", "should", "should've",
		"now", "d", "ll", "m", "o", "re", "ve", "y", "ain", "aren", "aren't", "couldn",
		"couldn't", "didn", "didn't", "doesn", "doesn't", "hadn", "hadn't", "hasn",
		"hasn't", "haven", "haven't", "isn", "isn't", "ma", "mightn", "mightn't", "mustn",
		"mustn't", "needn", "needn't", "shan", "shan't", "shouldn", "shouldn't", "wasn",
		"wasn't", "weren", "weren't", "won", "won't", "wouldn", "wouldn't",
		"http", "https", "www", "com", "html", "href", "span", "div", "class", "src",
		"alt", "img", "width", "height", "style", "rel", "id", "type", "content",
		"target", "title", "xmlns", "lang", "meta", "name", "value", "charset",
	} {
		stopWords[w] = true
	}
}

// internetSlang maps common abbreviations to canonical token forms so that
// "lol" and "LOL" count as the same concept across sources.
var internetSlang = map[string]string{
	"lol":   "laugh_out_loud",
	"lmao":  "laughing_my_ass_off",
	"rofl":  "rolling_on_floor_laughing",
	"omg":   "oh_my_god",
	"wtf":   "what_the_f",
	"fml":   "f_my_life",
	"tbh":   "to_be_honest",
	"imo":   "in_my_opinion",
	"imho":  "in_my_humble_opinion",
	"afaik": "as_far_as_i_know",
	"irl":   "in_real_life",
	"tl;dr": "too_long_didnt_read",
	"tldr":  "too_long_didnt_read",
	"eli5":  "explain_like_im_5",
	"ama":   "ask_me_anything",
	"til":   "today_i_learned",
	"ysk":   "you_should_know",
	"psa":   "public_service_announcement",
}

// categoryPatterns match curated topic vocabularies. A hit promotes the
// matched word to an entity even when its raw frequency is low.
var categoryPatterns = map[string]*regexp.Regexp{
	"covid":         regexp.MustCompile(`(?i)\b(covid|coronavirus|pandemic|vaccine|pfizer|moderna|omicron|delta)\b`),
	"climate":       regexp.MustCompile(`(?i)\b(climate|global warming|greenhouse|carbon|emission|greta)\b`),
	"crypto":        regexp.MustCompile(`(?i)\b(bitcoin|crypto|blockchain|ethereum|nft|dogecoin|elon)\b`),
	"politics":      regexp.MustCompile(`(?i)\b(trump|biden|election|democrat|republican|congress|senate)\b`),
	"tech":          regexp.MustCompile(`(?i)\b(apple|google|microsoft|amazon|meta|twitter|tiktok|ai|chatgpt)\b`),
	"sports":        regexp.MustCompile(`(?i)\b(nfl|nba|fifa|olympics|superbowl|worldcup|playoff)\b`),
	"entertainment": regexp.MustCompile(`(?i)\b(netflix|disney|marvel|starwars|game of thrones|stranger things)\b`),
}

// IsStopWord reports whether token is on the blocklist.
func IsStopWord(token string) bool {
	return stopWords[token]
}

// Tokenize splits text into normalized word tokens: lowercase, minimum three
// characters, stop words and URL/markup fragments removed, slang canonicalized.
func Tokenize(text string) []string {
	if text == "" {
		return nil
	}

	text = htmlPattern.ReplaceAllString(text, " ")
	words := wordPattern.FindAllString(strings.ToLower(text), -1)

	var tokens []string
	for _, word := range words {
		if len(word) < 3 || stopWords[word] || isDigits(word) {
			continue
		}
		if strings.ContainsAny(word, "<>{}[]()") {
			continue
		}
		if hasURLPrefix(word) {
			continue
		}
		if normalized, ok := internetSlang[word]; ok {
			word = normalized
		}
		if strings.Contains(word, ".") {
			continue
		}
		tokens = append(tokens, word)
	}
	return tokens
}

func hasURLPrefix(word string) bool {
	for _, prefix := range []string{"http", "www", "html", "src", "href"} {
		if strings.HasPrefix(word, prefix) {
			return true
		}
	}
	return false
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return s != ""
}

// ExtractHashtags returns all hashtags in text, lowercased, '#' kept.
func ExtractHashtags(text string) []string {
	tags := hashtagPattern.FindAllString(text, -1)
	for i, tag := range tags {
		tags[i] = strings.ToLower(tag)
	}
	return tags
}

// ExtractMentions returns all @mentions in text, lowercased, '@' kept.
func ExtractMentions(text string) []string {
	mentions := mentionPattern.FindAllString(text, -1)
	for i, m := range mentions {
		mentions[i] = strings.ToLower(m)
	}
	return mentions
}

// Keyword is a token with its in-text frequency.
type Keyword struct {
	Word  string
	Count int
}

// ExtractKeywords returns the topK most frequent tokens. Ties break on first
// appearance in the text, keeping the result deterministic.
func ExtractKeywords(text string, topK int) []Keyword {
	tokens := Tokenize(text)
	if len(tokens) == 0 {
		return nil
	}

	counts := map[string]int{}
	firstSeen := map[string]int{}
	for i, tok := range tokens {
		if counts[tok] == 0 {
			firstSeen[tok] = i
		}
		counts[tok]++
	}

	keywords := make([]Keyword, 0, len(counts))
	for word, n := range counts {
		keywords = append(keywords, Keyword{Word: word, Count: n})
	}
	sort.Slice(keywords, func(i, j int) bool {
		if keywords[i].Count != keywords[j].Count {
			return keywords[i].Count > keywords[j].Count
		}
		return firstSeen[keywords[i].Word] < firstSeen[keywords[j].Word]
	})

	if topK > 0 && len(keywords) > topK {
		keywords = keywords[:topK]
	}
	return keywords
}

// ExtractEntities extracts the entity set of a post: hashtags and mentions
// (sigils stripped), keywords appearing at least twice, and curated category
// vocabulary hits. The result is filtered (>= 3 chars, alphanumeric, not a
// stop word, not purely numeric), deduplicated, and sorted.
func ExtractEntities(text string) []string {
	if text == "" {
		return nil
	}

	text = htmlPattern.ReplaceAllString(text, " ")
	entities := map[string]bool{}

	for _, tag := range ExtractHashtags(text) {
		if len(tag) > 1 {
			entities[tag[1:]] = true
		}
	}
	for _, mention := range ExtractMentions(text) {
		if len(mention) > 1 {
			entities[mention[1:]] = true
		}
	}
	for _, kw := range ExtractKeywords(text, 5) {
		if kw.Count >= 2 {
			entities[kw.Word] = true
		}
	}
	for _, pattern := range categoryPatterns {
		for _, match := range pattern.FindAllString(text, -1) {
			entities[strings.ToLower(match)] = true
		}
	}

	var cleaned []string
	for entity := range entities {
		entity = strings.ToLower(strings.TrimSpace(entity))
		if len(entity) < 3 || stopWords[entity] || isDigits(entity) || !isAlnum(entity) {
			continue
		}
		cleaned = append(cleaned, entity)
	}
	sort.Strings(cleaned)
	return dedupSorted(cleaned)
}

func isAlnum(s string) bool {
	for _, r := range s {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) {
			return false
		}
	}
	return s != ""
}

func dedupSorted(sorted []string) []string {
	out := sorted[:0]
	for i, s := range sorted {
		if i == 0 || s != sorted[i-1] {
			out = append(out, s)
		}
	}
	return out
}
