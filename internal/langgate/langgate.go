// Package langgate decides whether a transcription's detected language
// matches the language the speaker is expected to use.
//
// Transcription backends are inconsistent about how they report language:
// ISO 639-1 codes ("en"), full English names ("english"), native names
// ("español"), sometimes misspelled. The gate canonicalizes both sides to a
// code, exact-first then fuzzy, and drops chunks whose detected language
// differs from the expected one: in practice those are background speakers
// and media audio bleeding into the microphone. Anything the gate cannot
// recognise is kept, so an exotic language never silences the user.
package langgate

import (
	"strings"

	"github.com/antzucaro/matchr"
)

// fuzzyThreshold is the minimum Jaro-Winkler score for a misspelled language
// name to count as a table hit.
const fuzzyThreshold = 0.92

// canonical maps language codes, English names, and common native names to
// ISO 639-1 codes. Covers the languages the supported STT backends report.
var canonical = map[string]string{
	"en": "en", "english": "en",
	"es": "es", "spanish": "es", "español": "es", "espanol": "es",
	"de": "de", "german": "de", "deutsch": "de",
	"fr": "fr", "french": "fr", "français": "fr", "francais": "fr",
	"it": "it", "italian": "it", "italiano": "it",
	"pt": "pt", "portuguese": "pt", "português": "pt", "portugues": "pt",
	"nl": "nl", "dutch": "nl", "nederlands": "nl",
	"pl": "pl", "polish": "pl", "polski": "pl",
	"ru": "ru", "russian": "ru",
	"uk": "uk", "ukrainian": "uk",
	"tr": "tr", "turkish": "tr",
	"ja": "ja", "japanese": "ja",
	"ko": "ko", "korean": "ko",
	"zh": "zh", "chinese": "zh", "mandarin": "zh",
	"ar": "ar", "arabic": "ar",
	"hi": "hi", "hindi": "hi",
	"sv": "sv", "swedish": "sv",
	"no": "no", "norwegian": "no",
	"da": "da", "danish": "da",
	"fi": "fi", "finnish": "fi",
	"cs": "cs", "czech": "cs",
	"el": "el", "greek": "el",
	"he": "he", "hebrew": "he",
	"vi": "vi", "vietnamese": "vi",
	"th": "th", "thai": "th",
	"id": "id", "indonesian": "id",
	"ro": "ro", "romanian": "ro",
	"hu": "hu", "hungarian": "hu",
}

// Canonicalize maps a language label to its ISO 639-1 code. ok is false when
// the label is empty or matches nothing, even fuzzily.
func Canonicalize(lang string) (code string, ok bool) {
	key := strings.ToLower(strings.TrimSpace(lang))
	if key == "" {
		return "", false
	}
	if code, ok := canonical[key]; ok {
		return code, true
	}

	// Fuzzy pass rescues misspellings from STT backends that report full
	// names ("englsh", "germn"). Codes are too short to fuzz safely, so
	// only names longer than three runes participate.
	if len([]rune(key)) <= 3 {
		return "", false
	}
	bestScore := 0.0
	bestCode := ""
	for name, code := range canonical {
		if len([]rune(name)) <= 3 {
			continue
		}
		if score := matchr.JaroWinkler(key, name, false); score > bestScore {
			bestScore = score
			bestCode = code
		}
	}
	if bestScore >= fuzzyThreshold {
		return bestCode, true
	}
	return "", false
}

// Result is the gate's verdict for one chunk.
type Result struct {
	// Keep is false when the chunk should be dropped as background audio.
	Keep bool

	// Detected and Expected are the canonicalized codes, empty when unknown.
	Detected string
	Expected string
}

// Gate compares a detected language against the expected one. Unknown or
// missing languages keep the chunk (fail open); only a confident mismatch
// drops it.
func Gate(detected, expected string) Result {
	det, detOK := Canonicalize(detected)
	exp, expOK := Canonicalize(expected)

	r := Result{Detected: det, Expected: exp}
	if !detOK || !expOK {
		r.Keep = true
		return r
	}
	r.Keep = det == exp
	return r
}
