// Package speechtext turns chat-formatted companion messages into prose that
// a speech synthesizer can read aloud.
//
// Companion messages mix spoken dialogue with narrated actions:
//
//	**_Hola, ¿cómo estás?_** *sonríe*
//
// Dialogue is wrapped in bold+emphasis (**_…_**) or plain bold (**…**);
// single-asterisk spans are actions and are not spoken. [Normalize] extracts
// the dialogue, cleans punctuation that trips up synthesizers, and caps the
// length.
package speechtext

import (
	"regexp"
	"strings"
)

const (
	// MaxPlaybackChars caps text synthesized for in-app playback.
	MaxPlaybackChars = 1500

	// MaxServerChars caps text accepted by the provider edge functions.
	MaxServerChars = 3000
)

var (
	// Emphasis-wrapped dialogue: **_text_** or _**text**_.
	emphasisRe = regexp.MustCompile(`\*\*_(.+?)_\*\*|_\*\*(.+?)\*\*_`)

	// Bold-only dialogue.
	boldRe = regexp.MustCompile(`\*\*(.+?)\*\*`)

	markupRe = regexp.MustCompile("[*_~`#]+")
)

// post-processing rules, applied in order.
var (
	repeatedCommaRe  = regexp.MustCompile(`,(\s*,)+`)
	commaTerminalRe  = regexp.MustCompile(`,\s*([.!?…])`)
	manyDotsRe       = regexp.MustCompile(`\.{3,}`)
	conjunctionRe    = regexp.MustCompile(`(?i)\s+(y|e|o|u|ni|pero)\s+`)
	repeatedBangRe   = regexp.MustCompile(`!{2,}`)
	repeatedQuestRe  = regexp.MustCompile(`\?{2,}`)
	repeatedIBangRe  = regexp.MustCompile(`¡{2,}`)
	repeatedIQuestRe = regexp.MustCompile(`¿{2,}`)
	dashRe           = regexp.MustCompile(`[-–—]+`)
	bracketRe        = regexp.MustCompile(`[()\[\]{}]`)
	spaceRe          = regexp.MustCompile(`\s+`)
	sentenceGapRe    = regexp.MustCompile(`([.!?])(\p{L})`)
)

// Normalize returns the speakable form of raw, at most maxChars runes long.
// A maxChars of zero or less disables the cap. An empty result means there is
// nothing to synthesize.
func Normalize(raw string, maxChars int) string {
	text := ExtractDialogue(raw)
	if text == "" {
		text = StripMarkup(raw)
	}
	text = Clean(text)
	return Truncate(text, maxChars)
}

// ExtractDialogue returns the spoken segments of raw joined by single spaces,
// in the order they appear. Emphasis-wrapped segments take precedence; bold
// segments overlapping one of them are not captured twice. It returns "" when
// raw has no dialogue markers.
func ExtractDialogue(raw string) string {
	type segment struct {
		start, end int
		text       string
	}
	var segs []segment

	for _, m := range emphasisRe.FindAllStringSubmatchIndex(raw, -1) {
		var body string
		switch {
		case m[2] >= 0:
			body = raw[m[2]:m[3]]
		case m[4] >= 0:
			body = raw[m[4]:m[5]]
		}
		segs = append(segs, segment{start: m[0], end: m[1], text: body})
	}

	for _, m := range boldRe.FindAllStringSubmatchIndex(raw, -1) {
		overlaps := false
		for _, s := range segs {
			if m[0] < s.end && s.start < m[1] {
				overlaps = true
				break
			}
		}
		if overlaps {
			continue
		}
		segs = append(segs, segment{start: m[0], end: m[1], text: raw[m[2]:m[3]]})
	}

	if len(segs) == 0 {
		return ""
	}

	// Restore left-to-right order across both passes.
	for i := 1; i < len(segs); i++ {
		for j := i; j > 0 && segs[j].start < segs[j-1].start; j-- {
			segs[j], segs[j-1] = segs[j-1], segs[j]
		}
	}

	parts := make([]string, 0, len(segs))
	for _, s := range segs {
		if t := strings.TrimSpace(markupRe.ReplaceAllString(s.text, "")); t != "" {
			parts = append(parts, t)
		}
	}
	return strings.Join(parts, " ")
}

// StripMarkup removes every formatting marker from raw and keeps the text.
func StripMarkup(raw string) string {
	return strings.TrimSpace(markupRe.ReplaceAllString(raw, ""))
}

// maxCleanPasses bounds how often the rules are reapplied. Removing brackets
// or dashes can expose a new match for an earlier rule, e.g. "hola, (.)".
const maxCleanPasses = 4

// Clean applies the punctuation and spacing rules that make text safe for
// synthesis, repeating them until the text stops changing. Text without
// markers or odd punctuation passes through with only whitespace
// canonicalised.
func Clean(text string) string {
	for range maxCleanPasses {
		next := cleanOnce(text)
		if next == text {
			break
		}
		text = next
	}
	return text
}

func cleanOnce(text string) string {
	text = repeatedCommaRe.ReplaceAllString(text, ",")
	text = commaTerminalRe.ReplaceAllString(text, "$1")
	text = manyDotsRe.ReplaceAllString(text, "..")
	text = conjunctionRe.ReplaceAllString(text, " $1 ")
	text = repeatedBangRe.ReplaceAllString(text, "!")
	text = repeatedQuestRe.ReplaceAllString(text, "?")
	text = repeatedIBangRe.ReplaceAllString(text, "¡")
	text = repeatedIQuestRe.ReplaceAllString(text, "¿")
	text = strings.ReplaceAll(text, ";", ",")
	text = dashRe.ReplaceAllString(text, " ")
	text = bracketRe.ReplaceAllString(text, "")
	text = spaceRe.ReplaceAllString(text, " ")
	text = strings.TrimSpace(text)
	text = sentenceGapRe.ReplaceAllString(text, "$1 $2")
	return text
}

// Truncate cuts text to at most maxChars runes. No word-boundary handling.
func Truncate(text string, maxChars int) string {
	if maxChars <= 0 {
		return text
	}
	n := 0
	for i := range text {
		if n == maxChars {
			return text[:i]
		}
		n++
	}
	return text
}
