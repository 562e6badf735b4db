// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package realtime

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"
)

// UnknownLanguage is the current language before any directive is seen.
const UnknownLanguage = "unknown"

// directiveKeyword and directiveTerminator bracket the language name in
// the directive grammar:
//
//	directive = "practice" 1*space language 1*space "at" boundary
//	language  = 1*letter
//
// Matching is best effort: instruction text written to fool the scanner
// ("practice speaking at home") yields a wrong language, and names with
// spaces ("Brazilian Portuguese") are not recognized.
const (
	directiveKeyword    = "practice"
	directiveTerminator = "at"
)

// ParseLanguageDirective returns the language named by the first
// "practice <Language> at" directive in instructions.
func ParseLanguageDirective(instructions string) (string, bool) {
	offset := 0
	for {
		index := strings.Index(instructions[offset:], directiveKeyword)
		if index < 0 {
			return "", false
		}
		start := offset + index
		offset = start + len(directiveKeyword)

		if start > 0 {
			previous, _ := utf8.DecodeLastRuneInString(instructions[:start])
			if unicode.IsLetter(previous) {
				continue
			}
		}
		if language, ok := scanDirectiveTail(instructions[offset:]); ok {
			return language, true
		}
	}
}

// scanDirectiveTail matches `1*space language 1*space "at" boundary` at
// the start of text.
func scanDirectiveTail(text string) (string, bool) {
	rest, ok := skipSpaces(text)
	if !ok {
		return "", false
	}

	end := strings.IndexFunc(rest, func(r rune) bool { return !unicode.IsLetter(r) })
	if end <= 0 {
		return "", false
	}
	language := rest[:end]

	rest, ok = skipSpaces(rest[end:])
	if !ok || !strings.HasPrefix(rest, directiveTerminator) {
		return "", false
	}
	rest = rest[len(directiveTerminator):]
	if next, _ := utf8.DecodeRuneInString(rest); rest != "" && unicode.IsLetter(next) {
		return "", false
	}
	return language, true
}

// skipSpaces removes leading whitespace, requiring at least one rune.
func skipSpaces(text string) (string, bool) {
	trimmed := strings.TrimLeftFunc(text, unicode.IsSpace)
	return trimmed, len(trimmed) < len(text)
}

// Language is a practice language offered by the overlay.
type Language struct {
	ID    string
	Label string
	Flag  string
}

// Level is a practice difficulty.
type Level struct {
	ID       string
	Guidance string
}

// Languages lists the languages offered by the overlay, first is default.
var Languages = []Language{
	{ID: "English", Label: "English", Flag: "🇺🇸"},
	{ID: "Spanish", Label: "Spanish", Flag: "🇪🇸"},
	{ID: "Chinese", Label: "Chinese", Flag: "🇨🇳"},
}

// Levels lists the difficulties offered by the overlay, first is default.
var Levels = []Level{
	{
		ID:       "Beginner",
		Guidance: "Use simple vocabulary and basic sentence structures. Speak slowly and clearly. Correct basic mistakes gently.",
	},
	{
		ID:       "Intermediate",
		Guidance: "Use moderate vocabulary and varied sentences. Introduce some idioms and expressions. Correct errors when they hinder understanding.",
	},
	{
		ID:       "Advanced",
		Guidance: "Use advanced vocabulary, complex sentences, idioms, and cultural references. Correct subtle errors and discuss nuances of language.",
	},
}

// LookupLanguage finds a language by ID.
func LookupLanguage(id string) (Language, bool) {
	for _, language := range Languages {
		if language.ID == id {
			return language, true
		}
	}
	return Language{}, false
}

// LookupLevel finds a level by ID.
func LookupLevel(id string) (Level, bool) {
	for _, level := range Levels {
		if level.ID == id {
			return level, true
		}
	}
	return Level{}, false
}

// TutorInstructions renders the tutor instructions for a language and
// level. The text always contains a directive ParseLanguageDirective
// recognizes.
func TutorInstructions(language Language, level Level) string {
	return fmt.Sprintf(`You are a language tutor helping the user practice %[1]s at %[2]s level.
You should ONLY speak in %[1]s.

For %[2]s level:
%[3]s

Start by introducing yourself as a %[1]s language tutor and suggest a topic to discuss in %[1]s.`,
		language.ID, level.ID, level.Guidance)
}
