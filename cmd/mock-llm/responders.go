package main

import (
	"encoding/json"
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

const (
	questionMarker = "Question: "
	answerMarker   = "Answer: "
	existingMarker = "Existing Codes: "

	questionsHeading  = "## Questions\n"
	transcriptHeading = "\n## Transcript\n"

	notFound = "not found"

	minCodeWordLen  = 4
	minNewWordLen   = 5
	maxNewCodeWords = 2
)

var (
	numberedItemRe = regexp.MustCompile(`^(\d+)\.\s+(.+)$`)
	answerPrefixRe = regexp.MustCompile(`(?i)^(a|answer|respondent|interviewee)\s*:\s*`)
)

var stopWords = map[string]bool{
	"about": true, "after": true, "again": true, "because": true, "being": true,
	"could": true, "every": true, "their": true, "there": true, "these": true,
	"thing": true, "things": true, "think": true, "those": true, "where": true,
	"which": true, "while": true, "would": true, "really": true, "mostly": true,
	"maybe": true, "other": true, "still": true, "since": true,
}

func lastUserMessage(messages []chatMessage) string {
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == "user" {
			return messages[i].Content
		}
	}
	return ""
}

// parseCodingPrompt reads the last question, answer and existing code list
// of a coding prompt. Earlier occurrences belong to worked examples.
func parseCodingPrompt(text string) (question, answer string, existing []string, ok bool) {
	qi := strings.LastIndex(text, questionMarker)
	ai := strings.LastIndex(text, answerMarker)
	ei := strings.LastIndex(text, existingMarker)
	if qi < 0 || ai < qi || ei < ai {
		return "", "", nil, false
	}

	question = strings.TrimSpace(text[qi+len(questionMarker) : ai])
	answer = strings.TrimSpace(text[ai+len(answerMarker) : ei])

	list := text[ei+len(existingMarker):]
	if nl := strings.IndexByte(list, '\n'); nl >= 0 {
		list = list[:nl]
	}
	if err := json.Unmarshal([]byte(strings.TrimSpace(list)), &existing); err != nil {
		return "", "", nil, false
	}
	return question, answer, existing, true
}

// codeAnswer keeps the existing codes that share a word with the answer and
// adds one code built from the answer's first significant words.
func codeAnswer(_, answer string, existing []string) []string {
	words := significantWords(answer, minCodeWordLen)
	if len(words) == 0 {
		return []string{}
	}
	present := make(map[string]bool, len(words))
	for _, w := range words {
		present[w] = true
	}

	codes := []string{}
	seen := make(map[string]bool)
	for _, code := range existing {
		for _, w := range significantWords(code, minCodeWordLen) {
			if present[w] {
				codes = append(codes, code)
				seen[strings.ToLower(code)] = true
				break
			}
		}
	}

	var picked []string
	for _, w := range significantWords(answer, minNewWordLen) {
		if stopWords[w] || contains(picked, w) {
			continue
		}
		picked = append(picked, w)
		if len(picked) == maxNewCodeWords {
			break
		}
	}
	if len(picked) > 0 {
		// A Caser is stateful, so each call gets its own.
		code := cases.Title(language.English).String(strings.Join(picked, " "))
		if !seen[strings.ToLower(code)] {
			codes = append(codes, code)
		}
	}
	return codes
}

// parseExtractionPrompt splits an extraction prompt into its numbered
// questions and the transcript text.
func parseExtractionPrompt(text string) (questions []string, transcript string, ok bool) {
	qi := strings.Index(text, questionsHeading)
	ti := strings.Index(text, transcriptHeading)
	if qi < 0 || ti < qi {
		return nil, "", false
	}

	for _, line := range strings.Split(text[qi+len(questionsHeading):ti], "\n") {
		if m := numberedItemRe.FindStringSubmatch(strings.TrimSpace(line)); m != nil {
			questions = append(questions, m[2])
		}
	}
	if len(questions) == 0 {
		return nil, "", false
	}
	return questions, text[ti+len(transcriptHeading):], true
}

// extractAnswers answers each question with the first non-empty transcript
// line after the line that asks it.
func extractAnswers(questions []string, transcript string) map[string]string {
	lines := strings.Split(transcript, "\n")
	answers := make(map[string]string, len(questions))

	for i, q := range questions {
		key := strconv.Itoa(i + 1)
		answers[key] = notFound

		needle := strings.ToLower(strings.TrimRight(strings.TrimSpace(q), "?"))
		for n, line := range lines {
			if !strings.Contains(strings.ToLower(line), needle) {
				continue
			}
			for _, next := range lines[n+1:] {
				next = strings.TrimSpace(answerPrefixRe.ReplaceAllString(strings.TrimSpace(next), ""))
				if next != "" {
					answers[key] = next
					break
				}
			}
			break
		}
	}
	return answers
}

// significantWords returns the lower-cased words of s with at least minLen
// letters, in order.
func significantWords(s string, minLen int) []string {
	fields := strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r)
	})
	out := fields[:0]
	for _, f := range fields {
		if len([]rune(f)) >= minLen {
			out = append(out, f)
		}
	}
	return out
}

func contains(values []string, want string) bool {
	for _, v := range values {
		if v == want {
			return true
		}
	}
	return false
}
