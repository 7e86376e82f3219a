// Package report implements the attendance export core: scanning a chat's
// messages for admin-posted questions, bucketing the replies, and building
// the rectangular table written to the sheet service.
package report

import (
	"strings"
	"unicode/utf8"
)

// Question marker rules: an admin message opens a new question block when
// it is at least this many characters long and starts with one of the
// known prefixes.
const minQuestionLength = 30

var questionPrefixes = []string{"Q", "Pregunta"}

// ChatMessage is the minimal view of a chat message the classifier needs.
type ChatMessage struct {
	SenderID int64
	Text     string
}

// Classification is the result of scanning a chat's message stream.
// Questions are numbered 1..Count in message order. Answers maps a
// responding user to, per question index, the texts posted inside that
// question's block, in message order.
type Classification struct {
	Count     int
	Questions map[int]string
	Answers   map[int64]map[int][]string
}

// Classify partitions the message stream into sequential question blocks.
// Each qualifying admin question opens a new block; every following message
// is recorded as an answer to the currently open block, bucketed by sender.
// Messages before the first question are dropped.
func Classify(messages []ChatMessage, adminIDs map[int64]struct{}) Classification {
	result := Classification{
		Questions: make(map[int]string),
		Answers:   make(map[int64]map[int][]string),
	}

	state := 0
	for _, m := range messages {
		if isQuestion(m, adminIDs) {
			state++
			result.Questions[state] = m.Text
			continue
		}

		if state == 0 {
			continue
		}

		byBlock := result.Answers[m.SenderID]
		if byBlock == nil {
			byBlock = make(map[int][]string)
			result.Answers[m.SenderID] = byBlock
		}
		byBlock[state] = append(byBlock[state], m.Text)
	}

	result.Count = state
	return result
}

func isQuestion(m ChatMessage, adminIDs map[int64]struct{}) bool {
	if utf8.RuneCountInString(m.Text) < minQuestionLength {
		return false
	}
	if _, ok := adminIDs[m.SenderID]; !ok {
		return false
	}
	for _, prefix := range questionPrefixes {
		if strings.HasPrefix(m.Text, prefix) {
			return true
		}
	}
	return false
}
