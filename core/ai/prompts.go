package ai

import (
	"fmt"
	"strings"
)

// IsChinese reports whether the requested language selects a Chinese answer.
func IsChinese(lang string) bool {
	switch strings.ToLower(strings.TrimSpace(lang)) {
	case "", "zh", "zh-cn", "zh-hans", "chinese":
		return true
	}
	return false
}

func responseLanguage(lang string) string {
	if IsChinese(lang) {
		return "Chinese"
	}
	return "English"
}

const goalPromptTmpl = `You are an AI assistant helping users achieve their goals.
Based on the following goal, provide 3 actionable suggestions to help the user achieve it.

Goal: %s
Description: %s

Please provide suggestions in the following format:
1. [Suggestion Title]
   [Detailed description of the suggestion]

2. [Suggestion Title]
   [Detailed description of the suggestion]

3. [Suggestion Title]
   [Detailed description of the suggestion]

Make the suggestions specific, actionable, and prioritized (high, medium, low).
Write the response in %s.`

const studyPlanPromptTmpl = `You are an AI assistant helping users prepare for exams.
Based on the following exam information, create a study plan.

Exam: %s
Description: %s

Please provide a study plan in the following format:
1. [Task Title]
   [Detailed description of the task]

2. [Task Title]
   [Detailed description of the task]

3. [Task Title]
   [Detailed description of the task]

Make the tasks specific, actionable, and prioritized (high, medium, low).
Write the response in %s.`

func GoalPrompt(title, description, lang string) string {
	return fmt.Sprintf(goalPromptTmpl, title, description, responseLanguage(lang))
}

func StudyPlanPrompt(title, summary, lang string) string {
	return fmt.Sprintf(studyPlanPromptTmpl, title, summary, responseLanguage(lang))
}
