package generator

import (
	"fmt"
	"maps"
	"regexp"
	"strconv"
	"strings"

	"github.com/ibeckermayer/trendpersona/internal/types"
)

var placeholderPattern = regexp.MustCompile(`\{([a-zA-Z0-9_]+)\}`)

// RenderTemplate replaces {key} placeholders with values. Unknown keys are
// left as they are.
func RenderTemplate(tmpl string, values map[string]string) string {
	return placeholderPattern.ReplaceAllStringFunc(tmpl, func(m string) string {
		if v, ok := values[m[1:len(m)-1]]; ok {
			return v
		}
		return m
	})
}

func classificationPrompt(topic string) string {
	names := make([]string, len(types.Categories))
	for i, c := range types.Categories {
		names[i] = string(c)
	}
	return fmt.Sprintf(`Classify the following trending topic into exactly one of these categories: %s.

- tech: technology, science, software, gadgets, games, the internet
- casual: sports, entertainment, celebrities, daily life, humour, anything else
- sad: deaths, disasters, accidents, tragedies, mourning

Topic: %s

Reply with only the category name.`, strings.Join(names, ", "), topic)
}

// personaValues merges persona settings with the length placeholder. A
// configured max_post_length wins over maxLen only when it is smaller.
func personaValues(settings map[string]string, maxLen int) map[string]string {
	values := maps.Clone(settings)
	if values == nil {
		values = map[string]string{}
	}
	limit := maxLen
	if n, err := strconv.Atoi(values["max_post_length"]); err == nil && n > 0 && n < limit {
		limit = n
	}
	values["max_post_length"] = strconv.Itoa(limit)
	return values
}

func generationPrompt(tmpl string, values map[string]string, topic string) string {
	return RenderTemplate(tmpl, values) + "\nTopic: " + topic
}

func shortenPrompt(text string, maxLen int) string {
	return fmt.Sprintf(`The following post is too long. Rewrite it in at most %d characters.
Keep the language, tone and meaning. Finish with a complete sentence.
Reply with only the rewritten post, no quotes.

%s`, maxLen, text)
}

func enhancePrompt(persona string, text string, maxLen int) string {
	return fmt.Sprintf(`%s

Rewrite the following draft into a more engaging post in the same voice.

Draft: %s

Rules:
1. At most %d characters, emojis and hashtags included.
2. Do not leave the post unfinished; end with a complete sentence.
3. Keep the original meaning and language.
4. Reply with only the post, no quotes or explanations.`, persona, text, maxLen)
}
