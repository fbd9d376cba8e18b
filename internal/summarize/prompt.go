package summarize

import "fmt"

const systemPrompt = `You summarize personal voice journal entries. Write in the speaker's language, second person never, first person never. Be concrete and warm, not clinical.`

const userPromptFormat = `Summarize the journal entry below (spoken language code: %s).

Requirements:
- Two or three sentences capturing what happened and how the speaker felt
- Then a "Highlights" list of up to five short bullet points
- Keep names, places and dates exactly as spoken
- Do not invent details that are not in the transcript

Transcript:
---
%s
---`

func buildPrompt(lang, transcript string) string {
	if lang == "" {
		lang = "unknown"
	}
	return fmt.Sprintf(userPromptFormat, lang, transcript)
}
