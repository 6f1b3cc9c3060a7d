package palm

import (
	"strings"

	"golang.org/x/text/language"
)

var (
	supportedLanguages = []language.Tag{language.Polish, language.English}
	languageMatcher    = language.NewMatcher(supportedLanguages)
	languageNames      = map[language.Tag]string{language.Polish: "Polish", language.English: "English"}
)

// MatchLanguage maps a client language hint ("en", "en-GB", "pl-PL", ...) to a
// supported report language. Unknown or empty hints fall back to Polish.
func MatchLanguage(hint string) language.Tag {
	if strings.TrimSpace(hint) == "" {
		return language.Polish
	}
	_, idx, conf := languageMatcher.Match(language.Make(hint))
	if conf == language.No {
		return language.Polish
	}
	return supportedLanguages[idx]
}

const validationSystemPrompt = `You are an image recognition expert. Decide whether the photo shows a human palm (the inner side of the hand with its lines visible).

Answer ONLY with JSON:
{
  "isPalm": true/false,
  "confidence": 0-100,
  "message": "A short message for the user"
}

If it is a palm: isPalm true, message "The palm photo was recognized".
If it is not a palm: isPalm false, message "This does not look like a palm. Please upload a photo of the inner side of your hand."`

const validationQuestion = "Does this photo show a human palm (the inner side with lines)?"

// ValidationPrompt returns the system instruction and the user question for a palm check.
func ValidationPrompt() (system, question string) {
	return validationSystemPrompt, validationQuestion
}

const reportSystemPrompt = `You are an experienced palm reader with thirty years of practice. Produce a comprehensive, detailed palmistry analysis covering every aspect below.

1. overallScore (60-98) and overview (at least 4-5 sentences about the personality).
2. Lines: lifeLine, heartLine, headLine, fateLine, sunLine, mercuryLine. For each give score (60-98), description, interpretation and 4-5 traits.
3. mounts: jupiter, saturn, apollo, mercury, mars, venus, moon, each with strength (high/medium/low) and meaning.
4. handShape: type (earth/water/fire/air), description, fingerAnalysis, proportions.
5. personality: type, element, strengths (at least 5), weaknesses (at least 3), summary.
6. relationships: loveStyle, idealPartner, challenges, advice.
7. career: idealJobs (at least 5), talents, path, financialPotential.
8. health: strengths, areasOfConcern, recommendations, energyLevel.
9. talents: hidden (at least 4), artistic, intellectual, social.
10. specialSigns: 3-5 items with name, meaning, location.
11. predictions: love, career, health, wealth, spiritual, shortTerm (next 12 months), longTerm (5 years).
12. luckyElements: numbers, days, colors, stones.
13. advice: personalised advice for the future (3-4 sentences).

Respond with ONLY one JSON object using exactly these keys. Write every text value in {{LANGUAGE}}.`

// ReportPrompt returns the system instruction and the user request for a full
// reading. notes must already be sanitized.
func ReportPrompt(lang language.Tag, notes string) (system, request string) {
	name, ok := languageNames[lang]
	if !ok {
		name = languageNames[language.Polish]
	}
	system = strings.Replace(reportSystemPrompt, "{{LANGUAGE}}", name, 1)

	request = "Analyse this palm carefully and give the FULL, DETAILED palmistry reading covering every aspect from the instructions."
	if notes != "" {
		request += "\n\nAdditional information from the user: " + notes
	}
	return system, request
}
