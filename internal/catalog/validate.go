package catalog

import (
	"regexp"
	"strings"
)

var (
	usernamePattern = regexp.MustCompile(`^[A-Za-z0-9_-]{3,}$`)
	keyPattern      = regexp.MustCompile(`^[A-Za-z0-9-]{8,}$`)
	refPattern      = regexp.MustCompile(`^[A-Za-z0-9_-]+/[A-Za-z0-9_.-]+$`)
)

// ValidateCredentials trims and checks the credential format before any network call.
func ValidateCredentials(creds Credentials) (Credentials, error) {
	creds.Username = strings.TrimSpace(creds.Username)
	creds.Key = strings.TrimSpace(creds.Key)
	switch {
	case creds.Username == "" || creds.Key == "":
		return Credentials{}, authError("Username and API key are required.")
	case !usernamePattern.MatchString(creds.Username):
		return Credentials{}, authError("Invalid Kaggle username format.")
	case !keyPattern.MatchString(creds.Key):
		return Credentials{}, authError("Invalid Kaggle API key format.")
	}
	return creds, nil
}

// ValidateRef checks an owner/dataset reference.
func ValidateRef(ref string) (string, error) {
	_, slug, _ := strings.Cut(ref, "/")
	if !refPattern.MatchString(ref) || strings.Trim(slug, ".") == "" {
		return "", dataError("Invalid dataset reference.", nil)
	}
	return ref, nil
}

// ValidateFilename rejects empty names and names carrying path separators.
func ValidateFilename(name string) (string, error) {
	if name == "" || strings.ContainsAny(name, `/\`) {
		return "", dataError("Invalid filename.", nil)
	}
	return name, nil
}

// NormalizeQuery lowercases a search query and collapses its whitespace.
func NormalizeQuery(q string) string {
	return strings.Join(strings.Fields(strings.ToLower(q)), " ")
}

var (
	positiveKeywords = []string{
		"population", "finance", "financial", "measurement", "measure", "sales",
		"revenue", "gdp", "income", "earthquake", "river", "length",
	}
	negativeKeywords = []string{"image", "text", "nlp", "classification", "sentiment", "review"}
)

// SuitabilityScore ranks how likely a dataset is to carry Benford-friendly magnitudes.
func SuitabilityScore(title, ref string) int {
	text := strings.ToLower(title + " " + ref)
	score := 0
	for _, w := range positiveKeywords {
		if strings.Contains(text, w) {
			score += 2
		}
	}
	for _, w := range negativeKeywords {
		if strings.Contains(text, w) {
			score -= 2
		}
	}
	return score
}
