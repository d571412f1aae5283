package scoring

import (
	"math"
	"regexp"
	"strconv"
	"strings"

	"callscreen/internal/types"
)

// educationKeywords is checked in rank order so the highest match wins.
var educationKeywords = []struct {
	keyword string
	level   types.EducationLevel
}{
	{"diploma", types.EducationDiploma},
	{"bachelor", types.EducationBachelor},
	{"master", types.EducationMaster},
	{"phd", types.EducationPhD},
}

var yearsPattern = regexp.MustCompile(`(?i)(\d+)\s*years?`)

const (
	skillPoints = 2.5
	skillCap    = 12.5
)

// HighestEducation classifies each degree by keyword containment and
// returns the highest level found, or EducationUnknown.
func HighestEducation(entries []types.EducationEntry) types.EducationLevel {
	highest := types.EducationUnknown
	for _, entry := range entries {
		degree := strings.ToLower(entry.Degree)
		for _, k := range educationKeywords {
			if strings.Contains(degree, k.keyword) && k.level > highest {
				highest = k.level
			}
		}
	}
	return highest
}

// EducationBonus rewards a PhD over a master requirement (+5) and a master
// over a bachelor requirement (+3). Education never disqualifies. An unset
// requirement counts as diploma.
func EducationBonus(candidate, required types.EducationLevel) float64 {
	if required == types.EducationUnknown {
		required = types.EducationDiploma
	}
	switch {
	case candidate == types.EducationPhD && required == types.EducationMaster:
		return 5
	case candidate == types.EducationMaster && required == types.EducationBachelor:
		return 3
	}
	return 0
}

// YearsOfExperience returns the largest "<N> year(s)" count across entries,
// taking the first match of each entry.
func YearsOfExperience(entries []string) int {
	years := 0
	for _, entry := range entries {
		m := yearsPattern.FindStringSubmatch(entry)
		if m == nil {
			continue
		}
		n, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		years = max(years, n)
	}
	return years
}

// ExperienceScore maps years to exactly one band.
func ExperienceScore(years int) float64 {
	switch {
	case years >= 5:
		return 25
	case years >= 3:
		return 20
	case years >= 1:
		return 12
	default:
		return 5
	}
}

// MatchSkills returns the required skills the candidate lists, compared
// case-insensitively, in the order of required.
func MatchSkills(candidate, required []string) []string {
	have := make(map[string]struct{}, len(candidate))
	for _, s := range candidate {
		have[normalizeSkill(s)] = struct{}{}
	}

	var matched []string
	seen := make(map[string]struct{}, len(required))
	for _, s := range required {
		key := normalizeSkill(s)
		if key == "" {
			continue
		}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		if _, ok := have[key]; ok {
			matched = append(matched, key)
		}
	}
	return matched
}

// SkillScore is 2.5 points per matched skill, capped at 12.5.
func SkillScore(matched int) float64 {
	return math.Min(skillPoints*float64(matched), skillCap)
}

// ContactScore is 7.5 with both email and phone, 5 with one of them.
func ContactScore(email, phone string) float64 {
	hasEmail := strings.TrimSpace(email) != ""
	hasPhone := strings.TrimSpace(phone) != ""
	switch {
	case hasEmail && hasPhone:
		return 7.5
	case hasEmail || hasPhone:
		return 5
	}
	return 0
}

func normalizeSkill(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
