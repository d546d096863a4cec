// Package ageclass derives the competition category for a runner from
// gender, birth year and the year of the event.
package ageclass

// Classify returns the age class label for a runner, e.g. "MS D",
// "WJG B" or "LM40". It returns the empty string when gender is not
// one of "male"/"female" or the birth year is unset; classification is
// skipped in that case, not treated as an error. The age may be
// negative or implausibly large, bounds are the caller's concern.
func Classify(gender string, birthYear, eventYear int) string {
	if birthYear == 0 || (gender != "male" && gender != "female") {
		return ""
	}
	age := eventYear - birthYear

	g := "M"
	if gender == "female" {
		g = "W"
	}

	switch {
	case age < 16:
		return g + "S " + schuelerBand(age)
	case age < 20:
		return g + "JG " + jugendBand(age)
	default:
		return "L" + g + seniorBand(age)
	}
}

// Schueler sub-bands, youngest first.
func schuelerBand(age int) string {
	switch {
	case age <= 9:
		return "D"
	case age <= 11:
		return "C"
	case age <= 13:
		return "B"
	default:
		return "A"
	}
}

func jugendBand(age int) string {
	if age <= 17 {
		return "B"
	}
	return "A"
}

func seniorBand(age int) string {
	switch {
	case age <= 29:
		return "20"
	case age <= 34:
		return "30"
	case age <= 39:
		return "35"
	case age <= 44:
		return "40"
	case age <= 49:
		return "45"
	case age <= 54:
		return "50"
	case age <= 59:
		return "55"
	case age <= 64:
		return "60"
	case age <= 69:
		return "65"
	default:
		return "70"
	}
}
