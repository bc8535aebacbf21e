package app

import "fmt"

// Labels are the user-facing texts a box renders.
type Labels struct {
	StatusFormat string
	NoStatus     string
	Waiting      string
	Open         string
	Closed       string
	StartsIn     string
	EndsIn       string
	Masked       string
	TotalFormat  string
}

var (
	englishLabels = Labels{
		StatusFormat: "Status: %s",
		NoStatus:     "-",
		Waiting:      "waiting",
		Open:         "open",
		Closed:       "closed",
		StartsIn:     "Starts in %s",
		EndsIn:       "Ends in %s",
		Masked:       "??",
		TotalFormat:  "Total %s",
	}
	koreanLabels = Labels{
		StatusFormat: "상태: %s",
		NoStatus:     "-",
		Waiting:      "대기 중",
		Open:         "진행 중",
		Closed:       "마감",
		StartsIn:     "시작까지 %s",
		EndsIn:       "마감까지 %s",
		Masked:       "??",
		TotalFormat:  "총 %s명",
	}
)

// LabelsFor returns the label set of a locale ("en" or "ko"), English otherwise.
func LabelsFor(locale string) Labels {
	if locale == "ko" {
		return koreanLabels
	}
	return englishLabels
}

func (l Labels) status(text string) string {
	if text == "" {
		text = l.NoStatus
	}
	return fmt.Sprintf(l.StatusFormat, text)
}
