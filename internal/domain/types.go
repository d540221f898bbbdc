package domain

import "strings"

// Language selects the instruction templates and header patterns used for a run.
type Language string

const (
	LanguageEnglish Language = "en"
	LanguageChinese Language = "zh"
)

// ParseLanguage maps free-form input onto a supported language. Unknown values
// resolve to English, matching the behaviour of the upload form default.
func ParseLanguage(value string) Language {
	v := strings.ToLower(strings.TrimSpace(value))
	switch {
	case strings.HasPrefix(v, "zh"), v == "cn", v == "chinese":
		return LanguageChinese
	default:
		return LanguageEnglish
	}
}

// Alternate returns the other supported language.
func (l Language) Alternate() Language {
	if l == LanguageChinese {
		return LanguageEnglish
	}
	return LanguageChinese
}

// Flavor enumerates the independent pipelines a run can execute.
type Flavor string

const (
	FlavorMusic  Flavor = "music"
	FlavorTags   Flavor = "tags"
	FlavorImages Flavor = "images"
)

// ParseFlavors splits a comma separated mode list into flavors in execution
// order: tags, images, music. Unknown entries are ignored and an empty input
// selects every flavor.
func ParseFlavors(csv string) []Flavor {
	all := []Flavor{FlavorTags, FlavorImages, FlavorMusic}
	if strings.TrimSpace(csv) == "" {
		return all
	}
	seen := map[Flavor]bool{}
	for _, part := range strings.Split(strings.ToLower(csv), ",") {
		f := Flavor(strings.TrimSpace(part))
		switch f {
		case FlavorMusic, FlavorTags, FlavorImages:
			seen[f] = true
		}
	}
	var out []Flavor
	for _, f := range all {
		if seen[f] {
			out = append(out, f)
		}
	}
	return out
}

// RunState enumerates the lifecycle of one pipeline invocation.
type RunState string

const (
	RunStateCreated        RunState = "created"
	RunStateGeneratingText RunState = "generating_text"
	RunStatePostprocessing RunState = "postprocessing"
	RunStateInvoking       RunState = "invoking"
	RunStatePersisting     RunState = "persisting"
	RunStateDone           RunState = "done"
	RunStateFailed         RunState = "failed"
)

// TaskStatus is the coarse state recorded for deferred work in a run directory.
type TaskStatus string

const (
	TaskStatusPending TaskStatus = "pending"
	TaskStatusDone    TaskStatus = "done"
	TaskStatusFailed  TaskStatus = "failed"
)
