package services

import (
	"fmt"
	"strings"

	"github.com/playwright-community/playwright-go"

	"jobpilot/config"
)

// FieldKind classifies what a form control is asking for.
type FieldKind string

const (
	FieldEmail       FieldKind = "email"
	FieldPhone       FieldKind = "phone"
	FieldFirstName   FieldKind = "first_name"
	FieldLastName    FieldKind = "last_name"
	FieldFullName    FieldKind = "full_name"
	FieldLocation    FieldKind = "location"
	FieldResume      FieldKind = "resume_upload"
	FieldCoverLetter FieldKind = "cover_letter_upload"
	FieldSelect      FieldKind = "select"
	FieldFreeText    FieldKind = "free_text"
)

// FormField is one fillable control on the current application step. Fields
// are collected fresh on every step and discarded afterward: a locator goes
// stale the moment the form re-renders.
type FormField struct {
	Label   string
	Kind    FieldKind
	Options []string // select choices, when the control is a dropdown
	locator playwright.Locator
}

// CollectFields scans the visible form controls on the page and classifies
// them. Already-filled inputs are skipped so a re-rendered step does not get
// typed into twice.
func CollectFields(page playwright.Page) ([]FormField, error) {
	var fields []FormField

	inputs, err := page.Locator("input:visible").All()
	if err != nil {
		return nil, fmt.Errorf("could not enumerate inputs: %v", err)
	}
	for _, input := range inputs {
		typ, _ := input.GetAttribute("type")
		switch strings.ToLower(typ) {
		case "hidden", "submit", "button", "checkbox", "radio", "image", "reset", "search":
			continue
		}
		if value, err := input.InputValue(); err == nil && value != "" {
			continue
		}
		label := labelForControl(page, input)
		fields = append(fields, FormField{
			Label:   label,
			Kind:    classifyTextField(label, strings.ToLower(typ)),
			locator: input,
		})
	}

	// File inputs are routinely hidden behind styled buttons, so visibility
	// is not required here.
	uploads, err := page.Locator("input[type='file']").All()
	if err == nil {
		for _, upload := range uploads {
			label := labelForControl(page, upload)
			kind := FieldResume
			if strings.Contains(strings.ToLower(label), "cover") {
				kind = FieldCoverLetter
			}
			fields = append(fields, FormField{Label: label, Kind: kind, locator: upload})
		}
	}

	textareas, err := page.Locator("textarea:visible").All()
	if err == nil {
		for _, textarea := range textareas {
			if value, err := textarea.InputValue(); err == nil && value != "" {
				continue
			}
			label := labelForControl(page, textarea)
			fields = append(fields, FormField{Label: label, Kind: FieldFreeText, locator: textarea})
		}
	}

	selects, err := page.Locator("select:visible").All()
	if err == nil {
		for _, dropdown := range selects {
			label := labelForControl(page, dropdown)
			fields = append(fields, FormField{
				Label:   label,
				Kind:    FieldSelect,
				Options: selectChoices(dropdown),
				locator: dropdown,
			})
		}
	}

	return fields, nil
}

// labelForControl recovers the human-readable question for a control:
// aria-label, then placeholder, then the <label for=...> element, then an
// enclosing label, then a humanized name attribute.
func labelForControl(page playwright.Page, control playwright.Locator) string {
	if label, _ := control.GetAttribute("aria-label"); strings.TrimSpace(label) != "" {
		return cleanLine(label)
	}
	if placeholder, _ := control.GetAttribute("placeholder"); strings.TrimSpace(placeholder) != "" {
		return cleanLine(placeholder)
	}
	if id, _ := control.GetAttribute("id"); id != "" {
		tag := page.Locator(fmt.Sprintf("label[for=%q]", id)).First()
		if n, err := tag.Count(); err == nil && n > 0 {
			if text, err := tag.InnerText(); err == nil && strings.TrimSpace(text) != "" {
				return cleanLine(text)
			}
		}
	}
	enclosing := control.Locator("xpath=ancestor::label[1]").First()
	if n, err := enclosing.Count(); err == nil && n > 0 {
		if text, err := enclosing.InnerText(); err == nil && strings.TrimSpace(text) != "" {
			return cleanLine(text)
		}
	}
	if name, _ := control.GetAttribute("name"); name != "" {
		return cleanLine(strings.NewReplacer("_", " ", "-", " ").Replace(name))
	}
	return ""
}

func classifyTextField(label, typ string) FieldKind {
	lowered := strings.ToLower(label)
	switch {
	case typ == "email" || strings.Contains(lowered, "email"):
		return FieldEmail
	case typ == "tel" || strings.Contains(lowered, "phone") || strings.Contains(lowered, "mobile"):
		return FieldPhone
	case strings.Contains(lowered, "first name") || strings.Contains(lowered, "given name"):
		return FieldFirstName
	case strings.Contains(lowered, "last name") || strings.Contains(lowered, "family name") || strings.Contains(lowered, "surname"):
		return FieldLastName
	case strings.Contains(lowered, "full name") || lowered == "name" || strings.Contains(lowered, "your name"):
		return FieldFullName
	case strings.Contains(lowered, "location") || strings.Contains(lowered, "city"):
		return FieldLocation
	default:
		return FieldFreeText
	}
}

func selectChoices(dropdown playwright.Locator) []string {
	options, err := dropdown.Locator("option").All()
	if err != nil {
		return nil
	}
	var choices []string
	for _, option := range options {
		text, err := option.InnerText()
		if err != nil {
			continue
		}
		text = cleanLine(text)
		if text == "" || strings.HasPrefix(strings.ToLower(text), "select") {
			continue
		}
		choices = append(choices, text)
	}
	return choices
}

// AnswerFor resolves a screening question against the answer table. A rule
// fires only when the lowered label contains one of its patterns; an
// unmatched question is left for a human.
func AnswerFor(label string, rules []config.AnswerRule) (string, bool) {
	lowered := strings.ToLower(label)
	if strings.TrimSpace(lowered) == "" {
		return "", false
	}
	for _, rule := range rules {
		for _, pattern := range rule.Match {
			if pattern != "" && strings.Contains(lowered, strings.ToLower(pattern)) {
				return rule.Answer, true
			}
		}
	}
	return "", false
}

// PickOption maps a desired answer onto the dropdown's actual choices: exact
// match first, then prefix, then substring, all case-insensitive.
func PickOption(choices []string, answer string) (string, bool) {
	want := strings.ToLower(strings.TrimSpace(answer))
	if want == "" {
		return "", false
	}
	for _, choice := range choices {
		if strings.ToLower(choice) == want {
			return choice, true
		}
	}
	for _, choice := range choices {
		if strings.HasPrefix(strings.ToLower(choice), want) {
			return choice, true
		}
	}
	for _, choice := range choices {
		if strings.Contains(strings.ToLower(choice), want) {
			return choice, true
		}
	}
	return "", false
}
