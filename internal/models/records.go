package models

import "time"

type Language string

const (
	LanguageEnglish Language = "en"
	LanguageRussian Language = "ru"
)

type ScenarioSource string

const (
	ScenarioSourcePredefined ScenarioSource = "predefined"
	ScenarioSourceCustom     ScenarioSource = "custom"
)

// ScenarioMeta holds optional flavour used to ground the Keeper's narration.
type ScenarioMeta struct {
	Era                string `json:"era,omitempty" yaml:"era,omitempty"`
	Tone               string `json:"tone,omitempty" yaml:"tone,omitempty"`
	SettingDescription string `json:"settingDescription,omitempty" yaml:"settingDescription,omitempty"`
}

// Scenario is the immutable narrative seed of a one-shot.
type Scenario struct {
	ID               string         `json:"id"`
	Name             string         `json:"name"`
	Premise          string         `json:"premise"`
	ShortDescription string         `json:"shortDescription"`
	Source           ScenarioSource `json:"source"`
	Tags             []string       `json:"tags,omitempty"`
	Meta             *ScenarioMeta  `json:"meta,omitempty"`
	CreatedAt        time.Time      `json:"createdAt"`
	UpdatedAt        time.Time      `json:"updatedAt"`
}

// Investigator is the player character sheet.
type Investigator struct {
	ID                string    `json:"id"`
	Name              string    `json:"name"`
	Occupation        string    `json:"occupation"`
	Background        string    `json:"background"`
	PersonalityTraits []string  `json:"personalityTraits"`
	SkillsSummary     string    `json:"skillsSummary"`
	PlayerNotes       string    `json:"playerNotes"`
	Language          Language  `json:"language"`
	ScenarioID        string    `json:"scenarioId,omitempty"`
	CreatedAt         time.Time `json:"createdAt"`
	UpdatedAt         time.Time `json:"updatedAt"`
}
