package models

// CheckOptions carries the per-request parameters of a correction service call.
type CheckOptions struct {
	Language string
	Level    string

	EnabledCategories  []string
	EnabledRules       []string
	DisabledCategories []string
}
