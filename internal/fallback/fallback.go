// Package fallback answers chat turns locally when the chat endpoint is
// unavailable. Rules are plain data: an in-scope keyword set and an ordered
// list of topics evaluated first-match-wins.
package fallback

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Canned replies
const (
	OutOfScopeResponse = "I can only help with SupplyGuard platform questions. What would you like to know about our dashboard, suppliers, alerts, reports, or other platform features?"
	GenericResponse    = "I'm here to help with SupplyGuard platform features including Dashboard analytics, Suppliers management, Alerts monitoring, Reports generation, and the Tariff Calculator. What specific feature would you like to learn about?"

	DashboardResponse = "The dashboard provides a comprehensive overview of your supply chain risks, including total suppliers, active alerts, and risk distribution charts. You can use the time range filter (7d/30d/90d) to view different periods and analyze trends."
	SupplierResponse  = "In the Suppliers section, you can view all your suppliers with their risk scores, filter by country/category/risk level, and manage page sizes (25/50/100 results). Each supplier has a detailed risk assessment with scores and performance metrics."
	AlertResponse     = "The Alerts system shows real-time supply chain risks categorized by severity (Critical, High, Medium, Low) and type (Financial Risk, Compliance, Cybersecurity, etc.). You can filter alerts and adjust how many to view per page."
	ReportResponse    = "The Reports section allows you to generate professional PDF reports with templates like Executive Summary, Risk Assessment, and Compliance Audits. You can customize filters and export your supply chain data."
	TariffResponse    = "The Tariff Calculator provides real-time import/export tariff calculations using government data. Enter HS codes and select countries to get accurate duty rates and trade information."
)

// Rule pairs a topic predicate with its canned response
type Rule struct {
	Name     string   `yaml:"name"`
	Keywords []string `yaml:"keywords"`
	Response string   `yaml:"response"`
}

// Matches reports whether the lower-cased text contains any of the rule's keywords
func (r Rule) Matches(lowered string) bool {
	return containsAny(lowered, r.Keywords)
}

// RuleSet is the complete local responder configuration
type RuleSet struct {
	Scope      []string `yaml:"scope"`
	Topics     []Rule   `yaml:"topics"`
	OutOfScope string   `yaml:"out_of_scope"`
	Generic    string   `yaml:"generic"`
}

// Default returns the built-in SupplyGuard rule set
func Default() *RuleSet {
	return &RuleSet{
		Scope: []string{
			"dashboard", "supplier", "alert", "report", "risk",
			"platform", "tariff", "calculator", "chart", "metric",
		},
		Topics: []Rule{
			{Name: "dashboard", Keywords: []string{"dashboard"}, Response: DashboardResponse},
			{Name: "supplier", Keywords: []string{"supplier"}, Response: SupplierResponse},
			{Name: "alert", Keywords: []string{"alert"}, Response: AlertResponse},
			{Name: "report", Keywords: []string{"report"}, Response: ReportResponse},
			{Name: "tariff", Keywords: []string{"tariff", "calculator"}, Response: TariffResponse},
		},
		OutOfScope: OutOfScopeResponse,
		Generic:    GenericResponse,
	}
}

// Respond returns the canned reply for text
func (rs *RuleSet) Respond(text string) string {
	reply, _ := rs.Classify(text)
	return reply
}

// Classify returns the canned reply and the name of the rule that produced it:
// "out_of_scope", a topic name, or "generic".
func (rs *RuleSet) Classify(text string) (string, string) {
	lowered := strings.ToLower(text)

	if !containsAny(lowered, rs.Scope) {
		return rs.OutOfScope, "out_of_scope"
	}
	for _, rule := range rs.Topics {
		if rule.Matches(lowered) {
			return rule.Response, rule.Name
		}
	}
	return rs.Generic, "generic"
}

// Validate checks that every reply path yields a non-empty string
func (rs *RuleSet) Validate() error {
	if len(rs.Scope) == 0 {
		return errors.New("rule set needs at least one scope keyword")
	}
	if rs.OutOfScope == "" {
		return errors.New("out_of_scope response cannot be empty")
	}
	if rs.Generic == "" {
		return errors.New("generic response cannot be empty")
	}
	for i, rule := range rs.Topics {
		if len(rule.Keywords) == 0 {
			return fmt.Errorf("topic %d (%s) has no keywords", i, rule.Name)
		}
		if rule.Response == "" {
			return fmt.Errorf("topic %d (%s) has no response", i, rule.Name)
		}
	}
	return nil
}

// LoadRules reads a YAML rule set from path. An empty path yields Default.
// Keywords are lower-cased so that matching stays case-insensitive.
func LoadRules(path string) (*RuleSet, error) {
	if path == "" {
		return Default(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read rules file: %w", err)
	}
	return ParseRules(data)
}

// ParseRules decodes a YAML rule set
func ParseRules(data []byte) (*RuleSet, error) {
	var rs RuleSet
	if err := yaml.Unmarshal(data, &rs); err != nil {
		return nil, fmt.Errorf("failed to parse rules: %w", err)
	}

	rs.Scope = lowerAll(rs.Scope)
	for i := range rs.Topics {
		rs.Topics[i].Keywords = lowerAll(rs.Topics[i].Keywords)
	}

	if err := rs.Validate(); err != nil {
		return nil, fmt.Errorf("invalid rules: %w", err)
	}
	return &rs, nil
}

func containsAny(lowered string, keywords []string) bool {
	for _, kw := range keywords {
		if kw != "" && strings.Contains(lowered, kw) {
			return true
		}
	}
	return false
}

func lowerAll(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.ToLower(strings.TrimSpace(s)); s != "" {
			out = append(out, s)
		}
	}
	return out
}
