package security

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/doeshing/dexplorer/internal/domain"
	"github.com/doeshing/dexplorer/internal/ports"
)

// Guardrail implements the StatementGuard port with regex rules.
type Guardrail struct {
	patterns []compiledPattern
}

type compiledPattern struct {
	re   *regexp.Regexp
	rule DangerPattern
}

// DangerPattern describes a regex-based guardrail rule. Patterns are matched
// case-insensitively against the whole statement.
type DangerPattern struct {
	Pattern string `yaml:"pattern"`
	Level   string `yaml:"level"`
	Message string `yaml:"message"`
	Action  string `yaml:"action"`
}

// RulesFile is the YAML schema root.
type RulesFile struct {
	Rules struct {
		DangerPatterns []DangerPattern `yaml:"danger_patterns"`
	} `yaml:"rules"`
}

// NewGuardrail loads rules from path, falling back to the built-in rules when
// the file is missing or lists none.
func NewGuardrail(path string) (*Guardrail, error) {
	rules, err := loadRules(path)
	if err != nil {
		return nil, err
	}

	compiled := make([]compiledPattern, 0, len(rules.Rules.DangerPatterns))
	for _, pattern := range rules.Rules.DangerPatterns {
		re, err := regexp.Compile("(?is)" + pattern.Pattern)
		if err != nil {
			return nil, fmt.Errorf("guardrail pattern %q: %w", pattern.Pattern, err)
		}
		compiled = append(compiled, compiledPattern{re: re, rule: pattern})
	}

	return &Guardrail{patterns: compiled}, nil
}

// Evaluate implements ports.StatementGuard.
func (g *Guardrail) Evaluate(code string) (domain.RiskAssessment, error) {
	if g == nil {
		return domain.RiskAssessment{}, errors.New("guardrail nil")
	}
	assessment := domain.RiskAssessment{
		Level:  domain.RiskSafe,
		Action: domain.ActionAllow,
	}
	stripped := stripComments(code)
	for _, pattern := range g.patterns {
		if !pattern.re.MatchString(stripped) {
			continue
		}
		level := parseRiskLevel(pattern.rule.Level)
		action := parseAction(pattern.rule.Action, level)
		if moreSevere(level, assessment.Level) {
			assessment.Level = level
		}
		if actionRank(action) > actionRank(assessment.Action) {
			assessment.Action = action
		}
		assessment.Reasons = append(assessment.Reasons, pattern.rule.Message)
		assessment.MatchedRules = append(assessment.MatchedRules, pattern.rule.Pattern)
	}
	return assessment, nil
}

var (
	lineComment  = regexp.MustCompile(`--[^\n]*`)
	blockComment = regexp.MustCompile(`(?s)/\*.*?\*/`)
)

func stripComments(code string) string {
	code = blockComment.ReplaceAllString(code, " ")
	return lineComment.ReplaceAllString(code, " ")
}

func loadRules(path string) (RulesFile, error) {
	var rules RulesFile
	data, err := os.ReadFile(path)
	if err != nil {
		if path != "" && !errors.Is(err, os.ErrNotExist) {
			return RulesFile{}, fmt.Errorf("read guardrail rules: %w", err)
		}
		rules.Rules.DangerPatterns = DefaultPatterns()
		return rules, nil
	}
	if err := yaml.Unmarshal(data, &rules); err != nil {
		return RulesFile{}, fmt.Errorf("parse guardrail rules %s: %w", path, err)
	}
	if len(rules.Rules.DangerPatterns) == 0 {
		rules.Rules.DangerPatterns = DefaultPatterns()
	}
	return rules, nil
}

func parseRiskLevel(value string) domain.RiskLevel {
	switch strings.ToLower(value) {
	case "medium":
		return domain.RiskMedium
	case "high":
		return domain.RiskHigh
	case "critical":
		return domain.RiskCritical
	default:
		return domain.RiskSafe
	}
}

func parseAction(value string, fallback domain.RiskLevel) domain.GuardrailAction {
	switch strings.ToLower(value) {
	case "allow":
		return domain.ActionAllow
	case "confirm":
		return domain.ActionConfirm
	case "block":
		return domain.ActionBlock
	default:
		if fallback == domain.RiskSafe {
			return domain.ActionAllow
		}
		return domain.ActionConfirm
	}
}

func moreSevere(next domain.RiskLevel, current domain.RiskLevel) bool {
	order := map[domain.RiskLevel]int{
		domain.RiskSafe:     0,
		domain.RiskMedium:   1,
		domain.RiskHigh:     2,
		domain.RiskCritical: 3,
	}
	return order[next] > order[current]
}

func actionRank(action domain.GuardrailAction) int {
	switch action {
	case domain.ActionBlock:
		return 2
	case domain.ActionConfirm:
		return 1
	default:
		return 0
	}
}

// DefaultPatterns are the rules used when no rules file exists.
func DefaultPatterns() []DangerPattern {
	return []DangerPattern{
		{Pattern: `\bdrop\s+database\b`, Level: "critical", Message: "Dropping a database", Action: "confirm"},
		{Pattern: `\bdrop\s+table\b`, Level: "high", Message: "Dropping a table", Action: "confirm"},
		{Pattern: `\btruncate\s+(table\s+)?\w`, Level: "high", Message: "Truncating a table", Action: "confirm"},
		{Pattern: `\bdelete\s+from\s+[\w."]+\s*(;\s*)?$`, Level: "high", Message: "DELETE without WHERE", Action: "confirm"},
		{Pattern: `\balter\s+table\b.*\bdrop\b`, Level: "medium", Message: "Dropping a column", Action: "confirm"},
	}
}

var _ ports.StatementGuard = (*Guardrail)(nil)
