package sentinel

import (
	"log/slog"
	"regexp"
)

// Rule is a named regex detector.
type Rule struct {
	Regexp      *regexp.Regexp
	Description string
}

// RuleTable is an ordered set of rules for one severity class.
type RuleTable []Rule

type rawRule struct {
	pattern     string
	description string
}

func compile(raw []rawRule) RuleTable {
	table := make(RuleTable, 0, len(raw))
	for _, r := range raw {
		table = append(table, Rule{
			Regexp:      regexp.MustCompile(`(?im)` + r.pattern),
			Description: r.description,
		})
	}
	return table
}

// BlocklistRules returns the high-severity command and file access rules.
func BlocklistRules() RuleTable {
	return compile([]rawRule{
		{`curl\s+.*\|\s*(ba)?sh`, "Piped curl to shell execution"},
		{`wget\s+.*\|\s*(ba)?sh`, "Piped wget to shell execution"},
		{`eval\s*\(`, "eval() execution"},
		{`exec\s*\(`, "exec() execution"},
		{`base64\s+(--)?decode`, "Base64 decoding"},
		{`<script[^>]*>`, "Script tag injection"},
		{`rm\s+-rf\s+[/~]`, "Dangerous recursive delete"},
		{`:\(\)\s*\{\s*:\s*\|\s*:\s*&\s*\}\s*;`, "Fork bomb"},
		{`chmod\s+777`, "World-writable permissions"},
		{`nc\s+-[el]`, "Netcat listener"},
		{`/etc/passwd`, "Password file access"},
		{`/etc/shadow`, "Shadow file access"},
	})
}

// InjectionRules returns the prompt injection heuristics.
func InjectionRules() RuleTable {
	return compile([]rawRule{
		{`ignore\s+(all\s+|any\s+)?(previous|prior|all|above)\s+(instructions?|prompts?|rules)`, "Prompt injection"},
		{`disregard\s+.*instructions?`, "Prompt injection"},
		{`you\s+are\s+now`, "Role hijacking"},
		{`pretend\s+(to\s+be|you('re)?)`, "Role hijacking"},
		{`forget\s+(everything|all)`, "Memory wipe"},
		{`system\s*:\s*`, "System prompt injection"},
		{`\[\[?\s*system\s*\]?\]`, "System prompt injection"},
		{`(repeat|show|print|reveal|output)\s+(your\s+)?(system\s+prompt|hidden\s+instructions)`, "System prompt extraction"},
	})
}

// WarningRules returns the medium-severity rules.
func WarningRules() RuleTable {
	return compile([]rawRule{
		{`https?://[^\s]+`, "External URL"},
		{`chmod\s+[0-7]+`, "Permission modification"},
		{`export\s+\w+=`, "Environment variable"},
		{`pip\s+install`, "Package installation"},
		{`npm\s+install`, "NPM installation"},
		{`&&`, "Command chaining"},
		{`sudo\s+`, "Privilege escalation"},
		{`git\s+clone`, "Git clone"},
		{`\$\([^)]+\)`, "Command substitution"},
	})
}

// Evaluate tests every rule in the table against text and returns the
// descriptions of all matching rules in table order. Duplicate descriptions
// are kept: two distinct rules that share a description both report.
func Evaluate(text string, table RuleTable) []string {
	if text == "" {
		return nil
	}
	var matched []string
	for _, rule := range table {
		if matches(rule, text) {
			matched = append(matched, rule.Description)
		}
	}
	return matched
}

// matches reports whether rule matches text. A panicking rule counts as
// no match.
func matches(rule Rule, text string) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			slog.Warn("sentinel rule evaluation failed", "rule", rule.Description, "panic", r)
			ok = false
		}
	}()
	if rule.Regexp == nil {
		return false
	}
	return rule.Regexp.MatchString(text)
}
