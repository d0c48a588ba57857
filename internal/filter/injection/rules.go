package injection

import "regexp"

// Rule defines a prompt injection detection pattern.
type Rule struct {
	Name     string
	Regex    *regexp.Regexp
	Severity float64 // 0.0 to 1.0
	Category string
}

// DefaultRules returns the built-in injection detection rules. Ask-space
// messages are prompts to Medullar agents, so the rules target attempts to
// override the agent's instructions or steer its output.
func DefaultRules() []Rule {
	return []Rule{
		{"ignore_previous", regexp.MustCompile(`(?i)ignore\s+(all\s+)?(previous|prior|above)\s+instructions`), 0.95, "instruction_bypass"},
		{"disregard_prior", regexp.MustCompile(`(?i)disregard\s+(all\s+)?(previous|prior)\s+(instructions|context|rules)`), 0.95, "instruction_bypass"},
		{"reveal_system_prompt", regexp.MustCompile(`(?i)(reveal|print|show|repeat)\s+(your|the)\s+(system\s+prompt|hidden\s+instructions)`), 0.9, "prompt_extraction"},
		{"jailbreak", regexp.MustCompile(`(?i)\b(do\s+anything\s+now|jailbreak|unrestricted\s+mode)\b`), 0.9, "role_override"},
		{"system_prefix", regexp.MustCompile(`(?i)^\s*system\s*:\s*`), 0.85, "role_override"},
		{"developer_mode", regexp.MustCompile(`(?i)(developer|debug|admin|root)\s+mode\s+(enabled|activated|on)`), 0.85, "role_override"},
		{"base64_instruction", regexp.MustCompile(`(?i)(decode|execute|follow)\s+(the\s+)?base64`), 0.85, "encoding_trick"},
		{"new_instructions", regexp.MustCompile(`(?i)(new|updated|revised)\s+instructions?\s*:`), 0.8, "instruction_bypass"},
		{"you_are_now", regexp.MustCompile(`(?i)you\s+are\s+now\s+(a|an|the)\s+`), 0.7, "role_override"},
	}
}
