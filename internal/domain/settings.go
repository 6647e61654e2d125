package domain

import "time"

// Well-known settings keys.
const (
	SettingSignatureGeneral    = "signature_general"
	SettingSignatureAutomation = "signature_automation"
	SettingReplyForwardAddress = "reply_forward_address"
	SettingChatSystemPrompt    = "chat_system_prompt"
)

// Setting is one tenant-scoped key/value configuration row.
type Setting struct {
	TenantID  string    `json:"tenant_id" db:"tenant_id"`
	Key       string    `json:"key" db:"key"`
	Value     string    `json:"value" db:"value"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// Skill is one capability card surfaced to the chat widget. The prompt is a
// Liquid template rendered with shop context before the LLM call.
type Skill struct {
	ID          string    `json:"id" db:"id"`
	TenantID    string    `json:"tenant_id" db:"tenant_id"`
	Name        string    `json:"name" db:"name"`
	Description string    `json:"description" db:"description"`
	Prompt      string    `json:"prompt" db:"prompt"`
	Enabled     bool      `json:"enabled" db:"enabled"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time `json:"updated_at" db:"updated_at"`
}
