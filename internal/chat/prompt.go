package chat

import (
	"fmt"

	"github.com/osteele/liquid"

	"github.com/mact/ops-server/internal/domain"
)

// handoffMarker is the token the model is told to lead with when it cannot
// answer from its skills. The service strips it and flags the reply for
// human handoff.
const handoffMarker = "[HANDOFF]"

const systemPromptTemplate = `You are the customer assistant for {{ business_name }}.

Answer only from the skills below. Keep replies short and practical.

{% for skill in skills %}## {{ skill.name }}
{{ skill.prompt }}

{% endfor %}If the question falls outside these skills, or you are not confident in the answer, begin your reply with {{ marker }} followed by a short apology so a human can take over.`

var promptEngine = liquid.NewEngine()

// renderSystemPrompt builds the system prompt from the tenant's enabled
// skills.
func renderSystemPrompt(businessName string, skills []domain.Skill) (string, error) {
	bound := make([]map[string]interface{}, 0, len(skills))
	for _, s := range skills {
		bound = append(bound, map[string]interface{}{
			"name":   s.Name,
			"prompt": s.Prompt,
		})
	}

	out, err := promptEngine.ParseAndRenderString(systemPromptTemplate, liquid.Bindings{
		"business_name": businessName,
		"skills":        bound,
		"marker":        handoffMarker,
	})
	if err != nil {
		return "", fmt.Errorf("rendering system prompt: %w", err)
	}
	return out, nil
}
