package classifier

import (
	"encoding/json"
	"strings"
)

// SystemPrompt is the role given to the model for every coding call.
const SystemPrompt = "You are an expert in qualitative data coding."

const instructions = `You are an expert in qualitative data coding. Given the following question and interview answer, follow these steps:

1. Review the list of existing codes provided.
2. Read the interview answer carefully and note any additional themes or topics not covered by the existing codes.
3. Return a union of the relevant existing codes and any new codes you identified.

Important Rules:
- Only return codes that specifically answer the question and match the type of information requested.
- Do not include codes that describe general information unrelated to the question's focus.
- Reuse the exact wording of an existing code when it applies.

`

const fewShotExamples = `Here are a few examples:

Example 1:
Question: Who in your organization is primarily responsible for managing disruptions in global trade?
Answer: Our supply chain manager takes the lead on handling trade disruptions. They coordinate with suppliers, negotiate alternative shipping routes, and ensure that we have contingency plans in place. However, our finance team also plays a key role, as they monitor currency fluctuations and adjust our purchasing strategies accordingly. The leadership team steps in when major strategic decisions are needed.
Existing Codes: ["Supply Chain Manager"]
Expected Output: ["Supply Chain Manager", "Finance Team", "Leadership Team"]

Example 2:
Question: How have recent economic challenges affected your household's access to essential resources?
Answer: Over the past year, prices for basic goods like food and electricity have increased significantly, making it difficult for us to afford everything we need. We've had to cut back on fresh produce and rely more on cheaper, processed foods. Public transportation costs have also risen, so we now walk more often instead of taking the bus. Our children's education expenses, like school materials and fees, are harder to manage, so we've had to prioritize essentials over extracurricular activities.
Existing Codes: ["Rising Cost of Living", "Reduced Use of Public Transportation"]
Expected Output: ["Rising Cost of Living", "Reduced Use of Public Transportation", "Reduced Food Quality", "Household Budget Adjustments"]

`

// UserPrompt returns the coding prompt for one answer.
func UserPrompt(question, answer string, existing []string) string {
	if existing == nil {
		existing = []string{}
	}
	codes, _ := json.Marshal(existing)

	var sb strings.Builder
	sb.WriteString(instructions)
	sb.WriteString(fewShotExamples)
	sb.WriteString("Now apply this to the following:\n")
	sb.WriteString("Question: " + question + "\n")
	sb.WriteString("Answer: " + answer + "\n")
	sb.WriteString("Existing Codes: " + string(codes) + "\n\n")
	sb.WriteString(`Return the response as a JSON object of the form {"thematic_codes": ["..."]}.`)
	return sb.String()
}

// CodeSchema is the structured output requested from providers that
// support JSON schema responses.
func CodeSchema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"thematic_codes": map[string]any{
				"description": "the codes identified in the data",
				"type":        "array",
				"items":       map[string]any{"type": "string"},
			},
		},
		"required":             []string{"thematic_codes"},
		"additionalProperties": false,
	}
}
