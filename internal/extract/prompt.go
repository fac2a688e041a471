package extract

import (
	"bytes"
	"text/template"
)

const systemPrompt = `You are a senior product manager acting as an AI ticket assistant for Linear.`

const extractPromptTemplate = `Turn the text below into Linear issues.

Instructions:
1. Split the input into distinct actionable tasks, bugs or features.
2. For each one write a title of at most {{.MaxTitleWords}} words. Make it action-oriented and capitalize the first word.
3. Write a description of 1-2 sentences that states the expected behavior and, where relevant, acceptance criteria.
4. Skip sentences that are not actionable.
5. Do not invent tasks that are not present in the input.
6. Record the result with the {{.ToolName}} tool. If nothing is actionable, record an empty list.

Text:
"""
{{.Text}}
"""`

type promptData struct {
	Text          string
	MaxTitleWords int
	ToolName      string
}

var extractTemplate = template.Must(template.New("extract").Parse(extractPromptTemplate))

func renderPrompt(data promptData) (string, error) {
	var buf bytes.Buffer
	if err := extractTemplate.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}
