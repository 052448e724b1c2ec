package pipeline

import "fmt"

// Output bounds passed to the generator
const (
	ProposalMaxLength    = 100
	CompositionMaxLength = 512
)

const proposalTemplate = `Return 3 most relevant Bible verses for: %s
Format strictly as 'Book Chapter:Verse' separated by commas.
Example: 'John 3:16, Romans 6:23, Revelation 21:4'`

const compositionTemplate = `Question: %s
Bible Verses: %s

Summarize what the Bible says about this topic in 1-2 paragraphs.
Include exact verse references (e.g. John 3:16) for each point.
Write in clear, pastoral language.`

func proposalPrompt(question string) string {
	return fmt.Sprintf(proposalTemplate, question)
}

func compositionPrompt(question, verseBlock string) string {
	return fmt.Sprintf(compositionTemplate, question, verseBlock)
}
