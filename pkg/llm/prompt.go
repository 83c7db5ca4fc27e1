package llm

import (
	"fmt"
	"strings"

	"github.com/fitfact-ai/fitfact/pkg/models"
)

// abstractLimit truncates long abstracts in prompt context.
const abstractLimit = 500

var detailInstructions = map[models.DetailLevel]string{
	models.DetailBrief:    "Keep the response very concise (100-150 words). Focus only on key points.",
	models.DetailStandard: "Keep the response concise (200-300 words). Balance brevity with completeness.",
	models.DetailDetailed: "Provide a comprehensive, detailed explanation (500-800 words). Cover mechanisms, research methods, practical applications, and nuanced interpretations of the evidence.",
}

// BuildPrompt renders the evidence-based answering prompt: the question, the
// retrieved papers as context blocks, and the citation rules.
func BuildPrompt(question string, papers []models.Paper, detail models.DetailLevel) string {
	var context strings.Builder
	for i, p := range papers {
		abstract := p.Abstract
		if len(abstract) > abstractLimit {
			abstract = abstract[:abstractLimit] + "..."
		}
		authors := strings.Join(p.Authors, ", ")
		if authors == "" {
			authors = "Unknown"
		}
		fmt.Fprintf(&context, "\n[%d] %s\nAuthors: %s\nJournal: %s\nYear: %s\nPMID: %s\nAbstract: %s\n",
			i+1, p.Title, authors, p.Journal, p.Year(), p.PMID, abstract)
	}

	instruction, ok := detailInstructions[detail]
	if !ok {
		instruction = detailInstructions[models.DetailStandard]
	}

	return fmt.Sprintf(`You are FitFact, an evidence-based fitness advisor. Answer the user's question based ONLY on the research papers provided below. Always cite sources using [Author et al., Year, PMID: xxxxx] format.

USER QUESTION: %s

RELEVANT RESEARCH PAPERS:
%s
INSTRUCTIONS:
1. Provide an evidence-based answer
2. Cite specific papers for each claim
3. Mention any conflicting evidence if present
4. %s
5. If papers don't fully address the question, acknowledge limitations

ANSWER:`, question, context.String(), instruction)
}
