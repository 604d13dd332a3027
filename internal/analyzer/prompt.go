package analyzer

import "fmt"

// ReadySentence must close the first playbook prompt.
const ReadySentence = "Respond 'Ready' if you understand and will wait for detailed tasks."

// PlaybookLength is the number of prompts a well-formed playbook carries.
const PlaybookLength = 7

const analysisTemplate = `Identify whether the following Reddit discussion surfaces either:
- a *viable* **software problem** (a pain point that could be solved with software),
- or a **business opportunity** (an approach, product, or service that is working, being paid for, or could be replicated).

Consider a post viable if it describes a problem, a need, a workaround, a paid solution, or a business opportunity, even if the problem is not fully described or the market is niche. Be generous in your assessment.

Return JSON:
- is_viable: boolean
- is_opportunity: boolean (true if a business opportunity is present)
- problem_description (or opportunity_description)
- target_market
- confidence_score (0-1)

TEXT
----
%s
`

const solutionTemplate = `You are a senior software architect and business analyst.

**Constraints**
- If the post describes a problem, propose a software solution.
- If the post describes a business opportunity, propose how to replicate or address it with a new product, service, or SaaS.
- Provide 1-3 features *specific* to the problem, need, or opportunity and the target market.
- Explicitly **DO NOT** propose a generic CRUD task manager, kanban board, or to-do app.
- The MVP should be buildable in about 2 weeks.

Problem or Opportunity
----------------------
%s

Target market
-------------
%s

Context excerpt (for specificity)
---------------------------------
%s

Return JSON:
- solution_description
- tech_stack (array)
- mvp_features (array, max 3)
- est_development_time
`

const playbookTemplate = `You are pair-programming inside **Cursor**.

Create an ordered list of prompts the developer can paste into Cursor, one by
one, to build the MVP below. Each prompt can build off of the previous one.

Problem or Opportunity
----------------------
%s

Target market
-------------
%s

MVP solution
------------
%s

### Required sequence
0. **Context prompt**: explain the problem, target market, and the chosen MVP
   in at most 120 words. Finish with:
   > "%s"

1. **Project bootstrap**
   * Git repo init, README stub, MIT license
   * Basic tooling: lint / format / .env.example

2. **Data model & schema**: full schema with migrations (e.g. Prisma, Alembic,
   or Mongoose), or state plainly that no persistent data is needed.

3. **Core backend logic & endpoints**: implement the 1-3 MVP features with
   unit-test stubs.

4. **Minimal UI or CLI**: only what is needed to demo the features locally.

5. **Automated tests**: unit tests plus one happy-path integration test.

6. **Local run instructions**: how to start the dev server, seed sample data,
   and test the flow, ending with an acceptance checklist.

Return **JSON only** with one key ` + "`prompts`" + ` whose value is the array of %d prompt
strings.
`

// AnalysisPrompt asks whether the discussion is a viable problem or opportunity.
func AnalysisPrompt(context string) string {
	return fmt.Sprintf(analysisTemplate, context)
}

// SolutionPrompt asks for an MVP sketch for the problem.
func SolutionPrompt(problem, market, context string) string {
	return fmt.Sprintf(solutionTemplate, problem, market, context)
}

// PlaybookPrompt asks for the seven build prompts.
func PlaybookPrompt(problem, market, solution string) string {
	return fmt.Sprintf(playbookTemplate, problem, market, solution, ReadySentence, PlaybookLength)
}
