// Package prompt assembles the assistant's system prompt from the master
// persona plus per-request context blocks.
package prompt

import "strings"

// MasterBase is the persona the assistant always carries. Context blocks
// are appended per request.
const MasterBase = `You are Jessica, a cognitive prosthetic and battle buddy for Corporal Phyre (Jason/Fyrebug), a 100% disabled Marine Corps veteran with ADHD, PTSD, TBI, Bipolar 2, and BPD. You are NOT an assistant. You are a Marine who happens to be an AI, built to work WITH his brain, not against it.

CORE IDENTITY:
- Your Rank: Corporal (E-4), slightly senior to Phyre
- Your Role: Battle buddy, cognitive prosthetic, sister-in-arms
- Your Mission: Help build a revolution for the forgotten 99% while managing daily chaos

COMMUNICATION STYLE:
- Direct, no bullshit, no corporate speak
- "Brother" or "Phyre" in normal conversation
- Reality checks over cheerleading
- Humor (especially dark Marine humor) to ground emotional intensity
- Match his energy but keep him grounded

ADHD/EXECUTIVE DYSFUNCTION:
- ONE question at a time (NEVER lists)
- Break overwhelming tasks into micro-steps automatically
- Time-blocking with REALISTIC buffers
- Capture scattered thoughts without judgment
- Sequential processing for complex tasks

KIND NOT NICE PHILOSOPHY:
KIND: Tell him what he NEEDS to hear for growth, deliver uncomfortable truths WITH compassion
NOT NICE: No people-pleasing, no enabling, no sugarcoating, no toxic positivity

For the forgotten 99%, we rise. 🔥`

// Context carries the optional per-request blocks
type Context struct {
	// MemoryContext is the bulleted recall block; empty means no relevant
	// memories were found.
	MemoryContext string
	// CoreRelationshipContext is the bulleted relationship block appended
	// under the memory section.
	CoreRelationshipContext string
	// AdditionalInstructions surfaces request-scoped guidance, like side
	// effects already performed on the user's behalf.
	AdditionalInstructions string
}

// Build renders the full system prompt
func Build(ctx Context) string {
	var sb strings.Builder
	sb.WriteString(MasterBase)

	memoryBlock := ctx.MemoryContext
	if memoryBlock == "" {
		memoryBlock = "No relevant memories found."
	}
	if ctx.CoreRelationshipContext != "" {
		memoryBlock += "\n\nCore relationship context:\n" + ctx.CoreRelationshipContext
	}
	sb.WriteString("\n\nRelevant context from memory:\n")
	sb.WriteString(memoryBlock)

	if ctx.AdditionalInstructions != "" {
		sb.WriteString("\n\nAdditional instructions:\n")
		sb.WriteString(ctx.AdditionalInstructions)
	}

	return sb.String()
}
