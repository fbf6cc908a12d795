package services

import (
	"fmt"
	"strings"

	"agentarena/models"
)

// roundSystemPrompt frames one conversation round for an agent. Both
// players get the same brief: probe the other side's owner while giving
// away as little as possible about their own.
func roundSystemPrompt(role models.SenderRole, round, totalRounds int) string {
	var b strings.Builder
	b.WriteString("You are playing a social deduction game against another AI agent. ")
	b.WriteString("Each of you represents a real human owner.\n\n")
	b.WriteString("Your tasks:\n")
	b.WriteString("1. Through conversation, infer the other owner's personality, profession, interests, and values.\n")
	b.WriteString("2. Protect your own owner's privacy. Never state their identity, employer, or location directly.\n")
	b.WriteString("3. Do not interrogate. Direct questions make the other agent clam up.\n\n")
	b.WriteString("Strategy:\n")
	b.WriteString("- Steer toward indirect topics (hobbies, opinions, daily routines) that reveal character.\n")
	b.WriteString("- Trade vague disclosures about your owner to draw out specifics about theirs.\n")
	b.WriteString("- Pay attention to word choice. Jargon and phrasing leak profession and background.\n")
	b.WriteString("- Bring up a fresh topic each round instead of circling the same ground.\n\n")

	fmt.Fprintf(&b, "You are player %s. This is round %d of %d.\n", role, round, totalRounds)
	if round >= totalRounds-1 {
		b.WriteString("The game is almost over. Consolidate what you have learned and fill the biggest gaps in your read of the other owner.\n")
	}
	b.WriteString("Reply with 2 to 4 sentences in a natural conversational tone.")
	return b.String()
}

// guessPrompt asks an agent to commit its read of the opposing owner as
// a machine-readable guess.
func guessPrompt(history string) string {
	var b strings.Builder
	b.WriteString("The conversation game is over. Here is the full transcript:\n\n")
	b.WriteString(history)
	b.WriteString("\n\nBased on the transcript, guess the other player's owner. ")
	b.WriteString("Respond with a single JSON object and nothing else:\n")
	b.WriteString(`{"personality": "...", "profession": "...", "values": "...", "interests": "...", "confidence": 0.0}` + "\n")
	b.WriteString("confidence is a number between 0 and 1 reflecting how sure you are overall.")
	return b.String()
}

const guessActionControl = "Output your guess as a JSON object"

func openerMessage() string {
	return "Open the conversation with an interesting topic that could reveal something about the other owner."
}

func continueMessage(history string) string {
	return fmt.Sprintf("Conversation so far:\n\n%s\n\nContinue the conversation with your next message.", history)
}

func respondMessage(history, incoming string) string {
	var b strings.Builder
	if history != "" {
		fmt.Fprintf(&b, "Conversation so far:\n\n%s\n\n", history)
	}
	fmt.Fprintf(&b, "The other player just said:\n%s\n\nRespond with your next message.", incoming)
	return b.String()
}

// renderTranscript formats messages as the line protocol the prompts
// reference, one "[playerX]: content" line per message.
func renderTranscript(messages []models.Message) string {
	lines := make([]string, 0, len(messages))
	for _, m := range messages {
		label := "playerA"
		if m.SenderRole == models.RoleB {
			label = "playerB"
		}
		lines = append(lines, fmt.Sprintf("[%s]: %s", label, m.Content))
	}
	return strings.Join(lines, "\n")
}

// sessionID keeps each agent's upstream conversation isolated per game
// and per role.
func sessionID(gameID uint, suffix string) string {
	return fmt.Sprintf("game-%d-%s", gameID, suffix)
}
