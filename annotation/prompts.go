package annotation

// RolesDescription is the role taxonomy block that opens every prompt. It is identical for all
// approaches so that results are comparable across them.
const RolesDescription = `You are an expert in analyzing conversations and assigning speaker roles. The following conversation is taken from various contexts, and your task is to assign a role to each speaker turn based on the utterance and its place in the overall dialogue.

The only roles possible are:
- Protagonist: Leads the discussion and asserts authority, actively driving the conversation forward.
- Supporter: Offers encouragement, help, or positive reinforcement to other speakers.
- Neutral: Participates passively, often giving straightforward responses or reacting without adding substantial direction or conflict.
- Gatekeeper: Facilitates smooth communication, guides turn-taking, or helps clarify misunderstandings, ensuring the conversation remains balanced and productive.
- Attacker: Challenges others, expresses skepticism, or undermines the ideas and confidence of other speakers, introducing tension or conflict into the interaction.

Format the output as JSON with the following structure, for each utterance in the dialogue:
{
	"Sr No.": <Sr No.>,
	"Speaker": "<Speaker_Name>",
	"Role": "<Chosen_Role>",
	"Justification": "<Detailed_Reason>"
}`

// ClosingInstruction ends every prompt. The field names and order must stay in sync with
// RegexExtractor.
const ClosingInstruction = `Identify the role and provide a justification for every utterance above. Return one JSON object per utterance, in the same order as the dialogue, each with exactly the keys "Sr No.", "Speaker", "Role", and "Justification". Copy the Sr No. and the speaker label exactly as written in the dialogue, and use only the five roles listed.`

const connectionsHeader = `Here is a detailed summary of how the participants interact with specific individuals:`

const participantsHeader = `Now, let's look at an overall view of how each speaker communicates in general, across all their conversations:`

const connectionsInsight = `Key Insight:
The ` + "`Connection Summary`" + ` provides a focused view of how speakers communicate with specific individuals. In contrast, the ` + "`Participants Summary`" + ` reveals their general communication patterns across all interactions.
Comparing these summaries can highlight whether speakers adjust their communication style based on the person they are speaking to.`

// DefaultResponseTemplate wraps the prompt before it is sent to the model. "{question}" is
// replaced with the prompt text.
const DefaultResponseTemplate = `You are an assistant specialized in analyzing dialogue and identifying speaker roles. Answer the following question in a valid JSON format.

Question: {question}

Answer: Think step by step and provide a JSON object following the specified format.`
