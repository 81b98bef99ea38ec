package doseaudit

import "context"

// ChatReply is a chatbot answer with the guideline excerpts it cited.
type ChatReply struct {
	Answer  string
	Sources []Evidence
}

// Ask answers a caregiver question grounded in the guideline corpus.
// The answer never contains dosing changes or diagnoses; questions the
// corpus cannot answer are referred to a clinician, and emergency
// language gets an immediate escalation answer.
func (c *Client) Ask(ctx context.Context, question string) (ChatReply, error) {
	reply, err := c.chat.Answer(ctx, question)
	if err != nil {
		return ChatReply{}, err
	}
	out := ChatReply{Answer: reply.Answer}
	if len(reply.Sources) > 0 {
		out.Sources = make([]Evidence, 0, len(reply.Sources))
		for _, item := range reply.Sources {
			out.Sources = append(out.Sources, evidenceFromDomain(item))
		}
	}
	return out, nil
}
