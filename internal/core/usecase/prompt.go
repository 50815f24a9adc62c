package usecase

import "fmt"

const answerSystemPrompt = "Sei un esperto di normative scolastiche: CCNL, graduatorie, concorsi, diritti del personale."

func buildAnswerPrompt(question, groundingContext string) string {
	return fmt.Sprintf(`Sei un consulente sindacale specializzato nel personale della scuola italiana (docenti, ATA, dirigenti).

DOCUMENTI DISPONIBILI:
%s

DOMANDA: %s

ISTRUZIONI:
- Rispondi in modo chiaro, pratico e professionale
- Cita sempre le fonti usate con il loro numero [Source N]
- Se i documenti non bastano, dillo esplicitamente
- Indica scadenze, procedure e riferimenti normativi quando presenti

RISPOSTA:`, groundingContext, question)
}
